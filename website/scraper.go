package website

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"leadharvest/models"
)

// Browser-like headers reduce bot blocking on small-business sites.
const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.5,tr;q=0.3"

	maxBodyBytes = 5_000_000
	maxErrMsgLen = 500
)

// ExtractionStore is the persistence surface the scraper needs.
// storage.PostgresStore satisfies it.
type ExtractionStore interface {
	GetExtractionByLead(ctx context.Context, leadID uuid.UUID) (*models.WebsiteExtraction, error)
	UpsertExtraction(ctx context.Context, e *models.WebsiteExtraction) error
}

// Scraper fetches lead websites and persists their extracted content.
// Network and HTTP failures are recorded on the extraction row, never
// returned as errors; only store failures propagate.
type Scraper struct {
	store   ExtractionStore
	http    *http.Client
	limiter *rate.Limiter
}

// NewScraper builds a scraper with the injected HTTP client. delay spaces out
// consecutive fetches; zero disables rate limiting.
func NewScraper(store ExtractionStore, httpClient *http.Client, delay time.Duration) *Scraper {
	var limiter *rate.Limiter
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Scraper{
		store:   store,
		http:    httpClient,
		limiter: limiter,
	}
}

// Scrape fetches a lead's website and persists the extraction. Returns
// (nil, nil) when the lead has no website. When an extraction already exists
// and force is false, the cached record is returned without any network call.
func (s *Scraper) Scrape(ctx context.Context, lead *models.Lead, force bool) (*models.WebsiteExtraction, error) {
	if !lead.HasWebsite() {
		return nil, nil
	}

	existing, err := s.store.GetExtractionByLead(ctx, lead.ID)
	if err != nil {
		return nil, fmt.Errorf("get extraction for lead %s: %w", lead.ID, err)
	}
	if existing != nil && !force {
		return existing, nil
	}

	extraction := existing
	if extraction == nil {
		extraction = &models.WebsiteExtraction{
			ID:        uuid.New(),
			LeadID:    lead.ID,
			CreatedAt: time.Now(),
		}
	}
	extraction.URL = lead.Website
	extraction.Status = models.ExtractionStatusScraping

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	s.fetch(ctx, extraction, lead.Website)

	now := time.Now()
	extraction.ScrapedAt = &now
	extraction.UpdatedAt = now

	if err := s.store.UpsertExtraction(ctx, extraction); err != nil {
		return nil, fmt.Errorf("persist extraction for lead %s: %w", lead.ID, err)
	}
	return extraction, nil
}

// fetch performs the HTTP GET and fills the extraction in place.
func (s *Scraper) fetch(ctx context.Context, extraction *models.WebsiteExtraction, rawURL string) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		s.fail(extraction, err.Error())
		return
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := s.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			s.fail(extraction, "Connection timeout")
		} else {
			s.fail(extraction, err.Error())
		}
		return
	}
	defer resp.Body.Close()

	extraction.HTTPStatusCode = resp.StatusCode
	extraction.FinalURL = resp.Request.URL.String()

	if resp.StatusCode != http.StatusOK {
		s.fail(extraction, fmt.Sprintf("HTTP %d", resp.StatusCode))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		s.fail(extraction, "Not HTML: "+contentType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		s.fail(extraction, err.Error())
		return
	}

	rawHTML := string(body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		s.fail(extraction, "parse: "+err.Error())
		return
	}

	content := ExtractContent(doc, rawHTML)

	extraction.Emails = content.Emails
	extraction.EmailsCount = len(content.Emails)
	extraction.PageTitle = content.Title
	extraction.MetaDescription = content.MetaDescription
	extraction.MetaKeywords = content.MetaKeywords
	extraction.Headings = content.Headings
	extraction.Paragraphs = content.Paragraphs
	extraction.NavigationLinks = content.Navigation
	extraction.FooterContent = content.Footer
	extraction.PhoneNumbers = content.Phones
	extraction.SocialLinks = content.Social
	extraction.FullText = content.FullText
	extraction.FullTextLength = len(content.FullText)
	extraction.ErrorMessage = ""

	if content.FullText != "" {
		extraction.Status = models.ExtractionStatusCompleted
	} else {
		extraction.Status = models.ExtractionStatusNoContent
	}
}

func (s *Scraper) fail(extraction *models.WebsiteExtraction, msg string) {
	extraction.Status = models.ExtractionStatusFailed
	if len(msg) > maxErrMsgLen {
		msg = msg[:maxErrMsgLen]
	}
	extraction.ErrorMessage = msg
}
