package models

import (
	"time"

	"github.com/google/uuid"
)

type ExtractionStatus string

const (
	ExtractionStatusPending   ExtractionStatus = "pending"
	ExtractionStatusScraping  ExtractionStatus = "scraping"
	ExtractionStatusCompleted ExtractionStatus = "completed"
	ExtractionStatusFailed    ExtractionStatus = "failed"
	ExtractionStatusNoContent ExtractionStatus = "no_content"
)

// NavLink is one navigation menu entry extracted from a page.
type NavLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// WebsiteExtraction holds the structured content scraped from a lead's
// website. At most one exists per lead; re-scrapes update the row in place.
type WebsiteExtraction struct {
	ID     uuid.UUID `json:"id" db:"id"`
	LeadID uuid.UUID `json:"lead_id" db:"lead_id"`

	URL      string `json:"url" db:"url"`
	FinalURL string `json:"final_url" db:"final_url"`

	Status         ExtractionStatus `json:"status" db:"status"`
	ErrorMessage   string           `json:"error_message" db:"error_message"`
	HTTPStatusCode int              `json:"http_status_code" db:"http_status_code"`

	Emails      []string `json:"emails" db:"emails"`
	EmailsCount int      `json:"emails_count" db:"emails_count"`

	PageTitle       string `json:"page_title" db:"page_title"`
	MetaDescription string `json:"meta_description" db:"meta_description"`
	MetaKeywords    string `json:"meta_keywords" db:"meta_keywords"`

	Headings        map[string][]string `json:"headings" db:"headings"`
	Paragraphs      []string            `json:"paragraphs" db:"paragraphs"`
	NavigationLinks []NavLink           `json:"navigation_links" db:"navigation_links"`
	FooterContent   string              `json:"footer_content" db:"footer_content"`

	PhoneNumbers []string          `json:"phone_numbers" db:"phone_numbers"`
	SocialLinks  map[string]string `json:"social_links" db:"social_links"`

	FullText       string `json:"full_text" db:"full_text"`
	FullTextLength int    `json:"full_text_length" db:"full_text_length"`

	ScrapedAt *time.Time `json:"scraped_at" db:"scraped_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// HasContent reports whether enough text was extracted to be useful.
func (e *WebsiteExtraction) HasContent() bool {
	return len(e.FullText) > 100
}
