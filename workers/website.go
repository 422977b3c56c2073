package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadharvest/models"
	"leadharvest/website"
)

// LeadSource yields the leads whose websites still need scraping.
// storage.PostgresStore satisfies it.
type LeadSource interface {
	ListLeadsNeedingScrape(ctx context.Context, limit int) ([]models.Lead, error)
}

// WebsiteWorker walks leads that have a website but no extraction yet and
// scrapes them in batches.
type WebsiteWorker struct {
	store     LeadSource
	scraper   *website.Scraper
	batchSize int
	logFn     LogFunc

	triggerCh chan struct{}
}

func NewWebsiteWorker(store LeadSource, scraper *website.Scraper, batchSize int) *WebsiteWorker {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &WebsiteWorker{
		store:     store,
		scraper:   scraper,
		batchSize: batchSize,
		logFn:     NoOpLogger,
		triggerCh: make(chan struct{}, 1),
	}
}

// SetLogger routes worker events into the ops database.
func (w *WebsiteWorker) SetLogger(fn LogFunc) {
	if fn != nil {
		w.logFn = fn
	}
}

// Trigger requests an immediate batch. Non-blocking; a trigger while a batch
// is already queued is a no-op.
func (w *WebsiteWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run processes batches on the given interval until ctx is cancelled.
func (w *WebsiteWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Website worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx, w.batchSize)
		case <-w.triggerCh:
			w.ProcessBatch(ctx, w.batchSize)
		}
	}
}

// BatchStats summarizes one batch of website scrapes.
type BatchStats struct {
	Processed   int
	Completed   int
	Failed      int
	NoContent   int
	EmailsFound int
}

// ProcessBatch scrapes up to limit unscraped lead websites. The batch stops
// early when ctx is cancelled; leads already scraped stay scraped.
func (w *WebsiteWorker) ProcessBatch(ctx context.Context, limit int) *BatchStats {
	stats := &BatchStats{}

	leads, err := w.store.ListLeadsNeedingScrape(ctx, limit)
	if err != nil {
		log.Printf("Website worker: query error: %v", err)
		w.logFn(models.LogLevelError, "website", fmt.Sprintf("query error: %v", err))
		return stats
	}
	if len(leads) == 0 {
		return stats
	}

	log.Printf("Website worker: scraping %d lead websites", len(leads))

	for i := range leads {
		if ctx.Err() != nil {
			log.Printf("Website worker: batch interrupted after %d leads", stats.Processed)
			return stats
		}

		lead := &leads[i]
		extraction, err := w.scraper.Scrape(ctx, lead, false)
		if err != nil {
			log.Printf("Website worker: error scraping %s: %v", lead.Website, err)
			w.logFn(models.LogLevelError, "website", fmt.Sprintf("scrape %s: %v", lead.Website, err))
			continue
		}
		if extraction == nil {
			continue
		}

		stats.Processed++
		switch extraction.Status {
		case models.ExtractionStatusCompleted:
			stats.Completed++
		case models.ExtractionStatusNoContent:
			stats.NoContent++
		case models.ExtractionStatusFailed:
			stats.Failed++
		}
		stats.EmailsFound += extraction.EmailsCount
	}

	log.Printf("Website worker: batch done (%d scraped, %d failed, %d emails)",
		stats.Processed, stats.Failed, stats.EmailsFound)
	w.logFn(models.LogLevelInfo, "website",
		fmt.Sprintf("batch done: %d scraped, %d failed, %d emails", stats.Processed, stats.Failed, stats.EmailsFound))
	return stats
}
