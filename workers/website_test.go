package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"leadharvest/models"
	"leadharvest/website"
)

type fakeLeadSource struct {
	leads []models.Lead
}

func (s *fakeLeadSource) ListLeadsNeedingScrape(ctx context.Context, limit int) ([]models.Lead, error) {
	if limit > len(s.leads) {
		limit = len(s.leads)
	}
	return s.leads[:limit], nil
}

type memExtractionStore struct {
	extractions map[uuid.UUID]*models.WebsiteExtraction
}

func (s *memExtractionStore) GetExtractionByLead(ctx context.Context, leadID uuid.UUID) (*models.WebsiteExtraction, error) {
	if e, ok := s.extractions[leadID]; ok {
		return e, nil
	}
	return nil, nil
}

func (s *memExtractionStore) UpsertExtraction(ctx context.Context, e *models.WebsiteExtraction) error {
	s.extractions[e.LeadID] = e
	return nil
}

func TestProcessBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><main><p>A business page with enough text to count as real content for extraction purposes.</p>
			<a href="mailto:owner@realbusiness.com.tr">mail</a></main></body></html>`))
	}))
	defer srv.Close()

	source := &fakeLeadSource{leads: []models.Lead{
		{ID: uuid.New(), Title: "One", Website: srv.URL},
		{ID: uuid.New(), Title: "Two", Website: srv.URL},
		{ID: uuid.New(), Title: "No Site"},
	}}
	store := &memExtractionStore{extractions: make(map[uuid.UUID]*models.WebsiteExtraction)}
	scraper := website.NewScraper(store, srv.Client(), 0)

	worker := NewWebsiteWorker(source, scraper, 10)
	stats := worker.ProcessBatch(context.Background(), 10)

	if stats.Processed != 2 {
		t.Errorf("processed = %d, want 2 (lead without website skipped)", stats.Processed)
	}
	if stats.Completed != 2 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.EmailsFound != 2 {
		t.Errorf("emails found = %d, want 2", stats.EmailsFound)
	}
	if len(store.extractions) != 2 {
		t.Errorf("stored extractions = %d, want 2", len(store.extractions))
	}
}

func TestProcessBatchInterrupted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>page</p></body></html>"))
	}))
	defer srv.Close()

	source := &fakeLeadSource{leads: []models.Lead{
		{ID: uuid.New(), Title: "One", Website: srv.URL},
		{ID: uuid.New(), Title: "Two", Website: srv.URL},
	}}
	store := &memExtractionStore{extractions: make(map[uuid.UUID]*models.WebsiteExtraction)}
	scraper := website.NewScraper(store, srv.Client(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := NewWebsiteWorker(source, scraper, 10)
	stats := worker.ProcessBatch(ctx, 10)
	if stats.Processed != 0 {
		t.Errorf("processed = %d, want 0 with cancelled context", stats.Processed)
	}
}

func TestTriggerNonBlocking(t *testing.T) {
	worker := NewWebsiteWorker(&fakeLeadSource{}, nil, 5)

	// Repeated triggers must never block, even with no loop draining them.
	for i := 0; i < 10; i++ {
		worker.Trigger()
	}
}
