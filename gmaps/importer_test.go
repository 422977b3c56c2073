package gmaps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"leadharvest/models"
)

// fakeStore is an in-memory Store for importer and orchestrator tests.
type fakeStore struct {
	jobs  map[uuid.UUID]*models.ScrapeJob
	leads []*models.Lead
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[uuid.UUID]*models.ScrapeJob)}
}

func (s *fakeStore) CreateJob(ctx context.Context, job *models.ScrapeJob) error {
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeStore) UpdateJob(ctx context.Context, job *models.ScrapeJob) error {
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeStore) GetJobByExternalID(ctx context.Context, externalID string) (*models.ScrapeJob, error) {
	for _, job := range s.jobs {
		if job.ExternalID == externalID {
			copied := *job
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListDueJobs(ctx context.Context, olderThan time.Time) ([]models.ScrapeJob, error) {
	var due []models.ScrapeJob
	for _, job := range s.jobs {
		if (job.Status == models.JobStatusPending || job.Status == models.JobStatusRunning) &&
			!job.CreatedAt.After(olderThan) {
			due = append(due, *job)
		}
	}
	return due, nil
}

func (s *fakeStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	copied := *lead
	s.leads = append(s.leads, &copied)
	return nil
}

func (s *fakeStore) LeadExists(ctx context.Context, jobID uuid.UUID, field, value string) (bool, error) {
	for _, lead := range s.leads {
		if lead.JobID != jobID {
			continue
		}
		switch field {
		case "cid":
			if lead.CID == value {
				return true, nil
			}
		case "data_id":
			if lead.DataID == value {
				return true, nil
			}
		case "link":
			if lead.Link == value {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *fakeStore) CountLeads(ctx context.Context, jobID uuid.UUID) (int, error) {
	count := 0
	for _, lead := range s.leads {
		if lead.JobID == jobID {
			count++
		}
	}
	return count, nil
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func testJob() *models.ScrapeJob {
	now := time.Now()
	return &models.ScrapeJob{
		ID:         uuid.New(),
		ExternalID: "ext-1",
		Status:     models.JobStatusRunning,
		CreatedAt:  now.Add(-time.Hour),
		UpdatedAt:  now,
	}
}

func TestImportFile(t *testing.T) {
	csv := `title,cid,link,phone,website,review_count,review_rating,latitude,longitude,open_hours
Kahve Deryasi,111,https://maps.google.com/?cid=111,0212 345 67 89,kahvederyasi.com,42,4.5,41.01,28.97,"{""monday"": ""9-18""}"
Simit Evi,222,https://maps.google.com/?cid=222,0212 987 65 43,,7,3.8,,,
`
	store := newFakeStore()
	imp := NewImporter(store)
	job := testJob()
	store.CreateJob(context.Background(), job)

	result, err := imp.ImportFile(context.Background(), job, writeCSV(t, csv))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if result.Created != 2 || result.Duplicates != 0 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v, want 2 created", result)
	}

	lead := store.leads[0]
	if lead.Title != "Kahve Deryasi" || lead.CID != "111" {
		t.Errorf("first lead = %+v", lead)
	}
	if lead.ReviewCount != 42 {
		t.Errorf("review_count = %d, want 42", lead.ReviewCount)
	}
	if lead.ReviewRating == nil || *lead.ReviewRating != 4.5 {
		t.Errorf("review_rating = %v, want 4.5", lead.ReviewRating)
	}
	if lead.OpenHours == nil {
		t.Error("open_hours should parse as JSON")
	}

	// Blank optionals degrade, not fail.
	second := store.leads[1]
	if second.Latitude != nil || second.ReviewRating == nil {
		t.Errorf("second lead optionals: lat=%v rating=%v", second.Latitude, second.ReviewRating)
	}

	// Bookkeeping lands on the job.
	saved := store.jobs[job.ID]
	if saved.LeadsCount != 2 {
		t.Errorf("leads_count = %d, want 2", saved.LeadsCount)
	}
	if saved.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", saved.Status)
	}
	if saved.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if saved.ErrorMessage != "" {
		t.Errorf("error_message = %q, want empty", saved.ErrorMessage)
	}
}

func TestImportFileIdempotent(t *testing.T) {
	csv := `title,cid,data_id,link
Acme,111,,
Beta,,d-222,
Gamma,,,https://example.com/gamma
`
	store := newFakeStore()
	imp := NewImporter(store)
	job := testJob()
	store.CreateJob(context.Background(), job)

	path := writeCSV(t, csv)
	first, err := imp.ImportFile(context.Background(), job, path)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.Created != 3 {
		t.Fatalf("first created = %d, want 3", first.Created)
	}

	second, err := imp.ImportFile(context.Background(), job, path)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second.Created != 0 || second.Duplicates != 3 {
		t.Errorf("second import = %+v, want 0 created, 3 duplicates", second)
	}
	if len(store.leads) != 3 {
		t.Errorf("lead count after re-import = %d, want 3", len(store.leads))
	}

	saved := store.jobs[job.ID]
	if !strings.Contains(saved.ErrorMessage, "Skipped 3 duplicate rows") {
		t.Errorf("error_message = %q", saved.ErrorMessage)
	}
}

func TestImportFileRowErrorsIsolated(t *testing.T) {
	csv := `title,cid,review_count
Good One,111,5
,222,3
Bad Number,333,not-a-number
Another Good,444,0
`
	store := newFakeStore()
	imp := NewImporter(store)
	job := testJob()
	store.CreateJob(context.Background(), job)

	result, err := imp.ImportFile(context.Background(), job, writeCSV(t, csv))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if result.Created != 2 {
		t.Errorf("created = %d, want 2", result.Created)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", result.Errors)
	}
	if !strings.Contains(result.Errors[0], "Row 3") || !strings.Contains(result.Errors[0], "title") {
		t.Errorf("first error = %q", result.Errors[0])
	}

	saved := store.jobs[job.ID]
	if !strings.Contains(saved.ErrorMessage, "Imported with 2 errors") {
		t.Errorf("error_message = %q", saved.ErrorMessage)
	}
}

func TestImportFileDedupPriority(t *testing.T) {
	store := newFakeStore()
	imp := NewImporter(store)
	job := testJob()
	store.CreateJob(context.Background(), job)

	first := `title,cid,link
Acme,111,https://example.com/acme
`
	if _, err := imp.ImportFile(context.Background(), job, writeCSV(t, first)); err != nil {
		t.Fatalf("first import: %v", err)
	}

	// Same cid under a new link is the same business, and so is the same
	// link under a new cid. Neither may create a second lead.
	second := `title,cid,link
Acme Coffee,111,https://example.com/acme-moved
Acme,999,https://example.com/acme
`
	result, err := imp.ImportFile(context.Background(), job, writeCSV(t, second))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if result.Created != 0 || result.Duplicates != 2 {
		t.Errorf("result = %+v, want 0 created, 2 duplicates", result)
	}
	if len(store.leads) != 1 {
		t.Errorf("lead count = %d, want 1", len(store.leads))
	}
}

func TestImportFileTruncatesMultibyteTitleCleanly(t *testing.T) {
	csv := "title\n" + strings.Repeat("Ş", 600) + "\n"

	store := newFakeStore()
	imp := NewImporter(store)
	job := testJob()
	store.CreateJob(context.Background(), job)

	result, err := imp.ImportFile(context.Background(), job, writeCSV(t, csv))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if result.Created != 1 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v, want 1 created", result)
	}

	title := store.leads[0].Title
	if !utf8.ValidString(title) {
		t.Fatal("truncated title is not valid UTF-8")
	}
	if got := utf8.RuneCountInString(title); got != 500 {
		t.Errorf("title runes = %d, want 500", got)
	}
}

func TestImportFileFingerprintDedup(t *testing.T) {
	// No cid/data_id/link anywhere: same business twice with cosmetic
	// formatting differences should import once.
	csv := `title,address,phone
Kahve Deryasi,Istiklal Caddesi 5,+90 212 345 67 89
Kahve Deryasi,istiklal cad 5,0212 345 67 89
Simit Evi,Mesrutiyet Caddesi 12,0212 111 22 33
`
	store := newFakeStore()
	imp := NewImporter(store)
	job := testJob()
	store.CreateJob(context.Background(), job)

	result, err := imp.ImportFile(context.Background(), job, writeCSV(t, csv))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if result.Created != 2 || result.Duplicates != 1 {
		t.Errorf("result = %+v, want 2 created, 1 duplicate", result)
	}
}

func TestImportFileInvalidJSONDegrades(t *testing.T) {
	csv := `title,open_hours,images,about
Acme,{broken json,"[]","null"
`
	store := newFakeStore()
	imp := NewImporter(store)
	job := testJob()
	store.CreateJob(context.Background(), job)

	result, err := imp.ImportFile(context.Background(), job, writeCSV(t, csv))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if result.Created != 1 || len(result.Errors) != 0 {
		t.Fatalf("result = %+v, want clean single import", result)
	}
	lead := store.leads[0]
	if lead.OpenHours != nil || lead.Images != nil || lead.About != nil {
		t.Errorf("JSON fields should be absent: %+v", lead)
	}
}

func TestValidateFile(t *testing.T) {
	csv := `title,review_count,latitude,open_hours
Good,5,41.0,"{""a"": 1}"
,x,not-a-float,{bad
Fine,,,"[]"
`
	report, err := ValidateFile(writeCSV(t, csv))
	if err != nil {
		t.Fatalf("ValidateFile: %v", err)
	}
	if report.TotalRows != 3 {
		t.Errorf("total = %d, want 3", report.TotalRows)
	}
	if report.ValidRows != 2 {
		t.Errorf("valid = %d, want 2", report.ValidRows)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v", report.Errors)
	}
	if !strings.Contains(report.Errors[0], "Row 3") {
		t.Errorf("error row = %q", report.Errors[0])
	}
	found := false
	for _, warning := range report.Warnings {
		if strings.Contains(warning, "open_hours has invalid JSON") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing invalid-JSON warning: %v", report.Warnings)
	}
}
