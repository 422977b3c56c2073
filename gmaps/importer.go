package gmaps

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"leadharvest/identity"
	"leadharvest/models"
)

// Store is the persistence surface the importer and orchestrator need.
// storage.PostgresStore satisfies it.
type Store interface {
	CreateJob(ctx context.Context, job *models.ScrapeJob) error
	UpdateJob(ctx context.Context, job *models.ScrapeJob) error
	GetJobByExternalID(ctx context.Context, externalID string) (*models.ScrapeJob, error)
	ListDueJobs(ctx context.Context, olderThan time.Time) ([]models.ScrapeJob, error)
	CreateLead(ctx context.Context, lead *models.Lead) error
	LeadExists(ctx context.Context, jobID uuid.UUID, field, value string) (bool, error)
	CountLeads(ctx context.Context, jobID uuid.UUID) (int, error)
}

// Field length caps, matching the lead table columns.
const (
	maxTitle      = 500
	maxURL        = 2000
	maxCategory   = 255
	maxPhone      = 50
	maxShortID    = 100
	maxInputID    = 255
	maxTimezone   = 100
	maxStatus     = 100
	maxPriceRange = 50
)

// ImportResult summarizes one CSV import pass.
type ImportResult struct {
	Created    int
	Duplicates int
	Errors     []string
}

// Importer converts a downloaded result CSV into lead rows for a job.
// Importing the same file twice is safe: rows are deduped by cid, data_id and
// link against the job's already-committed leads.
type Importer struct {
	store Store
}

func NewImporter(store Store) *Importer {
	return &Importer{store: store}
}

// ImportFile parses the CSV at csvPath and creates leads for job. Row-level
// failures are collected, not fatal; job bookkeeping (leads_count, status,
// error summary, csv path) is updated at the end.
func (im *Importer) ImportFile(ctx context.Context, job *models.ScrapeJob, csvPath string) (*ImportResult, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	result := &ImportResult{}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := columnIndex(header)

	// Rows without any stable identifier dedup against each other within
	// this file by fingerprint.
	seenFingerprints := make(map[string]bool)

	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}

		row := cols.row(record)

		dup, err := im.findDuplicate(ctx, job.ID, row)
		if err != nil {
			return nil, fmt.Errorf("dedup check row %d: %w", rowNum, err)
		}
		if !dup && !row.hasIdentifier() {
			fp := identity.Fingerprint(row.get("title"), row.get("address"), row.get("phone"))
			if seenFingerprints[fp] {
				dup = true
			}
			seenFingerprints[fp] = true
		}
		if dup {
			result.Duplicates++
			continue
		}

		lead, rowErr := decodeLead(job.ID, row)
		if rowErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, rowErr))
			continue
		}

		if err := im.store.CreateLead(ctx, lead); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		result.Created++
	}

	count, err := im.store.CountLeads(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("count leads: %w", err)
	}

	job.LeadsCount = count
	job.Status = models.JobStatusCompleted
	if job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}
	job.CSVPath = csvPath

	switch {
	case len(result.Errors) > 0:
		job.ErrorMessage = fmt.Sprintf("Imported with %d errors. First error: %s", len(result.Errors), result.Errors[0])
	case result.Duplicates > 0:
		job.ErrorMessage = fmt.Sprintf("Skipped %d duplicate rows", result.Duplicates)
	default:
		job.ErrorMessage = ""
	}

	if err := im.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}

	return result, nil
}

// findDuplicate checks the job's committed leads for a matching stable
// identifier. cid wins over data_id wins over link; first non-empty match
// decides.
func (im *Importer) findDuplicate(ctx context.Context, jobID uuid.UUID, row rowData) (bool, error) {
	keys := []struct {
		field string
		value string
	}{
		{"cid", normalizeStr(row.get("cid"), maxShortID)},
		{"data_id", normalizeStr(row.get("data_id"), maxShortID)},
		{"link", normalizeStr(row.get("link"), maxURL)},
	}

	for _, key := range keys {
		if key.value == "" {
			continue
		}
		exists, err := im.store.LeadExists(ctx, jobID, key.field, key.value)
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}
	return false, nil
}

// decodeLead builds a typed lead from one CSV row. Numeric fields fail the
// row; JSON-shaped fields degrade to absent.
func decodeLead(jobID uuid.UUID, row rowData) (*models.Lead, error) {
	title := normalizeStr(row.get("title"), maxTitle)
	if title == "" {
		return nil, fmt.Errorf("missing required field: title")
	}

	reviewCount, err := parseIntField(row.get("review_count"))
	if err != nil {
		return nil, fmt.Errorf("review_count: %w", err)
	}
	reviewRating, err := parseFloatField(row.get("review_rating"))
	if err != nil {
		return nil, fmt.Errorf("review_rating: %w", err)
	}
	latitude, err := parseFloatField(row.get("latitude"))
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	longitude, err := parseFloatField(row.get("longitude"))
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}

	lead := &models.Lead{
		ID:    uuid.New(),
		JobID: jobID,

		InputID: normalizeStr(row.get("input_id"), maxInputID),
		CID:     normalizeStr(row.get("cid"), maxShortID),
		DataID:  normalizeStr(row.get("data_id"), maxShortID),

		Title:    title,
		Link:     normalizeStr(row.get("link"), maxURL),
		Category: normalizeStr(row.get("category"), maxCategory),

		Address:  strings.TrimSpace(row.get("address")),
		Phone:    normalizeStr(row.get("phone"), maxPhone),
		Website:  normalizeStr(row.get("website"), maxURL),
		PlusCode: normalizeStr(row.get("plus_code"), maxShortID),
		Emails:   strings.TrimSpace(row.get("emails")),

		Latitude:        latitude,
		Longitude:       longitude,
		Timezone:        normalizeStr(row.get("timezone"), maxTimezone),
		CompleteAddress: parseJSONField(row.get("complete_address")),

		OpenHours:    parseJSONField(row.get("open_hours")),
		PopularTimes: parseJSONField(row.get("popular_times")),

		ReviewCount:         reviewCount,
		ReviewRating:        reviewRating,
		ReviewsPerRating:    parseJSONField(row.get("reviews_per_rating")),
		ReviewsLink:         normalizeStr(row.get("reviews_link"), maxURL),
		UserReviews:         parseJSONField(row.get("user_reviews")),
		UserReviewsExtended: parseJSONField(row.get("user_reviews_extended")),

		Thumbnail: normalizeStr(row.get("thumbnail"), maxURL),
		Images:    parseJSONField(row.get("images")),

		Status:       normalizeStr(row.get("status"), maxStatus),
		Descriptions: strings.TrimSpace(row.get("descriptions")),
		PriceRange:   normalizeStr(row.get("price_range"), maxPriceRange),
		About:        parseJSONField(row.get("about")),
		Reservations: parseJSONField(row.get("reservations")),
		OrderOnline:  parseJSONField(row.get("order_online")),
		Menu:         parseJSONField(row.get("menu")),
		Owner:        parseJSONField(row.get("owner")),

		CreatedAt: time.Now(),
	}

	return lead, nil
}

// ValidationReport is the outcome of a dry-run pass over a CSV file.
type ValidationReport struct {
	TotalRows int
	ValidRows int
	Errors    []string
	Warnings  []string
}

// ValidateFile checks a CSV for importability without writing anything:
// required fields, numeric parses, JSON well-formedness, length caps.
func ValidateFile(csvPath string) (*ValidationReport, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	lengthLimits := map[string]int{
		"title": maxTitle, "link": maxURL, "category": maxCategory,
		"phone": maxPhone, "website": maxURL, "plus_code": maxShortID,
		"timezone": maxTimezone, "reviews_link": maxURL, "thumbnail": maxURL,
		"status": maxStatus, "price_range": maxPriceRange,
		"cid": maxShortID, "data_id": maxShortID, "input_id": maxInputID,
	}
	jsonFields := []string{
		"open_hours", "popular_times", "reviews_per_rating", "user_reviews",
		"user_reviews_extended", "images", "complete_address", "about",
		"reservations", "order_online", "menu", "owner",
	}

	report := &ValidationReport{}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := columnIndex(header)

	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.TotalRows++
			report.Errors = append(report.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}

		report.TotalRows++
		row := cols.row(record)
		var rowErrors []string

		if strings.TrimSpace(row.get("title")) == "" {
			rowErrors = append(rowErrors, "missing required field: title")
		}

		if _, err := parseIntField(row.get("review_count")); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("review_count: %v", err))
		}
		for _, field := range []string{"review_rating", "latitude", "longitude"} {
			if _, err := parseFloatField(row.get(field)); err != nil {
				rowErrors = append(rowErrors, fmt.Sprintf("%s: %v", field, err))
			}
		}

		for field, limit := range lengthLimits {
			if value := row.get(field); len(value) > limit {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("Row %d: %s too long (%d > %d), will be truncated", rowNum, field, len(value), limit))
			}
		}

		for _, field := range jsonFields {
			value := strings.TrimSpace(row.get(field))
			if value == "" || value == "{}" || value == "[]" || value == "null" {
				continue
			}
			if !json.Valid([]byte(value)) {
				report.Warnings = append(report.Warnings, fmt.Sprintf("Row %d: %s has invalid JSON", rowNum, field))
			}
		}

		if len(rowErrors) > 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("Row %d: %s", rowNum, strings.Join(rowErrors, "; ")))
		} else {
			report.ValidRows++
		}
	}

	return report, nil
}

// rowData maps a CSV record through its header.
type rowData struct {
	index  map[string]int
	record []string
}

type colIndex map[string]int

func columnIndex(header []string) colIndex {
	index := make(colIndex, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	return index
}

func (c colIndex) row(record []string) rowData {
	return rowData{index: c, record: record}
}

func (r rowData) get(field string) string {
	i, ok := r.index[field]
	if !ok || i >= len(r.record) {
		return ""
	}
	return r.record[i]
}

// hasIdentifier reports whether the row carries any stable dedup key.
func (r rowData) hasIdentifier() bool {
	return strings.TrimSpace(r.get("cid")) != "" ||
		strings.TrimSpace(r.get("data_id")) != "" ||
		strings.TrimSpace(r.get("link")) != ""
}

// normalizeStr trims whitespace, collapses empty to "", and caps length.
// The cap counts runes: a multibyte character at the boundary is dropped
// whole rather than leaving a partial encoding Postgres would reject.
func normalizeStr(value string, maxLen int) string {
	value = strings.TrimSpace(value)
	if maxLen <= 0 || len(value) <= maxLen {
		return value
	}
	runes := []rune(value)
	if len(runes) <= maxLen {
		return value
	}
	return string(runes[:maxLen])
}

// parseIntField parses an optional integer column, defaulting to 0 on blank.
func parseIntField(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("not a valid integer: %q", truncate(value, 20))
	}
	return n, nil
}

// parseFloatField parses an optional decimal column; blank means absent.
func parseFloatField(value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("not a valid number: %q", truncate(value, 20))
	}
	return &f, nil
}

// parseJSONField normalizes a JSON-shaped column. Empty, "{}", "[]", "null"
// and invalid JSON all mean absent; this never fails a row.
func parseJSONField(value string) json.RawMessage {
	value = strings.TrimSpace(value)
	if value == "" || value == "{}" || value == "[]" || value == "null" {
		return nil
	}
	if !json.Valid([]byte(value)) {
		return nil
	}
	return json.RawMessage(value)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
