package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"leadharvest/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Scrape jobs
// =============================================================================

func (s *PostgresStore) CreateJob(ctx context.Context, j *models.ScrapeJob) error {
	query := `
		INSERT INTO scrape_jobs (
			id, external_id, name, keywords, lang, zoom, lat, lon, fast_mode,
			radius, depth, email, max_time, proxies, status, error_message,
			leads_count, csv_path, created_by, created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)`

	_, err := s.pool.Exec(ctx, query,
		j.ID, j.ExternalID, j.Name, orEmptySlice(j.Keywords), j.Lang, j.Zoom, j.Lat, j.Lon, j.FastMode,
		j.Radius, j.Depth, j.Email, j.MaxTime, orEmptySlice(j.Proxies), j.Status, j.ErrorMessage,
		j.LeadsCount, j.CSVPath, j.CreatedBy, j.CreatedAt, j.UpdatedAt, j.CompletedAt,
	)
	return err
}

func (s *PostgresStore) UpdateJob(ctx context.Context, j *models.ScrapeJob) error {
	query := `
		UPDATE scrape_jobs SET
			status = $2,
			error_message = $3,
			leads_count = $4,
			csv_path = $5,
			updated_at = NOW(),
			completed_at = $6
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		j.ID, j.Status, j.ErrorMessage, j.LeadsCount, j.CSVPath, j.CompletedAt,
	)
	return err
}

const jobColumns = `
	id, external_id, name, keywords, lang, zoom, lat, lon, fast_mode,
	radius, depth, email, max_time, proxies, status, error_message,
	leads_count, csv_path, created_by, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (*models.ScrapeJob, error) {
	var j models.ScrapeJob
	err := row.Scan(
		&j.ID, &j.ExternalID, &j.Name, &j.Keywords, &j.Lang, &j.Zoom, &j.Lat, &j.Lon, &j.FastMode,
		&j.Radius, &j.Depth, &j.Email, &j.MaxTime, &j.Proxies, &j.Status, &j.ErrorMessage,
		&j.LeadsCount, &j.CSVPath, &j.CreatedBy, &j.CreatedAt, &j.UpdatedAt, &j.CompletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) GetJobByID(ctx context.Context, id uuid.UUID) (*models.ScrapeJob, error) {
	return scanJob(s.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM scrape_jobs WHERE id = $1`, id))
}

func (s *PostgresStore) GetJobByExternalID(ctx context.Context, externalID string) (*models.ScrapeJob, error) {
	return scanJob(s.pool.QueryRow(ctx, `SELECT`+jobColumns+` FROM scrape_jobs WHERE external_id = $1`, externalID))
}

// ListDueJobs returns pending/running jobs created before olderThan, the set
// the poller should check this pass.
func (s *PostgresStore) ListDueJobs(ctx context.Context, olderThan time.Time) ([]models.ScrapeJob, error) {
	query := `SELECT` + jobColumns + `
		FROM scrape_jobs
		WHERE status IN ('pending', 'running') AND created_at <= $1
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.ScrapeJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// =============================================================================
// Leads
// =============================================================================

func (s *PostgresStore) CreateLead(ctx context.Context, l *models.Lead) error {
	query := `
		INSERT INTO leads (
			id, job_id, input_id, cid, data_id, title, link, category,
			address, phone, website, plus_code, emails,
			latitude, longitude, timezone, complete_address,
			open_hours, popular_times,
			review_count, review_rating, reviews_per_rating, reviews_link,
			user_reviews, user_reviews_extended, thumbnail, images,
			status, descriptions, price_range, about, reservations,
			order_online, menu, owner, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
			$29, $30, $31, $32, $33, $34, $35, $36
		)`

	_, err := s.pool.Exec(ctx, query,
		l.ID, l.JobID, l.InputID, l.CID, l.DataID, l.Title, l.Link, l.Category,
		l.Address, l.Phone, l.Website, l.PlusCode, l.Emails,
		l.Latitude, l.Longitude, l.Timezone, l.CompleteAddress,
		l.OpenHours, l.PopularTimes,
		l.ReviewCount, l.ReviewRating, l.ReviewsPerRating, l.ReviewsLink,
		l.UserReviews, l.UserReviewsExtended, l.Thumbnail, l.Images,
		l.Status, l.Descriptions, l.PriceRange, l.About, l.Reservations,
		l.OrderOnline, l.Menu, l.Owner, l.CreatedAt,
	)
	return err
}

// LeadExists checks a job's leads for a dedup key match. Only the stable
// identifier columns are queryable; anything else is a programming error.
func (s *PostgresStore) LeadExists(ctx context.Context, jobID uuid.UUID, field, value string) (bool, error) {
	switch field {
	case "cid", "data_id", "link":
	default:
		return false, fmt.Errorf("lead lookup on unsupported field: %s", field)
	}

	query := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM leads WHERE job_id = $1 AND %s = $2)`, field)

	var exists bool
	if err := s.pool.QueryRow(ctx, query, jobID, value).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresStore) CountLeads(ctx context.Context, jobID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE job_id = $1`, jobID).Scan(&count)
	return count, err
}

const leadColumns = `
	id, job_id, input_id, cid, data_id, title, link, category,
	address, phone, website, plus_code, emails,
	latitude, longitude, timezone, complete_address,
	open_hours, popular_times,
	review_count, review_rating, reviews_per_rating, reviews_link,
	user_reviews, user_reviews_extended, thumbnail, images,
	status, descriptions, price_range, about, reservations,
	order_online, menu, owner, created_at`

func scanLead(row pgx.Row) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(
		&l.ID, &l.JobID, &l.InputID, &l.CID, &l.DataID, &l.Title, &l.Link, &l.Category,
		&l.Address, &l.Phone, &l.Website, &l.PlusCode, &l.Emails,
		&l.Latitude, &l.Longitude, &l.Timezone, &l.CompleteAddress,
		&l.OpenHours, &l.PopularTimes,
		&l.ReviewCount, &l.ReviewRating, &l.ReviewsPerRating, &l.ReviewsLink,
		&l.UserReviews, &l.UserReviewsExtended, &l.Thumbnail, &l.Images,
		&l.Status, &l.Descriptions, &l.PriceRange, &l.About, &l.Reservations,
		&l.OrderOnline, &l.Menu, &l.Owner, &l.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) GetLeadByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	return scanLead(s.pool.QueryRow(ctx, `SELECT`+leadColumns+` FROM leads WHERE id = $1`, id))
}

// ListLeadsNeedingScrape returns leads with a website but no extraction yet.
func (s *PostgresStore) ListLeadsNeedingScrape(ctx context.Context, limit int) ([]models.Lead, error) {
	query := `SELECT` + leadColumns + `
		FROM leads
		WHERE website <> ''
		  AND NOT EXISTS (SELECT 1 FROM website_extractions e WHERE e.lead_id = leads.id)
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, rows.Err()
}

// =============================================================================
// Website extractions
// =============================================================================

func (s *PostgresStore) UpsertExtraction(ctx context.Context, e *models.WebsiteExtraction) error {
	headings, err := json.Marshal(orEmptyMap(e.Headings))
	if err != nil {
		return fmt.Errorf("marshal headings: %w", err)
	}
	navLinks, err := json.Marshal(orEmptyNav(e.NavigationLinks))
	if err != nil {
		return fmt.Errorf("marshal navigation: %w", err)
	}
	social, err := json.Marshal(orEmptyStrMap(e.SocialLinks))
	if err != nil {
		return fmt.Errorf("marshal social links: %w", err)
	}

	query := `
		INSERT INTO website_extractions (
			id, lead_id, url, final_url, status, error_message, http_status_code,
			emails, emails_count, page_title, meta_description, meta_keywords,
			headings, paragraphs, navigation_links, footer_content,
			phone_numbers, social_links, full_text, full_text_length,
			scraped_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23
		)
		ON CONFLICT (lead_id) DO UPDATE SET
			url = EXCLUDED.url,
			final_url = EXCLUDED.final_url,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			http_status_code = EXCLUDED.http_status_code,
			emails = EXCLUDED.emails,
			emails_count = EXCLUDED.emails_count,
			page_title = EXCLUDED.page_title,
			meta_description = EXCLUDED.meta_description,
			meta_keywords = EXCLUDED.meta_keywords,
			headings = EXCLUDED.headings,
			paragraphs = EXCLUDED.paragraphs,
			navigation_links = EXCLUDED.navigation_links,
			footer_content = EXCLUDED.footer_content,
			phone_numbers = EXCLUDED.phone_numbers,
			social_links = EXCLUDED.social_links,
			full_text = EXCLUDED.full_text,
			full_text_length = EXCLUDED.full_text_length,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = NOW()`

	_, err = s.pool.Exec(ctx, query,
		e.ID, e.LeadID, e.URL, e.FinalURL, e.Status, e.ErrorMessage, e.HTTPStatusCode,
		orEmptySlice(e.Emails), e.EmailsCount, e.PageTitle, e.MetaDescription, e.MetaKeywords,
		headings, orEmptySlice(e.Paragraphs), navLinks, e.FooterContent,
		orEmptySlice(e.PhoneNumbers), social, e.FullText, e.FullTextLength,
		e.ScrapedAt, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetExtractionByLead(ctx context.Context, leadID uuid.UUID) (*models.WebsiteExtraction, error) {
	query := `
		SELECT id, lead_id, url, final_url, status, error_message, http_status_code,
			emails, emails_count, page_title, meta_description, meta_keywords,
			headings, paragraphs, navigation_links, footer_content,
			phone_numbers, social_links, full_text, full_text_length,
			scraped_at, created_at, updated_at
		FROM website_extractions WHERE lead_id = $1`

	var e models.WebsiteExtraction
	var headings, navLinks, social []byte
	err := s.pool.QueryRow(ctx, query, leadID).Scan(
		&e.ID, &e.LeadID, &e.URL, &e.FinalURL, &e.Status, &e.ErrorMessage, &e.HTTPStatusCode,
		&e.Emails, &e.EmailsCount, &e.PageTitle, &e.MetaDescription, &e.MetaKeywords,
		&headings, &e.Paragraphs, &navLinks, &e.FooterContent,
		&e.PhoneNumbers, &social, &e.FullText, &e.FullTextLength,
		&e.ScrapedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(headings, &e.Headings); err != nil {
		return nil, fmt.Errorf("unmarshal headings: %w", err)
	}
	if err := json.Unmarshal(navLinks, &e.NavigationLinks); err != nil {
		return nil, fmt.Errorf("unmarshal navigation: %w", err)
	}
	if err := json.Unmarshal(social, &e.SocialLinks); err != nil {
		return nil, fmt.Errorf("unmarshal social links: %w", err)
	}
	return &e, nil
}

// ExtractionStats aggregates scrape progress for reporting.
type ExtractionStats struct {
	LeadsWithWebsite int
	Scraped          int
	ByStatus         map[models.ExtractionStatus]int
	WithEmails       int
	TotalEmails      int
}

func (s *PostgresStore) GetExtractionStats(ctx context.Context) (*ExtractionStats, error) {
	stats := &ExtractionStats{ByStatus: make(map[models.ExtractionStatus]int)}

	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE website <> ''`).Scan(&stats.LeadsWithWebsite)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM website_extractions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status models.ExtractionStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.Scraped += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE emails_count > 0), COALESCE(SUM(emails_count), 0)
		FROM website_extractions`).Scan(&stats.WithEmails, &stats.TotalEmails)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// Nil slices and maps would land as SQL NULL; the extraction columns are
// NOT NULL, so absent means empty.
func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

func orEmptyStrMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptyNav(n []models.NavLink) []models.NavLink {
	if n == nil {
		return []models.NavLink{}
	}
	return n
}
