package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ScrapeJob mirrors one submission to the remote gmaps scraper API.
// ExternalID is assigned by the API and never changes after creation.
type ScrapeJob struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ExternalID string    `json:"external_id" db:"external_id"`
	Name       string    `json:"name" db:"name"`

	// Search configuration sent to the API
	Keywords []string `json:"keywords" db:"keywords"`
	Lang     string   `json:"lang" db:"lang"`
	Zoom     int      `json:"zoom" db:"zoom"`
	Lat      string   `json:"lat,omitempty" db:"lat"`
	Lon      string   `json:"lon,omitempty" db:"lon"`
	FastMode bool     `json:"fast_mode" db:"fast_mode"`
	Radius   *int     `json:"radius,omitempty" db:"radius"`
	Depth    int      `json:"depth" db:"depth"`
	Email    bool     `json:"email" db:"email"`
	MaxTime  int      `json:"max_time" db:"max_time"`
	Proxies  []string `json:"proxies,omitempty" db:"proxies"`

	Status       JobStatus `json:"status" db:"status"`
	ErrorMessage string    `json:"error_message" db:"error_message"`
	LeadsCount   int       `json:"leads_count" db:"leads_count"`
	CSVPath      string    `json:"csv_path" db:"csv_path"`

	CreatedBy string `json:"created_by" db:"created_by"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// Terminal reports whether the job can no longer change state.
func (j *ScrapeJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Age returns how long ago the job was created.
func (j *ScrapeJob) Age() time.Duration {
	return time.Since(j.CreatedAt)
}

// ReadyToPoll reports whether the job is old enough to be worth checking.
// The remote scraper needs a few minutes before a job has any status worth
// reading, so callers pass their minimum-age window.
func (j *ScrapeJob) ReadyToPoll(minAge time.Duration) bool {
	return j.Age() >= minAge
}
