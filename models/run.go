package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PollRun records one polling pass over pending jobs, for the ops database.
type PollRun struct {
	ID            int64      `json:"id" db:"id"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	Status        RunStatus  `json:"status" db:"status"`
	JobsChecked   int        `json:"jobs_checked" db:"jobs_checked"`
	JobsImported  int        `json:"jobs_imported" db:"jobs_imported"`
	LeadsImported int        `json:"leads_imported" db:"leads_imported"`
	ErrorsCount   int        `json:"errors_count" db:"errors_count"`
}
