package gmaps

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"leadharvest/config"
	"leadharvest/models"
)

// NotReadyError is returned when an import is attempted before the remote job
// has finished.
type NotReadyError struct {
	State JobState
}

func (e *NotReadyError) Error() string {
	switch e.State {
	case StateFailed:
		return "job failed, cannot import results"
	case StateNotFound:
		return "job not found in API"
	default:
		return fmt.Sprintf("job not ready yet (status: %s)", e.State)
	}
}

// PollStats summarizes one pass over due jobs.
type PollStats struct {
	JobsChecked   int
	JobsImported  int
	LeadsImported int
	Errors        int
}

// Orchestrator drives the scrape-job state machine:
// pending -> running -> completed, or pending/running -> failed.
// It never sleeps or schedules; polling cadence belongs to the caller.
type Orchestrator struct {
	client *Client
	store  Store
	imp    *Importer
	csvDir string
}

func NewOrchestrator(client *Client, store Store, csvDir string) *Orchestrator {
	return &Orchestrator{
		client: client,
		store:  store,
		imp:    NewImporter(store),
		csvDir: csvDir,
	}
}

// Submit builds the API request from a search preset, submits it, and
// persists the accepted job with status pending. A rejected submission
// creates no local record.
func (o *Orchestrator) Submit(ctx context.Context, preset *config.SearchPreset, createdBy string) (*models.ScrapeJob, error) {
	if len(preset.Keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}

	jobReq := &JobRequest{
		Name:     preset.Name,
		Keywords: preset.Keywords,
		Lang:     preset.Lang,
		Zoom:     preset.Zoom,
		Depth:    preset.Depth,
		MaxTime:  preset.MaxTime,
		Lat:      preset.Lat,
		Lon:      preset.Lon,
		FastMode: preset.FastMode,
		Radius:   preset.Radius,
		Email:    preset.Email,
		Proxies:  preset.Proxies,
	}
	if jobReq.Lang == "" {
		jobReq.Lang = "en"
	}
	if jobReq.Zoom == 0 {
		jobReq.Zoom = 15
	}
	if jobReq.Depth == 0 {
		jobReq.Depth = 1
	}
	if jobReq.MaxTime == 0 {
		jobReq.MaxTime = 3600
	}

	externalID, err := o.client.CreateJob(ctx, jobReq)
	if err != nil {
		return nil, fmt.Errorf("submit job %s: %w", preset.Name, err)
	}
	log.Printf("Job accepted by API with ID: %s", externalID)

	now := time.Now()
	job := &models.ScrapeJob{
		ID:         uuid.New(),
		ExternalID: externalID,
		Name:       preset.Name,
		Keywords:   jobReq.Keywords,
		Lang:       jobReq.Lang,
		Zoom:       jobReq.Zoom,
		Lat:        jobReq.Lat,
		Lon:        jobReq.Lon,
		FastMode:   jobReq.FastMode,
		Depth:      jobReq.Depth,
		Email:      jobReq.Email,
		MaxTime:    jobReq.MaxTime,
		Proxies:    jobReq.Proxies,
		Status:     models.JobStatusPending,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if preset.Radius > 0 {
		radius := preset.Radius
		job.Radius = &radius
	}

	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	return job, nil
}

// Refresh pulls the remote status and advances the local state machine.
// A job the API no longer knows is left unchanged; that usually means a
// transient API hiccup, not a lost job.
func (o *Orchestrator) Refresh(ctx context.Context, job *models.ScrapeJob) error {
	// Completed and failed are terminal. A stale or contradictory API
	// answer must never move a job back out of them.
	if job.Terminal() {
		return nil
	}

	_, state, err := o.client.IsReady(ctx, job.ExternalID)
	if err != nil {
		return fmt.Errorf("refresh job %s: %w", job.ExternalID, err)
	}

	switch state {
	case StateNotFound:
		log.Printf("Job %s not found in API, keeping status %s", job.ExternalID, job.Status)
		return nil
	case StateCompleted:
		job.Status = models.JobStatusCompleted
		if job.CompletedAt == nil {
			now := time.Now()
			job.CompletedAt = &now
		}
	case StateFailed:
		job.Status = models.JobStatusFailed
		job.ErrorMessage = "Job failed"
		if payload, err := o.client.GetJob(ctx, job.ExternalID); err == nil && payload != nil && payload.Error != "" {
			job.ErrorMessage = payload.Error
		}
	case StateRunning:
		job.Status = models.JobStatusRunning
	case StatePending:
		// stays pending
	}

	job.UpdatedAt = time.Now()
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist job %s: %w", job.ExternalID, err)
	}

	log.Printf("Job %s status: %s", job.ExternalID, job.Status)
	return nil
}

// ImportIfReady re-checks readiness, downloads the result CSV, and imports
// it. The job is left untouched on download failure, so the call is
// retryable.
func (o *Orchestrator) ImportIfReady(ctx context.Context, job *models.ScrapeJob) (int, error) {
	ready, state, err := o.client.IsReady(ctx, job.ExternalID)
	if err != nil {
		return 0, fmt.Errorf("check job %s: %w", job.ExternalID, err)
	}
	if !ready {
		return 0, &NotReadyError{State: state}
	}

	csvPath, err := o.client.DownloadCSV(ctx, job.ExternalID, o.csvDir)
	if err != nil {
		return 0, fmt.Errorf("download failed for job %s: %w", job.ExternalID, err)
	}
	if csvPath == "" {
		return 0, fmt.Errorf("download failed for job %s: CSV not available yet", job.ExternalID)
	}

	result, err := o.imp.ImportFile(ctx, job, csvPath)
	if err != nil {
		return 0, fmt.Errorf("import job %s: %w", job.ExternalID, err)
	}

	log.Printf("Imported %d leads from job %s (%d duplicates, %d errors)",
		result.Created, job.ExternalID, result.Duplicates, len(result.Errors))
	return result.Created, nil
}

// SyncStats summarizes one reconciliation pass against the API's job list.
type SyncStats struct {
	Seen          int
	Created       int
	JobsImported  int
	LeadsImported int
	Errors        int
}

// SyncJobs reconciles the local job table with everything the API knows.
// Jobs submitted outside this daemon get adopted as local records, and
// completed jobs with no imported leads get their results pulled in. Errors
// on one job never stop the pass.
func (o *Orchestrator) SyncJobs(ctx context.Context) (*SyncStats, error) {
	payloads, err := o.client.ListJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	stats := &SyncStats{}
	for i := range payloads {
		payload := &payloads[i]
		if payload.ID == "" {
			continue
		}
		stats.Seen++

		job, err := o.store.GetJobByExternalID(ctx, payload.ID)
		if err != nil {
			log.Printf("Error looking up job %s: %v", payload.ID, err)
			stats.Errors++
			continue
		}

		if job == nil {
			job = jobFromPayload(payload)
			if err := o.store.CreateJob(ctx, job); err != nil {
				log.Printf("Error adopting job %s: %v", payload.ID, err)
				stats.Errors++
				continue
			}
			stats.Created++
			log.Printf("Job %s adopted from API (status %s)", job.ExternalID, job.Status)
		}

		if job.Status == models.JobStatusCompleted && job.LeadsCount == 0 {
			created, err := o.ImportIfReady(ctx, job)
			if err != nil {
				log.Printf("Error importing job %s: %v", job.ExternalID, err)
				stats.Errors++
				continue
			}
			stats.JobsImported++
			stats.LeadsImported += created
		}
	}

	return stats, nil
}

// jobFromPayload builds a local record for a job that only exists on the API
// side. The search configuration is unknown; only identity and status carry
// over.
func jobFromPayload(payload *JobPayload) *models.ScrapeJob {
	_, state := NormalizeStatus(payload.Status)

	status := models.JobStatusRunning
	switch state {
	case StateCompleted:
		status = models.JobStatusCompleted
	case StateFailed:
		status = models.JobStatusFailed
	case StatePending:
		status = models.JobStatusPending
	}

	now := time.Now()
	job := &models.ScrapeJob{
		ID:         uuid.New(),
		ExternalID: payload.ID,
		Name:       payload.Name,
		Status:     status,
		CreatedBy:  "sync",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if status == models.JobStatusCompleted {
		job.CompletedAt = &now
	}
	if status == models.JobStatusFailed && payload.Error != "" {
		job.ErrorMessage = payload.Error
	}
	return job
}

// ProcessDueJobs runs one polling pass: refresh every pending/running job
// older than minAge, importing results for jobs that just completed. Errors
// on one job never stop the pass.
func (o *Orchestrator) ProcessDueJobs(ctx context.Context, minAge time.Duration) (*PollStats, error) {
	jobs, err := o.store.ListDueJobs(ctx, time.Now().Add(-minAge))
	if err != nil {
		return nil, fmt.Errorf("list due jobs: %w", err)
	}

	stats := &PollStats{}
	for i := range jobs {
		job := &jobs[i]
		stats.JobsChecked++

		if err := o.Refresh(ctx, job); err != nil {
			log.Printf("Error refreshing job %s: %v", job.ExternalID, err)
			stats.Errors++
			continue
		}

		if job.Status == models.JobStatusCompleted && job.LeadsCount == 0 {
			created, err := o.ImportIfReady(ctx, job)
			if err != nil {
				log.Printf("Error importing job %s: %v", job.ExternalID, err)
				stats.Errors++
				continue
			}
			stats.JobsImported++
			stats.LeadsImported += created
		}
	}

	return stats, nil
}
