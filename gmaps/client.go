package gmaps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// JobState is the normalized remote job status.
type JobState string

const (
	StateNotFound  JobState = "not_found"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
)

// APIError is returned when the scraper API answers with an error status or
// cannot be reached at the protocol level.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("gmaps api error %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gmaps api error %d", e.StatusCode)
}

// JobRequest is the payload for creating a remote scrape job.
type JobRequest struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Lang     string   `json:"lang"`
	Zoom     int      `json:"zoom"`
	Depth    int      `json:"depth"`
	MaxTime  int      `json:"max_time"`
	Lat      string   `json:"lat,omitempty"`
	Lon      string   `json:"lon,omitempty"`
	FastMode bool     `json:"fast_mode,omitempty"`
	Radius   int      `json:"radius,omitempty"`
	Email    bool     `json:"email,omitempty"`
	Proxies  []string `json:"proxies,omitempty"`
}

// JobPayload is one job as reported by the API. The API is inconsistent about
// field casing (`status` vs `Status`); encoding/json's case-insensitive match
// covers both.
type JobPayload struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Date   string          `json:"date"`
	Data   json.RawMessage `json:"data"`
}

// Client wraps the Google Maps scraper HTTP API. The http.Client is injected
// so callers control timeouts and tests can point it at a fake server.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// CreateJob submits a new job and returns the external id assigned by the API.
func (c *Client) CreateJob(ctx context.Context, jobReq *JobRequest) (string, error) {
	body, err := json.Marshal(jobReq)
	if err != nil {
		return "", fmt.Errorf("marshal job request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result JobPayload
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("api did not return a job id")
	}

	return result.ID, nil
}

// GetJob fetches a single job. A 404 means the job does not exist and is
// reported as (nil, nil), not as an error.
func (c *Client) GetJob(ctx context.Context, externalID string) (*JobPayload, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/jobs/"+externalID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", externalID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var payload JobPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", externalID, err)
	}
	return &payload, nil
}

// ListJobs fetches all jobs known to the API. An unreachable API surfaces as
// an error so callers can tell "no jobs" apart from "API down".
func (c *Client) ListJobs(ctx context.Context) ([]JobPayload, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/jobs", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var payloads []JobPayload
	if err := json.NewDecoder(resp.Body).Decode(&payloads); err != nil {
		return nil, fmt.Errorf("decode job list: %w", err)
	}
	return payloads, nil
}

// DeleteJob removes a job from the API.
func (c *Client) DeleteJob(ctx context.Context, externalID string) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/api/v1/jobs/"+externalID, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", externalID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// IsReady checks whether a job's results can be downloaded.
func (c *Client) IsReady(ctx context.Context, externalID string) (bool, JobState, error) {
	payload, err := c.GetJob(ctx, externalID)
	if err != nil {
		return false, "", err
	}
	if payload == nil {
		return false, StateNotFound, nil
	}
	ready, state := NormalizeStatus(payload.Status)
	return ready, state, nil
}

// NormalizeStatus maps the API's loose status vocabulary onto JobState.
// Anything unrecognized is assumed to still be running.
func NormalizeStatus(status string) (ready bool, state JobState) {
	switch strings.ToLower(status) {
	case "completed", "done", "finished", "ready", "ok":
		return true, StateCompleted
	case "failed", "error":
		return false, StateFailed
	case "pending", "queued", "waiting":
		return false, StatePending
	default:
		return false, StateRunning
	}
}

// DownloadCSV streams a job's result CSV into destDir and returns the file
// path. A 404 means the results are not ready yet, reported as ("", nil).
func (c *Client) DownloadCSV(ctx context.Context, externalID, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/jobs/"+externalID+"/download", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download csv for %s: %w", externalID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Printf("CSV not ready yet for job %s", externalID)
		return "", nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	outPath := filepath.Join(destDir, externalID+".csv")
	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("write csv file: %w", err)
	}

	return outPath, nil
}
