package gmaps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		status    string
		wantReady bool
		wantState JobState
	}{
		{"completed", true, StateCompleted},
		{"Completed", true, StateCompleted},
		{"done", true, StateCompleted},
		{"finished", true, StateCompleted},
		{"ready", true, StateCompleted},
		{"OK", true, StateCompleted},
		{"failed", false, StateFailed},
		{"error", false, StateFailed},
		{"pending", false, StatePending},
		{"queued", false, StatePending},
		{"waiting", false, StatePending},
		{"working", false, StateRunning},
		{"in_progress", false, StateRunning},
		{"", false, StateRunning},
	}

	for _, tt := range tests {
		ready, state := NormalizeStatus(tt.status)
		if ready != tt.wantReady || state != tt.wantState {
			t.Errorf("NormalizeStatus(%q) = (%v, %s), want (%v, %s)",
				tt.status, ready, state, tt.wantReady, tt.wantState)
		}
	}
}

func TestCreateJob(t *testing.T) {
	var gotReq JobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/v1/jobs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "abc-123", "status": "pending"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	id, err := client.CreateJob(context.Background(), &JobRequest{
		Name:     "cafes",
		Keywords: []string{"cafe istanbul"},
		Lang:     "tr",
		Zoom:     15,
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if id != "abc-123" {
		t.Errorf("external id = %q, want abc-123", id)
	}
	if len(gotReq.Keywords) != 1 || gotReq.Keywords[0] != "cafe istanbul" {
		t.Errorf("keywords not forwarded: %v", gotReq.Keywords)
	}
}

func TestCreateJobRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	_, err := client.CreateJob(context.Background(), &JobRequest{Keywords: []string{"x"}})
	if err == nil {
		t.Fatal("expected error for rejected submission")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
}

func TestGetJobNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	payload, err := client.GetJob(context.Background(), "gone")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if payload != nil {
		t.Errorf("expected nil payload for 404, got %+v", payload)
	}

	ready, state, err := client.IsReady(context.Background(), "gone")
	if err != nil {
		t.Fatalf("IsReady: %v", err)
	}
	if ready || state != StateNotFound {
		t.Errorf("IsReady = (%v, %s), want (false, not_found)", ready, state)
	}
}

func TestGetJobCaseInsensitiveStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Some API versions capitalize field names.
		w.Write([]byte(`{"ID": "abc", "Status": "ok"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	payload, err := client.GetJob(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if payload.Status != "ok" {
		t.Errorf("status = %q, want ok", payload.Status)
	}
}

func TestListJobsAPIDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, srv.Client())
	if _, err := client.ListJobs(context.Background()); err == nil {
		t.Fatal("expected error when API returns 500")
	}
}

func TestDownloadCSV(t *testing.T) {
	csvBody := "title,phone\nAcme,555\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/jobs/abc/download" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	dir := t.TempDir()
	client := NewClient(srv.URL, srv.Client())

	path, err := client.DownloadCSV(context.Background(), "abc", dir)
	if err != nil {
		t.Fatalf("DownloadCSV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != csvBody {
		t.Errorf("downloaded content = %q, want %q", data, csvBody)
	}

	// 404 means not ready, not an error.
	path, err = client.DownloadCSV(context.Background(), "missing", dir)
	if err != nil {
		t.Fatalf("DownloadCSV 404: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path for 404, got %q", path)
	}
}
