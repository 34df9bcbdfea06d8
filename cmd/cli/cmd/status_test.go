package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cirelay/pkg/api"

	"github.com/spf13/viper"
)

func TestStatusCommand_Success(t *testing.T) {
	resetViper()

	created := time.Now().Add(-2 * time.Hour)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/jobs/job-123/jobstates"):
			json.NewEncoder(w).Encode(api.ListJobStatesResponse{
				States: []api.JobStateResponse{
					{ID: "s1", JobID: "job-123", Status: "new", CreatedAt: created},
					{ID: "s2", JobID: "job-123", Status: "running", CreatedAt: created.Add(time.Minute)},
					{ID: "s3", JobID: "job-123", Status: "success", Comment: "all green", CreatedAt: created.Add(time.Hour)},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/jobs/job-123"):
			json.NewEncoder(w).Encode(api.JobResponse{
				ID:         "job-123",
				Name:       "nightly",
				RemoteciID: "rci-1",
				TopicID:    "topic-1",
				Status:     "success",
				Components: []api.ComponentResponse{
					{ID: "cmp-1", Name: "RHEL-8.0-20260801.0", Type: "Compose"},
				},
				CreatedAt: created,
				UpdatedAt: created.Add(time.Hour),
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("token", "test-token")

	output, err := executeCommand(t, "status", "job-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Job Details", "job-123", "success", "RHEL-8.0-20260801.0", "Status trail", "all green"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestStatusCommand_NotFound(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"job not found","code":"not-found"}`))
	}))
	defer server.Close()

	viper.Set("url", server.URL)
	viper.Set("token", "test-token")

	output, err := executeCommand(t, "status", "missing-job")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "Error (404)") {
		t.Errorf("expected 404 error in output, got: %s", output)
	}
}

func TestStatusCommand_MissingToken(t *testing.T) {
	resetViper()

	viper.Set("url", "http://localhost:6460")
	viper.Set("token", "")

	output, err := executeCommand(t, "status", "job-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(output, "API token not found") {
		t.Errorf("expected token error message, got: %s", output)
	}
}
