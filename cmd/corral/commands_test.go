package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"corral/internal/api"
)

// newFakeDaemon serves a minimal daemon API for CLI tests.
func newFakeDaemon(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.DaemonStatus{
			Running:       true,
			PID:           4242,
			CatalogDBPath: "/data/corral.db",
			Queue:         api.QueueCounts{Pending: 1, Finished: 2},
		})
	})
	mux.HandleFunc("/api/ingest", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(api.IngestStartResponse{RunID: "run-42"})
	})
	mux.HandleFunc("/api/runs/run-42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.RunStatus{
			RunID:           "run-42",
			Stage:           "completed",
			TotalItems:      3,
			ProcessedItems:  3,
			ProgressPercent: 100,
		})
	})
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.RunListResponse{Runs: []api.RunStatus{{
			RunID: "run-42", Stage: "completed", TotalItems: 3, ProcessedItems: 3, ProgressPercent: 100,
		}}})
	})
	mux.HandleFunc("/api/records", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.RecordListResponse{Records: []api.RecordView{{
			ID: 1, ObjectKey: "photos/sunset.jpg", Status: "completed", SizeBytes: 2048,
		}}})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func runCommand(t *testing.T, server *httptest.Server, args ...string) string {
	t.Helper()

	// A config path in an empty temp dir keeps the test independent of any
	// real ~/.config/corral setup.
	configPath := filepath.Join(t.TempDir(), "config.toml")
	addr := strings.TrimPrefix(server.URL, "http://")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", configPath, "--addr", addr))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return out.String()
}

func TestStatusCommand(t *testing.T) {
	server := newFakeDaemon(t)
	out := runCommand(t, server, "status")
	if !strings.Contains(out, "4242") {
		t.Errorf("status output missing pid:\n%s", out)
	}
	if !strings.Contains(out, "/data/corral.db") {
		t.Errorf("status output missing catalog path:\n%s", out)
	}
}

func TestIngestCommandWait(t *testing.T) {
	server := newFakeDaemon(t)
	out := runCommand(t, server, "ingest", "--wait")
	if !strings.Contains(out, "run-42 accepted") {
		t.Errorf("ingest output missing run id:\n%s", out)
	}
	if !strings.Contains(out, "completed: 3/3 (100%)") {
		t.Errorf("ingest output missing terminal progress:\n%s", out)
	}
}

func TestRunsCommand(t *testing.T) {
	server := newFakeDaemon(t)
	out := runCommand(t, server, "runs")
	if !strings.Contains(out, "run-42") || !strings.Contains(out, "completed") {
		t.Errorf("runs output missing run row:\n%s", out)
	}
}

func TestRecordsCommand(t *testing.T) {
	server := newFakeDaemon(t)
	out := runCommand(t, server, "records")
	if !strings.Contains(out, "photos/sunset.jpg") {
		t.Errorf("records output missing record:\n%s", out)
	}
	if !strings.Contains(out, "2.0 KiB") {
		t.Errorf("records output missing formatted size:\n%s", out)
	}
}

func TestConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out.String(), target) {
		t.Errorf("output missing target path:\n%s", out.String())
	}

	// Re-running without --overwrite must not clobber the file.
	cmd = newRootCommand()
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil {
		t.Fatal("second init without --overwrite succeeded")
	}
}
