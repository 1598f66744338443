package api

import "time"

// RunStatus is the externally pollable view of one ingestion run.
type RunStatus struct {
	RunID           string    `json:"run_id"`
	Stage           string    `json:"stage"`
	TotalItems      int       `json:"total_items"`
	ProcessedItems  int       `json:"processed_items"`
	ProgressPercent float64   `json:"progress_percent"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// RecordView is the wire representation of a catalog record.
type RecordView struct {
	ID             int64             `json:"id"`
	ObjectKey      string            `json:"object_key"`
	ContentHash    string            `json:"content_hash,omitempty"`
	ProviderFileID string            `json:"provider_file_id,omitempty"`
	SizeBytes      int64             `json:"size_bytes"`
	ModifiedAt     *time.Time        `json:"modified_at,omitempty"`
	PreviousKeys   []string          `json:"previous_keys,omitempty"`
	MovedFrom      string            `json:"moved_from,omitempty"`
	IsCopy         bool              `json:"is_copy"`
	Status         string            `json:"status"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// QueueCounts summarizes the work queue by item state.
type QueueCounts struct {
	Pending  int `json:"pending"`
	Running  int `json:"running"`
	Finished int `json:"finished"`
}

// DaemonStatus describes the running daemon for /api/status.
type DaemonStatus struct {
	Running       bool        `json:"running"`
	PID           int         `json:"pid"`
	CatalogDBPath string      `json:"catalog_db_path"`
	LockFilePath  string      `json:"lock_file_path"`
	Queue         QueueCounts `json:"queue"`
	LatestRun     *RunStatus  `json:"latest_run,omitempty"`
}

// IngestStartResponse acknowledges an accepted ingestion run.
type IngestStartResponse struct {
	RunID string `json:"run_id"`
}

// RunListResponse wraps /api/runs output.
type RunListResponse struct {
	Runs []RunStatus `json:"runs"`
}

// RecordListResponse wraps /api/records output.
type RecordListResponse struct {
	Records []RecordView `json:"records"`
}

// ErrorResponse is the body returned on any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
