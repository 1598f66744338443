package catalog

import "time"

// IngestionStatus represents the processing lifecycle of a catalog record.
type IngestionStatus string

const (
	StatusPending    IngestionStatus = "pending"
	StatusProcessing IngestionStatus = "processing"
	StatusCompleted  IngestionStatus = "completed"
	StatusFailed     IngestionStatus = "failed"
)

// Record represents one cataloged object. Records are created sparse at
// discovery time and enriched after worker processing completes.
type Record struct {
	ID             int64
	ObjectKey      string
	ContentHash    string
	ProviderFileID string
	SizeBytes      int64
	ModifiedAt     *time.Time
	PreviousKeys   []string
	MovedFrom      string
	MoveDetectedAt *time.Time
	IsCopy         bool
	Status         IngestionStatus
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filename returns the final path element of the record's object key.
func (r *Record) Filename() string {
	if r == nil {
		return ""
	}
	key := r.ObjectKey
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}

// RunStage represents the lifecycle of an ingestion run.
type RunStage string

const (
	StageFetching       RunStage = "fetching"
	StageEnqueueing     RunStage = "enqueueing"
	StageWaitingForJobs RunStage = "waiting_for_jobs"
	StageCompleted      RunStage = "completed"
	StageFailed         RunStage = "failed"
)

// Terminal reports whether the stage ends a run.
func (s RunStage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Run is the durable, externally pollable state of one ingestion run.
type Run struct {
	ID              string
	Stage           RunStage
	TotalItems      int
	ProcessedItems  int
	ProgressPercent float64
	ErrorMessage    string
	StartedAt       time.Time
	UpdatedAt       time.Time
}
