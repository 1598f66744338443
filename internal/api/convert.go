package api

import "corral/internal/catalog"

// FromRun converts a catalog run into its wire form.
func FromRun(run *catalog.Run) RunStatus {
	if run == nil {
		return RunStatus{}
	}
	return RunStatus{
		RunID:           run.ID,
		Stage:           string(run.Stage),
		TotalItems:      run.TotalItems,
		ProcessedItems:  run.ProcessedItems,
		ProgressPercent: run.ProgressPercent,
		ErrorMessage:    run.ErrorMessage,
		StartedAt:       run.StartedAt,
		UpdatedAt:       run.UpdatedAt,
	}
}

// FromRuns converts a slice of catalog runs, preserving order.
func FromRuns(runs []*catalog.Run) []RunStatus {
	if len(runs) == 0 {
		return nil
	}
	out := make([]RunStatus, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromRecord converts a catalog record into its wire form.
func FromRecord(rec *catalog.Record) RecordView {
	if rec == nil {
		return RecordView{}
	}
	return RecordView{
		ID:             rec.ID,
		ObjectKey:      rec.ObjectKey,
		ContentHash:    rec.ContentHash,
		ProviderFileID: rec.ProviderFileID,
		SizeBytes:      rec.SizeBytes,
		ModifiedAt:     rec.ModifiedAt,
		PreviousKeys:   rec.PreviousKeys,
		MovedFrom:      rec.MovedFrom,
		IsCopy:         rec.IsCopy,
		Status:         string(rec.Status),
		Metadata:       rec.Metadata,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

// FromRecords converts a slice of catalog records, preserving order.
func FromRecords(records []*catalog.Record) []RecordView {
	if len(records) == 0 {
		return nil
	}
	out := make([]RecordView, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}
