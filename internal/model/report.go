package model

import "time"

// KindResult is the outcome of fetching one entity kind from one provider
// for one league.
type KindResult struct {
	League      League     `json:"league"`
	Kind        EntityKind `json:"kind"`
	Provider    string     `json:"provider"`
	Fetched     int        `json:"fetched"`
	Validated   int        `json:"validated"`
	Quarantined int        `json:"quarantined"`
	Persisted   int        `json:"persisted"`
	Failed      int        `json:"failed"`
	Skipped     bool       `json:"skipped,omitempty"`
	SkipReason  string     `json:"skip_reason,omitempty"`
	Duration    int64      `json:"duration_ms"`
	Error       string     `json:"error,omitempty"`
}

// FetchReport summarizes one pipeline invocation. Every invocation ends in
// a report even when individual units failed; a unit that could not run at
// all appears with Skipped or Error set rather than vanishing.
type FetchReport struct {
	RunID      string       `json:"run_id"`
	Source     string       `json:"source"` // source-set requested (primary, live, legacy)
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []KindResult `json:"results"`
}

// Totals sums the per-kind counters across the whole run.
func (r *FetchReport) Totals() (fetched, validated, quarantined, persisted, failed int) {
	for _, kr := range r.Results {
		fetched += kr.Fetched
		validated += kr.Validated
		quarantined += kr.Quarantined
		persisted += kr.Persisted
		failed += kr.Failed
	}
	return
}

// Failed reports whether any unit recorded a hard error.
func (r *FetchReport) Failed() bool {
	for _, kr := range r.Results {
		if kr.Error != "" {
			return true
		}
	}
	return false
}

// ExportReport summarizes one export invocation.
type ExportReport struct {
	League     League     `json:"league"`
	Kind       EntityKind `json:"kind"`
	Format     string     `json:"format"`
	Path       string     `json:"path"`
	Rows       int        `json:"rows"`
	FinishedAt time.Time  `json:"finished_at"`
}
