package model

import "time"

// RunKind distinguishes inbound fetch runs from outbound dispatch runs.
type RunKind string

const (
	RunKindFetch    RunKind = "fetch"
	RunKindDispatch RunKind = "dispatch"
)

// RunRecord is the persisted summary of a single worker run.
type RunRecord struct {
	ID         string    `db:"id"`
	Kind       RunKind   `db:"kind"`
	Trigger    string    `db:"triggered_by"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Total      int       `db:"total"`
	Succeeded  int       `db:"succeeded"`
	Skipped    int       `db:"skipped"`
	Failed     int       `db:"failed"`
	Error      string    `db:"error"`
}
