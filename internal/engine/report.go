package engine

import (
	"context"
	"time"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

// Reporter receives human-readable status lines.
type Reporter func(msg string)

// RunRecorder persists or observes finished runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run model.RunRecord) error
}

// ItemStatus is the outcome of one message or one vendor within a run.
type ItemStatus string

const (
	StatusOK      ItemStatus = "ok"
	StatusPartial ItemStatus = "partial"
	StatusSkipped ItemStatus = "skipped"
	StatusFailed  ItemStatus = "failed"
)

// ItemResult records what happened to one inbound message or one outbound
// vendor.
type ItemResult struct {
	// Address is the resolved sender or the target vendor address.
	Address  string
	Supplier string
	Subject  string
	Action   model.Action
	Status   ItemStatus

	// Path is the main file written for the item, if any.
	Path string

	// Attachments lists attachment files written for the item.
	Attachments []string

	Detail string

	// Errs holds per-step failures that did not stop the item.
	Errs []error
}

// Report summarises one worker run.
type Report struct {
	ID         string
	Kind       model.RunKind
	Trigger    string
	State      State
	StartedAt  time.Time
	FinishedAt time.Time

	// Checkpoint is the instant saved by a fetch run, zero when the
	// checkpoint was not advanced.
	Checkpoint time.Time

	Items []ItemResult

	// Err is the error that terminated the run early.
	Err error
}

func (r *Report) add(item ItemResult) {
	r.Items = append(r.Items, item)
}

// Counts tallies item outcomes. Partial items count as succeeded.
func (r *Report) Counts() (succeeded, skipped, failed int) {
	for _, it := range r.Items {
		switch it.Status {
		case StatusOK, StatusPartial:
			succeeded++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return succeeded, skipped, failed
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Record converts the report into its persisted summary.
func (r *Report) Record() model.RunRecord {
	succeeded, skipped, failed := r.Counts()
	rec := model.RunRecord{
		ID:         r.ID,
		Kind:       r.Kind,
		Trigger:    r.Trigger,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      len(r.Items),
		Succeeded:  succeeded,
		Skipped:    skipped,
		Failed:     failed,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}
