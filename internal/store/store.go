package store

import (
	"context"
	"time"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

// AuditFilter controls filtering and pagination for audit queries. Results
// are newest first.
type AuditFilter struct {
	Action   *string
	Supplier *string
	Since    *time.Time
	Limit    int
	Offset   int
}

// RunFilter controls filtering and pagination for run history queries.
// Results are ordered by start time, newest first.
type RunFilter struct {
	Kind  *string
	Limit int
}

// Store persists the audit mirror and run history.
type Store interface {
	// === Audit mirror ===

	RecordAudit(ctx context.Context, e model.AuditEntry) error
	ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error)
	CountAudit(ctx context.Context, filter AuditFilter) (int, error)

	// === Runs ===

	RecordRun(ctx context.Context, run model.RunRecord) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error)
	GetRun(ctx context.Context, id string) (*model.RunRecord, error)

	Close() error
}
