package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// SQLite serialises writers anyway, and ":memory:" databases exist per
	// connection.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// RecordAudit mirrors one audit log entry into the database.
func (s *SQLiteStore) RecordAudit(ctx context.Context, e model.AuditEntry) error {
	emails := e.VendorEmails
	if emails == nil {
		emails = []string{}
	}
	emailsJSON, err := json.Marshal(emails)
	if err != nil {
		return fmt.Errorf("marshaling vendor emails: %w", err)
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (ts, action, supplier, vendor_emails, details)
		VALUES (?, ?, ?, ?, ?)`,
		ts.UTC(), string(e.Action), e.Supplier, string(emailsJSON), e.Details,
	)
	if err != nil {
		return fmt.Errorf("recording audit entry %s: %w", e.Action, err)
	}

	return nil
}

func auditConditions(filter AuditFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Action != nil && *filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, *filter.Action)
	}
	if filter.Supplier != nil {
		conditions = append(conditions, "supplier = ?")
		args = append(args, *filter.Supplier)
	}
	if filter.Since != nil {
		conditions = append(conditions, "ts >= ?")
		args = append(args, filter.Since.UTC())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// ListAudit retrieves mirrored audit entries matching filter, newest first.
func (s *SQLiteStore) ListAudit(
	ctx context.Context,
	filter AuditFilter,
) ([]model.AuditEntry, error) {
	where, args := auditConditions(filter)

	query := "SELECT ts, action, supplier, vendor_emails, details FROM audit_entries" +
		where + " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountAudit returns how many mirrored entries match filter. Limit and
// Offset are ignored.
func (s *SQLiteStore) CountAudit(ctx context.Context, filter AuditFilter) (int, error) {
	where, args := auditConditions(filter)

	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM audit_entries"+where, args...); err != nil {
		return 0, fmt.Errorf("counting audit entries: %w", err)
	}
	return n, nil
}

// RecordRun inserts or replaces a run summary.
func (s *SQLiteStore) RecordRun(ctx context.Context, run model.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("recording run: empty id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, kind, triggered_by, started_at, finished_at,
			total, succeeded, skipped, failed, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Trigger, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Total, run.Succeeded, run.Skipped, run.Failed, run.Error,
	)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", run.ID, err)
	}

	return nil
}

// ListRuns retrieves run summaries, most recently started first.
func (s *SQLiteStore) ListRuns(
	ctx context.Context,
	filter RunFilter,
) ([]model.RunRecord, error) {
	var args []interface{}
	query := "SELECT * FROM runs"
	if filter.Kind != nil && *filter.Kind != "" {
		query += " WHERE kind = ?"
		args = append(args, *filter.Kind)
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var runs []model.RunRecord
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}

// GetRun retrieves a single run summary by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	var run model.RunRecord
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}
	return &run, nil
}

// scanAudit scans a single audit row from a sqlx.Rows result set.
func scanAudit(rows *sqlx.Rows) (model.AuditEntry, error) {
	var (
		e      model.AuditEntry
		ts     time.Time
		action string
		emails string
	)

	if err := rows.Scan(&ts, &action, &e.Supplier, &emails, &e.Details); err != nil {
		return model.AuditEntry{}, fmt.Errorf("scanning audit row: %w", err)
	}

	e.Timestamp = ts
	e.Action = model.Action(action)

	if emails != "" {
		if err := json.Unmarshal([]byte(emails), &e.VendorEmails); err != nil {
			return model.AuditEntry{}, fmt.Errorf("unmarshaling vendor emails: %w", err)
		}
	}

	return e, nil
}
