// Package audit implements the append-only CSV activity log.
package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

// Header is the first row of every audit log file.
var Header = []string{"timestamp", "action", "supplier", "vendor_emails", "details"}

// Sink receives a copy of every audit entry after it has been written to
// the CSV file (for example the run history store or metrics).
type Sink interface {
	RecordAudit(ctx context.Context, entry model.AuditEntry) error
}

// Log appends audit entries to a CSV file. It is safe for concurrent use;
// each entry is written with a single append so rows never interleave.
type Log struct {
	path   string
	mu     sync.Mutex
	sinks  []Sink
	report func(string)
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithSink adds a secondary destination for entries.
func WithSink(s Sink) Option {
	return func(l *Log) {
		if s != nil {
			l.sinks = append(l.sinks, s)
		}
	}
}

// WithReporter sets the status callback that receives logging failures.
func WithReporter(report func(string)) Option {
	return func(l *Log) { l.report = report }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates a log writing to path. The file and its parent directory
// are created on first write.
func New(path string, opts ...Option) *Log {
	l := &Log{
		path:   path,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the CSV file path.
func (l *Log) Path() string {
	return l.path
}

// Append records one action. It never fails: write errors are reported
// through the status callback and the logger.
func (l *Log) Append(action model.Action, supplier string, vendorEmails []string, details string) {
	l.Record(context.Background(), model.AuditEntry{
		Action:       action,
		Supplier:     supplier,
		VendorEmails: vendorEmails,
		Details:      details,
	})
}

// Record writes entry, stamping it with the current time when its
// timestamp is zero, and forwards it to every sink.
func (l *Log) Record(ctx context.Context, entry model.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}

	if err := l.write(entry); err != nil {
		l.fail(fmt.Sprintf("Audit log write failed: %v", err))
	}

	for _, s := range l.sinks {
		if err := s.RecordAudit(ctx, entry); err != nil {
			l.logger.Warn("audit sink failed", "action", entry.Action, "error", err)
		}
	}
}

func (l *Log) write(entry model.AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audit log: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if info.Size() == 0 {
		_ = w.Write(Header)
	}
	_ = w.Write(row(entry))
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encoding audit row: %w", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("appending audit row: %w", err)
	}
	return nil
}

func (l *Log) fail(msg string) {
	l.logger.Error(msg, "path", l.path)
	if l.report != nil {
		l.report(msg)
	}
}

func row(e model.AuditEntry) []string {
	return []string{
		e.Timestamp.Format(time.RFC3339Nano),
		string(e.Action),
		e.Supplier,
		strings.Join(e.VendorEmails, ";"),
		e.Details,
	}
}

// ReadAll parses every entry of the audit log at path. A missing file
// yields no entries.
func ReadAll(path string) ([]model.AuditEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	var entries []model.AuditEntry
	for line := 0; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading audit log: %w", err)
		}
		if line == 0 && rec[0] == Header[0] {
			continue
		}

		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("audit log line %d: %w", line+1, err)
		}
		var emails []string
		if rec[3] != "" {
			emails = strings.Split(rec[3], ";")
		}
		entries = append(entries, model.AuditEntry{
			Timestamp:    ts,
			Action:       model.Action(rec[1]),
			Supplier:     rec[2],
			VendorEmails: emails,
			Details:      rec[4],
		})
	}
	return entries, nil
}
