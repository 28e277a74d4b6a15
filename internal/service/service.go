// Package service assembles the engine and its collaborators from the
// application configuration. Both the console and the CLI entry points
// build one Service and drive it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	gosync "sync"

	"github.com/pkg/browser"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/audit"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/checkpoint"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/engine"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/folders"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/mailclient"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/metrics"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/registry"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/store"
	appsync "github.com/akashrathod3565/Vendor-Automation-Application/internal/sync"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
)

// ErrNoRegistry is returned by LoadRegistry when no registry path is
// configured.
var ErrNoRegistry = errors.New("no vendor registry configured")

// Options overrides collaborators, mostly for tests.
type Options struct {
	Logger *slog.Logger

	// Transport replaces the IMAP/SMTP client.
	Transport transport.Transport

	// Opener opens a directory in the OS file browser.
	Opener func(path string) error

	// EngineHook adjusts the engine configuration before it is built.
	EngineHook func(*engine.Config)
}

// Service owns the long-lived components shared by every run.
type Service struct {
	Config     *model.AppConfig
	Registry   *registry.Holder
	Folders    *folders.Router
	Audit      *audit.Log
	Checkpoint *checkpoint.File
	Engine     *engine.Engine

	// Store is nil when run history is disabled.
	Store *store.SQLiteStore

	logger *slog.Logger
	opener func(path string) error

	mu       gosync.RWMutex
	reporter engine.Reporter
}

// New builds a Service for cfg. The supplier root is created if missing.
// A registry that fails to load is reported and leaves the registry
// empty; manual runs still work.
func New(cfg *model.AppConfig, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating supplier root %s: %w", cfg.Storage.Root, err)
	}

	s := &Service{
		Config:     cfg,
		Registry:   registry.NewHolder(),
		Folders:    folders.NewRouter(cfg.Storage.Root),
		Checkpoint: checkpoint.New(cfg.Storage.Checkpoint),
		logger:     logger,
		opener:     opts.Opener,
	}
	if s.opener == nil {
		s.opener = browser.OpenFile
	}

	observer := metrics.NewRecorder()
	auditOpts := []audit.Option{
		audit.WithSink(observer),
		audit.WithReporter(s.report),
		audit.WithLogger(logger),
	}
	recorders := []engine.RunRecorder{observer}

	if cfg.Storage.Database != "" {
		st, err := store.NewSQLiteStore(cfg.Storage.Database)
		if err != nil {
			return nil, fmt.Errorf("opening history store: %w", err)
		}
		s.Store = st
		auditOpts = append(auditOpts, audit.WithSink(st))
		recorders = append(recorders, st)
	}
	s.Audit = audit.New(cfg.Storage.AuditLog, auditOpts...)

	tr := opts.Transport
	if tr == nil {
		tr = mailclient.New(cfg.Mail, logger)
	}

	ecfg := engine.Config{
		Transport:  tr,
		Registry:   s.Registry,
		Folders:    s.Folders,
		Audit:      s.Audit,
		Checkpoint: s.Checkpoint,
		Recorders:  recorders,
		Reporter:   s.report,
		Logger:     logger,
		Throttle:   cfg.Throttle(),
	}
	if opts.EngineHook != nil {
		opts.EngineHook(&ecfg)
	}
	s.Engine = engine.New(ecfg)

	if cfg.Registry.Path != "" {
		if _, err := s.LoadRegistry(); err != nil {
			s.report(fmt.Sprintf("Error: loading vendor registry: %v", err))
		}
	}

	return s, nil
}

// SetReporter installs the callback receiving status lines. It may be
// swapped while runs are in flight.
func (s *Service) SetReporter(r engine.Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporter = r
}

func (s *Service) report(msg string) {
	s.mu.RLock()
	r := s.reporter
	s.mu.RUnlock()
	if r != nil {
		r(msg)
	}
}

// LoadRegistry (re)loads the configured registry file and installs it as
// the current snapshot. On failure the previous snapshot stays current.
func (s *Service) LoadRegistry() (*model.Registry, error) {
	if s.Config.Registry.Path == "" {
		return nil, ErrNoRegistry
	}
	reg, err := s.Registry.Reload(s.Config.Registry.Path)
	if err != nil {
		return nil, err
	}
	s.logger.Info("vendor registry loaded",
		"path", reg.Source,
		"version", reg.Version,
		"suppliers", len(reg.Suppliers),
		"vendors", reg.Len(),
	)
	s.report(fmt.Sprintf("Loaded %d vendors from %d suppliers (v%d)", reg.Len(), len(reg.Suppliers), reg.Version))
	return reg, nil
}

// NewScheduler parses the configured daily fetch times and returns a
// stopped scheduler calling trigger.
func (s *Service) NewScheduler(trigger appsync.Trigger, opts ...appsync.Option) (*appsync.Scheduler, error) {
	times, err := appsync.ParseDailyTimes(s.Config.Schedule.Times)
	if err != nil {
		return nil, err
	}
	opts = append([]appsync.Option{appsync.WithLogger(s.logger)}, opts...)
	return appsync.New(times, trigger, opts...), nil
}

// DispatchDefaults returns a dispatch request pre-filled from the
// dispatch configuration.
func (s *Service) DispatchDefaults() engine.DispatchRequest {
	d := s.Config.Dispatch
	return engine.DispatchRequest{
		Subject:        d.Subject,
		BodyTemplate:   d.BodyTemplate,
		AttachmentPath: d.Attachment,
		ManualCC:       d.ManualCC,
		AutoSend:       d.AutoSend,
	}
}

// FolderPath resolves the folder of a vendor address: the registry folder
// when the address is known, the Manual folder otherwise, and the supplier
// root when email is empty.
func (s *Service) FolderPath(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return s.Folders.Root
	}
	if t, ok := s.Registry.Snapshot().Lookup(email); ok {
		return s.Folders.Path(t.Supplier, t.Vendor.Email)
	}
	return s.Folders.Path(model.ManualSupplier, email)
}

// OpenFolder opens the folder of email in the OS file browser, creating
// it first so there is something to show.
func (s *Service) OpenFolder(email string) (string, error) {
	path := s.FolderPath(email)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return path, fmt.Errorf("creating folder %s: %w", path, err)
	}
	if err := s.opener(path); err != nil {
		return path, fmt.Errorf("opening folder %s: %w", path, err)
	}
	return path, nil
}

// History returns recent audit entries from the run history store.
func (s *Service) History(ctx context.Context, filter store.AuditFilter) ([]model.AuditEntry, error) {
	if s.Store == nil {
		return nil, errors.New("run history is disabled")
	}
	return s.Store.ListAudit(ctx, filter)
}

// Close releases the history store.
func (s *Service) Close() error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Close()
}
