// Package engine runs the inbound matching and outbound dispatch workers
// against a mail transport, the vendor registry and the supplier folders.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/audit"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/checkpoint"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/folders"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/identity"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/template"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
)

// DefaultThrottle is the pause between vendors during dispatch.
const DefaultThrottle = 250 * time.Millisecond

// Snapshotter supplies the registry snapshot a run works against.
type Snapshotter interface {
	Snapshot() *model.Registry
}

// Config wires an Engine. Transport, Registry, Folders, Audit and
// Checkpoint are required.
type Config struct {
	Transport  transport.Transport
	Registry   Snapshotter
	Folders    *folders.Router
	Audit      *audit.Log
	Checkpoint *checkpoint.File

	Renderer   *template.Renderer
	Resolver   *identity.Resolver
	Strategies []Strategy
	Recorders  []RunRecorder
	Reporter   Reporter
	Logger     *slog.Logger

	// StateHook, when set, is called on every inbound state transition.
	StateHook func(runID string, s State)

	Throttle time.Duration
	Now      func() time.Time
	Sleep    func(time.Duration)
}

// Engine executes fetch and dispatch runs. Runs share no lock; any number
// may be in flight at once.
type Engine struct {
	cfg Config
}

// New creates an engine, filling optional fields with defaults.
func New(cfg Config) *Engine {
	if cfg.Renderer == nil {
		cfg.Renderer = template.NewRenderer()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = identity.NewResolver()
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Throttle < 0 {
		cfg.Throttle = 0
	}
	return &Engine{cfg: cfg}
}

// FetchRequest parameterises an inbound run.
type FetchRequest struct {
	// ManualEmail restricts matching to this single address, filed under
	// the "Manual" supplier.
	ManualEmail string

	// Trigger names what started the run ("schedule", "manual", "cli").
	Trigger string
}

// DispatchRequest parameterises an outbound run.
type DispatchRequest struct {
	// ManualEmail sends to this address only instead of the registry.
	ManualEmail string

	Subject        string
	BodyTemplate   string
	AttachmentPath string
	ManualCC       string
	AutoSend       bool
	Trigger        string
}

// FetchAsync starts Fetch on its own goroutine and calls done with the
// report. It returns immediately.
func (e *Engine) FetchAsync(ctx context.Context, req FetchRequest, done func(*Report)) {
	e.spawn(model.RunKindFetch, func() *Report { return e.Fetch(ctx, req) }, done)
}

// DispatchAsync starts Dispatch on its own goroutine and calls done with
// the report. It returns immediately.
func (e *Engine) DispatchAsync(ctx context.Context, req DispatchRequest, done func(*Report)) {
	e.spawn(model.RunKindDispatch, func() *Report { return e.Dispatch(ctx, req) }, done)
}

func (e *Engine) spawn(kind model.RunKind, run func() *Report, done func(*Report)) {
	go func() {
		var rep *Report
		defer func() {
			if r := recover(); r != nil {
				e.report(fmt.Sprintf("Error: %s run aborted: %v", kind, r))
				rep = &Report{Kind: kind, State: StateFailed, Err: fmt.Errorf("run panicked: %v", r)}
			}
			if done != nil {
				done(rep)
			}
		}()
		rep = run()
	}()
}

func (e *Engine) newReport(kind model.RunKind, trigger string) *Report {
	if trigger == "" {
		trigger = "manual"
	}
	return &Report{
		ID:        uuid.NewString(),
		Kind:      kind,
		Trigger:   trigger,
		State:     StateIdle,
		StartedAt: e.cfg.Now(),
	}
}

// finish stamps the report and hands its summary to every recorder.
func (e *Engine) finish(ctx context.Context, rep *Report) {
	rep.FinishedAt = e.cfg.Now()
	succeeded, skipped, failed := rep.Counts()
	e.cfg.Logger.Info("run finished",
		"run_id", rep.ID,
		"kind", rep.Kind,
		"trigger", rep.Trigger,
		"state", rep.State,
		"succeeded", succeeded,
		"skipped", skipped,
		"failed", failed,
		"duration", rep.Duration(),
	)

	record := rep.Record()
	for _, r := range e.cfg.Recorders {
		if err := r.RecordRun(context.WithoutCancel(ctx), record); err != nil {
			e.cfg.Logger.Warn("recording run failed", "run_id", rep.ID, "error", err)
		}
	}
}

// connect acquires a session; the caller must release it with
// closeSession on every path.
func (e *Engine) connect(ctx context.Context) (transport.Session, error) {
	return e.cfg.Transport.Connect(ctx)
}

func (e *Engine) closeSession(sess transport.Session) {
	if err := sess.Close(); err != nil {
		e.cfg.Logger.Warn("closing mail session", "error", err)
	}
}

func (e *Engine) report(msg string) {
	e.cfg.Logger.Info(msg)
	if e.cfg.Reporter != nil {
		e.cfg.Reporter(msg)
	}
}

func (e *Engine) reportf(format string, args ...any) {
	e.report(fmt.Sprintf(format, args...))
}

func (e *Engine) warnShared(f folders.VendorFolder, supplier, email string) {
	if f.SharedWith == "" {
		return
	}
	e.reportf("Warning: folder %s belongs to %s and is shared with %s <%s>", f.Base, f.SharedWith, supplier, email)
}
