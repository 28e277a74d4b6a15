// Package metrics exposes Prometheus counters for audit actions and worker
// runs.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

// Engine metrics
var (
	AuditActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendorauto_audit_actions_total",
			Help: "Total number of audit log entries by action",
		},
		[]string{"action"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendorauto_runs_total",
			Help: "Total number of finished worker runs",
		},
		[]string{"kind", "result"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendorauto_run_duration_seconds",
			Help:    "Duration of worker runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	RunItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendorauto_run_items_total",
			Help: "Total number of messages or vendors processed by outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Run results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Recorder feeds audit entries and run summaries into the package metrics.
// It satisfies both the audit sink and the run recorder interfaces.
type Recorder struct{}

// NewRecorder returns a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordAudit counts one audit entry.
func (Recorder) RecordAudit(_ context.Context, e model.AuditEntry) error {
	AuditActionsTotal.WithLabelValues(string(e.Action)).Inc()
	return nil
}

// RecordRun counts one finished run and its items.
func (Recorder) RecordRun(_ context.Context, run model.RunRecord) error {
	kind := string(run.Kind)

	result := ResultSuccess
	if run.Error != "" {
		result = ResultError
	}
	RunsTotal.WithLabelValues(kind, result).Inc()

	if !run.FinishedAt.IsZero() {
		RunDuration.WithLabelValues(kind).Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	}

	RunItemsTotal.WithLabelValues(kind, "succeeded").Add(float64(run.Succeeded))
	RunItemsTotal.WithLabelValues(kind, "skipped").Add(float64(run.Skipped))
	RunItemsTotal.WithLabelValues(kind, "failed").Add(float64(run.Failed))
	return nil
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down metrics server", "addr", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down metrics server", "error", err)
		}
	}()

	logger.Info("metrics server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
