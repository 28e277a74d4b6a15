package app

import (
	"context"
	"time"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/engine"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/service"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/store"
	appsync "github.com/akashrathod3565/Vendor-Automation-Application/internal/sync"
)

// Runner starts worker runs without blocking the caller.
type Runner interface {
	FetchAsync(ctx context.Context, req engine.FetchRequest, done func(*engine.Report))
	DispatchAsync(ctx context.Context, req engine.DispatchRequest, done func(*engine.Report))
}

// Scheduler is the part of the fetch scheduler the console drives.
type Scheduler interface {
	FetchNow()
	Stop()
	NextRun() time.Time
	Times() []appsync.ClockTime
}

// Deps are the console's collaborators.
type Deps struct {
	Runner    Runner
	Scheduler Scheduler

	Registry       func() *model.Registry
	ReloadRegistry func() (*model.Registry, error)
	OpenFolder     func(email string) (string, error)
	History        func(ctx context.Context, limit int) ([]model.AuditEntry, error)

	// Defaults pre-fill the compose form.
	Defaults engine.DispatchRequest

	Now func() time.Time
}

// DepsFor wires the console to a service and its scheduler.
func DepsFor(s *service.Service, sched Scheduler) Deps {
	return Deps{
		Runner:         s.Engine,
		Scheduler:      sched,
		Registry:       s.Registry.Snapshot,
		ReloadRegistry: s.LoadRegistry,
		OpenFolder:     s.OpenFolder,
		History: func(ctx context.Context, limit int) ([]model.AuditEntry, error) {
			return s.History(ctx, store.AuditFilter{Limit: limit})
		},
		Defaults: s.DispatchDefaults(),
		Now:      time.Now,
	}
}
