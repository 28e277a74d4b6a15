package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/engine"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/identity"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/store"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport/fake"
)

var now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *model.AppConfig {
	t.Helper()
	dir := t.TempDir()

	registryPath := filepath.Join(dir, "vendors.csv")
	require.NoError(t, os.WriteFile(registryPath,
		[]byte("SupplierName,VendorEmail,VendorName\nAcme,ops@acme.com,Acme Ops\n"), 0o644))

	cfg := model.DefaultAppConfig()
	root := filepath.Join(dir, "Suppliers")
	cfg.Storage = model.StorageConfig{
		Root:       root,
		AuditLog:   filepath.Join(root, "activity_log.csv"),
		Checkpoint: filepath.Join(root, "last_fetch.json"),
		Database:   filepath.Join(dir, "vendorauto.db"),
	}
	cfg.Registry.Path = registryPath
	cfg.Dispatch.ThrottleMs = 0
	return cfg
}

func newService(t *testing.T, cfg *model.AppConfig, tr *fake.Transport, opened *[]string) *Service {
	t.Helper()
	s, err := New(cfg, Options{
		Transport: tr,
		Opener: func(path string) error {
			if opened != nil {
				*opened = append(*opened, path)
			}
			return nil
		},
		EngineHook: func(c *engine.Config) {
			c.Now = func() time.Time { return now }
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewLoadsRegistry(t *testing.T) {
	cfg := testConfig(t)
	s := newService(t, cfg, fake.New(), nil)

	snap := s.Registry.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, 1, snap.Len())
	assert.DirExists(t, cfg.Storage.Root)
	require.NotNil(t, s.Store)
}

func TestNewReportsBadRegistry(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Registry.Path, []byte("Name,Phone\nx,1\n"), 0o644))

	s := newService(t, cfg, fake.New(), nil)
	assert.Equal(t, 0, s.Registry.Snapshot().Len())

	var lines []string
	s.SetReporter(func(msg string) { lines = append(lines, msg) })
	_, err := s.LoadRegistry()
	require.Error(t, err)
	assert.Empty(t, lines)
}

func TestLoadRegistryWithoutPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.Path = ""
	s := newService(t, cfg, fake.New(), nil)

	_, err := s.LoadRegistry()
	assert.ErrorIs(t, err, ErrNoRegistry)
}

func TestFolderPath(t *testing.T) {
	cfg := testConfig(t)
	s := newService(t, cfg, fake.New(), nil)
	root := cfg.Storage.Root

	assert.Equal(t, root, s.FolderPath(""))
	assert.Equal(t, filepath.Join(root, "Acme_ops"), s.FolderPath(" OPS@acme.com "))
	assert.Equal(t, filepath.Join(root, "Manual_buyer"), s.FolderPath("buyer@x.com"))
}

func TestOpenFolderCreatesAndOpens(t *testing.T) {
	cfg := testConfig(t)
	var opened []string
	s := newService(t, cfg, fake.New(), &opened)

	path, err := s.OpenFolder("buyer@x.com")
	require.NoError(t, err)
	assert.DirExists(t, path)
	assert.Equal(t, []string{path}, opened)
}

func TestOpenFolderOpenerFailure(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, Options{
		Transport: fake.New(),
		Opener:    func(string) error { return errors.New("no desktop") },
	})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.OpenFolder("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no desktop")
}

func TestFetchIsMirroredIntoHistory(t *testing.T) {
	cfg := testConfig(t)
	msg := &fake.Message{
		From:     identity.Descriptor{RawAddress: "ops@acme.com"},
		Title:    "Quote",
		Received: now.Add(-time.Hour),
		Raw:      []byte("Subject: Quote\r\n\r\nbody"),
	}
	s := newService(t, cfg, fake.New(msg), nil)
	require.NoError(t, s.Checkpoint.Save(now.Add(-6*time.Hour)))

	var lines []string
	s.SetReporter(func(line string) { lines = append(lines, line) })

	rep := s.Engine.Fetch(context.Background(), engine.FetchRequest{Trigger: "cli"})
	require.NoError(t, rep.Err)
	assert.NotEmpty(t, lines)

	entries, err := s.History(context.Background(), store.AuditFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionFetch, entries[0].Action)
	assert.Equal(t, "Acme", entries[0].Supplier)

	runs, err := s.Store.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.ID, runs[0].ID)
	assert.Equal(t, "cli", runs[0].Trigger)

	assert.FileExists(t, cfg.Storage.AuditLog)
}

func TestHistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Database = ""
	s, err := New(cfg, Options{Transport: fake.New(), Opener: func(string) error { return nil }})
	require.NoError(t, err)

	assert.Nil(t, s.Store)
	_, err = s.History(context.Background(), store.AuditFilter{})
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}

func TestNewSchedulerValidatesTimes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Times = []string{"18:00", "09:00"}
	s := newService(t, cfg, fake.New(), nil)

	sched, err := s.NewScheduler(func(string) {})
	require.NoError(t, err)
	require.Len(t, sched.Times(), 2)
	assert.Equal(t, "09:00", sched.Times()[0].String())
	assert.False(t, sched.Running())

	cfg.Schedule.Times = []string{"9am"}
	_, err = s.NewScheduler(func(string) {})
	assert.Error(t, err)
}

func TestDispatchDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dispatch.Subject = "RFQ"
	cfg.Dispatch.ManualCC = "boss@x.com"
	cfg.Dispatch.AutoSend = true
	s := newService(t, cfg, fake.New(), nil)

	req := s.DispatchDefaults()
	assert.Equal(t, "RFQ", req.Subject)
	assert.Equal(t, "boss@x.com", req.ManualCC)
	assert.True(t, req.AutoSend)
	assert.Empty(t, req.ManualEmail)
}
