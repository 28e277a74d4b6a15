package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/store"
	"github.com/akashrathod3565/Vendor-Automation-Application/tests/testutil"
)

func strPtr(s string) *string { return &s }

func TestMigrationsApplied(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendorauto.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordAudit(ctx, model.AuditEntry{Action: model.ActionFetch, Supplier: "Acme"}))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountAudit(ctx, store.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAuditRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	entries := []model.AuditEntry{
		{Timestamp: base, Action: model.ActionFetch, Supplier: "Acme", VendorEmails: []string{"ops@acme.com"}, Details: "subject=Quote"},
		{Timestamp: base.Add(time.Minute), Action: model.ActionFetchSkipped, VendorEmails: []string{"x@y.com"}},
		{Timestamp: base.Add(2 * time.Minute), Action: model.ActionSendDraft, Supplier: "Acme", VendorEmails: []string{"ops@acme.com"}, Details: "attachment=a.pdf"},
	}
	for _, e := range entries {
		require.NoError(t, s.RecordAudit(ctx, e))
	}

	all, err := s.ListAudit(ctx, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.ActionSendDraft, all[0].Action)
	assert.Equal(t, model.ActionFetch, all[2].Action)
	assert.Equal(t, []string{"ops@acme.com"}, all[2].VendorEmails)
	assert.Equal(t, "subject=Quote", all[2].Details)
	assert.True(t, all[2].Timestamp.Equal(base))

	skipped, err := s.ListAudit(ctx, store.AuditFilter{Action: strPtr(string(model.ActionFetchSkipped))})
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Empty(t, skipped[0].Supplier)

	acme, err := s.CountAudit(ctx, store.AuditFilter{Supplier: strPtr("Acme")})
	require.NoError(t, err)
	assert.Equal(t, 2, acme)

	since := base.Add(30 * time.Second)
	recent, err := s.ListAudit(ctx, store.AuditFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	page, err := s.ListAudit(ctx, store.AuditFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, model.ActionFetchSkipped, page[0].Action)
}

func TestRecordAuditWithoutEmails(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordAudit(ctx, model.AuditEntry{Action: model.ActionSendSkipped}))

	got, err := s.ListAudit(ctx, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].VendorEmails)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestRunsRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	first := model.RunRecord{
		ID: "run-1", Kind: model.RunKindFetch, Trigger: "schedule",
		StartedAt: base, FinishedAt: base.Add(3 * time.Second),
		Total: 4, Succeeded: 2, Skipped: 1, Failed: 1,
	}
	second := model.RunRecord{
		ID: "run-2", Kind: model.RunKindDispatch, Trigger: "manual",
		StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second),
		Error: "could not connect to fake: refused",
	}
	require.NoError(t, s.RecordRun(ctx, first))
	require.NoError(t, s.RecordRun(ctx, second))

	runs, err := s.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)

	fetches, err := s.ListRuns(ctx, store.RunFilter{Kind: strPtr(string(model.RunKindFetch))})
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.Equal(t, "schedule", fetches[0].Trigger)
	assert.Equal(t, 2, fetches[0].Succeeded)
	assert.True(t, fetches[0].StartedAt.Equal(base))

	got, err := s.GetRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, second.Error, got.Error)

	// Recording the same run again replaces it.
	first.Failed = 0
	require.NoError(t, s.RecordRun(ctx, first))
	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Failed)

	_, err = s.GetRun(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.Error(t, s.RecordRun(ctx, model.RunRecord{Kind: model.RunKindFetch}))
}
