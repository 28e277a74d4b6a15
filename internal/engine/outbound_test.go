package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport/fake"
)

func writeAttachment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func rfqRequest(attachment string) DispatchRequest {
	return DispatchRequest{
		Subject:        "RFQ",
		BodyTemplate:   model.DefaultBodyTemplate,
		AttachmentPath: attachment,
	}
}

func outboxPath(h *harness, key, name string) string {
	return filepath.Join(h.root, key, "Outbox", name)
}

func containsLine(lines []string, sub string) bool {
	for _, l := range lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

func TestDispatchSavesPreferredDraft(t *testing.T) {
	h := newHarness(t, fake.New(), acmeRegistry())

	rep := h.engine.Dispatch(context.Background(), rfqRequest(writeAttachment(t)))
	require.NoError(t, rep.Err)
	require.Equal(t, StateDone, rep.State)

	drafts := h.transport.Drafts()
	require.Len(t, drafts, 1)
	d := drafts[0]

	fields := d.Fields()
	assert.Equal(t, "ops@acme.com", fields.To)
	assert.Equal(t, []string{"boss@acme.com"}, fields.CC)
	assert.Equal(t, "RFQ", fields.Subject)
	assert.Contains(t, fields.Body, "<b>Acme Ops</b>")
	assert.True(t, fields.IsMarkup)
	assert.True(t, d.Saved())
	assert.Len(t, d.Attachments(), 1)

	msgPath := outboxPath(h, "Acme_ops", "rfq_20240610_120000.msg")
	assert.Equal(t, []string{msgPath}, d.SavedPaths())

	entries := h.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionSendDraft, entries[0].Action)
	assert.Equal(t, "attachment=spec.pdf", entries[0].Details)

	require.Len(t, rep.Items, 1)
	assert.Equal(t, StatusOK, rep.Items[0].Status)
	assert.Equal(t, msgPath, rep.Items[0].Path)
	assert.Empty(t, h.sleeps)
	assert.Equal(t, 1, h.transport.Closes())
}

func TestDispatchFallsBackToLegacyFormat(t *testing.T) {
	tr := fake.New()
	tr.SaveAsErr = map[transport.SaveFormat]error{
		transport.FormatNative: errors.New("format unavailable"),
	}
	h := newHarness(t, tr, acmeRegistry())

	rep := h.engine.Dispatch(context.Background(), rfqRequest(""))
	require.NoError(t, rep.Err)

	msgPath := outboxPath(h, "Acme_ops", "rfq_20240610_120000.msg")
	data, err := os.ReadFile(msgPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Format: legacy"))

	assert.Equal(t, []model.Action{model.ActionSendDraft}, h.actions())
	assert.True(t, containsLine(h.reported(), "(legacy format)"))
}

func TestDispatchFallsBackToText(t *testing.T) {
	tr := fake.New()
	tr.DraftSaveErr = errors.New("drafts folder unavailable")
	tr.SaveAsErr = map[transport.SaveFormat]error{
		transport.FormatNative: errors.New("native failed"),
		transport.FormatLegacy: errors.New("legacy failed"),
	}
	h := newHarness(t, tr, acmeRegistry())

	rep := h.engine.Dispatch(context.Background(), rfqRequest(writeAttachment(t)))
	require.NoError(t, rep.Err)

	entries := h.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionSendDraftTxt, entries[0].Action)

	txtPath := outboxPath(h, "Acme_ops", "rfq_20240610_120000.txt")
	assert.Equal(t, txtPath, entries[0].Details)

	body := tr.Drafts()[0].Fields().Body
	data, err := os.ReadFile(txtPath)
	require.NoError(t, err)
	assert.Equal(t, "To: ops@acme.com\nSubject: RFQ\n\n"+body, string(data))
	assert.FileExists(t, filepath.Join(h.root, "Acme_ops", "Outbox", "Attachments", "spec.pdf"))

	item := rep.Items[0]
	assert.Equal(t, StatusPartial, item.Status)
	assert.Equal(t, model.ActionSendDraftTxt, item.Action)

	var stages []string
	for _, err := range item.Errs {
		var serr *SaveError
		require.ErrorAs(t, err, &serr)
		stages = append(stages, serr.Stage)
	}
	assert.Equal(t, []string{StageDraftStore, StagePreferred, StageLegacy}, stages)
}

func TestDispatchAllStrategiesFail(t *testing.T) {
	tr := fake.New()
	tr.SaveAsErr = map[transport.SaveFormat]error{
		transport.FormatNative: errors.New("native failed"),
		transport.FormatLegacy: errors.New("legacy failed"),
	}
	failingText := Strategy{
		Name:   StageText,
		Action: model.ActionSendDraftTxt,
		Save: func(transport.Draft, PersistTarget) (string, []error, error) {
			return "", nil, errors.New("read-only outbox")
		},
	}
	h := newHarness(t, tr, acmeRegistry(), func(c *Config) {
		c.Strategies = append(DefaultStrategies()[:2], failingText)
	})

	rep := h.engine.Dispatch(context.Background(), rfqRequest(""))
	require.NoError(t, rep.Err)

	entries := h.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionSendDraftFailed, entries[0].Action)
	assert.Contains(t, entries[0].Details, "native failed")
	assert.Contains(t, entries[0].Details, "read-only outbox")
	assert.Equal(t, StatusFailed, rep.Items[0].Status)
}

func TestPersistStopsAtFirstSuccess(t *testing.T) {
	var calls []string
	strategy := func(name string, err error) Strategy {
		return Strategy{Name: name, Action: model.ActionSendDraft, Save: func(transport.Draft, PersistTarget) (string, []error, error) {
			calls = append(calls, name)
			return name + ".out", nil, err
		}}
	}

	out := Persist([]Strategy{
		strategy("a", errors.New("no")),
		strategy("b", nil),
		strategy("c", nil),
	}, nil, PersistTarget{})

	require.True(t, out.OK())
	assert.Equal(t, "b", out.Strategy.Name)
	assert.Equal(t, "b.out", out.Path)
	assert.Equal(t, []string{"a", "b"}, calls)
	require.Len(t, out.Failures, 1)
	assert.True(t, IsSaveError(out.Failures[0]))

	none := Persist([]Strategy{strategy("x", errors.New("no"))}, nil, PersistTarget{})
	assert.False(t, none.OK())
	assert.Error(t, none.Err())
}

func TestDispatchMissingAttachmentStillSaves(t *testing.T) {
	h := newHarness(t, fake.New(), acmeRegistry())
	missing := filepath.Join(t.TempDir(), "missing.pdf")

	req := rfqRequest(missing)
	req.ManualEmail = "buyer@x.com"
	rep := h.engine.Dispatch(context.Background(), req)
	require.NoError(t, rep.Err)

	assert.True(t, containsLine(h.reported(), "Attachment not found, skipping attach: "+missing))

	entries := h.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionSendDraft, entries[0].Action)
	assert.Equal(t, model.ManualSupplier, entries[0].Supplier)
	assert.Equal(t, "attachment=", entries[0].Details)
	assert.FileExists(t, outboxPath(h, "Manual_buyer", "rfq_20240610_120000.msg"))
	assert.Empty(t, h.transport.Drafts()[0].Attachments())
}

func TestDispatchSkipsInvalidAddress(t *testing.T) {
	h := newHarness(t, fake.New(), acmeRegistry())

	req := rfqRequest("")
	req.ManualEmail = "not-an-email"
	rep := h.engine.Dispatch(context.Background(), req)
	require.NoError(t, rep.Err)

	entries := h.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionSendSkipped, entries[0].Action)
	assert.Equal(t, "Invalid email", entries[0].Details)
	assert.Empty(t, h.rootEntries())
	assert.Empty(t, h.transport.Drafts())
}

func TestDispatchThrottlesBetweenProcessedVendors(t *testing.T) {
	reg := &model.Registry{Suppliers: []model.Supplier{
		{Name: "Acme", Vendors: []model.VendorRecord{
			{Email: "ops@acme.com"},
			{Email: "bad-entry"},
		}},
		{Name: "Beta", Vendors: []model.VendorRecord{
			{Email: "sales@beta.com"},
		}},
	}}
	h := newHarness(t, fake.New(), reg)

	rep := h.engine.Dispatch(context.Background(), rfqRequest(""))
	require.NoError(t, rep.Err)

	assert.Equal(t, []model.Action{
		model.ActionSendDraft,
		model.ActionSendSkipped,
		model.ActionSendDraft,
	}, h.actions())
	assert.Equal(t, []time.Duration{DefaultThrottle}, h.sleeps)

	succeeded, skipped, failed := rep.Counts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 0, failed)
}

func TestDispatchAutoSend(t *testing.T) {
	h := newHarness(t, fake.New(), acmeRegistry())

	req := rfqRequest("")
	req.AutoSend = true
	rep := h.engine.Dispatch(context.Background(), req)
	require.NoError(t, rep.Err)

	assert.Equal(t, []model.Action{model.ActionSendDraft, model.ActionSend}, h.actions())
	assert.True(t, h.transport.Drafts()[0].Transmitted())
	assert.Equal(t, StatusOK, rep.Items[0].Status)
}

func TestDispatchTransmitFailureKeepsDraft(t *testing.T) {
	tr := fake.New()
	tr.TransmitErr = errors.New("relay denied")
	h := newHarness(t, tr, acmeRegistry())

	req := rfqRequest("")
	req.AutoSend = true
	rep := h.engine.Dispatch(context.Background(), req)
	require.NoError(t, rep.Err)

	entries := h.entries()
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionSendDraft, entries[0].Action)
	assert.Equal(t, model.ActionSendError, entries[1].Action)
	assert.Equal(t, "relay denied", entries[1].Details)
	assert.FileExists(t, outboxPath(h, "Acme_ops", "rfq_20240610_120000.msg"))

	item := rep.Items[0]
	assert.Equal(t, StatusPartial, item.Status)
	require.NotEmpty(t, item.Errs)
	assert.True(t, IsTransmitError(item.Errs[len(item.Errs)-1]))
}

func TestDispatchDraftCreationFailure(t *testing.T) {
	tr := fake.New()
	tr.NewDraftErr = errors.New("store offline")
	h := newHarness(t, tr, acmeRegistry())

	rep := h.engine.Dispatch(context.Background(), rfqRequest(""))
	require.NoError(t, rep.Err)

	entries := h.entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionSendError, entries[0].Action)
	assert.Equal(t, "create draft failed: store offline", entries[0].Details)
	assert.Empty(t, h.rootEntries())
}

func TestDispatchConnectFailure(t *testing.T) {
	tr := fake.New()
	tr.ConnectErr = errors.New("no route")
	h := newHarness(t, tr, acmeRegistry())

	rep := h.engine.Dispatch(context.Background(), rfqRequest(""))
	assert.True(t, transport.IsConnectionError(rep.Err))
	assert.Equal(t, StateFailed, rep.State)
	assert.Empty(t, h.entries())
	require.Len(t, h.runs, 1)
	assert.NotEmpty(t, h.runs[0].Error)
}

func TestDispatchInvalidTargetsNeedNoConnection(t *testing.T) {
	tr := fake.New()
	tr.ConnectErr = errors.New("no route")
	h := newHarness(t, tr, acmeRegistry())

	req := rfqRequest("")
	req.ManualEmail = "not-an-email"
	rep := h.engine.Dispatch(context.Background(), req)
	require.NoError(t, rep.Err)
	assert.Equal(t, StateDone, rep.State)
	assert.Equal(t, 0, tr.ConnectAttempts())
	assert.Equal(t, []model.Action{model.ActionSendSkipped}, h.actions())
}

func TestDispatchConnectFailureStillAuditsInvalidTargets(t *testing.T) {
	reg := &model.Registry{Suppliers: []model.Supplier{
		{Name: "Acme", Vendors: []model.VendorRecord{
			{Email: "ops@acme.com"},
			{Email: "bad-entry"},
		}},
		{Name: "Beta", Vendors: []model.VendorRecord{
			{Email: "sales@beta.com"},
		}},
	}}
	tr := fake.New()
	tr.ConnectErr = errors.New("no route")
	h := newHarness(t, tr, reg)

	rep := h.engine.Dispatch(context.Background(), rfqRequest(""))
	assert.True(t, transport.IsConnectionError(rep.Err))
	assert.Equal(t, StateFailed, rep.State)
	assert.Equal(t, 1, tr.ConnectAttempts())
	assert.Equal(t, []model.Action{model.ActionSendSkipped}, h.actions())
	assert.Empty(t, tr.Drafts())
	assert.Empty(t, h.sleeps)
}

func TestDispatchMergesCC(t *testing.T) {
	reg := &model.Registry{Suppliers: []model.Supplier{{
		Name:    "Acme",
		Vendors: []model.VendorRecord{{Email: "ops@acme.com", CC: "a@x.com; bad ; A@x.com"}},
	}}}
	h := newHarness(t, fake.New(), reg)

	req := rfqRequest("")
	req.ManualCC = "c@y.com, a@X.com"
	_ = h.engine.Dispatch(context.Background(), req)

	assert.Equal(t, []string{"a@x.com", "c@y.com"}, h.transport.Drafts()[0].Fields().CC)
}

func TestDispatchMalformedTemplateUsedVerbatim(t *testing.T) {
	h := newHarness(t, fake.New(), acmeRegistry())

	req := rfqRequest("")
	req.BodyTemplate = "Hello {VendorName"
	_ = h.engine.Dispatch(context.Background(), req)

	fields := h.transport.Drafts()[0].Fields()
	assert.Equal(t, "Hello {VendorName", fields.Body)
	assert.False(t, fields.IsMarkup)
}

func TestDispatchSharedFolderWarning(t *testing.T) {
	reg := &model.Registry{Suppliers: []model.Supplier{
		{Name: "Acme Co", Vendors: []model.VendorRecord{{Email: "ops@acme.com"}}},
		{Name: "Acme_Co", Vendors: []model.VendorRecord{{Email: "ops@acme.org"}}},
	}}
	h := newHarness(t, fake.New(), reg)

	rep := h.engine.Dispatch(context.Background(), rfqRequest(""))
	require.NoError(t, rep.Err)

	assert.True(t, containsLine(h.reported(), "is shared with Acme_Co <ops@acme.org>"))
	assert.FileExists(t, outboxPath(h, "Acme_Co_ops", "rfq_20240610_120000.msg"))
	assert.FileExists(t, outboxPath(h, "Acme_Co_ops", "rfq_20240610_120000_2.msg"))
}

func TestMergeCC(t *testing.T) {
	tests := []struct {
		name  string
		lists []string
		want  []string
	}{
		{"empty", []string{"", ""}, nil},
		{"semicolons", []string{"a@x.com;b@x.com"}, []string{"a@x.com", "b@x.com"}},
		{"commas and spaces", []string{" a@x.com , b@x.com "}, []string{"a@x.com", "b@x.com"}},
		{"drops non-addresses", []string{"nan; a@x.com; -"}, []string{"a@x.com"}},
		{"dedupes across lists", []string{"A@x.com", "a@X.COM;c@y.com"}, []string{"A@x.com", "c@y.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeCC(tt.lists...))
		})
	}
}
