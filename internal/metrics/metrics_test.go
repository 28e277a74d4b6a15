package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordAudit(t *testing.T) {
	AuditActionsTotal.Reset()
	r := NewRecorder()

	for _, a := range []model.Action{model.ActionFetch, model.ActionFetch, model.ActionSendSkipped} {
		require.NoError(t, r.RecordAudit(context.Background(), model.AuditEntry{Action: a}))
	}

	assert.Equal(t, 2.0, counterValue(t, AuditActionsTotal.WithLabelValues("fetch")))
	assert.Equal(t, 1.0, counterValue(t, AuditActionsTotal.WithLabelValues("send_skipped")))
}

func TestRecordRun(t *testing.T) {
	RunsTotal.Reset()
	RunItemsTotal.Reset()
	RunDuration.Reset()
	r := NewRecorder()
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, r.RecordRun(context.Background(), model.RunRecord{
		Kind: model.RunKindFetch, StartedAt: start, FinishedAt: start.Add(2 * time.Second),
		Succeeded: 3, Skipped: 2,
	}))
	require.NoError(t, r.RecordRun(context.Background(), model.RunRecord{
		Kind: model.RunKindDispatch, StartedAt: start, FinishedAt: start.Add(time.Second),
		Error: "could not connect",
	}))

	assert.Equal(t, 1.0, counterValue(t, RunsTotal.WithLabelValues("fetch", ResultSuccess)))
	assert.Equal(t, 1.0, counterValue(t, RunsTotal.WithLabelValues("dispatch", ResultError)))
	assert.Equal(t, 3.0, counterValue(t, RunItemsTotal.WithLabelValues("fetch", "succeeded")))
	assert.Equal(t, 2.0, counterValue(t, RunItemsTotal.WithLabelValues("fetch", "skipped")))

	var m dto.Metric
	obs, ok := RunDuration.WithLabelValues("fetch").(prometheus.Metric)
	require.True(t, ok)
	require.NoError(t, obs.Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.Equal(t, 2.0, m.GetHistogram().GetSampleSum())
}

func TestHandlerExposesMetrics(t *testing.T) {
	AuditActionsTotal.Reset()
	AuditActionsTotal.WithLabelValues("send_draft").Add(4)

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `vendorauto_audit_actions_total{action="send_draft"} 4`)
}
