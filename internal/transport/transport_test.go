package transport_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/transport/fake"
)

func TestConnectionErrorChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("fetch run: %w", &transport.ConnectionError{Endpoint: "imap.example.com:993", Err: cause})

	assert.True(t, transport.IsConnectionError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "could not connect to imap.example.com:993")
	assert.False(t, transport.IsConnectionError(cause))
}

func TestSaveFormatString(t *testing.T) {
	assert.Equal(t, "native", transport.FormatNative.String())
	assert.Equal(t, "legacy", transport.FormatLegacy.String())
	assert.Equal(t, "format(7)", transport.SaveFormat(7).String())
}

func TestFakeListSinceFiltersAndSorts(t *testing.T) {
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	old := &fake.Message{Title: "old", Received: base.Add(-time.Hour)}
	mid := &fake.Message{Title: "mid", Received: base}
	recent := &fake.Message{Title: "recent", Received: base.Add(time.Hour)}

	tr := fake.New(old, recent, mid)
	sess, err := tr.Connect(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	msgs, err := sess.ListSince(context.Background(), base)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "recent", msgs[0].Subject())
	assert.Equal(t, "mid", msgs[1].Subject())
}

func TestFakeConnectFailure(t *testing.T) {
	tr := fake.New()
	tr.ConnectErr = errors.New("offline")

	_, err := tr.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, transport.IsConnectionError(err))
	assert.Zero(t, tr.Connects())
}
