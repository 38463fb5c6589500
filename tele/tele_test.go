package tele

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/spq"

	tele_config "github.com/matthijsvisser/kamstrup-402-mqtt/tele/config"

	"github.com/matthijsvisser/kamstrup-402-mqtt/kamstrup"
	"github.com/matthijsvisser/kamstrup-402-mqtt/log2"
)

func testConfig() tele_config.Config {
	return tele_config.Config{
		Enabled:     true,
		Host:        "localhost",
		Port:        1883,
		Client:      "kamstrup-test",
		Topic:       "kamstrup402",
		PersistPath: spq.OnlyForTesting,
	}
}

func mockRecv(t testing.TB, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for mock delivery")
		return nil
	}
}

func TestReadingsDelivered(t *testing.T) {
	t.Parallel()

	trans := &transportMock{t: t, networkTimeout: time.Second}
	tele := NewWithTransporter(trans)
	require.NoError(t, tele.Init(log2.NewTest(t, log2.LDebug), testConfig()))
	defer tele.Close()

	tele.Readings(kamstrup.ReadingSet{
		{Parameter: "energy", Value: 227.445, Unit: "GJ"},
		{Parameter: "volume", Value: 2131.935, Unit: "m3"},
	})
	payload := mockRecv(t, trans.outValues)
	assert.Equal(t, `{"energy":227.445,"volume":2131.935}`, string(payload))
}

func TestPollFailedStatus(t *testing.T) {
	t.Parallel()

	trans := &transportMock{t: t, networkTimeout: time.Second}
	tele := NewWithTransporter(trans)
	require.NoError(t, tele.Init(log2.NewTest(t, log2.LDebug), testConfig()))
	defer tele.Close()

	tele.PollFailed(kamstrup.FailTimeout, 3)
	payload := mockRecv(t, trans.outStatus)
	var e statusEvent
	require.NoError(t, json.Unmarshal(payload, &e))
	assert.Equal(t, "poll_failed", e.Event)
	assert.Equal(t, "timeout", e.Reason)
	assert.Equal(t, 3, e.Attempts)
	assert.NotEmpty(t, e.At)
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	trans := &transportMock{t: t, networkTimeout: time.Second}
	tele := NewWithTransporter(trans)
	require.NoError(t, tele.Init(log2.NewTest(t, log2.LDebug), testConfig()))
	defer tele.Close()

	tele.Error(errors.New("exposed to vacuum"))
	payload := mockRecv(t, trans.outStatus)
	var e statusEvent
	require.NoError(t, json.Unmarshal(payload, &e))
	assert.Equal(t, "error", e.Event)
	assert.Equal(t, "exposed to vacuum", e.Message)

	// nil error is dropped silently, log2 hook may pass one through
	tele.Error(nil)
	select {
	case b := <-trans.outStatus:
		t.Errorf("unexpected status delivery %s", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSendRetry(t *testing.T) {
	t.Parallel()

	trans := &transportMock{t: t, networkTimeout: time.Second, failFirst: 1}
	tele := NewWithTransporter(trans)
	tele.retryInterval = 10 * time.Millisecond
	require.NoError(t, tele.Init(log2.NewTest(t, log2.LDebug), testConfig()))
	defer tele.Close()

	tele.Readings(kamstrup.ReadingSet{{Parameter: "energy", Value: 227.445, Unit: "GJ"}})
	payload := mockRecv(t, trans.outValues)
	assert.Equal(t, `{"energy":227.445}`, string(payload))
}

func TestDisabled(t *testing.T) {
	t.Parallel()

	trans := &transportMock{t: t}
	tele := NewWithTransporter(trans)
	cfg := testConfig()
	cfg.Enabled = false
	cfg.PersistPath = ""
	require.NoError(t, tele.Init(log2.NewTest(t, log2.LDebug), cfg))

	// all API is a quiet no-op without transport or queue
	tele.Readings(kamstrup.ReadingSet{{Parameter: "energy", Value: 1}})
	tele.PollFailed(kamstrup.FailChannel, 1)
	tele.Error(errors.New("ignored"))
	tele.Close()
}
