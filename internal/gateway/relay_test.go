package gateway

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usvlab/boatlink/internal/command"
	"github.com/usvlab/boatlink/internal/journal"
	"github.com/usvlab/boatlink/internal/logging"
	"github.com/usvlab/boatlink/internal/transport"
)

// spyTransport records transmitted commands and fails with err when set.
type spyTransport struct {
	mu   sync.Mutex
	sent []string
	err  error
	mode string
}

func (s *spyTransport) Transmit(cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *spyTransport) Mode() string {
	if s.mode == "" {
		return transport.ModeSerial
	}
	return s.mode
}

func (s *spyTransport) Close() error { return nil }

func (s *spyTransport) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type relayFixture struct {
	relay   *Relay
	spy     *spyTransport
	metrics *Collector
	journal *bytes.Buffer
	logs    *bytes.Buffer
}

func newRelayFixture(t *testing.T, tr transport.Transport) relayFixture {
	t.Helper()
	spy, _ := tr.(*spyTransport)

	metrics, err := NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	var jbuf, logs bytes.Buffer
	h := logging.NewContextHandler(slog.NewTextHandler(&logs, nil), logging.FromContext)
	return relayFixture{
		relay:   NewRelay(tr, journal.New(&jbuf), metrics, slog.New(h)),
		spy:     spy,
		metrics: metrics,
		journal: &jbuf,
		logs:    &logs,
	}
}

func TestReceive_TransmitsCanonicalCommand(t *testing.T) {
	f := newRelayFixture(t, &spyTransport{})

	ack, err := f.relay.Receive(context.Background(), "application/json",
		[]byte(`{"boatId":"00001","speed":1500,"targetLat":21.689,"targetLon":102.092,"kp":1.0,"ki":0.1,"kd":0.05}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"00001,1500,21.689,102.092,1.0,0.1,0.05"}, f.spy.commands())
	assert.Equal(t, "00001", ack.BoatID)
	assert.Equal(t, command.ShapeFields, ack.Shape)
	assert.Equal(t, transport.ModeSerial, ack.Transport)
	assert.NotEmpty(t, ack.ID)

	assert.Contains(t, f.journal.String(), `"outcome":"sent"`)
	assert.Contains(t, f.journal.String(), ack.ID)
	assert.Contains(t, f.logs.String(), "commandId="+ack.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Commands.WithLabelValues("fields", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TransportWrites.WithLabelValues("serial", "ok")))
}

func TestReceive_ValidationErrorSkipsTransport(t *testing.T) {
	f := newRelayFixture(t, &spyTransport{})

	_, err := f.relay.Receive(context.Background(), "application/json", []byte(`{"speed":1500}`))
	assert.ErrorIs(t, err, command.ErrMissingField)
	assert.Empty(t, f.spy.commands())
	assert.Empty(t, f.journal.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Commands.WithLabelValues("invalid", "rejected")))
}

func TestReceive_TransportFault(t *testing.T) {
	f := newRelayFixture(t, &spyTransport{err: errors.New("radio unplugged")})

	_, err := f.relay.Receive(context.Background(), "text/plain", []byte("00002,1500,0,0,0,0,0"))
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.Contains(t, err.Error(), "radio unplugged")
	assert.Contains(t, f.journal.String(), `"outcome":"failed"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TransportWrites.WithLabelValues("serial", "failed")))
}

func TestReceive_WarnsOnDefaultedGains(t *testing.T) {
	f := newRelayFixture(t, &spyTransport{})

	_, err := f.relay.Receive(context.Background(), "application/json", []byte(`{"boatId":"00003","speed":1510}`))
	require.NoError(t, err)
	assert.Contains(t, f.logs.String(), "sending zero gains")
	assert.Equal(t, []string{"00003,1510,0,0,0,0,0"}, f.spy.commands())
}

func TestReceive_SimulatedTransportJournalsSimulated(t *testing.T) {
	f := newRelayFixture(t, transport.NewSimulated(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	ack, err := f.relay.Receive(context.Background(), "", []byte("00004,1500,0,0,0,0,0"))
	require.NoError(t, err)
	assert.Equal(t, transport.ModeSimulated, ack.Transport)
	assert.Contains(t, f.journal.String(), `"outcome":"simulated"`)
	assert.Equal(t, transport.ModeSimulated, f.relay.Mode())
}

func TestNewRelay_NilJournalAndMetrics(t *testing.T) {
	r := NewRelay(&spyTransport{}, nil, nil, nil)
	_, err := r.Receive(context.Background(), "text/plain", []byte("00001,1500"))
	assert.NoError(t, err)
	_, err = r.Receive(context.Background(), "text/plain", []byte(""))
	assert.Error(t, err)
}
