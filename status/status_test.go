package status

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/harvest/models"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"))
}

type captured struct {
	path string
	sig  string
	body map[string]any
}

func recordingServer(t *testing.T, code int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		reqs = append(reqs, captured{path: r.URL.Path, sig: r.Header.Get("X-Harvest-Signature"), body: body})
		mu.Unlock()
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func TestHTTPSinkPathsAndSignature(t *testing.T) {
	srv, got := recordingServer(t, http.StatusOK)
	sink := NewHTTPSink(srv.URL+"/", "s3cret", srv.Client())

	ev := &models.StatusEvent{CorrelationID: "run-1", Kind: models.KindStatus, Status: models.StatusStarted}
	require.NoError(t, sink.Send(context.Background(), ev))
	require.NoError(t, sink.Send(context.Background(), &models.StatusEvent{
		CorrelationID: "run-1",
		Kind:          models.KindEnrichUpdate,
		EnrichedPlace: models.Record{"name": "Cafe"},
	}))

	reqs := got()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/runs/run-1/status", reqs[0].path)
	assert.Equal(t, "started", reqs[0].body["status"])
	assert.Equal(t, "/runs/run-1/enrich-update", reqs[1].path)
	assert.Equal(t, map[string]any{"name": "Cafe"}, reqs[1].body["enrichedPlace"])

	body, _ := json.Marshal(ev)
	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), reqs[0].sig)
}

func TestHTTPSinkRejectsErrorStatus(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusBadGateway)
	err := NewHTTPSink(srv.URL, "", srv.Client()).Send(context.Background(),
		&models.StatusEvent{CorrelationID: "r", Kind: models.KindStatus, Status: "success"})
	assert.ErrorContains(t, err, "502")
}

type countingSink struct {
	calls atomic.Int32
	err   error
	block chan struct{}
	mu    sync.Mutex
	evs   []*models.StatusEvent
}

func (s *countingSink) Send(ctx context.Context, ev *models.StatusEvent) error {
	s.calls.Add(1)
	s.mu.Lock()
	s.evs = append(s.evs, ev)
	s.mu.Unlock()
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func TestChannelDoesNotBlockCaller(t *testing.T) {
	sink := &countingSink{block: make(chan struct{})}
	ch := NewChannel(sink, 5*time.Second)

	start := time.Now()
	ch.Emit("run-1", models.StatusStarted, nil)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(sink.block)
	require.NoError(t, ch.Flush(context.Background()))
	assert.Equal(t, int32(1), sink.calls.Load())
}

func TestChannelNoRetryOnFailure(t *testing.T) {
	sink := &countingSink{err: errors.New("connection refused")}
	ch := NewChannel(sink, time.Second)
	ch.Emit("run-1", models.StatusError, errors.New("boom"))
	require.NoError(t, ch.Flush(context.Background()))

	assert.Equal(t, int32(1), sink.calls.Load(), "delivery is attempted exactly once")
	assert.Equal(t, "boom", sink.evs[0].Error)
}

func TestChannelTimeoutBoundsDelivery(t *testing.T) {
	sink := &countingSink{block: make(chan struct{})}
	defer close(sink.block)
	ch := NewChannel(sink, 20*time.Millisecond)
	ch.Emit("run-1", models.StatusSuccess, []models.Record{{"a": 1}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ch.Flush(ctx))
}

func TestChannelSkipsEmptyCorrelation(t *testing.T) {
	sink := &countingSink{}
	ch := NewChannel(sink, time.Second)
	ch.Emit("", models.StatusStarted, nil)
	ch.EmitRecord("", models.Record{})
	require.NoError(t, ch.Flush(context.Background()))
	assert.Zero(t, sink.calls.Load())
}

func TestChannelPayloadShapes(t *testing.T) {
	sink := &countingSink{}
	ch := NewChannel(sink, time.Second)
	ch.Emit("r", models.StatusProgress, models.Progress{Processed: 1, Total: 4})
	require.NoError(t, ch.Flush(context.Background()))
	ch.EmitRecord("r", models.Record{"website": "x.com"})
	require.NoError(t, ch.Flush(context.Background()))

	require.Len(t, sink.evs, 2)
	assert.Equal(t, &models.Progress{Processed: 1, Total: 4}, sink.evs[0].Progress)
	assert.Equal(t, models.KindEnrichUpdate, sink.evs[1].Kind)
	assert.Equal(t, "x.com", sink.evs[1].EnrichedPlace["website"])
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	ok := &countingSink{}
	bad := &countingSink{err: errors.New("down")}
	err := MultiSink{bad, ok}.Send(context.Background(), &models.StatusEvent{CorrelationID: "r"})
	assert.EqualError(t, err, "down")
	assert.Equal(t, int32(1), ok.calls.Load())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "harvest.runs.r1.status", Subject("harvest.runs", &models.StatusEvent{CorrelationID: "r1"}))
	assert.Equal(t, "harvest.runs.r1.enrich-update",
		Subject("harvest.runs", &models.StatusEvent{CorrelationID: "r1", Kind: models.KindEnrichUpdate}))
}
