package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sensor_alerts/internal/alert"
	"sensor_alerts/internal/models"
	"sensor_alerts/internal/sensor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchResult struct {
	reading models.Reading
	err     error
	panics  bool
}

type fetcherStub struct {
	mu      sync.Mutex
	results map[string]fetchResult
	calls   []string
}

func (f *fetcherStub) Fetch(_ context.Context, d *models.Device) (models.Reading, error) {
	f.mu.Lock()
	f.calls = append(f.calls, d.ID)
	res := f.results[d.ID]
	f.mu.Unlock()
	if res.panics {
		panic("malformed device")
	}
	return res.reading, res.err
}

func (f *fetcherStub) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type notifierStub struct {
	warnings, clears []string
	err              error
}

func (n *notifierStub) Warning(_ context.Context, d *models.Device, _ models.Reading) error {
	n.warnings = append(n.warnings, d.ID)
	return n.err
}

func (n *notifierStub) Clear(_ context.Context, d *models.Device, _ models.Reading) error {
	n.clears = append(n.clears, d.ID)
	return n.err
}

type statusStub struct {
	saved []models.DeviceStatus
	err   error
}

func (s *statusStub) Save(_ context.Context, st models.DeviceStatus) error {
	s.saved = append(s.saved, st)
	return s.err
}

type eventsStub struct {
	events []models.AlertEvent
}

func (e *eventsStub) Append(_ context.Context, ev models.AlertEvent) error {
	e.events = append(e.events, ev)
	return nil
}

func devices(ids ...string) []*models.Device {
	out := make([]*models.Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.NewDevice(id, "tok-"+id))
	}
	return out
}

func newController(n *notifierStub) *alert.Controller {
	return alert.NewController(alert.Config{Threshold: 30, WarningTimeout: 300 * time.Second}, n, nil, nil).
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) })
}

func TestPollOnce_FailureDoesNotStopLaterDevices(t *testing.T) {
	f := &fetcherStub{results: map[string]fetchResult{
		"a": {err: &sensor.TransportError{DeviceID: "a", Err: errors.New("connection refused")}},
		"b": {err: &sensor.FormatError{DeviceID: "b", Field: "shadow.timestamp", Err: errors.New("missing")}},
		"c": {reading: models.Reading{Temperature: 20, Timestamp: 1_700_000_000}},
	}}
	n := &notifierStub{}
	ev := &eventsStub{}
	devs := devices("a", "b", "c")

	p := New(devs, f, newController(n), time.Second, nil, WithEvents(ev))
	res := p.PollOnce(context.Background())

	assert.Equal(t, []string{"a", "b", "c"}, f.calls, "devices are polled in registration order")
	assert.Equal(t, CycleResult{Polled: 1, FetchErrors: 2, Notified: 1}, res)
	assert.Equal(t, []string{"c"}, n.warnings)

	assert.Nil(t, devs[0].Last)
	require.NotNil(t, devs[2].Last)
	assert.Equal(t, 20.0, devs[2].Last.Temperature)

	require.Len(t, ev.events, 2)
	assert.Equal(t, models.EventFetchError, ev.events[0].Type)
	assert.Equal(t, "a", ev.events[0].DeviceID)
	assert.Equal(t, "b", ev.events[1].DeviceID)
}

func TestPollOnce_PanicIsContained(t *testing.T) {
	f := &fetcherStub{results: map[string]fetchResult{
		"a": {panics: true},
		"b": {reading: models.Reading{Temperature: 35, Timestamp: 1}},
	}}
	p := New(devices("a", "b"), f, newController(&notifierStub{}), time.Second, nil)

	res := p.PollOnce(context.Background())
	assert.Equal(t, 1, res.FetchErrors)
	assert.Equal(t, 1, res.Polled)
}

func TestPollOnce_DeliveryErrorIsCountedAndStatusSaved(t *testing.T) {
	f := &fetcherStub{results: map[string]fetchResult{
		"a": {reading: models.Reading{Temperature: 10, Timestamp: 1_700_000_000}},
		"b": {reading: models.Reading{Temperature: 40, Timestamp: 1_700_000_000}},
	}}
	n := &notifierStub{err: errors.New("smtp down")}
	st := &statusStub{}
	p := New(devices("a", "b"), f, newController(n), time.Second, nil, WithStatus(st))

	res := p.PollOnce(context.Background())
	assert.Equal(t, CycleResult{Polled: 2, DeliveryErrors: 1, Notified: 1}, res)

	require.Len(t, st.saved, 2)
	assert.Equal(t, "a", st.saved[0].DeviceID)
	assert.True(t, st.saved[0].Alerting)
	assert.Equal(t, int64(1_700_000_300), st.saved[0].CooldownUntil)
	assert.False(t, st.saved[1].Alerting)
	assert.Equal(t, 40.0, st.saved[1].Temperature)
}

func TestPollOnce_StatusFailureIsNotFatal(t *testing.T) {
	f := &fetcherStub{results: map[string]fetchResult{
		"a": {reading: models.Reading{Temperature: 40, Timestamp: 1}},
		"b": {reading: models.Reading{Temperature: 40, Timestamp: 1}},
	}}
	st := &statusStub{err: errors.New("database is locked")}
	p := New(devices("a", "b"), f, newController(&notifierStub{}), time.Second, nil, WithStatus(st))

	res := p.PollOnce(context.Background())
	assert.Equal(t, 2, res.Polled)
	assert.Len(t, st.saved, 2)
}

func TestPollOnce_StopsOnCanceledContext(t *testing.T) {
	f := &fetcherStub{results: map[string]fetchResult{}}
	p := New(devices("a", "b"), f, newController(&notifierStub{}), time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := p.PollOnce(ctx)

	assert.Zero(t, f.callCount())
	assert.Equal(t, CycleResult{}, res)
}

func TestPollOnce_AlertLifecycleAcrossCycles(t *testing.T) {
	now := int64(1_700_000_000)
	n := &notifierStub{}
	ctrl := alert.NewController(alert.Config{Threshold: 30, WarningTimeout: 300 * time.Second}, n, nil, nil).
		WithClock(func() time.Time { return time.Unix(now, 0) })
	f := &fetcherStub{results: map[string]fetchResult{}}
	p := New(devices("a"), f, ctrl, time.Second, nil)

	step := func(temp float64) {
		f.results["a"] = fetchResult{reading: models.Reading{Temperature: temp, Timestamp: now}}
		p.PollOnce(context.Background())
	}

	step(25) // warn
	now += 5
	step(40) // suppressed inside cooldown
	now += 300
	step(40) // clear

	assert.Equal(t, []string{"a"}, n.warnings)
	assert.Equal(t, []string{"a"}, n.clears)
	assert.False(t, ctrl.State("a").Active)
}

func TestRun_RepeatsUntilCanceled(t *testing.T) {
	f := &fetcherStub{results: map[string]fetchResult{
		"a": {reading: models.Reading{Temperature: 40, Timestamp: 1}},
	}}
	p := New(devices("a"), f, newController(&notifierStub{}), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.callCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "transport", errorKind(&sensor.TransportError{Err: errors.New("x")}))
	assert.Equal(t, "format", errorKind(&sensor.FormatError{Err: errors.New("x")}))
	assert.Equal(t, "unknown", errorKind(errors.New("x")))
}
