package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sensor_alerts/internal/models"
	"sensor_alerts/internal/notifier"
)

type notifierStub struct {
	mu       sync.Mutex
	warnings []string
	clears   []string
	err      error
}

func (n *notifierStub) Warning(_ context.Context, d *models.Device, _ models.Reading) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, d.ID)
	return n.err
}

func (n *notifierStub) Clear(_ context.Context, d *models.Device, _ models.Reading) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clears = append(n.clears, d.ID)
	return n.err
}

type eventsStub struct {
	mu     sync.Mutex
	events []models.AlertEvent
	err    error
}

func (e *eventsStub) Append(_ context.Context, ev models.AlertEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return e.err
}

const (
	threshold = 30.0
	cooldown  = 300 * time.Second
	baseTS    = int64(1_700_000_000)
)

func newTestController(n *notifierStub, ev *eventsStub, now *int64) *Controller {
	var rec EventRecorder
	if ev != nil {
		rec = ev
	}
	return NewController(Config{Threshold: threshold, WarningTimeout: cooldown}, n, rec, nil).
		WithClock(func() time.Time { return time.Unix(*now, 0) })
}

// alerting puts device d into ALERTING with the cooldown ending at baseTS+300.
func alerting(t *testing.T, c *Controller, d *models.Device) {
	t.Helper()
	got, err := c.Evaluate(context.Background(), d, models.Reading{Temperature: 25, Timestamp: baseTS})
	if err != nil || got != Warn {
		t.Fatalf("setup: want warn, got %v err=%v", got, err)
	}
}

func TestController_NormalToAlerting(t *testing.T) {
	n := &notifierStub{}
	now := baseTS
	c := newTestController(n, nil, &now)
	d := models.NewDevice("d1", "t")

	got, err := c.Evaluate(context.Background(), d, models.Reading{Temperature: 25.0, Timestamp: baseTS})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != Warn {
		t.Fatalf("decision: want warn, got %v", got)
	}
	if len(n.warnings) != 1 || len(n.clears) != 0 {
		t.Fatalf("want exactly one warning, got warnings=%v clears=%v", n.warnings, n.clears)
	}
	st := c.State("d1")
	if !st.Active || st.CooldownUntil != baseTS+300 {
		t.Fatalf("state: want active until %d, got %+v", baseTS+300, st)
	}
}

func TestController_ThresholdIsInclusive(t *testing.T) {
	n := &notifierStub{}
	now := baseTS
	c := newTestController(n, nil, &now)

	got, _ := c.Evaluate(context.Background(), models.NewDevice("d1", "t"), models.Reading{Temperature: threshold, Timestamp: baseTS})
	if got != Warn {
		t.Fatalf("reading at threshold: want warn, got %v", got)
	}

	// and it keeps the device alerting after cooldown
	now = baseTS + 301
	got, _ = c.Evaluate(context.Background(), models.NewDevice("d1", "t"), models.Reading{Temperature: threshold, Timestamp: now})
	if got != Rewarn {
		t.Fatalf("reading at threshold after cooldown: want rewarn, got %v", got)
	}
}

func TestController_NormalAboveThresholdDoesNothing(t *testing.T) {
	n := &notifierStub{}
	now := baseTS
	c := newTestController(n, nil, &now)

	got, err := c.Evaluate(context.Background(), models.NewDevice("d1", "t"), models.Reading{Temperature: 30.01, Timestamp: baseTS})
	if err != nil || got != None {
		t.Fatalf("want none, got %v err=%v", got, err)
	}
	if len(n.warnings)+len(n.clears) != 0 {
		t.Fatalf("no notifications expected")
	}
	if c.State("d1").Active {
		t.Fatalf("state must stay NORMAL")
	}
}

func TestController_AlertingTransitions(t *testing.T) {
	cases := []struct {
		name         string
		now          int64
		temp         float64
		want         Decision
		wantWarnings int
		wantClears   int
		wantState    models.AlertState
	}{
		{
			name:         "cooldown in future, warm reading is suppressed",
			now:          baseTS + 100,
			temp:         40,
			want:         Suppressed,
			wantWarnings: 1,
			wantState:    models.AlertState{Active: true, CooldownUntil: baseTS + 300},
		},
		{
			name:         "cooldown in future, cold reading is suppressed",
			now:          baseTS + 100,
			temp:         10,
			want:         Suppressed,
			wantWarnings: 1,
			wantState:    models.AlertState{Active: true, CooldownUntil: baseTS + 300},
		},
		{
			name:         "now equal to cooldown end is still suppressed",
			now:          baseTS + 300,
			temp:         40,
			want:         Suppressed,
			wantWarnings: 1,
			wantState:    models.AlertState{Active: true, CooldownUntil: baseTS + 300},
		},
		{
			name:         "cooldown past, warm reading clears",
			now:          baseTS + 301,
			temp:         40,
			want:         Clear,
			wantWarnings: 1,
			wantClears:   1,
			wantState:    models.AlertState{},
		},
		{
			name:         "cooldown past, cold reading re-warns",
			now:          baseTS + 400,
			temp:         20,
			want:         Rewarn,
			wantWarnings: 2,
			wantState:    models.AlertState{Active: true, CooldownUntil: baseTS + 390 + 300},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := &notifierStub{}
			now := baseTS
			c := newTestController(n, nil, &now)
			d := models.NewDevice("d1", "t")
			alerting(t, c, d)

			now = tc.now
			// reading timestamps lag the wall clock a little, the cooldown is
			// refreshed from the reading, not from now
			got, err := c.Evaluate(context.Background(), d, models.Reading{Temperature: tc.temp, Timestamp: tc.now - 10})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("decision: want %v, got %v", tc.want, got)
			}
			if len(n.warnings) != tc.wantWarnings {
				t.Errorf("warnings: want %d, got %d", tc.wantWarnings, len(n.warnings))
			}
			if len(n.clears) != tc.wantClears {
				t.Errorf("clears: want %d, got %d", tc.wantClears, len(n.clears))
			}
			if st := c.State("d1"); st != tc.wantState {
				t.Errorf("state: want %+v, got %+v", tc.wantState, st)
			}
		})
	}
}

func TestController_StateIsPerDevice(t *testing.T) {
	n := &notifierStub{}
	now := baseTS
	c := newTestController(n, nil, &now)
	cold := models.NewDevice("cold", "t")
	warm := models.NewDevice("warm", "t")

	alerting(t, c, cold)

	got, _ := c.Evaluate(context.Background(), warm, models.Reading{Temperature: 40, Timestamp: baseTS})
	if got != None {
		t.Fatalf("warm device must not be affected by cold device, got %v", got)
	}
	got, _ = c.Evaluate(context.Background(), warm, models.Reading{Temperature: 5, Timestamp: baseTS})
	if got != Warn {
		t.Fatalf("warm device must get its own warning, got %v", got)
	}
	if len(n.warnings) != 2 || n.warnings[0] != "cold" || n.warnings[1] != "warm" {
		t.Fatalf("warnings: want [cold warm], got %v", n.warnings)
	}
}

func TestController_DeliveryFailureCommitsTransition(t *testing.T) {
	boom := &notifier.DeliveryError{Kind: "warning", Recipient: "a@example.com", Err: errors.New("smtp down")}
	n := &notifierStub{err: boom}
	ev := &eventsStub{}
	now := baseTS
	c := newTestController(n, ev, &now)

	got, err := c.Evaluate(context.Background(), models.NewDevice("d1", "t"), models.Reading{Temperature: 1, Timestamp: baseTS})
	if got != Warn {
		t.Fatalf("decision: want warn, got %v", got)
	}
	var derr *notifier.DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("want DeliveryError, got %v", err)
	}
	if !c.State("d1").Active {
		t.Fatalf("transition must be committed despite delivery failure")
	}

	// inside the cooldown nothing is retried
	now = baseTS + 60
	got, err = c.Evaluate(context.Background(), models.NewDevice("d1", "t"), models.Reading{Temperature: 1, Timestamp: now})
	if got != Suppressed || err != nil {
		t.Fatalf("want suppressed without error, got %v err=%v", got, err)
	}

	if len(ev.events) != 2 {
		t.Fatalf("events: want warning + delivery error, got %+v", ev.events)
	}
	if ev.events[0].Type != models.EventWarning || ev.events[1].Type != models.EventDeliveryError {
		t.Fatalf("event types: got %q, %q", ev.events[0].Type, ev.events[1].Type)
	}
}

func TestController_RecordsEvents(t *testing.T) {
	n := &notifierStub{}
	ev := &eventsStub{err: errors.New("disk full")}
	now := baseTS
	c := newTestController(n, ev, &now)
	d := models.NewDevice("d1", "t")

	alerting(t, c, d)
	now = baseTS + 301
	got, err := c.Evaluate(context.Background(), d, models.Reading{Temperature: 35, Timestamp: now})
	if got != Clear || err != nil {
		t.Fatalf("want clear without error even if the event log fails, got %v err=%v", got, err)
	}

	if len(ev.events) != 2 {
		t.Fatalf("want 2 events, got %d", len(ev.events))
	}
	clr := ev.events[1]
	if clr.Type != models.EventClear || clr.DeviceID != "d1" || clr.Temperature != 35 || clr.ReadingAt != now {
		t.Fatalf("unexpected clear event: %+v", clr)
	}
	if clr.EventID == "" || clr.EventID == ev.events[0].EventID {
		t.Fatalf("event ids must be unique and set")
	}
}

func TestController_ConcurrentDevices(t *testing.T) {
	n := &notifierStub{}
	now := baseTS
	c := newTestController(n, nil, &now)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := models.NewDevice(string(rune('a'+i)), "t")
			_, _ = c.Evaluate(context.Background(), d, models.Reading{Temperature: 0, Timestamp: baseTS})
		}(i)
	}
	wg.Wait()

	if len(n.warnings) != 20 {
		t.Fatalf("want one warning per device, got %d", len(n.warnings))
	}
}

func TestDecision_String(t *testing.T) {
	for d, want := range map[Decision]string{
		None: "none", Warn: "warn", Rewarn: "rewarn", Clear: "clear", Suppressed: "suppressed", Decision(42): "decision(42)",
	} {
		if got := d.String(); got != want {
			t.Errorf("String(%d): want %q, got %q", int(d), want, got)
		}
	}
}

func TestController_StaleTimestampRewarnsEveryCycle(t *testing.T) {
	n := &notifierStub{}
	now := baseTS
	c := newTestController(n, nil, &now)
	d := models.NewDevice("d1", "t")
	alerting(t, c, d)

	// the shadow keeps reporting the same old reading while wall time moves on
	stale := models.Reading{Temperature: 25, Timestamp: baseTS}
	for i := 1; i <= 3; i++ {
		now = baseTS + int64(cooldown/time.Second) + int64(i)*5
		got, err := c.Evaluate(context.Background(), d, stale)
		if err != nil {
			t.Fatalf("cycle %d: unexpected error: %v", i, err)
		}
		if got != Rewarn {
			t.Fatalf("cycle %d: want rewarn, got %v", i, got)
		}
		if st := c.State("d1"); st.CooldownUntil != baseTS+300 {
			t.Fatalf("cycle %d: cooldown stays anchored on the reading, got %d", i, st.CooldownUntil)
		}
	}
	if len(n.warnings) != 4 {
		t.Fatalf("want initial warning plus 3 re-warnings, got %d", len(n.warnings))
	}
}
