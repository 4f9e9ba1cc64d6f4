// Package alert owns the per-device NORMAL/ALERTING state machine and decides
// when a warning or all-clear notification goes out.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sensor_alerts/internal/logger"
	"sensor_alerts/internal/models"
	"sensor_alerts/internal/notifier"
)

// Decision is the outcome of evaluating one reading.
type Decision int

const (
	None       Decision = iota // NORMAL and above threshold
	Warn                       // NORMAL -> ALERTING
	Rewarn                     // ALERTING, cooldown over, still at or below threshold
	Clear                      // ALERTING -> NORMAL
	Suppressed                 // ALERTING inside the cooldown window
)

func (d Decision) String() string {
	switch d {
	case None:
		return "none"
	case Warn:
		return "warn"
	case Rewarn:
		return "rewarn"
	case Clear:
		return "clear"
	case Suppressed:
		return "suppressed"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Notifies reports whether the decision sends a message.
func (d Decision) Notifies() bool {
	return d == Warn || d == Rewarn || d == Clear
}

// EventRecorder stores alert events. Failures are logged, not returned.
type EventRecorder interface {
	Append(ctx context.Context, e models.AlertEvent) error
}

// Config holds the alert thresholds.
type Config struct {
	Threshold      float64       // at or below raises a warning
	WarningTimeout time.Duration // cooldown between notifications while alerting
}

// deviceAlert serializes transitions of a single device.
type deviceAlert struct {
	mu    sync.Mutex
	state models.AlertState
}

// Controller is the only writer of alert state.
type Controller struct {
	cfg      Config
	notifier notifier.Notifier
	events   EventRecorder
	log      *logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	devices map[string]*deviceAlert
}

// NewController builds a controller with every device in NORMAL. events may be nil.
func NewController(cfg Config, n notifier.Notifier, events EventRecorder, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		cfg:      cfg,
		notifier: n,
		events:   events,
		log:      log,
		now:      time.Now,
		devices:  make(map[string]*deviceAlert),
	}
}

// WithClock replaces the wall clock used for cooldown checks.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

func (c *Controller) device(id string) *deviceAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	da, ok := c.devices[id]
	if !ok {
		da = &deviceAlert{}
		c.devices[id] = da
	}
	return da
}

// State returns a copy of the alert state of a device.
func (c *Controller) State(deviceID string) models.AlertState {
	da := c.device(deviceID)
	da.mu.Lock()
	defer da.mu.Unlock()
	return da.state
}

// Evaluate applies reading r of device d. A transition is committed even if
// its notification fails; the delivery error is returned for logging.
func (c *Controller) Evaluate(ctx context.Context, d *models.Device, r models.Reading) (Decision, error) {
	da := c.device(d.ID)
	da.mu.Lock()
	defer da.mu.Unlock()

	decision := c.decide(da.state, r, c.now().Unix())
	da.state = c.next(da.state, decision, r)

	if !decision.Notifies() {
		return decision, nil
	}

	var err error
	if decision == Clear {
		err = c.notifier.Clear(ctx, d, r)
	} else {
		err = c.notifier.Warning(ctx, d, r)
	}
	c.record(ctx, d, r, decision, err)

	if err != nil {
		return decision, fmt.Errorf("device %s: %s notification: %w", d.ID, decision, err)
	}
	return decision, nil
}

func (c *Controller) decide(st models.AlertState, r models.Reading, now int64) Decision {
	below := r.Temperature <= c.cfg.Threshold
	switch {
	case !st.Active && below:
		return Warn
	case !st.Active:
		return None
	case now <= st.CooldownUntil:
		return Suppressed
	case below:
		return Rewarn
	default:
		return Clear
	}
}

func (c *Controller) next(st models.AlertState, d Decision, r models.Reading) models.AlertState {
	switch d {
	case Warn, Rewarn:
		return models.AlertState{
			Active:        true,
			CooldownUntil: r.Timestamp + int64(c.cfg.WarningTimeout/time.Second),
		}
	case Clear:
		return models.AlertState{}
	default:
		return st
	}
}

func (c *Controller) record(ctx context.Context, d *models.Device, r models.Reading, decision Decision, sendErr error) {
	ev := models.AlertEvent{
		EventID:     uuid.NewString(),
		DeviceID:    d.ID,
		Type:        models.EventWarning,
		Temperature: r.Temperature,
		ReadingAt:   r.Timestamp,
		OccurredAt:  c.now().UTC(),
	}
	switch decision {
	case Clear:
		ev.Type = models.EventClear
		ev.Description = fmt.Sprintf("temperature %.1f above threshold %.1f", r.Temperature, c.cfg.Threshold)
	case Rewarn:
		ev.Description = fmt.Sprintf("temperature %.1f still at or below threshold %.1f", r.Temperature, c.cfg.Threshold)
	default:
		ev.Description = fmt.Sprintf("temperature %.1f at or below threshold %.1f", r.Temperature, c.cfg.Threshold)
	}

	c.log.Infow("alert_"+decision.String(),
		"device_id", d.ID, "temp", r.Temperature, "reading_at", r.Timestamp, "delivered", sendErr == nil)

	if c.events == nil {
		return
	}
	if err := c.events.Append(ctx, ev); err != nil {
		c.log.Errorw("alert_event_append_failed", "device_id", d.ID, "type", ev.Type, "err", err)
	}
	if sendErr != nil {
		derr := models.AlertEvent{
			EventID:     uuid.NewString(),
			DeviceID:    d.ID,
			Type:        models.EventDeliveryError,
			Temperature: r.Temperature,
			ReadingAt:   r.Timestamp,
			OccurredAt:  ev.OccurredAt,
			Description: sendErr.Error(),
		}
		if err := c.events.Append(ctx, derr); err != nil {
			c.log.Errorw("alert_event_append_failed", "device_id", d.ID, "type", derr.Type, "err", err)
		}
	}
}
