// Package poller drives the fetch/evaluate cycle over all registered devices.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sensor_alerts/internal/alert"
	"sensor_alerts/internal/logger"
	"sensor_alerts/internal/models"
	"sensor_alerts/internal/notifier"
	"sensor_alerts/internal/sensor"
)

// Fetcher reads the current value of a device.
type Fetcher interface {
	Fetch(ctx context.Context, d *models.Device) (models.Reading, error)
}

// Evaluator is the alert controller seen from the loop.
type Evaluator interface {
	Evaluate(ctx context.Context, d *models.Device, r models.Reading) (alert.Decision, error)
	State(deviceID string) models.AlertState
}

// StatusSaver persists the latest snapshot of a device.
type StatusSaver interface {
	Save(ctx context.Context, s models.DeviceStatus) error
}

// EventRecorder stores fetch failures in the alert log.
type EventRecorder interface {
	Append(ctx context.Context, e models.AlertEvent) error
}

// CycleResult summarizes one pass over the devices.
type CycleResult struct {
	Polled         int // successful fetches
	FetchErrors    int
	DeliveryErrors int
	Notified       int // warnings, re-warnings and all-clears sent or attempted
}

// Poller polls devices sequentially, one network call at a time.
type Poller struct {
	devices  []*models.Device
	fetcher  Fetcher
	alerts   Evaluator
	status   StatusSaver
	events   EventRecorder
	log      *logger.Logger
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
}

// Option customizes a Poller.
type Option func(*Poller)

// WithStatus persists a snapshot after every successful fetch.
func WithStatus(s StatusSaver) Option { return func(p *Poller) { p.status = s } }

// WithEvents records fetch failures.
func WithEvents(e EventRecorder) Option { return func(p *Poller) { p.events = e } }

// WithLocation sets the timezone used for human readable times in logs.
func WithLocation(loc *time.Location) Option { return func(p *Poller) { p.loc = loc } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(p *Poller) { p.now = now } }

// New builds a poller over devices in registration order.
func New(devices []*models.Device, f Fetcher, a Evaluator, interval time.Duration, log *logger.Logger, opts ...Option) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	p := &Poller{
		devices:  devices,
		fetcher:  f,
		alerts:   a,
		log:      log,
		interval: interval,
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls every device, sleeps for the interval and repeats until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	p.log.Infow("poller_started", "devices", len(p.devices), "interval", p.interval.String())
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Infow("poller_stopped", "reason", ctx.Err())
			return
		case <-timer.C:
			res := p.PollOnce(ctx)
			p.log.Debugw("poll_cycle_done",
				"polled", res.Polled,
				"fetch_errors", res.FetchErrors,
				"delivery_errors", res.DeliveryErrors,
				"notified", res.Notified,
			)
			timer.Reset(p.interval)
		}
	}
}

// PollOnce runs a single cycle. A failing device never stops the others.
func (p *Poller) PollOnce(ctx context.Context) CycleResult {
	var res CycleResult
	for _, d := range p.devices {
		if ctx.Err() != nil {
			break
		}
		if err := safeRun(func() error { return p.pollDevice(ctx, d, &res) }); err != nil {
			res.FetchErrors++
			p.log.Errorw("poll_device_panic", "device_id", d.ID, "err", err)
		}
	}
	return res
}

func (p *Poller) pollDevice(ctx context.Context, d *models.Device, res *CycleResult) error {
	log := p.log.ForDevice(d.ID)
	reading, err := p.fetcher.Fetch(ctx, d)
	if err != nil {
		res.FetchErrors++
		log.Errorw("poll_fetch_failed", "kind", errorKind(err), "err", err)
		p.recordFetchError(ctx, d, err)
		return nil
	}
	res.Polled++
	d.Observe(reading)

	log.Infow("poll_reading",
		"temp", reading.Temperature,
		"timestamp", reading.Timestamp,
		"time", notifier.FormatTime(reading.Timestamp, p.loc),
	)

	decision, err := p.alerts.Evaluate(ctx, d, reading)
	if decision.Notifies() {
		res.Notified++
	}
	if err != nil {
		res.DeliveryErrors++
		log.Errorw("alert_delivery_failed", "decision", decision.String(), "err", err)
	}

	p.saveStatus(ctx, d, reading)
	return nil
}

func (p *Poller) saveStatus(ctx context.Context, d *models.Device, r models.Reading) {
	if p.status == nil {
		return
	}
	st := p.alerts.State(d.ID)
	err := p.status.Save(ctx, models.DeviceStatus{
		DeviceID:      d.ID,
		Temperature:   r.Temperature,
		ReadingAt:     r.Timestamp,
		Alerting:      st.Active,
		CooldownUntil: st.CooldownUntil,
		UpdatedAt:     p.now().UTC(),
	})
	if err != nil {
		p.log.Errorw("status_save_failed", "device_id", d.ID, "err", err)
	}
}

func (p *Poller) recordFetchError(ctx context.Context, d *models.Device, fetchErr error) {
	if p.events == nil {
		return
	}
	err := p.events.Append(ctx, models.AlertEvent{
		EventID:     uuid.NewString(),
		DeviceID:    d.ID,
		Type:        models.EventFetchError,
		OccurredAt:  p.now().UTC(),
		Description: fetchErr.Error(),
	})
	if err != nil {
		p.log.Errorw("alert_event_append_failed", "device_id", d.ID, "type", models.EventFetchError, "err", err)
	}
}

func errorKind(err error) string {
	var (
		terr *sensor.TransportError
		ferr *sensor.FormatError
	)
	switch {
	case errors.As(err, &terr):
		return "transport"
	case errors.As(err, &ferr):
		return "format"
	default:
		return "unknown"
	}
}

// safeRun turns a panic in fn into an error so one bad device cannot end the loop.
func safeRun(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
