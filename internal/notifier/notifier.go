// Package notifier turns alert transitions into email messages.
package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"sensor_alerts/internal/models"
)

const (
	kindWarning = "warning"
	kindClear   = "clear"

	// DisplayLayout renders like "17 Oct 2026 03:04:05PM".
	DisplayLayout = "_2 Jan 2006 03:04:05PM"
)

// Notifier sends warning and all-clear messages for a device.
type Notifier interface {
	Warning(ctx context.Context, d *models.Device, r models.Reading) error
	Clear(ctx context.Context, d *models.Device, r models.Reading) error
}

// Message is one outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers a single Message.
type Transport interface {
	Send(ctx context.Context, m Message) error
}

// Mailer is the email Notifier. Every recipient gets its own message.
type Mailer struct {
	transport  Transport
	sender     string
	recipients []string
	threshold  float64
	loc        *time.Location
}

// NewMailer copies recipients; a nil loc means UTC.
func NewMailer(t Transport, sender string, recipients []string, threshold float64, loc *time.Location) *Mailer {
	if loc == nil {
		loc = time.UTC
	}
	return &Mailer{
		transport:  t,
		sender:     sender,
		recipients: append([]string(nil), recipients...),
		threshold:  threshold,
		loc:        loc,
	}
}

// Warning tells recipients that d reported a temperature at or below threshold.
func (m *Mailer) Warning(ctx context.Context, d *models.Device, r models.Reading) error {
	return m.send(ctx, kindWarning, d, r)
}

// Clear tells recipients that d recovered above threshold.
func (m *Mailer) Clear(ctx context.Context, d *models.Device, r models.Reading) error {
	return m.send(ctx, kindClear, d, r)
}

// FormatTime renders a unix timestamp in loc for message bodies.
func FormatTime(ts int64, loc *time.Location) string {
	return time.Unix(ts, 0).In(loc).Format(DisplayLayout)
}

func (m *Mailer) send(ctx context.Context, kind string, d *models.Device, r models.Reading) error {
	subject, html, text, err := m.render(kind, d, r)
	if err != nil {
		return &DeliveryError{Kind: kind, Err: err}
	}

	var errs []error
	for _, to := range m.recipients {
		msg := Message{From: m.sender, To: to, Subject: subject, HTML: html, Text: text}
		if err := m.transport.Send(ctx, msg); err != nil {
			errs = append(errs, &DeliveryError{Kind: kind, Recipient: to, Err: err})
		}
	}
	return errors.Join(errs...)
}

type bodyData struct {
	DeviceID    string
	Temperature string
	Threshold   string
	When        string
}

func (m *Mailer) render(kind string, d *models.Device, r models.Reading) (subject, html, text string, err error) {
	data := bodyData{
		DeviceID:    d.ID,
		Temperature: fmt.Sprintf("%.1f°C", r.Temperature),
		Threshold:   fmt.Sprintf("%.1f°C", m.threshold),
		When:        FormatTime(r.Timestamp, m.loc),
	}

	var tmpl *template.Template
	switch kind {
	case kindWarning:
		subject = fmt.Sprintf("Temperature warning: %s at %s", d.ID, data.Temperature)
		tmpl = warningHTML
		text = fmt.Sprintf("Warning: device %s reported %s at %s, at or below the %s threshold.",
			data.DeviceID, data.Temperature, data.When, data.Threshold)
	case kindClear:
		subject = fmt.Sprintf("All clear: %s back to %s", d.ID, data.Temperature)
		tmpl = clearHTML
		text = fmt.Sprintf("All clear: device %s reported %s at %s, above the %s threshold.",
			data.DeviceID, data.Temperature, data.When, data.Threshold)
	default:
		return "", "", "", fmt.Errorf("unknown notification kind %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render %s body: %w", kind, err)
	}
	return subject, buf.String(), text, nil
}

var (
	warningHTML = template.Must(template.New("warning").Parse(
		`<p><b>Warning:</b> device <code>{{.DeviceID}}</code> reported <b>{{.Temperature}}</b> at {{.When}}.</p>` +
			`<p>This is at or below the {{.Threshold}} threshold.</p>`))
	clearHTML = template.Must(template.New("clear").Parse(
		`<p><b>All clear:</b> device <code>{{.DeviceID}}</code> reported <b>{{.Temperature}}</b> at {{.When}}.</p>` +
			`<p>This is above the {{.Threshold}} threshold.</p>`))
)
