package models

import "time"

// Alert event types.
const (
	EventWarning       = "WARNING"
	EventClear         = "CLEAR"
	EventFetchError    = "FETCH_ERROR"
	EventDeliveryError = "DELIVERY_ERROR"
)

// AlertEvent is a single entry in the alert log.
type AlertEvent struct {
	EventID     string    `json:"event_id"`
	DeviceID    string    `json:"device_id"`
	Type        string    `json:"type"` // WARNING | CLEAR | FETCH_ERROR | DELIVERY_ERROR
	Temperature float64   `json:"temperature,omitempty"`
	ReadingAt   int64     `json:"reading_at,omitempty"` // unix seconds
	OccurredAt  time.Time `json:"occurred_at"`
	Description string    `json:"description"`
}
