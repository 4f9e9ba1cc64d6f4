package models

import "time"

// DeviceStatus is the latest known snapshot of one device.
type DeviceStatus struct {
	DeviceID      string    `json:"device_id"`
	Temperature   float64   `json:"temperature"`
	ReadingAt     int64     `json:"reading_at"`               // unix seconds
	Alerting      bool      `json:"alerting"`
	CooldownUntil int64     `json:"cooldown_until,omitempty"` // unix seconds
	UpdatedAt     time.Time `json:"updated_at"`
}
