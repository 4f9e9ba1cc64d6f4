package service

import "time"

// LogFilter supports history filtering by time range, type and device.
type LogFilter struct {
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
	Type     string    // "", "WARNING", "CLEAR", "FETCH_ERROR", "DELIVERY_ERROR"
	DeviceID string    // "" means all devices
}
