package sensor

import "fmt"

// TransportError is a network or HTTP level failure talking to the sensor API.
type TransportError struct {
	DeviceID   string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("device %s: transport: http status %d: %v", e.DeviceID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("device %s: transport: %v", e.DeviceID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FormatError means the response body did not have the expected shape.
type FormatError struct {
	DeviceID string
	Field    string // dotted JSON path, empty when the body is not JSON at all
	Err      error
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("device %s: format: %v", e.DeviceID, e.Err)
	}
	return fmt.Sprintf("device %s: format: %s: %v", e.DeviceID, e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
