package models

import (
	"fmt"
	"net/url"
)

// endpointPathTemplate is the device shadow path on the sensor dashboard API.
const endpointPathTemplate = "/api/v2/devices/%s"

// Device is one remote temperature sensor.
type Device struct {
	ID    string   `json:"id"`
	Token string   `json:"-"` // access token, never exposed
	Last  *Reading `json:"last,omitempty"`
}

// NewDevice builds a device with no observed reading yet.
func NewDevice(id, token string) *Device {
	return &Device{ID: id, Token: token}
}

// Path returns the request path for the device shadow.
func (d *Device) Path() string {
	return fmt.Sprintf(endpointPathTemplate, url.PathEscape(d.ID))
}

// URL derives the full endpoint URL for the device on the given host.
func (d *Device) URL(scheme, host string) string {
	q := url.Values{}
	q.Set("access_token", d.Token)
	u := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     d.Path(),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Observe records r as the last known reading.
func (d *Device) Observe(r Reading) {
	d.Last = &r
}
