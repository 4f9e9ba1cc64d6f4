// Package registry loads the startup inputs that describe what to poll and
// whom to notify: the device credential mapping and the recipient list.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"sensor_alerts/internal/config"
	"sensor_alerts/internal/models"
)

var (
	errNotObject      = errors.New("expected a JSON object of device id to access token")
	errNotArray       = errors.New("expected a JSON array of email addresses")
	errEmptyID        = errors.New("empty device id")
	errDuplicateID    = errors.New("duplicate device id")
	errEmptyAddress   = errors.New("empty recipient address")
	errInvalidAddress = errors.New("recipient address must contain '@'")
)

// LoadDevices reads the device registry at path, one Device per entry.
func LoadDevices(path string) ([]*models.Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &config.ConfigError{Source: path, Err: err}
	}
	defer f.Close()

	devices, err := ReadDevices(f)
	if err != nil {
		return nil, &config.ConfigError{Source: path, Err: err}
	}
	return devices, nil
}

// ReadDevices decodes a {"<id>": "<token>", ...} object keeping file order.
func ReadDevices(r io.Reader) ([]*models.Device, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errNotObject
	}

	var (
		devices []*models.Device
		seen    = make(map[string]struct{})
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read device id: %w", err)
		}
		id, _ := keyTok.(string)
		if strings.TrimSpace(id) == "" {
			return nil, errEmptyID
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %q", errDuplicateID, id)
		}
		seen[id] = struct{}{}

		var token string
		if err := dec.Decode(&token); err != nil {
			return nil, fmt.Errorf("device %q: access token must be a string: %w", id, err)
		}
		devices = append(devices, models.NewDevice(id, token))
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read registry end: %w", err)
	}
	return devices, nil
}

// LoadRecipients reads the JSON array of notification addresses at path.
func LoadRecipients(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &config.ConfigError{Source: path, Err: err}
	}
	defer f.Close()

	recipients, err := ReadRecipients(f)
	if err != nil {
		return nil, &config.ConfigError{Source: path, Err: err}
	}
	return recipients, nil
}

// ReadRecipients decodes a ["a@example.com", ...] array.
func ReadRecipients(r io.Reader) ([]string, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return nil, errNotArray
	}

	out := make([]string, 0, len(list))
	for _, addr := range list {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return nil, errEmptyAddress
		}
		if !strings.Contains(addr, "@") {
			return nil, fmt.Errorf("%w: %q", errInvalidAddress, addr)
		}
		out = append(out, addr)
	}
	return out, nil
}
