package models

// Reading is a temperature reported by a device at a unix timestamp (seconds).
type Reading struct {
	Temperature float64 `json:"temperature"`
	Timestamp   int64   `json:"timestamp"`
}

// AlertState is the per-device alert flag plus the end of its cooldown window.
// CooldownUntil only means something while Active is true.
type AlertState struct {
	Active        bool  `json:"active"`
	CooldownUntil int64 `json:"cooldown_until,omitempty"`
}
