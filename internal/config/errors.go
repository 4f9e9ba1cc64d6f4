package config

import "fmt"

// ConfigError reports a missing or malformed startup input: the config file,
// the device registry or the recipient list. It is fatal at startup only.
type ConfigError struct {
	Source string // file path or config key
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
