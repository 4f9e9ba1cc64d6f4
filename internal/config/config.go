package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // display timezone must resolve on hosts without zoneinfo

	"github.com/spf13/viper"
)

const envPrefix = "SENSOR_ALERTS"

// Config holds every recognized option.
type Config struct {
	Poll    PollConfig
	Alert   AlertConfig
	Display DisplayConfig
	Sensor  SensorConfig
	Files   FilesConfig
	Mail    MailConfig
	DB      DBConfig
	HTTP    HTTPConfig
	Log     LogConfig
}

type PollConfig struct {
	Interval time.Duration
}

type AlertConfig struct {
	Threshold      float64       // °C, at or below raises a warning
	WarningTimeout time.Duration // re-notify cooldown
}

type DisplayConfig struct {
	Timezone string
	Location *time.Location
}

type SensorConfig struct {
	Scheme  string
	Host    string
	Timeout time.Duration
}

type FilesConfig struct {
	Devices    string
	Recipients string
}

type MailConfig struct {
	Host     string
	Port     int
	Sender   string
	Username string
	OAuth    OAuthConfig
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

type DBConfig struct {
	Path string
}

type HTTPConfig struct {
	Enabled  bool
	Port     string
	APIToken string
}

type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll.interval", "5")
	v.SetDefault("alert.threshold", 30.0)
	v.SetDefault("alert.warning_timeout", "300")
	v.SetDefault("display.timezone", "America/Edmonton")
	v.SetDefault("sensor.scheme", "https")
	v.SetDefault("sensor.host", "mdash.net")
	v.SetDefault("sensor.timeout", "10s")
	v.SetDefault("files.devices", "./creds.json")
	v.SetDefault("files.recipients", "./recipients.json")
	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.sender", "")
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.oauth.client_id", "")
	v.SetDefault("mail.oauth.client_secret", "")
	v.SetDefault("mail.oauth.refresh_token", "")
	v.SetDefault("mail.oauth.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("db.path", "sensor_alerts.db")
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.api_token", "")
	v.SetDefault("log.level", "info")
}

// Load reads configs/config.yml (or the explicit path when set), applies
// SENSOR_ALERTS_* environment overrides and validates the result.
// A missing default config file is not an error; a missing explicit one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &ConfigError{Source: sourceName(path), Err: err}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var (
		cfg Config
		err error
	)

	if cfg.Poll.Interval, err = seconds(v, "poll.interval"); err != nil {
		return nil, err
	}
	if cfg.Poll.Interval <= 0 {
		return nil, &ConfigError{Source: "poll.interval", Err: errors.New("must be positive")}
	}

	cfg.Alert.Threshold = v.GetFloat64("alert.threshold")
	if cfg.Alert.WarningTimeout, err = seconds(v, "alert.warning_timeout"); err != nil {
		return nil, err
	}
	if cfg.Alert.WarningTimeout < 0 {
		return nil, &ConfigError{Source: "alert.warning_timeout", Err: errors.New("must not be negative")}
	}

	cfg.Display.Timezone = v.GetString("display.timezone")
	if cfg.Display.Location, err = time.LoadLocation(cfg.Display.Timezone); err != nil {
		return nil, &ConfigError{Source: "display.timezone", Err: err}
	}

	cfg.Sensor.Scheme = v.GetString("sensor.scheme")
	cfg.Sensor.Host = v.GetString("sensor.host")
	if cfg.Sensor.Host == "" {
		return nil, &ConfigError{Source: "sensor.host", Err: errors.New("must be set")}
	}
	if cfg.Sensor.Timeout, err = seconds(v, "sensor.timeout"); err != nil {
		return nil, err
	}

	cfg.Files.Devices = v.GetString("files.devices")
	cfg.Files.Recipients = v.GetString("files.recipients")

	cfg.Mail.Host = v.GetString("mail.host")
	cfg.Mail.Port = v.GetInt("mail.port")
	cfg.Mail.Sender = v.GetString("mail.sender")
	cfg.Mail.Username = v.GetString("mail.username")
	cfg.Mail.OAuth = OAuthConfig{
		ClientID:     v.GetString("mail.oauth.client_id"),
		ClientSecret: v.GetString("mail.oauth.client_secret"),
		RefreshToken: v.GetString("mail.oauth.refresh_token"),
		TokenURL:     v.GetString("mail.oauth.token_url"),
	}

	cfg.DB.Path = v.GetString("db.path")
	cfg.HTTP.Enabled = v.GetBool("http.enabled")
	cfg.HTTP.Port = v.GetString("http.port")
	cfg.HTTP.APIToken = v.GetString("http.api_token")
	cfg.Log.Level = v.GetString("log.level")

	return &cfg, nil
}

// seconds reads key as a duration. Bare numbers are seconds ("300"),
// anything else must parse with time.ParseDuration ("5m").
func seconds(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &ConfigError{Source: key, Err: fmt.Errorf("invalid duration %q", raw)}
	}
	return d, nil
}

func sourceName(path string) string {
	if path == "" {
		return "configs/config.yml"
	}
	return path
}
