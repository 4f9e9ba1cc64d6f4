// Package sensor fetches the current reading of a device from the sensor
// dashboard API.
package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"sensor_alerts/internal/models"
)

const (
	defaultScheme  = "https"
	defaultTimeout = 10 * time.Second

	fieldAvgTemp   = "shadow.state.reported.avgTemp"
	fieldTimestamp = "shadow.timestamp"

	// float64 bounds of int64; 1<<63 itself is exactly representable and out of range
	maxUnixFloat = float64(1 << 63)
	minUnixFloat = -float64(1 << 63)
)

var (
	errMissing   = errors.New("missing")
	errNotNumber = errors.New("not a number")
	errNotInt    = errors.New("not an integer")
)

// Config describes where the sensor API lives.
type Config struct {
	Scheme  string // defaults to https
	Host    string
	Timeout time.Duration // defaults to 10s
}

// Client is a thin HTTP client for device shadows. It never retries; the
// poll interval is the retry policy.
type Client struct {
	http   *resty.Client
	scheme string
	host   string
}

// shadowDoc is the subset of the device shadow we read. Leaf values stay raw
// so a quoted number is rejected instead of silently coerced.
type shadowDoc struct {
	Shadow *shadow `json:"shadow"`
}

type shadow struct {
	State     *shadowState     `json:"state"`
	Timestamp *json.RawMessage `json:"timestamp"`
}

type shadowState struct {
	Reported *reported `json:"reported"`
}

type reported struct {
	AvgTemp *json.RawMessage `json:"avgTemp"`
}

func (d *shadowDoc) avgTemp() *json.RawMessage {
	if d.Shadow == nil || d.Shadow.State == nil || d.Shadow.State.Reported == nil {
		return nil
	}
	return d.Shadow.State.Reported.AvgTemp
}

func (d *shadowDoc) timestamp() *json.RawMessage {
	if d.Shadow == nil {
		return nil
	}
	return d.Shadow.Timestamp
}

// New builds a Client for cfg. hc may be nil.
func New(cfg Config, hc *http.Client) *Client {
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = defaultScheme
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var rc *resty.Client
	if hc != nil {
		rc = resty.NewWithClient(hc)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{http: rc, scheme: scheme, host: cfg.Host}
}

// Fetch returns the current average temperature and its timestamp for d.
func (c *Client) Fetch(ctx context.Context, d *models.Device) (models.Reading, error) {
	var doc shadowDoc
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&doc).
		ForceContentType("application/json").
		Get(d.URL(c.scheme, c.host))
	if err != nil {
		if resp != nil && resp.IsSuccess() && isDecodeError(err) {
			return models.Reading{}, &FormatError{DeviceID: d.ID, Field: decodeField(err), Err: fmt.Errorf("decode body: %w", err)}
		}
		return models.Reading{}, &TransportError{DeviceID: d.ID, Err: redact(err)}
	}
	if !resp.IsSuccess() {
		return models.Reading{}, &TransportError{
			DeviceID:   d.ID,
			StatusCode: resp.StatusCode(),
			Err:        errors.New(strings.TrimSpace(resp.Status())),
		}
	}

	return readShadow(d.ID, &doc)
}

// readShadow validates the two fields a reading is made of.
func readShadow(deviceID string, doc *shadowDoc) (models.Reading, error) {
	temp, err := asFloat(doc.avgTemp())
	if err != nil {
		return models.Reading{}, &FormatError{DeviceID: deviceID, Field: fieldAvgTemp, Err: err}
	}
	ts, err := asUnixSeconds(doc.timestamp())
	if err != nil {
		return models.Reading{}, &FormatError{DeviceID: deviceID, Field: fieldTimestamp, Err: err}
	}
	return models.Reading{Temperature: temp, Timestamp: ts}, nil
}

func isDecodeError(err error) bool {
	var (
		serr *json.SyntaxError
		terr *json.UnmarshalTypeError
	)
	return errors.As(err, &serr) || errors.As(err, &terr)
}

// decodeField names the JSON path of a type mismatch, if known.
func decodeField(err error) string {
	var terr *json.UnmarshalTypeError
	if errors.As(err, &terr) {
		return terr.Field
	}
	return ""
}

// number decodes a raw JSON value that must be an unquoted number.
func number(raw *json.RawMessage) (json.Number, error) {
	if raw == nil {
		return "", errMissing
	}
	b := *raw
	if len(b) == 0 || b[0] == '"' {
		return "", errNotNumber
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", errNotNumber
	}
	return n, nil
}

func asFloat(raw *json.RawMessage) (float64, error) {
	n, err := number(raw)
	if err != nil {
		return 0, err
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber
	}
	return f, nil
}

// asUnixSeconds accepts integers and integral floats such as 1.7e9.
func asUnixSeconds(raw *json.RawMessage) (int64, error) {
	n, err := number(raw)
	if err != nil {
		return 0, err
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f >= maxUnixFloat || f < minUnixFloat {
		return 0, errNotInt
	}
	return int64(f), nil
}

// redact strips the query string (and with it the access token) from URL errors.
func redact(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	u, perr := url.Parse(uerr.URL)
	if perr != nil {
		return &url.Error{Op: uerr.Op, URL: "<redacted>", Err: uerr.Err}
	}
	u.RawQuery = ""
	return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
}
