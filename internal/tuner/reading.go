// Package tuner provides HDHomeRun tuner reading types and structures.
package tuner

import (
	"encoding/json"
	"strconv"
)

// FlexInt64 handles JSON fields that can be either string or number.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	// Try as number first
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexInt64(i)
		return nil
	}

	// Try as string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = 0
			return nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*f = 0
			return nil // Silently ignore unparseable IDs
		}
		*f = FlexInt64(i)
		return nil
	}

	*f = 0
	return nil
}

// Reading represents one reported status variable from a tuner feed.
// This can be populated directly from flat JSON or extracted from FeedWrapper.
type Reading struct {
	ID        FlexInt64 `json:"id"`
	Source    string    `json:"source"`
	Timestamp string    `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Tuner     int       `json:"tuner"`
	Var       string    `json:"var"`
	Value     string    `json:"value"`
	Frequency float64   `json:"frequency"`

	// Path is the raw variable path when the poller reports one, e.g.
	// "/tuner0/status" or "/sys/version". Var and Tuner are derived from
	// it when they are unset.
	Path string `json:"path,omitempty"`

	// These may be present in the reading itself (flat format) or at wrapper level (feed)
	Device  *Device  `json:"device,omitempty"`
	Channel *Channel `json:"channel,omitempty"`
}

// Device contains tuner device identification data.
type Device struct {
	ID       string `json:"id"`
	Model    string `json:"model,omitempty"`
	Firmware string `json:"firmware,omitempty"`
	IP       string `json:"ip,omitempty"`
	Tuners   int    `json:"tuners,omitempty"`
}

// Channel contains the tuning context a reading was taken under.
type Channel struct {
	Modulation string  `json:"modulation,omitempty"`
	Frequency  float64 `json:"frequency,omitempty"`
	RF         int     `json:"rf,omitempty"`
	PLPs       string  `json:"plps,omitempty"`
}

// FeedWrapper represents the NATS feed message format where the reading is
// nested inside a "reading" field with metadata at the top level.
type FeedWrapper struct {
	Source  *FeedSource  `json:"source,omitempty"`
	Device  *Device      `json:"device,omitempty"`
	Channel *Channel     `json:"channel,omitempty"`
	Reading *FeedReading `json:"reading,omitempty"`
}

// FeedSource contains source metadata from the feed.
type FeedSource struct {
	Name        string `json:"name,omitempty"`
	Application string `json:"application,omitempty"`
}

// FeedReading is the inner reading structure from the feed.
type FeedReading struct {
	ID        FlexInt64 `json:"id"`
	Timestamp string    `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Tuner     int       `json:"tuner"`
	Var       string    `json:"var"`
	Value     string    `json:"value"`
	Frequency float64   `json:"frequency"`
	Path      string    `json:"path,omitempty"`
}

// ToReading converts a FeedWrapper to a unified Reading.
func (w *FeedWrapper) ToReading() *Reading {
	if w.Reading == nil {
		return nil
	}

	r := &Reading{
		ID:        w.Reading.ID,
		Timestamp: w.Reading.Timestamp,
		DeviceID:  w.Reading.DeviceID,
		Tuner:     w.Reading.Tuner,
		Var:       w.Reading.Var,
		Value:     w.Reading.Value,
		Frequency: w.Reading.Frequency,
		Path:      w.Reading.Path,
		Device:    w.Device,
		Channel:   w.Channel,
	}

	// Use device id from wrapper if not in reading
	if r.DeviceID == "" && w.Device != nil {
		r.DeviceID = w.Device.ID
	}

	// Derive the variable name and tuner index from a path-only reading
	if r.Var == "" && r.Path != "" {
		if idx, name, ok := SplitVarPath(r.Path); ok {
			r.Tuner = idx
			r.Var = name
		}
	}

	return r
}
