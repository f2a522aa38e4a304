package state

import (
	"time"

	"atsc3_parser/internal/l1"
)

// Device represents an HDHomeRun device seen on the feed.
type Device struct {
	ID           string     `json:"device_id"`
	Model        string     `json:"model,omitempty"`
	Firmware     string     `json:"firmware,omitempty"`
	IP           string     `json:"ip,omitempty"`
	Tuners       int        `json:"tuners,omitempty"`
	FirstSeen    time.Time  `json:"first_seen"`
	LastSeen     time.Time  `json:"last_seen"`
	ReadingCount int        `json:"reading_count"`
	SyncedAt     *time.Time `json:"synced_at,omitempty"`
}

// Channel represents an RF channel observed on air.
type Channel struct {
	Frequency        uint32     `json:"frequency"`
	RF               uint32     `json:"rf_channel"`
	Modulation       string     `json:"modulation,omitempty"`
	BSID             int64      `json:"bsid,omitempty"`
	TSID             int64      `json:"tsid,omitempty"`
	ObservationCount int        `json:"observation_count"`
	FirstSeen        time.Time  `json:"first_seen"`
	LastSeen         time.Time  `json:"last_seen"`
	SyncedAt         *time.Time `json:"synced_at,omitempty"`
}

// Program represents a program observed on a specific channel.
type Program struct {
	Frequency        uint32    `json:"frequency"`
	Number           int64     `json:"number"`
	VChannel         string    `json:"vchannel,omitempty"`
	Name             string    `json:"name,omitempty"`
	Encrypted        bool      `json:"encrypted,omitempty"`
	ObservationCount int       `json:"observation_count"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
}

// L1Capture represents the L1 signaling capture for one channel.
type L1Capture struct {
	Frequency uint32     `json:"frequency"`
	DeviceID  string     `json:"device_id,omitempty"`
	Tuner     int        `json:"tuner"`
	Capture   string     `json:"capture"` // Base64 as read from the tuner.
	Summary   l1.Summary `json:"summary"`
	UpdatedAt time.Time  `json:"updated_at"`
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
}

// TunerState represents the current known state of one tuner.
type TunerState struct {
	Key            string    `json:"key"` // Primary key: device id + tuner index.
	DeviceID       string    `json:"device_id,omitempty"`
	Tuner          int       `json:"tuner"`
	Channel        string    `json:"channel,omitempty"` // Tuning spec as reported.
	Lock           string    `json:"lock,omitempty"`
	Frequency      uint32    `json:"frequency,omitempty"`
	RF             uint32    `json:"rf_channel,omitempty"`
	SignalStrength int       `json:"signal_strength,omitempty"`
	SignalQuality  int       `json:"signal_quality,omitempty"`
	SymbolQuality  int       `json:"symbol_quality,omitempty"`
	SignalDBmV     int       `json:"signal_dbmv,omitempty"`
	SNRdB          int       `json:"snr_db,omitempty"`
	HasDB          bool      `json:"has_db,omitempty"`
	BSID           int64     `json:"bsid,omitempty"`
	TSID           int64     `json:"tsid,omitempty"`
	Version        string    `json:"version,omitempty"`
	PLPs           []string  `json:"plps,omitempty"` // Descriptors like "0:qam256:10/15".
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	ReadingCount   int       `json:"reading_count"`
}

// Locked returns true if the tuner reports a signal lock.
func (s *TunerState) Locked() bool {
	return s.Lock != "" && s.Lock != "none"
}

// HasIDs returns true if the tuner state has broadcast stream identity.
func (s *TunerState) HasIDs() bool {
	return s.BSID != 0 || s.TSID != 0
}

// AddPLP adds a PLP descriptor to the list if not already present.
func (s *TunerState) AddPLP(desc string) {
	if desc == "" {
		return
	}
	for _, existing := range s.PLPs {
		if existing == desc {
			return
		}
	}
	s.PLPs = append(s.PLPs, desc)
}
