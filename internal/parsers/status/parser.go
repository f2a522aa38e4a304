// Package status parses the tuner status variable: tuning, lock, signal
// levels, and transport rates.
package status

import (
	"strings"

	"atsc3_parser/internal/patterns"
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/tuner"
)

// Result represents a parsed tuner status value.
type Result struct {
	ID             int64  `json:"reading_id,omitempty"`
	Channel        string `json:"channel,omitempty"`         // Raw channel spec, e.g. "atsc3:605000000:0"
	ChannelDisplay string `json:"channel_display,omitempty"` // Spec without the PLP list
	Lock           string `json:"lock,omitempty"`
	LockDisplay    string `json:"lock_display,omitempty"`
	ATSC3          bool   `json:"atsc3,omitempty"`

	SignalStrength int64  `json:"signal_strength"` // percent
	SignalDBmV     *int64 `json:"signal_dbmv,omitempty"`
	SignalQuality  int64  `json:"signal_quality"` // percent
	SNRdB          *int64 `json:"snr_db,omitempty"`
	SymbolQuality  int64  `json:"symbol_quality"` // percent

	Debug            string  `json:"debug,omitempty"`
	BitsPerSecond    int64   `json:"bps"`
	PacketsPerSecond int64   `json:"pps"`
	Mbps             float64 `json:"mbps"`
}

func (r *Result) Type() string     { return "status" }
func (r *Result) ReadingID() int64 { return r.ID }

// HasDB reports whether the firmware annotated the signal strength with a
// dB value. Older firmware omits the annotation, and the detail report uses
// this to decide whether Layer-1 data can be trusted.
func (r *Result) HasDB() bool { return r.SignalDBmV != nil }

// Parser parses tuner status values.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string   { return "status" }
func (p *Parser) Vars() []string { return []string{"status"} }
func (p *Parser) Priority() int  { return 10 }

func (p *Parser) QuickCheck(value string) bool {
	return strings.Contains(value, "ch=")
}

func (p *Parser) Parse(rd *tuner.Reading) registry.Result {
	if rd.Value == "" {
		return nil
	}

	value := rd.Value

	if !p.QuickCheck(value) {
		return nil
	}

	result := &Result{
		ID: int64(rd.ID),
	}

	// Tuning spec and lock state.
	result.Channel = patterns.StatusField(value, "ch=")
	result.Lock = patterns.StatusField(value, "lock=")
	result.ChannelDisplay, result.LockDisplay = tuner.DisplayTuning(result.Channel, result.Lock)
	result.ATSC3 = strings.Contains(result.Lock, "atsc3")

	// Signal levels: percent scores plus optional dB annotations.
	result.SignalStrength, _ = patterns.StatusInt(value, "ss=")
	if db, ok := patterns.StatusDB(value, "ss="); ok {
		result.SignalDBmV = &db
	}
	result.SignalQuality, _ = patterns.StatusInt(value, "snq=")
	if db, ok := patterns.StatusDB(value, "snq="); ok {
		result.SNRdB = &db
	}
	result.SymbolQuality, _ = patterns.StatusInt(value, "seq=")

	result.Debug = patterns.StatusField(value, "dbg=")

	// Transport rates.
	bps, bpsOK := patterns.StatusInt(value, "bps=")
	result.BitsPerSecond = bps
	result.PacketsPerSecond, _ = patterns.StatusInt(value, "pps=")
	if bpsOK && result.PacketsPerSecond > 0 {
		result.Mbps = float64(bps) / 1000000.0
	}

	// Must have at least a tuning spec.
	if result.Channel == "" {
		return nil
	}

	return result
}

// ParseWithTrace implements registry.Traceable for detailed debugging.
func (p *Parser) ParseWithTrace(rd *tuner.Reading) *registry.TraceResult {
	trace := &registry.TraceResult{
		ParserName: p.Name(),
	}

	quickCheckPassed := p.QuickCheck(rd.Value)
	trace.QuickCheck = &registry.QuickCheck{
		Passed: quickCheckPassed,
	}

	if !quickCheckPassed {
		trace.QuickCheck.Reason = "No ch= key found"
		return trace
	}

	value := rd.Value

	for _, key := range []string{"ch=", "lock=", "ss=", "snq=", "seq=", "bps=", "pps="} {
		ft := registry.FieldTrace{
			Name: strings.TrimSuffix(key, "="),
			Key:  key,
		}
		if v := patterns.StatusField(value, key); v != "" {
			ft.Matched = true
			ft.Value = v
		}
		trace.Fields = append(trace.Fields, ft)
	}

	trace.Matched = patterns.StatusField(value, "ch=") != ""
	return trace
}
