// Package sysversion parses the device firmware version string.
package sysversion

import (
	"atsc3_parser/internal/patterns"
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/tuner"
)

// Result represents a parsed firmware version.
type Result struct {
	ID       int64  `json:"reading_id,omitempty"`
	Version  string `json:"version"`
	Date     int64  `json:"date,omitempty"`     // Leading digits as YYYYMMDD
	L1Detail bool   `json:"l1detail,omitempty"` // Firmware publishes l1detail
}

func (r *Result) Type() string     { return "version" }
func (r *Result) ReadingID() int64 { return r.ID }

// Parser parses /sys/version values.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string   { return "version" }
func (p *Parser) Vars() []string { return []string{"version"} }
func (p *Parser) Priority() int  { return 40 }

// QuickCheck requires a leading digit; firmware versions are dated builds
// such as "20250815".
func (p *Parser) QuickCheck(value string) bool {
	return len(value) > 0 && value[0] >= '0' && value[0] <= '9'
}

func (p *Parser) Parse(rd *tuner.Reading) registry.Result {
	lines := patterns.Lines(rd.Value)
	if len(lines) == 0 {
		return nil
	}

	version := lines[0]
	date := patterns.FirmwareDate(version)
	if date == 0 {
		return nil
	}

	return &Result{
		ID:       int64(rd.ID),
		Version:  version,
		Date:     date,
		L1Detail: date > tuner.L1DetailMinDate,
	}
}
