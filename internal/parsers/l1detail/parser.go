// Package l1detail parses the l1detail variable: a base64 capture of the
// A/322 L1 signaling preamble.
package l1detail

import (
	"atsc3_parser/internal/l1"
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/tuner"
)

// Result represents a decoded l1detail capture.
type Result struct {
	ID        int64      `json:"reading_id,omitempty"`
	Lines     []string   `json:"lines"`
	Truncated bool       `json:"truncated,omitempty"`
	Summary   l1.Summary `json:"summary"`
}

func (r *Result) Type() string     { return "l1" }
func (r *Result) ReadingID() int64 { return r.ID }

// Parser decodes l1detail values.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string   { return "l1detail" }
func (p *Parser) Vars() []string { return []string{"l1detail"} }
func (p *Parser) Priority() int  { return 50 }

// QuickCheck requires a plausible base64 length; the payload is always a
// whole number of quads.
func (p *Parser) QuickCheck(value string) bool {
	return len(value) >= 4 && len(value)%4 == 0
}

func (p *Parser) Parse(rd *tuner.Reading) registry.Result {
	dec := l1.Decode(rd.Value)
	if dec == nil {
		return nil
	}

	return &Result{
		ID:        int64(rd.ID),
		Lines:     dec.Lines,
		Truncated: dec.Truncated,
		Summary:   dec.Summary,
	}
}
