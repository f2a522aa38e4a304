// Package rawkv is the fallback parser for variables no dedicated parser
// claims. It splits the value into key=value fields and keeps them as-is.
package rawkv

import (
	"strings"

	"atsc3_parser/internal/patterns"
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/tuner"
)

// Result holds the key=value fields of an unrecognized variable.
type Result struct {
	ID     int64             `json:"reading_id,omitempty"`
	Var    string            `json:"var"`
	Fields map[string]string `json:"fields"`
}

func (r *Result) Type() string     { return "raw" }
func (r *Result) ReadingID() int64 { return r.ID }

// Parser extracts key=value fields from any variable value.
type Parser struct{}

func init() {
	registry.RegisterCatchAll(&Parser{})
}

func (p *Parser) Name() string   { return "rawkv" }
func (p *Parser) Vars() []string { return nil }
func (p *Parser) Priority() int  { return 1000 }

func (p *Parser) QuickCheck(value string) bool {
	return strings.Contains(value, "=")
}

func (p *Parser) Parse(rd *tuner.Reading) registry.Result {
	fields := make(map[string]string)
	for _, line := range patterns.Lines(rd.Value) {
		for _, token := range strings.Fields(line) {
			if k, v, ok := strings.Cut(token, "="); ok && k != "" {
				fields[k] = v
			}
		}
	}

	if len(fields) == 0 {
		return nil
	}

	return &Result{
		ID:     int64(rd.ID),
		Var:    rd.Var,
		Fields: fields,
	}
}
