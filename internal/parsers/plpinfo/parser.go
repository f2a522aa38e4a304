// Package plpinfo parses the plpinfo variable: the broadcast stream id plus
// one row per physical layer pipe.
package plpinfo

import (
	"sort"
	"strconv"
	"strings"

	"atsc3_parser/internal/modcod"
	"atsc3_parser/internal/patterns"
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/tuner"
)

// Result represents a parsed plpinfo value.
type Result struct {
	ID      int64 `json:"reading_id,omitempty"`
	BSID    int64 `json:"bsid,omitempty"`
	HasBSID bool  `json:"has_bsid,omitempty"`
	PLPs    []PLP `json:"plps"`
}

// PLP represents one physical layer pipe row.
type PLP struct {
	ID         int         `json:"id"`
	Raw        string      `json:"raw"` // The row text verbatim
	Lock       string      `json:"lock,omitempty"`
	Modulation string      `json:"mod,omitempty"`
	CodeRate   string      `json:"cod,omitempty"`
	Layer      string      `json:"layer,omitempty"`
	SNR        *modcod.SNR `json:"snr,omitempty"` // Required SNR window when mod+cod match the table
}

func (r *Result) Type() string     { return "plpinfo" }
func (r *Result) ReadingID() int64 { return r.ID }

// Parser parses plpinfo values.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string   { return "plpinfo" }
func (p *Parser) Vars() []string { return []string{"plpinfo"} }
func (p *Parser) Priority() int  { return 20 }

func (p *Parser) QuickCheck(value string) bool {
	return strings.Contains(value, "bsid=") || strings.Contains(value, "lock=")
}

func (p *Parser) Parse(rd *tuner.Reading) registry.Result {
	if rd.Value == "" {
		return nil
	}

	result := &Result{
		ID: int64(rd.ID),
	}

	for _, line := range patterns.Lines(rd.Value) {
		if strings.HasPrefix(line, "bsid=") {
			if v, ok := patterns.StatusInt(line, "bsid="); ok {
				result.BSID = v
				result.HasBSID = true
			}
			continue
		}

		m := patterns.PLPRowPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		plp := PLP{
			ID:         id,
			Raw:        line,
			Lock:       patterns.StatusField(line, "lock="),
			Modulation: patterns.StatusField(line, "mod="),
			CodeRate:   patterns.StatusField(line, "cod="),
			Layer:      patterns.StatusField(line, "layer="),
		}

		// Annotate with the required SNR window when the table knows the pair.
		if plp.Modulation != "" && plp.CodeRate != "" {
			if snr, ok := modcod.Lookup(modcod.Normalize(plp.Modulation), plp.CodeRate); ok {
				plp.SNR = &snr
			}
		}

		result.PLPs = append(result.PLPs, plp)
	}

	// Must have at least some data.
	if !result.HasBSID && len(result.PLPs) == 0 {
		return nil
	}

	sort.Slice(result.PLPs, func(i, j int) bool {
		return result.PLPs[i].ID < result.PLPs[j].ID
	})

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
		trace.QuickCheck.Reason = "No bsid= or lock= key found"
		return trace
	}

	bsid := registry.FieldTrace{Name: "bsid", Key: "bsid="}
	if v := patterns.StatusField(rd.Value, "bsid="); v != "" {
		bsid.Matched = true
		bsid.Value = v
	}
	trace.Fields = append(trace.Fields, bsid)

	rows := 0
	for _, line := range patterns.Lines(rd.Value) {
		m := patterns.PLPRowPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rows++
		for _, key := range []string{"lock=", "mod=", "cod=", "layer="} {
			ft := registry.FieldTrace{
				Name: "plp" + m[1] + "." + strings.TrimSuffix(key, "="),
				Key:  key,
			}
			if v := patterns.StatusField(line, key); v != "" {
				ft.Matched = true
				ft.Value = v
			}
			trace.Fields = append(trace.Fields, ft)
		}
	}

	trace.Matched = bsid.Matched || rows > 0
	return trace
}
