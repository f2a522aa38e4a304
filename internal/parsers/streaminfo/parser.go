// Package streaminfo parses the streaminfo variable: the transport stream id
// plus one row per program in the stream.
package streaminfo

import (
	"regexp"
	"strconv"
	"strings"

	"atsc3_parser/internal/patterns"
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/tuner"
)

// Program row: "5004: 5.4 GetTV" or "5005: 5.5 Grit (encrypted)"
var programRowPattern = regexp.MustCompile(`^(\d+):\s*(.*)$`)

// Guide number: "5.4" or "61.10"
var vchannelPattern = regexp.MustCompile(`^\d+\.\d+$`)

// Result represents a parsed streaminfo value.
type Result struct {
	ID       int64     `json:"reading_id,omitempty"`
	TSID     int64     `json:"tsid,omitempty"`
	HasTSID  bool      `json:"has_tsid,omitempty"`
	Programs []Program `json:"programs"`
}

// Program represents one program row.
type Program struct {
	Raw       string `json:"raw"` // The row text verbatim
	Number    int64  `json:"number"`
	VChannel  string `json:"vchannel,omitempty"`
	Name      string `json:"name,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
}

func (r *Result) Type() string     { return "streaminfo" }
func (r *Result) ReadingID() int64 { return r.ID }

// Parser parses streaminfo values.
type Parser struct{}

func init() {
	registry.Register(&Parser{})
}

func (p *Parser) Name() string   { return "streaminfo" }
func (p *Parser) Vars() []string { return []string{"streaminfo"} }
func (p *Parser) Priority() int  { return 30 }

func (p *Parser) QuickCheck(value string) bool {
	return strings.Contains(value, "tsid=") ||
		strings.Contains(value, ":") ||
		strings.Contains(value, "program=")
}

func (p *Parser) Parse(rd *tuner.Reading) registry.Result {
	if rd.Value == "" {
		return nil
	}

	result := &Result{
		ID: int64(rd.ID),
	}

	for _, line := range patterns.Lines(rd.Value) {
		if strings.HasPrefix(line, "tsid=") {
			if v, ok := patterns.StatusInt(line, "tsid="); ok {
				result.TSID = v
				result.HasTSID = true
			}
			continue
		}

		if m := programRowPattern.FindStringSubmatch(line); m != nil {
			result.Programs = append(result.Programs, parseProgramRow(line, m))
			continue
		}

		// Older firmware lists programs as "program=5004" rows.
		if strings.Contains(line, "program=") {
			num, _ := patterns.StatusInt(line, "program=")
			result.Programs = append(result.Programs, Program{
				Raw:       line,
				Number:    num,
				Encrypted: strings.Contains(line, "(encrypted)"),
			})
		}
	}

	// Must have at least some data.
	if !result.HasTSID && len(result.Programs) == 0 {
		return nil
	}

	return result
}

func parseProgramRow(line string, m []string) Program {
	prog := Program{
		Raw:       line,
		Encrypted: strings.Contains(line, "(encrypted)"),
	}
	prog.Number, _ = strconv.ParseInt(m[1], 10, 64)

	rest := m[2]
	if vchan, name, found := strings.Cut(rest, " "); found && vchannelPattern.MatchString(vchan) {
		prog.VChannel = vchan
		rest = name
	} else if vchannelPattern.MatchString(rest) {
		prog.VChannel = rest
		rest = ""
	}

	if prog.Encrypted {
		rest = strings.TrimSuffix(rest, "(encrypted)")
	}
	prog.Name = strings.TrimSpace(rest)

	return prog
}
