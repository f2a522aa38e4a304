// Package l1 decodes the ATSC 3.0 (A/322) L1-Basic and L1-Detail signaling
// structure that an HDHomeRun tuner exposes base64-encoded in its l1detail
// status variable. The decoder walks the bit-packed preamble in declaration
// order and renders one display line per field, the same lines the tuner
// detail view shows. CRC fields are decoded for display only; nothing is
// verified or corrected.
package l1

import (
	"encoding/base64"
	"fmt"
	"strings"

	"atsc3_parser/internal/bits"
)

// Options adjusts decoding behavior.
type Options struct {
	// KeepPadding renders any trailing padding before the L1-Detail CRC as
	// raw bit groups instead of silently skipping it.
	KeepPadding bool
}

// Summary is the structural digest of a decoded payload, for sinks that
// store shape rather than text.
type Summary struct {
	BasicVersion    int   `json:"l1b_version"`
	DetailVersion   int   `json:"l1d_version"`
	NumSubframes    int   `json:"num_subframes"`
	NumRF           int   `json:"num_rf"`
	DetailSizeBytes int   `json:"detail_size_bytes"`
	HasBSID         bool  `json:"has_bsid"`
	BSID            int   `json:"bsid,omitempty"`
	PLPsPerSubframe []int `json:"plps_per_subframe,omitempty"`
	PLPIDs          []int `json:"plp_ids,omitempty"`
}

// Result is a decoded payload: the ordered display lines plus the summary.
// Truncated means the input ran out mid-structure; Lines then holds
// everything decoded before that point followed by a truncation marker.
type Result struct {
	Lines     []string `json:"lines"`
	Truncated bool     `json:"truncated,omitempty"`
	Summary   Summary  `json:"summary"`
}

// Decode decodes a base64 l1detail payload. It returns nil when the input
// is empty or not valid base64.
func Decode(encoded string) *Result {
	return DecodeWithOptions(encoded, Options{})
}

// DecodeWithOptions is Decode with explicit Options.
func DecodeWithOptions(encoded string, opts Options) *Result {
	data := DecodePayload(encoded)
	if data == nil {
		return nil
	}
	return DecodeBytes(data, opts)
}

// DecodePayload decodes the base64 form of the l1detail value. It returns
// nil for empty input or any deviation from strict standard base64: length
// not a multiple of four, a character outside the alphabet, or padding
// anywhere but the final one or two positions.
func DecodePayload(encoded string) []byte {
	if encoded == "" || len(encoded)%4 != 0 {
		return nil
	}
	// DecodeString tolerates line breaks; the status value never has them
	// and the contract is strict.
	if strings.ContainsAny(encoded, "\r\n") {
		return nil
	}
	data, err := base64.StdEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return nil
	}
	return data
}

// DecodeBytes decodes an already-unpacked payload. It returns nil for an
// empty buffer.
func DecodeBytes(data []byte, opts Options) *Result {
	if len(data) == 0 {
		return nil
	}

	d := &decoder{r: bits.NewReader(data), opts: opts}
	carried := d.decodeBasic()
	d.decodeDetail(carried)

	res := &Result{Lines: d.lines, Truncated: d.r.Truncated(), Summary: d.sum}
	if res.Truncated {
		res.Lines = append(res.Lines, fmt.Sprintf("--- Truncated at bit %d ---", d.r.Offset()))
	}
	return res
}

type decoder struct {
	r     *bits.Reader
	opts  Options
	lines []string
	sum   Summary
}

// bits reads the next n bits. After the reader truncates it keeps returning
// zero; addf suppresses output from then on, so no line is ever emitted for
// a field that was not actually read.
func (d *decoder) bits(n int) uint64 {
	v, _ := d.r.Bits(n)
	return v
}

func (d *decoder) addf(format string, args ...any) {
	if d.r.Truncated() {
		return
	}
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

// ok reports whether everything read so far was actually present.
func (d *decoder) ok() bool { return !d.r.Truncated() }
