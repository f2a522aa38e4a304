// Package patterns provides shared regex patterns and helper functions for
// parsing HDHomeRun status variable text.
package patterns

import (
	"regexp"
	"strconv"
	"strings"
)

// Core patterns used across multiple parsers.
var (
	// TunerVarPattern matches tuner-scoped variable paths, e.g. "/tuner0/status".
	TunerVarPattern = regexp.MustCompile(`^/tuner(\d+)/([a-z0-9]+)$`)

	// SysVarPattern matches system-level variable paths, e.g. "/sys/version".
	SysVarPattern = regexp.MustCompile(`^/sys/([a-z0-9]+)$`)

	// PLPRowPattern matches the numeric id prefix of a PLP info row,
	// e.g. "0: lock=1 mod=qam256 cod=11/15".
	PLPRowPattern = regexp.MustCompile(`^(\d+):`)

	// LeadingDigitsPattern captures the date prefix of a firmware version
	// string, e.g. "20250812beta2" -> "20250812".
	LeadingDigitsPattern = regexp.MustCompile(`^\d+`)

	// statusNumPattern matches the integer token after a key=value separator.
	// Hex ids are reported with an 0x prefix, so both forms are accepted.
	statusNumPattern = regexp.MustCompile(`^[ \t]*([+-]?(?:0[xX][0-9a-fA-F]+|[0-9]+))`)

	// dbNumPattern matches the integer portion of a parenthesized dB
	// annotation, e.g. "(-7.2dBmV)" -> "-7".
	dbNumPattern = regexp.MustCompile(`^[ \t]*([+-]?[0-9]+)`)
)

// StatusInt extracts the integer that follows key in a raw variable string,
// e.g. StatusInt("seq=100 bps=38810240", "bps=") returns 38810240. Stream
// info reports transport stream ids in hex ("tsid=0x0DAF"), so the base is
// auto-detected from the token. The second return is false when the key is
// absent; a key with an unparseable value yields 0, not a miss.
func StatusInt(s, key string) (int64, bool) {
	idx := strings.Index(s, key)
	if idx < 0 {
		return 0, false
	}
	m := statusNumPattern.FindStringSubmatch(s[idx+len(key):])
	if m == nil {
		return 0, true
	}
	v, err := strconv.ParseInt(m[1], 0, 64)
	if err != nil {
		return 0, true
	}
	return v, true
}

// StatusDB extracts the integer dB value from the parenthesized annotation
// that follows key, e.g. StatusDB("ss=94(-7dBmV)", "ss=") returns -7. The
// fractional part is dropped. The search is bounded to the key's own token so
// an unannotated field never picks up its neighbour's annotation. The second
// return is false when the key or the annotation is absent.
func StatusDB(s, key string) (int64, bool) {
	field := StatusField(s, key)
	paren := strings.Index(field, "(")
	if paren < 0 {
		return 0, false
	}
	m := dbNumPattern.FindStringSubmatch(field[paren+1:])
	if m == nil {
		return 0, true
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, true
	}
	return v, true
}

// StatusField extracts the bare token that follows key, up to the next
// whitespace or end of input, e.g. StatusField("0: lock=1 mod=qam256", "mod=")
// returns "qam256". Returns "" when the key is absent.
func StatusField(s, key string) string {
	idx := strings.Index(s, key)
	if idx < 0 {
		return ""
	}
	rest := s[idx+len(key):]
	if end := strings.IndexAny(rest, " \t\r\n"); end >= 0 {
		return rest[:end]
	}
	return rest
}

// FirmwareDate extracts the numeric date prefix of a firmware version string,
// e.g. "20250812beta2" -> 20250812. Returns 0 when the version does not start
// with digits.
func FirmwareDate(version string) int64 {
	m := LeadingDigitsPattern.FindString(version)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Lines splits a raw device string into its non-empty lines, tolerating CRLF
// endings. Blank lines are dropped, matching how the firmware delimits rows.
func Lines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
