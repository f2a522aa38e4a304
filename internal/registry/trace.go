package registry

import "atsc3_parser/internal/tuner"

// TraceResult contains trace information from a parser's attempt to parse a reading.
type TraceResult struct {
	ParserName string       // Name of the parser.
	QuickCheck *QuickCheck  // QuickCheck result (nil if not applicable).
	Fields     []FieldTrace // Field extraction attempts.
	Matched    bool         // Whether the parser matched the reading.
}

// QuickCheck contains the result of a parser's quick check.
type QuickCheck struct {
	Passed bool   // Whether the quick check passed.
	Reason string // Optional reason for the result.
}

// FieldTrace contains debug information about a field extraction attempt.
type FieldTrace struct {
	Name    string // Field name (e.g., "bsid", "mod").
	Key     string // The key searched for in the value text.
	Matched bool   // Whether the field was found.
	Value   string // Extracted value (if matched).
}

// Traceable is implemented by parsers that support debug tracing.
// This allows the debug command to show detailed information about
// why a parser did or didn't match a reading.
type Traceable interface {
	// ParseWithTrace attempts to parse the reading and returns detailed trace
	// information about which fields were tried and their results.
	ParseWithTrace(r *tuner.Reading) *TraceResult
}
