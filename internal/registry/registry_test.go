package registry

import (
	"strings"
	"testing"

	"atsc3_parser/internal/tuner"
)

type fakeResult struct {
	typ string
	id  int64
}

func (r fakeResult) Type() string     { return r.typ }
func (r fakeResult) ReadingID() int64 { return r.id }

// fakeParser matches any value containing its needle.
type fakeParser struct {
	name     string
	vars     []string
	needle   string
	priority int
}

func (p *fakeParser) Name() string   { return p.name }
func (p *fakeParser) Vars() []string { return p.vars }
func (p *fakeParser) Priority() int  { return p.priority }

func (p *fakeParser) QuickCheck(value string) bool {
	return p.needle == "" || strings.Contains(value, p.needle)
}

func (p *fakeParser) Parse(r *tuner.Reading) Result {
	if !p.QuickCheck(r.Value) {
		return nil
	}
	return fakeResult{typ: p.name, id: int64(r.ID)}
}

func resultTypes(results []Result) []string {
	types := make([]string, len(results))
	for i, r := range results {
		types[i] = r.Type()
	}
	return types
}

func TestDispatchByVar(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "status", vars: []string{"status"}, needle: "ss="})
	r.Register(&fakeParser{name: "plpinfo", vars: []string{"plpinfo"}, needle: "lock="})
	r.Sort()

	results := r.Dispatch(&tuner.Reading{
		ID:    7,
		Var:   "status",
		Value: "ch=atsc3:605000000 lock=atsc3 ss=94(-7dBmV)",
	})
	if len(results) != 1 {
		t.Fatalf("Dispatch returned %d results, want 1", len(results))
	}
	if results[0].Type() != "status" {
		t.Errorf("result Type = %q, want status", results[0].Type())
	}
	if results[0].ReadingID() != 7 {
		t.Errorf("result ReadingID = %d, want 7", results[0].ReadingID())
	}
}

func TestDispatchQuickCheckGate(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "status", vars: []string{"status"}, needle: "ss="})
	r.Sort()

	// Value lacks the needle, so QuickCheck must skip the parser.
	results := r.Dispatch(&tuner.Reading{Var: "status", Value: "ch=none lock=none"})
	if len(results) != 0 {
		t.Errorf("Dispatch returned %d results, want 0", len(results))
	}
}

func TestDispatchPriorityOrder(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "second", vars: []string{"status"}, priority: 20})
	r.Register(&fakeParser{name: "first", vars: []string{"status"}, priority: 10})
	r.Sort()

	results := r.Dispatch(&tuner.Reading{Var: "status", Value: "anything"})
	want := []string{"first", "second"}
	got := resultTypes(results)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Dispatch order = %v, want %v", got, want)
	}

	if first := r.DispatchFirst(&tuner.Reading{Var: "status", Value: "anything"}); first == nil || first.Type() != "first" {
		t.Errorf("DispatchFirst = %v, want parser %q", first, "first")
	}
}

func TestDispatchGlobalParsers(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "status", vars: []string{"status"}})
	r.Register(&fakeParser{name: "anyvar", needle: "="})
	r.Sort()

	// Global parsers run regardless of the reading's variable.
	results := r.Dispatch(&tuner.Reading{Var: "lockkey", Value: "owner=192.168.1.20"})
	if len(results) != 1 || results[0].Type() != "anyvar" {
		t.Errorf("Dispatch = %v, want [anyvar]", resultTypes(results))
	}
}

func TestDispatchCatchAll(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "status", vars: []string{"status"}, needle: "ss="})
	r.RegisterCatchAll(&fakeParser{name: "fallback"})
	r.Sort()

	// Catch-all runs when nothing matched.
	results := r.Dispatch(&tuner.Reading{Var: "target", Value: "rtp://192.168.1.20:5000"})
	if len(results) != 1 || results[0].Type() != "fallback" {
		t.Errorf("Dispatch = %v, want [fallback]", resultTypes(results))
	}

	// Catch-all stays out of the way when a parser matched.
	results = r.Dispatch(&tuner.Reading{Var: "status", Value: "ss=94(-7dBmV)"})
	if len(results) != 1 || results[0].Type() != "status" {
		t.Errorf("Dispatch = %v, want [status]", resultTypes(results))
	}
}

func TestParserCountDedupes(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "multi", vars: []string{"status", "vstatus"}})
	r.Register(&fakeParser{name: "single", vars: []string{"plpinfo"}})
	r.RegisterCatchAll(&fakeParser{name: "fallback"})

	if got := r.ParserCount(); got != 3 {
		t.Errorf("ParserCount = %d, want 3", got)
	}
	if got := len(r.AllParsers()); got != 3 {
		t.Errorf("AllParsers returned %d parsers, want 3", got)
	}
}

func TestRegisteredVars(t *testing.T) {
	r := New()
	r.Register(&fakeParser{name: "plpinfo", vars: []string{"plpinfo"}})
	r.Register(&fakeParser{name: "status", vars: []string{"status"}})

	vars := r.RegisteredVars()
	if len(vars) != 2 || vars[0] != "plpinfo" || vars[1] != "status" {
		t.Errorf("RegisteredVars = %v, want [plpinfo status]", vars)
	}
}
