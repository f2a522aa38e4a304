package rawkv

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"atsc3_parser/internal/tuner"
)

func TestParser_Parse(t *testing.T) {
	p := &Parser{}

	rd := &tuner.Reading{
		ID:    5,
		Var:   "target",
		Value: "ip=192.168.1.100:5004 lockkey=none",
	}

	result := p.Parse(rd)
	if result == nil {
		t.Fatal("Parse() returned nil")
	}

	r, ok := result.(*Result)
	if !ok {
		t.Fatalf("Parse() returned %T, want *Result", result)
	}

	if r.ReadingID() != 5 {
		t.Errorf("ReadingID() = %d, want 5", r.ReadingID())
	}
	if r.Type() != "raw" {
		t.Errorf("Type() = %q, want %q", r.Type(), "raw")
	}
	if r.Var != "target" {
		t.Errorf("Var = %q, want %q", r.Var, "target")
	}

	want := map[string]string{
		"ip":      "192.168.1.100:5004",
		"lockkey": "none",
	}
	if diff := cmp.Diff(want, r.Fields); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_ParseMultiLine(t *testing.T) {
	p := &Parser{}

	rd := &tuner.Reading{Var: "debug", Value: "tun: bps=38810240\ndev: resync=0\n"}

	result := p.Parse(rd)
	if result == nil {
		t.Fatal("Parse() returned nil")
	}
	r := result.(*Result)

	want := map[string]string{
		"bps":    "38810240",
		"resync": "0",
	}
	if diff := cmp.Diff(want, r.Fields); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_ParseNoFields(t *testing.T) {
	p := &Parser{}

	for _, value := range []string{"", "none", "just words here"} {
		if result := p.Parse(&tuner.Reading{Var: "target", Value: value}); result != nil {
			t.Errorf("Parse(%q) = %v, want nil", value, result)
		}
	}
}

func TestParser_QuickCheck(t *testing.T) {
	p := &Parser{}

	tests := []struct {
		value string
		want  bool
	}{
		{"ip=192.168.1.100:5004", true},
		{"none", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := p.QuickCheck(tt.value); got != tt.want {
			t.Errorf("QuickCheck(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
