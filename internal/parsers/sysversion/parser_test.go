package sysversion

import (
	"testing"

	"atsc3_parser/internal/tuner"
)

func TestParser_Parse(t *testing.T) {
	p := &Parser{}

	rd := &tuner.Reading{ID: 3, Var: "version", Value: "20250815\n"}

	result := p.Parse(rd)
	if result == nil {
		t.Fatal("Parse() returned nil")
	}

	r, ok := result.(*Result)
	if !ok {
		t.Fatalf("Parse() returned %T, want *Result", result)
	}

	if r.ReadingID() != 3 {
		t.Errorf("ReadingID() = %d, want 3", r.ReadingID())
	}
	if r.Type() != "version" {
		t.Errorf("Type() = %q, want %q", r.Type(), "version")
	}
	if r.Version != "20250815" {
		t.Errorf("Version = %q, want %q", r.Version, "20250815")
	}
	if r.Date != 20250815 {
		t.Errorf("Date = %d, want 20250815", r.Date)
	}
	if !r.L1Detail {
		t.Error("L1Detail = false, want true")
	}
}

func TestParser_ParseOldFirmware(t *testing.T) {
	p := &Parser{}

	tests := []struct {
		value    string
		date     int64
		l1detail bool
	}{
		{"20250623", 20250623, false},
		{"20250624", 20250624, true},
		{"20240101beta2", 20240101, false},
	}

	for _, tt := range tests {
		result := p.Parse(&tuner.Reading{Var: "version", Value: tt.value})
		if result == nil {
			t.Errorf("Parse(%q) returned nil", tt.value)
			continue
		}
		r := result.(*Result)
		if r.Date != tt.date {
			t.Errorf("Parse(%q).Date = %d, want %d", tt.value, r.Date, tt.date)
		}
		if r.L1Detail != tt.l1detail {
			t.Errorf("Parse(%q).L1Detail = %v, want %v", tt.value, r.L1Detail, tt.l1detail)
		}
	}
}

func TestParser_ParseNoDate(t *testing.T) {
	p := &Parser{}

	for _, value := range []string{"", "unknown", "v1.2.3"} {
		if result := p.Parse(&tuner.Reading{Var: "version", Value: value}); result != nil {
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
		{"20250815", true},
		{"20250623", true},
		{"unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := p.QuickCheck(tt.value); got != tt.want {
			t.Errorf("QuickCheck(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
