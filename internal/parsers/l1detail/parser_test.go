package l1detail

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"atsc3_parser/internal/tuner"
)

func TestParser_Parse(t *testing.T) {
	p := &Parser{}

	// Four zero bytes: the decoder gets through the frame-length branch and
	// then runs out mid-field.
	rd := &tuner.Reading{ID: 9, Var: "l1detail", Value: "AAAAAA=="}

	result := p.Parse(rd)
	if result == nil {
		t.Fatal("Parse() returned nil")
	}

	r, ok := result.(*Result)
	if !ok {
		t.Fatalf("Parse() returned %T, want *Result", result)
	}

	if r.ReadingID() != 9 {
		t.Errorf("ReadingID() = %d, want 9", r.ReadingID())
	}
	if r.Type() != "l1" {
		t.Errorf("Type() = %q, want %q", r.Type(), "l1")
	}
	if !r.Truncated {
		t.Error("Truncated = false, want true")
	}

	want := []string{
		"--- L1-Basic Signaling ---",
		"L1B_version: 0",
		"L1B_mimo_scattered_pilot_encoding: Walsh-Hadamard",
		"L1B_lls_flag: No LLS",
		"L1B_time_info_flag: Not included",
		"L1B_return_channel_flag: 0",
		"L1B_papr_reduction: None",
		"L1B_frame_length_mode: Time-aligned",
		"  L1B_frame_length: 0",
		"--- Truncated at bit 32 ---",
	}
	if diff := cmp.Diff(want, r.Lines); diff != "" {
		t.Errorf("Lines mismatch (-want +got):\n%s", diff)
	}

	if r.Summary.BasicVersion != 0 {
		t.Errorf("Summary.BasicVersion = %d, want 0", r.Summary.BasicVersion)
	}
}

func TestParser_ParseInvalid(t *testing.T) {
	p := &Parser{}

	for _, value := range []string{"", "AAA", "not-base64!!"} {
		if result := p.Parse(&tuner.Reading{Var: "l1detail", Value: value}); result != nil {
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
		{"AAAAAA==", true},
		{"AAA", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := p.QuickCheck(tt.value); got != tt.want {
			t.Errorf("QuickCheck(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
