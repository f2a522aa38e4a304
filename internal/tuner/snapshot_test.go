package tuner

import "testing"

func TestSplitVarPath(t *testing.T) {
	tests := []struct {
		path      string
		wantTuner int
		wantName  string
		wantOK    bool
	}{
		{"/tuner0/status", 0, "status", true},
		{"/tuner1/plpinfo", 1, "plpinfo", true},
		{"/tuner12/l1detail", 12, "l1detail", true},
		{"/sys/version", -1, "version", true},
		{"/sys/hwmodel", -1, "hwmodel", true},
		{"tuner0/status", 0, "", false},
		{"/tuner0/", 0, "", false},
		{"/tuner/status", 0, "", false},
		{"/tuner0/status/extra", 0, "", false},
		{"", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			gotTuner, gotName, gotOK := SplitVarPath(tt.path)
			if gotTuner != tt.wantTuner || gotName != tt.wantName || gotOK != tt.wantOK {
				t.Errorf("SplitVarPath(%q) = %d, %q, %v, want %d, %q, %v",
					tt.path, gotTuner, gotName, gotOK, tt.wantTuner, tt.wantName, tt.wantOK)
			}
		})
	}
}

func TestVarPath(t *testing.T) {
	tests := []struct {
		tuner int
		name  string
		want  string
	}{
		{0, "status", "/tuner0/status"},
		{3, "l1detail", "/tuner3/l1detail"},
		{-1, "version", "/sys/version"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := VarPath(tt.tuner, tt.name); got != tt.want {
				t.Errorf("VarPath(%d, %q) = %q, want %q", tt.tuner, tt.name, got, tt.want)
			}
		})
	}
}

func TestSnapshot_Apply(t *testing.T) {
	var s Snapshot
	s.DeviceID = "10A4C8E2"

	readings := []*Reading{
		{Var: "status", Value: "ch=atsc3:605000000 lock=atsc3 ss=94(-7dBmV)"},
		{Var: "streaminfo", Value: "tsid=0x0DAF\n5.1: 48.1 KCTS-HD"},
		{Var: "plpinfo", Value: "bsid=2648\n0: lock=1 mod=qam256 cod=11/15"},
		{Var: "l1detail", Value: "AAgABGA="},
		{Var: "version", Tuner: -1, Value: "20250812"},
		{Var: "target", Value: "rtp://192.168.1.20:5000"},
		nil,
	}
	for _, r := range readings {
		s.Apply(r)
	}

	if s.Status == "" || s.StreamInfo == "" || s.PLPInfo == "" || s.L1Detail == "" {
		t.Errorf("Apply left slots empty: %+v", s)
	}
	if s.Version != "20250812" {
		t.Errorf("Version = %q, want 20250812", s.Version)
	}

	// Later readings replace earlier values for the same variable.
	s.Apply(&Reading{Var: "status", Value: "ch=none lock=none"})
	if s.Status != "ch=none lock=none" {
		t.Errorf("Status = %q, want replacement value", s.Status)
	}
}
