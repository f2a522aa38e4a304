package modcod

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"qam256", "256QAM"},
		{"QPSK", "QPSK"},
		{"qpsk", "QPSK"},
		{"1024qam", "1024QAM"},
		{"Qam16", "16QAM"},
		{"4096QAM", "4096QAM"},
		{"qam-256", "256QAM"},
		{"qam_64 ", "64QAM"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		mod     string
		cod     string
		wantMin float64
		wantMax float64
		wantOK  bool
	}{
		{"256QAM low rate", "256QAM", "2/15", 2.37, 4.21, true},
		{"QPSK lowest", "QPSK", "2/15", -6.23, -5.06, true},
		{"QPSK highest", "QPSK", "13/15", 5.53, 11.56, true},
		{"4096QAM highest", "4096QAM", "13/15", 23.43, 28.62, true},
		{"1024QAM mid", "1024QAM", "7/15", 13.75, 16.35, true},
		{"Unknown modulation", "2048QAM", "1/15", 0, 0, false},
		{"Code rate without rows", "256QAM", "1/15", 0, 0, false},
		{"Unnormalized modulation", "qam256", "2/15", 0, 0, false},
		{"Empty pair", "", "", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snr, ok := Lookup(tt.mod, tt.cod)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q, %q) ok = %v, want %v", tt.mod, tt.cod, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if snr.Min != tt.wantMin || snr.Max != tt.wantMax {
				t.Errorf("Lookup(%q, %q) = (%.2f, %.2f), want (%.2f, %.2f)",
					tt.mod, tt.cod, snr.Min, snr.Max, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestTableShape(t *testing.T) {
	mods := []string{"QPSK", "16QAM", "64QAM", "256QAM", "1024QAM", "4096QAM"}
	cods := []string{"2/15", "3/15", "4/15", "5/15", "6/15", "7/15",
		"8/15", "9/15", "10/15", "11/15", "12/15", "13/15"}

	for _, mod := range mods {
		for _, cod := range cods {
			snr, ok := Lookup(mod, cod)
			if !ok {
				t.Errorf("Lookup(%q, %q) missing", mod, cod)
				continue
			}
			if snr.Min >= snr.Max {
				t.Errorf("Lookup(%q, %q): Min %.2f >= Max %.2f", mod, cod, snr.Min, snr.Max)
			}
		}
	}

	if got, want := len(table), len(mods)*len(cods); got != want {
		t.Errorf("table has %d entries, want %d", got, want)
	}
}
