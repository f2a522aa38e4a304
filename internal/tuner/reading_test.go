package tuner

import (
	"encoding/json"
	"testing"
)

func TestFlexInt64_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  FlexInt64
	}{
		{"integer", `123`, 123},
		{"string number", `"456"`, 456},
		{"empty string", `""`, 0},
		{"negative integer", `-100`, -100},
		{"negative string", `"-200"`, -200},
		{"large number", `9223372036854775807`, 9223372036854775807},
		{"zero", `0`, 0},
		{"string zero", `"0"`, 0},
		{"invalid string", `"not a number"`, 0},
		{"null", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got FlexInt64
			err := json.Unmarshal([]byte(tt.input), &got)
			if err != nil {
				t.Fatalf("Unmarshal returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("FlexInt64 = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFeedWrapper_ToReading(t *testing.T) {
	t.Run("nil reading", func(t *testing.T) {
		w := &FeedWrapper{}
		r := w.ToReading()
		if r != nil {
			t.Errorf("expected nil, got %+v", r)
		}
	})

	t.Run("basic conversion", func(t *testing.T) {
		w := &FeedWrapper{
			Reading: &FeedReading{
				ID:        123,
				Timestamp: "2026-08-15T12:00:00Z",
				DeviceID:  "10A4C8E2",
				Tuner:     1,
				Var:       "status",
				Value:     "ch=atsc3:605000000 lock=atsc3 ss=94(-7dBmV) snq=87(28dB) seq=100 bps=38810240 pps=3294",
				Frequency: 605000000,
			},
		}

		r := w.ToReading()
		if r == nil {
			t.Fatal("expected reading, got nil")
		}
		if r.ID != 123 {
			t.Errorf("ID = %d, want 123", r.ID)
		}
		if r.Var != "status" {
			t.Errorf("Var = %s, want status", r.Var)
		}
		if r.Tuner != 1 {
			t.Errorf("Tuner = %d, want 1", r.Tuner)
		}
		if r.DeviceID != "10A4C8E2" {
			t.Errorf("DeviceID = %s, want 10A4C8E2", r.DeviceID)
		}
	})

	t.Run("device id from wrapper", func(t *testing.T) {
		w := &FeedWrapper{
			Reading: &FeedReading{
				ID:    456,
				Var:   "plpinfo",
				Value: "bsid=2648\n0: lock=1 mod=qam256 cod=11/15",
			},
			Device: &Device{
				ID:    "1080A2C4",
				Model: "HDHR5-4K",
			},
		}

		r := w.ToReading()
		if r == nil {
			t.Fatal("expected reading, got nil")
		}
		if r.DeviceID != "1080A2C4" {
			t.Errorf("DeviceID = %s, want 1080A2C4 (from device)", r.DeviceID)
		}
		if r.Device == nil {
			t.Error("Device should be populated")
		}
	})

	t.Run("var and tuner from path", func(t *testing.T) {
		w := &FeedWrapper{
			Reading: &FeedReading{
				ID:    789,
				Path:  "/tuner2/l1detail",
				Value: "AAgABGA=",
			},
		}

		r := w.ToReading()
		if r == nil {
			t.Fatal("expected reading, got nil")
		}
		if r.Var != "l1detail" {
			t.Errorf("Var = %s, want l1detail (from path)", r.Var)
		}
		if r.Tuner != 2 {
			t.Errorf("Tuner = %d, want 2 (from path)", r.Tuner)
		}
	})

	t.Run("explicit var wins over path", func(t *testing.T) {
		w := &FeedWrapper{
			Reading: &FeedReading{
				Var:   "status",
				Tuner: 0,
				Path:  "/tuner3/plpinfo",
			},
		}

		r := w.ToReading()
		if r == nil {
			t.Fatal("expected reading, got nil")
		}
		if r.Var != "status" {
			t.Errorf("Var = %s, want status", r.Var)
		}
		if r.Tuner != 0 {
			t.Errorf("Tuner = %d, want 0", r.Tuner)
		}
	})
}

func TestReading_JSONRoundTrip(t *testing.T) {
	original := &Reading{
		ID:        12345,
		Timestamp: "2026-08-15T10:30:00Z",
		DeviceID:  "10A4C8E2",
		Tuner:     0,
		Var:       "plpinfo",
		Value:     "bsid=2648\n0: lock=1 freq=605000000 mod=qam256 cod=11/15 plps=0",
		Frequency: 605000000,
		Device: &Device{
			ID:       "10A4C8E2",
			Model:    "HDHR5-4K",
			Firmware: "20250812",
		},
		Channel: &Channel{
			Modulation: "atsc3",
			Frequency:  605000000,
			RF:         36,
			PLPs:       "0",
		},
	}

	// Marshal to JSON.
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// Unmarshal back.
	var decoded Reading
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	// Verify key fields.
	if decoded.ID != original.ID {
		t.Errorf("ID = %d, want %d", decoded.ID, original.ID)
	}
	if decoded.Var != original.Var {
		t.Errorf("Var = %s, want %s", decoded.Var, original.Var)
	}
	if decoded.Value != original.Value {
		t.Errorf("Value = %s, want %s", decoded.Value, original.Value)
	}
	if decoded.Device == nil {
		t.Error("Device should not be nil")
	} else if decoded.Device.Firmware != original.Device.Firmware {
		t.Errorf("Device.Firmware = %s, want %s", decoded.Device.Firmware, original.Device.Firmware)
	}
	if decoded.Channel == nil {
		t.Error("Channel should not be nil")
	} else if decoded.Channel.RF != original.Channel.RF {
		t.Errorf("Channel.RF = %d, want %d", decoded.Channel.RF, original.Channel.RF)
	}
}
