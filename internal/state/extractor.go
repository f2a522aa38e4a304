package state

import (
	"fmt"

	"atsc3_parser/internal/l1"
	"atsc3_parser/internal/parsers/l1detail"
	"atsc3_parser/internal/parsers/plpinfo"
	"atsc3_parser/internal/parsers/status"
	"atsc3_parser/internal/parsers/streaminfo"
	"atsc3_parser/internal/parsers/sysversion"
	"atsc3_parser/internal/registry"
	"atsc3_parser/internal/tuner"
)

// ExtractAndUpdate extracts relevant data from a reading and its parsed
// results, then updates the tracker accordingly.
func ExtractAndUpdate(t *Tracker, rd *tuner.Reading, results []registry.Result) {
	// Build the base tuner update from the reading metadata.
	update := TunerUpdate{
		DeviceID: rd.DeviceID,
		Tuner:    rd.Tuner,
	}

	// Device and channel info may ride along on the reading envelope.
	if rd.Device != nil {
		update.Model = rd.Device.Model
		update.Version = rd.Device.Firmware
		update.IP = rd.Device.IP
	}
	if rd.Channel != nil {
		update.Modulation = rd.Channel.Modulation
		update.Frequency = uint32(rd.Channel.Frequency)
	}

	// Process each parsed result to extract additional data.
	var l1sum *l1.Summary
	for _, result := range results {
		if sum := extractFromResult(&update, result); sum != nil {
			l1sum = sum
		}
	}

	if update.DeviceID == "" {
		return
	}

	st, _ := t.UpdateTuner(update)

	// The L1 capture keys on frequency, which the tuner state carries even
	// when this reading does not.
	if rd.Var == "l1detail" && rd.Value != "" && st != nil {
		c := &L1Capture{
			Frequency: st.Frequency,
			DeviceID:  st.DeviceID,
			Tuner:     st.Tuner,
			Capture:   rd.Value,
		}
		if l1sum != nil {
			c.Summary = *l1sum
		}
		t.UpdateL1(c)
	}
}

// extractFromResult extracts data from a parsed result into the update
// struct. It returns the structural summary when the result carries one.
func extractFromResult(update *TunerUpdate, result registry.Result) *l1.Summary {
	switch r := result.(type) {
	case *status.Result:
		update.Channel = r.Channel
		update.Lock = r.Lock
		update.HasSignal = true
		update.SignalStrength = int(r.SignalStrength)
		update.SignalQuality = int(r.SignalQuality)
		update.SymbolQuality = int(r.SymbolQuality)
		if r.HasDB() {
			update.HasDB = true
			update.SignalDBmV = int(*r.SignalDBmV)
			if r.SNRdB != nil {
				update.SNRdB = int(*r.SNRdB)
			}
		}
		spec := tuner.ParseChannelSpec(r.Channel)
		if spec.Frequency != 0 {
			update.Frequency = uint32(spec.Frequency)
		}
		if rf := tuner.RFChannel(r.Channel); rf != 0 {
			update.RF = rf
		}
		if update.Modulation == "" {
			update.Modulation = spec.Modulation
		}

	case *plpinfo.Result:
		if r.HasBSID {
			update.BSID = r.BSID
		}
		for _, plp := range r.PLPs {
			update.PLPs = append(update.PLPs,
				fmt.Sprintf("%d:%s:%s", plp.ID, plp.Modulation, plp.CodeRate))
		}

	case *streaminfo.Result:
		if r.HasTSID {
			update.TSID = r.TSID
		}
		for _, prog := range r.Programs {
			update.Programs = append(update.Programs, ProgramSeen{
				Number:    prog.Number,
				VChannel:  prog.VChannel,
				Name:      prog.Name,
				Encrypted: prog.Encrypted,
			})
		}

	case *sysversion.Result:
		update.Version = r.Version

	case *l1detail.Result:
		sum := r.Summary
		return &sum
	}

	return nil
}
