// Package report assembles the per-tuner detail report: the service ids,
// each PLP row with its required-SNR annotation, and the decoded L1
// signaling when the firmware publishes it.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"atsc3_parser/internal/l1"
	"atsc3_parser/internal/modcod"
	"atsc3_parser/internal/patterns"
	"atsc3_parser/internal/tuner"
)

// HLine is the separator token between the PLP block and the L1 block. A
// screen renderer draws it as a horizontal rule; saved files carry it
// literally.
const HLine = "__HLINE__"

// Collect assembles the report lines for one tuner snapshot. It returns nil
// when the snapshot has no plpinfo; everything else degrades to "Not set"
// rows. PLP rows keep the order the device emitted them in.
func Collect(snap *tuner.Snapshot) []string {
	if snap == nil || snap.PLPInfo == "" {
		return nil
	}

	lines := []string{" "}

	if bsid, ok := patterns.StatusInt(snap.PLPInfo, "bsid="); ok {
		lines = append(lines, fmt.Sprintf("L1D BSID: %d (0x%X)", bsid, bsid))
	} else {
		lines = append(lines, "L1D BSID: Not set")
	}

	if tsid, ok := patterns.StatusInt(snap.StreamInfo, "tsid="); ok {
		lines = append(lines, fmt.Sprintf("SLT TSID: %d (0x%X)", tsid, tsid))
	} else {
		lines = append(lines, "SLT TSID: Not set")
	}
	lines = append(lines, " ")

	for _, row := range patterns.Lines(snap.PLPInfo) {
		if strings.HasPrefix(row, "bsid=") {
			continue
		}
		lines = append(lines, row)
		if snr := rowSNR(row); snr != "" {
			lines = append(lines, snr)
		}
		lines = append(lines, " ")
	}

	// The L1 block needs dB-capable signal readings and a firmware build
	// that publishes l1detail.
	_, hasDB := patterns.StatusDB(snap.Status, "ss=")
	if hasDB && patterns.FirmwareDate(snap.Version) > tuner.L1DetailMinDate && snap.L1Detail != "" {
		lines = append(lines, " ", HLine, " ")
		if dec := l1.Decode(snap.L1Detail); dec != nil {
			lines = append(lines, dec.Lines...)
		}
	}

	return lines
}

// rowSNR returns the required-SNR annotation for one PLP row, or "" when
// the row's modulation and code rate have no table entry.
func rowSNR(row string) string {
	mod := patterns.StatusField(row, "mod=")
	cod := patterns.StatusField(row, "cod=")
	if mod == "" || cod == "" {
		return ""
	}
	snr, ok := modcod.Lookup(modcod.Normalize(mod), cod)
	if !ok {
		return ""
	}
	return fmt.Sprintf("  -> Required SNR: Min %.2f dB, Max %.2f dB", snr.Min, snr.Max)
}

// Filename builds the save name from the RF channel, the service id, and a
// timestamp: "rf31-bsid2648-details-20250815-143021.txt".
func Filename(rf uint32, id int64, t time.Time) string {
	return fmt.Sprintf("rf%d-bsid%d-details-%s.txt", rf, id, t.Format("20060102-150405"))
}

// Save writes the report to path, one line per row, byte-for-byte. The
// HLine token is written literally.
func Save(path string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// AutoSave collects the snapshot's report and writes it to dir under the
// derived filename. The RF channel comes from the tuned channel spec, with
// a raw center frequency converted to its US broadcast channel number. The
// service id is the plpinfo bsid, falling back to the streaminfo tsid.
// It returns the path written.
func AutoSave(dir string, snap *tuner.Snapshot, now time.Time) (string, error) {
	lines := Collect(snap)
	if len(lines) == 0 {
		return "", errors.New("no plp info to report")
	}

	rf := tuner.RFChannel(patterns.StatusField(snap.Status, "ch="))

	var id int64
	if v, ok := patterns.StatusInt(snap.StreamInfo, "tsid="); ok {
		id = v
	}
	if v, ok := patterns.StatusInt(snap.PLPInfo, "bsid="); ok {
		id = v
	}

	path := filepath.Join(dir, Filename(rf, id, now))
	if err := Save(path, lines); err != nil {
		return "", err
	}
	return path, nil
}
