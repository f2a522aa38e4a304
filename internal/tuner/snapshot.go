package tuner

import (
	"strconv"

	"atsc3_parser/internal/patterns"
)

// SplitVarPath splits a raw variable path into its tuner index and variable
// name. System-wide paths like "/sys/version" return a tuner index of -1.
func SplitVarPath(path string) (tunerIndex int, name string, ok bool) {
	if m := patterns.TunerVarPattern.FindStringSubmatch(path); m != nil {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, "", false
		}
		return idx, m[2], true
	}
	if m := patterns.SysVarPattern.FindStringSubmatch(path); m != nil {
		return -1, m[1], true
	}
	return 0, "", false
}

// VarPath returns the raw device path for a variable name, inverting
// SplitVarPath. A negative tuner index produces the system-wide form.
func VarPath(tunerIndex int, name string) string {
	if tunerIndex < 0 {
		return "/sys/" + name
	}
	return "/tuner" + strconv.Itoa(tunerIndex) + "/" + name
}

// L1DetailMinDate is the newest firmware build date that does NOT publish
// the l1detail variable. Builds after it carry L1 signaling captures.
const L1DetailMinDate = 20250623

// Snapshot holds the latest raw value of every variable for one tuner,
// collected across readings. It is the input to detail report assembly.
type Snapshot struct {
	DeviceID   string `json:"device_id"`
	Tuner      int    `json:"tuner"`
	Status     string `json:"status,omitempty"`
	StreamInfo string `json:"streaminfo,omitempty"`
	PLPInfo    string `json:"plpinfo,omitempty"`
	L1Detail   string `json:"l1detail,omitempty"`
	Version    string `json:"version,omitempty"`
}

// Apply stores a reading's value in the matching snapshot slot. Readings for
// unknown variables are ignored. Apply never checks the reading's tuner
// index; routing readings to the right snapshot is the caller's job.
func (s *Snapshot) Apply(r *Reading) {
	if r == nil {
		return
	}
	switch r.Var {
	case "status":
		s.Status = r.Value
	case "streaminfo":
		s.StreamInfo = r.Value
	case "plpinfo":
		s.PLPInfo = r.Value
	case "l1detail":
		s.L1Detail = r.Value
	case "version":
		s.Version = r.Value
	}
}
