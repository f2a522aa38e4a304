// Package main generates synthetic ATSC 3.0 L1 signaling payloads in the
// base64 form an HDHomeRun reports in its l1detail status variable.
//
// The generated payload is a complete L1-Basic section followed by an
// L1-Detail section, both ending in real CRC-32 values, so it exercises the
// same decode path as an over-the-air capture. Flags choose the structure:
// subframe and PLP counts, modulation and code rate, time interleaving,
// channel bonding, time info precision, and padding. The base64 payload is
// written to stdout; -decode renders the decoded field lines on stderr.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"atsc3_parser/internal/bits"
	"atsc3_parser/internal/crc"
	"atsc3_parser/internal/l1"
	"atsc3_parser/internal/modcod"
)

type genParams struct {
	subframes int
	plps      int
	mod       uint64
	cod       uint64
	ti        uint64
	rf        int
	bsid      uint64
	version   uint64
	timeInfo  uint64
	pad       int
}

// Field values for L1D_plp_mod, keyed by the normalized modulation label.
var modCodes = map[string]uint64{
	"QPSK":    0,
	"16QAM":   1,
	"64QAM":   2,
	"256QAM":  3,
	"1024QAM": 4,
	"4096QAM": 5,
}

var tiModes = map[string]uint64{
	"none": 0,
	"cti":  1,
	"hti":  2,
}

// OFDM shape shared by every generated subframe.
const (
	genFFTSize      = 2   // 32K
	genGuard        = 5   // GI_5_1024
	genOFDMSymbols  = 139 // encoded; 140 symbols
	genPilotPattern = 4
	genPilotBoost   = 2
)

func main() {
	subframes := flag.Int("subframes", 1, "Number of subframes (1-256)")
	plps := flag.Int("plps", 1, "PLPs per subframe (1-64)")
	mod := flag.String("mod", "qam256", "PLP modulation (qpsk, qam16, qam64, qam256, qam1024, qam4096)")
	cod := flag.String("cod", "11/15", "PLP LDPC code rate (n/15, n in 2..13)")
	ti := flag.String("ti", "hti", "Time interleaver mode: none, cti or hti")
	rf := flag.Int("rf", 0, "Number of bonded RF channels (0-7)")
	bsid := flag.Int("bsid", 2648, "Broadcast stream id")
	version := flag.Int("l1d-version", 1, "L1-Detail version (bsid appears from 1, mimo-mixed pass from 2)")
	timeInfo := flag.Int("time", 0, "Time info precision: 0 none, 1 ms, 2 us, 3 ns")
	pad := flag.Int("pad", 0, "Extra padding bytes before the detail CRC")
	truncate := flag.Int("truncate", 0, "Emit only the first N bytes of the payload")
	decode := flag.Bool("decode", false, "Decode the generated payload and print the field lines to stderr")
	flag.Parse()

	p := genParams{
		subframes: *subframes,
		plps:      *plps,
		rf:        *rf,
		bsid:      uint64(*bsid),
		version:   uint64(*version),
		timeInfo:  uint64(*timeInfo),
		pad:       *pad,
	}

	switch {
	case p.subframes < 1 || p.subframes > 256:
		fail("Subframe count %d out of range 1-256", p.subframes)
	case p.plps < 1 || p.plps > 64:
		fail("PLP count %d out of range 1-64", p.plps)
	case p.rf < 0 || p.rf > 7:
		fail("Bonded RF count %d out of range 0-7", p.rf)
	case *bsid < 0 || *bsid > 0xFFFF:
		fail("BSID %d out of range 0-65535", *bsid)
	case *version < 0 || *version > 15:
		fail("L1-Detail version %d out of range 0-15", *version)
	case *timeInfo < 0 || *timeInfo > 3:
		fail("Time info precision %d out of range 0-3", *timeInfo)
	case p.pad < 0:
		fail("Padding %d is negative", p.pad)
	case *truncate < 0:
		fail("Truncation length %d is negative", *truncate)
	}

	modCode, ok := modCodes[modcod.Normalize(*mod)]
	if !ok {
		fail("Unknown modulation %q", *mod)
	}
	p.mod = modCode

	codCode, err := codeRateValue(*cod)
	if err != nil {
		fail("%v", err)
	}
	p.cod = codCode

	tiCode, ok := tiModes[strings.ToLower(*ti)]
	if !ok {
		fail("Unknown time interleaver mode %q (use none, cti or hti)", *ti)
	}
	p.ti = tiCode

	// The detail section is built first: the basic section signals its
	// byte length.
	detail, sizeBytes := packDetail(p)
	if sizeBytes > 8191 {
		fail("Detail section is %d bytes, exceeding the 13-bit size field", sizeBytes)
	}
	payload := append(packBasic(p, sizeBytes), detail...)

	if *truncate > 0 && *truncate < len(payload) {
		payload = payload[:*truncate]
	}

	fmt.Println(base64.StdEncoding.EncodeToString(payload))

	if *decode {
		res := l1.DecodeBytes(payload, l1.Options{KeepPadding: true})
		for _, line := range res.Lines {
			fmt.Fprintln(os.Stderr, line)
		}
	}
}

// packBasic builds the 25-byte L1-Basic section, CRC included.
func packBasic(p genParams, detailSizeBytes int) []byte {
	w := bits.NewWriter()
	w.PutBits(1, 3)          // version: the tail carries a mimo_mixed flag
	w.PutBits(0, 1)          // mimo_scattered_pilot_encoding: Walsh-Hadamard
	w.PutBits(1, 1)          // lls_flag: LLS present
	w.PutBits(p.timeInfo, 2) // time_info_flag
	w.PutBits(0, 1)          // return_channel_flag
	w.PutBits(0, 2)          // papr_reduction
	w.PutBits(0, 1)          // frame_length_mode: time-aligned
	w.PutBits(50, 10)        // frame_length: 250 ms in 5 ms units
	w.PutBits(0, 13)         // excess_samples_per_symbol
	w.PutBits(uint64(p.subframes-1), 8)
	w.PutBits(1, 3) // preamble_num_symbols: 2
	w.PutBits(0, 3) // preamble_reduced_carriers
	w.PutBits(0, 2) // content_tag
	w.PutBits(uint64(detailSizeBytes), 13)
	w.PutBits(2, 3)     // detail_fec_type: Mode 3
	w.PutBits(0, 2)     // additional_parity_mode
	w.PutBits(8100, 19) // detail_total_cells
	w.PutBits(0, 1)     // first_sub_mimo
	w.PutBits(0, 2)     // first_sub_miso
	w.PutBits(genFFTSize, 2)
	w.PutBits(0, 3) // first_sub_reduced_carriers
	w.PutBits(genGuard, 4)
	w.PutBits(genOFDMSymbols, 11)
	w.PutBits(genPilotPattern, 5)
	w.PutBits(genPilotBoost, 3)
	w.PutBits(0, 1)  // first_sub_sbs_first
	w.PutBits(0, 1)  // first_sub_sbs_last
	w.PutBits(0, 1)  // first_sub_mimo_mixed
	w.PutBits(0, 47) // reserved

	sum := crc.CRC32(w.Bytes(), crc.Init32)
	w.PutBits(uint64(sum), 32)
	return w.Bytes()
}

// packDetail builds the L1-Detail section with padding and CRC, returning
// the section bytes and the size the basic section must signal.
func packDetail(p genParams) ([]byte, int) {
	w := bits.NewWriter()
	w.PutBits(p.version, 4)
	w.PutBits(uint64(p.rf), 3)
	for i := 0; i < p.rf; i++ {
		w.PutBits(p.bsid+1+uint64(i), 16) // bonded_bsid
		w.PutBits(0, 3)                   // reserved
	}
	if p.timeInfo != 0 {
		w.PutBits(uint64(time.Now().Unix()), 32) // time_sec
		w.PutBits(0, 10)                         // time_msec
		if p.timeInfo > 1 {
			w.PutBits(0, 10) // time_usec
			if p.timeInfo > 2 {
				w.PutBits(0, 10) // time_nsec
			}
		}
	}

	for i := 0; i < p.subframes; i++ {
		if i > 0 {
			w.PutBits(0, 1) // mimo
			w.PutBits(0, 2) // miso
			w.PutBits(genFFTSize, 2)
			w.PutBits(0, 3) // reduced_carriers
			w.PutBits(genGuard, 4)
			w.PutBits(genOFDMSymbols, 11)
			w.PutBits(genPilotPattern, 5)
			w.PutBits(genPilotBoost, 3)
			w.PutBits(0, 1) // sbs_first
			w.PutBits(0, 1) // sbs_last
		}
		if p.subframes > 1 {
			w.PutBits(0, 1) // subframe_multiplex
		}
		w.PutBits(1, 1) // frequency_interleaver: all symbols
		w.PutBits(uint64(p.plps-1), 6)
		for j := 0; j < p.plps; j++ {
			packPLP(w, j, p)
		}
	}

	if p.version >= 1 {
		w.PutBits(p.bsid, 16)
	}
	if p.version >= 2 {
		// Mimo-mixed pass: nothing here uses MIMO, so each later
		// subframe contributes a single zero flag.
		for i := 1; i < p.subframes; i++ {
			w.PutBits(0, 1)
		}
	}

	// Round the section up to whole bytes, plus any requested padding.
	sizeBytes := (w.Len()+32+7)/8 + p.pad
	for padBits := sizeBytes*8 - 32 - w.Len(); padBits > 0; {
		n := padBits
		if n > 32 {
			n = 32
		}
		w.PutBits(0, n)
		padBits -= n
	}

	sum := crc.CRC32(w.Bytes(), crc.Init32)
	w.PutBits(uint64(sum), 32)
	return w.Bytes(), sizeBytes
}

// packPLP writes one core-layer SISO PLP.
func packPLP(w *bits.Writer, j int, p genParams) {
	w.PutBits(uint64(j), 6) // plp_id
	lls := uint64(0)
	if j == 0 {
		lls = 1 // LLS rides the first PLP
	}
	w.PutBits(lls, 1)
	w.PutBits(0, 2)               // layer: core
	w.PutBits(uint64(j)*4096, 24) // plp_start
	w.PutBits(4096, 24)           // plp_size
	w.PutBits(0, 2)               // scrambler: PRBS
	w.PutBits(1, 4)               // fec_type: BCH + 64K LDPC
	w.PutBits(p.mod, 4)
	w.PutBits(p.cod, 4)
	w.PutBits(p.ti, 2)
	switch p.ti {
	case 0:
		w.PutBits(0, 15) // fec_block_start
	case 1:
		w.PutBits(0, 22) // CTI_fec_block_start
	}
	if p.rf > 0 {
		w.PutBits(uint64(p.rf), 3) // num_channel_bonded
		w.PutBits(0, 2)            // channel_bonding_format: plain
		for k := 0; k < p.rf; k++ {
			w.PutBits(uint64(k+1), 3) // bonded_rf_id
		}
	}
	w.PutBits(0, 1) // plp_type: non-dispersed
	if (p.ti == 1 || p.ti == 2) && p.mod == 0 {
		w.PutBits(0, 1) // TI_extended_interleaving
	}
	switch p.ti {
	case 1:
		w.PutBits(0, 3)  // CTI_depth
		w.PutBits(0, 11) // CTI_start_row
	case 2:
		w.PutBits(0, 1)   // HTI_inter_subframe
		w.PutBits(0, 4)   // HTI_num_ti_blocks: 1
		w.PutBits(31, 12) // HTI_num_fec_blocks_max: 32
		w.PutBits(31, 12) // HTI_num_fec_blocks: 32
		w.PutBits(1, 1)   // HTI_cell_interleaver
	}
}

// codeRateValue maps an "n/15" label to its 4-bit field value.
func codeRateValue(s string) (uint64, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok || den != "15" {
		return 0, fmt.Errorf("code rate %q is not of the form n/15", s)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 2 || n > 13 {
		return 0, fmt.Errorf("code rate %q: numerator must be 2..13", s)
	}
	return uint64(n - 2), nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
