package l1

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"atsc3_parser/internal/bits"
)

// packSingleSubframe builds the smallest interesting payload: one subframe,
// one core PLP, no MIMO, no bonding, one padding bit before the detail CRC.
func packSingleSubframe() []byte {
	w := bits.NewWriter()

	// L1-Basic
	w.PutBits(0, 3)      // version
	w.PutBits(0, 1)      // mimo_scattered_pilot_encoding
	w.PutBits(0, 1)      // lls_flag
	w.PutBits(0, 2)      // time_info_flag
	w.PutBits(0, 1)      // return_channel_flag
	w.PutBits(0, 2)      // papr_reduction
	w.PutBits(0, 1)      // frame_length_mode: time-aligned
	w.PutBits(512, 10)   // frame_length
	w.PutBits(100, 13)   // excess_samples_per_symbol
	w.PutBits(0, 8)      // num_subframes - 1
	w.PutBits(1, 3)      // preamble_num_symbols - 1
	w.PutBits(2, 3)      // preamble_reduced_carriers
	w.PutBits(1, 2)      // content_tag
	w.PutBits(17, 13)    // detail_size_bytes
	w.PutBits(0, 3)      // detail_fec_type
	w.PutBits(1, 2)      // additional_parity_mode
	w.PutBits(12345, 19) // detail_total_cells
	w.PutBits(0, 1)      // first_sub_mimo
	w.PutBits(0, 2)      // first_sub_miso
	w.PutBits(1, 2)      // first_sub_fft_size: 16K
	w.PutBits(0, 3)      // first_sub_reduced_carriers
	w.PutBits(5, 4)      // first_sub_guard_interval
	w.PutBits(99, 11)    // first_sub_num_ofdm_symbols - 1
	w.PutBits(4, 5)      // first_sub_scattered_pilot_pattern
	w.PutBits(2, 3)      // first_sub_scattered_pilot_boost
	w.PutBits(0, 1)      // first_sub_sbs_first
	w.PutBits(0, 1)      // first_sub_sbs_last
	w.PutBits(0, 48)     // reserved (version 0 tail)
	w.PutBits(0xDEADBEEF, 32)

	// L1-Detail
	w.PutBits(0, 4) // version
	w.PutBits(0, 3) // num_rf
	w.PutBits(1, 1) // frequency_interleaver: all symbols
	w.PutBits(0, 6) // num_plp - 1
	w.PutBits(1, 6) // plp_id
	w.PutBits(0, 1) // plp_lls_flag
	w.PutBits(0, 2) // plp_layer: core
	w.PutBits(1000, 24)
	w.PutBits(2000, 24)
	w.PutBits(0, 2)  // scrambler_type
	w.PutBits(2, 4)  // fec_type: CRC + 16K LDPC
	w.PutBits(3, 4)  // mod: 256QAM
	w.PutBits(9, 4)  // cod: 11/15
	w.PutBits(0, 2)  // TI_mode: none
	w.PutBits(7, 15) // fec_block_start
	w.PutBits(0, 1)  // plp_type: non-dispersed
	w.PutBits(1, 1)  // padding up to detail_size_bytes
	w.PutBits(0xCAFEBABE, 32)

	return w.Bytes()
}

var singleSubframeLines = []string{
	"--- L1-Basic Signaling ---",
	"L1B_version: 0",
	"L1B_mimo_scattered_pilot_encoding: Walsh-Hadamard",
	"L1B_lls_flag: No LLS",
	"L1B_time_info_flag: Not included",
	"L1B_return_channel_flag: 0",
	"L1B_papr_reduction: None",
	"L1B_frame_length_mode: Time-aligned",
	"  L1B_frame_length: 512",
	"  L1B_excess_samples_per_symbol: 100",
	"L1B_num_subframes: 1",
	"L1B_preamble_num_symbols: 2",
	"L1B_preamble_reduced_carriers: 2",
	"L1B_L1_Detail_content_tag: 1",
	"L1B_L1_Detail_size_bytes: 17",
	"L1B_L1_Detail_fec_type: Mode 1",
	"L1B_L1_additional_parity_mode: K=1",
	"L1B_L1_Detail_total_cells: 12345",
	"L1B_first_sub_mimo: No MIMO",
	"L1B_first_sub_miso: 0",
	"L1B_first_sub_fft_size: 16K",
	"L1B_first_sub_reduced_carriers: 0",
	"L1B_first_sub_guard_interval: GI_5_1024",
	"L1B_first_sub_num_ofdm_symbols: 100",
	"L1B_first_sub_scattered_pilot_pattern: 4",
	"L1B_first_sub_scattered_pilot_boost: 2",
	"L1B_first_sub_sbs_first: 0",
	"L1B_first_sub_sbs_last: 0",
	"L1B_crc: 0xdeadbeef",
	" ",
	"--- L1-Detail Signaling ---",
	"L1D_version: 0",
	"L1D_num_rf: 0",
	" ",
	"Subframe #0:",
	"  L1D_frequency_interleaver: All Symbols",
	"  L1D_num_plp: 1",
	"    PLP #0:",
	"      L1D_plp_id: 1",
	"      L1D_plp_lls_flag: 0",
	"      L1D_plp_layer: Core",
	"      L1D_plp_start: 1000",
	"      L1D_plp_size: 2000",
	"      L1D_plp_scrambler_type: PRBS",
	"      L1D_plp_fec_type: CRC + 16K LDPC",
	"      L1D_plp_mod: 256QAM",
	"      L1D_plp_cod: 11/15",
	"      L1D_plp_TI_mode: No TI",
	"      L1D_plp_fec_block_start: 7",
	"      L1D_plp_type: non-dispersed",
	"L1D_crc: 0xcafebabe",
}

// packTwoSubframes builds a payload exercising the deep paths: channel
// bonding, full time info, a MIMO subframe with two PLPs (dispersed + HTI
// and an enhanced-layer PLP with reserved FEC), a second subframe with one
// reserved-layer PLP, a version 2 mimo-mixed pass, and 8 padding bits.
func packTwoSubframes() []byte {
	w := bits.NewWriter()

	// L1-Basic
	w.PutBits(3, 3)       // version
	w.PutBits(1, 1)       // mimo_scattered_pilot_encoding: null pilots
	w.PutBits(1, 1)       // lls_flag
	w.PutBits(3, 2)       // time_info_flag: ns
	w.PutBits(1, 1)       // return_channel_flag
	w.PutBits(3, 2)       // papr_reduction
	w.PutBits(1, 1)       // frame_length_mode: symbol-aligned
	w.PutBits(4096, 16)   // time_offset
	w.PutBits(64, 7)      // additional_samples
	w.PutBits(1, 8)       // num_subframes - 1
	w.PutBits(7, 3)       // preamble_num_symbols - 1
	w.PutBits(0, 3)       // preamble_reduced_carriers
	w.PutBits(3, 2)       // content_tag
	w.PutBits(76, 13)     // detail_size_bytes
	w.PutBits(6, 3)       // detail_fec_type
	w.PutBits(2, 2)       // additional_parity_mode
	w.PutBits(524287, 19) // detail_total_cells
	w.PutBits(1, 1)       // first_sub_mimo
	w.PutBits(1, 2)       // first_sub_miso
	w.PutBits(3, 2)       // first_sub_fft_size: reserved
	w.PutBits(7, 3)       // first_sub_reduced_carriers
	w.PutBits(0, 4)       // first_sub_guard_interval: reserved
	w.PutBits(2047, 11)   // first_sub_num_ofdm_symbols - 1
	w.PutBits(31, 5)      // first_sub_scattered_pilot_pattern
	w.PutBits(7, 3)       // first_sub_scattered_pilot_boost
	w.PutBits(1, 1)       // first_sub_sbs_first
	w.PutBits(0, 1)       // first_sub_sbs_last
	w.PutBits(1, 1)       // first_sub_mimo_mixed (version >= 1)
	w.PutBits(0, 47)      // reserved
	w.PutBits(0x12345678, 32)

	// L1-Detail header
	w.PutBits(2, 4) // version
	w.PutBits(2, 3) // num_rf
	w.PutBits(0x1F4B, 16)
	w.PutBits(0, 3)
	w.PutBits(0x0002, 16)
	w.PutBits(0, 3)
	w.PutBits(1700000000, 32) // time_sec
	w.PutBits(999, 10)        // time_msec
	w.PutBits(500, 10)        // time_usec
	w.PutBits(123, 10)        // time_nsec

	// Subframe 0 (parameters inherited from L1-Basic)
	w.PutBits(1, 1)     // subframe_multiplex
	w.PutBits(0, 1)     // frequency_interleaver: preamble only
	w.PutBits(4095, 13) // sbs_null_cells (first_sub_sbs_first set)
	w.PutBits(1, 6)     // num_plp - 1

	// Subframe 0, PLP 0: core, dispersed, QPSK, HTI, bonded
	w.PutBits(0, 6) // plp_id
	w.PutBits(1, 1) // plp_lls_flag
	w.PutBits(0, 2) // plp_layer: core
	w.PutBits(0, 24)
	w.PutBits(16777215, 24)
	w.PutBits(1, 2)   // scrambler_type: reserved
	w.PutBits(1, 4)   // fec_type: BCH + 64K LDPC
	w.PutBits(0, 4)   // mod: QPSK
	w.PutBits(0, 4)   // cod: 2/15
	w.PutBits(2, 2)   // TI_mode: HTI
	w.PutBits(2, 3)   // num_channel_bonded
	w.PutBits(1, 2)   // channel_bonding_format
	w.PutBits(3, 3)   // bonded_rf_id
	w.PutBits(5, 3)   // bonded_rf_id
	w.PutBits(1, 1)   // mimo_stream_combining
	w.PutBits(0, 1)   // mimo_IQ_interleaving
	w.PutBits(1, 1)   // mimo_PH
	w.PutBits(1, 1)   // plp_type: dispersed
	w.PutBits(13, 14) // num_subslices - 1
	w.PutBits(777, 24)
	w.PutBits(1, 1)   // TI_extended_interleaving (HTI + QPSK)
	w.PutBits(1, 1)   // HTI_inter_subframe
	w.PutBits(1, 4)   // HTI_num_ti_blocks - 1
	w.PutBits(49, 12) // HTI_num_fec_blocks_max - 1
	w.PutBits(4, 12)  // HTI_num_fec_blocks - 1, TI block 0
	w.PutBits(9, 12)  // HTI_num_fec_blocks - 1, TI block 1
	w.PutBits(0, 1)   // HTI_cell_interleaver

	// Subframe 0, PLP 1: enhanced layer, reserved FEC, CTI
	w.PutBits(63, 6)
	w.PutBits(0, 1)
	w.PutBits(1, 2) // plp_layer: enhanced
	w.PutBits(4096, 24)
	w.PutBits(8192, 24)
	w.PutBits(0, 2)    // scrambler_type
	w.PutBits(15, 4)   // fec_type: reserved, no mod/cod follow
	w.PutBits(1, 2)    // TI_mode: CTI
	w.PutBits(333, 22) // CTI_fec_block_start
	w.PutBits(0, 3)    // num_channel_bonded
	w.PutBits(0, 1)    // mimo_stream_combining
	w.PutBits(1, 1)    // mimo_IQ_interleaving
	w.PutBits(0, 1)    // mimo_PH
	w.PutBits(10, 5)   // ldm_injection_level

	// Subframe 1 header (decoded fresh)
	w.PutBits(0, 1)  // mimo
	w.PutBits(2, 2)  // miso
	w.PutBits(0, 2)  // fft_size: 8K
	w.PutBits(1, 3)  // reduced_carriers
	w.PutBits(12, 4) // guard_interval
	w.PutBits(0, 11) // num_ofdm_symbols - 1
	w.PutBits(0, 5)
	w.PutBits(0, 3)
	w.PutBits(0, 1)    // sbs_first
	w.PutBits(1, 1)    // sbs_last
	w.PutBits(0, 1)    // subframe_multiplex
	w.PutBits(1, 1)    // frequency_interleaver: all symbols
	w.PutBits(100, 13) // sbs_null_cells
	w.PutBits(0, 6)    // num_plp - 1

	// Subframe 1, PLP 0: reserved layer
	w.PutBits(5, 6)
	w.PutBits(0, 1)
	w.PutBits(2, 2) // plp_layer: reserved
	w.PutBits(1, 24)
	w.PutBits(2, 24)
	w.PutBits(0, 2)
	w.PutBits(4, 4)  // fec_type: 16K LDPC only
	w.PutBits(5, 4)  // mod: 4096QAM
	w.PutBits(11, 4) // cod: 13/15
	w.PutBits(0, 2)  // TI_mode: none
	w.PutBits(0, 15) // fec_block_start
	w.PutBits(0, 3)  // num_channel_bonded
	w.PutBits(31, 5) // ldm_injection_level

	w.PutBits(0x0D5A, 16) // bsid (version >= 1)

	// mimo-mixed pass (version >= 2); subframe 0 flag carried from L1-Basic
	w.PutBits(1, 1) // subframe 0, PLP 0 plp_mimo
	w.PutBits(1, 1)
	w.PutBits(1, 1)
	w.PutBits(0, 1)
	w.PutBits(0, 1) // subframe 0, PLP 1 plp_mimo
	w.PutBits(1, 1) // subframe 1 mimo_mixed
	w.PutBits(0, 1) // subframe 1, PLP 0 plp_mimo

	w.PutBits(0, 8) // padding up to detail_size_bytes
	w.PutBits(0xA1B2C3D4, 32)

	return w.Bytes()
}

var twoSubframeLines = []string{
	"--- L1-Basic Signaling ---",
	"L1B_version: 3",
	"L1B_mimo_scattered_pilot_encoding: Null pilots",
	"L1B_lls_flag: LLS present",
	"L1B_time_info_flag: ns precision",
	"L1B_return_channel_flag: 1",
	"L1B_papr_reduction: Both TR and ACE",
	"L1B_frame_length_mode: Symbol-aligned",
	"  L1B_time_offset: 4096",
	"  L1B_additional_samples: 64",
	"L1B_num_subframes: 2",
	"L1B_preamble_num_symbols: 8",
	"L1B_preamble_reduced_carriers: 0",
	"L1B_L1_Detail_content_tag: 3",
	"L1B_L1_Detail_size_bytes: 76",
	"L1B_L1_Detail_fec_type: Mode 7",
	"L1B_L1_additional_parity_mode: K=2",
	"L1B_L1_Detail_total_cells: 524287",
	"L1B_first_sub_mimo: MIMO",
	"L1B_first_sub_miso: 1",
	"L1B_first_sub_fft_size: Reserved",
	"L1B_first_sub_reduced_carriers: 7",
	"L1B_first_sub_guard_interval: Reserved (0)",
	"L1B_first_sub_num_ofdm_symbols: 2048",
	"L1B_first_sub_scattered_pilot_pattern: 31",
	"L1B_first_sub_scattered_pilot_boost: 7",
	"L1B_first_sub_sbs_first: 1",
	"L1B_first_sub_sbs_last: 0",
	"L1B_first_sub_mimo_mixed: 1",
	"L1B_crc: 0x12345678",
	" ",
	"--- L1-Detail Signaling ---",
	"L1D_version: 2",
	"L1D_num_rf: 2",
	"  L1D_bonded_bsid: 0x1f4b",
	"  L1D_bonded_bsid: 0x0002",
	"L1D_time_sec: 1700000000",
	"L1D_time_msec: 999",
	"L1D_time_usec: 500",
	"L1D_time_nsec: 123",
	" ",
	"Subframe #0:",
	"  L1D_subframe_multiplex: 1",
	"  L1D_frequency_interleaver: Preamble Only",
	"  L1D_sbs_null_cells: 4095",
	"  L1D_num_plp: 2",
	"    PLP #0:",
	"      L1D_plp_id: 0",
	"      L1D_plp_lls_flag: 1",
	"      L1D_plp_layer: Core",
	"      L1D_plp_start: 0",
	"      L1D_plp_size: 16777215",
	"      L1D_plp_scrambler_type: Reserved",
	"      L1D_plp_fec_type: BCH + 64K LDPC",
	"      L1D_plp_mod: QPSK",
	"      L1D_plp_cod: 2/15",
	"      L1D_plp_TI_mode: HTI",
	"      L1D_plp_num_channel_bonded: 2",
	"      L1D_plp_channel_bonding_format: 1",
	"        L1D_plp_bonded_rf_id: 3",
	"        L1D_plp_bonded_rf_id: 5",
	"      L1D_plp_mimo_stream_combining: 1",
	"      L1D_plp_mimo_IQ_interleaving: 0",
	"      L1D_plp_mimo_PH: 1",
	"      L1D_plp_type: dispersed",
	"      L1D_plp_num_subslices: 14",
	"      L1D_plp_subslice_interval: 777",
	"      L1D_plp_TI_extended_interleaving: 1",
	"      L1D_plp_HTI_inter_subframe: 1",
	"      L1D_plp_HTI_num_ti_blocks: 2",
	"      L1D_plp_HTI_num_fec_blocks_max: 50",
	"        L1D_plp_HTI_num_fec_blocks: 5",
	"        L1D_plp_HTI_num_fec_blocks: 10",
	"      L1D_plp_HTI_cell_interleaver: 0",
	"    PLP #1:",
	"      L1D_plp_id: 63",
	"      L1D_plp_lls_flag: 0",
	"      L1D_plp_layer: Enhanced",
	"      L1D_plp_start: 4096",
	"      L1D_plp_size: 8192",
	"      L1D_plp_scrambler_type: PRBS",
	"      L1D_plp_fec_type: Reserved",
	"      L1D_plp_TI_mode: CTI",
	"      L1D_plp_CTI_fec_block_start: 333",
	"      L1D_plp_num_channel_bonded: 0",
	"      L1D_plp_mimo_stream_combining: 0",
	"      L1D_plp_mimo_IQ_interleaving: 1",
	"      L1D_plp_mimo_PH: 0",
	"      L1D_plp_ldm_injection_level: 10",
	" ",
	"Subframe #1:",
	"  L1D_mimo: No MIMO",
	"  L1D_miso: 2",
	"  L1D_fft_size: 8K",
	"  L1D_reduced_carriers: 1",
	"  L1D_guard_interval: GI_12_4864",
	"  L1D_num_ofdm_symbols: 1",
	"  L1D_scattered_pilot_pattern: 0",
	"  L1D_scattered_pilot_boost: 0",
	"  L1D_sbs_first: 0",
	"  L1D_sbs_last: 1",
	"  L1D_subframe_multiplex: 0",
	"  L1D_frequency_interleaver: All Symbols",
	"  L1D_sbs_null_cells: 100",
	"  L1D_num_plp: 1",
	"    PLP #0:",
	"      L1D_plp_id: 5",
	"      L1D_plp_lls_flag: 0",
	"      L1D_plp_layer: Reserved",
	"      L1D_plp_start: 1",
	"      L1D_plp_size: 2",
	"      L1D_plp_scrambler_type: PRBS",
	"      L1D_plp_fec_type: 16K LDPC only",
	"      L1D_plp_mod: 4096QAM",
	"      L1D_plp_cod: 13/15",
	"      L1D_plp_TI_mode: No TI",
	"      L1D_plp_fec_block_start: 0",
	"      L1D_plp_num_channel_bonded: 0",
	"      L1D_plp_ldm_injection_level: 31",
	"L1D_bsid: 0x0d5a",
	"    PLP #0 L1D_plp_mimo: 1",
	"      L1D_plp_mimo_stream_combining: 1",
	"      L1D_plp_mimo_IQ_interleaving: 1",
	"      L1D_plp_mimo_PH: 0",
	"    PLP #1 L1D_plp_mimo: 0",
	"  Subframe #1 L1D_mimo_mixed: 1",
	"    PLP #0 L1D_plp_mimo: 0",
	"L1D_crc: 0xa1b2c3d4",
}

func TestDecodeSingleSubframe(t *testing.T) {
	got := DecodeBytes(packSingleSubframe(), Options{})
	if got == nil {
		t.Fatalf("DecodeBytes returned nil")
	}
	if got.Truncated {
		t.Errorf("Truncated = true for complete payload")
	}
	if diff := cmp.Diff(singleSubframeLines, got.Lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	wantSum := Summary{
		BasicVersion:    0,
		DetailVersion:   0,
		NumSubframes:    1,
		NumRF:           0,
		DetailSizeBytes: 17,
		PLPsPerSubframe: []int{1},
		PLPIDs:          []int{1},
	}
	if diff := cmp.Diff(wantSum, got.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTwoSubframes(t *testing.T) {
	got := DecodeBytes(packTwoSubframes(), Options{})
	if got == nil {
		t.Fatalf("DecodeBytes returned nil")
	}
	if got.Truncated {
		t.Errorf("Truncated = true for complete payload")
	}
	if diff := cmp.Diff(twoSubframeLines, got.Lines); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	wantSum := Summary{
		BasicVersion:    3,
		DetailVersion:   2,
		NumSubframes:    2,
		NumRF:           2,
		DetailSizeBytes: 76,
		HasBSID:         true,
		BSID:            0x0D5A,
		PLPsPerSubframe: []int{2, 1},
		PLPIDs:          []int{0, 63, 5},
	}
	if diff := cmp.Diff(wantSum, got.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestKeepPadding(t *testing.T) {
	data := packSingleSubframe()

	def := DecodeBytes(data, Options{})
	kept := DecodeBytes(data, Options{KeepPadding: true})
	if def == nil || kept == nil {
		t.Fatalf("DecodeBytes returned nil")
	}

	if len(kept.Lines) != len(def.Lines)+1 {
		t.Fatalf("KeepPadding added %d lines, want 1", len(kept.Lines)-len(def.Lines))
	}
	padLine := kept.Lines[len(kept.Lines)-2]
	if padLine != "  L1D_reserved: 0x1 (1 bits)" {
		t.Errorf("padding line = %q", padLine)
	}

	// The CRC lands in the same place either way.
	wantCRC := "L1D_crc: 0xcafebabe"
	if got := def.Lines[len(def.Lines)-1]; got != wantCRC {
		t.Errorf("skip-mode CRC line = %q, want %q", got, wantCRC)
	}
	if got := kept.Lines[len(kept.Lines)-1]; got != wantCRC {
		t.Errorf("keep-mode CRC line = %q, want %q", got, wantCRC)
	}
}

// packBasicFrameLength builds a basic section where everything after the
// frame-length branch is identical, whichever branch is taken.
func packBasicFrameLength(mode uint64) []byte {
	w := bits.NewWriter()
	w.PutBits(0, 3)
	w.PutBits(0, 1)
	w.PutBits(0, 1)
	w.PutBits(0, 2)
	w.PutBits(0, 1)
	w.PutBits(0, 2)
	w.PutBits(mode, 1)
	if mode == 0 {
		w.PutBits(7, 10)
		w.PutBits(9, 13)
	} else {
		w.PutBits(7, 16)
		w.PutBits(9, 7)
	}
	w.PutBits(2, 8)
	w.PutBits(0, 3)
	w.PutBits(0, 3)
	w.PutBits(0, 2)
	w.PutBits(25, 13)
	w.PutBits(0, 3)
	w.PutBits(0, 2)
	w.PutBits(31337, 19)
	w.PutBits(0, 1)
	w.PutBits(0, 2)
	w.PutBits(2, 2)
	w.PutBits(0, 3)
	w.PutBits(7, 4)
	w.PutBits(41, 11)
	w.PutBits(3, 5)
	w.PutBits(1, 3)
	w.PutBits(0, 1)
	w.PutBits(0, 1)
	w.PutBits(0, 48)
	w.PutBits(0x89ABCDEF, 32)
	return w.Bytes()
}

func TestFrameLengthBranchesAlign(t *testing.T) {
	timeAligned := DecodeBytes(packBasicFrameLength(0), Options{})
	symbolAligned := DecodeBytes(packBasicFrameLength(1), Options{})
	if timeAligned == nil || symbolAligned == nil {
		t.Fatalf("DecodeBytes returned nil")
	}

	// Lines 7..9 are the branch itself; everything after must be identical
	// for both layouts, or the branch widths diverged.
	wantTA := []string{
		"L1B_frame_length_mode: Time-aligned",
		"  L1B_frame_length: 7",
		"  L1B_excess_samples_per_symbol: 9",
	}
	wantSA := []string{
		"L1B_frame_length_mode: Symbol-aligned",
		"  L1B_time_offset: 7",
		"  L1B_additional_samples: 9",
	}
	if diff := cmp.Diff(wantTA, timeAligned.Lines[7:10]); diff != "" {
		t.Errorf("time-aligned branch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantSA, symbolAligned.Lines[7:10]); diff != "" {
		t.Errorf("symbol-aligned branch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(timeAligned.Lines[10:], symbolAligned.Lines[10:]); diff != "" {
		t.Errorf("post-branch lines diverge (-time +symbol):\n%s", diff)
	}

	wantCRC := "L1B_crc: 0x89abcdef"
	for _, res := range []*Result{timeAligned, symbolAligned} {
		if res.Lines[28] != wantCRC {
			t.Errorf("CRC line = %q, want %q", res.Lines[28], wantCRC)
		}
	}
}

// packBasicVersionTail varies the version-gated tail: version 0 has 48
// reserved bits, version 1+ a mimo_mixed flag plus 47.
func packBasicVersionTail(version uint64) []byte {
	w := bits.NewWriter()
	w.PutBits(version, 3)
	w.PutBits(0, 1)
	w.PutBits(0, 1)
	w.PutBits(0, 2)
	w.PutBits(0, 1)
	w.PutBits(0, 2)
	w.PutBits(0, 1)
	w.PutBits(0, 10)
	w.PutBits(0, 13)
	w.PutBits(0, 8)
	w.PutBits(0, 3)
	w.PutBits(0, 3)
	w.PutBits(0, 2)
	w.PutBits(25, 13)
	w.PutBits(0, 3)
	w.PutBits(0, 2)
	w.PutBits(0, 19)
	w.PutBits(0, 1)
	w.PutBits(0, 2)
	w.PutBits(0, 2)
	w.PutBits(0, 3)
	w.PutBits(1, 4)
	w.PutBits(0, 11)
	w.PutBits(0, 5)
	w.PutBits(0, 3)
	w.PutBits(0, 1)
	w.PutBits(0, 1)
	if version >= 1 {
		w.PutBits(1, 1)
		w.PutBits(0, 47)
	} else {
		w.PutBits(0, 48)
	}
	w.PutBits(0x89ABCDEF, 32)
	return w.Bytes()
}

func TestVersionTailBranchesAlign(t *testing.T) {
	v0 := DecodeBytes(packBasicVersionTail(0), Options{})
	v1 := DecodeBytes(packBasicVersionTail(1), Options{})
	if v0 == nil || v1 == nil {
		t.Fatalf("DecodeBytes returned nil")
	}

	wantCRC := "L1B_crc: 0x89abcdef"
	crcAt := func(res *Result) string {
		for _, l := range res.Lines {
			if strings.HasPrefix(l, "L1B_crc:") {
				return l
			}
		}
		return ""
	}
	if got := crcAt(v0); got != wantCRC {
		t.Errorf("version 0 CRC line = %q, want %q", got, wantCRC)
	}
	if got := crcAt(v1); got != wantCRC {
		t.Errorf("version 1 CRC line = %q, want %q", got, wantCRC)
	}

	found := false
	for _, l := range v1.Lines {
		if l == "L1B_first_sub_mimo_mixed: 1" {
			found = true
		}
	}
	if !found {
		t.Errorf("version 1 decode missing mimo_mixed line")
	}
	for _, l := range v0.Lines {
		if strings.HasPrefix(l, "L1B_first_sub_mimo_mixed:") {
			t.Errorf("version 0 decode has mimo_mixed line %q", l)
		}
	}
}

// A core-layer PLP whose FEC type is reserved decodes no modulation, so the
// QPSK-conditional extended-interleaving bit must not be read either.
func TestReservedFECSkipsModGates(t *testing.T) {
	w := bits.NewWriter()
	w.PutBits(0, 3)
	w.PutBits(0, 1)
	w.PutBits(0, 1)
	w.PutBits(0, 2)
	w.PutBits(0, 1)
	w.PutBits(0, 2)
	w.PutBits(0, 1)
	w.PutBits(0, 10)
	w.PutBits(0, 13)
	w.PutBits(0, 8)
	w.PutBits(0, 3)
	w.PutBits(0, 3)
	w.PutBits(0, 2)
	w.PutBits(19, 13) // detail_size_bytes
	w.PutBits(0, 3)
	w.PutBits(0, 2)
	w.PutBits(0, 19)
	w.PutBits(0, 1)
	w.PutBits(0, 2)
	w.PutBits(0, 2)
	w.PutBits(0, 3)
	w.PutBits(1, 4)
	w.PutBits(0, 11)
	w.PutBits(0, 5)
	w.PutBits(0, 3)
	w.PutBits(0, 1)
	w.PutBits(0, 1)
	w.PutBits(0, 48)
	w.PutBits(0, 32)

	w.PutBits(0, 4) // L1D version
	w.PutBits(0, 3) // num_rf
	w.PutBits(0, 1) // frequency_interleaver
	w.PutBits(0, 6) // num_plp - 1
	w.PutBits(1, 6)
	w.PutBits(0, 1)
	w.PutBits(0, 2) // layer: core
	w.PutBits(0, 24)
	w.PutBits(0, 24)
	w.PutBits(0, 2)
	w.PutBits(15, 4)  // fec_type: reserved, no mod/cod
	w.PutBits(1, 2)   // TI_mode: CTI
	w.PutBits(5, 22)  // CTI_fec_block_start
	w.PutBits(0, 1)   // plp_type: non-dispersed
	w.PutBits(2, 3)   // CTI_depth (no extended-interleaving bit before it)
	w.PutBits(17, 11) // CTI_start_row
	w.PutBits(0, 4)   // padding
	w.PutBits(0x0000BEEF, 32)

	got := DecodeBytes(w.Bytes(), Options{})
	if got == nil {
		t.Fatalf("DecodeBytes returned nil")
	}
	if got.Truncated {
		t.Fatalf("Truncated = true for complete payload")
	}

	var sawDepth, sawRow bool
	for _, l := range got.Lines {
		switch l {
		case "      L1D_plp_CTI_depth: 2":
			sawDepth = true
		case "      L1D_plp_CTI_start_row: 17":
			sawRow = true
		}
		if strings.Contains(l, "TI_extended_interleaving") {
			t.Errorf("unexpected extended-interleaving line %q", l)
		}
	}
	if !sawDepth || !sawRow {
		t.Errorf("CTI fields misaligned: depth=%v row=%v", sawDepth, sawRow)
	}
	if last := got.Lines[len(got.Lines)-1]; last != "L1D_crc: 0x0000beef" {
		t.Errorf("CRC line = %q", last)
	}
}

func TestTruncationEveryPrefix(t *testing.T) {
	data := packTwoSubframes()
	full := DecodeBytes(data, Options{})
	if full == nil || full.Truncated {
		t.Fatalf("full payload did not decode cleanly")
	}

	for cut := 0; cut < len(data); cut++ {
		res := DecodeBytes(data[:cut], Options{})
		if cut == 0 {
			if res != nil {
				t.Fatalf("cut=0: got non-nil result")
			}
			continue
		}
		if res == nil {
			t.Fatalf("cut=%d: got nil result", cut)
		}
		if !res.Truncated {
			t.Fatalf("cut=%d: Truncated = false", cut)
		}
		if len(res.Lines) == 0 {
			t.Fatalf("cut=%d: no lines", cut)
		}
		marker := res.Lines[len(res.Lines)-1]
		if !strings.HasPrefix(marker, "--- Truncated at bit ") {
			t.Fatalf("cut=%d: last line %q is not the truncation marker", cut, marker)
		}

		// Everything before the marker must be a prefix of the full
		// decode: truncation never changes or invents earlier fields.
		body := res.Lines[:len(res.Lines)-1]
		if len(body) > len(full.Lines) {
			t.Fatalf("cut=%d: %d lines exceed full decode's %d", cut, len(body), len(full.Lines))
		}
		for i := range body {
			if body[i] != full.Lines[i] {
				t.Fatalf("cut=%d: line %d = %q, full decode has %q", cut, i, body[i], full.Lines[i])
			}
		}
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"Single byte", "QQ==", []byte{0x41}},
		{"Three bytes", "QUJD", []byte{0x41, 0x42, 0x43}},
		{"Two bytes", "QUI=", []byte{0x41, 0x42}},
		{"Empty", "", nil},
		{"Length not multiple of four", "QUJDR", nil},
		{"Bad character", "QUJ!", nil},
		{"Padding mid-string", "QQ=Q", nil},
		{"All padding", "====", nil},
		{"Embedded newlines", "AAAA\n\n\n\nAAAA", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodePayload(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodePayload(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestDecodeInvalidInput(t *testing.T) {
	if res := Decode(""); res != nil {
		t.Errorf("Decode(\"\") = %v, want nil", res)
	}
	if res := Decode("not base64!"); res != nil {
		t.Errorf("Decode of invalid base64 = %v, want nil", res)
	}
	if res := DecodeBytes(nil, Options{}); res != nil {
		t.Errorf("DecodeBytes(nil) = %v, want nil", res)
	}

	// Valid base64, far too short for the structure: decodes to a
	// truncated partial rather than failing.
	res := Decode("AAAA")
	if res == nil {
		t.Fatalf("Decode(\"AAAA\") = nil, want truncated result")
	}
	if !res.Truncated {
		t.Errorf("Truncated = false for 3-byte payload")
	}
}

func TestEnumFallbacks(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"fft reserved", fftSizeLabel(3), "Reserved"},
		{"guard zero", guardIntervalLabel(0), "Reserved (0)"},
		{"guard high", guardIntervalLabel(13), "Reserved (13)"},
		{"layer reserved", plpLayerLabel(3), "Reserved"},
		{"scrambler reserved", scramblerLabel(2), "Reserved"},
		{"fec reserved", plpFECTypeLabel(9), "Reserved"},
		{"mod reserved", plpModLabel(6), "Reserved"},
		{"cod reserved", plpCodLabel(12), "Reserved"},
		{"cod last valid", plpCodLabel(11), "13/15"},
		{"ti reserved", tiModeLabel(3), "Reserved"},
		{"guard valid", guardIntervalLabel(12), "GI_12_4864"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
