package l1

// carried holds the L1-Basic fields that L1-Detail decoding depends on.
type carried struct {
	version           uint64
	timeInfoFlag      uint64
	numSubframes      uint64 // encoded value; true count is +1
	detailSizeBytes   uint64
	firstSubMIMO      bool
	firstSubSBSFirst  bool
	firstSubSBSLast   bool
	firstSubMIMOMixed bool
}

// Widths of the two L1-Basic branch layouts. Each pair of variants must
// consume the same number of bits or every later field shifts.
const (
	frameLengthBranchBits = 23
	versionTailBits       = 48
)

// decodeBasic walks the 200-bit L1-Basic structure in declaration order.
func (d *decoder) decodeBasic() carried {
	var c carried

	d.addf("--- L1-Basic Signaling ---")

	v := d.bits(3)
	d.addf("L1B_version: %d", v)
	c.version = v
	if d.ok() {
		d.sum.BasicVersion = int(v)
	}

	d.addf("L1B_mimo_scattered_pilot_encoding: %s", pilotEncodingLabel(d.bits(1)))
	d.addf("L1B_lls_flag: %s", llsLabel(d.bits(1)))

	v = d.bits(2)
	d.addf("L1B_time_info_flag: %s", timeInfoLabel(v))
	c.timeInfoFlag = v

	d.addf("L1B_return_channel_flag: %d", d.bits(1))
	d.addf("L1B_papr_reduction: %s", paprLabel(d.bits(2)))

	d.decodeFrameLength(d.bits(1))

	v = d.bits(8)
	d.addf("L1B_num_subframes: %d", v+1)
	c.numSubframes = v
	if d.ok() {
		d.sum.NumSubframes = int(v) + 1
	}

	d.addf("L1B_preamble_num_symbols: %d", d.bits(3)+1)
	d.addf("L1B_preamble_reduced_carriers: %d", d.bits(3))
	d.addf("L1B_L1_Detail_content_tag: %d", d.bits(2))

	v = d.bits(13)
	d.addf("L1B_L1_Detail_size_bytes: %d", v)
	c.detailSizeBytes = v
	if d.ok() {
		d.sum.DetailSizeBytes = int(v)
	}

	d.addf("L1B_L1_Detail_fec_type: Mode %d", d.bits(3)+1)
	d.addf("L1B_L1_additional_parity_mode: K=%d", d.bits(2))
	d.addf("L1B_L1_Detail_total_cells: %d", d.bits(19))

	v = d.bits(1)
	d.addf("L1B_first_sub_mimo: %s", mimoLabel(v))
	c.firstSubMIMO = v == 1

	d.addf("L1B_first_sub_miso: %d", d.bits(2))
	d.addf("L1B_first_sub_fft_size: %s", fftSizeLabel(d.bits(2)))
	d.addf("L1B_first_sub_reduced_carriers: %d", d.bits(3))
	d.addf("L1B_first_sub_guard_interval: %s", guardIntervalLabel(d.bits(4)))
	d.addf("L1B_first_sub_num_ofdm_symbols: %d", d.bits(11)+1)
	d.addf("L1B_first_sub_scattered_pilot_pattern: %d", d.bits(5))
	d.addf("L1B_first_sub_scattered_pilot_boost: %d", d.bits(3))

	v = d.bits(1)
	d.addf("L1B_first_sub_sbs_first: %d", v)
	c.firstSubSBSFirst = v == 1

	v = d.bits(1)
	d.addf("L1B_first_sub_sbs_last: %d", v)
	c.firstSubSBSLast = v == 1

	d.decodeVersionTail(&c)

	d.addf("L1B_crc: 0x%08x", d.bits(32))

	return c
}

// decodeFrameLength is the frame-length-mode branch: time-aligned (mode 0)
// or symbol-aligned (mode 1), 23 bits either way.
func (d *decoder) decodeFrameLength(mode uint64) {
	if mode == 0 {
		d.addf("L1B_frame_length_mode: Time-aligned")
		d.addf("  L1B_frame_length: %d", d.bits(10))
		d.addf("  L1B_excess_samples_per_symbol: %d", d.bits(13))
		return
	}
	d.addf("L1B_frame_length_mode: Symbol-aligned")
	d.addf("  L1B_time_offset: %d", d.bits(16))
	d.addf("  L1B_additional_samples: %d", d.bits(7))
}

// decodeVersionTail is the version-gated branch: version >= 1 carries a
// mimo_mixed flag ahead of the reserved run, version 0 is all reserved.
// 48 bits either way; mimo_mixed defaults to 0 when absent.
func (d *decoder) decodeVersionTail(c *carried) {
	if c.version >= 1 {
		v := d.bits(1)
		d.addf("L1B_first_sub_mimo_mixed: %d", v)
		c.firstSubMIMOMixed = v == 1
		d.r.Skip(versionTailBits - 1)
		return
	}
	d.r.Skip(versionTailBits)
}
