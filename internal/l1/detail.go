package l1

// decodeDetail walks the L1-Detail structure. Subframe 0 inherits the
// first-subframe values L1-Basic already carries; later subframes decode
// their own copies.
func (d *decoder) decodeDetail(c carried) {
	d.addf(" ")
	d.addf("--- L1-Detail Signaling ---")

	// Padding before the final CRC is measured from here, not from an
	// absolute stream position.
	detailStart := d.r.Offset()

	version := d.bits(4)
	d.addf("L1D_version: %d", version)
	if d.ok() {
		d.sum.DetailVersion = int(version)
	}

	numRF := d.bits(3)
	d.addf("L1D_num_rf: %d", numRF)
	if d.ok() {
		d.sum.NumRF = int(numRF)
	}
	for i := uint64(0); i < numRF; i++ {
		d.addf("  L1D_bonded_bsid: 0x%04x", d.bits(16))
		d.r.Skip(3)
	}

	if c.timeInfoFlag != 0 {
		d.addf("L1D_time_sec: %d", d.bits(32))
		d.addf("L1D_time_msec: %d", d.bits(10))
		if c.timeInfoFlag > 1 {
			d.addf("L1D_time_usec: %d", d.bits(10))
			if c.timeInfoFlag > 2 {
				d.addf("L1D_time_nsec: %d", d.bits(10))
			}
		}
	}

	// True PLP count per subframe, needed again by the mimo-mixed pass.
	plpCounts := make([]int, 0, c.numSubframes+1)

	for i := uint64(0); i <= c.numSubframes; i++ {
		d.addf(" ")
		d.addf("Subframe #%d:", i)

		mimo := c.firstSubMIMO
		sbsFirst := c.firstSubSBSFirst
		sbsLast := c.firstSubSBSLast
		if i > 0 {
			v := d.bits(1)
			d.addf("  L1D_mimo: %s", mimoLabel(v))
			mimo = v == 1

			d.addf("  L1D_miso: %d", d.bits(2))
			d.addf("  L1D_fft_size: %s", fftSizeLabel(d.bits(2)))
			d.addf("  L1D_reduced_carriers: %d", d.bits(3))
			d.addf("  L1D_guard_interval: %s", guardIntervalLabel(d.bits(4)))
			d.addf("  L1D_num_ofdm_symbols: %d", d.bits(11)+1)
			d.addf("  L1D_scattered_pilot_pattern: %d", d.bits(5))
			d.addf("  L1D_scattered_pilot_boost: %d", d.bits(3))

			v = d.bits(1)
			d.addf("  L1D_sbs_first: %d", v)
			sbsFirst = v == 1

			v = d.bits(1)
			d.addf("  L1D_sbs_last: %d", v)
			sbsLast = v == 1
		}

		if c.numSubframes > 0 {
			d.addf("  L1D_subframe_multiplex: %d", d.bits(1))
		}
		d.addf("  L1D_frequency_interleaver: %s", freqInterleaverLabel(d.bits(1)))
		if sbsFirst || sbsLast {
			d.addf("  L1D_sbs_null_cells: %d", d.bits(13))
		}

		numPLP := d.bits(6)
		d.addf("  L1D_num_plp: %d", numPLP+1)
		if d.ok() {
			plpCounts = append(plpCounts, int(numPLP)+1)
		}
		for j := uint64(0); j <= numPLP; j++ {
			d.decodePLP(j, mimo, numRF)
		}
	}
	if len(plpCounts) > 0 {
		d.sum.PLPsPerSubframe = plpCounts
	}

	if version >= 1 {
		bsid := d.bits(16)
		d.addf("L1D_bsid: 0x%04x", bsid)
		if d.ok() {
			d.sum.HasBSID = true
			d.sum.BSID = int(bsid)
		}
	}
	if version >= 2 {
		d.decodeMIMOMixed(c, plpCounts)
	}

	// The declared detail size can exceed what the structure actually
	// used; whatever remains before the 32-bit CRC is padding.
	pad := int(c.detailSizeBytes)*8 - 32 - (d.r.Offset() - detailStart)
	if pad > 0 {
		if d.opts.KeepPadding {
			d.renderPadding(pad)
		} else {
			d.r.Skip(pad)
		}
	}

	d.addf("L1D_crc: 0x%08x", d.bits(32))
}

func (d *decoder) decodePLP(j uint64, subframeMIMO bool, numRF uint64) {
	d.addf("    PLP #%d:", j)

	id := d.bits(6)
	d.addf("      L1D_plp_id: %d", id)
	if d.ok() {
		d.sum.PLPIDs = append(d.sum.PLPIDs, int(id))
	}

	d.addf("      L1D_plp_lls_flag: %d", d.bits(1))

	layer := d.bits(2)
	d.addf("      L1D_plp_layer: %s", plpLayerLabel(layer))

	d.addf("      L1D_plp_start: %d", d.bits(24))
	d.addf("      L1D_plp_size: %d", d.bits(24))
	d.addf("      L1D_plp_scrambler_type: %s", scramblerLabel(d.bits(2)))

	fec := d.bits(4)
	d.addf("      L1D_plp_fec_type: %s", plpFECTypeLabel(fec))

	// Modulation and code rate exist only for the defined FEC types. The
	// QPSK gate below must see a modulation decoded for this PLP, never a
	// leftover from a previous one.
	var mod uint64
	haveMod := false
	if fec <= 5 {
		mod = d.bits(4)
		haveMod = true
		d.addf("      L1D_plp_mod: %s", plpModLabel(mod))
		d.addf("      L1D_plp_cod: %s", plpCodLabel(d.bits(4)))
	}

	ti := d.bits(2)
	d.addf("      L1D_plp_TI_mode: %s", tiModeLabel(ti))
	switch ti {
	case 0:
		d.addf("      L1D_plp_fec_block_start: %d", d.bits(15))
	case 1:
		d.addf("      L1D_plp_CTI_fec_block_start: %d", d.bits(22))
	}

	if numRF > 0 {
		bonded := d.bits(3)
		d.addf("      L1D_plp_num_channel_bonded: %d", bonded)
		if bonded > 0 {
			d.addf("      L1D_plp_channel_bonding_format: %d", d.bits(2))
			for k := uint64(0); k < bonded; k++ {
				d.addf("        L1D_plp_bonded_rf_id: %d", d.bits(3))
			}
		}
	}

	if subframeMIMO {
		d.addf("      L1D_plp_mimo_stream_combining: %d", d.bits(1))
		d.addf("      L1D_plp_mimo_IQ_interleaving: %d", d.bits(1))
		d.addf("      L1D_plp_mimo_PH: %d", d.bits(1))
	}

	if layer != 0 {
		// Enhanced and reserved layers end here.
		d.addf("      L1D_plp_ldm_injection_level: %d", d.bits(5))
		return
	}

	if d.bits(1) == 0 {
		d.addf("      L1D_plp_type: non-dispersed")
	} else {
		d.addf("      L1D_plp_type: dispersed")
		d.addf("      L1D_plp_num_subslices: %d", d.bits(14)+1)
		d.addf("      L1D_plp_subslice_interval: %d", d.bits(24))
	}

	if (ti == 1 || ti == 2) && haveMod && mod == 0 {
		d.addf("      L1D_plp_TI_extended_interleaving: %d", d.bits(1))
	}

	switch ti {
	case 1:
		d.addf("      L1D_plp_CTI_depth: %d", d.bits(3))
		d.addf("      L1D_plp_CTI_start_row: %d", d.bits(11))
	case 2:
		inter := d.bits(1)
		d.addf("      L1D_plp_HTI_inter_subframe: %d", inter)

		tiBlocks := d.bits(4)
		d.addf("      L1D_plp_HTI_num_ti_blocks: %d", tiBlocks+1)
		d.addf("      L1D_plp_HTI_num_fec_blocks_max: %d", d.bits(12)+1)
		if inter == 0 {
			d.addf("      L1D_plp_HTI_num_fec_blocks: %d", d.bits(12)+1)
		} else {
			for k := uint64(0); k <= tiBlocks; k++ {
				d.addf("        L1D_plp_HTI_num_fec_blocks: %d", d.bits(12)+1)
			}
		}
		d.addf("      L1D_plp_HTI_cell_interleaver: %d", d.bits(1))
	}
}

// decodeMIMOMixed is the second subframe pass present from L1D version 2:
// per-PLP MIMO signaling for mixed-MIMO subframes. Each subframe uses its
// own PLP count from the first pass.
func (d *decoder) decodeMIMOMixed(c carried, plpCounts []int) {
	for i := 0; i <= int(c.numSubframes); i++ {
		mixed := c.firstSubMIMOMixed
		if i > 0 {
			v := d.bits(1)
			d.addf("  Subframe #%d L1D_mimo_mixed: %d", i, v)
			mixed = v == 1
		}
		if !mixed {
			continue
		}
		count := 0
		if i < len(plpCounts) {
			count = plpCounts[i]
		}
		for j := 0; j < count; j++ {
			v := d.bits(1)
			d.addf("    PLP #%d L1D_plp_mimo: %d", j, v)
			if v == 1 {
				d.addf("      L1D_plp_mimo_stream_combining: %d", d.bits(1))
				d.addf("      L1D_plp_mimo_IQ_interleaving: %d", d.bits(1))
				d.addf("      L1D_plp_mimo_PH: %d", d.bits(1))
			}
		}
	}
}

// renderPadding emits padding as raw 32-bit groups for diagnostics.
func (d *decoder) renderPadding(pad int) {
	for pad > 0 && d.ok() {
		n := pad
		if n > 32 {
			n = 32
		}
		v := d.bits(n)
		d.addf("  L1D_reserved: 0x%x (%d bits)", v, n)
		pad -= n
	}
}
