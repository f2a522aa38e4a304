package l1

import "fmt"

// Field code labels. Every lookup is range-checked; out-of-range codes
// render as Reserved rather than indexing anything.

func pilotEncodingLabel(v uint64) string {
	if v == 0 {
		return "Walsh-Hadamard"
	}
	return "Null pilots"
}

func llsLabel(v uint64) string {
	if v == 0 {
		return "No LLS"
	}
	return "LLS present"
}

func timeInfoLabel(v uint64) string {
	switch v {
	case 0:
		return "Not included"
	case 1:
		return "ms precision"
	case 2:
		return "us precision"
	default:
		return "ns precision"
	}
}

func paprLabel(v uint64) string {
	switch v {
	case 0:
		return "None"
	case 1:
		return "Tone reservation only"
	case 2:
		return "ACE only"
	default:
		return "Both TR and ACE"
	}
}

func mimoLabel(v uint64) string {
	if v == 0 {
		return "No MIMO"
	}
	return "MIMO"
}

func fftSizeLabel(v uint64) string {
	switch v {
	case 0:
		return "8K"
	case 1:
		return "16K"
	case 2:
		return "32K"
	default:
		return "Reserved"
	}
}

func guardIntervalLabel(v uint64) string {
	switch v {
	case 1:
		return "GI_1_192"
	case 2:
		return "GI_2_384"
	case 3:
		return "GI_3_512"
	case 4:
		return "GI_4_768"
	case 5:
		return "GI_5_1024"
	case 6:
		return "GI_6_1536"
	case 7:
		return "GI_7_2048"
	case 8:
		return "GI_8_2432"
	case 9:
		return "GI_9_3072"
	case 10:
		return "GI_10_3648"
	case 11:
		return "GI_11_4096"
	case 12:
		return "GI_12_4864"
	default:
		return fmt.Sprintf("Reserved (%d)", v)
	}
}

func freqInterleaverLabel(v uint64) string {
	if v == 0 {
		return "Preamble Only"
	}
	return "All Symbols"
}

func plpLayerLabel(v uint64) string {
	switch v {
	case 0:
		return "Core"
	case 1:
		return "Enhanced"
	default:
		return "Reserved"
	}
}

func scramblerLabel(v uint64) string {
	if v == 0 {
		return "PRBS"
	}
	return "Reserved"
}

func plpFECTypeLabel(v uint64) string {
	switch v {
	case 0:
		return "BCH + 16K LDPC"
	case 1:
		return "BCH + 64K LDPC"
	case 2:
		return "CRC + 16K LDPC"
	case 3:
		return "CRC + 64K LDPC"
	case 4:
		return "16K LDPC only"
	case 5:
		return "64K LDPC only"
	default:
		return "Reserved"
	}
}

func plpModLabel(v uint64) string {
	switch v {
	case 0:
		return "QPSK"
	case 1:
		return "16QAM"
	case 2:
		return "64QAM"
	case 3:
		return "256QAM"
	case 4:
		return "1024QAM"
	case 5:
		return "4096QAM"
	default:
		return "Reserved"
	}
}

func plpCodLabel(v uint64) string {
	if v <= 11 {
		return fmt.Sprintf("%d/15", v+2)
	}
	return "Reserved"
}

func tiModeLabel(v uint64) string {
	switch v {
	case 0:
		return "No TI"
	case 1:
		return "CTI"
	case 2:
		return "HTI"
	default:
		return "Reserved"
	}
}
