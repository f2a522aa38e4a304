// Package crc provides the CRC-32 carried by ATSC 3.0 L1 signaling sections.
package crc

// The L1-Basic and L1-Detail structures each end in a 32-bit CRC computed
// over every preceding byte of the section. The algorithm is the MSB-first
// CRC-32 used across broadcast signaling: polynomial 0x04C11DB7, initial
// value all ones, no reflection, no final XOR. The standard library's
// hash/crc32 only implements the reflected variants, so the table form
// lives here.

const poly32 = 0x04C11DB7

// Init32 is the shift register value before the first byte is processed.
const Init32 uint32 = 0xFFFFFFFF

// GoodValue32 is the expected remainder when a section including its
// trailing 4-byte CRC is processed. If CRC32(section, Init32) equals this
// value, the section is intact.
const GoodValue32 uint32 = 0x00000000

// table32 is the byte-at-a-time lookup table for the MSB-first polynomial.
var table32 = makeTable32()

func makeTable32() [256]uint32 {
	var t [256]uint32
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly32
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// CRC32 calculates the MSB-first CRC-32 of data from the given initial
// register value. Chain calls by feeding one call's result to the next.
func CRC32(data []byte, init uint32) uint32 {
	crc := init
	for _, b := range data {
		crc = (crc << 8) ^ table32[byte(crc>>24)^b]
	}
	return crc
}

// Verify32 checks a section with its trailing 4-byte CRC still appended.
// Feeding the CRC bytes back through the register drives it to zero exactly
// when they match the body.
func Verify32(section []byte) bool {
	if len(section) < 4 {
		return false
	}
	return CRC32(section, Init32) == GoodValue32
}

// Calculate32 computes the 4-byte CRC for a section body, big-endian, ready
// to append.
func Calculate32(body []byte) []byte {
	crc := CRC32(body, Init32)
	return []byte{byte(crc >> 24), byte(crc >> 16), byte(crc >> 8), byte(crc)}
}
