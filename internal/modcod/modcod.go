// Package modcod maps ATSC 3.0 modulation and code-rate pairs to the SNR
// window required to sustain them.
package modcod

import (
	"strings"
	"unicode"
)

// SNR is the operating window for one modulation/code-rate pair, in dB.
type SNR struct {
	Min float64
	Max float64
}

type key struct {
	mod string
	cod string
}

// Thresholds per modulation and LDPC code rate. 1/15 and 14/15 have no
// defined rows; lookups for them miss.
var table = map[key]SNR{
	{"QPSK", "2/15"}:     {-6.23, -5.06},
	{"QPSK", "3/15"}:     {-4.32, -2.97},
	{"QPSK", "4/15"}:     {-2.89, -1.36},
	{"QPSK", "5/15"}:     {-1.7, -0.08},
	{"QPSK", "6/15"}:     {-0.54, 1.15},
	{"QPSK", "7/15"}:     {0.3, 2.3},
	{"QPSK", "8/15"}:     {1.16, 3.44},
	{"QPSK", "9/15"}:     {1.97, 4.7},
	{"QPSK", "10/15"}:    {2.77, 5.97},
	{"QPSK", "11/15"}:    {3.6, 7.46},
	{"QPSK", "12/15"}:    {4.49, 9.15},
	{"QPSK", "13/15"}:    {5.53, 11.56},
	{"16QAM", "2/15"}:    {-2.73, -1.14},
	{"16QAM", "3/15"}:    {-0.25, 1.45},
	{"16QAM", "4/15"}:    {1.46, 3.41},
	{"16QAM", "5/15"}:    {2.82, 4.78},
	{"16QAM", "6/15"}:    {4.21, 6.27},
	{"16QAM", "7/15"}:    {5.21, 7.58},
	{"16QAM", "8/15"}:    {6.3, 8.96},
	{"16QAM", "9/15"}:    {7.32, 10.28},
	{"16QAM", "10/15"}:   {8.36, 11.73},
	{"16QAM", "11/15"}:   {9.5, 13.22},
	{"16QAM", "12/15"}:   {10.57, 14.97},
	{"16QAM", "13/15"}:   {11.83, 17.44},
	{"64QAM", "2/15"}:    {-0.26, 1.6},
	{"64QAM", "3/15"}:    {2.27, 4.3},
	{"64QAM", "4/15"}:    {4.07, 6.22},
	{"64QAM", "5/15"}:    {5.5, 7.74},
	{"64QAM", "6/15"}:    {6.96, 9.31},
	{"64QAM", "7/15"}:    {8.01, 10.65},
	{"64QAM", "8/15"}:    {9.11, 12.03},
	{"64QAM", "9/15"}:    {10.15, 13.34},
	{"64QAM", "10/15"}:   {11.21, 14.77},
	{"64QAM", "11/15"}:   {12.38, 16.23},
	{"64QAM", "12/15"}:   {13.48, 17.95},
	{"64QAM", "13/15"}:   {14.75, 20.37},
	{"256QAM", "2/15"}:   {2.37, 4.21},
	{"256QAM", "3/15"}:   {5.0, 7.0},
	{"256QAM", "4/15"}:   {6.88, 8.99},
	{"256QAM", "5/15"}:   {8.35, 10.55},
	{"256QAM", "6/15"}:   {9.85, 12.15},
	{"256QAM", "7/15"}:   {10.93, 13.51},
	{"256QAM", "8/15"}:   {12.05, 14.9},
	{"256QAM", "9/15"}:   {13.1, 16.2},
	{"256QAM", "10/15"}:  {14.18, 17.61},
	{"256QAM", "11/15"}:  {15.35, 19.05},
	{"256QAM", "12/15"}:  {16.45, 20.73},
	{"256QAM", "13/15"}:  {17.72, 23.1},
	{"1024QAM", "2/15"}:  {4.97, 6.81},
	{"1024QAM", "3/15"}:  {7.69, 9.7},
	{"1024QAM", "4/15"}:  {9.61, 11.75},
	{"1024QAM", "5/15"}:  {11.12, 13.34},
	{"1024QAM", "6/15"}:  {12.65, 14.97},
	{"1024QAM", "7/15"}:  {13.75, 16.35},
	{"1024QAM", "8/15"}:  {14.89, 17.75},
	{"1024QAM", "9/15"}:  {15.95, 19.06},
	{"1024QAM", "10/15"}: {17.03, 20.46},
	{"1024QAM", "11/15"}: {18.2, 21.9},
	{"1024QAM", "12/15"}: {19.31, 23.55},
	{"1024QAM", "13/15"}: {20.58, 25.88},
	{"4096QAM", "2/15"}:  {7.58, 9.41},
	{"4096QAM", "3/15"}:  {10.38, 12.4},
	{"4096QAM", "4/15"}:  {12.34, 14.45},
	{"4096QAM", "5/15"}:  {13.88, 16.07},
	{"4096QAM", "6/15"}:  {15.44, 17.72},
	{"4096QAM", "7/15"}:  {16.56, 19.11},
	{"4096QAM", "8/15"}:  {17.72, 20.52},
	{"4096QAM", "9/15"}:  {18.79, 21.84},
	{"4096QAM", "10/15"}: {19.88, 23.25},
	{"4096QAM", "11/15"}: {21.05, 24.69},
	{"4096QAM", "12/15"}: {22.16, 26.34},
	{"4096QAM", "13/15"}: {23.43, 28.62},
}

// Normalize converts a device modulation string to the table's format:
// digits first, letters upper-cased, anything else dropped
// ("qam256" -> "256QAM").
func Normalize(s string) string {
	var digits, letters strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case unicode.IsLetter(r):
			letters.WriteRune(unicode.ToUpper(r))
		}
	}
	return digits.String() + letters.String()
}

// Lookup returns the SNR window for a normalized modulation string and a
// code-rate label such as "8/15". ok is false when the pair has no entry.
func Lookup(mod, cod string) (snr SNR, ok bool) {
	snr, ok = table[key{mod, cod}]
	return snr, ok
}
