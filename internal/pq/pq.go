// Package pq converts absolute luminance to SMPTE ST 2084 perceptual
// quantizer values and the 12-bit codewords carried in Dolby Vision RPUs.
package pq

import "math"

// MaxNits is the peak luminance representable by the PQ curve.
const MaxNits = 10000.0

// MaxCodeword is the largest 12-bit PQ codeword.
const MaxCodeword = 4095

// ST 2084 constants.
const (
	m1 = 2610.0 / 16384.0
	m2 = 2523.0 / 4096.0 * 128.0
	c1 = 3424.0 / 4096.0
	c2 = 2413.0 / 4096.0 * 32.0
	c3 = 2392.0 / 4096.0 * 32.0
)

// NitsToPQ applies the inverse ST 2084 EOTF to an absolute luminance in
// cd/m². The input is clamped to [0, MaxNits]; the result lies in [0, 1].
func NitsToPQ(nits float64) float64 {
	if nits < 0 || math.IsNaN(nits) {
		nits = 0
	}
	if nits > MaxNits {
		nits = MaxNits
	}
	l := math.Pow(nits/MaxNits, m1)
	return math.Pow((c1+c2*l)/(1+c3*l), m2)
}

// Codeword returns the 12-bit PQ codeword for nits, rounded to nearest.
func Codeword(nits float64) uint16 {
	return FromNormalized(NitsToPQ(nits))
}

// FromNormalized scales a normalized PQ value in [0, 1] to a 12-bit codeword.
// Values outside the range are clamped.
func FromNormalized(v float64) uint16 {
	cw := math.Round(v * MaxCodeword)
	if cw < 0 || math.IsNaN(cw) {
		return 0
	}
	if cw > MaxCodeword {
		return MaxCodeword
	}
	return uint16(cw)
}
