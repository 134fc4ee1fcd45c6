package rpu

import (
	"bytes"

	"github.com/Eyevinn/mp4ff/bits"
)

// NALUnitType is the HEVC NAL unit type carrying Dolby Vision RPUs
// (UNSPEC62).
const NALUnitType = 62

// startCode is the two-byte HEVC NAL header of an RPU NAL unit:
// forbidden(1)=0 | type(6)=62 | layer_id(6)=0 | temporal_id_plus1(3)=1.
// Encode output begins with it.
var startCode = []byte{NALUnitType << 1, 0x01}

// NALHeader is written before every encoded RPU in an Annex-B elementary
// stream: a four-byte start code followed by the RPU NAL header.
var NALHeader = []byte{0x00, 0x00, 0x00, 0x01, NALUnitType << 1, 0x01}

const (
	nalPrefix = 0x19
	finalByte = 0x80
)

// addEmulationPrevention inserts 0x03 after any two zero bytes followed by a
// byte <= 3.
func addEmulationPrevention(data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data) + len(data)/64)
	w := bits.NewEBSPWriter(&buf)
	for _, b := range data {
		w.Write(uint(b), 8)
	}
	return buf.Bytes()
}

func removeEmulationPrevention(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if i+2 < len(data) && data[i] == 0 && data[i+1] == 0 && data[i+2] == 3 &&
			(i+3 >= len(data) || data[i+3] <= 3) {
			out = append(out, 0, 0)
			i += 2
		} else {
			out = append(out, data[i])
		}
	}
	return out
}

// SplitNALUnits scans an Annex B byte stream for 3- and 4-byte start codes
// and returns the NAL units between them, start codes removed.
func SplitNALUnits(data []byte) [][]byte {
	n := len(data)
	if n < 4 {
		return nil
	}

	type scPos struct {
		scStart   int
		dataStart int
	}

	var positions []scPos
	i := 0
	for i < n-2 {
		if data[i] == 0 && data[i+1] == 0 {
			if i < n-3 && data[i+2] == 0 && data[i+3] == 1 {
				positions = append(positions, scPos{scStart: i, dataStart: i + 4})
				i += 4
				continue
			}
			if data[i+2] == 1 {
				positions = append(positions, scPos{scStart: i, dataStart: i + 3})
				i += 3
				continue
			}
		}
		i++
	}

	var units [][]byte
	for idx, pos := range positions {
		end := n
		if idx+1 < len(positions) {
			end = positions[idx+1].scStart
		}
		if pos.dataStart >= end {
			continue
		}
		units = append(units, data[pos.dataStart:end])
	}
	return units
}

// IsRPU reports whether nal carries the RPU NAL unit type.
func IsRPU(nal []byte) bool {
	return len(nal) >= 2 && (nal[0]>>1)&0x3F == NALUnitType
}
