package rpu

import "fmt"

// MPEG-2 CRC32 with polynomial 0x04C11DB7.
var crcTable [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

func crc32MPEG2(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

// VerifyCRC checks one NAL unit as produced by Encode or found in an output
// stream (start code already removed): the internal start code, the RPU
// prefix, the trailing byte and the CRC32 over the RPU payload.
func VerifyCRC(nal []byte) error {
	if len(nal) < len(startCode) || nal[0] != startCode[0] || nal[1] != startCode[1] {
		return fmt.Errorf("rpu: missing 0x%02X%02X NAL header", startCode[0], startCode[1])
	}
	data := removeEmulationPrevention(nal[len(startCode):])
	// prefix(1) + crc(4) + final byte(1)
	if len(data) < 6 {
		return fmt.Errorf("rpu: payload too short: %d bytes", len(data))
	}
	if data[0] != nalPrefix {
		return fmt.Errorf("rpu: unexpected prefix 0x%02X", data[0])
	}
	if data[len(data)-1] != finalByte {
		return fmt.Errorf("rpu: unexpected final byte 0x%02X", data[len(data)-1])
	}
	body := data[1 : len(data)-5]
	crcBytes := data[len(data)-5 : len(data)-1]
	stored := uint32(crcBytes[0])<<24 | uint32(crcBytes[1])<<16 | uint32(crcBytes[2])<<8 | uint32(crcBytes[3])
	if computed := crc32MPEG2(body); computed != stored {
		return fmt.Errorf("rpu: CRC32 mismatch: computed 0x%08X, stored 0x%08X", computed, stored)
	}
	return nil
}
