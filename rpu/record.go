// Package rpu builds and encodes Dolby Vision profile 8 RPU records
// (Reference Processing Unit, HEVC NAL unit type 62).
package rpu

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned by Validate and Encode for records that
// cannot be represented in the RPU syntax.
var ErrInvalidRecord = errors.New("invalid RPU record")

// Header is the rpu_data_header. vdr_dm_metadata_present_flag is derived
// from the record's DM data and use_prev_vdr_rpu_flag is always 0.
type Header struct {
	RPUType                        uint8
	RPUFormat                      uint16
	VDRRPUProfile                  uint8
	VDRRPULevel                    uint8
	VDRSeqInfoPresent              bool
	ChromaResamplingExplicitFilter bool
	CoefficientDataType            uint8
	CoefficientLog2Denom           uint8
	VDRRPUNormalizedIdc            uint8
	BLVideoFullRange               bool
	BLBitDepthMinus8               uint8
	ELBitDepthMinus8               uint8
	VDRBitDepthMinus8              uint8
	SpatialResamplingFilter        bool
	ELSpatialResamplingFilter      bool
	DisableResidual                bool
	VDRRPUID                       uint8
	MappingColorSpace              uint8
	MappingChromaFormatIdc         uint8

	// Pivots holds the absolute pivot values of each component in
	// bl_bit_depth precision. They are coded as deltas.
	Pivots               [3][]uint16
	NumXPartitionsMinus1 uint8
	NumYPartitionsMinus1 uint8
}

// Profile8Header returns the header used by every generated profile 8
// record: 10-bit base layer, 12-bit VDR, no residual.
func Profile8Header() Header {
	return Header{
		RPUType:              2,
		RPUFormat:            18,
		VDRRPUProfile:        1,
		VDRSeqInfoPresent:    true,
		CoefficientLog2Denom: 23,
		VDRRPUNormalizedIdc:  1,
		BLBitDepthMinus8:     2,
		ELBitDepthMinus8:     2,
		VDRBitDepthMinus8:    4,
		DisableResidual:      true,
		Pivots: [3][]uint16{
			{0, 1023},
			{0, 1023},
			{0, 1023},
		},
	}
}

// PolyPiece is one polynomial mapping segment between two pivots.
// CoefInt and Coef hold the integer and fractional parts of each
// coefficient, fractional parts in coefficient_log2_denom precision.
type PolyPiece struct {
	Order   int
	CoefInt []int32
	Coef    []uint32
}

// Mapping is the vdr_rpu_data_payload: one piece list per component.
type Mapping struct {
	Components [3][]PolyPiece
}

// Profile8Mapping returns the identity mapping: one first order piece per
// component with coefficients 0 and 1.
func Profile8Mapping() *Mapping {
	var m Mapping
	for c := range m.Components {
		m.Components[c] = []PolyPiece{{
			Order:   1,
			CoefInt: []int32{0, 1},
			Coef:    []uint32{0, 0},
		}}
	}
	return &m
}

// Record is a single profile 8 RPU.
type Record struct {
	Profile  uint8
	Modified bool
	Header   Header
	Mapping  *Mapping
	DM       *DMData
	LastByte byte
}

// NewProfile8 returns a record with the profile 8 header and mapping and no
// NLQ data. dm may be nil.
func NewProfile8(dm *DMData) *Record {
	return &Record{
		Profile:  8,
		Modified: true,
		Header:   Profile8Header(),
		Mapping:  Profile8Mapping(),
		DM:       dm,
		LastByte: finalByte,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

func checkWidth(name string, v uint64, n int) error {
	if v >= 1<<uint(n) {
		return invalid("%s %d exceeds %d bits", name, v, n)
	}
	return nil
}

// Validate checks that the record can be encoded.
func (r *Record) Validate() error {
	if r.Profile != 8 {
		return invalid("unsupported profile %d", r.Profile)
	}
	if r.LastByte != finalByte {
		return invalid("last byte 0x%02X, want 0x%02X", r.LastByte, finalByte)
	}
	if err := r.Header.validate(); err != nil {
		return err
	}
	if r.Mapping == nil {
		return invalid("missing mapping")
	}
	if err := r.Mapping.validate(&r.Header); err != nil {
		return err
	}
	if r.DM != nil {
		if err := r.DM.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (h *Header) validate() error {
	if h.RPUType != 2 {
		return invalid("rpu_type %d, want 2", h.RPUType)
	}
	if !h.VDRSeqInfoPresent {
		return invalid("missing sequence info")
	}
	if h.CoefficientDataType != 0 {
		return invalid("unsupported coefficient_data_type %d", h.CoefficientDataType)
	}
	if h.CoefficientLog2Denom == 0 || h.CoefficientLog2Denom > 32 {
		return invalid("coefficient_log2_denom %d out of range", h.CoefficientLog2Denom)
	}
	if h.RPUFormat&0x700 != 0 {
		return invalid("unsupported rpu_format 0x%03X", h.RPUFormat)
	}
	if !h.DisableResidual {
		return invalid("residual data is not supported")
	}
	if h.BLBitDepthMinus8 > 8 || h.ELBitDepthMinus8 > 8 || h.VDRBitDepthMinus8 > 8 {
		return invalid("bit depth out of range")
	}
	for _, f := range []struct {
		name string
		v    uint64
		n    int
	}{
		{"rpu_format", uint64(h.RPUFormat), 11},
		{"vdr_rpu_profile", uint64(h.VDRRPUProfile), 4},
		{"vdr_rpu_level", uint64(h.VDRRPULevel), 4},
		{"vdr_rpu_normalized_idc", uint64(h.VDRRPUNormalizedIdc), 2},
	} {
		if err := checkWidth(f.name, f.v, f.n); err != nil {
			return err
		}
	}
	blBits := int(h.BLBitDepthMinus8) + 8
	for c, pivots := range h.Pivots {
		if len(pivots) < 2 {
			return invalid("component %d: %d pivots, want at least 2", c, len(pivots))
		}
		for i, p := range pivots {
			if err := checkWidth(fmt.Sprintf("component %d pivot %d", c, i), uint64(p), blBits); err != nil {
				return err
			}
			if i > 0 && p < pivots[i-1] {
				return invalid("component %d: pivots not ascending", c)
			}
		}
	}
	return nil
}

func (m *Mapping) validate(h *Header) error {
	denom := int(h.CoefficientLog2Denom)
	for c, pieces := range m.Components {
		if want := len(h.Pivots[c]) - 1; len(pieces) != want {
			return invalid("component %d: %d mapping pieces, want %d", c, len(pieces), want)
		}
		for i, p := range pieces {
			if p.Order < 1 || p.Order > 3 {
				return invalid("component %d piece %d: polynomial order %d", c, i, p.Order)
			}
			if len(p.CoefInt) != p.Order+1 || len(p.Coef) != p.Order+1 {
				return invalid("component %d piece %d: want %d coefficients", c, i, p.Order+1)
			}
			for _, f := range p.Coef {
				if err := checkWidth("poly_coef", uint64(f), denom); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Encode validates the record and returns the NAL unit without the Annex-B
// start code: the two-byte RPU NAL header followed by the escaped payload.
func (r *Record) Encode() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	w := newRBSPWriter()
	w.putUint(8, nalPrefix)
	r.writeHeader(w)
	r.Mapping.write(w, &r.Header)
	if r.DM != nil {
		r.DM.write(w)
	}
	w.align()
	body, err := w.bytes()
	if err != nil {
		return nil, fmt.Errorf("writing RPU bits: %w", err)
	}

	crc := crc32MPEG2(body[1:])
	payload := make([]byte, 0, len(body)+5)
	payload = append(payload, body...)
	payload = append(payload, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	payload = append(payload, r.LastByte)

	out := make([]byte, 0, len(payload)+len(startCode)+8)
	out = append(out, startCode...)
	out = append(out, addEmulationPrevention(payload)...)
	return out, nil
}

func (r *Record) writeHeader(w *rbspWriter) {
	h := &r.Header
	w.putUint(6, uint64(h.RPUType))
	w.putUint(11, uint64(h.RPUFormat))
	w.putUint(4, uint64(h.VDRRPUProfile))
	w.putUint(4, uint64(h.VDRRPULevel))
	w.putFlag(h.VDRSeqInfoPresent)

	w.putFlag(h.ChromaResamplingExplicitFilter)
	w.putUint(2, uint64(h.CoefficientDataType))
	w.putUE(uint64(h.CoefficientLog2Denom))
	w.putUint(2, uint64(h.VDRRPUNormalizedIdc))
	w.putFlag(h.BLVideoFullRange)
	w.putUE(uint64(h.BLBitDepthMinus8))
	w.putUE(uint64(h.ELBitDepthMinus8))
	w.putUE(uint64(h.VDRBitDepthMinus8))
	w.putFlag(h.SpatialResamplingFilter)
	w.putUint(3, 0) // reserved_zero_3bits
	w.putFlag(h.ELSpatialResamplingFilter)
	w.putFlag(h.DisableResidual)

	w.putFlag(r.DM != nil)
	w.putFlag(false) // use_prev_vdr_rpu_flag

	w.putUE(uint64(h.VDRRPUID))
	w.putUE(uint64(h.MappingColorSpace))
	w.putUE(uint64(h.MappingChromaFormatIdc))
	blBits := int(h.BLBitDepthMinus8) + 8
	for _, pivots := range h.Pivots {
		w.putUE(uint64(len(pivots) - 2))
		prev := uint16(0)
		for _, p := range pivots {
			w.putUint(blBits, uint64(p-prev))
			prev = p
		}
	}
	w.putUE(uint64(h.NumXPartitionsMinus1))
	w.putUE(uint64(h.NumYPartitionsMinus1))
}

func (m *Mapping) write(w *rbspWriter, h *Header) {
	denom := int(h.CoefficientLog2Denom)
	for _, pieces := range m.Components {
		for _, p := range pieces {
			w.putUE(0) // mapping_idc: polynomial
			w.putUE(uint64(p.Order - 1))
			if p.Order == 1 {
				w.putFlag(false) // linear_interp_flag
			}
			for i := 0; i <= p.Order; i++ {
				w.putSE(int64(p.CoefInt[i]))
				w.putUint(denom, uint64(p.Coef[i]))
			}
		}
	}
}
