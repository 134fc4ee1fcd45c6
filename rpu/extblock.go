package rpu

import (
	"github.com/zsiec/dovigen/internal/pq"
)

// ExtBlock is one DM extension metadata block. Level identifies the block
// type; the payload is padded to a whole number of bytes.
type ExtBlock interface {
	Level() uint8
	payloadBits() int
	writePayload(w *rbspWriter)
	validate() error
}

// extLength returns ext_block_length, the payload size in bytes.
func extLength(b ExtBlock) int {
	return (b.payloadBits() + 7) / 8
}

// Level1Block carries per-frame luminance statistics.
type Level1Block struct {
	MinPQ uint16
	MaxPQ uint16
	AvgPQ uint16
}

func (Level1Block) Level() uint8     { return 1 }
func (Level1Block) payloadBits() int { return 3 * 12 }

func (b Level1Block) writePayload(w *rbspWriter) {
	w.putUint(12, uint64(b.MinPQ))
	w.putUint(12, uint64(b.MaxPQ))
	w.putUint(12, uint64(b.AvgPQ))
}

func (b Level1Block) validate() error {
	for _, f := range []struct {
		name string
		v    uint16
	}{{"level1 min_pq", b.MinPQ}, {"level1 max_pq", b.MaxPQ}, {"level1 avg_pq", b.AvgPQ}} {
		if err := checkWidth(f.name, uint64(f.v), 12); err != nil {
			return err
		}
	}
	return nil
}

// Level2Block carries the trims for one target display. TargetNits is
// coded as target_max_pq.
type Level2Block struct {
	TargetNits         uint16
	TrimSlope          uint16
	TrimOffset         uint16
	TrimPower          uint16
	TrimChromaWeight   uint16
	TrimSaturationGain uint16
	MSWeight           int16
}

func (Level2Block) Level() uint8     { return 2 }
func (Level2Block) payloadBits() int { return 6*12 + 13 }

// TargetMaxPQ returns the 12-bit PQ codeword of the target peak.
func (b Level2Block) TargetMaxPQ() uint16 {
	return pq.Codeword(float64(b.TargetNits))
}

func (b Level2Block) writePayload(w *rbspWriter) {
	w.putUint(12, uint64(b.TargetMaxPQ()))
	w.putUint(12, uint64(b.TrimSlope))
	w.putUint(12, uint64(b.TrimOffset))
	w.putUint(12, uint64(b.TrimPower))
	w.putUint(12, uint64(b.TrimChromaWeight))
	w.putUint(12, uint64(b.TrimSaturationGain))
	w.putInt(13, int64(b.MSWeight))
}

func (b Level2Block) validate() error {
	if b.TargetNits > pq.MaxNits {
		return invalid("level2 target_nits %d exceeds %d", b.TargetNits, int(pq.MaxNits))
	}
	for _, f := range []struct {
		name string
		v    uint16
	}{
		{"level2 trim_slope", b.TrimSlope},
		{"level2 trim_offset", b.TrimOffset},
		{"level2 trim_power", b.TrimPower},
		{"level2 trim_chroma_weight", b.TrimChromaWeight},
		{"level2 trim_saturation_gain", b.TrimSaturationGain},
	} {
		if err := checkWidth(f.name, uint64(f.v), 12); err != nil {
			return err
		}
	}
	if b.MSWeight < -4096 || b.MSWeight > 4095 {
		return invalid("level2 ms_weight %d outside [-4096,4095]", b.MSWeight)
	}
	return nil
}

// Level3Block carries offsets applied to Level 1.
type Level3Block struct {
	MinPQOffset uint16
	MaxPQOffset uint16
	AvgPQOffset uint16
}

func (Level3Block) Level() uint8     { return 3 }
func (Level3Block) payloadBits() int { return 3 * 12 }

func (b Level3Block) writePayload(w *rbspWriter) {
	w.putUint(12, uint64(b.MinPQOffset))
	w.putUint(12, uint64(b.MaxPQOffset))
	w.putUint(12, uint64(b.AvgPQOffset))
}

func (b Level3Block) validate() error {
	for _, f := range []struct {
		name string
		v    uint16
	}{{"level3 min_pq_offset", b.MinPQOffset}, {"level3 max_pq_offset", b.MaxPQOffset}, {"level3 avg_pq_offset", b.AvgPQOffset}} {
		if err := checkWidth(f.name, uint64(f.v), 12); err != nil {
			return err
		}
	}
	return nil
}

// Level5Block is the active area.
type Level5Block struct {
	Left   uint16
	Right  uint16
	Top    uint16
	Bottom uint16
}

func (Level5Block) Level() uint8     { return 5 }
func (Level5Block) payloadBits() int { return 4 * 13 }

func (b Level5Block) writePayload(w *rbspWriter) {
	w.putUint(13, uint64(b.Left))
	w.putUint(13, uint64(b.Right))
	w.putUint(13, uint64(b.Top))
	w.putUint(13, uint64(b.Bottom))
}

func (b Level5Block) validate() error {
	for _, v := range []uint16{b.Left, b.Right, b.Top, b.Bottom} {
		if err := checkWidth("level5 active area offset", uint64(v), 13); err != nil {
			return err
		}
	}
	return nil
}

// Level6Block is the HDR10 static metadata.
type Level6Block struct {
	MaxDisplayMasteringLuminance uint16
	MinDisplayMasteringLuminance uint16
	MaxContentLightLevel         uint16
	MaxFrameAverageLightLevel    uint16
}

func (Level6Block) Level() uint8     { return 6 }
func (Level6Block) payloadBits() int { return 4 * 16 }

func (b Level6Block) writePayload(w *rbspWriter) {
	w.putUint(16, uint64(b.MaxDisplayMasteringLuminance))
	w.putUint(16, uint64(b.MinDisplayMasteringLuminance))
	w.putUint(16, uint64(b.MaxContentLightLevel))
	w.putUint(16, uint64(b.MaxFrameAverageLightLevel))
}

func (Level6Block) validate() error { return nil }

func writeExtBlock(w *rbspWriter, b ExtBlock) {
	n := extLength(b)
	w.putUE(uint64(n))
	w.putUint(8, uint64(b.Level()))
	b.writePayload(w)
	if pad := n*8 - b.payloadBits(); pad > 0 {
		w.putUint(pad, 0)
	}
}
