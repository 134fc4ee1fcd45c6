package rpu

import (
	"sort"

	"github.com/zsiec/dovigen/internal/pq"
	"github.com/zsiec/dovigen/metadata"
)

// Default source range when neither the config nor Level 6 supplies one:
// 0.005 nits and 4000 nits.
const (
	DefaultSourceMinPQ uint16 = 62
	DefaultSourceMaxPQ uint16 = 3696
)

// DMData is the vdr_dm_data_payload of a record. The Add and Set methods
// mutate the receiver and return it.
type DMData struct {
	AffectedDMMetadataID uint8
	CurrentDMMetadataID  uint8
	SceneRefresh         bool

	YCCToRGBCoef   [9]int16
	YCCToRGBOffset [3]uint32
	RGBToLMSCoef   [9]int16

	SignalEOTF         uint16
	SignalEOTFParam0   uint16
	SignalEOTFParam1   uint16
	SignalEOTFParam2   uint32
	SignalBitDepth     uint8
	SignalColorSpace   uint8
	SignalChromaFormat uint8
	SignalFullRange    uint8
	SourceMinPQ        uint16
	SourceMaxPQ        uint16
	SourceDiagonal     uint16

	level1 *Level1Block
	level2 []Level2Block
	level3 *Level3Block
	level5 *Level5Block
	level6 *Level6Block
}

// NewDMData returns DM data with the BT.2020 PQ signal description used
// by profile 8 and no extension blocks.
func NewDMData() *DMData {
	return &DMData{
		YCCToRGBCoef:       [9]int16{9574, 0, 13802, 9574, -1540, -5348, 9574, 17610, 0},
		YCCToRGBOffset:     [3]uint32{16777216, 134217728, 134217728},
		RGBToLMSCoef:       [9]int16{7222, 8771, 390, 2654, 12430, 1300, 0, 422, 15962},
		SignalEOTF:         65535,
		SignalBitDepth:     12,
		SignalFullRange:    1,
		SourceMinPQ:        DefaultSourceMinPQ,
		SourceMaxPQ:        DefaultSourceMaxPQ,
		SourceDiagonal:     42,
		SignalColorSpace:   0,
		SignalChromaFormat: 0,
	}
}

// DMDataFromConfig builds the static part of a frame's DM data. The
// target_nits entry is added first so an explicit level2 entry for the same
// target replaces it.
func DMDataFromConfig(cfg *metadata.GenerateConfig) *DMData {
	dm := NewDMData()
	if cfg == nil {
		return dm
	}

	if cfg.Level6 != nil {
		l6 := cfg.Level6
		if l6.MaxDisplayMasteringLuminance > 0 {
			dm.SourceMaxPQ = pq.Codeword(float64(l6.MaxDisplayMasteringLuminance))
		}
		if l6.MinDisplayMasteringLuminance > 0 {
			dm.SourceMinPQ = pq.Codeword(float64(l6.MinDisplayMasteringLuminance) / 10000)
		}
		dm.SetLevel6(*l6)
	}
	if cfg.SourceMinPQ != nil {
		dm.SourceMinPQ = *cfg.SourceMinPQ
	}
	if cfg.SourceMaxPQ != nil {
		dm.SourceMaxPQ = *cfg.SourceMaxPQ
	}

	if cfg.TargetNits != nil {
		dm.AddLevel2(metadata.NewLevel2(*cfg.TargetNits))
	}
	for _, l2 := range cfg.Level2 {
		dm.AddLevel2(l2)
	}
	if cfg.Level5 != nil {
		dm.SetLevel5(*cfg.Level5)
	}
	return dm
}

// AddLevel1 sets the frame's Level 1 block, replacing any previous one.
func (d *DMData) AddLevel1(minPQ, maxPQ, avgPQ uint16) *DMData {
	d.level1 = &Level1Block{MinPQ: minPQ, MaxPQ: maxPQ, AvgPQ: avgPQ}
	return d
}

// AddLevel2 adds trims for one target display. An existing block with the
// same target is replaced.
func (d *DMData) AddLevel2(l2 metadata.Level2Metadata) *DMData {
	b := Level2Block{
		TargetNits:         l2.TargetNits,
		TrimSlope:          l2.TrimSlope,
		TrimOffset:         l2.TrimOffset,
		TrimPower:          l2.TrimPower,
		TrimChromaWeight:   l2.TrimChromaWeight,
		TrimSaturationGain: l2.TrimSaturationGain,
		MSWeight:           l2.MSWeight,
	}
	for i := range d.level2 {
		if d.level2[i].TargetNits == b.TargetNits {
			d.level2[i] = b
			return d
		}
	}
	d.level2 = append(d.level2, b)
	return d
}

// AddLevel3 sets the frame's Level 3 block, replacing any previous one.
func (d *DMData) AddLevel3(l3 metadata.Level3Metadata) *DMData {
	d.level3 = &Level3Block{
		MinPQOffset: l3.MinPQOffset,
		MaxPQOffset: l3.MaxPQOffset,
		AvgPQOffset: l3.AvgPQOffset,
	}
	return d
}

// SetLevel5 sets the active area offsets, replacing any earlier Level 5.
func (d *DMData) SetLevel5(l5 metadata.Level5Metadata) *DMData {
	d.level5 = &Level5Block{
		Left:   l5.ActiveAreaLeftOffset,
		Right:  l5.ActiveAreaRightOffset,
		Top:    l5.ActiveAreaTopOffset,
		Bottom: l5.ActiveAreaBottomOffset,
	}
	return d
}

// SetLevel6 sets the HDR10 mastering display and light levels, replacing
// any earlier Level 6.
func (d *DMData) SetLevel6(l6 metadata.Level6Metadata) *DMData {
	d.level6 = &Level6Block{
		MaxDisplayMasteringLuminance: l6.MaxDisplayMasteringLuminance,
		MinDisplayMasteringLuminance: l6.MinDisplayMasteringLuminance,
		MaxContentLightLevel:         l6.MaxContentLightLevel,
		MaxFrameAverageLightLevel:    l6.MaxFrameAverageLightLevel,
	}
	return d
}

// SetSceneCut sets scene_refresh_flag.
func (d *DMData) SetSceneCut(cut bool) *DMData {
	d.SceneRefresh = cut
	return d
}

// Level1 returns the Level 1 block if one was added.
func (d *DMData) Level1() (Level1Block, bool) {
	if d.level1 == nil {
		return Level1Block{}, false
	}
	return *d.level1, true
}

// Level2 returns the Level 2 blocks ordered by target.
func (d *DMData) Level2() []Level2Block {
	out := append([]Level2Block(nil), d.level2...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TargetNits < out[j].TargetNits
	})
	return out
}

// Level3 returns the Level 3 block if one was added.
func (d *DMData) Level3() (Level3Block, bool) {
	if d.level3 == nil {
		return Level3Block{}, false
	}
	return *d.level3, true
}

// ExtBlocks returns the extension blocks in bitstream order: ascending
// level, Level 2 blocks by ascending target.
func (d *DMData) ExtBlocks() []ExtBlock {
	var blocks []ExtBlock
	if d.level1 != nil {
		blocks = append(blocks, *d.level1)
	}
	for _, b := range d.Level2() {
		blocks = append(blocks, b)
	}
	if d.level3 != nil {
		blocks = append(blocks, *d.level3)
	}
	if d.level5 != nil {
		blocks = append(blocks, *d.level5)
	}
	if d.level6 != nil {
		blocks = append(blocks, *d.level6)
	}
	return blocks
}

func (d *DMData) validate() error {
	for _, f := range []struct {
		name string
		v    uint64
		n    int
	}{
		{"signal_bit_depth", uint64(d.SignalBitDepth), 5},
		{"signal_color_space", uint64(d.SignalColorSpace), 2},
		{"signal_chroma_format", uint64(d.SignalChromaFormat), 2},
		{"signal_full_range_flag", uint64(d.SignalFullRange), 2},
		{"source_min_pq", uint64(d.SourceMinPQ), 12},
		{"source_max_pq", uint64(d.SourceMaxPQ), 12},
		{"source_diag", uint64(d.SourceDiagonal), 10},
	} {
		if err := checkWidth(f.name, f.v, f.n); err != nil {
			return err
		}
	}

	seen := make(map[uint16]bool, len(d.level2))
	for _, b := range d.level2 {
		if seen[b.TargetNits] {
			return invalid("duplicate level2 target %d nits", b.TargetNits)
		}
		seen[b.TargetNits] = true
	}
	for _, b := range d.ExtBlocks() {
		if err := b.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d *DMData) write(w *rbspWriter) {
	w.putUE(uint64(d.AffectedDMMetadataID))
	w.putUE(uint64(d.CurrentDMMetadataID))
	if d.SceneRefresh {
		w.putUE(1)
	} else {
		w.putUE(0)
	}
	for _, c := range d.YCCToRGBCoef {
		w.putInt(16, int64(c))
	}
	for _, o := range d.YCCToRGBOffset {
		w.putUint(32, uint64(o))
	}
	for _, c := range d.RGBToLMSCoef {
		w.putInt(16, int64(c))
	}
	w.putUint(16, uint64(d.SignalEOTF))
	w.putUint(16, uint64(d.SignalEOTFParam0))
	w.putUint(16, uint64(d.SignalEOTFParam1))
	w.putUint(32, uint64(d.SignalEOTFParam2))
	w.putUint(5, uint64(d.SignalBitDepth))
	w.putUint(2, uint64(d.SignalColorSpace))
	w.putUint(2, uint64(d.SignalChromaFormat))
	w.putUint(2, uint64(d.SignalFullRange))
	w.putUint(12, uint64(d.SourceMinPQ))
	w.putUint(12, uint64(d.SourceMaxPQ))
	w.putUint(10, uint64(d.SourceDiagonal))

	blocks := d.ExtBlocks()
	w.putUE(uint64(len(blocks)))
	if len(blocks) == 0 {
		return
	}
	w.align()
	for _, b := range blocks {
		writeExtBlock(w, b)
	}
}
