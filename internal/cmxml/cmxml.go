// Package cmxml reads Dolby content-mapping XML (DolbyLabsMDF) documents into
// a global Level 6 description and an ordered list of shots carrying
// per-frame Level 1, 2 and 3 metadata.
package cmxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zsiec/dovigen/internal/pq"
	"github.com/zsiec/dovigen/metadata"
)

// minTrimValues is the number of leading Trim values consumed: slope,
// offset, power, chroma weight, saturation gain and MS weight.
const minTrimValues = 6

// Shot is a contiguous run of frames. Per-level slices are nil when no frame
// of the shot carries that level; otherwise they are indexed by frame within
// the shot and a nil or empty entry means no metadata for that frame.
type Shot struct {
	Duration int
	Level1   []*metadata.Level1Metadata
	Level2   [][]metadata.Level2Metadata
	Level3   []*metadata.Level3Metadata
}

// Document is a parsed content-mapping document.
type Document struct {
	version string
	level6  metadata.Level6Metadata
	shots   []Shot
	length  uint64
}

// Version returns the DolbyLabsMDF version attribute.
func (d *Document) Version() string { return d.version }

// VideoLength returns the total number of frames across all shots.
func (d *Document) VideoLength() uint64 { return d.length }

// HDR10Metadata returns the mastering display and light level metadata.
func (d *Document) HDR10Metadata() metadata.Level6Metadata { return d.level6 }

// Shots returns the shots in presentation order.
func (d *Document) Shots() []Shot { return d.shots }

// ParseFile reads the content-mapping document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, metadata.NewError(metadata.ErrInputNotFound, metadata.SourceXML, path, err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		var merr *metadata.Error
		if errors.As(err, &merr) {
			merr.Path = path
		}
		return nil, err
	}
	return doc, nil
}

// Parse decodes a content-mapping document from r.
func Parse(r io.Reader) (*Document, error) {
	var root mdf
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, malformed(-1, "", err)
	}
	if len(root.Tracks) == 0 {
		return nil, malformed(-1, "Outputs.Output.Video.Track", errors.New("missing"))
	}
	tr := root.Tracks[0]
	if tr.Global == nil {
		return nil, malformed(-1, "DVGlobalData", errors.New("missing"))
	}

	doc := &Document{version: root.Version}
	l6, err := parseLevel6(tr.Global)
	if err != nil {
		return nil, err
	}
	doc.level6 = l6

	targets, err := parseTargets(tr.Global.TargetDisplays)
	if err != nil {
		return nil, err
	}

	var next uint64
	for i, s := range tr.Shots {
		in, duration, err := parseRecord(i, s.Record)
		if err != nil {
			return nil, err
		}
		if in != next {
			return nil, malformed(i, "Record.In", fmt.Errorf("shot starts at %d, previous shot ends at %d", in, next))
		}
		shot, err := buildShot(i, s, int(duration), targets)
		if err != nil {
			return nil, err
		}
		doc.shots = append(doc.shots, shot)
		next = in + duration
	}
	doc.length = next
	return doc, nil
}

func parseLevel6(g *globalData) (metadata.Level6Metadata, error) {
	var l6 metadata.Level6Metadata
	md := g.MasteringDisplay
	if md == nil {
		return l6, malformed(-1, "MasteringDisplay", errors.New("missing"))
	}
	if md.PeakBrightness == nil {
		return l6, malformed(-1, "MasteringDisplay.PeakBrightness", errors.New("missing"))
	}
	peak, err := parseNonNegative(*md.PeakBrightness)
	if err != nil {
		return l6, malformed(-1, "MasteringDisplay.PeakBrightness", err)
	}
	if md.MinimumBrightness == nil {
		return l6, malformed(-1, "MasteringDisplay.MinimumBrightness", errors.New("missing"))
	}
	minimum, err := parseNonNegative(*md.MinimumBrightness)
	if err != nil {
		return l6, malformed(-1, "MasteringDisplay.MinimumBrightness", err)
	}
	l6.MaxDisplayMasteringLuminance = clampU16(math.Min(peak, pq.MaxNits))
	l6.MinDisplayMasteringLuminance = clampU16(minimum * 10000)

	if g.Level6 != nil {
		if g.Level6.MaxCLL != nil {
			v, err := parseNonNegative(*g.Level6.MaxCLL)
			if err != nil {
				return l6, malformed(-1, "Level6.MaxCLL", err)
			}
			l6.MaxContentLightLevel = clampU16(v)
		}
		if g.Level6.MaxFALL != nil {
			v, err := parseNonNegative(*g.Level6.MaxFALL)
			if err != nil {
				return l6, malformed(-1, "Level6.MaxFALL", err)
			}
			l6.MaxFrameAverageLightLevel = clampU16(v)
		}
	}
	return l6, nil
}

func parseTargets(displays []display) (map[string]uint16, error) {
	targets := make(map[string]uint16, len(displays))
	for i, d := range displays {
		id := strings.TrimSpace(d.ID)
		field := fmt.Sprintf("TargetDisplay[%d]", i)
		if id == "" {
			return nil, malformed(-1, field+".ID", errors.New("missing"))
		}
		if _, ok := targets[id]; ok {
			return nil, malformed(-1, field+".ID", fmt.Errorf("duplicate target display %q", id))
		}
		if d.PeakBrightness == nil {
			return nil, malformed(-1, field+".PeakBrightness", errors.New("missing"))
		}
		peak, err := parseNonNegative(*d.PeakBrightness)
		if err != nil {
			return nil, malformed(-1, field+".PeakBrightness", err)
		}
		targets[id] = clampU16(math.Min(peak, pq.MaxNits))
	}
	return targets, nil
}

func parseRecord(shotIdx int, r *record) (uint64, uint64, error) {
	if r == nil {
		return 0, 0, malformed(shotIdx, "Record", errors.New("missing"))
	}
	if r.In == nil {
		return 0, 0, malformed(shotIdx, "Record.In", errors.New("missing"))
	}
	in, err := strconv.ParseUint(strings.TrimSpace(*r.In), 10, 64)
	if err != nil {
		return 0, 0, malformed(shotIdx, "Record.In", err)
	}
	if r.Duration == nil {
		return 0, 0, malformed(shotIdx, "Record.Duration", errors.New("missing"))
	}
	duration, err := strconv.ParseUint(strings.TrimSpace(*r.Duration), 10, 31)
	if err != nil {
		return 0, 0, malformed(shotIdx, "Record.Duration", err)
	}
	return in, duration, nil
}

// frameLevels is the decoded content of one DVDynamicData element.
type frameLevels struct {
	level1 *metadata.Level1Metadata
	level2 []metadata.Level2Metadata
	level3 *metadata.Level3Metadata
}

func buildShot(shotIdx int, s shot, duration int, targets map[string]uint16) (Shot, error) {
	out := Shot{Duration: duration}

	base, err := decodeDynamic(shotIdx, "DVDynamicData", s.Dynamic, targets)
	if err != nil {
		return out, err
	}

	edits := make(map[int]frameLevels, len(s.Frames))
	for j, fe := range s.Frames {
		field := fmt.Sprintf("Frame[%d]", j)
		if fe.EditOffset == nil {
			return out, malformed(shotIdx, field+".EditOffset", errors.New("missing"))
		}
		off, err := strconv.Atoi(strings.TrimSpace(*fe.EditOffset))
		if err != nil {
			return out, malformed(shotIdx, field+".EditOffset", err)
		}
		if off < 0 || off >= duration {
			return out, malformed(shotIdx, field+".EditOffset", fmt.Errorf("offset %d outside shot of %d frames", off, duration))
		}
		if _, ok := edits[off]; ok {
			return out, malformed(shotIdx, field+".EditOffset", fmt.Errorf("duplicate edit offset %d", off))
		}
		fl, err := decodeDynamic(shotIdx, field+".DVDynamicData", fe.Dynamic, targets)
		if err != nil {
			return out, err
		}
		edits[off] = fl
	}

	hasL1, hasL2, hasL3 := base.level1 != nil, len(base.level2) > 0, base.level3 != nil
	for _, fl := range edits {
		hasL1 = hasL1 || fl.level1 != nil
		hasL2 = hasL2 || len(fl.level2) > 0
		hasL3 = hasL3 || fl.level3 != nil
	}
	if hasL1 {
		out.Level1 = make([]*metadata.Level1Metadata, duration)
	}
	if hasL2 {
		out.Level2 = make([][]metadata.Level2Metadata, duration)
	}
	if hasL3 {
		out.Level3 = make([]*metadata.Level3Metadata, duration)
	}

	for i := 0; i < duration; i++ {
		fl := base
		if e, ok := edits[i]; ok {
			if e.level1 != nil {
				fl.level1 = e.level1
			}
			if len(e.level2) > 0 {
				fl.level2 = e.level2
			}
			if e.level3 != nil {
				fl.level3 = e.level3
			}
		}
		if hasL1 {
			out.Level1[i] = fl.level1
		}
		if hasL2 {
			out.Level2[i] = fl.level2
		}
		if hasL3 {
			out.Level3[i] = fl.level3
		}
	}
	return out, nil
}

func decodeDynamic(shotIdx int, field string, d *dynamicData, targets map[string]uint16) (frameLevels, error) {
	var fl frameLevels
	if d == nil {
		return fl, nil
	}

	if d.Level1 != nil {
		v, err := parseList(d.Level1.ImageCharacter, 3, 3)
		if err != nil {
			return fl, malformed(shotIdx, field+".Level1.ImageCharacter", err)
		}
		fl.level1 = &metadata.Level1Metadata{
			MinPQ: pq.FromNormalized(v[0]),
			AvgPQ: pq.FromNormalized(v[1]),
			MaxPQ: pq.FromNormalized(v[2]),
		}
	}

	for j, l2 := range d.Level2 {
		l2Field := fmt.Sprintf("%s.Level2[%d]", field, j)
		tid := strings.TrimSpace(l2.TID)
		target, ok := targets[tid]
		if !ok {
			return fl, malformed(shotIdx, l2Field+".TID", fmt.Errorf("unknown target display %q", tid))
		}
		v, err := parseList(l2.Trim, minTrimValues, -1)
		if err != nil {
			return fl, malformed(shotIdx, l2Field+".Trim", err)
		}
		fl.level2 = append(fl.level2, metadata.Level2Metadata{
			TargetNits:         target,
			TrimSlope:          trimCode(v[0]),
			TrimOffset:         trimCode(v[1]),
			TrimPower:          trimCode(v[2]),
			TrimChromaWeight:   trimCode(v[3]),
			TrimSaturationGain: trimCode(v[4]),
			MSWeight:           int16(trimCode(v[5])),
		})
	}

	if d.Level3 != nil {
		v, err := parseList(d.Level3.L1Offset, 3, 3)
		if err != nil {
			return fl, malformed(shotIdx, field+".Level3.L1Offset", err)
		}
		fl.level3 = &metadata.Level3Metadata{
			MinPQOffset: trimCode(v[0]),
			AvgPQOffset: trimCode(v[1]),
			MaxPQOffset: trimCode(v[2]),
		}
	}
	return fl, nil
}

// trimCode maps a signed normalized value in [-1, 1] to the 12-bit code
// centred on 2048.
func trimCode(v float64) uint16 {
	c := math.Round(v*2048 + 2048)
	return uint16(math.Max(0, math.Min(c, 4095)))
}

// parseList splits a comma and/or whitespace separated list of floats. max
// of -1 means no upper bound.
func parseList(s string, minCount, maxCount int) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if maxCount == minCount && len(fields) != minCount {
		return nil, fmt.Errorf("got %d values, want %d", len(fields), minCount)
	}
	if len(fields) < minCount {
		return nil, fmt.Errorf("got %d values, want at least %d", len(fields), minCount)
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value %q is not finite", f)
		}
		out[i] = v
	}
	return out, nil
}

func parseNonNegative(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}

func clampU16(v float64) uint16 {
	return uint16(math.Min(math.Round(v), math.MaxUint16))
}

func malformed(shotIdx int, field string, err error) *metadata.Error {
	e := metadata.NewError(metadata.ErrMalformedMetadata, metadata.SourceXML, "", err)
	e.Shot = shotIdx
	e.Field = field
	return e
}
