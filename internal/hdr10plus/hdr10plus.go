// Package hdr10plus reads HDR10+ dynamic metadata JSON and derives per-frame
// Dolby Vision Level 1 samples and scene cut positions from it.
package hdr10plus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/zsiec/dovigen/internal/pq"
	"github.com/zsiec/dovigen/metadata"
)

// Metadata is the Level 1 sequence and scene cut set derived from an HDR10+
// document. It is read-only after Parse returns.
type Metadata struct {
	Level1    []metadata.Level1Metadata
	SceneCuts map[int]struct{}
}

// Len returns the number of frames described.
func (m *Metadata) Len() int { return len(m.Level1) }

// IsSceneCut reports whether frame starts a new scene.
func (m *Metadata) IsSceneCut(frame int) bool {
	_, ok := m.SceneCuts[frame]
	return ok
}

type document struct {
	SceneInfo []json.RawMessage `json:"SceneInfo"`
}

type sceneInfo struct {
	LuminanceParameters *luminanceParameters `json:"LuminanceParameters"`
	SceneFrameIndex     *json.Number         `json:"SceneFrameIndex"`
	SequenceFrameIndex  *json.Number         `json:"SequenceFrameIndex"`
}

type luminanceParameters struct {
	AverageRGB *json.Number  `json:"AverageRGB"`
	MaxScl     []json.Number `json:"MaxScl"`
}

// ParseFile reads the HDR10+ JSON document at path.
func ParseFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, metadata.NewError(metadata.ErrInputNotFound, metadata.SourceHDR10Plus, path, err)
	}
	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		var merr *metadata.Error
		if errors.As(err, &merr) {
			merr.Path = path
		}
		return nil, err
	}
	return m, nil
}

// Parse decodes an HDR10+ JSON document. Entries of SceneInfo are taken in
// document order, which is frame order.
func Parse(r io.Reader) (*Metadata, error) {
	dec := json.NewDecoder(r)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, malformed(-1, "", err)
	}
	if doc.SceneInfo == nil {
		return nil, malformed(-1, "SceneInfo", errors.New("missing or not an array"))
	}

	m := &Metadata{
		Level1:    make([]metadata.Level1Metadata, 0, len(doc.SceneInfo)),
		SceneCuts: make(map[int]struct{}),
	}
	for i, raw := range doc.SceneInfo {
		l1, cut, err := parseEntry(i, raw)
		if err != nil {
			return nil, err
		}
		m.Level1 = append(m.Level1, l1)
		if cut >= 0 {
			m.SceneCuts[cut] = struct{}{}
		}
	}
	return m, nil
}

// parseEntry converts one SceneInfo entry. The returned scene cut index is -1
// when the entry is not the first frame of its scene.
func parseEntry(i int, raw json.RawMessage) (metadata.Level1Metadata, int, error) {
	var l1 metadata.Level1Metadata

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return l1, -1, malformed(i, "SceneInfo", errors.New("entry is not an object"))
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var e sceneInfo
	if err := dec.Decode(&e); err != nil {
		return l1, -1, malformed(i, "SceneInfo", err)
	}

	lum := e.LuminanceParameters
	if lum == nil {
		return l1, -1, malformed(i, "LuminanceParameters", errors.New("missing"))
	}
	if lum.AverageRGB == nil {
		return l1, -1, malformed(i, "LuminanceParameters.AverageRGB", errors.New("missing"))
	}
	avg, err := unsigned(*lum.AverageRGB)
	if err != nil {
		return l1, -1, malformed(i, "LuminanceParameters.AverageRGB", err)
	}
	if len(lum.MaxScl) == 0 {
		return l1, -1, malformed(i, "LuminanceParameters.MaxScl", errors.New("missing or empty"))
	}
	var maxRGB uint64
	for j, n := range lum.MaxScl {
		v, err := unsigned(n)
		if err != nil {
			return l1, -1, malformed(i, fmt.Sprintf("LuminanceParameters.MaxScl[%d]", j), err)
		}
		maxRGB = max(maxRGB, v)
	}

	if e.SceneFrameIndex == nil {
		return l1, -1, malformed(i, "SceneFrameIndex", errors.New("missing"))
	}
	sceneIdx, err := unsigned(*e.SceneFrameIndex)
	if err != nil {
		return l1, -1, malformed(i, "SceneFrameIndex", err)
	}
	cut := -1
	if sceneIdx == 0 {
		if e.SequenceFrameIndex == nil {
			return l1, -1, malformed(i, "SequenceFrameIndex", errors.New("missing"))
		}
		seqIdx, err := unsigned(*e.SequenceFrameIndex)
		if err != nil {
			return l1, -1, malformed(i, "SequenceFrameIndex", err)
		}
		cut = int(seqIdx)
	}

	// min_pq is not signalled by HDR10+ and stays 0.
	l1.MaxPQ = pq.Codeword(tenthsToNits(maxRGB))
	l1.AvgPQ = pq.Codeword(tenthsToNits(avg))
	return l1, cut, nil
}

// tenthsToNits converts a 0.1 cd/m² value to whole nits, rounded to nearest
// and capped at the PQ peak.
func tenthsToNits(v uint64) float64 {
	return math.Min(math.Round(float64(v)/10), pq.MaxNits)
}

func unsigned(n json.Number) (uint64, error) {
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", n)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %d", v)
	}
	return uint64(v), nil
}

func malformed(frame int, field string, err error) *metadata.Error {
	e := metadata.NewError(metadata.ErrMalformedMetadata, metadata.SourceHDR10Plus, "", err)
	e.Frame = frame
	e.Field = field
	return e
}
