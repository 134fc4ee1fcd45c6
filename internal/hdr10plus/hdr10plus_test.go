package hdr10plus

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/zsiec/dovigen/metadata"
)

const twoScenes = `{
	"JSONInfo": {"HDR10plusProfile": "B", "Version": "1.0"},
	"SceneInfo": [
		{"LuminanceParameters": {"AverageRGB": 1000, "MaxScl": [10000, 8000, 9000]}, "SceneFrameIndex": 0, "SequenceFrameIndex": 0, "SceneId": 0},
		{"LuminanceParameters": {"AverageRGB": 1230, "MaxScl": [4000, 6000, 5000]}, "SceneFrameIndex": 1, "SequenceFrameIndex": 1, "SceneId": 0},
		{"LuminanceParameters": {"AverageRGB": 120, "MaxScl": [0, 0, 1000]}, "SceneFrameIndex": 0, "SequenceFrameIndex": 2, "SceneId": 1}
	]
}`

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := Parse(strings.NewReader(twoScenes))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", m.Len())
	}

	want := []metadata.Level1Metadata{
		{MinPQ: 0, MaxPQ: 3079, AvgPQ: 2081}, // 1000 nits, 100 nits
		{MinPQ: 0, MaxPQ: 2851, AvgPQ: 2166}, // 600 nits, 123 nits
		{MinPQ: 0, MaxPQ: 2081, AvgPQ: 1287}, // 100 nits, 12 nits
	}
	if !reflect.DeepEqual(m.Level1, want) {
		t.Errorf("Level1: got %+v, want %+v", m.Level1, want)
	}

	for frame, cut := range []bool{true, false, true} {
		if got := m.IsSceneCut(frame); got != cut {
			t.Errorf("IsSceneCut(%d): got %v, want %v", frame, got, cut)
		}
	}
}

func TestParseRoundsTenths(t *testing.T) {
	t.Parallel()

	// 1234 tenths rounds to 123 nits, 1235 to 124.
	doc := `{"SceneInfo": [
		{"LuminanceParameters": {"AverageRGB": 1234, "MaxScl": [1235]}, "SceneFrameIndex": 3, "SequenceFrameIndex": 0}
	]}`
	m, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if m.Level1[0].AvgPQ != 2166 {
		t.Errorf("AvgPQ: got %d, want 2166", m.Level1[0].AvgPQ)
	}
	if m.IsSceneCut(0) {
		t.Error("frame 0 should not be a scene cut when SceneFrameIndex != 0")
	}
}

func TestParseCapsAtPeak(t *testing.T) {
	t.Parallel()

	doc := `{"SceneInfo": [
		{"LuminanceParameters": {"AverageRGB": 0, "MaxScl": [200000]}, "SceneFrameIndex": 0, "SequenceFrameIndex": 0}
	]}`
	m, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if m.Level1[0].MaxPQ != 4095 || m.Level1[0].AvgPQ != 0 {
		t.Errorf("got %+v, want max 4095 avg 0", m.Level1[0])
	}
}

func TestParseDeterministic(t *testing.T) {
	t.Parallel()

	a, err := Parse(strings.NewReader(twoScenes))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		b, err := Parse(strings.NewReader(twoScenes))
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("run %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		doc   string
		frame int
		field string
	}{
		{
			name:  "not json",
			doc:   `{"SceneInfo": [`,
			frame: -1,
		},
		{
			name:  "missing SceneInfo",
			doc:   `{"JSONInfo": {}}`,
			frame: -1,
			field: "SceneInfo",
		},
		{
			name:  "entry not an object",
			doc:   `{"SceneInfo": [42]}`,
			frame: 0,
			field: "SceneInfo",
		},
		{
			name:  "missing luminance",
			doc:   `{"SceneInfo": [{"SceneFrameIndex": 0, "SequenceFrameIndex": 0}]}`,
			frame: 0,
			field: "LuminanceParameters",
		},
		{
			name:  "missing average",
			doc:   `{"SceneInfo": [{"LuminanceParameters": {"MaxScl": [1]}, "SceneFrameIndex": 0, "SequenceFrameIndex": 0}]}`,
			frame: 0,
			field: "LuminanceParameters.AverageRGB",
		},
		{
			name: "empty maxscl on second frame",
			doc: `{"SceneInfo": [
				{"LuminanceParameters": {"AverageRGB": 1, "MaxScl": [1]}, "SceneFrameIndex": 0, "SequenceFrameIndex": 0},
				{"LuminanceParameters": {"AverageRGB": 1, "MaxScl": []}, "SceneFrameIndex": 1, "SequenceFrameIndex": 1}
			]}`,
			frame: 1,
			field: "LuminanceParameters.MaxScl",
		},
		{
			name:  "fractional maxscl",
			doc:   `{"SceneInfo": [{"LuminanceParameters": {"AverageRGB": 1, "MaxScl": [1, 2.5]}, "SceneFrameIndex": 0, "SequenceFrameIndex": 0}]}`,
			frame: 0,
			field: "LuminanceParameters.MaxScl[1]",
		},
		{
			name:  "negative average",
			doc:   `{"SceneInfo": [{"LuminanceParameters": {"AverageRGB": -3, "MaxScl": [1]}, "SceneFrameIndex": 0, "SequenceFrameIndex": 0}]}`,
			frame: 0,
			field: "LuminanceParameters.AverageRGB",
		},
		{
			name:  "missing scene index",
			doc:   `{"SceneInfo": [{"LuminanceParameters": {"AverageRGB": 1, "MaxScl": [1]}, "SequenceFrameIndex": 0}]}`,
			frame: 0,
			field: "SceneFrameIndex",
		},
		{
			name:  "missing sequence index at scene start",
			doc:   `{"SceneInfo": [{"LuminanceParameters": {"AverageRGB": 1, "MaxScl": [1]}, "SceneFrameIndex": 0}]}`,
			frame: 0,
			field: "SequenceFrameIndex",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(strings.NewReader(tt.doc))
			if !errors.Is(err, metadata.ErrMalformedMetadata) {
				t.Fatalf("got %v, want ErrMalformedMetadata", err)
			}
			var merr *metadata.Error
			if !errors.As(err, &merr) {
				t.Fatalf("got %T, want *metadata.Error", err)
			}
			if merr.Frame != tt.frame {
				t.Errorf("Frame: got %d, want %d", merr.Frame, tt.frame)
			}
			if merr.Field != tt.field {
				t.Errorf("Field: got %q, want %q", merr.Field, tt.field)
			}
			if merr.Source != metadata.SourceHDR10Plus {
				t.Errorf("Source: got %q", merr.Source)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := ParseFile(filepath.Join(dir, "missing.json")); !errors.Is(err, metadata.ErrInputNotFound) {
		t.Errorf("missing file: got %v, want ErrInputNotFound", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"SceneInfo": [1]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ParseFile(bad)
	var merr *metadata.Error
	if !errors.As(err, &merr) || merr.Path != bad {
		t.Errorf("expected path %q in error, got %v", bad, err)
	}

	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(twoScenes), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := ParseFile(good)
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 3 {
		t.Errorf("Len: got %d, want 3", m.Len())
	}
}
