package cmxml

import (
	"errors"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/zsiec/dovigen/metadata"
)

func TestParseFileTwoShots(t *testing.T) {
	t.Parallel()

	doc, err := ParseFile(filepath.FromSlash("testdata/two_shots.xml"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if doc.Version() != "2.0.5" {
		t.Errorf("Version: got %q, want 2.0.5", doc.Version())
	}
	if doc.VideoLength() != 5 {
		t.Errorf("VideoLength: got %d, want 5", doc.VideoLength())
	}

	wantL6 := metadata.Level6Metadata{
		MaxDisplayMasteringLuminance: 4000,
		MinDisplayMasteringLuminance: 50,
		MaxContentLightLevel:         1000,
		MaxFrameAverageLightLevel:    400,
	}
	if got := doc.HDR10Metadata(); got != wantL6 {
		t.Errorf("HDR10Metadata: got %+v, want %+v", got, wantL6)
	}

	shots := doc.Shots()
	if len(shots) != 2 {
		t.Fatalf("got %d shots, want 2", len(shots))
	}

	s0 := shots[0]
	if s0.Duration != 3 {
		t.Errorf("shot 0 duration: got %d, want 3", s0.Duration)
	}
	if len(s0.Level1) != 3 {
		t.Fatalf("shot 0 level1 len: got %d, want 3", len(s0.Level1))
	}
	base := metadata.Level1Metadata{MinPQ: 0, AvgPQ: 2048, MaxPQ: 3071}
	for i := 0; i < 2; i++ {
		if s0.Level1[i] == nil || *s0.Level1[i] != base {
			t.Errorf("shot 0 frame %d level1: got %+v, want %+v", i, s0.Level1[i], base)
		}
	}
	edited := metadata.Level1Metadata{MinPQ: 410, AvgPQ: 819, MaxPQ: 1229}
	if s0.Level1[2] == nil || *s0.Level1[2] != edited {
		t.Errorf("shot 0 frame 2 level1: got %+v, want %+v", s0.Level1[2], edited)
	}

	trim100 := metadata.NewLevel2(100)
	trim100.TrimSlope = 3072
	trim100.TrimOffset = 1536
	wantL2 := []metadata.Level2Metadata{trim100, metadata.NewLevel2(600)}
	for i := 0; i < 3; i++ {
		if !reflect.DeepEqual(s0.Level2[i], wantL2) {
			t.Errorf("shot 0 frame %d level2: got %+v, want %+v", i, s0.Level2[i], wantL2)
		}
	}
	if s0.Level3 != nil {
		t.Errorf("shot 0 level3: got %+v, want nil", s0.Level3)
	}

	s1 := shots[1]
	if s1.Duration != 2 {
		t.Errorf("shot 1 duration: got %d, want 2", s1.Duration)
	}
	if s1.Level1 != nil || s1.Level2 != nil {
		t.Errorf("shot 1 should carry no level1/level2, got %+v %+v", s1.Level1, s1.Level2)
	}
	if len(s1.Level3) != 2 || s1.Level3[0] != nil {
		t.Fatalf("shot 1 level3: got %+v", s1.Level3)
	}
	wantL3 := metadata.Level3Metadata{MinPQOffset: 1024, AvgPQOffset: 2048, MaxPQOffset: 3072}
	if *s1.Level3[1] != wantL3 {
		t.Errorf("shot 1 frame 1 level3: got %+v, want %+v", *s1.Level3[1], wantL3)
	}
}

func TestParseFileMissing(t *testing.T) {
	t.Parallel()

	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.xml"))
	if !errors.Is(err, metadata.ErrInputNotFound) {
		t.Fatalf("got %v, want ErrInputNotFound", err)
	}
}

const header = `<DolbyLabsMDF version="2.0.5"><Outputs><Output><Video><Track>`
const footer = `</Track></Video></Output></Outputs></DolbyLabsMDF>`

const globalOK = `<PluginNode><DVGlobalData>
	<MasteringDisplay><PeakBrightness>1000</PeakBrightness><MinimumBrightness>0.0001</MinimumBrightness></MasteringDisplay>
	<TargetDisplay><ID>1</ID><PeakBrightness>100</PeakBrightness></TargetDisplay>
</DVGlobalData></PluginNode>`

func shotXML(in, duration int, body string) string {
	return `<Shot><Record><In>` + strconv.Itoa(in) + `</In><Duration>` + strconv.Itoa(duration) + `</Duration></Record><PluginNode>` + body + `</PluginNode></Shot>`
}

func TestParseNoDynamicData(t *testing.T) {
	t.Parallel()

	doc, err := Parse(strings.NewReader(header + globalOK + shotXML(0, 4, "") + footer))
	if err != nil {
		t.Fatal(err)
	}
	if doc.VideoLength() != 4 {
		t.Errorf("VideoLength: got %d, want 4", doc.VideoLength())
	}
	s := doc.Shots()[0]
	if s.Level1 != nil || s.Level2 != nil || s.Level3 != nil {
		t.Errorf("expected no per-level data, got %+v", s)
	}
	if got := doc.HDR10Metadata().MinDisplayMasteringLuminance; got != 1 {
		t.Errorf("min mastering luminance: got %d, want 1", got)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		doc   string
		shot  int
		field string
	}{
		{
			name:  "broken xml",
			doc:   `<DolbyLabsMDF><Outputs>`,
			shot:  -1,
			field: "",
		},
		{
			name:  "no track",
			doc:   `<DolbyLabsMDF version="2.0.5"><Outputs/></DolbyLabsMDF>`,
			shot:  -1,
			field: "Outputs.Output.Video.Track",
		},
		{
			name:  "no global data",
			doc:   header + shotXML(0, 1, "") + footer,
			shot:  -1,
			field: "DVGlobalData",
		},
		{
			name:  "no mastering display",
			doc:   header + `<PluginNode><DVGlobalData></DVGlobalData></PluginNode>` + footer,
			shot:  -1,
			field: "MasteringDisplay",
		},
		{
			name:  "negative peak",
			doc:   header + `<PluginNode><DVGlobalData><MasteringDisplay><PeakBrightness>-1</PeakBrightness><MinimumBrightness>0</MinimumBrightness></MasteringDisplay></DVGlobalData></PluginNode>` + footer,
			shot:  -1,
			field: "MasteringDisplay.PeakBrightness",
		},
		{
			name:  "missing record",
			doc:   header + globalOK + `<Shot><PluginNode/></Shot>` + footer,
			shot:  0,
			field: "Record",
		},
		{
			name:  "gap between shots",
			doc:   header + globalOK + shotXML(0, 2, "") + shotXML(3, 2, "") + footer,
			shot:  1,
			field: "Record.In",
		},
		{
			name:  "unknown target",
			doc:   header + globalOK + shotXML(0, 2, `<DVDynamicData><Level2><TID>9</TID><Trim>0 0 0 0 0 0</Trim></Level2></DVDynamicData>`) + footer,
			shot:  0,
			field: "DVDynamicData.Level2[0].TID",
		},
		{
			name:  "short trim",
			doc:   header + globalOK + shotXML(0, 2, `<DVDynamicData><Level2><TID>1</TID><Trim>0 0 0</Trim></Level2></DVDynamicData>`) + footer,
			shot:  0,
			field: "DVDynamicData.Level2[0].Trim",
		},
		{
			name:  "bad image character",
			doc:   header + globalOK + shotXML(0, 2, "") + shotXML(2, 1, `<DVDynamicData><Level1><ImageCharacter>0 0.5</ImageCharacter></Level1></DVDynamicData>`) + footer,
			shot:  1,
			field: "DVDynamicData.Level1.ImageCharacter",
		},
		{
			name:  "edit offset outside shot",
			doc:   header + globalOK + shotXML(0, 2, `<Frame><EditOffset>2</EditOffset></Frame>`) + footer,
			shot:  0,
			field: "Frame[0].EditOffset",
		},
		{
			name: "duplicate target display",
			doc: header + `<PluginNode><DVGlobalData>
	<MasteringDisplay><PeakBrightness>1000</PeakBrightness><MinimumBrightness>0.0001</MinimumBrightness></MasteringDisplay>
	<TargetDisplay><ID>1</ID><PeakBrightness>100</PeakBrightness></TargetDisplay>
	<TargetDisplay><ID>1</ID><PeakBrightness>600</PeakBrightness></TargetDisplay>
</DVGlobalData></PluginNode>` + footer,
			shot:  -1,
			field: "TargetDisplay[1].ID",
		},
		{
			name:  "duplicate edit offset is rejected",
			doc:   header + globalOK + shotXML(0, 3, `<Frame><EditOffset>1</EditOffset></Frame><Frame><EditOffset>1</EditOffset></Frame>`) + footer,
			shot:  0,
			field: "Frame[1].EditOffset",
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
			if merr.Shot != tt.shot {
				t.Errorf("Shot: got %d, want %d", merr.Shot, tt.shot)
			}
			if merr.Field != tt.field {
				t.Errorf("Field: got %q, want %q", merr.Field, tt.field)
			}
		})
	}
}

func TestTrimCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want uint16
	}{
		{-2, 0},
		{-1, 0},
		{0, 2048},
		{0.5, 3072},
		{1, 4095},
	}
	for _, tt := range tests {
		if got := trimCode(tt.in); got != tt.want {
			t.Errorf("trimCode(%v): got %d, want %d", tt.in, got, tt.want)
		}
	}
}
