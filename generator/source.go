package generator

import (
	"errors"

	"github.com/zsiec/dovigen/internal/cmxml"
	"github.com/zsiec/dovigen/internal/hdr10plus"
	"github.com/zsiec/dovigen/metadata"
	"github.com/zsiec/dovigen/rpu"
)

var (
	// ErrConflictingSources is returned when both a config and an XML
	// document are given.
	ErrConflictingSources = errors.New("config and XML sources are mutually exclusive")

	// ErrNoSource is returned when neither a config nor an XML document is
	// given.
	ErrNoSource = errors.New("no metadata source: need a config or an XML document")

	// ErrHDR10PlusWithoutConfig is returned for an HDR10+ file with no
	// config to enrich.
	ErrHDR10PlusWithoutConfig = errors.New("HDR10+ metadata requires a config")
)

// FrameMetadata is the dynamic metadata of one frame. Nil and empty fields
// mean the frame carries no such level.
type FrameMetadata struct {
	Level1   *metadata.Level1Metadata
	Level2   []metadata.Level2Metadata
	Level3   *metadata.Level3Metadata
	SceneCut bool

	// Shot is the frame's shot index in an XML document, -1 for the other
	// sources.
	Shot int
}

// Source is one of ConfigSource, HDR10PlusSource or XMLSource.
type Source interface {
	// Name is the metadata source name used in errors and logs.
	Name() string
	// Frames returns the number of records the source produces.
	Frames() uint64

	base() *metadata.GenerateConfig
	path() string
	each(fn func(frame int, fm FrameMetadata) error) error
}

// ConfigSource produces Length records from static config alone.
type ConfigSource struct {
	Path   string
	Config *metadata.GenerateConfig
}

// Name returns metadata.SourceConfig.
func (s *ConfigSource) Name() string { return metadata.SourceConfig }

// Frames returns the config's Length.
func (s *ConfigSource) Frames() uint64 { return s.Config.Length }

func (s *ConfigSource) base() *metadata.GenerateConfig { return s.Config }
func (s *ConfigSource) path() string                   { return s.Path }

func (s *ConfigSource) each(fn func(int, FrameMetadata) error) error {
	for i := uint64(0); i < s.Config.Length; i++ {
		if err := fn(int(i), FrameMetadata{Shot: -1}); err != nil {
			return err
		}
	}
	return nil
}

// HDR10PlusSource produces one record per HDR10+ scene info entry. The
// config's Length is ignored.
type HDR10PlusSource struct {
	ConfigPath string
	Path       string
	Config     *metadata.GenerateConfig
	Metadata   *hdr10plus.Metadata
}

// Name returns metadata.SourceHDR10Plus.
func (s *HDR10PlusSource) Name() string { return metadata.SourceHDR10Plus }

// Frames returns the number of HDR10+ scene info entries.
func (s *HDR10PlusSource) Frames() uint64 { return uint64(s.Metadata.Len()) }

func (s *HDR10PlusSource) base() *metadata.GenerateConfig { return s.Config }
func (s *HDR10PlusSource) path() string                   { return s.Path }

func (s *HDR10PlusSource) each(fn func(int, FrameMetadata) error) error {
	for i := range s.Metadata.Level1 {
		l1 := s.Metadata.Level1[i]
		fm := FrameMetadata{
			Level1:   &l1,
			SceneCut: s.Metadata.IsSceneCut(i),
			Shot:     -1,
		}
		if err := fn(i, fm); err != nil {
			return err
		}
	}
	return nil
}

// XMLSource produces records shot by shot from a content-mapping document.
// The first frame of every shot is a scene cut.
type XMLSource struct {
	Path     string
	Document *cmxml.Document

	cfg *metadata.GenerateConfig
}

// NewXMLSource wraps a parsed document. Its static config carries only the
// document's Level 6.
func NewXMLSource(path string, doc *cmxml.Document) *XMLSource {
	l6 := doc.HDR10Metadata()
	return &XMLSource{
		Path:     path,
		Document: doc,
		cfg:      &metadata.GenerateConfig{Level6: &l6},
	}
}

// Name returns metadata.SourceXML.
func (s *XMLSource) Name() string { return metadata.SourceXML }

// Frames returns the total number of frames across all shots.
func (s *XMLSource) Frames() uint64 { return s.Document.VideoLength() }

func (s *XMLSource) base() *metadata.GenerateConfig { return s.cfg }
func (s *XMLSource) path() string                   { return s.Path }

func (s *XMLSource) each(fn func(int, FrameMetadata) error) error {
	frame := 0
	for idx, shot := range s.Document.Shots() {
		for i := 0; i < shot.Duration; i++ {
			fm := FrameMetadata{SceneCut: i == 0, Shot: idx}
			if i < len(shot.Level1) {
				fm.Level1 = shot.Level1[i]
			}
			if i < len(shot.Level2) {
				fm.Level2 = shot.Level2[i]
			}
			if i < len(shot.Level3) {
				fm.Level3 = shot.Level3[i]
			}
			if err := fn(frame, fm); err != nil {
				return err
			}
			frame++
		}
	}
	return nil
}

// Options selects the inputs and output of a run.
type Options struct {
	ConfigPath    string
	HDR10PlusPath string
	XMLPath       string

	// Output is a file path or an srt:// URL. Empty means DefaultOutput.
	Output string

	// OnRecord, if set, is called with every record before it is emitted.
	OnRecord func(frame int, rec *rpu.Record)
}

// LoadSource reads every input named by opts and returns the selected
// source. No output is touched.
func LoadSource(opts Options) (Source, error) {
	switch {
	case opts.XMLPath != "" && opts.ConfigPath != "":
		return nil, ErrConflictingSources
	case opts.XMLPath != "" && opts.HDR10PlusPath != "":
		return nil, ErrConflictingSources
	case opts.XMLPath != "":
		doc, err := cmxml.ParseFile(opts.XMLPath)
		if err != nil {
			return nil, err
		}
		return NewXMLSource(opts.XMLPath, doc), nil
	case opts.ConfigPath == "" && opts.HDR10PlusPath != "":
		return nil, ErrHDR10PlusWithoutConfig
	case opts.ConfigPath == "":
		return nil, ErrNoSource
	}

	cfg, err := metadata.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.HDR10PlusPath == "" {
		return &ConfigSource{Path: opts.ConfigPath, Config: cfg}, nil
	}
	md, err := hdr10plus.ParseFile(opts.HDR10PlusPath)
	if err != nil {
		return nil, err
	}
	return &HDR10PlusSource{
		ConfigPath: opts.ConfigPath,
		Path:       opts.HDR10PlusPath,
		Config:     cfg,
		Metadata:   md,
	}, nil
}
