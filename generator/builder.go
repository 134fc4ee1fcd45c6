package generator

import (
	"errors"

	"github.com/zsiec/dovigen/metadata"
	"github.com/zsiec/dovigen/rpu"
)

// Builder turns static config and per-frame metadata into RPU records.
// It never mutates its inputs.
type Builder struct {
	base   *metadata.GenerateConfig
	source string
	path   string
}

// NewBuilder returns a Builder for the static config of src. Encoding
// failures name src, its input path and the frame's shot.
func NewBuilder(src Source) *Builder {
	return &Builder{base: src.base(), source: src.Name(), path: src.path()}
}

// Build returns the record for one frame. Records that cannot be encoded
// fail with metadata.ErrRPUEncoding naming the frame.
func (b *Builder) Build(frame int, fm FrameMetadata) (*rpu.Record, error) {
	dm := rpu.DMDataFromConfig(b.base)
	if fm.Level1 != nil {
		dm.AddLevel1(fm.Level1.MinPQ, fm.Level1.MaxPQ, fm.Level1.AvgPQ)
	}
	if fm.SceneCut {
		dm.SetSceneCut(true)
	}
	for _, l2 := range fm.Level2 {
		dm.AddLevel2(l2)
	}
	if fm.Level3 != nil {
		dm.AddLevel3(*fm.Level3)
	}

	rec := rpu.NewProfile8(dm)
	if err := rec.Validate(); err != nil {
		return nil, b.locate(encodingError(frame, err), fm)
	}
	return rec, nil
}

// locate attributes an encoding failure to the builder's source and the
// shot of fm. Other errors pass through unchanged.
func (b *Builder) locate(err error, fm FrameMetadata) error {
	var merr *metadata.Error
	if errors.As(err, &merr) && errors.Is(merr.Kind, metadata.ErrRPUEncoding) {
		merr.Source = b.source
		merr.Path = b.path
		merr.Shot = fm.Shot
	}
	return err
}

// encodingError reports a record that failed to encode. The Emitter knows
// only the output, so Builder.locate fills in the input source.
func encodingError(frame int, err error) *metadata.Error {
	e := metadata.NewError(metadata.ErrRPUEncoding, metadata.SourceOutput, "", err)
	e.Frame = frame
	return e
}
