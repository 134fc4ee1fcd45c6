// Package generator drives a generation run: it selects a metadata source,
// builds one profile 8 RPU per frame and writes the records to a file or an
// SRT connection as an HEVC Annex-B stream.
package generator

import (
	"errors"
	"log/slog"

	"github.com/zsiec/dovigen/metadata"
	"github.com/zsiec/dovigen/rpu"
)

// Result summarizes a finished run.
type Result struct {
	Frames int
	Output string
	Source string
}

// Generator runs generations. It holds no per-run state and may be shared
// between goroutines.
type Generator struct {
	log *slog.Logger
}

// New creates a Generator. If log is nil, slog.Default() is used.
func New(log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{log: log.With("component", "generator")}
}

// Generate loads the source named by opts and runs it.
func (g *Generator) Generate(opts Options) (*Result, error) {
	src, err := LoadSource(opts)
	if err != nil {
		return nil, err
	}
	return g.run(src, opts.Output, opts.OnRecord)
}

// Run writes one record per frame of src to out. An empty out means
// DefaultOutput. The output is closed on every path; a partial output is
// left in place on failure.
func (g *Generator) Run(src Source, out string) (*Result, error) {
	return g.run(src, out, nil)
}

func (g *Generator) run(src Source, out string, onRecord func(int, *rpu.Record)) (res *Result, err error) {
	if out == "" {
		out = DefaultOutput
	}
	log := g.log.With("source", src.Name(), "output", out)
	log.Info("generating metadata", "frames", src.Frames())

	sink, err := openSink(out)
	if err != nil {
		return nil, withPath(outputError(-1, err), out)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			res, err = nil, withPath(outputError(-1, cerr), out)
		}
	}()

	em := NewEmitter(sink)
	b := NewBuilder(src)
	err = src.each(func(frame int, fm FrameMetadata) error {
		rec, err := b.Build(frame, fm)
		if err != nil {
			return err
		}
		if fm.SceneCut {
			log.Debug("scene cut", "frame", frame)
		}
		if onRecord != nil {
			onRecord(frame, rec)
		}
		if err := em.Emit(rec); err != nil {
			return b.locate(err, fm)
		}
		return nil
	})
	if err != nil {
		return nil, withPath(err, out)
	}
	if err := em.Flush(); err != nil {
		return nil, withPath(err, out)
	}

	log.Info("generated metadata", "frames", em.Frames())
	return &Result{Frames: em.Frames(), Output: out, Source: src.Name()}, nil
}

// withPath names the output in errors raised while writing it.
func withPath(err error, out string) error {
	var merr *metadata.Error
	if errors.As(err, &merr) && merr.Source == metadata.SourceOutput && merr.Path == "" {
		merr.Path = out
	}
	return err
}

// Generate runs opts with the default logger.
func Generate(opts Options) (*Result, error) {
	return New(nil).Generate(opts)
}
