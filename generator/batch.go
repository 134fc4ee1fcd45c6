package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/zsiec/dovigen/metadata"
)

// Job is one run of a batch manifest. Relative paths are resolved against
// the manifest's directory.
type Job struct {
	Config    string `yaml:"config"`
	HDR10Plus string `yaml:"hdr10plus"`
	XML       string `yaml:"xml"`
	Out       string `yaml:"out"`
}

// Options returns the run options of j.
func (j Job) Options() Options {
	return Options{
		ConfigPath:    j.Config,
		HDR10PlusPath: j.HDR10Plus,
		XMLPath:       j.XML,
		Output:        j.Out,
	}
}

// Manifest lists the jobs of a batch.
type Manifest struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadManifest reads a YAML batch manifest. Every job needs a distinct out.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, metadata.NewError(metadata.ErrInputNotFound, metadata.SourceManifest, path, err)
	}
	m, err := ParseManifest(data, filepath.Dir(path))
	if err != nil {
		return nil, metadata.NewError(metadata.ErrMalformedMetadata, metadata.SourceManifest, path, err)
	}
	return m, nil
}

// ParseManifest decodes a manifest and resolves relative paths against dir.
func ParseManifest(data []byte, dir string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if len(m.Jobs) == 0 {
		return nil, errors.New("no jobs")
	}

	seen := make(map[string]int, len(m.Jobs))
	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Out == "" {
			return nil, fmt.Errorf("jobs[%d]: out is required", i)
		}
		j.Config = resolve(dir, j.Config)
		j.HDR10Plus = resolve(dir, j.HDR10Plus)
		j.XML = resolve(dir, j.XML)
		j.Out = resolve(dir, j.Out)
		if prev, ok := seen[j.Out]; ok {
			return nil, fmt.Errorf("jobs[%d]: out %q already used by jobs[%d]", i, j.Out, prev)
		}
		seen[j.Out] = i
	}
	return &m, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "srt://") {
		return p
	}
	return filepath.Join(dir, p)
}

// RunBatch runs jobs concurrently, at most parallel at a time (no limit if
// parallel <= 0). Each job is an independent sequential run. The first
// failure cancels jobs not yet started and is returned; results of jobs
// that did not complete are nil.
func (g *Generator) RunBatch(ctx context.Context, jobs []Job, parallel int) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	eg, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		eg.SetLimit(parallel)
	}
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := g.Generate(job.Options())
			if err != nil {
				return fmt.Errorf("job %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	total := 0
	for _, r := range results {
		total += r.Frames
	}
	g.log.Info("batch complete", "jobs", len(jobs), "frames", total)
	return results, nil
}
