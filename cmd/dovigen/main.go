package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/zsiec/dovigen/generator"
	"github.com/zsiec/dovigen/rpu"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(os.Args[2:])
	case "batch":
		err = runBatch(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: dovigen <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  generate -config config.json [-hdr10plus metadata.json] [-out RPU_generated.bin|srt://host:port]")
	fmt.Fprintln(os.Stderr, "  generate -xml cm.xml [-out RPU_generated.bin|srt://host:port]")
	fmt.Fprintln(os.Stderr, "  batch    -manifest jobs.yaml [-parallel 4]")
	fmt.Fprintln(os.Stderr, "  check    -in RPU_generated.bin")
	fmt.Fprintln(os.Stderr, "  version")
}

func fail(err error) {
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	slog.Error("failed", "error", err)
	os.Exit(1)
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	configPath := fs.String("config", "", "generation config (.json, .yaml or .yml)")
	hdr10plusPath := fs.String("hdr10plus", "", "HDR10+ metadata JSON used for Level 1 and scene cuts")
	xmlPath := fs.String("xml", "", "content-mapping XML")
	out := fs.String("out", generator.DefaultOutput, "output file or srt://host:port[?streamid=...]")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	res, err := generator.New(nil).Generate(generator.Options{
		ConfigPath:    *configPath,
		HDR10PlusPath: *hdr10plusPath,
		XMLPath:       *xmlPath,
		Output:        *out,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Generated metadata for %d frames\n", res.Frames)
	return nil
}

func runBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	manifestPath := fs.String("manifest", "", "YAML manifest listing the jobs")
	parallel := fs.Int("parallel", 4, "maximum concurrent jobs (0 for no limit)")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *manifestPath == "" {
		return errors.New("-manifest is required")
	}

	m, err := generator.LoadManifest(*manifestPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := generator.New(nil).RunBatch(ctx, m.Jobs, *parallel)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%s: %d frames\n", r.Output, r.Frames)
	}
	return nil
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	inPath := fs.String("in", "", "RPU elementary stream to verify")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("-in is required")
	}

	data, err := os.ReadFile(filepath.Clean(*inPath))
	if err != nil {
		return err
	}
	units := rpu.SplitNALUnits(data)
	if len(units) == 0 {
		return fmt.Errorf("%s: no NAL units found", *inPath)
	}
	for i, nal := range units {
		if !rpu.IsRPU(nal) {
			return fmt.Errorf("unit %d: NAL type %d is not an RPU", i, (nal[0]>>1)&0x3F)
		}
		if err := rpu.VerifyCRC(nal); err != nil {
			return fmt.Errorf("unit %d: %w", i, err)
		}
	}
	fmt.Printf("%s: %d RPUs, all CRCs valid\n", *inPath, len(units))
	return nil
}
