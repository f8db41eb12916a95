package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"dfchart/pkg/cache"
	"dfchart/pkg/client"
	"dfchart/pkg/config"
	"dfchart/pkg/fault"
	"dfchart/pkg/log"
	"dfchart/pkg/monitor"
)

const (
	defaultDelta = 3600
	outputPerm   = 0o644

	exitFailure = 1
	exitUsage   = 2
)

//go:embed VERSION
var Version string

func main() {
	_ = log.Logger

	var name, pivot, output string
	var delta int64
	flag.StringVar(&name, "name", "", "Mount point to chart (required)")
	flag.StringVar(&name, "n", "", "Shorthand for -name")
	flag.StringVar(&pivot, "pivot", "", "Window center: epoch seconds or YYYY-MM-DDTHH:MM:SS plus zone")
	flag.StringVar(&pivot, "p", "", "Shorthand for -pivot")
	flag.Int64Var(&delta, "delta", defaultDelta, "Window half-width in seconds")
	flag.Int64Var(&delta, "d", defaultDelta, "Shorthand for -delta")
	flag.StringVar(&output, "output", "", "Copy the chart to this path instead of printing the cached path")
	flag.StringVar(&output, "o", "", "Shorthand for -output")
	daemon := flag.String("server", "", "Fetch the chart from a running daemon at this URL instead of rendering locally")
	configPath := flag.String("config", "", "YAML configuration file")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	overrides := config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if *showVersion {
		fmt.Println(strings.TrimSpace(Version))
		return
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "dfchart: -name is required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	overrides.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := log.Setup(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}
	if *debug {
		log.SetDebugMode()
	}

	req := monitor.Request{Mount: name, Pivot: pivot, Delta: strconv.FormatInt(delta, 10)}
	if *daemon != "" {
		os.Exit(fetch(*daemon, req, output))
	}
	os.Exit(run(cfg, req, output))
}

// exitCode maps a chart failure to the process status.
func exitCode(err error, mount string) int {
	log.Error().Err(err).Str("kind", string(fault.KindOf(err))).Str("mount", mount).Msg("Chart failed")
	if fault.IsClient(err) {
		return exitUsage
	}
	return exitFailure
}

// fetch downloads the chart from a daemon to output, or stdout when empty.
func fetch(daemon string, req monitor.Request, output string) int {
	remote, err := client.New(daemon, client.Options{}, log.Logger)
	if err != nil {
		return exitCode(err, req.Mount)
	}

	if output == "" {
		if _, err := remote.Chart(context.Background(), req, os.Stdout); err != nil {
			return exitCode(err, req.Mount)
		}
		return 0
	}

	var info *client.ChartInfo
	written, err := writeAtomically(output, func(w io.Writer) (int64, error) {
		var chartErr error
		info, chartErr = remote.Chart(context.Background(), req, w)
		if chartErr != nil {
			return 0, chartErr
		}
		return info.Size, nil
	})
	if err != nil {
		return exitCode(err, req.Mount)
	}

	log.Info().
		Str("output", output).
		Str("size", humanize.Bytes(uint64(written))). //nolint:gosec // byte counts are non-negative
		Bool("cached", info.Cached).
		Msg("Chart written")
	return 0
}

func run(cfg *config.Config, req monitor.Request, output string) int {
	service, err := monitor.Open(cfg, nil, log.Logger)
	if err != nil {
		log.Error().Err(err).Str("store", cfg.Store.Path).Msg("Failed to open sample store")
		return exitFailure
	}
	defer func() { _ = service.Close() }()

	artifact, err := service.Chart(context.Background(), req)
	if err != nil {
		return exitCode(err, req.Mount)
	}

	if output == "" {
		fmt.Println(artifact.Path)
		return 0
	}

	written, err := copyArtifact(artifact, output)
	if err != nil {
		log.Error().Err(err).Str("output", output).Msg("Failed to write chart")
		return exitFailure
	}
	log.Info().
		Str("output", output).
		Str("size", humanize.Bytes(uint64(written))). //nolint:gosec // byte counts are non-negative
		Bool("cached", artifact.Hit).
		Msg("Chart written")
	return 0
}

// copyArtifact copies the cached chart to output.
func copyArtifact(artifact *cache.Artifact, output string) (int64, error) {
	src, err := os.Open(artifact.Path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	return writeAtomically(output, func(w io.Writer) (int64, error) {
		return io.Copy(w, src)
	})
}

// writeAtomically fills a sibling temp file and renames it to output.
func writeAtomically(output string, fill func(io.Writer) (int64, error)) (int64, error) {
	dst, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+"-*")
	if err != nil {
		return 0, err
	}
	tmpPath := dst.Name()

	written, err := fill(dst)
	closeErr := dst.Close()
	if err = errors.Join(err, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Chmod(tmpPath, outputPerm); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	if err := os.Rename(tmpPath, output); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	return written, nil
}
