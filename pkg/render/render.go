// Package render drives the external chart rendering engine.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"dfchart/pkg/fault"
)

// DefaultBinary is the gnuplot executable looked up in PATH.
const DefaultBinary = "gnuplot"

// Engine executes a directive stream. It must create the artifact at the
// output selected by the stream or fail.
type Engine interface {
	Render(ctx context.Context, directives []string) error
}

// Format is an output kind the engine can produce.
type Format struct {
	Name        string
	Extension   string
	ContentType string
}

var (
	FormatCanvas = Format{Name: "canvas", Extension: "html", ContentType: "text/html; charset=utf-8"}
	FormatSVG    = Format{Name: "svg", Extension: "svg", ContentType: "image/svg+xml"}
	FormatPNG    = Format{Name: "png", Extension: "png", ContentType: "image/png"}
)

var formats = map[string]Format{
	FormatCanvas.Name: FormatCanvas,
	FormatSVG.Name:    FormatSVG,
	FormatPNG.Name:    FormatPNG,
}

// ErrUnknownFormat is returned by LookupFormat.
var ErrUnknownFormat = errors.New("unknown render format")

// LookupFormat returns the format called name. Empty means canvas.
func LookupFormat(name string) (Format, error) {
	if name == "" {
		return FormatCanvas, nil
	}
	format, ok := formats[strings.ToLower(name)]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return format, nil
}

// TerminalOptions tune the terminal directives.
type TerminalOptions struct {
	// JSDir is where the canvas page loads its helper scripts from.
	JSDir  string
	Width  int
	Height int
}

// Terminal returns the terminal selection directives for f.
func (f Format) Terminal(opts TerminalOptions) []string {
	size := ""
	if opts.Width > 0 && opts.Height > 0 {
		size = fmt.Sprintf(" size %d,%d", opts.Width, opts.Height)
	}

	switch f.Name {
	case FormatSVG.Name:
		return []string{"set terminal svg" + size + " dynamic mouse standalone", "set termoption enhanced"}
	case FormatPNG.Name:
		return []string{"set terminal png" + size, "set termoption enhanced"}
	default:
		terminal := "set terminal canvas" + size + " standalone mousing"
		if opts.JSDir != "" {
			terminal += " jsdir " + quote(opts.JSDir)
		}
		return []string{terminal, "set termoption enhanced"}
	}
}

// Directives assembles a self-contained stream: reset, output, terminal,
// program, and closing the output.
func Directives(output string, terminal []string, program string) []string {
	directives := make([]string, 0, len(terminal)+4)
	directives = append(directives, "reset session", "set output "+quote(output))
	directives = append(directives, terminal...)
	directives = append(directives, program, "unset output")
	return directives
}

func quote(s string) string {
	return "'" + quoteReplacer.Replace(s) + "'"
}

// quoteReplacer doubles single quotes and flattens line breaks, which would
// otherwise end the directive.
var quoteReplacer = strings.NewReplacer("'", "''", "\r\n", " ", "\n", " ", "\r", " ")

// Gnuplot runs the gnuplot binary with the directives on stdin.
type Gnuplot struct {
	binary string
	logger zerolog.Logger
}

// NewGnuplot creates an engine for binary. Empty means DefaultBinary.
func NewGnuplot(binary string, logger zerolog.Logger) *Gnuplot {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Gnuplot{binary: binary, logger: logger}
}

// Render runs gnuplot to completion. A non-zero exit is a RenderFailure
// carrying the engine's stderr.
func (g *Gnuplot) Render(ctx context.Context, directives []string) error {
	//nolint:gosec // binary comes from configuration, directives are generated
	cmd := exec.CommandContext(ctx, g.binary)
	cmd.Stdin = strings.NewReader(strings.Join(directives, "\n") + "\n")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diagnostic := strings.TrimSpace(stderr.String())
		g.logger.Error().Err(err).Str("binary", g.binary).Str("diagnostic", diagnostic).Msg("Rendering engine failed")
		return &fault.RenderError{Diagnostic: diagnostic, Err: err}
	}

	if warnings := strings.TrimSpace(stderr.String()); warnings != "" {
		g.logger.Warn().Str("binary", g.binary).Str("diagnostic", warnings).Msg("Rendering engine reported warnings")
	}
	return nil
}
