// Package series fetches the raw samples plotted as usage lines.
package series

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"dfchart/pkg/fault"
	"dfchart/pkg/models"
	"dfchart/pkg/window"
)

// Source returns samples for a mount overlapping [start, stop] in id order.
type Source interface {
	Series(ctx context.Context, name string, start, stop int64) ([]models.Sample, error)
}

// Options toggle post-processing of a fetched series.
type Options struct {
	// Smooth is accepted for compatibility and leaves the series unchanged.
	Smooth bool
	// Thin keeps every window.Step-th sample.
	Thin bool
}

// Fetcher reads dense sample series.
type Fetcher struct {
	source Source
	opts   Options
	logger zerolog.Logger
}

// NewFetcher creates a fetcher over source.
func NewFetcher(source Source, opts Options, logger zerolog.Logger) *Fetcher {
	return &Fetcher{source: source, opts: opts, logger: logger}
}

// Fetch returns the samples of name inside w ordered by id. An empty result
// is not an error.
func (f *Fetcher) Fetch(ctx context.Context, name string, w window.Window) ([]models.Sample, error) {
	samples, err := f.source.Series(ctx, name, w.Start, w.Stop)
	if err != nil {
		f.logger.Error().Err(err).Str("mount", name).Msg("Series query failed")
		if errors.Is(err, fault.ErrStore) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}

	if f.opts.Smooth {
		f.logger.Debug().Str("mount", name).Msg("Smoothing requested, series left unchanged")
	}
	if f.opts.Thin {
		samples = Thin(samples, w.Step)
	}

	f.logger.Debug().
		Str("mount", name).
		Int64("start", w.Start).
		Int64("stop", w.Stop).
		Int("samples", len(samples)).
		Msg("Series fetched")
	return samples, nil
}

// Thin keeps every step-th sample and always the last one so the line
// reaches the end of the range.
func Thin(samples []models.Sample, step int) []models.Sample {
	if step <= 1 || len(samples) <= 2 {
		return samples
	}

	thinned := make([]models.Sample, 0, len(samples)/step+2)
	for i := 0; i < len(samples); i += step {
		thinned = append(thinned, samples[i])
	}
	if last := samples[len(samples)-1]; thinned[len(thinned)-1].ID != last.ID {
		thinned = append(thinned, last)
	}
	return thinned
}
