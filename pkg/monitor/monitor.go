// Package monitor joins window resolution to the render cache and the
// extrema query. Both the daemon and the CLI go through it.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"dfchart/pkg/cache"
	"dfchart/pkg/extrema"
	"dfchart/pkg/fault"
	"dfchart/pkg/models"
	"dfchart/pkg/window"
)

// Renderer returns the chart artifact of a mount for a window.
type Renderer interface {
	GetOrRender(ctx context.Context, mount string, w window.Window) (*cache.Artifact, error)
}

// Ranker selects extrema rows inside a window.
type Ranker interface {
	Top(ctx context.Context, name string, w window.Window, mode extrema.Mode, limit int) ([]models.ExtremaRow, error)
}

// MountLister lists the mounts that have samples.
type MountLister interface {
	Mounts(ctx context.Context) ([]string, error)
}

// Request carries the raw caller parameters of a chart or extrema query.
type Request struct {
	Mount string
	Pivot string
	Delta string
	// Agg and Limit only apply to extrema queries.
	Agg   string
	Limit string
}

// ExtremaResult is a resolved window and its selected rows.
type ExtremaResult struct {
	Mount  string              `json:"mount"`
	Window window.Window       `json:"window"`
	Mode   extrema.Mode        `json:"mode"`
	Limit  int                 `json:"limit"`
	Rows   []models.ExtremaRow `json:"rows"`
}

// Monitor answers chart, extrema and mount queries.
type Monitor struct {
	resolver *window.Resolver
	renderer Renderer
	ranker   Ranker
	mounts   MountLister
	logger   zerolog.Logger
}

// New creates a monitor. ranker and mounts may be nil when only charts are served.
func New(resolver *window.Resolver, renderer Renderer, ranker Ranker, mounts MountLister, logger zerolog.Logger) *Monitor {
	return &Monitor{
		resolver: resolver,
		renderer: renderer,
		ranker:   ranker,
		mounts:   mounts,
		logger:   logger,
	}
}

// Resolve validates the mount and window parameters of req.
func (m *Monitor) Resolve(req Request) (window.Window, error) {
	if strings.TrimSpace(req.Mount) == "" {
		return window.Window{}, fmt.Errorf("%w: mount point is required", fault.ErrInvalidParameter)
	}
	if strings.ContainsAny(req.Mount, "\r\n") {
		return window.Window{}, fmt.Errorf("%w: mount point contains a line break", fault.ErrInvalidParameter)
	}
	delta, err := window.ParseDelta(req.Delta)
	if err != nil {
		return window.Window{}, err
	}
	return m.resolver.Resolve(req.Pivot, delta)
}

// Chart resolves the window of req and returns its artifact.
func (m *Monitor) Chart(ctx context.Context, req Request) (*cache.Artifact, error) {
	w, err := m.Resolve(req)
	if err != nil {
		m.logger.Warn().Err(err).Str("mount", req.Mount).Msg("Rejected chart request")
		return nil, err
	}

	m.logger.Debug().
		Str("mount", req.Mount).
		Int64("pivot", w.Pivot).
		Int64("delta", w.Delta).
		Msg("Chart requested")
	return m.renderer.GetOrRender(ctx, req.Mount, w)
}

// Extrema resolves the window of req and returns its ranked rows.
// An empty limit picks the default for the window.
func (m *Monitor) Extrema(ctx context.Context, req Request) (*ExtremaResult, error) {
	if m.ranker == nil {
		return nil, fmt.Errorf("%w: extrema queries are not available", fault.ErrInvalidParameter)
	}

	w, err := m.Resolve(req)
	if err != nil {
		return nil, err
	}
	mode, err := extrema.ParseMode(req.Agg)
	if err != nil {
		return nil, err
	}

	limit := extrema.DefaultLimit(w.Delta)
	if strings.TrimSpace(req.Limit) != "" {
		limit, err = strconv.Atoi(strings.TrimSpace(req.Limit))
		if err != nil {
			return nil, fmt.Errorf("%w: limit %q is not an integer", fault.ErrInvalidParameter, req.Limit)
		}
		if err := extrema.ValidateLimit(limit); err != nil {
			return nil, err
		}
	}

	rows, err := m.ranker.Top(ctx, req.Mount, w, mode, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.ExtremaRow{}
	}

	return &ExtremaResult{Mount: req.Mount, Window: w, Mode: mode, Limit: limit, Rows: rows}, nil
}

// Mounts lists the mounts that have samples.
func (m *Monitor) Mounts(ctx context.Context) ([]string, error) {
	if m.mounts == nil {
		return []string{}, nil
	}
	names, err := m.mounts.Mounts(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Mount listing failed")
		if errors.Is(err, fault.ErrStore) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
