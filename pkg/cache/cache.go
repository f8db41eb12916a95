// Package cache memoizes rendered charts on disk under quantized keys.
//
// A cached artifact is served without any freshness check. Nothing here
// removes artifacts unless Prune is called; concurrent misses for one key
// render independently unless coalescing is enabled, and the last rename wins.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"dfchart/pkg/extrema"
	"dfchart/pkg/fault"
	"dfchart/pkg/metrics"
	"dfchart/pkg/models"
	"dfchart/pkg/plot"
	"dfchart/pkg/render"
	"dfchart/pkg/window"
)

const (
	dirPerm       = 0750
	tempPattern   = ".render-*.tmp"
	emptyArtifact = "engine produced an empty artifact"
)

// SeriesFetcher returns the dense sample series of a window.
type SeriesFetcher interface {
	Fetch(ctx context.Context, name string, w window.Window) ([]models.Sample, error)
}

// ExtremaAggregator returns the ranked extrema rows of a window.
type ExtremaAggregator interface {
	Top(ctx context.Context, name string, w window.Window, mode extrema.Mode, limit int) ([]models.ExtremaRow, error)
}

// Options configure a Cache.
type Options struct {
	Dir      string
	Format   render.Format
	Terminal render.TerminalOptions
	// Coalesce shares one render between concurrent misses of a key.
	Coalesce bool
}

// Artifact is a rendered chart on disk.
type Artifact struct {
	Key         Key
	Path        string
	ContentType string
	Size        int64
	Hit         bool
}

// Cache serves artifacts from Dir and renders the missing ones.
type Cache struct {
	opts    Options
	series  SeriesFetcher
	extrema ExtremaAggregator
	engine  render.Engine
	metrics *metrics.Metrics
	logger  zerolog.Logger
	group   singleflight.Group

	artifactName *regexp.Regexp
}

// New creates the cache directory if needed.
func New(opts Options, series SeriesFetcher, agg ExtremaAggregator, engine render.Engine,
	m *metrics.Metrics, logger zerolog.Logger) (*Cache, error) {
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	if opts.Format.Name == "" {
		opts.Format = render.FormatCanvas
	}
	if err := os.MkdirAll(opts.Dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Cache{
		opts:         opts,
		series:       series,
		extrema:      agg,
		engine:       engine,
		metrics:      m,
		logger:       logger,
		artifactName: artifactPattern(opts.Format.Extension),
	}, nil
}

// Format returns the artifact format produced by the cache.
func (c *Cache) Format() render.Format {
	return c.opts.Format
}

// Path returns where the artifact for key lives.
func (c *Cache) Path(key Key) string {
	return filepath.Join(c.opts.Dir, key.FileName(c.opts.Format.Extension))
}

// GetOrRender returns the artifact of mount for w, rendering it on a miss.
// It fails with NoData when the window holds no samples and with
// RenderFailure when the engine fails; no partial artifact is left behind.
func (c *Cache) GetOrRender(ctx context.Context, mount string, w window.Window) (*Artifact, error) {
	key := NewKey(mount, w)
	path := c.Path(key)

	if artifact, ok := c.lookup(key, path); ok {
		c.metrics.CacheHit()
		c.logger.Info().Str("artifact", path).Msg("Use cache")
		return artifact, nil
	}

	c.metrics.CacheMiss()
	c.logger.Info().Str("artifact", path).Msg("Gen cache")

	if !c.opts.Coalesce {
		return c.render(ctx, key, w, path)
	}

	// The shared render outlives the caller that started it.
	detached := context.WithoutCancel(ctx)
	result, err, shared := c.group.Do(path, func() (interface{}, error) {
		return c.render(detached, key, w, path)
	})
	if shared {
		c.metrics.Coalesced()
	}
	if err != nil {
		return nil, err
	}
	artifact := *result.(*Artifact)
	return &artifact, nil
}

func (c *Cache) lookup(key Key, path string) (*Artifact, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return &Artifact{
		Key:         key,
		Path:        path,
		ContentType: c.opts.Format.ContentType,
		Size:        info.Size(),
		Hit:         true,
	}, true
}

func (c *Cache) render(ctx context.Context, key Key, w window.Window, path string) (*Artifact, error) {
	started := time.Now()

	artifact, err := c.produce(ctx, key, w, path)
	switch {
	case err == nil:
		c.metrics.Rendered(metrics.ResultOK, time.Since(started))
		c.logger.Info().
			Str("artifact", path).
			Str("size", humanize.Bytes(uint64(artifact.Size))). //nolint:gosec // size is non-negative
			Dur("elapsed", time.Since(started)).
			Msg("Artifact rendered")
	case errors.Is(err, fault.ErrNoData):
		c.metrics.Rendered(metrics.ResultNoData, time.Since(started))
		c.logger.Warn().Str("mount", key.Mount).Int64("start", w.Start).Int64("stop", w.Stop).Msg("No data in window")
	default:
		c.metrics.Rendered(metrics.ResultFailure, time.Since(started))
		c.logger.Error().Err(err).Str("artifact", path).Msg("Render failed")
	}
	return artifact, err
}

func (c *Cache) produce(ctx context.Context, key Key, w window.Window, path string) (*Artifact, error) {
	samples, err := c.series.Fetch(ctx, key.Mount, w)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s between %d and %d", fault.ErrNoData, key.Mount, w.Start, w.Stop)
	}

	rows, err := c.extrema.Top(ctx, key.Mount, w, extrema.Min, 0)
	if err != nil {
		return nil, err
	}

	spec := plot.Plan(key.Mount, samples, rows)
	files, err := plot.WriteData(spec, c.opts.Dir)
	if err != nil {
		return nil, &fault.RenderError{Err: fmt.Errorf("failed to write plot data: %w", err)}
	}
	defer files.Remove()

	program, err := plot.Program(spec, files)
	if errors.Is(err, plot.ErrEmptyPlot) {
		return nil, fmt.Errorf("%w: %s has no plottable samples", fault.ErrNoData, key.Mount)
	}
	if err != nil {
		return nil, &fault.RenderError{Err: fmt.Errorf("failed to build plot program: %w", err)}
	}

	return c.renderAtomically(ctx, key, path, program)
}

// renderAtomically lets the engine write a temporary file next to path and
// renames it into place only after a successful, non-empty render.
func (c *Cache) renderAtomically(ctx context.Context, key Key, path, program string) (*Artifact, error) {
	tmp, err := os.CreateTemp(c.opts.Dir, tempPattern)
	if err != nil {
		return nil, &fault.RenderError{Err: fmt.Errorf("failed to create temporary artifact: %w", err)}
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	committed := false
	defer func() {
		if !committed {
			if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
				c.logger.Error().Err(err).Str("temp_path", tmpPath).Msg("Failed to remove temporary artifact")
			}
		}
	}()

	directives := render.Directives(tmpPath, c.opts.Format.Terminal(c.opts.Terminal), program)
	// A started render always runs to completion.
	if err := c.engine.Render(context.WithoutCancel(ctx), directives); err != nil {
		if errors.Is(err, fault.ErrRenderFailure) {
			return nil, err
		}
		return nil, &fault.RenderError{Err: err}
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return nil, &fault.RenderError{Err: err}
	}
	if info.Size() == 0 {
		return nil, &fault.RenderError{Diagnostic: emptyArtifact, Err: errors.New("no artifact")}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return nil, &fault.RenderError{Err: fmt.Errorf("failed to publish artifact: %w", err)}
	}
	committed = true

	return &Artifact{
		Key:         key,
		Path:        path,
		ContentType: c.opts.Format.ContentType,
		Size:        info.Size(),
	}, nil
}

// Prune removes artifacts and abandoned temporary files older than maxAge
// and returns how many were removed. A non-positive maxAge removes nothing.
func (c *Cache) Prune(maxAge time.Duration, now time.Time) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(c.opts.Dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache directory: %w", err)
	}

	removed := 0
	var freed uint64
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !c.owned(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		path := filepath.Join(c.opts.Dir, entry.Name())
		if err := os.Remove(path); err != nil {
			c.logger.Warn().Err(err).Str("artifact", path).Msg("Failed to prune artifact")
			continue
		}
		removed++
		freed += uint64(info.Size()) //nolint:gosec // file sizes are non-negative
	}

	c.metrics.Pruned(removed)
	if removed > 0 {
		c.logger.Info().Int("removed", removed).Str("freed", humanize.Bytes(freed)).Msg("Cache pruned")
	}
	return removed, nil
}

// artifactPattern matches the names Key.FileName produces for ext.
func artifactPattern(ext string) *regexp.Regexp {
	return regexp.MustCompile(`^.+-0b[01]+-[0-9]+\.` + regexp.QuoteMeta(ext) + `$`)
}

// owned reports whether name is an artifact or temporary file of this cache.
func (c *Cache) owned(name string) bool {
	if ok, _ := filepath.Match(tempPattern, name); ok {
		return true
	}
	return c.artifactName.MatchString(name)
}
