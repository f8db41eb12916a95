// Package extrema selects the samples holding the lowest (or highest)
// available space inside a window.
package extrema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"dfchart/pkg/fault"
	"dfchart/pkg/models"
	"dfchart/pkg/window"
)

// Mode chooses the per-group aggregate of fs_avail.
type Mode string

const (
	Min Mode = "min"
	Max Mode = "max"
)

const (
	// MaxLimit is the exclusive upper bound for a caller supplied limit.
	MaxLimit = 30

	narrowWindowDelta = 60
	mediumWindowDelta = 1800

	narrowLimit  = 5
	mediumLimit  = 7
	defaultLimit = 10
)

// Query selects at most Limit groups of samples for Name overlapping [Start, Stop].
type Query struct {
	Name  string
	Start int64
	Stop  int64
	Mode  Mode
	Limit int
}

// Source runs an extrema query against stored samples.
type Source interface {
	Extrema(ctx context.Context, q Query) ([]models.ExtremaRow, error)
}

// ParseMode accepts "min" or "max" in any case. Empty means min.
func ParseMode(input string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(input))) {
	case "", Min:
		return Min, nil
	case Max:
		return Max, nil
	default:
		return "", fmt.Errorf("%w: aggregate %q is neither min nor max", fault.ErrInvalidParameter, input)
	}
}

// DefaultLimit returns the row count used when the caller gives none.
func DefaultLimit(delta int64) int {
	switch {
	case delta <= narrowWindowDelta:
		return narrowLimit
	case delta <= mediumWindowDelta:
		return mediumLimit
	default:
		return defaultLimit
	}
}

// ValidateLimit enforces 0 < limit < MaxLimit.
func ValidateLimit(limit int) error {
	if limit <= 0 || limit >= MaxLimit {
		return fmt.Errorf("%w: limit %d must be in (0, %d)", fault.ErrInvalidParameter, limit, MaxLimit)
	}
	return nil
}

// Aggregator validates extrema requests and forwards them to a Source.
type Aggregator struct {
	source Source
	logger zerolog.Logger
}

// NewAggregator creates an aggregator reading from source.
func NewAggregator(source Source, logger zerolog.Logger) *Aggregator {
	return &Aggregator{source: source, logger: logger}
}

// Top returns the selected rows ordered by id. A zero limit picks the
// default for the window's delta.
func (a *Aggregator) Top(ctx context.Context, name string, w window.Window, mode Mode, limit int) ([]models.ExtremaRow, error) {
	if mode != Min && mode != Max {
		return nil, fmt.Errorf("%w: aggregate %q is neither min nor max", fault.ErrInvalidParameter, mode)
	}
	if limit == 0 {
		limit = DefaultLimit(w.Delta)
	}
	if err := ValidateLimit(limit); err != nil {
		return nil, err
	}

	rows, err := a.source.Extrema(ctx, Query{
		Name:  name,
		Start: w.Start,
		Stop:  w.Stop,
		Mode:  mode,
		Limit: limit,
	})
	if err != nil {
		a.logger.Error().Err(err).Str("mount", name).Msg("Extrema query failed")
		if errors.Is(err, fault.ErrStore) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}

	a.logger.Debug().
		Str("mount", name).
		Str("mode", string(mode)).
		Int("limit", limit).
		Int("rows", len(rows)).
		Msg("Extrema selected")
	return rows, nil
}

type group struct {
	id         int64
	beginStamp int64
	fsTotal    float64
	aggregate  float64
}

// Rank applies the extrema selection to in-memory samples: samples for
// q.Name overlapping the window are grouped by id, each group is reduced to
// the min (or max) of fs_avail, groups are ranked by that value (ascending
// for min, descending for max, ties by id), the first q.Limit are kept and
// returned in id order. Samples with a zero fs_total are skipped.
func Rank(samples []models.Sample, q Query) []models.ExtremaRow {
	groups := make(map[int64]*group)
	for _, sample := range samples {
		if sample.Name != q.Name || sample.FsTotal == 0 || !sample.Overlaps(q.Start, q.Stop) {
			continue
		}
		g, ok := groups[sample.ID]
		if !ok {
			groups[sample.ID] = &group{
				id:         sample.ID,
				beginStamp: sample.BeginStamp,
				fsTotal:    sample.FsTotal,
				aggregate:  sample.FsAvail,
			}
			continue
		}
		if better(q.Mode, sample.FsAvail, g.aggregate) {
			g.beginStamp = sample.BeginStamp
			g.fsTotal = sample.FsTotal
			g.aggregate = sample.FsAvail
		}
	}

	ranked := make([]*group, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].aggregate != ranked[j].aggregate {
			return better(q.Mode, ranked[i].aggregate, ranked[j].aggregate)
		}
		return ranked[i].id < ranked[j].id
	})

	if q.Limit >= 0 && len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].id < ranked[j].id })

	rows := make([]models.ExtremaRow, 0, len(ranked))
	for i, g := range ranked {
		rows = append(rows, models.NewExtremaRow(g.id, g.beginStamp, g.fsTotal, g.aggregate, i+1))
	}
	return rows
}

func better(mode Mode, a, b float64) bool {
	if mode == Max {
		return a > b
	}
	return a < b
}
