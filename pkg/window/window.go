// Package window turns loose caller input into a bounded chart window.
package window

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dfchart/pkg/fault"
)

const (
	// DefaultDelta is the half-width used when the caller gives none.
	DefaultDelta = 1800

	// MaxDelta bounds the half-width so no window spans 24 hours.
	MaxDelta = 43200

	// fineStepMaxDelta is the widest half-width still sampled at step 1.
	fineStepMaxDelta = 3600

	fineStep   = 1
	coarseStep = 3
)

// pivotLayouts are the accepted date-time profiles, tried in order.
var pivotLayouts = []string{
	"2006-01-02T15:04:05MST",
	time.RFC3339,
}

// Window is a resolved [Start, Stop] range around Pivot, in epoch seconds.
// Step is an advisory sampling stride for point thinning.
type Window struct {
	Pivot int64 `json:"pivot"`
	Delta int64 `json:"delta"`
	Start int64 `json:"start"`
	Stop  int64 `json:"stop"`
	Step  int   `json:"step"`
}

// Width returns Stop - Start.
func (w Window) Width() int64 {
	return w.Stop - w.Start
}

// Resolver derives windows. The zero value uses the wall clock.
type Resolver struct {
	now func() time.Time
}

// NewResolver creates a resolver reading the current time from now.
// A nil clock means time.Now.
func NewResolver(now func() time.Time) *Resolver {
	return &Resolver{now: now}
}

func (r *Resolver) clock() time.Time {
	if r == nil || r.now == nil {
		return time.Now()
	}
	return r.now()
}

// Resolve builds a window from pivotInput and delta seconds. An empty pivot
// means now - delta, so the window ends at the current time.
func (r *Resolver) Resolve(pivotInput string, delta int64) (Window, error) {
	if delta >= MaxDelta {
		return Window{}, fmt.Errorf("%w: delta %d must be below %d", fault.ErrInvalidWindow, delta, MaxDelta)
	}

	var pivot int64
	if strings.TrimSpace(pivotInput) == "" {
		pivot = r.clock().Unix() - delta
	} else {
		parsed, err := ParsePivot(pivotInput)
		if err != nil {
			return Window{}, err
		}
		pivot = parsed
	}

	return New(pivot, delta)
}

// New validates a window around an already parsed pivot.
func New(pivot, delta int64) (Window, error) {
	if delta >= MaxDelta {
		return Window{}, fmt.Errorf("%w: delta %d must be below %d", fault.ErrInvalidWindow, delta, MaxDelta)
	}

	w := Window{
		Pivot: pivot,
		Delta: delta,
		Start: pivot - delta,
		Stop:  pivot + delta,
		Step:  StepFor(delta),
	}
	if w.Start <= 0 || w.Start >= w.Stop {
		return Window{}, fmt.Errorf("%w: start %d and stop %d must satisfy 0 < start < stop",
			fault.ErrInvalidWindow, w.Start, w.Stop)
	}
	return w, nil
}

// StepFor returns the sampling stride for a half-width.
func StepFor(delta int64) int {
	if delta <= fineStepMaxDelta {
		return fineStep
	}
	return coarseStep
}

// ParsePivot reads epoch seconds (fraction truncated) or a date-time.
func ParsePivot(input string) (int64, error) {
	input = strings.TrimSpace(input)

	if seconds, err := strconv.ParseFloat(input, 64); err == nil {
		if math.IsNaN(seconds) || math.IsInf(seconds, 0) ||
			seconds > math.MaxInt64 || seconds < math.MinInt64 {
			return 0, fmt.Errorf("%w: pivot %q is not a finite timestamp", fault.ErrInvalidWindow, input)
		}
		return int64(seconds), nil
	}

	for _, layout := range pivotLayouts {
		if t, err := time.Parse(layout, input); err == nil {
			return t.Unix(), nil
		}
	}

	return 0, fmt.Errorf("%w: cannot parse pivot %q", fault.ErrInvalidWindow, input)
}

// ParseDelta reads a half-width; an empty input yields DefaultDelta.
func ParseDelta(input string) (int64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return DefaultDelta, nil
	}
	delta, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: delta %q is not an integer", fault.ErrInvalidWindow, input)
	}
	return delta, nil
}
