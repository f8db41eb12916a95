// Package fault defines the failure kinds shared by the chart pipeline.
// Every error leaving the pipeline wraps exactly one of the sentinels below so
// adapters can map it to a status without inspecting messages.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWindow is returned when the pivot or delta cannot form a window.
	ErrInvalidWindow = errors.New("invalid window")

	// ErrInvalidParameter is returned for a bad aggregation mode or limit.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoData is returned when a valid window contains no samples.
	ErrNoData = errors.New("no data")

	// ErrStore is returned when reading the sample store fails.
	ErrStore = errors.New("sample store error")

	// ErrRenderFailure is returned when the rendering engine fails or produces nothing.
	ErrRenderFailure = errors.New("render failure")
)

// Kind is the stable name of a failure class.
type Kind string

const (
	KindNone             Kind = ""
	KindInvalidWindow    Kind = "InvalidWindow"
	KindInvalidParameter Kind = "InvalidParameter"
	KindNoData           Kind = "NoData"
	KindStore            Kind = "StoreError"
	KindRenderFailure    Kind = "RenderFailure"
	KindUnknown          Kind = "Unknown"
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrInvalidWindow, KindInvalidWindow},
	{ErrInvalidParameter, KindInvalidParameter},
	{ErrNoData, KindNoData},
	{ErrStore, KindStore},
	{ErrRenderFailure, KindRenderFailure},
}

// KindOf classifies err. A nil error has KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsClient reports whether err was caused by caller input.
func IsClient(err error) bool {
	switch KindOf(err) {
	case KindInvalidWindow, KindInvalidParameter, KindNoData:
		return true
	default:
		return false
	}
}

// RenderError carries the rendering engine's diagnostic output.
type RenderError struct {
	Diagnostic string
	Err        error
}

func (e *RenderError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s: %v", ErrRenderFailure, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", ErrRenderFailure, e.Err, e.Diagnostic)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *RenderError) Unwrap() []error {
	return []error{ErrRenderFailure, e.Err}
}
