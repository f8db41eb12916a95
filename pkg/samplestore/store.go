// Package samplestore reads filesystem samples written by the collector.
package samplestore

import (
	"context"

	"dfchart/pkg/extrema"
	"dfchart/pkg/models"
)

// Store is the read side of the sample table.
type Store interface {
	// Series returns the samples for name overlapping [start, stop] in id order.
	Series(ctx context.Context, name string, start, stop int64) ([]models.Sample, error)

	// Extrema runs the grouped min/max selection described by q.
	Extrema(ctx context.Context, q extrema.Query) ([]models.ExtremaRow, error)

	// Mounts lists the distinct mount names that have samples.
	Mounts(ctx context.Context) ([]string, error)

	// Close releases the underlying resources.
	Close() error
}
