package samplestore

import (
	"context"
	"sort"
	"sync"

	"dfchart/pkg/extrema"
	"dfchart/pkg/models"
)

// MemoryStore keeps samples in process. It applies the same membership and
// grouping rules as the SQLite store.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []models.Sample
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Add stores samples. A zero ID is assigned the next free id.
func (m *MemoryStore) Add(samples ...models.Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sample := range samples {
		if sample.ID == 0 {
			sample.ID = m.nextID
		}
		if sample.ID >= m.nextID {
			m.nextID = sample.ID + 1
		}
		if sample.RenewStamp < sample.BeginStamp {
			sample.RenewStamp = sample.BeginStamp
		}
		m.samples = append(m.samples, sample)
	}
	sort.SliceStable(m.samples, func(i, j int) bool { return m.samples[i].ID < m.samples[j].ID })
}

// Series returns the samples for name overlapping [start, stop] in id order.
func (m *MemoryStore) Series(_ context.Context, name string, start, stop int64) ([]models.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Sample
	for _, sample := range m.samples {
		if sample.Name == name && sample.Overlaps(start, stop) {
			result = append(result, sample)
		}
	}
	return result, nil
}

// Extrema runs the grouped min/max selection described by q.
func (m *MemoryStore) Extrema(_ context.Context, q extrema.Query) ([]models.ExtremaRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return extrema.Rank(m.samples, q), nil
}

// Mounts lists the distinct mount names that have samples.
func (m *MemoryStore) Mounts(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, sample := range m.samples {
		if _, ok := seen[sample.Name]; !ok {
			seen[sample.Name] = struct{}{}
			names = append(names, sample.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
