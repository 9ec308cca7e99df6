// Package cache provides the invalidation sink the calculation engine
// notifies whenever derived data of an entity changed. The engine never
// relies on the sink for correctness, consumers use it to drop stale
// representations.
package cache

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Invalidator receives the entities whose derived data changed.
type Invalidator interface {
	Invalidate(entity string, ids []uuid.UUID)
}

// Noop drops all invalidations.
type Noop struct{}

func (Noop) Invalidate(string, []uuid.UUID) {}

var invalidationCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "budget_cache_invalidations_total",
		Help: "How many cache invalidations the calculation engine emitted, partitioned by entity type.",
	},
	[]string{"entity"},
)

// RegisterMetrics registers the invalidation counter with the default
// Prometheus registry.
func RegisterMetrics() error {
	return prometheus.Register(invalidationCount)
}

// UnregisterMetrics unregisters the invalidation counter.
//
// This is needed to cleanly exit.
func UnregisterMetrics() bool {
	return prometheus.Unregister(invalidationCount)
}

// Memory is an in-process invalidation set. It remembers which ids were
// invalidated per entity type until they are drained, and counts every
// invalidation in Prometheus.
type Memory struct {
	mu      sync.Mutex
	entries map[string]map[uuid.UUID]struct{}
}

// NewMemory returns an empty in-process invalidation set.
func NewMemory() *Memory {
	return &Memory{
		entries: map[string]map[uuid.UUID]struct{}{},
	}
}

func (m *Memory) Invalidate(entity string, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.entries[entity]
	if !ok {
		set = map[uuid.UUID]struct{}{}
		m.entries[entity] = set
	}

	for _, id := range ids {
		set[id] = struct{}{}
	}

	invalidationCount.WithLabelValues(entity).Add(float64(len(ids)))
}

// Drain returns and clears the invalidated ids for an entity type.
func (m *Memory) Drain(entity string) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.entries[entity]
	delete(m.entries, entity)

	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}

	return ids
}
