package sink

import (
	"context"
	"log"
	"sync"
)

// Memory keeps the last observed state per entity in memory. It backs
// dry runs (no hub configured) and the publisher/runner tests.
type Memory struct {
	mu       sync.Mutex
	verbose  bool
	device   Device
	declared map[string]Entity
	states   map[string]Value
}

var _ Sink = (*Memory)(nil)

// NewMemory returns an empty in-memory sink. With verbose set it logs
// every published state, which is what the "none" sink shows.
func NewMemory(verbose bool) *Memory {
	return &Memory{
		verbose:  verbose,
		declared: map[string]Entity{},
		states:   map[string]Value{},
	}
}

func (m *Memory) Declare(ctx context.Context, device Device, entities []Entity) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.device = device
	for _, e := range entities {
		m.declared[e.EntityID] = e
	}
	return nil
}

func (m *Memory) Publish(ctx context.Context, entityID string, v Value) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[entityID] = v
	if m.verbose {
		if v.Available {
			log.Printf("sink: %s = %v", entityID, v.State)
		} else {
			log.Printf("sink: %s = unavailable", entityID)
		}
	}
	return nil
}

func (m *Memory) Close() {}

// State returns the last published value for the entity.
func (m *Memory) State(entityID string) (Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.states[entityID]
	return v, ok
}

// Declared returns the declared metadata for the entity.
func (m *Memory) Declared(entityID string) (Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.declared[entityID]
	return e, ok
}

// DeclaredCount returns the number of distinct entities ever declared.
func (m *Memory) DeclaredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.declared)
}
