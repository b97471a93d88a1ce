// Package sink exposes metric entities to a home-automation hub.
package sink

import (
	"context"
	"errors"
)

// ErrUnavailable marks a sink connectivity failure. The run's snapshot is
// discarded; the next scheduled run recomputes from scratch.
var ErrUnavailable = errors.New("sink: unavailable")

// Device is the logical device all entities are grouped under.
type Device struct {
	Identifiers  []string
	Name         string
	Manufacturer string
	Model        string
}

// Entity declares one metric's identity and metadata. Declaration is
// repeated every cycle and must be a no-op update at the hub, never an
// error.
type Entity struct {
	EntityID string // full id under the configured prefix, e.g. "sedif_daily"
	Name     string
	Unit     string // empty for text-state entities
}

// Value is one published state. Available=false publishes an explicit
// unavailable marker, distinguishable from a legitimate zero.
type Value struct {
	State      any
	Available  bool
	Attributes map[string]any
}

// Unavailable is the value published for metrics that could not be
// computed this run.
var Unavailable = Value{Available: false}

// Sink is the transport behind the publisher. Implementations must make
// both calls idempotent: publishing the same snapshot twice yields the
// same observable hub state.
type Sink interface {
	Declare(ctx context.Context, device Device, entities []Entity) error
	Publish(ctx context.Context, entityID string, v Value) error
	Close()
}
