// Package actor provides the speaker-entity model and registry for the
// Talking Actors server.
//
// Actors are owned by the host platform; the server keeps a synchronised
// mirror of the roster (fed by gateway events) so the resolver can look
// speakers up by id or name. Voice bindings live in the actor's flags and
// are interpreted by the TTS connector, never by this package.
//
// All store operations are safe for concurrent use.
package actor

import (
	"context"
	"errors"
)

// Sentinel errors shared by all [Registry] implementations.
var (
	// ErrNotFound is returned when no actor matches the requested id or name.
	ErrNotFound = errors.New("actor: not found")
)

// Actor is a speaker entity mirrored from the host's actor registry.
type Actor struct {
	// ID is the host-assigned entity id.
	ID string `json:"id" yaml:"id"`

	// Name is the display name players see.
	Name string `json:"name" yaml:"name"`

	// Flags holds module-scoped key/value metadata, including the voice
	// binding flags read by the TTS connector.
	Flags map[string]string `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// ActorID returns the actor's id. Satisfies the TTS connector's actor view.
func (a *Actor) ActorID() string { return a.ID }

// ActorName returns the actor's display name.
func (a *Actor) ActorName() string { return a.Name }

// Flag returns the value stored under key and whether it was set.
func (a *Actor) Flag(key string) (string, bool) {
	if a.Flags == nil {
		return "", false
	}
	v, ok := a.Flags[key]
	return v, ok
}

// SetFlag stores value under key, allocating the flag map if needed.
func (a *Actor) SetFlag(key, value string) {
	if a.Flags == nil {
		a.Flags = make(map[string]string, 1)
	}
	a.Flags[key] = value
}

// Clone returns a deep copy of a. Stores hand out clones so callers can
// mutate transient copies without racing the registry.
func (a Actor) Clone() Actor {
	if a.Flags == nil {
		return a
	}
	flags := make(map[string]string, len(a.Flags))
	for k, v := range a.Flags {
		flags[k] = v
	}
	a.Flags = flags
	return a
}

// Registry is the actor lookup and mirroring surface.
type Registry interface {
	// FindByID returns the actor with the given id.
	// Returns [ErrNotFound] when no such actor exists.
	FindByID(ctx context.Context, id string) (Actor, error)

	// FindByName returns the first actor with an exactly matching name.
	// Returns [ErrNotFound] when no such actor exists.
	FindByName(ctx context.Context, name string) (Actor, error)

	// Upsert inserts or replaces an actor. An empty ID is assigned one.
	// Returns the stored actor.
	Upsert(ctx context.Context, a Actor) (Actor, error)

	// Remove deletes the actor with the given id.
	// Returns [ErrNotFound] when no such actor exists.
	Remove(ctx context.Context, id string) error

	// List returns all known actors in unspecified order.
	List(ctx context.Context) ([]Actor, error)
}
