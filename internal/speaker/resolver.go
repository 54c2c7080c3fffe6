package speaker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/acdevs/talking-actors/internal/actor"
)

// Settings is the slice of live configuration the resolver needs.
type Settings interface {
	// NarratorActorID returns the id of the designated narrator actor, or
	// "" when none is configured.
	NarratorActorID() string
}

// Resolver resolves the speaking entity for one chat message.
//
// Resolver holds only read-only references to host-provided registries; it
// never mutates actor records and needs no locking of its own.
type Resolver struct {
	registry  actor.Registry
	settings  Settings
	providers []ContextProvider
}

// New creates a Resolver. providers are consulted in the given order; pass
// none to resolve from chat context and narrator alone.
func New(registry actor.Registry, settings Settings, providers ...ContextProvider) *Resolver {
	return &Resolver{
		registry:  registry,
		settings:  settings,
		providers: providers,
	}
}

// Resolve determines the speaker for a message.
//
// Order, first match wins: the explicit actorRef (by id, then by exact
// name), the context providers in priority order, the ambient chat
// speaker priorActorID, and finally the narrator actor. An explicit
// reference that does not resolve degrades to the next tier instead of
// failing. Returns nil when nothing resolves and no narrator is
// configured.
func (r *Resolver) Resolve(ctx context.Context, actorRef, priorActorID string) *Speaker {
	if actorRef != "" {
		if a, ok := r.lookupRef(ctx, actorRef); ok {
			return &Speaker{Actor: a}
		}
		slog.Warn("speaker: explicit actor reference did not resolve", "ref", actorRef)
	}

	if op := r.activeOpinion(ctx); op != nil {
		return &Speaker{Actor: op.Actor, AliasOverride: op.AliasOverride}
	}

	if priorActorID != "" {
		if a, err := r.registry.FindByID(ctx, priorActorID); err == nil {
			return &Speaker{Actor: a}
		} else if !errors.Is(err, actor.ErrNotFound) {
			slog.Warn("speaker: chat context actor lookup failed", "id", priorActorID, "err", err)
		}
	}

	return r.Narrator(ctx)
}

// Narrator returns the configured narrator actor marked as narrator, or nil
// when no narrator is configured or the configured id is unknown.
func (r *Resolver) Narrator(ctx context.Context) *Speaker {
	id := r.settings.NarratorActorID()
	if id == "" {
		return nil
	}
	a, err := r.registry.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, actor.ErrNotFound) {
			slog.Warn("speaker: narrator lookup failed", "id", id, "err", err)
		}
		return nil
	}
	return &Speaker{Actor: a, IsNarrator: true}
}

// NameRevealed reports whether a's identity may be shown to players.
// True by default; false only when a provider currently tracks a and has
// explicitly marked it as not yet revealed.
func (r *Resolver) NameRevealed(ctx context.Context, a actor.Actor) bool {
	for _, p := range r.providers {
		rs, ok := p.(RevealStater)
		if !ok {
			continue
		}
		if revealed, tracking := rs.RevealState(a.ID); tracking {
			return revealed
		}
	}
	return true
}

// lookupRef resolves an explicit actor reference by id, then by exact name.
func (r *Resolver) lookupRef(ctx context.Context, ref string) (actor.Actor, bool) {
	if a, err := r.registry.FindByID(ctx, ref); err == nil {
		return a, true
	} else if !errors.Is(err, actor.ErrNotFound) {
		slog.Warn("speaker: actor lookup by id failed", "ref", ref, "err", err)
	}
	if a, err := r.registry.FindByName(ctx, ref); err == nil {
		return a, true
	} else if !errors.Is(err, actor.ErrNotFound) {
		slog.Warn("speaker: actor lookup by name failed", "ref", ref, "err", err)
	}
	return actor.Actor{}, false
}

// activeOpinion returns the first provider opinion, in priority order.
func (r *Resolver) activeOpinion(ctx context.Context) *Opinion {
	for _, p := range r.providers {
		if op := p.ActiveSpeaker(ctx); op != nil {
			slog.Debug("speaker: provider has an opinion", "provider", p.Name(), "actor", op.Actor.Name)
			return op
		}
	}
	return nil
}
