// Package speaker resolves which entity is speaking a chat line.
//
// Resolution walks a fixed chain: an explicit actor reference from the
// command, then a priority-ordered list of optional context providers
// (conversation focus, scene-actor focus), then the ambient chat speaker,
// then the configured narrator actor. The resolver answers "who is
// speaking"; how they sound is the TTS connector's concern.
package speaker

import (
	"context"

	"github.com/acdevs/talking-actors/internal/actor"
)

// Speaker is a resolved speaking entity for one message.
type Speaker struct {
	// Actor is a transient copy of the speaking entity.
	Actor actor.Actor

	// IsNarrator marks the designated narrator fallback. Narrator messages
	// are anonymised in chat.
	IsNarrator bool

	// AliasOverride, when non-empty, replaces the actor's name as the chat
	// alias. Set by context providers that present a participant under a
	// different label.
	AliasOverride string
}

// Opinion is a context provider's report about the currently active speaker.
type Opinion struct {
	// Actor is the entity the provider believes is speaking.
	Actor actor.Actor

	// AliasOverride optionally replaces the display alias.
	AliasOverride string
}

// ContextProvider is an optional source of "who is speaking right now"
// opinions. Providers are consulted in priority order; the first one with
// an opinion wins. An inactive provider reports no opinion rather than
// being skipped by the caller.
//
// Implementations must be safe for concurrent use.
type ContextProvider interface {
	// Name identifies the provider in logs.
	Name() string

	// ActiveSpeaker returns the provider's current opinion, or nil when it
	// has none (inactive, no focus, or focus target unknown).
	ActiveSpeaker(ctx context.Context) *Opinion
}

// RevealStater is an optional capability of a [ContextProvider]: reporting
// whether it tracks a given actor and whether that actor's identity has
// been revealed to players. Used to hide a speaking character's name while
// still voicing its lines.
type RevealStater interface {
	// RevealState returns (revealed, true) when the provider tracks the
	// actor, and (_, false) otherwise.
	RevealState(actorID string) (revealed, tracking bool)
}
