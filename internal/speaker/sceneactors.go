package speaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/acdevs/talking-actors/internal/actor"
)

// Compile-time interface checks.
var (
	_ ContextProvider = (*SceneTracker)(nil)
	_ RevealStater    = (*SceneTracker)(nil)
)

// SceneMember is one actor tracked on the current scene overlay.
type SceneMember struct {
	// ActorID is the tracked actor's id.
	ActorID string `json:"actorId"`

	// NameRevealed reports whether the actor's identity has been revealed
	// to players. Unrevealed speakers are voiced but shown under a generic
	// alias.
	NameRevealed bool `json:"nameRevealed"`
}

// SceneTracker mirrors the host's scene-actor overlay: a set of tracked
// actors, one of which may hold speaking focus. It reports the focused
// actor as the current speaker while the overlay is shown, and answers
// reveal queries for tracked actors.
//
// State is fed by gateway events; all methods are safe for concurrent use.
type SceneTracker struct {
	registry actor.Registry

	mu      sync.RWMutex
	visible bool
	focusID string
	members map[string]bool // actor id → name revealed
}

// NewSceneTracker creates an inactive tracker that resolves actor ids
// through registry.
func NewSceneTracker(registry actor.Registry) *SceneTracker {
	return &SceneTracker{
		registry: registry,
		members:  make(map[string]bool),
	}
}

// Name implements [ContextProvider.Name].
func (t *SceneTracker) Name() string { return "scene-actors" }

// Update replaces the tracker state in one call.
func (t *SceneTracker) Update(visible bool, focusID string, members []SceneMember) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = visible
	t.focusID = focusID
	t.members = make(map[string]bool, len(members))
	for _, m := range members {
		t.members[m.ActorID] = m.NameRevealed
	}
}

// ActiveSpeaker implements [ContextProvider.ActiveSpeaker]. It reports the
// focused tracked actor while the overlay is visible, and no opinion
// otherwise.
func (t *SceneTracker) ActiveSpeaker(ctx context.Context) *Opinion {
	t.mu.RLock()
	visible := t.visible
	focusID := t.focusID
	_, tracked := t.members[focusID]
	t.mu.RUnlock()

	if !visible || focusID == "" || !tracked {
		return nil
	}

	a, err := t.registry.FindByID(ctx, focusID)
	if err != nil {
		if !errors.Is(err, actor.ErrNotFound) {
			slog.Warn("speaker: scene focus lookup failed", "id", focusID, "err", err)
		}
		return nil
	}
	return &Opinion{Actor: a}
}

// RevealState implements [RevealStater]. An actor is "tracking" only while
// the overlay is visible and it currently holds focus, matching the host
// overlay's behaviour of hiding names only for the focused speaker.
func (t *SceneTracker) RevealState(actorID string) (revealed, tracking bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.visible || t.focusID == "" || t.focusID != actorID {
		return false, false
	}
	r, ok := t.members[actorID]
	if !ok {
		return false, false
	}
	return r, true
}
