package speaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/acdevs/talking-actors/internal/actor"
)

// Compile-time interface check.
var _ ContextProvider = (*ConversationTracker)(nil)

// ConversationTracker mirrors the host's conversation overlay: an ordered
// list of participant names with at most one active participant. While the
// GM is "speaking as" the active participant, the tracker reports that
// participant's actor as the current speaker.
//
// State is fed by gateway events and may change between messages; all
// methods are safe for concurrent use.
type ConversationTracker struct {
	registry actor.Registry

	mu           sync.RWMutex
	speakingAs   bool
	participants []string
	activeIdx    int
}

// NewConversationTracker creates an inactive tracker that resolves
// participant names through registry.
func NewConversationTracker(registry actor.Registry) *ConversationTracker {
	return &ConversationTracker{
		registry:  registry,
		activeIdx: -1,
	}
}

// Name implements [ContextProvider.Name].
func (t *ConversationTracker) Name() string { return "conversation" }

// Update replaces the tracker state in one call: the participant name list,
// the index of the active participant (-1 for none), and whether the GM is
// speaking as that participant.
func (t *ConversationTracker) Update(participants []string, activeIdx int, speakingAs bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.participants = append([]string(nil), participants...)
	t.activeIdx = activeIdx
	t.speakingAs = speakingAs
}

// Clear ends the conversation; the tracker reports no opinion afterwards.
func (t *ConversationTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.participants = nil
	t.activeIdx = -1
	t.speakingAs = false
}

// ActiveSpeaker implements [ContextProvider.ActiveSpeaker]. It reports the
// active participant's actor while speaking-as is engaged, and no opinion
// otherwise or when the participant name matches no known actor.
func (t *ConversationTracker) ActiveSpeaker(ctx context.Context) *Opinion {
	t.mu.RLock()
	speakingAs := t.speakingAs
	idx := t.activeIdx
	var name string
	if idx >= 0 && idx < len(t.participants) {
		name = t.participants[idx]
	}
	t.mu.RUnlock()

	if !speakingAs || name == "" {
		return nil
	}

	a, err := t.registry.FindByName(ctx, name)
	if err != nil {
		if !errors.Is(err, actor.ErrNotFound) {
			slog.Warn("speaker: conversation participant lookup failed", "name", name, "err", err)
		}
		return nil
	}
	return &Opinion{Actor: a}
}
