package speaker_test

import (
	"context"
	"testing"

	"github.com/acdevs/talking-actors/internal/actor"
	"github.com/acdevs/talking-actors/internal/speaker"
)

type stubSettings struct {
	narratorID string
}

func (s *stubSettings) NarratorActorID() string { return s.narratorID }

// stubProvider is a context provider with a fixed opinion.
type stubProvider struct {
	name    string
	opinion *speaker.Opinion
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) ActiveSpeaker(context.Context) *speaker.Opinion {
	return p.opinion
}

func seededRegistry(t *testing.T) *actor.MemStore {
	t.Helper()
	registry := actor.NewMemStore()
	for _, a := range []actor.Actor{
		{ID: "elara", Name: "Elara"},
		{ID: "brutus", Name: "Brutus"},
		{ID: "narrator", Name: "Narrator"},
	} {
		if _, err := registry.Upsert(context.Background(), a); err != nil {
			t.Fatalf("seeding registry: %v", err)
		}
	}
	return registry
}

func TestResolveExplicitReference(t *testing.T) {
	t.Parallel()

	registry := seededRegistry(t)
	r := speaker.New(registry, &stubSettings{narratorID: "narrator"})

	tests := []struct {
		name     string
		actorRef string
		wantID   string
	}{
		{"by id", "elara", "elara"},
		{"by name", "Brutus", "brutus"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			spk := r.Resolve(context.Background(), tc.actorRef, "")
			if spk == nil {
				t.Fatalf("Resolve(%q) = nil", tc.actorRef)
			}
			if spk.Actor.ID != tc.wantID {
				t.Errorf("resolved actor = %q, want %q", spk.Actor.ID, tc.wantID)
			}
			if spk.IsNarrator {
				t.Error("explicitly referenced actor must not be the narrator")
			}
		})
	}
}

func TestResolveUnknownReferenceFallsThrough(t *testing.T) {
	t.Parallel()

	registry := seededRegistry(t)
	provider := &stubProvider{
		name:    "stub",
		opinion: &speaker.Opinion{Actor: actor.Actor{ID: "elara", Name: "Elara"}},
	}
	r := speaker.New(registry, &stubSettings{narratorID: "narrator"}, provider)

	// A reference that matches nothing degrades to the provider tier
	// instead of aborting.
	spk := r.Resolve(context.Background(), "nobody", "")
	if spk == nil || spk.Actor.ID != "elara" {
		t.Fatalf("Resolve = %+v, want the provider's Elara", spk)
	}
}

func TestResolveProviderPriority(t *testing.T) {
	t.Parallel()

	registry := seededRegistry(t)
	first := &stubProvider{name: "first", opinion: nil}
	second := &stubProvider{
		name:    "second",
		opinion: &speaker.Opinion{Actor: actor.Actor{ID: "brutus", Name: "Brutus"}, AliasOverride: "The Stranger"},
	}
	r := speaker.New(registry, &stubSettings{narratorID: "narrator"}, first, second)

	spk := r.Resolve(context.Background(), "", "")
	if spk == nil || spk.Actor.ID != "brutus" {
		t.Fatalf("Resolve = %+v, want Brutus from the second provider", spk)
	}
	if spk.AliasOverride != "The Stranger" {
		t.Errorf("alias override = %q, want The Stranger", spk.AliasOverride)
	}
}

func TestResolvePriorSpeaker(t *testing.T) {
	t.Parallel()

	registry := seededRegistry(t)
	r := speaker.New(registry, &stubSettings{narratorID: "narrator"})

	spk := r.Resolve(context.Background(), "", "elara")
	if spk == nil || spk.Actor.ID != "elara" {
		t.Fatalf("Resolve = %+v, want the prior chat speaker", spk)
	}
}

func TestResolveNarratorFallback(t *testing.T) {
	t.Parallel()

	registry := seededRegistry(t)
	r := speaker.New(registry, &stubSettings{narratorID: "narrator"})

	spk := r.Resolve(context.Background(), "", "")
	if spk == nil || spk.Actor.ID != "narrator" {
		t.Fatalf("Resolve = %+v, want the narrator", spk)
	}
	if !spk.IsNarrator {
		t.Error("narrator fallback must be marked as narrator")
	}
}

func TestResolveNothing(t *testing.T) {
	t.Parallel()

	registry := seededRegistry(t)

	tests := []struct {
		name       string
		narratorID string
	}{
		{"no narrator configured", ""},
		{"narrator id unknown", "ghost"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := speaker.New(registry, &stubSettings{narratorID: tc.narratorID})
			if spk := r.Resolve(context.Background(), "", ""); spk != nil {
				t.Errorf("Resolve = %+v, want nil", spk)
			}
		})
	}
}

func TestNameRevealed(t *testing.T) {
	t.Parallel()

	registry := seededRegistry(t)
	tracker := speaker.NewSceneTracker(registry)
	r := speaker.New(registry, &stubSettings{narratorID: "narrator"}, tracker)

	elara := actor.Actor{ID: "elara", Name: "Elara"}

	// Untracked actors default to revealed.
	if !r.NameRevealed(context.Background(), elara) {
		t.Error("untracked actor should be revealed by default")
	}

	tracker.Update(true, "elara", []speaker.SceneMember{{ActorID: "elara", NameRevealed: false}})
	if r.NameRevealed(context.Background(), elara) {
		t.Error("focused unrevealed actor should not be revealed")
	}

	tracker.Update(true, "elara", []speaker.SceneMember{{ActorID: "elara", NameRevealed: true}})
	if !r.NameRevealed(context.Background(), elara) {
		t.Error("focused revealed actor should be revealed")
	}

	// Hiding the overlay stops tracking entirely.
	tracker.Update(false, "elara", []speaker.SceneMember{{ActorID: "elara", NameRevealed: false}})
	if !r.NameRevealed(context.Background(), elara) {
		t.Error("actor should fall back to revealed once the overlay is hidden")
	}
}
