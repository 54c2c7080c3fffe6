package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/acdevs/talking-actors/internal/actor"
	"github.com/acdevs/talking-actors/internal/chat"
	chatmock "github.com/acdevs/talking-actors/internal/chat/mock"
	"github.com/acdevs/talking-actors/internal/speaker"
	"github.com/acdevs/talking-actors/pkg/tts"
	ttsmock "github.com/acdevs/talking-actors/pkg/tts/mock"
)

// stubSettings satisfies both the processor and resolver settings contracts.
type stubSettings struct {
	autoInCharacter bool
	postToChat      bool
	allowUsers      bool
	narratorID      string
}

func (s *stubSettings) AutoInCharacter() bool   { return s.autoInCharacter }
func (s *stubSettings) PostToChat() bool        { return s.postToChat }
func (s *stubSettings) AllowUsers() bool        { return s.allowUsers }
func (s *stubSettings) NarratorActorID() string { return s.narratorID }

// fixture wires a processor with an in-memory registry, mock connector and
// mock sink. Actors: Elara (full voice binding), Brutus (no voice), and a
// narrator.
type fixture struct {
	processor *chat.Processor
	connector *ttsmock.Connector
	sink      *chatmock.Sink
	registry  *actor.MemStore
	settings  *stubSettings
}

func newFixture(t *testing.T, providers ...speaker.ContextProvider) *fixture {
	t.Helper()

	registry := actor.NewMemStore()
	seed := []actor.Actor{
		{ID: "elara", Name: "Elara", Flags: map[string]string{
			tts.FlagVoiceID:       "voice-elara",
			tts.FlagVoiceSettings: `{"stability":0.5}`,
		}},
		{ID: "brutus", Name: "Brutus"},
		{ID: "narrator", Name: "Narrator", Flags: map[string]string{tts.FlagVoiceID: "voice-narrator"}},
	}
	for _, a := range seed {
		if _, err := registry.Upsert(context.Background(), a); err != nil {
			t.Fatalf("seeding registry: %v", err)
		}
	}

	settings := &stubSettings{
		postToChat: true,
		allowUsers: true,
		narratorID: "narrator",
	}
	connector := &ttsmock.Connector{
		VoiceIDs:           map[string]string{"Rachel": "voice-rachel"},
		TextToSpeechResult: "item-1",
	}
	sink := &chatmock.Sink{}
	resolver := speaker.New(registry, settings, providers...)

	return &fixture{
		processor: chat.NewProcessor(connector, resolver, sink, settings),
		connector: connector,
		sink:      sink,
		registry:  registry,
		settings:  settings,
	}
}

func gmContext() *chat.Context {
	return &chat.Context{User: "gm", GM: true}
}

func TestProcessChatMessagePassthrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"not a command", "just chatting"},
		{"unknown command", "/roll 2d6"},
		{"ic while auto-in-character is off", "/ic Hello"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			if got := f.processor.ProcessChatMessage(context.Background(), tc.raw, gmContext(), true); !got {
				t.Errorf("ProcessChatMessage(%q) = false, want true (passthrough)", tc.raw)
			}
			f.processor.Wait()

			if calls := f.connector.Calls(); len(calls) != 0 {
				t.Errorf("connector was called %d times, want 0", len(calls))
			}
			if posts := f.sink.Posts(); len(posts) != 0 {
				t.Errorf("sink received %d posts, want 0", len(posts))
			}
		})
	}
}

func TestProcessChatMessageWhitespaceBodySwallowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if got := f.processor.ProcessChatMessage(context.Background(), "/talk   ", gmContext(), true); got {
		t.Error("a recognized command without content should be handled, not passed through")
	}
	f.processor.Wait()

	// Nothing to speak and nothing posted: the raw command line is dropped.
	if calls := f.connector.Calls(); len(calls) != 0 {
		t.Errorf("connector was called %d times, want 0", len(calls))
	}
	if posts := f.sink.Posts(); len(posts) != 0 {
		t.Errorf("sink received %d posts, want 0", len(posts))
	}
}

func TestProcessChatMessageSpokenByActor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk {Elara} A storm is coming", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	if cc.Speaker.ActorID != "elara" || cc.Speaker.Alias != "Elara" {
		t.Errorf("chat context speaker = %+v, want actor elara / alias Elara", cc.Speaker)
	}

	calls := f.connector.Calls()
	if len(calls) != 1 {
		t.Fatalf("synthesis calls = %d, want 1", len(calls))
	}
	if calls[0].VoiceID != "voice-elara" || calls[0].Text != "A storm is coming" {
		t.Errorf("synthesis call = %+v, want voice-elara with body", calls[0])
	}

	posts := f.sink.Posts()
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	if posts[0].Flavor != chat.FlavorTalked {
		t.Errorf("post flavor = %q, want %q", posts[0].Flavor, chat.FlavorTalked)
	}
	if !posts[0].InCharacter {
		t.Error("post should be in character for a non-narrator speaker")
	}
	if !strings.Contains(posts[0].Content, "A storm is coming") {
		t.Errorf("post content %q does not contain the body", posts[0].Content)
	}

	updates := f.sink.Updates()
	if len(updates) != 1 {
		t.Fatalf("flavor updates = %d, want 1", len(updates))
	}
	if !strings.HasPrefix(updates[0].Flavor, chat.FlavorTalked) || !strings.Contains(updates[0].Flavor, "item-1") {
		t.Errorf("patched flavor %q should keep the flavor line and carry the replay item", updates[0].Flavor)
	}
	if refreshed := f.sink.Refreshed(); len(refreshed) != 1 {
		t.Errorf("refresh calls = %d, want 1", len(refreshed))
	}
}

func TestProcessChatMessageNarrate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cc := gmContext()
	cc.Speaker = chat.SpeakerInfo{ActorID: "elara", Alias: "Elara"}

	if got := f.processor.ProcessChatMessage(context.Background(), "/narrate The door creaks open", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	if cc.Speaker.ActorID != "" || cc.Speaker.Alias != "" {
		t.Errorf("narrator message should clear speaker attribution, got %+v", cc.Speaker)
	}

	calls := f.connector.Calls()
	if len(calls) != 1 || calls[0].VoiceID != "voice-narrator" {
		t.Fatalf("synthesis calls = %+v, want one call with voice-narrator", calls)
	}

	posts := f.sink.Posts()
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	if posts[0].InCharacter {
		t.Error("narrator message must not be in character")
	}
}

func TestProcessChatMessageExplicitVoiceName(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cc := gmContext()
	cc.Speaker = chat.SpeakerInfo{ActorID: "elara", Alias: "Elara"}

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk [Rachel] Hello there", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	// An explicit voice bypasses speaker resolution entirely.
	if cc.Speaker.ActorID != "elara" || cc.Speaker.Alias != "Elara" {
		t.Errorf("explicit voice must leave speaker attribution alone, got %+v", cc.Speaker)
	}

	calls := f.connector.Calls()
	if len(calls) != 1 || calls[0].VoiceID != "voice-rachel" {
		t.Fatalf("synthesis calls = %+v, want one call with voice-rachel", calls)
	}
	if calls[0].ActorID != "" {
		t.Errorf("synthesis actor id = %q, want none", calls[0].ActorID)
	}
}

func TestProcessChatMessageUnknownVoiceNameFallsBackToActor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk [Nobody] {Elara} Hello", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	calls := f.connector.Calls()
	if len(calls) != 1 || calls[0].VoiceID != "voice-elara" {
		t.Fatalf("synthesis calls = %+v, want one call with the actor's voice", calls)
	}
}

func TestProcessChatMessageActorWithoutVoiceUsesNarrator(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk {Brutus} Grrr", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	// Spoken with the narrator's voice but attributed to the actor.
	calls := f.connector.Calls()
	if len(calls) != 1 || calls[0].VoiceID != "voice-narrator" {
		t.Fatalf("synthesis calls = %+v, want one call with the narrator voice", calls)
	}
	if cc.Speaker.ActorID != "brutus" || cc.Speaker.Alias != "Brutus" {
		t.Errorf("chat context speaker = %+v, want actor brutus", cc.Speaker)
	}
}

func TestProcessChatMessageVoiceWithoutSettingsUsesNarrator(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.registry.Upsert(context.Background(), actor.Actor{
		ID:    "vex",
		Name:  "Vex",
		Flags: map[string]string{tts.FlagVoiceID: "voice-vex"},
	}); err != nil {
		t.Fatalf("seeding registry: %v", err)
	}
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk {Vex} Hmm", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	// A voice id without settings is a partial binding; the narrator's voice
	// replaces it entirely rather than mixing the two profiles.
	calls := f.connector.Calls()
	if len(calls) != 1 || calls[0].VoiceID != "voice-narrator" {
		t.Fatalf("synthesis calls = %+v, want one call with the narrator voice", calls)
	}
	if cc.Speaker.ActorID != "vex" || cc.Speaker.Alias != "Vex" {
		t.Errorf("chat context speaker = %+v, want actor vex", cc.Speaker)
	}
}

func TestProcessChatMessageNoVoiceAtAll(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.settings.narratorID = ""
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk {Brutus} Grrr", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	if calls := f.connector.Calls(); len(calls) != 0 {
		t.Errorf("synthesis calls = %d, want 0 with no voice available", len(calls))
	}

	// A plain message is still posted, without flavor or replay control.
	posts := f.sink.Posts()
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	if posts[0].Flavor != "" {
		t.Errorf("plain post flavor = %q, want empty", posts[0].Flavor)
	}
	if updates := f.sink.Updates(); len(updates) != 0 {
		t.Errorf("flavor updates = %d, want 0", len(updates))
	}
}

func TestProcessChatMessageSilentVariant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk-s {Elara} whispered words", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	if posts := f.sink.Posts(); len(posts) != 0 {
		t.Errorf("posts = %d, want 0 for the silent variant", len(posts))
	}
	if calls := f.connector.Calls(); len(calls) != 1 {
		t.Errorf("synthesis calls = %d, want 1", len(calls))
	}
}

func TestProcessChatMessageSilentVariantNoVoicePostsPlain(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.settings.narratorID = ""
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk-s {Brutus} Grrr", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	// The silent flag only suppresses the spoken echo; with no voice at all
	// the plain message still posts so it is not lost entirely.
	posts := f.sink.Posts()
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	if posts[0].Flavor != "" || posts[0].Content != "Grrr" {
		t.Errorf("plain post = %+v, want bare body with empty flavor", posts[0])
	}
	if calls := f.connector.Calls(); len(calls) != 0 {
		t.Errorf("synthesis calls = %d, want 0", len(calls))
	}
}

func TestProcessChatMessageSynthesisFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connector.TextToSpeechError = errors.New("quota exceeded")
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk {Elara} Hello", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	// The message still posts; the flavor patch carries no replay control.
	posts := f.sink.Posts()
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	updates := f.sink.Updates()
	if len(updates) != 1 {
		t.Fatalf("flavor updates = %d, want 1", len(updates))
	}
	if updates[0].Flavor != chat.FlavorTalked {
		t.Errorf("patched flavor = %q, want bare %q", updates[0].Flavor, chat.FlavorTalked)
	}
}

func TestProcessChatMessagePlayersGated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.settings.allowUsers = false
	cc := &chat.Context{User: "player-1", GM: false}

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk {Elara} Hello", cc, true); !got {
		t.Fatal("ProcessChatMessage returned false, want true (passthrough) for a gated player")
	}
	f.processor.Wait()

	if calls := f.connector.Calls(); len(calls) != 0 {
		t.Errorf("synthesis calls = %d, want 0", len(calls))
	}
}

func TestProcessChatMessageInCharacter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.settings.autoInCharacter = true
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/ic {Elara} Stand back!", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	posts := f.sink.Posts()
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	if !posts[0].InCharacter {
		t.Error("in-character command should post in character")
	}
}

func TestProcessChatMessageUnrevealedActorAlias(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tracker := speaker.NewSceneTracker(f.registry)
	tracker.Update(true, "elara", []speaker.SceneMember{{ActorID: "elara", NameRevealed: false}})

	resolver := speaker.New(f.registry, f.settings, tracker)
	p := chat.NewProcessor(f.connector, resolver, f.sink, f.settings)

	cc := gmContext()
	if got := p.ProcessChatMessage(context.Background(), "/talk Something stirs", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	p.Wait()

	if cc.Speaker.ActorID != "elara" {
		t.Fatalf("speaker actor = %q, want elara from the scene focus", cc.Speaker.ActorID)
	}
	if cc.Speaker.Alias != chat.AliasUnknownSpeaker {
		t.Errorf("speaker alias = %q, want %q for an unrevealed actor", cc.Speaker.Alias, chat.AliasUnknownSpeaker)
	}
}

func TestProcessChatMessagePriorSpeakerFallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cc := gmContext()
	cc.Speaker = chat.SpeakerInfo{ActorID: "elara"}

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk Continuing on", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	calls := f.connector.Calls()
	if len(calls) != 1 || calls[0].VoiceID != "voice-elara" {
		t.Fatalf("synthesis calls = %+v, want one call with the prior speaker's voice", calls)
	}
	if cc.Speaker.Alias != "Elara" {
		t.Errorf("speaker alias = %q, want Elara", cc.Speaker.Alias)
	}
}

func TestProcessChatMessagePostToChatDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.settings.postToChat = false
	cc := gmContext()

	if got := f.processor.ProcessChatMessage(context.Background(), "/talk {Elara} Hello", cc, true); got {
		t.Fatal("ProcessChatMessage returned true, want false (handled)")
	}
	f.processor.Wait()

	if posts := f.sink.Posts(); len(posts) != 0 {
		t.Errorf("posts = %d, want 0 with posting disabled", len(posts))
	}
	if calls := f.connector.Calls(); len(calls) != 1 {
		t.Errorf("synthesis calls = %d, want 1", len(calls))
	}
}

func TestReplay(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if err := f.processor.Replay(context.Background(), "item-42"); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if got := f.connector.ReplayCalls; len(got) != 1 || got[0] != "item-42" {
		t.Errorf("replay calls = %v, want [item-42]", got)
	}

	f.connector.ReplayError = errors.New("gone")
	if err := f.processor.Replay(context.Background(), "item-43"); err == nil {
		t.Error("Replay should propagate connector errors")
	}
}
