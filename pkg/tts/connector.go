// Package tts defines the Connector interface for Text-to-Speech backends.
//
// A TTS connector wraps a speech synthesis vendor (e.g. ElevenLabs) and
// presents a uniform surface to the chat pipeline: voice-name lookup,
// per-actor voice binding lookup, synthesis, and replay of previously
// synthesised items. Synthesis returns a provider-side playback item
// identifier that the chat layer attaches to posted messages as a replay
// control; the audio itself never passes through this interface.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may be in flight at once (two speakers talking over each other
// is accepted behaviour, not prevented here).
package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrVoiceNotFound is returned by [Connector.GetVoiceID] when no voice in
// the provider's catalogue matches the requested name.
var ErrVoiceNotFound = errors.New("tts: voice not found")

// Actor is the minimal view of a speaker entity a connector needs: identity
// for logging and flag lookup for stored voice bindings. The chat pipeline's
// actor type satisfies this; connectors never construct or mutate actors.
type Actor interface {
	// ActorID returns the host-assigned entity id.
	ActorID() string

	// ActorName returns the display name.
	ActorName() string

	// Flag returns the value stored under key and whether it was set.
	Flag(key string) (string, bool)
}

// Connector is the abstraction over any TTS vendor.
type Connector interface {
	// GetVoiceID resolves a human-readable voice name to the provider's
	// voice identifier. Returns [ErrVoiceNotFound] (possibly wrapped with a
	// suggestion) when the name does not match any catalogue entry.
	GetVoiceID(ctx context.Context, name string) (string, error)

	// GetVoiceIDFromActor returns the voice id bound to the actor, or ""
	// when the actor has no voice configured.
	GetVoiceIDFromActor(a Actor) string

	// GetVoiceSettingsFromActor returns the synthesis settings bound to the
	// actor, or nil when none are configured. Settings are read fresh on
	// every call; bindings may change between messages.
	GetVoiceSettingsFromActor(a Actor) *VoiceSettings

	// TextToSpeech synthesises text with the given voice and returns the
	// provider-side playback item id used for replay. a may be nil when the
	// voice was selected by explicit name rather than through an actor.
	// settings may be nil, in which case provider defaults apply.
	//
	// A failed synthesis returns ("", err); callers treat that as "no voice
	// available" and post the message without a replay control.
	TextToSpeech(ctx context.Context, voiceID string, a Actor, text string, settings *VoiceSettings) (string, error)

	// ReplaySpeech re-fetches the audio for a previously synthesised item.
	// Playback is the host's concern; this call validates availability and
	// warms the vendor-side cache.
	ReplaySpeech(ctx context.Context, itemID string) error

	// ListVoices returns the provider's current voice catalogue. The result
	// may change between calls as voices are added or removed.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

// VoiceIDFromFlags reads the voice id bound to a via the [FlagVoiceID] flag.
// Shared by connector implementations.
func VoiceIDFromFlags(a Actor) string {
	if a == nil {
		return ""
	}
	id, _ := a.Flag(FlagVoiceID)
	return id
}

// VoiceSettingsFromFlags decodes the [FlagVoiceSettings] flag on a.
// Returns nil when the flag is absent and an error when it is set but
// not valid JSON.
func VoiceSettingsFromFlags(a Actor) (*VoiceSettings, error) {
	if a == nil {
		return nil, nil
	}
	raw, ok := a.Flag(FlagVoiceSettings)
	if !ok || raw == "" {
		return nil, nil
	}
	var vs VoiceSettings
	if err := json.Unmarshal([]byte(raw), &vs); err != nil {
		return nil, fmt.Errorf("tts: decode voice settings for actor %q: %w", a.ActorID(), err)
	}
	return &vs, nil
}
