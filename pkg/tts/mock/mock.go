// Package mock provides an in-memory mock implementation of [tts.Connector]
// for use in unit tests.
//
// The mock is safe for concurrent use, records method calls, and exposes
// exported fields for configuring return values.
package mock

import (
	"context"
	"sync"

	"github.com/acdevs/talking-actors/pkg/tts"
)

// SynthesisCall records the arguments of a single [Connector.TextToSpeech]
// invocation.
type SynthesisCall struct {
	// VoiceID is the voice id the synthesis was requested with.
	VoiceID string

	// ActorID is the id of the speaking actor, or "" when none was passed.
	ActorID string

	// Text is the message body that was synthesised.
	Text string

	// Settings is the settings pointer passed to TextToSpeech (may be nil).
	Settings *tts.VoiceSettings
}

// Connector is a mock implementation of [tts.Connector].
type Connector struct {
	mu sync.Mutex

	// VoiceIDs maps voice names to ids for [Connector.GetVoiceID].
	// Names absent from the map return [tts.ErrVoiceNotFound].
	VoiceIDs map[string]string

	// TextToSpeechResult is the item id returned by [Connector.TextToSpeech].
	TextToSpeechResult string

	// TextToSpeechError is returned by [Connector.TextToSpeech] when non-nil.
	TextToSpeechError error

	// ReplayError is returned by [Connector.ReplaySpeech] when non-nil.
	ReplayError error

	// Voices is returned by [Connector.ListVoices].
	Voices []tts.VoiceProfile

	// SynthesisCalls records every TextToSpeech invocation in order.
	SynthesisCalls []SynthesisCall

	// ReplayCalls records every item id passed to ReplaySpeech.
	ReplayCalls []string
}

// Compile-time interface assertion.
var _ tts.Connector = (*Connector)(nil)

// GetVoiceID implements [tts.Connector.GetVoiceID].
func (c *Connector) GetVoiceID(_ context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.VoiceIDs[name]; ok {
		return id, nil
	}
	return "", tts.ErrVoiceNotFound
}

// GetVoiceIDFromActor implements [tts.Connector.GetVoiceIDFromActor] by
// reading the standard voice-id flag.
func (c *Connector) GetVoiceIDFromActor(a tts.Actor) string {
	return tts.VoiceIDFromFlags(a)
}

// GetVoiceSettingsFromActor implements
// [tts.Connector.GetVoiceSettingsFromActor] by decoding the standard
// voice-settings flag. Malformed flags yield nil.
func (c *Connector) GetVoiceSettingsFromActor(a tts.Actor) *tts.VoiceSettings {
	vs, err := tts.VoiceSettingsFromFlags(a)
	if err != nil {
		return nil
	}
	return vs
}

// TextToSpeech implements [tts.Connector.TextToSpeech].
func (c *Connector) TextToSpeech(_ context.Context, voiceID string, a tts.Actor, text string, settings *tts.VoiceSettings) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call := SynthesisCall{VoiceID: voiceID, Text: text, Settings: settings}
	if a != nil {
		call.ActorID = a.ActorID()
	}
	c.SynthesisCalls = append(c.SynthesisCalls, call)

	if c.TextToSpeechError != nil {
		return "", c.TextToSpeechError
	}
	return c.TextToSpeechResult, nil
}

// ReplaySpeech implements [tts.Connector.ReplaySpeech].
func (c *Connector) ReplaySpeech(_ context.Context, itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReplayCalls = append(c.ReplayCalls, itemID)
	return c.ReplayError
}

// ListVoices implements [tts.Connector.ListVoices].
func (c *Connector) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Voices, nil
}

// Calls returns a snapshot of the recorded synthesis calls.
func (c *Connector) Calls() []SynthesisCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SynthesisCall, len(c.SynthesisCalls))
	copy(out, c.SynthesisCalls)
	return out
}
