package tts

// Flag keys under which voice bindings are stored on an actor. The host
// settings UI writes these; connectors only read them.
const (
	// FlagVoiceID holds the provider-specific voice identifier.
	FlagVoiceID = "voice-id"

	// FlagVoiceSettings holds a JSON-encoded [VoiceSettings] object.
	FlagVoiceSettings = "voice_settings"
)

// VoiceSettings tunes how a synthesis voice renders a line of text.
// The zero value is valid; connectors substitute their own defaults for
// unset fields.
type VoiceSettings struct {
	// Stability controls how consistent the voice sounds across renditions.
	Stability float64 `json:"stability"`

	// SimilarityBoost controls how closely the output adheres to the
	// original voice sample.
	SimilarityBoost float64 `json:"similarity_boost"`

	// Style exaggerates the speaking style of the voice. Optional.
	Style float64 `json:"style,omitempty"`

	// ModelID overrides the connector's default synthesis model. Optional.
	ModelID string `json:"model_id,omitempty"`

	// LanguageID forces a synthesis language. Optional.
	LanguageID string `json:"language_id,omitempty"`
}

// VoiceProfile describes a single voice available from a provider.
type VoiceProfile struct {
	// ID is the provider-assigned voice identifier.
	ID string `json:"id"`

	// Name is the human-readable voice name shown in configuration UIs
	// and matched against explicit voice names in chat commands.
	Name string `json:"name"`

	// Category classifies the voice (e.g. "premade", "cloned"). Optional.
	Category string `json:"category,omitempty"`

	// PreviewURL points to a short sample clip, when the provider has one.
	PreviewURL string `json:"preview_url,omitempty"`
}
