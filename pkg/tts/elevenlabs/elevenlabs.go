// Package elevenlabs provides an ElevenLabs-backed TTS connector using the
// ElevenLabs streaming REST API. It implements the tts.Connector interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"

	"github.com/acdevs/talking-actors/pkg/tts"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io"
	defaultModel     = "eleven_multilingual_v2"
	defaultOutputFmt = "mp3_44100_128"

	// maxSuggestDistance is the largest Levenshtein distance at which a
	// catalogue voice is offered as a "did you mean" suggestion.
	maxSuggestDistance = 3
)

// Option is a functional option for configuring the ElevenLabs Connector.
type Option func(*Connector)

// WithModel sets the ElevenLabs model ID (e.g. "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(c *Connector) {
		c.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g. "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(c *Connector) {
		c.outputFormat = format
	}
}

// WithBaseURL overrides the API endpoint. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *Connector) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Connector) {
		c.httpClient = client
	}
}

// Connector implements tts.Connector backed by the ElevenLabs REST API.
type Connector struct {
	apiKey       string
	model        string
	outputFormat string
	baseURL      string
	httpClient   *http.Client

	mu        sync.RWMutex
	catalogue map[string]string // lower-case voice name → voice id
}

// Compile-time interface assertion.
var _ tts.Connector = (*Connector)(nil)

// New creates a new ElevenLabs Connector. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Connector, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	c := &Connector{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ---- voice catalogue ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID    string `json:"voice_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PreviewURL string `json:"preview_url"`
}

// ListVoices returns all voices available for the configured API key.
func (c *Connector) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}

	profiles := make([]tts.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		profiles = append(profiles, tts.VoiceProfile{
			ID:         v.VoiceID,
			Name:       v.Name,
			Category:   v.Category,
			PreviewURL: v.PreviewURL,
		})
	}

	c.mu.Lock()
	c.catalogue = make(map[string]string, len(profiles))
	for _, p := range profiles {
		c.catalogue[strings.ToLower(p.Name)] = p.ID
	}
	c.mu.Unlock()

	return profiles, nil
}

// GetVoiceID resolves a voice name to its id, refreshing the catalogue on a
// miss so newly added voices are picked up without a restart. When no voice
// matches, the returned error wraps [tts.ErrVoiceNotFound] and names the
// closest catalogue entry if one is within editing distance.
func (c *Connector) GetVoiceID(ctx context.Context, name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", fmt.Errorf("elevenlabs: %w: empty name", tts.ErrVoiceNotFound)
	}

	c.mu.RLock()
	id, ok := c.catalogue[key]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	if _, err := c.ListVoices(ctx); err != nil {
		return "", fmt.Errorf("elevenlabs: refresh voice catalogue: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if id, ok := c.catalogue[key]; ok {
		return id, nil
	}
	if suggestion := c.closestVoiceLocked(key); suggestion != "" {
		return "", fmt.Errorf("elevenlabs: %w: %q (did you mean %q?)", tts.ErrVoiceNotFound, name, suggestion)
	}
	return "", fmt.Errorf("elevenlabs: %w: %q", tts.ErrVoiceNotFound, name)
}

// closestVoiceLocked returns the catalogue name nearest to key by Levenshtein
// distance, or "" when nothing is close enough. Caller must hold c.mu.
func (c *Connector) closestVoiceLocked(key string) string {
	best := ""
	bestDist := maxSuggestDistance + 1
	for name := range c.catalogue {
		if d := matchr.Levenshtein(key, name); d < bestDist {
			bestDist = d
			best = name
		}
	}
	return best
}

// GetVoiceIDFromActor returns the voice id stored in the actor's flags.
func (c *Connector) GetVoiceIDFromActor(a tts.Actor) string {
	return tts.VoiceIDFromFlags(a)
}

// GetVoiceSettingsFromActor returns the voice settings stored in the actor's
// flags. A malformed flag is logged and treated as unconfigured so a broken
// binding degrades to the narrator fallback instead of blocking speech.
func (c *Connector) GetVoiceSettingsFromActor(a tts.Actor) *tts.VoiceSettings {
	vs, err := tts.VoiceSettingsFromFlags(a)
	if err != nil {
		slog.Warn("elevenlabs: ignoring malformed voice settings flag", "err", err)
		return nil
	}
	return vs
}

// ---- synthesis ----

// synthesisRequest is the JSON payload for POST /v1/text-to-speech/{id}/stream.
type synthesisRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	LanguageCode  string             `json:"language_code,omitempty"`
	VoiceSettings *tts.VoiceSettings `json:"voice_settings,omitempty"`
}

// historyResponse is the response from GET /v1/history.
type historyResponse struct {
	History []historyItem `json:"history"`
}

// historyItem is a single generation record.
type historyItem struct {
	HistoryItemID string `json:"history_item_id"`
	VoiceID       string `json:"voice_id"`
}

// TextToSpeech streams a synthesis request for text with the given voice and
// returns the id of the resulting history item. The audio stream is drained
// and discarded — the host replays audio through the vendor by item id, so
// the server never holds the bytes.
func (c *Connector) TextToSpeech(ctx context.Context, voiceID string, a tts.Actor, text string, settings *tts.VoiceSettings) (string, error) {
	if voiceID == "" {
		return "", errors.New("elevenlabs: voiceID must not be empty")
	}

	model := c.model
	var langCode string
	if settings != nil {
		if settings.ModelID != "" {
			model = settings.ModelID
		}
		langCode = settings.LanguageID
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       model,
		LanguageCode:  langCode,
		VoiceSettings: settings,
	})
	if err != nil {
		return "", fmt.Errorf("elevenlabs: encode synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s", c.baseURL, voiceID, c.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("elevenlabs: synthesis request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: synthesis HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("elevenlabs: synthesis: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Drain the audio stream so the generation completes vendor-side and
	// lands in the history before we ask for its id.
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return "", fmt.Errorf("elevenlabs: read synthesis stream: %w", err)
	}

	itemID, err := c.lastHistoryItem(ctx)
	if err != nil {
		return "", err
	}

	if a != nil {
		slog.Debug("elevenlabs: synthesis complete", "actor", a.ActorName(), "voice_id", voiceID, "item_id", itemID)
	} else {
		slog.Debug("elevenlabs: synthesis complete", "voice_id", voiceID, "item_id", itemID)
	}
	return itemID, nil
}

// lastHistoryItem returns the id of the most recent generation record.
func (c *Connector) lastHistoryItem(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/history?page_size=1", nil)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: history request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: history HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("elevenlabs: history: unexpected status %d", resp.StatusCode)
	}

	var hr historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return "", fmt.Errorf("elevenlabs: history decode: %w", err)
	}
	if len(hr.History) == 0 {
		return "", errors.New("elevenlabs: history is empty after synthesis")
	}
	return hr.History[0].HistoryItemID, nil
}

// ReplaySpeech fetches the audio of a previous generation by history item id.
// The stream is drained; playback happens host-side via the same item id.
// Returns an error when the item no longer exists vendor-side.
func (c *Connector) ReplaySpeech(ctx context.Context, itemID string) error {
	if itemID == "" {
		return errors.New("elevenlabs: itemID must not be empty")
	}

	url := fmt.Sprintf("%s/v1/history/%s/audio", c.baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: replay request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs: replay HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("elevenlabs: replay item %q: unexpected status %d", itemID, resp.StatusCode)
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("elevenlabs: read replay stream: %w", err)
	}
	return nil
}
