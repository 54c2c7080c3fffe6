package gateway

import (
	"encoding/json"

	"github.com/acdevs/talking-actors/internal/actor"
	"github.com/acdevs/talking-actors/internal/chat"
	"github.com/acdevs/talking-actors/internal/speaker"
)

// Event types exchanged over the gateway socket. Client→server events carry
// host state and chat traffic; server→client events post and patch chat
// messages and report command outcomes.
const (
	// EventChatMessage is a raw chat line for command processing.
	EventChatMessage = "chat.message"

	// EventChatReplay asks the server to replay a synthesised item.
	EventChatReplay = "chat.replay"

	// EventChatResult reports whether a chat line was handled. Sent in reply
	// to [EventChatMessage], correlated by envelope id.
	EventChatResult = "chat.result"

	// EventChatPost asks the host to create a chat message. The host replies
	// with an [EventAck] carrying the new message id.
	EventChatPost = "chat.post"

	// EventChatUpdate asks the host to replace a message's flavor line.
	EventChatUpdate = "chat.update"

	// EventChatRefresh asks the host to re-render a message. Fire-and-forget.
	EventChatRefresh = "chat.refresh"

	// EventActorsUpsert mirrors created or changed actors into the registry.
	EventActorsUpsert = "actors.upsert"

	// EventActorsRemove drops an actor from the registry.
	EventActorsRemove = "actors.remove"

	// EventSettingsUpdate applies one live settings change.
	EventSettingsUpdate = "settings.update"

	// EventConversationUpdate mirrors the host's conversation overlay state.
	EventConversationUpdate = "conversation.update"

	// EventSceneUpdate mirrors the host's scene-actor overlay state.
	EventSceneUpdate = "scene.update"

	// EventVoicesList asks for the provider's voice catalogue.
	EventVoicesList = "voices.list"

	// EventVoices carries the voice catalogue back to the host.
	EventVoices = "voices"

	// EventAck acknowledges a server-initiated request, correlated by
	// envelope id.
	EventAck = "ack"

	// EventError reports a failed client request, correlated by envelope id.
	EventError = "error"
)

// envelope is the wire frame for every gateway message. Payload holds the
// event-specific body; ID correlates requests with their replies and is
// empty on fire-and-forget events.
type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// chatMessageEvent is the payload of [EventChatMessage].
type chatMessageEvent struct {
	// Text is the raw chat line, slash command included.
	Text string `json:"text"`

	// Context is the host's chat context for the pending message.
	Context chat.Context `json:"context"`

	// PostToChat is the host-side per-message posting preference.
	PostToChat bool `json:"postToChat"`
}

// chatResultEvent is the payload of [EventChatResult].
type chatResultEvent struct {
	// Handled reports whether this module consumed the line. When false the
	// host's normal chat pipeline should continue.
	Handled bool `json:"handled"`
}

// chatReplayEvent is the payload of [EventChatReplay].
type chatReplayEvent struct {
	ItemID string `json:"itemId"`
}

// chatPostEvent is the payload of [EventChatPost].
type chatPostEvent struct {
	Context     chat.Context `json:"context"`
	Flavor      string       `json:"flavor,omitempty"`
	Content     string       `json:"content"`
	InCharacter bool         `json:"inCharacter"`
}

// chatUpdateEvent is the payload of [EventChatUpdate] and [EventChatRefresh].
type chatUpdateEvent struct {
	MessageID string `json:"messageId"`
	Flavor    string `json:"flavor,omitempty"`
}

// ackEvent is the payload of [EventAck] for [EventChatPost] requests.
type ackEvent struct {
	MessageID string `json:"messageId,omitempty"`
}

// errorEvent is the payload of [EventError].
type errorEvent struct {
	Message string `json:"message"`
}

// actorsUpsertEvent is the payload of [EventActorsUpsert].
type actorsUpsertEvent struct {
	Actors []actor.Actor `json:"actors"`
}

// actorsRemoveEvent is the payload of [EventActorsRemove].
type actorsRemoveEvent struct {
	ID string `json:"id"`
}

// settingsUpdateEvent is the payload of [EventSettingsUpdate].
type settingsUpdateEvent struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// conversationUpdateEvent is the payload of [EventConversationUpdate].
type conversationUpdateEvent struct {
	// SpeakingAs reports whether the GM currently speaks as the active
	// participant.
	SpeakingAs bool `json:"speakingAs"`

	// Participants are the participant names in overlay order.
	Participants []string `json:"participants"`

	// ActiveParticipant is the index of the active participant, -1 for none.
	ActiveParticipant int `json:"activeParticipant"`
}

// sceneUpdateEvent is the payload of [EventSceneUpdate].
type sceneUpdateEvent struct {
	Visible      bool                  `json:"visible"`
	FocusActorID string                `json:"focusActorId"`
	Members      []speaker.SceneMember `json:"members"`
}

// voicesEvent is the payload of [EventVoices].
type voicesEvent struct {
	Voices []voiceEntry `json:"voices"`
}

// voiceEntry is one catalogue entry in [EventVoices].
type voiceEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}
