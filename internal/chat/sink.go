package chat

import (
	"context"
	"fmt"
)

// Context is the mutable chat context for one pending message, supplied by
// the host with the raw chat line. The processor rewrites the speaker
// fields to match the resolved speaker before any message is posted.
type Context struct {
	// User is the host user id sending the message.
	User string `json:"user"`

	// GM reports whether that user is the game master. Non-GM users are
	// gated by the allow-users setting.
	GM bool `json:"gm,omitempty"`

	// Speaker attributes the message to an in-world entity.
	Speaker SpeakerInfo `json:"speaker"`
}

// SpeakerInfo is the speaker attribution of a chat message. Empty fields
// mean "no attribution" — a narrator message clears both.
type SpeakerInfo struct {
	// ActorID is the attributed actor's id.
	ActorID string `json:"actor,omitempty"`

	// Alias is the display name shown for the message.
	Alias string `json:"alias,omitempty"`
}

// Message is a handle on a chat message created through a [Sink]. The
// processor threads it from the provisional post to the flavor patch.
type Message struct {
	// ID is the host-assigned message id.
	ID string

	// Flavor is the current flavor line of the message.
	Flavor string
}

// Sink is the narrow contract to the host's chat log.
//
// Implementations must be safe for concurrent use; the processor posts and
// patches from dispatch goroutines.
type Sink interface {
	// PostMessage creates a chat message and returns its handle.
	PostMessage(ctx context.Context, chatCtx *Context, flavor, content string, inCharacter bool) (*Message, error)

	// UpdateFlavor replaces the flavor line of an existing message.
	UpdateFlavor(ctx context.Context, msg *Message, flavor string) error

	// Refresh asks the host chat log to re-render the message. Best-effort;
	// failures are the host's concern.
	Refresh(ctx context.Context, msg *Message)
}

// FlavorTalked is the flavor line marking a spoken message.
const FlavorTalked = "Talked"

// AliasUnknownSpeaker is the placeholder alias for a speaker whose identity
// has not been revealed to players.
const AliasUnknownSpeaker = "Unknown speaker"

// spokenContent wraps a spoken message body for display.
func spokenContent(body string) string {
	return fmt.Sprintf(`<span class="ta-talked">%s</span>`, body)
}

// replaySpan renders the replay control appended to a spoken message's
// flavor once synthesis has yielded a playback item.
func replaySpan(itemID string) string {
	return fmt.Sprintf(`<span class="ta-replay" data-item-id="%s"><i class="fa-solid fa-repeat"></i></span>`, itemID)
}
