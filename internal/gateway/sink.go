package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/acdevs/talking-actors/internal/actor"
	"github.com/acdevs/talking-actors/internal/chat"
	"github.com/acdevs/talking-actors/internal/config"
	"github.com/acdevs/talking-actors/internal/speaker"
	"github.com/acdevs/talking-actors/pkg/tts"
)

// ackTimeout bounds how long a server-initiated request waits for the
// host's acknowledgement.
const ackTimeout = 10 * time.Second

// session is one host connection: the read-loop state plus the outbound
// request/response machinery that makes it a [chat.Sink].
type session struct {
	settings  *config.Settings
	registry  actor.Registry
	connector tts.Connector

	conversation *speaker.ConversationTracker
	scene        *speaker.SceneTracker
	processor    *chat.Processor

	// send writes one envelope to the host. Replaced in tests.
	send func(ctx context.Context, env *envelope) error

	mu      sync.Mutex
	pending map[string]chan ackEvent
}

// Compile-time interface assertion.
var _ chat.Sink = (*session)(nil)

// PostMessage implements [chat.Sink.PostMessage] by asking the host to
// create the chat message and waiting for its acknowledgement carrying the
// new message id.
func (sess *session) PostMessage(ctx context.Context, chatCtx *chat.Context, flavor, content string, inCharacter bool) (*chat.Message, error) {
	ack, err := sess.request(ctx, EventChatPost, chatPostEvent{
		Context:     *chatCtx,
		Flavor:      flavor,
		Content:     content,
		InCharacter: inCharacter,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: post message: %w", err)
	}
	if ack.MessageID == "" {
		return nil, fmt.Errorf("gateway: post message: host returned no message id")
	}
	return &chat.Message{ID: ack.MessageID, Flavor: flavor}, nil
}

// UpdateFlavor implements [chat.Sink.UpdateFlavor].
func (sess *session) UpdateFlavor(ctx context.Context, msg *chat.Message, flavor string) error {
	if _, err := sess.request(ctx, EventChatUpdate, chatUpdateEvent{
		MessageID: msg.ID,
		Flavor:    flavor,
	}); err != nil {
		return fmt.Errorf("gateway: update message %s: %w", msg.ID, err)
	}
	msg.Flavor = flavor
	return nil
}

// Refresh implements [chat.Sink.Refresh]. Fire-and-forget.
func (sess *session) Refresh(ctx context.Context, msg *chat.Message) {
	data, err := json.Marshal(chatUpdateEvent{MessageID: msg.ID})
	if err != nil {
		return
	}
	if err := sess.send(ctx, &envelope{Type: EventChatRefresh, Payload: data}); err != nil {
		slog.Debug("gateway: refresh send failed", "message", msg.ID, "err", err)
	}
}

// request sends a correlated server→client event and blocks until the host
// acknowledges it, the timeout elapses, or ctx is cancelled.
func (sess *session) request(ctx context.Context, eventType string, payload any) (ackEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return ackEvent{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}

	id := newRequestID()
	ch := make(chan ackEvent, 1)

	sess.mu.Lock()
	sess.pending[id] = ch
	sess.mu.Unlock()
	defer func() {
		sess.mu.Lock()
		delete(sess.pending, id)
		sess.mu.Unlock()
	}()

	if err := sess.send(ctx, &envelope{Type: eventType, ID: id, Payload: data}); err != nil {
		return ackEvent{}, err
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()

	select {
	case ack, ok := <-ch:
		if !ok {
			return ackEvent{}, fmt.Errorf("%s: host rejected request", eventType)
		}
		return ack, nil
	case <-timer.C:
		return ackEvent{}, fmt.Errorf("%s: no acknowledgement within %s", eventType, ackTimeout)
	case <-ctx.Done():
		return ackEvent{}, ctx.Err()
	}
}

// onReply routes a host acknowledgement or error to the waiting request.
// An error reply closes the channel so the waiter sees a rejection.
func (sess *session) onReply(env *envelope) {
	if env.ID == "" {
		return
	}

	sess.mu.Lock()
	ch, ok := sess.pending[env.ID]
	delete(sess.pending, env.ID)
	sess.mu.Unlock()
	if !ok {
		slog.Debug("gateway: reply for unknown request", "id", env.ID, "type", env.Type)
		return
	}

	if env.Type == EventError {
		var ev errorEvent
		_ = json.Unmarshal(env.Payload, &ev)
		slog.Warn("gateway: host rejected request", "id", env.ID, "message", ev.Message)
		close(ch)
		return
	}

	var ack ackEvent
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		close(ch)
		return
	}
	ch <- ack
}
