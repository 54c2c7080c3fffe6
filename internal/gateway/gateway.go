// Package gateway implements the WebSocket endpoint the host platform
// connects to. One socket carries everything: chat lines in, chat posts and
// patches out, plus roster, overlay, and settings mirror events.
//
// Each connection gets its own overlay trackers and chat processor; the
// actor registry, settings store, and TTS connector are shared across
// connections.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/acdevs/talking-actors/internal/actor"
	"github.com/acdevs/talking-actors/internal/chat"
	"github.com/acdevs/talking-actors/internal/config"
	"github.com/acdevs/talking-actors/internal/observe"
	"github.com/acdevs/talking-actors/internal/speaker"
	"github.com/acdevs/talking-actors/pkg/tts"
)

// Server accepts host connections and wires each one to the chat pipeline.
type Server struct {
	connector tts.Connector
	registry  actor.Registry
	settings  *config.Settings
	metrics   *observe.Metrics
}

// New creates a gateway Server sharing the given collaborators across all
// connections.
func New(connector tts.Connector, registry actor.Registry, settings *config.Settings, metrics *observe.Metrics) *Server {
	return &Server{
		connector: connector,
		registry:  registry,
		settings:  settings,
		metrics:   metrics,
	}
}

// Handler returns the HTTP handler that upgrades requests to gateway
// sessions. Mount it on the path the host module dials.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			slog.Warn("gateway: websocket accept failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		s.serveConn(r.Context(), conn, r.RemoteAddr)
	})
}

// serveConn runs one connection to completion.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, remote string) {
	sess := s.newSession(conn)
	s.metrics.ConnectionOpened(ctx)
	slog.Info("gateway: host connected", "remote", remote)

	defer func() {
		sess.processor.Wait()
		s.metrics.ConnectionClosed(ctx)
		conn.Close(websocket.StatusNormalClosure, "")
		slog.Info("gateway: host disconnected", "remote", remote)
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Debug("gateway: read loop ended", "remote", remote, "err", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("gateway: malformed frame", "remote", remote, "err", err)
			continue
		}
		sess.handleEnvelope(ctx, &env)
	}
}

// newSession builds the per-connection pipeline: overlay trackers, resolver,
// and processor, with the session itself as the chat sink.
func (s *Server) newSession(conn *websocket.Conn) *session {
	sess := &session{
		settings:     s.settings,
		registry:     s.registry,
		connector:    s.connector,
		conversation: speaker.NewConversationTracker(s.registry),
		scene:        speaker.NewSceneTracker(s.registry),
		pending:      make(map[string]chan ackEvent),
	}
	sess.send = func(ctx context.Context, env *envelope) error {
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("gateway: marshal %s: %w", env.Type, err)
		}
		return conn.Write(ctx, websocket.MessageText, data)
	}

	resolver := speaker.New(s.registry, s.settings, sess.conversation, sess.scene)
	sess.processor = chat.NewProcessor(s.connector, resolver, sess, s.settings, chat.WithMetrics(s.metrics))
	return sess
}

// handleEnvelope dispatches one client frame.
func (sess *session) handleEnvelope(ctx context.Context, env *envelope) {
	switch env.Type {
	case EventChatMessage:
		sess.onChatMessage(ctx, env)
	case EventChatReplay:
		sess.onChatReplay(ctx, env)
	case EventActorsUpsert:
		sess.onActorsUpsert(ctx, env)
	case EventActorsRemove:
		sess.onActorsRemove(ctx, env)
	case EventSettingsUpdate:
		sess.onSettingsUpdate(ctx, env)
	case EventConversationUpdate:
		sess.onConversationUpdate(ctx, env)
	case EventSceneUpdate:
		sess.onSceneUpdate(ctx, env)
	case EventVoicesList:
		sess.onVoicesList(ctx, env)
	case EventAck, EventError:
		sess.onReply(env)
	default:
		slog.Warn("gateway: unknown event type", "type", env.Type)
		sess.replyError(ctx, env, fmt.Sprintf("unknown event type %q", env.Type))
	}
}

func (sess *session) onChatMessage(ctx context.Context, env *envelope) {
	var ev chatMessageEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		sess.replyError(ctx, env, "malformed chat.message payload")
		return
	}

	passthrough := sess.processor.ProcessChatMessage(ctx, ev.Text, &ev.Context, ev.PostToChat)
	sess.reply(ctx, env, EventChatResult, chatResultEvent{Handled: !passthrough})
}

func (sess *session) onChatReplay(ctx context.Context, env *envelope) {
	var ev chatReplayEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		sess.replyError(ctx, env, "malformed chat.replay payload")
		return
	}
	if err := sess.processor.Replay(ctx, ev.ItemID); err != nil {
		slog.Warn("gateway: replay failed", "item", ev.ItemID, "err", err)
		sess.replyError(ctx, env, err.Error())
		return
	}
	sess.reply(ctx, env, EventAck, ackEvent{})
}

func (sess *session) onActorsUpsert(ctx context.Context, env *envelope) {
	var ev actorsUpsertEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		sess.replyError(ctx, env, "malformed actors.upsert payload")
		return
	}
	for _, a := range ev.Actors {
		if _, err := sess.registry.Upsert(ctx, a); err != nil {
			slog.Warn("gateway: actor upsert failed", "id", a.ID, "err", err)
			sess.replyError(ctx, env, err.Error())
			return
		}
	}
	sess.reply(ctx, env, EventAck, ackEvent{})
}

func (sess *session) onActorsRemove(ctx context.Context, env *envelope) {
	var ev actorsRemoveEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		sess.replyError(ctx, env, "malformed actors.remove payload")
		return
	}
	if err := sess.registry.Remove(ctx, ev.ID); err != nil {
		slog.Warn("gateway: actor remove failed", "id", ev.ID, "err", err)
		sess.replyError(ctx, env, err.Error())
		return
	}
	sess.reply(ctx, env, EventAck, ackEvent{})
}

func (sess *session) onSettingsUpdate(ctx context.Context, env *envelope) {
	var ev settingsUpdateEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		sess.replyError(ctx, env, "malformed settings.update payload")
		return
	}
	if err := sess.settings.Set(ev.Key, ev.Value); err != nil {
		sess.replyError(ctx, env, err.Error())
		return
	}
	slog.Info("gateway: setting changed", "key", ev.Key)
	sess.reply(ctx, env, EventAck, ackEvent{})
}

func (sess *session) onConversationUpdate(ctx context.Context, env *envelope) {
	var ev conversationUpdateEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		sess.replyError(ctx, env, "malformed conversation.update payload")
		return
	}
	if len(ev.Participants) == 0 && !ev.SpeakingAs {
		sess.conversation.Clear()
	} else {
		sess.conversation.Update(ev.Participants, ev.ActiveParticipant, ev.SpeakingAs)
	}
	sess.reply(ctx, env, EventAck, ackEvent{})
}

func (sess *session) onSceneUpdate(ctx context.Context, env *envelope) {
	var ev sceneUpdateEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		sess.replyError(ctx, env, "malformed scene.update payload")
		return
	}
	sess.scene.Update(ev.Visible, ev.FocusActorID, ev.Members)
	sess.reply(ctx, env, EventAck, ackEvent{})
}

func (sess *session) onVoicesList(ctx context.Context, env *envelope) {
	voices, err := sess.connector.ListVoices(ctx)
	if err != nil {
		slog.Warn("gateway: listing voices failed", "err", err)
		sess.replyError(ctx, env, err.Error())
		return
	}
	ev := voicesEvent{Voices: make([]voiceEntry, 0, len(voices))}
	for _, v := range voices {
		ev.Voices = append(ev.Voices, voiceEntry{ID: v.ID, Name: v.Name, Category: v.Category})
	}
	sess.reply(ctx, env, EventVoices, ev)
}

// reply sends a correlated response when the request carried an id, and
// stays silent otherwise.
func (sess *session) reply(ctx context.Context, req *envelope, eventType string, payload any) {
	if req.ID == "" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("gateway: marshal reply", "type", eventType, "err", err)
		return
	}
	if err := sess.send(ctx, &envelope{Type: eventType, ID: req.ID, Payload: data}); err != nil {
		slog.Warn("gateway: send reply failed", "type", eventType, "err", err)
	}
}

func (sess *session) replyError(ctx context.Context, req *envelope, msg string) {
	sess.reply(ctx, req, EventError, errorEvent{Message: msg})
}

// newRequestID returns a fresh correlation id for server-initiated requests.
func newRequestID() string {
	return uuid.NewString()
}
