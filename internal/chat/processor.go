package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/acdevs/talking-actors/internal/observe"
	"github.com/acdevs/talking-actors/internal/speaker"
	"github.com/acdevs/talking-actors/pkg/tts"
)

// Settings is the slice of live configuration the processor consults per
// message. Values may change between messages (the GM can edit settings
// mid-session), so they are read fresh on every call.
type Settings interface {
	// AutoInCharacter reports whether the /ic command is interpreted.
	AutoInCharacter() bool

	// PostToChat reports whether spoken messages are echoed to chat.
	PostToChat() bool

	// AllowUsers reports whether non-GM users may use talk commands.
	AllowUsers() bool
}

// Processor orchestrates one chat message end to end: parse, resolve
// speaker and voice, mutate the chat context, then concurrently post the
// provisional message and run synthesis, patching the message with a
// replay control once both are done.
//
// Processor keeps no state across messages; it is safe for concurrent use.
type Processor struct {
	connector tts.Connector
	resolver  *speaker.Resolver
	sink      Sink
	settings  Settings
	metrics   *observe.Metrics

	wg sync.WaitGroup
}

// Option configures a [Processor] during construction.
type Option func(*Processor)

// WithMetrics attaches metric instruments to the processor.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// NewProcessor creates a Processor. All four collaborators are required.
func NewProcessor(connector tts.Connector, resolver *speaker.Resolver, sink Sink, settings Settings, opts ...Option) *Processor {
	p := &Processor{
		connector: connector,
		resolver:  resolver,
		sink:      sink,
		settings:  settings,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessChatMessage processes one incoming chat line.
//
// Returns true when the message is not a talking-actors command and the
// host's normal chat pipeline should continue; false when the message was
// handled here and the host must suppress its default posting.
//
// Speaker and voice resolution happen synchronously; chat posting and
// synthesis are dispatched to a background goroutine that the caller can
// drain via [Processor.Wait]. chatCtx is mutated in place to reflect the
// resolved speaker before dispatch.
func (p *Processor) ProcessChatMessage(ctx context.Context, raw string, chatCtx *Context, postToChat bool) bool {
	cmd := ParseCommand(raw)
	if cmd == nil || !cmd.Recognized(p.settings.AutoInCharacter()) {
		return true
	}
	if strings.TrimSpace(cmd.Body) == "" {
		// A recognized command with nothing to speak is swallowed rather than
		// passed through, so the raw command line never reaches the chat log.
		slog.Debug("chat: command has no content to speak", "command", cmd.Name)
		return false
	}
	if !p.settings.AllowUsers() && !chatCtx.GM {
		slog.Debug("chat: talk commands are disabled for players", "user", chatCtx.User)
		return true
	}

	p.metrics.RecordCommand(ctx, cmd.Name)

	inCharacter := cmd.Name == CommandInCharacter
	if cmd.Name == CommandTalkSilent {
		postToChat = false
	}

	var voiceID string
	var voiceSettings *tts.VoiceSettings

	// An explicit voice name overrides the speaking actor's binding. A miss
	// is a warning, not an abort: resolution continues with the actor path.
	if cmd.VoiceName != "" {
		id, err := p.connector.GetVoiceID(ctx, cmd.VoiceName)
		if err != nil {
			slog.Warn("chat: voice name not found, using actor's configured voice",
				"voice", cmd.VoiceName, "err", err)
			p.metrics.RecordFallback(ctx, "voice-name-miss")
		} else {
			voiceID = id
		}
	}

	var spk *speaker.Speaker
	if voiceID == "" {
		if cmd.Name == CommandNarrate {
			slog.Debug("chat: narrate command, resolving narrator actor")
			spk = p.resolver.Narrator(ctx)
		} else {
			spk = p.resolver.Resolve(ctx, cmd.ActorRef, chatCtx.Speaker.ActorID)
		}
	}

	if spk != nil {
		slog.Info("chat: speaking actor resolved",
			"name", spk.Actor.Name, "id", spk.Actor.ID, "narrator", spk.IsNarrator)

		inCharacter = !spk.IsNarrator

		voiceID = p.connector.GetVoiceIDFromActor(&spk.Actor)
		voiceSettings = p.connector.GetVoiceSettingsFromActor(&spk.Actor)

		// A partial binding degrades too: an actor with a voice id but no
		// settings speaks with the narrator's voice, not a mixed profile.
		if voiceID == "" || voiceSettings == nil {
			voiceID, voiceSettings = p.narratorVoice(ctx, spk)
		}

		p.applySpeaker(ctx, chatCtx, spk)
	}

	if voiceID == "" {
		slog.Debug("chat: no voice available, posting plain message")
	}

	p.dispatch(ctx, voiceID, spk, postToChat, chatCtx, cmd.Body, inCharacter, voiceSettings)

	return false
}

// Replay re-plays a previously synthesised item by id.
func (p *Processor) Replay(ctx context.Context, itemID string) error {
	if err := p.connector.ReplaySpeech(ctx, itemID); err != nil {
		return fmt.Errorf("chat: replay %q: %w", itemID, err)
	}
	return nil
}

// Wait blocks until all dispatched message work has finished. Used during
// shutdown and by tests; in-flight synthesis is never cancelled, it runs to
// completion or failure.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// narratorVoice degrades a speaker without a usable voice binding to the
// narrator's voice. Returns ("", nil) when the narrator is missing or has
// no voice either, which skips speech entirely.
func (p *Processor) narratorVoice(ctx context.Context, spk *speaker.Speaker) (string, *tts.VoiceSettings) {
	slog.Info("chat: no voice configured for actor, using narrator voice", "actor", spk.Actor.Name)

	nar := p.resolver.Narrator(ctx)
	if nar == nil {
		slog.Warn("chat: no narrator actor configured, skipping speech for message")
		p.metrics.RecordFallback(ctx, "no-narrator")
		return "", nil
	}

	voiceID := p.connector.GetVoiceIDFromActor(&nar.Actor)
	if voiceID == "" {
		slog.Warn("chat: no voice configured for narrator actor, skipping speech for message",
			"narrator", nar.Actor.Name)
		p.metrics.RecordFallback(ctx, "narrator-voice-missing")
		return "", nil
	}

	p.metrics.RecordFallback(ctx, "narrator-voice")
	return voiceID, p.connector.GetVoiceSettingsFromActor(&nar.Actor)
}

// applySpeaker rewrites the chat context's speaker attribution for the
// resolved speaker: narrators are anonymised, revealed actors speak under
// their own name, unrevealed ones under a generic placeholder.
func (p *Processor) applySpeaker(ctx context.Context, chatCtx *Context, spk *speaker.Speaker) {
	if spk.IsNarrator {
		chatCtx.Speaker.ActorID = ""
		chatCtx.Speaker.Alias = ""
		return
	}

	chatCtx.Speaker.ActorID = spk.Actor.ID
	switch {
	case spk.AliasOverride != "":
		chatCtx.Speaker.Alias = spk.AliasOverride
	case p.resolver.NameRevealed(ctx, spk.Actor):
		chatCtx.Speaker.Alias = spk.Actor.Name
	default:
		chatCtx.Speaker.Alias = AliasUnknownSpeaker
	}
}

// dispatch runs the chat-post and synthesis legs for one message in the
// background. The provisional post and the synthesis call are issued
// concurrently; the flavor patch waits on both so the replay control is
// never attached before the message exists.
func (p *Processor) dispatch(ctx context.Context, voiceID string, spk *speaker.Speaker, postToChat bool, chatCtx *Context, body string, inCharacter bool, voiceSettings *tts.VoiceSettings) {
	// Snapshot the context: the caller may reuse it for the next message.
	cc := *chatCtx

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if voiceID == "" {
			// Without a voice the plain message always posts, even for the
			// silent command or with chat echoing disabled: the host already
			// suppressed its own rendering, so dropping it here would lose
			// the message entirely.
			if _, err := p.sink.PostMessage(ctx, &cc, "", body, inCharacter); err != nil {
				slog.Error("chat: post plain message", "err", err)
				p.metrics.RecordSinkError(ctx)
			}
			return
		}

		var msg *Message
		var itemID string

		g, gctx := errgroup.WithContext(ctx)

		if postToChat && p.settings.PostToChat() {
			g.Go(func() error {
				m, err := p.sink.PostMessage(gctx, &cc, FlavorTalked, spokenContent(body), inCharacter)
				if err != nil {
					return fmt.Errorf("chat: post message: %w", err)
				}
				msg = m
				return nil
			})
		}

		g.Go(func() error {
			var sa tts.Actor
			if spk != nil {
				sa = &spk.Actor
			}
			start := time.Now()
			id, err := p.connector.TextToSpeech(gctx, voiceID, sa, body, voiceSettings)
			p.metrics.RecordSynthesis(gctx, time.Since(start).Seconds(), err != nil)
			if err != nil {
				// Not fatal: the message still posts, without a replay control.
				slog.Warn("chat: synthesis failed", "voice_id", voiceID, "err", err)
				return nil
			}
			itemID = id
			return nil
		})

		if err := g.Wait(); err != nil {
			slog.Error("chat: dispatch failed", "err", err)
			p.metrics.RecordSinkError(ctx)
			return
		}

		if msg == nil {
			return
		}

		flavor := FlavorTalked
		if itemID != "" {
			flavor += replaySpan(itemID)
		}
		if err := p.sink.UpdateFlavor(ctx, msg, flavor); err != nil {
			slog.Error("chat: update message flavor", "err", err)
			p.metrics.RecordSinkError(ctx)
			return
		}
		p.sink.Refresh(ctx, msg)
	}()
}
