// Package chat implements the chat-command pipeline: parsing slash
// commands out of raw chat lines, deciding which speaker and voice apply,
// and orchestrating synthesis against the TTS connector while keeping the
// host's chat log consistent.
package chat

import "regexp"

// Chat commands recognised by the processor. Any other leading token is
// not a talking-actors command and is passed through to the host's normal
// chat pipeline.
const (
	// CommandTalk speaks the message and posts it to chat.
	CommandTalk = "talk"

	// CommandTalkSilent speaks the message without posting it.
	CommandTalkSilent = "talk-s"

	// CommandNarrate forces the narrator voice regardless of any resolved
	// actor.
	CommandNarrate = "narrate"

	// CommandInCharacter speaks in character. Only accepted while the
	// auto-in-character setting is enabled.
	CommandInCharacter = "ic"
)

// Command is the parsed form of one chat line:
//
//	/<command>[ [<voiceName>]][ {<actorRef>}] <body>
//
// VoiceName names a synthesis voice directly and bypasses per-actor voice
// bindings; ActorRef only seeds speaker lookup. At most one of the two is
// normally present; when both appear, the explicit voice name wins.
type Command struct {
	// Name is the command token after the leading slash.
	Name string

	// VoiceName is the bracket-delimited explicit voice name, or "".
	VoiceName string

	// ActorRef is the brace-delimited actor id or name, or "".
	ActorRef string

	// Body is the text to speak. Never empty, but may be whitespace-only;
	// the processor rejects whitespace-only bodies as having no content to
	// speak.
	Body string
}

// commandPattern is the anchored single-line command grammar. Groups:
// 1 command, 2 optional [voiceName], 3 optional {actorRef}, 4 body.
var commandPattern = regexp.MustCompile(`^/(\S+)(?:[ ]+\[([[:alnum:]]+)\])?(?:[ ]+\{([[:alnum:] ]+)\})?[ ]+(.+)$`)

// ParseCommand parses a raw chat line against the command grammar.
// Returns nil when the text does not start with "/" or does not match the
// grammar. Whether the command token is one this module handles is the
// processor's decision, not the parser's.
func ParseCommand(raw string) *Command {
	m := commandPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	return &Command{
		Name:      m[1],
		VoiceName: m[2],
		ActorRef:  m[3],
		Body:      m[4],
	}
}

// Recognized reports whether the command token belongs to the closed set
// this module handles. The in-character command counts only while the
// auto-in-character setting is enabled.
func (c *Command) Recognized(autoInCharacter bool) bool {
	switch c.Name {
	case CommandTalk, CommandTalkSilent, CommandNarrate:
		return true
	case CommandInCharacter:
		return autoInCharacter
	default:
		return false
	}
}
