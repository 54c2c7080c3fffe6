package config

import (
	"fmt"
	"sync"
)

// Settings keys accepted by [Settings.Set]. They mirror the host module's
// setting names so settings-update events can be forwarded verbatim.
const (
	KeyNarratorActor   = "narrator-actor"
	KeyPostToChat      = "post-to-chat"
	KeyAutoInCharacter = "auto-in-character"
	KeyAllowUsers      = "allow-users"
)

// Settings is the live settings store. It starts from the configured
// defaults and is mutated at runtime by settings-update events from the
// host; the chat processor and speaker resolver read it on every message.
//
// Safe for concurrent use.
type Settings struct {
	mu              sync.RWMutex
	narratorActor   string
	postToChat      bool
	autoInCharacter bool
	allowUsers      bool
}

// NewSettings creates a live settings store seeded from defaults.
func NewSettings(defaults DefaultsConfig) *Settings {
	return &Settings{
		narratorActor:   defaults.NarratorActor,
		postToChat:      defaults.PostToChat,
		autoInCharacter: defaults.AutoInCharacter,
		allowUsers:      defaults.AllowUsers,
	}
}

// NarratorActorID returns the actor id spoken as the narrator, or "".
func (s *Settings) NarratorActorID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.narratorActor
}

// PostToChat reports whether spoken messages are echoed to chat.
func (s *Settings) PostToChat() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.postToChat
}

// AutoInCharacter reports whether the /ic command is interpreted.
func (s *Settings) AutoInCharacter() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoInCharacter
}

// AllowUsers reports whether non-GM users may use talk commands.
func (s *Settings) AllowUsers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowUsers
}

// Set applies one settings-update event. Boolean settings accept bool
// values, the narrator actor accepts a string. Unknown keys and mistyped
// values are rejected with an error so the gateway can report them back.
func (s *Settings) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch key {
	case KeyNarratorActor:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("config: setting %q wants a string, got %T", key, value)
		}
		s.narratorActor = v
	case KeyPostToChat, KeyAutoInCharacter, KeyAllowUsers:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("config: setting %q wants a bool, got %T", key, value)
		}
		switch key {
		case KeyPostToChat:
			s.postToChat = v
		case KeyAutoInCharacter:
			s.autoInCharacter = v
		case KeyAllowUsers:
			s.allowUsers = v
		}
	default:
		return fmt.Errorf("config: unknown setting %q", key)
	}
	return nil
}
