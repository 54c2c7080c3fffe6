// Package mock provides a mock chat sink for testing.
package mock

import (
	"context"
	"strconv"
	"sync"

	"github.com/acdevs/talking-actors/internal/chat"
)

// PostCall records one PostMessage invocation.
type PostCall struct {
	Context     chat.Context
	Flavor      string
	Content     string
	InCharacter bool
}

// UpdateCall records one UpdateFlavor invocation.
type UpdateCall struct {
	MessageID string
	Flavor    string
}

// Sink is a mock implementation of [chat.Sink] that records all calls.
type Sink struct {
	mu sync.Mutex

	// PostErr, when set, is returned from PostMessage.
	PostErr error

	// UpdateErr, when set, is returned from UpdateFlavor.
	UpdateErr error

	posts    []PostCall
	updates  []UpdateCall
	refreshd []string
	nextID   int
}

var _ chat.Sink = (*Sink)(nil)

func (s *Sink) PostMessage(_ context.Context, chatCtx *chat.Context, flavor, content string, inCharacter bool) (*chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, PostCall{
		Context:     *chatCtx,
		Flavor:      flavor,
		Content:     content,
		InCharacter: inCharacter,
	})
	if s.PostErr != nil {
		return nil, s.PostErr
	}
	s.nextID++
	return &chat.Message{ID: "msg-" + strconv.Itoa(s.nextID), Flavor: flavor}, nil
}

func (s *Sink) UpdateFlavor(_ context.Context, msg *chat.Message, flavor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, UpdateCall{MessageID: msg.ID, Flavor: flavor})
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	msg.Flavor = flavor
	return nil
}

func (s *Sink) Refresh(_ context.Context, msg *chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshd = append(s.refreshd, msg.ID)
}

// Posts returns a snapshot of all recorded PostMessage calls.
func (s *Sink) Posts() []PostCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PostCall, len(s.posts))
	copy(out, s.posts)
	return out
}

// Updates returns a snapshot of all recorded UpdateFlavor calls.
func (s *Sink) Updates() []UpdateCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UpdateCall, len(s.updates))
	copy(out, s.updates)
	return out
}

// Refreshed returns the ids of all messages passed to Refresh.
func (s *Sink) Refreshed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.refreshd))
	copy(out, s.refreshd)
	return out
}
