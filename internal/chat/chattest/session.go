// Package chattest provides scripted chat doubles for driver and service tests.
package chattest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/seiyelan/raidhelper/internal/chat"
)

// Session replays a fixed list of replies and records everything sent to it.
// An exhausted reply script behaves like a user who stopped answering.
type Session struct {
	User    string
	Channel string

	mu      sync.Mutex
	replies []string
	sent    []string
}

// NewSession builds a scripted session for the given user.
func NewSession(userID string, replies ...string) *Session {
	return &Session{User: userID, replies: replies}
}

func (s *Session) UserID() string    { return s.User }
func (s *Session) ChannelID() string { return s.Channel }

func (s *Session) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *Session) SendWithDelay(ctx context.Context, text string, delay time.Duration) error {
	return s.Send(ctx, text)
}

func (s *Session) Prompt(ctx context.Context, timeout time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.replies) == 0 {
		return "", chat.ErrPromptTimeout
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// Sent returns a copy of everything sent so far.
func (s *Session) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// Recorder is a chat.Sender that records outbound deliveries.
type Recorder struct {
	mu       sync.Mutex
	Users    map[string][]string
	Channels map[string][]string
	FailFor  map[string]bool
}

// NewRecorder builds an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Users:    make(map[string][]string),
		Channels: make(map[string][]string),
		FailFor:  make(map[string]bool),
	}
}

func (r *Recorder) SendUser(ctx context.Context, userID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailFor[userID] {
		return fmt.Errorf("chattest: recipient %s unreachable", userID)
	}
	r.Users[userID] = append(r.Users[userID], text)
	return nil
}

func (r *Recorder) SendChannel(ctx context.Context, channelID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailFor[channelID] {
		return fmt.Errorf("chattest: channel %s unreachable", channelID)
	}
	r.Channels[channelID] = append(r.Channels[channelID], text)
	return nil
}

// UserCount returns how many messages a user received.
func (r *Recorder) UserCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Users[userID])
}

// ChannelCount returns how many messages a channel received.
func (r *Recorder) ChannelCount(channelID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Channels[channelID])
}
