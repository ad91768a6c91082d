package chat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seiyelan/raidhelper/pkg/logger"
)

// Handler processes a message that did not belong to an in-flight conversation.
type Handler func(ctx context.Context, sess Session, msg Message)

// Hub routes inbound messages: a reply for a conversation currently awaiting a
// prompt is delivered to that conversation, anything else starts the handler
// on a fresh session. At most one conversation per user is live at a time.
type Hub struct {
	mu      sync.Mutex
	sender  Sender
	handler Handler
	active  map[string]*hubSession
	log     *zap.Logger
}

// NewHub constructs a hub over the given outbound sender.
func NewHub(sender Sender, handler Handler) *Hub {
	return &Hub{
		sender:  sender,
		handler: handler,
		active:  make(map[string]*hubSession),
		log:     logger.WithModule("chat"),
	}
}

// Dispatch routes one inbound message. It never blocks on conversation work;
// handlers run on their own goroutine.
func (h *Hub) Dispatch(ctx context.Context, msg Message) {
	if msg.UserID == "" {
		return
	}

	h.mu.Lock()
	if sess, ok := h.active[msg.UserID]; ok {
		if sess.deliver(msg.Content) {
			h.mu.Unlock()
			return
		}
		// The conversation exists but is not awaiting input; drop the message
		// rather than interleaving it into a later prompt.
		h.mu.Unlock()
		h.log.Debug("message dropped; conversation busy", zap.String("user", msg.UserID))
		return
	}

	sess := newHubSession(h.sender, msg.UserID, msg.ChannelID)
	h.active[msg.UserID] = sess
	h.mu.Unlock()

	go func() {
		defer h.release(msg.UserID)
		h.handler(ctx, sess, msg)
	}()
}

func (h *Hub) release(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.active, userID)
}

// hubSession is the Session implementation backed by the hub's sender.
type hubSession struct {
	sender    Sender
	userID    string
	channelID string

	mu      sync.Mutex
	waiting chan string
}

func newHubSession(sender Sender, userID, channelID string) *hubSession {
	return &hubSession{sender: sender, userID: userID, channelID: channelID}
}

func (s *hubSession) UserID() string    { return s.userID }
func (s *hubSession) ChannelID() string { return s.channelID }

func (s *hubSession) Send(ctx context.Context, text string) error {
	if s.channelID != "" {
		return s.sender.SendChannel(ctx, s.channelID, text)
	}
	return s.sender.SendUser(ctx, s.userID, text)
}

func (s *hubSession) SendWithDelay(ctx context.Context, text string, delay time.Duration) error {
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Send(ctx, text)
}

func (s *hubSession) Prompt(ctx context.Context, timeout time.Duration) (string, error) {
	s.mu.Lock()
	if s.waiting != nil {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	ch := make(chan string, 1)
	s.waiting = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.waiting = nil
		s.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		return "", ErrPromptTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// deliver hands a reply to a waiting Prompt. Returns false when the session is
// not currently awaiting input.
func (s *hubSession) deliver(content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.waiting == nil {
		return false
	}
	select {
	case s.waiting <- content:
		return true
	default:
		return false
	}
}
