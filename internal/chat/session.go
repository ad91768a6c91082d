package chat

import (
	"context"
	"errors"
	"time"
)

// ErrPromptTimeout is returned when no reply arrives before the prompt deadline.
var ErrPromptTimeout = errors.New("chat: prompt timed out")

// ErrSessionClosed is returned when the underlying session went away mid-prompt.
var ErrSessionClosed = errors.New("chat: session closed")

// Message is one inbound chat event routed through the hub.
type Message struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id,omitempty"`
	Content   string `json:"content"`
}

// Session is the abstract conversational channel the core consumes. One
// session is bound to exactly one (user, channel) pair and shares no state
// with other concurrent sessions.
type Session interface {
	UserID() string
	ChannelID() string

	// Send delivers a message to the session's originating channel (or the
	// user directly for private sessions).
	Send(ctx context.Context, text string) error

	// SendWithDelay waits for the configured inter-message delay before
	// sending, respecting outbound rate limits.
	SendWithDelay(ctx context.Context, text string, delay time.Duration) error

	// Prompt suspends until the user's next message or the timeout.
	Prompt(ctx context.Context, timeout time.Duration) (string, error)
}

// Sender delivers outbound messages to the chat platform. Implementations are
// fire-and-forget friendly: callers log and swallow errors where delivery is
// best effort.
type Sender interface {
	SendUser(ctx context.Context, userID, text string) error
	SendChannel(ctx context.Context, channelID, text string) error
}
