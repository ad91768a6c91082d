package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seiyelan/raidhelper/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16
)

// ErrBridgeDisconnected is returned when no platform bridge is attached.
var ErrBridgeDisconnected = errors.New("chat: platform bridge not connected")

// event is the inbound frame produced by the platform bridge.
type event struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id,omitempty"`
	Content   string `json:"content"`
}

// action is the outbound frame consumed by the platform bridge.
type action struct {
	Type     string `json:"type"`
	TargetID string `json:"target_id"`
	Content  string `json:"content"`
}

// Gateway bridges the abstract Session contract onto a single WebSocket
// connection owned by the chat-platform adapter. The wire protocol of the
// platform itself stays on the far side of the bridge.
type Gateway struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	upgrader websocket.Upgrader
	dispatch func(ctx context.Context, msg Message)
	log      *zap.Logger
}

// NewGateway constructs a gateway that forwards inbound messages to dispatch.
func NewGateway(dispatch func(ctx context.Context, msg Message)) *Gateway {
	return &Gateway{
		dispatch: dispatch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		log: logger.WithModule("gateway"),
	}
}

// Serve upgrades the HTTP request and runs the read loop until the bridge
// disconnects. A newly attached bridge replaces any previous connection.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("bridge upgrade failed", zap.Error(err))
		return
	}

	g.mu.Lock()
	if g.conn != nil {
		_ = g.conn.Close()
	}
	g.conn = conn
	g.mu.Unlock()

	g.log.Info("platform bridge connected", zap.String("remote", conn.RemoteAddr().String()))

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go g.pingLoop(conn, done)
	defer close(done)

	g.readLoop(r.Context(), conn)

	g.mu.Lock()
	if g.conn == conn {
		g.conn = nil
	}
	g.mu.Unlock()
	_ = conn.Close()
	g.log.Info("platform bridge disconnected")
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("bridge read failed", zap.Error(err))
			}
			return
		}

		if ev.Type != "message" || ev.UserID == "" {
			continue
		}
		g.dispatch(ctx, Message{
			UserID:    ev.UserID,
			ChannelID: ev.ChannelID,
			Content:   ev.Content,
		})
	}
}

func (g *Gateway) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			g.mu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// SendUser delivers a direct message action to the bridge.
func (g *Gateway) SendUser(ctx context.Context, userID, text string) error {
	return g.write(action{Type: "send_user", TargetID: userID, Content: text})
}

// SendChannel delivers a channel message action to the bridge.
func (g *Gateway) SendChannel(ctx context.Context, channelID, text string) error {
	return g.write(action{Type: "send_channel", TargetID: channelID, Content: text})
}

func (g *Gateway) write(a action) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return ErrBridgeDisconnected
	}
	_ = g.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return g.conn.WriteJSON(a)
}
