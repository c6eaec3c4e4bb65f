package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/internal/domain"
	"chat-relay/internal/observability"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // Must be less than pongWait
	maxMessageSize = 8192
)

// MessageAcceptor stores messages submitted over a raw socket
type MessageAcceptor interface {
	AcceptSocketMessage(ctx context.Context, input domain.MessageInput) domain.Message
}

// Client is one raw socket connection. It receives every broadcast frame and
// submits ADD_CHAT_MESSAGE frames, whose acknowledgement is sent to it alone.
type Client struct {
	ID string

	hub       *Hub
	conn      *websocket.Conn
	acceptor  MessageAcceptor
	writeMu   sync.Mutex
	closed    atomic.Bool
	ctx       context.Context
	ctxCancel context.CancelFunc

	sendMu     sync.Mutex
	send       chan []byte
	sendClosed bool
}

// NewClient creates a client for an upgraded connection
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, acceptor MessageAcceptor, bufferSize int) *Client {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	id := uuid.NewString()
	clientCtx, cancel := context.WithCancel(observability.WithClientID(ctx, id))

	return &Client{
		ID:        id,
		hub:       hub,
		conn:      conn,
		acceptor:  acceptor,
		send:      make(chan []byte, bufferSize),
		ctx:       clientCtx,
		ctxCancel: cancel,
	}
}

// ReadPump reads frames from the connection until it closes
func (c *Client) ReadPump() {
	log := observability.FromContext(c.ctx)

	defer func() {
		c.ctxCancel()
		c.hub.Unregister(c)
		c.closeConnection()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Warn("failed to set read deadline", slog.String("error", err.Error()))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Warn("failed to set read deadline in pong handler", slog.String("error", err.Error()))
			return err
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("websocket error", slog.String("error", err.Error()))
			}
			break
		}

		c.handleFrame(log, message)
	}
}

func (c *Client) handleFrame(log *slog.Logger, message []byte) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		log.Warn("invalid frame format", slog.String("error", err.Error()))
		return
	}

	if frame.Event != domain.EventAddChatMessage {
		log.Warn("unknown socket event", slog.String("event", frame.Event))
		return
	}

	var input domain.MessageInput
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &input); err != nil {
			log.Warn("invalid message payload", slog.String("error", err.Error()))
			return
		}
	}

	msg := c.acceptor.AcceptSocketMessage(c.ctx, input)

	data, err := EncodeFrame(domain.EventChatMessageAdded, msg)
	if err != nil {
		log.Error("failed to encode reply",
			slog.String("error", err.Error()),
			slog.String("message_id", msg.ID))
		return
	}

	if !c.enqueue(data) {
		log.Warn("dropping reply, send buffer unavailable", slog.String("message_id", msg.ID))
		return
	}
	observability.WebSocketMessagesSent.WithLabelValues(socketChannel, domain.EventChatMessageAdded).Inc()
}

// WritePump pumps frames from the send buffer to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				_ = c.writeMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue queues data without blocking. It returns false if the buffer is
// full or the send channel has been closed.
func (c *Client) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel once
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// writeMessage writes a message to the WebSocket connection in a thread-safe manner
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return websocket.ErrCloseSent
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// closeConnection safely closes the WebSocket connection
func (c *Client) closeConnection() {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		c.conn.Close()
		c.writeMu.Unlock()
	}
}
