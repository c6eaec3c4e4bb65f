//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"chat-relay/internal/domain"
	ws "chat-relay/internal/websocket"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// submit posts a message through the structured path
func submit(t *testing.T, text, author, userID string) domain.SubmitResult {
	t.Helper()
	result, err := postMessage(text, author, userID)
	require.NoError(t, err)
	return result
}

// postMessage is submit without the test handle, for use from goroutines
func postMessage(text, author, userID string) (domain.SubmitResult, error) {
	var result domain.SubmitResult

	body, err := json.Marshal(map[string]string{"text": text, "author": author, "userId": userID})
	if err != nil {
		return result, err
	}

	resp, err := httpClient.Post(baseURL+"/api/v1/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, err
	}
	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}

	err = json.Unmarshal(data, &result)
	return result, err
}

// listMessages reads the full log through the structured query
func listMessages(t *testing.T) []domain.Message {
	t.Helper()

	resp, err := httpClient.Get(baseURL + "/api/v1/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Messages []domain.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	return list.Messages
}

func wsURL(path string) string {
	return "ws" + strings.TrimPrefix(baseURL, "http") + path
}

// SocketClient is a raw socket connection
type SocketClient struct {
	t    *testing.T
	conn *websocket.Conn
}

// ConnectSocket opens a raw socket connection and waits until the hub has it
func ConnectSocket(t *testing.T) *SocketClient {
	t.Helper()

	before := testHub.ClientCount()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL("/socket"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return testHub.ClientCount() > before }, 2*time.Second, 5*time.Millisecond)
	return &SocketClient{t: t, conn: conn}
}

// Send submits a message over the socket path
func (c *SocketClient) Send(text, author, userID string) {
	c.t.Helper()
	err := c.conn.WriteJSON(map[string]any{
		"event": domain.EventAddChatMessage,
		"data":  map[string]string{"text": text, "author": author, "userId": userID},
	})
	require.NoError(c.t, err)
}

// Next waits for the next CHAT_MESSAGE_ADDED frame
func (c *SocketClient) Next() domain.Message {
	c.t.Helper()
	var frame struct {
		Event string         `json:"event"`
		Data  domain.Message `json:"data"`
	}
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(c.t, c.conn.ReadJSON(&frame))
	require.Equal(c.t, domain.EventChatMessageAdded, frame.Event)
	return frame.Data
}

// ExpectSilence fails if any frame arrives within wait. The client cannot read afterwards.
func (c *SocketClient) ExpectSilence(wait time.Duration) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := c.conn.ReadMessage()
	require.Error(c.t, err, "unexpected frame: %s", data)
}

// Listener is a subscription connection for MESSAGE_ADDED
type Listener struct {
	t    *testing.T
	conn *websocket.Conn
}

// Subscribe opens a subscription and waits for its acknowledgement
func Subscribe(t *testing.T) *Listener {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL("/api/v1/subscriptions?topic="+domain.TopicMessageAdded), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	l := &Listener{t: t, conn: conn}
	ack := l.frame()
	require.Equal(t, ws.FrameConnectionAck, ack.Type)
	return l
}

type listenerFrame struct {
	Type    string                     `json:"type"`
	Topic   string                     `json:"topic"`
	Payload domain.AddedMessagePayload `json:"payload"`
}

func (l *Listener) frame() listenerFrame {
	l.t.Helper()
	var frame listenerFrame
	require.NoError(l.t, l.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(l.t, l.conn.ReadJSON(&frame))
	return frame
}

// Next waits for the next published message
func (l *Listener) Next() domain.Message {
	l.t.Helper()
	frame := l.frame()
	require.Equal(l.t, ws.FrameData, frame.Type)
	require.Equal(l.t, domain.TopicMessageAdded, frame.Topic)
	return frame.Payload.AddedMessage
}

// ExpectSilence fails if any frame arrives within wait. The listener cannot read afterwards.
func (l *Listener) ExpectSilence(wait time.Duration) {
	l.t.Helper()
	require.NoError(l.t, l.conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := l.conn.ReadMessage()
	require.Error(l.t, err, "unexpected frame: %s", data)
}
