package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every blocking read in tests
const DefaultTimeout = 2 * time.Second

// HTTP Test Helpers

// AssertStatusCode fails if the response status code doesn't match expected
func AssertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSONError fails if the response doesn't contain an error field with the expected message
func AssertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedMsg string) {
	t.Helper()
	AssertStatusCode(t, w, expectedStatus)

	body := w.Body.String()
	if !strings.Contains(body, expectedMsg) {
		t.Errorf("expected error message %q in response, got: %s", expectedMsg, body)
	}
}

// AssertHeader fails if the response header doesn't match expected value
func AssertHeader(t *testing.T, w *httptest.ResponseRecorder, key, expected string) {
	t.Helper()
	got := w.Header().Get(key)
	if got != expected {
		t.Errorf("header %q: got %q, want %q", key, got, expected)
	}
}

// Request Helpers

// NewJSONRequest creates a new HTTP request with JSON body
func NewJSONRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeJSON decodes JSON response body into the given struct
func DecodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var result T
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode JSON response: %v. Body: %s", err, w.Body.String())
	}
	return result
}

// WebSocket Helpers

// WebSocketURL rewrites an httptest server URL to the ws scheme and appends path
func WebSocketURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}

// DialWebSocket opens a websocket connection and closes it when the test ends
func DialWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("failed to dial %s (status %d): %v", url, status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ReadJSON reads the next frame into T, failing after DefaultTimeout
func ReadJSON[T any](t *testing.T, conn *websocket.Conn) T {
	t.Helper()
	var frame T
	conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	conn.SetReadDeadline(time.Time{})
	return frame
}

// AssertNoFrame fails if a frame arrives within wait. The connection cannot
// be read from afterwards.
func AssertNoFrame(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(wait))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Errorf("expected no frame, got: %s", data)
	}
}
