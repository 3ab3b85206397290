package watch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, rs *ReloadServer) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(rs.HandleWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return rs.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ReloadMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ReloadMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestReloadServer_Notifications(t *testing.T) {
	rs := NewReloadServer(nil)
	defer rs.Close()
	conn := dial(t, rs)

	rs.NotifyBuilding([]string{"users.go"})
	msg := readMessage(t, conn)
	assert.Equal(t, MessageBuilding, msg.Type)
	assert.Equal(t, []string{"users.go"}, msg.Files)
	assert.NotZero(t, msg.Timestamp)

	rs.NotifySuccess("pass-1", []string{"api"}, 1500*time.Millisecond)
	msg = readMessage(t, conn)
	assert.Equal(t, MessageSuccess, msg.Type)
	assert.Equal(t, "pass-1", msg.Pass)
	assert.Equal(t, []string{"api"}, msg.Domains)
	assert.Equal(t, float64(1500), msg.Duration)

	rs.NotifyError(errors.New("load packages: boom"))
	msg = readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, "load packages: boom", msg.Error)
}

func TestReloadServer_Disconnect(t *testing.T) {
	rs := NewReloadServer(nil)
	defer rs.Close()
	conn := dial(t, rs)

	conn.Close()
	require.Eventually(t, func() bool { return rs.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestReloadServer_RejectsForeignOrigin(t *testing.T) {
	rs := NewReloadServer(nil)
	defer rs.Close()

	server := httptest.NewServer(http.HandlerFunc(rs.HandleWebSocket))
	defer server.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), header)
	assert.Error(t, err)
}

func TestReloadServer_CloseIsIdempotent(t *testing.T) {
	rs := NewReloadServer(nil)
	rs.Close()
	rs.Close()

	done := make(chan struct{})
	go func() {
		rs.NotifyBuilding(nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notify blocked after Close")
	}
}
