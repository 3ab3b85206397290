package watch

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types broadcast to clients.
const (
	MessageBuilding = "building"
	MessageSuccess  = "success"
	MessageError    = "error"
)

// ReloadServer manages WebSocket connections of clients waiting for new
// declarations.
type ReloadServer struct {
	connections map[*websocket.Conn]bool
	broadcast   chan *ReloadMessage
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// ReloadMessage is one pass notification.
type ReloadMessage struct {
	Type      string   `json:"type"`
	Pass      string   `json:"pass,omitempty"`
	Timestamp int64    `json:"timestamp"`
	Files     []string `json:"files,omitempty"`
	Domains   []string `json:"domains,omitempty"`
	Duration  float64  `json:"duration,omitempty"` // Milliseconds
	Error     string   `json:"error,omitempty"`
}

// NewReloadServer creates a new reload server
func NewReloadServer(logger *zap.Logger) *ReloadServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	rs := &ReloadServer{
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan *ReloadMessage, 256),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				// localhost only
				return strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "https://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1") ||
					strings.HasPrefix(origin, "https://127.0.0.1")
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	go rs.run()

	return rs
}

// run handles the WebSocket connection lifecycle
func (rs *ReloadServer) run() {
	for {
		select {
		case <-rs.done:
			return

		case conn := <-rs.register:
			rs.mutex.Lock()
			rs.connections[conn] = true
			count := len(rs.connections)
			rs.mutex.Unlock()
			rs.logger.Debug("client connected", zap.Int("total", count))

		case conn := <-rs.unregister:
			rs.mutex.Lock()
			if _, ok := rs.connections[conn]; ok {
				delete(rs.connections, conn)
				conn.Close()
			}
			count := len(rs.connections)
			rs.mutex.Unlock()
			rs.logger.Debug("client disconnected", zap.Int("total", count))

		case message := <-rs.broadcast:
			rs.sendToAll(message)
		}
	}
}

// sendToAll sends a message to all connected clients
func (rs *ReloadServer) sendToAll(message *ReloadMessage) {
	messageJSON, err := json.Marshal(message)
	if err != nil {
		rs.logger.Warn("failed to marshal message", zap.Error(err))
		return
	}

	rs.mutex.RLock()
	var failedConns []*websocket.Conn
	for conn := range rs.connections {
		if err := conn.WriteMessage(websocket.TextMessage, messageJSON); err != nil {
			rs.logger.Debug("failed to send message", zap.Error(err))
			failedConns = append(failedConns, conn)
		}
	}
	rs.mutex.RUnlock()

	if len(failedConns) > 0 {
		rs.mutex.Lock()
		for _, conn := range failedConns {
			if _, ok := rs.connections[conn]; ok {
				conn.Close()
				delete(rs.connections, conn)
			}
		}
		rs.mutex.Unlock()
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket
func (rs *ReloadServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := rs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rs.logger.Debug("failed to upgrade connection", zap.Error(err))
		return
	}

	select {
	case rs.register <- conn:
	case <-rs.done:
		conn.Close()
		return
	}

	go rs.readMessages(conn)
}

// readMessages drains the client until it goes away.
func (rs *ReloadServer) readMessages(conn *websocket.Conn) {
	defer func() {
		select {
		case rs.unregister <- conn:
		case <-rs.done:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				rs.logger.Debug("websocket error", zap.Error(err))
			}
			return
		}
	}
}

func (rs *ReloadServer) send(msg *ReloadMessage) {
	msg.Timestamp = time.Now().Unix()
	select {
	case rs.broadcast <- msg:
	case <-rs.done:
	}
}

// NotifyBuilding announces a pass triggered by files.
func (rs *ReloadServer) NotifyBuilding(files []string) {
	rs.send(&ReloadMessage{Type: MessageBuilding, Files: files})
}

// NotifySuccess announces a completed pass.
func (rs *ReloadServer) NotifySuccess(pass string, domains []string, duration time.Duration) {
	rs.send(&ReloadMessage{
		Type:     MessageSuccess,
		Pass:     pass,
		Domains:  domains,
		Duration: float64(duration.Milliseconds()),
	})
}

// NotifyError announces a failed pass.
func (rs *ReloadServer) NotifyError(err error) {
	rs.send(&ReloadMessage{Type: MessageError, Error: err.Error()})
}

// ConnectionCount returns the number of active connections
func (rs *ReloadServer) ConnectionCount() int {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return len(rs.connections)
}

// Close closes all connections and stops the server
func (rs *ReloadServer) Close() {
	rs.closeOnce.Do(func() {
		close(rs.done)

		rs.mutex.Lock()
		defer rs.mutex.Unlock()
		for conn := range rs.connections {
			conn.Close()
		}
		rs.connections = make(map[*websocket.Conn]bool)
	})
}
