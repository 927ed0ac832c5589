package events

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 20 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub keeps one websocket per account and pushes events to it.
type Hub struct {
	logger Logger

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*websocket.Conn
	locks map[string]*sync.Mutex
}

func NewHub(logger Logger, allowedOrigins []string) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		conns: make(map[string]*websocket.Conn),
		locks: make(map[string]*sync.Mutex),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeWS upgrades the request and registers the connection for accountID.
// A newer connection for the same account replaces the old one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, accountID string) {
	if accountID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logf(true, "events: ws upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	if old, ok := h.conns[accountID]; ok {
		_ = old.Close()
	}
	h.conns[accountID] = conn
	if _, ok := h.locks[accountID]; !ok {
		h.locks[accountID] = &sync.Mutex{}
	}
	h.mu.Unlock()

	h.logf(false, "events: account %s connected", accountID)

	go h.pingLoop(accountID, conn)
	go h.readLoop(accountID, conn)
}

// Connected reports whether accountID has a live connection.
func (h *Hub) Connected(accountID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[accountID]
	return ok
}

// Publish writes the event to every connected recipient.
func (h *Hub) Publish(_ context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logf(true, "events: marshal %s: %v", ev.Kind, err)
		return
	}
	for _, id := range dedupe(ev.Recipients) {
		h.safeWrite(id, func(c *websocket.Conn) error {
			return c.WriteMessage(websocket.TextMessage, data)
		})
	}
}

func (h *Hub) pingLoop(id string, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.RLock()
		alive := h.conns[id] == conn
		h.mu.RUnlock()
		if !alive {
			return
		}
		h.safeWrite(id, func(c *websocket.Conn) error {
			return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})
	}
}

func (h *Hub) readLoop(id string, conn *websocket.Conn) {
	defer h.closeConn(id, conn)

	conn.SetReadLimit(4 << 10)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(message)), "ping") {
			h.safeWrite(id, func(c *websocket.Conn) error {
				return c.WriteMessage(websocket.TextMessage, []byte("pong"))
			})
		}
	}
}

func (h *Hub) closeConn(id string, conn *websocket.Conn) {
	_ = conn.Close()
	h.mu.Lock()
	if current, ok := h.conns[id]; ok && current == conn {
		delete(h.conns, id)
		delete(h.locks, id)
	}
	h.mu.Unlock()
}

func (h *Hub) safeWrite(id string, fn func(*websocket.Conn) error) {
	h.mu.RLock()
	conn := h.conns[id]
	mu := h.locks[id]
	h.mu.RUnlock()
	if conn == nil || mu == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := fn(conn); err != nil {
		h.logf(true, "events: write to %s failed: %v", id, err)
		h.closeConn(id, conn)
	}
}

func (h *Hub) logf(isErr bool, format string, args ...interface{}) {
	if h.logger == nil {
		return
	}
	if isErr {
		h.logger.Errorf(format, args...)
		return
	}
	h.logger.Infof(format, args...)
}
