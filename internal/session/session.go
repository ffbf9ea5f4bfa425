// Package session serves live filter sessions over WebSocket. Each
// connection owns one filter engine; every mutation message is answered
// with the view rebuilt for the new state.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"databoard/internal/filter"
	applog "databoard/internal/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// EngineProvider creates a filter engine over the current dataset.
type EngineProvider interface {
	NewEngine(ctx context.Context) (*filter.Engine, error)
}

// Manager upgrades connections and tracks open sessions.
type Manager struct {
	engines  EngineProvider
	upgrader websocket.Upgrader
	logger   *applog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// Session is one connected browser.
type Session struct {
	ID     string
	conn   *websocket.Conn
	engine *filter.Engine
	send   chan []byte
	done   chan struct{}
	logger *applog.Logger
}

func NewManager(engines EngineProvider, logger *applog.Logger) *Manager {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &Manager{
		engines: engines,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:   logger.WithComponent(applog.ComponentSession),
		sessions: make(map[string]*Session),
	}
}

// ServeHTTP loads the dataset, upgrades the connection and pushes the
// initial view. A dataset failure is reported as a plain 500 before upgrading.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	engine, err := m.engines.NewEngine(r.Context())
	if err != nil {
		m.logger.ErrorContext(r.Context(), "Failed to load dataset for session", applog.FieldError, err)
		http.Error(w, "Failed to process data", http.StatusInternalServerError)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		m.logger.WarnContext(r.Context(), "WebSocket upgrade failed", applog.FieldError, err)
		return
	}

	s := &Session{
		ID:     uuid.NewString(),
		conn:   conn,
		engine: engine,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	s.logger = m.logger.With(applog.FieldSessionID, s.ID)

	m.register(s)
	s.logger.Info("Session opened", "active_sessions", m.Active())

	st := engine.State()
	v := engine.View()
	s.reply(Reply{Type: TypeView, Filters: &st, View: &v})

	go s.writePump()
	go func() {
		s.readPump()
		m.unregister(s)
		s.logger.Info("Session closed", "active_sessions", m.Active())
	}()
}

// Active returns the number of open sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every open connection. The read pumps then unregister
// their sessions.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		_ = s.conn.Close()
	}
}

func (m *Manager) register(s *Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
}

func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()
}

// readPump owns the engine: requests are applied one at a time in arrival order.
func (s *Session) readPump() {
	defer func() {
		close(s.send)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Session read failed", applog.FieldError, err)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(Reply{Type: TypeError, Error: "invalid message: " + err.Error()})
			continue
		}

		start := time.Now()
		reply, err := Apply(s.engine, req)
		if err != nil {
			s.logger.Debug("Rejected session message", applog.FieldMessageType, req.Type, applog.FieldError, err)
			s.reply(Reply{Type: TypeError, Error: err.Error()})
			continue
		}
		if reply.Type == TypeView {
			s.logger.Debug("Filters applied",
				applog.FieldMessageType, req.Type,
				applog.FieldFilters, s.engine.State().Key(),
				applog.FieldRecords, reply.View.Summary.Count,
				applog.FieldDuration, time.Since(start).Milliseconds())
		}
		s.reply(reply)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(s.done)
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a message for the write pump. It is only called from the
// goroutine that later closes send. Messages are dropped once the write
// pump has stopped.
func (s *Session) reply(r Reply) {
	r.Session = s.ID
	data, err := json.Marshal(r)
	if err != nil {
		s.logger.Error("Failed to encode reply", applog.FieldError, err)
		return
	}
	select {
	case s.send <- data:
	case <-s.done:
	}
}
