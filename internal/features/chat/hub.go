package chat

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/platform/metrics"
)

// Hub owns the session registry. All registry mutation happens on the Run
// goroutine; other goroutines talk to it through channels.
type Hub struct {
	register   chan *Session
	unregister chan *Session
	broadcast  chan Outbound
	done       chan struct{}
	online     atomic.Int64

	sessions map[string]*Session
	metrics  *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan Outbound, 64),
		done:       make(chan struct{}),
		sessions:   make(map[string]*Session),
		metrics:    m,
	}
}

// Run serves the hub until ctx is cancelled, then closes every session.
func (h *Hub) Run(ctx context.Context) {
	log := logger.Component("chat")
	log.Info().Msg("Chat hub started")

	defer func() {
		close(h.done)
		for id, s := range h.sessions {
			close(s.send)
			delete(h.sessions, id)
		}
		h.setOnline()
		log.Info().Msg("Chat hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.sessions[s.ID] = s
			h.setOnline()
			log.Debug().Str("session_id", s.ID).Int64("user_id", s.UserID).Msg("Session joined")
			h.fanOut(Outbound{Type: TypePresence, Online: len(h.sessions)})

		case s := <-h.unregister:
			if _, ok := h.sessions[s.ID]; !ok {
				continue
			}
			delete(h.sessions, s.ID)
			close(s.send)
			h.setOnline()
			log.Debug().Str("session_id", s.ID).Int64("user_id", s.UserID).Msg("Session left")
			h.fanOut(Outbound{Type: TypePresence, Online: len(h.sessions)})

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// Online is the number of connected sessions.
func (h *Hub) Online() int {
	return int(h.online.Load())
}

// Join registers s. It reports false when the hub is no longer running.
func (h *Hub) Join(s *Session) bool {
	select {
	case h.register <- s:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Leave(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

func (h *Hub) Broadcast(msg Outbound) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

func (h *Hub) fanOut(msg Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode chat frame")
		return
	}
	for id, s := range h.sessions {
		select {
		case s.send <- data:
		default:
			// slow consumer
			delete(h.sessions, id)
			close(s.send)
			h.setOnline()
		}
	}
}

func (h *Hub) setOnline() {
	h.online.Store(int64(len(h.sessions)))
	h.metrics.ChatSessions(len(h.sessions))
}
