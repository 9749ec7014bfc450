package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sorteos-backend/internal/common/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	maxTextRunes   = 1000
	sendBuffer     = 32
)

// Session is one connected client. It carries its own identity and buffer.
type Session struct {
	ID       string
	UserID   int64
	Name     string
	JoinedAt time.Time

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

func NewSession(hub *Hub, conn *websocket.Conn, userID int64, name string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     name,
		JoinedAt: time.Now().UTC(),
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		hub:      hub,
	}
}

// Serve joins the hub and pumps frames until the connection drops.
func (s *Session) Serve() {
	if !s.hub.Join(s) {
		_ = s.conn.Close()
		return
	}
	go s.writePump()
	s.readPump()
}

func (s *Session) readPump() {
	defer func() {
		s.hub.Leave(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var in Inbound
		if err := s.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Str("session_id", s.ID).Msg("Chat connection closed")
			}
			return
		}
		if in.Type != TypeMessage {
			continue
		}
		text := strings.TrimSpace(in.Text)
		if text == "" || utf8.RuneCountInString(text) > maxTextRunes {
			continue
		}

		now := time.Now().UTC()
		s.hub.Broadcast(Outbound{
			Type:   TypeMessage,
			User:   s.Name,
			UserID: s.UserID,
			Text:   text,
			SentAt: &now,
		})
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
