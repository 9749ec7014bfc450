package chat

import "time"

const (
	TypeMessage  = "message"
	TypePresence = "presence"
)

// Inbound is a frame sent by a client.
type Inbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Outbound is a frame broadcast to every session.
type Outbound struct {
	Type   string     `json:"type"`
	User   string     `json:"user,omitempty"`
	UserID int64      `json:"user_id,omitempty"`
	Text   string     `json:"text,omitempty"`
	SentAt *time.Time `json:"sent_at,omitempty"`
	Online int        `json:"online,omitempty"`
}
