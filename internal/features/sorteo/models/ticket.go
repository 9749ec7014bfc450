package models

import (
	"strings"
	"time"
)

type TicketState string

const (
	TicketAvailable TicketState = "available"
	TicketSold      TicketState = "sold"
	TicketWinner    TicketState = "winner"
)

// ParseTicketState accepts the stored names and the Spanish filter values
// used by the clients (disponible, vendido, ganador).
func ParseTicketState(s string) (TicketState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "disponible":
		return TicketAvailable, true
	case "sold", "vendido":
		return TicketSold, true
	case "winner", "ganador":
		return TicketWinner, true
	}
	return "", false
}

// @Description Ticket
type Ticket struct {
	ID          int64       `json:"id"`
	RaffleID    int64       `json:"raffle_id"`
	OwnerID     *int64      `json:"owner_id,omitempty"`
	Number      string      `json:"number" example:"2025100001"`
	Price       int64       `json:"price" example:"2000"`
	State       TicketState `json:"state" enums:"available,sold,winner"`
	PurchasedAt *time.Time  `json:"purchased_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`

	RaffleTitle string `json:"raffle_title,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"`
	OwnerEmail  string `json:"owner_email,omitempty"`
}

type GenerateResult struct {
	RaffleID    int64  `json:"raffle_id"`
	Created     int    `json:"created"`
	FirstNumber string `json:"first_number"`
	LastNumber  string `json:"last_number"`
}

// Reservation is a price quote over randomly chosen available tickets.
// It holds nothing; the sale is decided at confirmation.
type Reservation struct {
	RaffleID   int64    `json:"raffle_id"`
	Tickets    []Ticket `json:"tickets"`
	TotalPrice int64    `json:"total_price"`
}

// Quote validates a set of tickets for checkout.
type Quote struct {
	RaffleID int64    `json:"raffle_id"`
	Tickets  []Ticket `json:"tickets"`
	Amount   int64    `json:"amount"`
}

// PurchaseResult lists which requested ids were sold by a confirmation.
type PurchaseResult struct {
	Sold   []int64 `json:"sold"`
	Unsold []int64 `json:"unsold"`
}

func (r *PurchaseResult) Partial() bool {
	return len(r.Unsold) > 0
}

// UniqueIDs drops repeated ids, keeping first-seen order.
func UniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
