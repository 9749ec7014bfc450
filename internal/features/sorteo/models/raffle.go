package models

import "time"

type RaffleState string

const (
	RaffleActive    RaffleState = "active"
	RaffleFinalized RaffleState = "finalized"
	RaffleCancelled RaffleState = "cancelled"
)

func (s RaffleState) Valid() bool {
	switch s {
	case RaffleActive, RaffleFinalized, RaffleCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves the state.
func (s RaffleState) Terminal() bool {
	return s == RaffleFinalized || s == RaffleCancelled
}

// Raffle is a sorteo with its lifecycle state.
// @Description Raffle
type Raffle struct {
	ID          int64       `json:"id" example:"1"`
	Title       string      `json:"title" example:"Gran sorteo de octubre"`
	Description string      `json:"description"`
	ImageURL    string      `json:"image_url"`
	TicketPrice int64       `json:"ticket_price" example:"2000" description:"Default ticket price in minor units"`
	DrawAt      time.Time   `json:"draw_at"`
	State       RaffleState `json:"state" enums:"active,finalized,cancelled"`
	OwnerID     *int64      `json:"owner_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Product is a prize. Position 1 is the highest prize.
type Product struct {
	ID            int64     `json:"id"`
	RaffleID      int64     `json:"raffle_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	ImageURL      string    `json:"image_url"`
	PrizePosition int       `json:"prize_position" example:"1"`
	CreatedAt     time.Time `json:"created_at"`
}

type RaffleStats struct {
	TotalTickets     int `json:"total_tickets"`
	SoldTickets      int `json:"sold_tickets"`
	AvailableTickets int `json:"available_tickets"`
	WinnerTickets    int `json:"winner_tickets"`
	Prizes           int `json:"prizes"`
}

// RaffleSummary is a list entry.
type RaffleSummary struct {
	Raffle
	Stats RaffleStats `json:"stats"`
}

// RaffleDetail is a raffle with its prizes and ticket counters.
type RaffleDetail struct {
	Raffle
	Products []Product  `json:"products"`
	Stats    RaffleStats `json:"stats"`
}
