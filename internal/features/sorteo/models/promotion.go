package models

import "time"

// Promotion is informational copy shown next to a raffle.
type Promotion struct {
	ID              int64     `json:"id"`
	RaffleID        int64     `json:"raffle_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DiscountPercent int       `json:"discount_percent"`
	MinTickets      int       `json:"min_tickets"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}
