package models

import (
	"fmt"
	"time"
)

// Uniqueness selects which winner rows count as duplicates.
type Uniqueness string

const (
	// UniqueTicketPrize allows several winners per prize but never the same
	// ticket twice for one prize.
	UniqueTicketPrize Uniqueness = "ticket_prize"
	// UniquePrizePosition additionally allows one winner per prize position.
	UniquePrizePosition Uniqueness = "prize_position"
)

func ParseUniqueness(s string) (Uniqueness, error) {
	switch Uniqueness(s) {
	case UniqueTicketPrize, UniquePrizePosition:
		return Uniqueness(s), nil
	case "":
		return UniqueTicketPrize, nil
	}
	return "", fmt.Errorf("unknown winner uniqueness %q", s)
}

const (
	ModeFull  = "full"
	ModePrize = "prize"
)

// Winner is an append-only ledger row.
type Winner struct {
	ID            int64     `json:"id"`
	RaffleID      int64     `json:"raffle_id"`
	TicketID      int64     `json:"ticket_id"`
	ProductID     int64     `json:"product_id"`
	PrizePosition int       `json:"prize_position"`
	CreatedAt     time.Time `json:"created_at"`
}

// WinnerView is a ledger row joined with ticket, prize and buyer.
type WinnerView struct {
	Winner
	TicketNumber string `json:"ticket_number"`
	ProductName  string `json:"product_name"`
	OwnerID      *int64 `json:"owner_id,omitempty"`
	OwnerName    string `json:"owner_name,omitempty"`
	OwnerEmail   string `json:"owner_email,omitempty"`
}

type UnawardedPrize struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	PrizePosition int    `json:"prize_position"`
}

// DrawResult describes one engine invocation.
type DrawResult struct {
	RaffleID  int64            `json:"raffle_id"`
	Mode      string           `json:"mode" enums:"full,prize"`
	Winners   []WinnerView     `json:"winners"`
	Unawarded []UnawardedPrize `json:"unawarded,omitempty"`
	Requested int              `json:"requested,omitempty"`
	Skipped   int              `json:"skipped,omitempty"`
	Finalized bool             `json:"finalized"`
}

type SelectWinnersRequest struct {
	RaffleID  int64 `json:"raffle_id" binding:"required"`
	ProductID int64 `json:"product_id" binding:"required"`
	Count     int   `json:"count" binding:"required" example:"3"`
}
