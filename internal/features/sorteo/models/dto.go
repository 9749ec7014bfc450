package models

import "time"

type ProductInput struct {
	Name          string `json:"name" binding:"required" example:"Bicicleta"`
	Description   string `json:"description"`
	ImageURL      string `json:"image_url"`
	PrizePosition int    `json:"prize_position" example:"1"`
}

// CreateRaffleRequest creates a raffle. Prizes without a position take
// their list order starting at 1.
type CreateRaffleRequest struct {
	Title       string         `json:"title" binding:"required"`
	Description string         `json:"description"`
	ImageURL    string         `json:"image_url"`
	TicketPrice int64          `json:"ticket_price"`
	DrawAt      time.Time      `json:"draw_at" binding:"required"`
	Products    []ProductInput `json:"products"`
}

// UpdateRaffleRequest edits an active raffle. A non-nil Products replaces
// the prize list.
type UpdateRaffleRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	ImageURL    *string         `json:"image_url"`
	TicketPrice *int64          `json:"ticket_price"`
	DrawAt      *time.Time      `json:"draw_at"`
	Products    *[]ProductInput `json:"products"`
}

type GenerateTicketsRequest struct {
	Count int   `json:"count" binding:"required" example:"100"`
	Price int64 `json:"price" example:"2000"`
}

type ReserveRequest struct {
	RaffleID int64 `json:"raffle_id" binding:"required"`
	Quantity int   `json:"quantity" binding:"required" example:"3"`
}

type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

type PromotionRequest struct {
	RaffleID        int64  `json:"raffle_id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DiscountPercent int    `json:"discount_percent"`
	MinTickets      int    `json:"min_tickets"`
	Active          *bool  `json:"active"`
}
