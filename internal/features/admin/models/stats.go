package models

// Stats are the dashboard totals.
type Stats struct {
	TotalUsers    int64 `json:"total_users"`
	TotalRaffles  int64 `json:"total_raffles"`
	ActiveRaffles int64 `json:"active_raffles"`
	TotalTickets  int64 `json:"total_tickets"`
	// SoldTickets counts sold tickets including those that later won.
	SoldTickets   int64 `json:"sold_tickets"`
	WinnerTickets int64 `json:"winner_tickets"`
	// Revenue sums completed payments.
	Revenue int64 `json:"revenue"`
}
