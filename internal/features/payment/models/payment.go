package models

import (
	"time"

	sorteomodels "sorteos-backend/internal/features/sorteo/models"
)

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentFailed    PaymentState = "failed"
	PaymentRefunded  PaymentState = "refunded"
)

const (
	ProviderPayPal    = "paypal"
	ProviderTransbank = "transbank"
)

// Payload is the opaque provider data kept with a payment.
type Payload struct {
	TicketIDs []int64 `json:"ticketIds"`
	Reference string  `json:"reference"`
}

type Payment struct {
	ID            int64        `json:"id"`
	UserID        *int64       `json:"user_id,omitempty"`
	RaffleID      *int64       `json:"raffle_id,omitempty"`
	Amount        int64        `json:"amount"`
	Provider      string       `json:"provider" enums:"paypal,transbank"`
	TransactionID string       `json:"transaction_id,omitempty"`
	Reference     string       `json:"reference"`
	State         PaymentState `json:"state" enums:"pending,completed,failed,refunded"`
	Payload       Payload      `json:"payload"`
	// NeedsReview marks a completed payment whose tickets were only partly sold.
	NeedsReview bool      `json:"needs_review"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CheckoutRequest struct {
	Provider  string  `json:"provider" binding:"required" example:"paypal"`
	TicketIDs []int64 `json:"ticket_ids" binding:"required"`
}

type CheckoutResponse struct {
	PaymentID   int64  `json:"payment_id"`
	Reference   string `json:"reference"`
	ApprovalURL string `json:"approval_url"`
	Amount      int64  `json:"amount"`
}

type ConfirmRequest struct {
	Token string `json:"token"`
}

// Completion is the outcome of completing a payment. Purchase is nil when the
// payment had already been completed before.
type Completion struct {
	Payment  *Payment                     `json:"payment"`
	Purchase *sorteomodels.PurchaseResult `json:"purchase,omitempty"`
}
