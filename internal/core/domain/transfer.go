package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transfer is an outbound movement of value to an account's external
// endpoint. ID lets the receiving rail deduplicate retries.
type Transfer struct {
	ID          uuid.UUID `json:"transfer_id"`
	To          AccountID `json:"account"`
	Amount      int64     `json:"amount"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewTransfer creates a transfer request with a fresh ID.
func NewTransfer(to AccountID, amount int64) *Transfer {
	return &Transfer{
		ID:          uuid.New(),
		To:          to,
		Amount:      amount,
		RequestedAt: time.Now().UTC(),
	}
}
