package dto

import (
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
)

// AmountRequest is the request body for deposit and withdraw. Amount is a
// pointer so an explicit zero reaches the ledger and fails as ZeroAmount.
type AmountRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
}

// SetCapRequest is the request body for PUT /admin/cap.
type SetCapRequest struct {
	Cap *int64 `json:"cap" binding:"required"`
}

// EventQuery binds the journal query string.
type EventQuery struct {
	Kind    string `form:"kind" binding:"omitempty,event_kind"`
	Account string `form:"account" binding:"omitempty,account_id"`
	Admin   string `form:"admin" binding:"omitempty,account_id"`
	After   int64  `form:"after" binding:"gte=0"`
	Limit   int    `form:"limit" binding:"gte=0,lte=1000"`
}

// Params converts the query into repository parameters.
func (q EventQuery) Params() ports.EventListParams {
	return ports.EventListParams{
		Filter: domain.EventFilter{
			Kind:    domain.EventKind(q.Kind),
			Account: domain.AccountID(q.Account),
			Admin:   domain.AccountID(q.Admin),
		},
		AfterSeq: q.After,
		Limit:    q.Limit,
	}
}

// ReceiptResponse is the response body for deposit and withdraw.
type ReceiptResponse struct {
	EventSeq   int64   `json:"event_seq"`
	EventID    string  `json:"event_id"`
	Kind       string  `json:"kind"`
	Account    string  `json:"account"`
	Amount     int64   `json:"amount"`
	Balance    int64   `json:"balance"`
	TransferID *string `json:"transfer_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// NewReceiptResponse converts a ledger receipt to its DTO.
func NewReceiptResponse(r *ports.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		EventSeq:  r.Event.Seq,
		EventID:   r.Event.ID.String(),
		Kind:      string(r.Event.Kind),
		Account:   r.Event.Account.String(),
		Amount:    r.Event.Amount,
		Balance:   r.Balance,
		CreatedAt: r.Event.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.Transfer != nil {
		id := r.Transfer.ID.String()
		resp.TransferID = &id
	}
	return resp
}

// BalanceResponse is the response for the balance query.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// VaultStatusResponse describes the safety controller and total custody.
type VaultStatusResponse struct {
	Admin        string `json:"admin"`
	DepositCap   int64  `json:"deposit_cap"`
	Paused       bool   `json:"paused"`
	Mode         string `json:"mode"`
	TotalCustody int64  `json:"total_custody"`
	UpdatedAt    string `json:"updated_at"`
}

// NewVaultStatusResponse builds the status DTO.
func NewVaultStatusResponse(state *domain.SafetyState, total int64) VaultStatusResponse {
	return VaultStatusResponse{
		Admin:        state.Admin.String(),
		DepositCap:   state.DepositCap,
		Paused:       state.Paused,
		Mode:         string(state.Mode()),
		TotalCustody: total,
		UpdatedAt:    state.UpdatedAt.Format(time.RFC3339),
	}
}

// EventListResponse wraps a page of journal records. NextAfter is the
// cursor for the following page.
type EventListResponse struct {
	Items     []domain.Event `json:"items"`
	NextAfter int64          `json:"next_after"`
}

// NewEventListResponse builds the page DTO; an empty page keeps the cursor.
func NewEventListResponse(events []domain.Event, after int64) EventListResponse {
	next := after
	if n := len(events); n > 0 {
		next = events[n-1].Seq
	}
	if events == nil {
		events = []domain.Event{}
	}
	return EventListResponse{Items: events, NextAfter: next}
}
