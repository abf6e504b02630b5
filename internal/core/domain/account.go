package domain

import (
	"errors"
	"math"
	"strings"
	"time"
)

// maxAccountIDLen bounds identities accepted from tokens and config.
const maxAccountIDLen = 128

// AccountID is the opaque identity naming a custody claim. It always comes
// from the authenticated caller, never from request payloads.
type AccountID string

// Valid reports whether the identity is usable as a ledger key.
func (a AccountID) Valid() bool {
	s := string(a)
	return s != "" && len(s) <= maxAccountIDLen && strings.TrimSpace(s) == s
}

func (a AccountID) String() string {
	return string(a)
}

// ErrInsufficientBalance is returned by storage when a debit would drive a
// balance below zero.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Account is a ledger row. An account that was never credited is
// indistinguishable from one with a zero balance.
type Account struct {
	ID        AccountID `json:"id"`
	Balance   int64     `json:"balance"` // smallest unit
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanCredit reports whether adding amount to balance stays within int64.
func CanCredit(balance, amount int64) bool {
	return amount <= math.MaxInt64-balance
}
