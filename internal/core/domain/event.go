package domain

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// EventKind names an observability record.
type EventKind string

const (
	EventDeposit        EventKind = "DEPOSIT"
	EventWithdraw       EventKind = "WITHDRAW"
	EventPauseActivated EventKind = "PAUSE_ACTIVATED"
)

// Valid returns true for the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventDeposit, EventWithdraw, EventPauseActivated:
		return true
	}
	return false
}

// GenesisHash is the PrevHash of the first journal record.
const GenesisHash = ""

// ErrChainBroken is returned when the journal hash chain does not verify.
var ErrChainBroken = errors.New("event journal hash chain broken")

// Event is an append-only journal record. Deposit and Withdraw carry the
// account; PauseActivated carries the administrator.
type Event struct {
	Seq       int64     `json:"seq"`
	ID        uuid.UUID `json:"id"`
	Kind      EventKind `json:"kind"`
	Account   AccountID `json:"account,omitempty"`
	Admin     AccountID `json:"admin,omitempty"`
	Amount    int64     `json:"amount"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDepositEvent builds an unsealed Deposit record.
func NewDepositEvent(account AccountID, amount int64) *Event {
	return newEvent(EventDeposit, account, "", amount)
}

// NewWithdrawEvent builds an unsealed Withdraw record.
func NewWithdrawEvent(account AccountID, amount int64) *Event {
	return newEvent(EventWithdraw, account, "", amount)
}

// NewPauseActivatedEvent builds an unsealed PauseActivated record.
func NewPauseActivatedEvent(admin AccountID) *Event {
	return newEvent(EventPauseActivated, "", admin, 0)
}

func newEvent(kind EventKind, account, admin AccountID, amount int64) *Event {
	return &Event{
		ID:      uuid.New(),
		Kind:    kind,
		Account: account,
		Admin:   admin,
		Amount:  amount,
		// postgres timestamptz keeps microseconds; the hash must survive a round trip
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// FilterKey is the subscription key: the account for ledger records, the
// administrator for PauseActivated.
func (e *Event) FilterKey() AccountID {
	if e.Kind == EventPauseActivated {
		return e.Admin
	}
	return e.Account
}

// Digest computes the BLAKE2b-256 hash of the record chained onto prevHash.
// Seq is excluded: it is assigned by storage after sealing.
func (e *Event) Digest(prevHash string) string {
	h, _ := blake2b.New256(nil) // nil key never errors

	writeField := func(b []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(b)))
		h.Write(n[:])
		h.Write(b)
	}

	writeField([]byte(prevHash))
	writeField(e.ID[:])
	writeField([]byte(e.Kind))
	writeField([]byte(e.Account))
	writeField([]byte(e.Admin))

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], uint64(e.Amount))
	writeField(num[:])
	binary.BigEndian.PutUint64(num[:], uint64(e.CreatedAt.UnixMicro()))
	writeField(num[:])

	return hex.EncodeToString(h.Sum(nil))
}

// Seal links the record to its predecessor.
func (e *Event) Seal(prevHash string) {
	e.PrevHash = prevHash
	e.Hash = e.Digest(prevHash)
}

// VerifyChain checks that events (ascending by Seq) link onto anchor and
// that every hash matches its content.
func VerifyChain(events []Event, anchor string) error {
	prev := anchor
	for i := range events {
		e := &events[i]
		if e.PrevHash != prev {
			return fmt.Errorf("%w: seq %d does not link to its predecessor", ErrChainBroken, e.Seq)
		}
		if e.Hash != e.Digest(e.PrevHash) {
			return fmt.Errorf("%w: seq %d content does not match its hash", ErrChainBroken, e.Seq)
		}
		prev = e.Hash
	}
	return nil
}

// EventFilter selects journal records. Zero fields match everything.
type EventFilter struct {
	Kind    EventKind
	Account AccountID
	Admin   AccountID
}

// Match reports whether e passes the filter.
func (f EventFilter) Match(e *Event) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Account != "" && e.Account != f.Account {
		return false
	}
	if f.Admin != "" && e.Admin != f.Admin {
		return false
	}
	return true
}
