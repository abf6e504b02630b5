package ports

import (
	"context"
	"time"

	"custody-vault/internal/core/domain"
)

// TransferGateway moves value out to an account's external endpoint.
// Implementations must pass ctx to any callback they trigger.
type TransferGateway interface {
	Transfer(ctx context.Context, transfer *domain.Transfer) error
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(account domain.AccountID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Account   domain.AccountID
	ExpiresAt time.Time
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached record JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IdempotencyStore looks up and saves replayable responses across every
// configured layer.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	Save(ctx context.Context, record *domain.IdempotencyRecord) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// AuditService records administrative calls without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// EventPublisher receives every committed journal record.
type EventPublisher interface {
	Publish(event *domain.Event)
}

// EventStream hands out live subscriptions to committed records. cancel
// releases the subscription and closes the channel.
type EventStream interface {
	Subscribe(filter domain.EventFilter, buffer int) (events <-chan domain.Event, cancel func())
}

// --- Service Ports (Business Logic) ---

// LedgerService owns balances and the deposit/withdraw protocol.
type LedgerService interface {
	Deposit(ctx context.Context, account domain.AccountID, amount int64) (*Receipt, error)
	Withdraw(ctx context.Context, account domain.AccountID, amount int64) (*Receipt, error)
	Balance(ctx context.Context, account domain.AccountID) (int64, error)
	TotalCustody(ctx context.Context) (int64, error)
}

// Receipt describes a completed ledger operation.
type Receipt struct {
	Event    domain.Event
	Balance  int64
	Transfer *domain.Transfer // withdraw only
}

// SafetyController owns the administrator identity, the pause flag and the
// deposit cap.
type SafetyController interface {
	// AdmitDeposit checks paused, zero and cap, in that order.
	AdmitDeposit(ctx context.Context, amount int64) error
	Pause(ctx context.Context, caller domain.AccountID) error
	Unpause(ctx context.Context, caller domain.AccountID) error
	SetCap(ctx context.Context, caller domain.AccountID, depositCap int64) error
	Cap(ctx context.Context) (int64, error)
	Paused(ctx context.Context) (bool, error)
	Admin(ctx context.Context) (domain.AccountID, error)
	State(ctx context.Context) (*domain.SafetyState, error)
}

// JournalService reads and verifies the event journal.
type JournalService interface {
	List(ctx context.Context, params EventListParams) ([]domain.Event, error)
	Verify(ctx context.Context) (*ChainReport, error)
}

// ChainReport is the outcome of a full journal verification.
type ChainReport struct {
	Valid    bool   `json:"valid"`
	Records  int64  `json:"records"`
	HeadSeq  int64  `json:"head_seq"`
	HeadHash string `json:"head_hash"`
	Error    string `json:"error,omitempty"`
}
