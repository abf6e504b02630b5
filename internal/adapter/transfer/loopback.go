package transfer

import (
	"context"
	"sync"

	"custody-vault/internal/core/domain"

	"github.com/rs/zerolog"
)

// Loopback accepts every transfer and remembers it. It backs development
// runs and tests that have no payout rail.
type Loopback struct {
	mu   sync.Mutex
	sent []domain.Transfer
	log  zerolog.Logger
}

// NewLoopback creates an empty loopback gateway.
func NewLoopback(log zerolog.Logger) *Loopback {
	return &Loopback{log: log}
}

// Transfer implements ports.TransferGateway.
func (l *Loopback) Transfer(ctx context.Context, t *domain.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	l.sent = append(l.sent, *t)
	l.mu.Unlock()

	l.log.Debug().Str("transfer_id", t.ID.String()).Str("account", t.To.String()).Int64("amount", t.Amount).Msg("loopback transfer")
	return nil
}

// Sent returns a copy of every accepted transfer in order.
func (l *Loopback) Sent() []domain.Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Transfer, len(l.sent))
	copy(out, l.sent)
	return out
}

// Total is the sum of every accepted transfer.
func (l *Loopback) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total int64
	for _, t := range l.sent {
		total += t.Amount
	}
	return total
}
