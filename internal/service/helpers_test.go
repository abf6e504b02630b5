package service

import (
	"context"
	"io"
	"testing"

	"custody-vault/internal/adapter/storage/memory"
	"custody-vault/internal/adapter/transfer"
	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAdmin domain.AccountID = "admin"
	testCap   int64            = 100
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

// mockTx implements pgx.Tx for testing and records how it ended.
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (m *mockTx) Rollback(_ context.Context) error {
	if m.committed {
		return pgx.ErrTxClosed
	}
	m.rolledBack = true
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

// vault wires the real services over the memory store.
type vault struct {
	store    *memory.Store
	accounts *memory.AccountRepo
	events   *memory.EventRepo
	safety   *SafetyControllerImpl
	ledger   *LedgerServiceImpl
	journal  *JournalServiceImpl
	bus      *EventBus
	gateway  ports.TransferGateway
	loopback *transfer.Loopback
}

type vaultOption func(*vault)

// withGateway wraps the loopback: gw runs first and its error fails the
// transfer; on success the loopback records it.
func withGateway(gw func(ctx context.Context, t *domain.Transfer) error) vaultOption {
	return func(v *vault) {
		lb := v.loopback
		v.gateway = transfer.GatewayFunc(func(ctx context.Context, t *domain.Transfer) error {
			if err := gw(ctx, t); err != nil {
				return err
			}
			return lb.Transfer(ctx, t)
		})
	}
}

func newVault(t *testing.T, opts ...vaultOption) *vault {
	t.Helper()
	store := memory.NewStore()
	v := &vault{
		store:    store,
		accounts: memory.NewAccountRepo(store),
		events:   memory.NewEventRepo(store),
		bus:      NewEventBus(newTestLogger()),
		loopback: transfer.NewLoopback(newTestLogger()),
	}
	v.gateway = v.loopback
	for _, opt := range opts {
		opt(v)
	}

	transactor := memory.NewTransactor(store)
	v.safety = NewSafetyController(memory.NewSettingsRepo(store), v.events, transactor, v.bus, newTestLogger())
	require.NoError(t, v.safety.Init(context.Background(), testAdmin, testCap))

	v.ledger = NewLedgerService(v.accounts, v.events, transactor, v.safety, v.gateway, NewReentrancyGuard(0), v.bus, newTestLogger())
	v.journal = NewJournalService(v.events, newTestLogger())
	return v
}

func (v *vault) balance(t *testing.T, id domain.AccountID) int64 {
	t.Helper()
	bal, err := v.ledger.Balance(context.Background(), id)
	require.NoError(t, err)
	return bal
}

func (v *vault) journalEvents(t *testing.T) []domain.Event {
	t.Helper()
	events, err := v.events.List(context.Background(), ports.EventListParams{})
	require.NoError(t, err)
	return events
}
