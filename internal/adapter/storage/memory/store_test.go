package memory

import (
	"context"
	"testing"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store      *Store
	transactor *Transactor
	accounts   *AccountRepo
	settings   *SettingsRepo
	events     *EventRepo
}

func newFixture() *fixture {
	s := NewStore()
	return &fixture{
		store:      s,
		transactor: NewTransactor(s),
		accounts:   NewAccountRepo(s),
		settings:   NewSettingsRepo(s),
		events:     NewEventRepo(s),
	}
}

func (f *fixture) credit(t *testing.T, id domain.AccountID, amount int64) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.transactor.Begin(ctx)
	require.NoError(t, err)
	_, err = f.accounts.Credit(ctx, tx, id, amount)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
}

func TestAccountRepo_UnknownAccountIsZero(t *testing.T) {
	f := newFixture()
	bal, err := f.accounts.GetBalance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestTx_CommitApplies(t *testing.T) {
	f := newFixture()
	f.credit(t, "alice", 100)

	bal, err := f.accounts.GetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	total, err := f.accounts.TotalBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
}

func TestTx_RollbackDiscards(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.credit(t, "alice", 100)

	tx, err := f.transactor.Begin(ctx)
	require.NoError(t, err)
	newBal, err := f.accounts.Debit(ctx, tx, "alice", 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), newBal)

	// the transaction sees its own write, nobody else does
	inTx, err := f.accounts.GetBalanceForUpdate(ctx, tx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(40), inTx)
	outside, err := f.accounts.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), outside)

	require.NoError(t, tx.Rollback(ctx))

	bal, err := f.accounts.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)
}

func TestTx_ClosedAfterCommit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, err := f.transactor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
	assert.ErrorIs(t, tx.Commit(ctx), pgx.ErrTxClosed)
	_, err = f.accounts.Credit(ctx, tx, "alice", 1)
	assert.ErrorIs(t, err, pgx.ErrTxClosed)
}

type otherTx struct{ pgx.Tx }

func TestRepos_RejectForeignTx(t *testing.T) {
	f := newFixture()
	_, err := f.accounts.Credit(context.Background(), &otherTx{}, "alice", 1)
	assert.ErrorIs(t, err, ErrForeignTx)

	otherStore := NewStore()
	tx, err := NewTransactor(otherStore).Begin(context.Background())
	require.NoError(t, err)
	_, err = f.accounts.Credit(context.Background(), tx, "alice", 1)
	assert.ErrorIs(t, err, ErrForeignTx)
}

func TestAccountRepo_DebitInsufficient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.credit(t, "alice", 10)

	tx, err := f.transactor.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = f.accounts.Debit(ctx, tx, "alice", 11)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestTx_RowLockBlocksSecondWriter(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tx1, err := f.transactor.Begin(ctx)
	require.NoError(t, err)
	_, err = f.accounts.GetBalanceForUpdate(ctx, tx1, "alice")
	require.NoError(t, err)

	tx2, err := f.transactor.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback(ctx) //nolint:errcheck

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = f.accounts.GetBalanceForUpdate(short, tx2, "alice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// a different row is free
	_, err = f.accounts.GetBalanceForUpdate(ctx, tx2, "bob")
	require.NoError(t, err)

	require.NoError(t, tx1.Commit(ctx))
	_, err = f.accounts.GetBalanceForUpdate(ctx, tx2, "alice")
	require.NoError(t, err)
}

func appendEvent(t *testing.T, f *fixture, e *domain.Event, commit bool) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.transactor.Begin(ctx)
	require.NoError(t, err)
	prev, err := f.events.LastHash(ctx, tx)
	require.NoError(t, err)
	e.Seal(prev)
	require.NoError(t, f.events.Append(ctx, tx, e))
	if commit {
		require.NoError(t, tx.Commit(ctx))
	} else {
		require.NoError(t, tx.Rollback(ctx))
	}
}

func TestEventRepo_AppendAndList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	appendEvent(t, f, domain.NewDepositEvent("alice", 10), true)
	appendEvent(t, f, domain.NewDepositEvent("bob", 5), false) // rolled back
	appendEvent(t, f, domain.NewWithdrawEvent("alice", 3), true)
	appendEvent(t, f, domain.NewPauseActivatedEvent("admin"), true)

	all, err := f.events.List(ctx, ports.EventListParams{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, int64(i+1), e.Seq)
	}
	require.NoError(t, domain.VerifyChain(all, domain.GenesisHash))

	alice, err := f.events.List(ctx, ports.EventListParams{Filter: domain.EventFilter{Account: "alice"}})
	require.NoError(t, err)
	assert.Len(t, alice, 2)

	admin, err := f.events.List(ctx, ports.EventListParams{Filter: domain.EventFilter{Admin: "admin"}})
	require.NoError(t, err)
	require.Len(t, admin, 1)
	assert.Equal(t, domain.EventPauseActivated, admin[0].Kind)

	page, err := f.events.List(ctx, ports.EventListParams{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].Seq)
}

func TestSettingsRepo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	state, err := f.settings.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, f.settings.Create(ctx, &domain.SafetyState{Admin: "admin", DepositCap: 100}))
	// second create keeps the first row
	require.NoError(t, f.settings.Create(ctx, &domain.SafetyState{Admin: "other", DepositCap: 1}))

	state, err = f.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("admin"), state.Admin)
	assert.Equal(t, int64(100), state.DepositCap)

	tx, err := f.transactor.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, f.settings.SetPaused(ctx, tx, true))
	state, _ = f.settings.Get(ctx)
	assert.False(t, state.Paused, "pause is not visible before commit")
	require.NoError(t, tx.Commit(ctx))

	state, _ = f.settings.Get(ctx)
	assert.True(t, state.Paused)

	require.NoError(t, f.settings.SetCap(ctx, 7))
	state, _ = f.settings.Get(ctx)
	assert.Equal(t, int64(7), state.DepositCap)
}

func TestSettingsRepo_MissingState(t *testing.T) {
	f := newFixture()
	assert.Error(t, f.settings.SetCap(context.Background(), 1))
}

func TestIdempotencyRepo_FirstWriteWins(t *testing.T) {
	r := NewIdempotencyRepo(NewStore())
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &domain.IdempotencyRecord{Key: "k", StatusCode: 200, ResponseJSON: []byte(`{"a":1}`)}))
	require.NoError(t, r.Create(ctx, &domain.IdempotencyRecord{Key: "k", StatusCode: 201, ResponseJSON: []byte(`{"a":2}`)}))

	rec, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 200, rec.StatusCode)
	assert.JSONEq(t, `{"a":1}`, string(rec.ResponseJSON))

	missing, err := r.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAuditRepo(t *testing.T) {
	r := NewAuditRepo(NewStore())
	require.NoError(t, r.Create(context.Background(), &domain.AuditLog{Caller: "admin", Action: domain.AuditActionPause}))
	all := r.All()
	require.Len(t, all, 1)
	assert.Equal(t, domain.AuditActionPause, all[0].Action)
}
