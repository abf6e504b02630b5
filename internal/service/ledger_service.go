package service

import (
	"context"
	"errors"
	"fmt"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"

	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	accounts   ports.AccountRepository
	events     ports.EventRepository
	transactor ports.DBTransactor
	safety     ports.SafetyController
	gateway    ports.TransferGateway
	guard      *ReentrancyGuard
	publisher  ports.EventPublisher
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl. publisher may be nil.
func NewLedgerService(
	accounts ports.AccountRepository,
	events ports.EventRepository,
	transactor ports.DBTransactor,
	safety ports.SafetyController,
	gateway ports.TransferGateway,
	guard *ReentrancyGuard,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accounts:   accounts,
		events:     events,
		transactor: transactor,
		safety:     safety,
		gateway:    gateway,
		guard:      guard,
		publisher:  publisher,
		log:        log,
	}
}

// Deposit credits account after the safety controller admits amount.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, account domain.AccountID, amount int64) (*ports.Receipt, error) {
	if !account.Valid() {
		return nil, apperror.Validation("invalid account identity")
	}
	if err := s.safety.AdmitDeposit(ctx, amount); err != nil {
		return nil, err
	}

	ctx, release, err := s.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	current, err := s.accounts.GetBalanceForUpdate(ctx, dbTx, account)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if !domain.CanCredit(current, amount) {
		return nil, apperror.ErrBalanceOverflow()
	}

	balance, err := s.accounts.Credit(ctx, dbTx, account, amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit account: %w", err))
	}

	event := domain.NewDepositEvent(account, amount)
	if err := appendToJournal(ctx, s.events, dbTx, event); err != nil {
		return nil, apperror.InternalError(err)
	}

	// The journal lock orders this deposit against PauseActivated: a pause
	// that committed after admission must still reject it.
	paused, err := s.safety.Paused(ctx)
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, apperror.ErrPaused()
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(event)

	s.log.Info().
		Str("account", account.String()).
		Int64("amount", amount).
		Int64("balance", balance).
		Int64("event_seq", event.Seq).
		Msg("deposit credited")

	return &ports.Receipt{Event: *event, Balance: balance}, nil
}

// Withdraw debits account and transfers amount out, in that order. The debit
// and the transfer form one unit of work: a failed transfer rolls the debit
// back. Pausing never blocks withdrawals.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, account domain.AccountID, amount int64) (*ports.Receipt, error) {
	if !account.Valid() {
		return nil, apperror.Validation("invalid account identity")
	}
	if amount < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if amount == 0 {
		return nil, apperror.ErrZeroAmount()
	}

	ctx, release, err := s.guard.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Checks
	current, err := s.accounts.GetBalanceForUpdate(ctx, dbTx, account)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if current < amount {
		return nil, apperror.ErrInsufficientBalance()
	}

	// Effects
	balance, err := s.accounts.Debit(ctx, dbTx, account, amount)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return nil, apperror.ErrInsufficientBalance()
		}
		return nil, apperror.InternalError(fmt.Errorf("debit account: %w", err))
	}

	// Interactions
	transfer := domain.NewTransfer(account, amount)
	endInteraction := s.guard.Interact()
	err = s.gateway.Transfer(ctx, transfer)
	endInteraction()
	if err != nil {
		s.log.Warn().Err(err).
			Str("account", account.String()).
			Str("transfer_id", transfer.ID.String()).
			Int64("amount", amount).
			Msg("transfer failed, rolling back debit")
		return nil, apperror.ErrTransferFailed(err)
	}

	event := domain.NewWithdrawEvent(account, amount)
	if err := appendToJournal(ctx, s.events, dbTx, event); err != nil {
		s.logUnreconciled(err, transfer)
		return nil, apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		s.logUnreconciled(err, transfer)
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.publish(event)

	s.log.Info().
		Str("account", account.String()).
		Int64("amount", amount).
		Int64("balance", balance).
		Str("transfer_id", transfer.ID.String()).
		Int64("event_seq", event.Seq).
		Msg("withdrawal completed")

	return &ports.Receipt{Event: *event, Balance: balance, Transfer: transfer}, nil
}

// Balance returns the account's balance; unknown accounts hold zero.
func (s *LedgerServiceImpl) Balance(ctx context.Context, account domain.AccountID) (int64, error) {
	if !account.Valid() {
		return 0, apperror.Validation("invalid account identity")
	}
	balance, err := s.accounts.GetBalance(ctx, account)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get balance: %w", err))
	}
	return balance, nil
}

// TotalCustody is the sum of every account's claim.
func (s *LedgerServiceImpl) TotalCustody(ctx context.Context) (int64, error) {
	total, err := s.accounts.TotalBalance(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("total balance: %w", err))
	}
	return total, nil
}

func (s *LedgerServiceImpl) publish(event *domain.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// logUnreconciled reports a transfer that left the vault while the ledger
// transaction did not commit.
func (s *LedgerServiceImpl) logUnreconciled(err error, transfer *domain.Transfer) {
	s.log.Error().Err(err).
		Str("account", transfer.To.String()).
		Str("transfer_id", transfer.ID.String()).
		Int64("amount", transfer.Amount).
		Msg("transfer sent but ledger commit failed: manual reconciliation required")
}
