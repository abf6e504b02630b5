package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"

	"github.com/rs/zerolog"
)

// ErrAdminMismatch is returned by Init when storage already holds a
// different administrator.
var ErrAdminMismatch = errors.New("stored administrator differs from configured administrator")

// SafetyControllerImpl implements ports.SafetyController.
type SafetyControllerImpl struct {
	settings   ports.SettingsRepository
	events     ports.EventRepository
	transactor ports.DBTransactor
	publisher  ports.EventPublisher
	log        zerolog.Logger

	// serialises administrative mutations within this instance
	mu sync.Mutex
}

// NewSafetyController creates a new SafetyControllerImpl. publisher may be nil.
// Init must run before the controller serves calls.
func NewSafetyController(
	settings ports.SettingsRepository,
	events ports.EventRepository,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	log zerolog.Logger,
) *SafetyControllerImpl {
	return &SafetyControllerImpl{
		settings:   settings,
		events:     events,
		transactor: transactor,
		publisher:  publisher,
		log:        log,
	}
}

// Init creates the controller state with admin and initialCap, unpaused. An
// existing state is kept as is (cap and pause flag survive restarts) but its
// administrator must match admin.
func (s *SafetyControllerImpl) Init(ctx context.Context, admin domain.AccountID, initialCap int64) error {
	if !admin.Valid() {
		return fmt.Errorf("invalid administrator identity %q", admin)
	}
	if initialCap < 0 {
		return fmt.Errorf("initial deposit cap must be non-negative, got %d", initialCap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load safety state: %w", err)
	}
	if state == nil {
		err := s.settings.Create(ctx, &domain.SafetyState{
			Admin:      admin,
			DepositCap: initialCap,
			UpdatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("create safety state: %w", err)
		}
		// re-read: a concurrent process may have created it first
		if state, err = s.settings.Get(ctx); err != nil {
			return fmt.Errorf("load safety state: %w", err)
		}
		if state == nil {
			return errors.New("safety state missing after create")
		}
	}

	if state.Admin != admin {
		return fmt.Errorf("%w: stored %q, configured %q", ErrAdminMismatch, state.Admin, admin)
	}

	s.log.Info().
		Str("admin", admin.String()).
		Int64("deposit_cap", state.DepositCap).
		Bool("paused", state.Paused).
		Msg("safety controller ready")
	return nil
}

// AdmitDeposit runs the admission gate cheapest check first: paused, zero,
// then cap.
func (s *SafetyControllerImpl) AdmitDeposit(ctx context.Context, amount int64) error {
	state, err := s.State(ctx)
	if err != nil {
		return err
	}
	if state.Paused {
		return apperror.ErrPaused()
	}
	if amount == 0 {
		return apperror.ErrZeroAmount()
	}
	if amount < 0 {
		return apperror.ErrInvalidAmount()
	}
	if amount > state.DepositCap {
		return apperror.ErrCapExceeded()
	}
	return nil
}

// Pause sets the safety flag and journals PauseActivated. Pausing an already
// paused vault journals again.
func (s *SafetyControllerImpl) Pause(ctx context.Context, caller domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorize(ctx, caller, domain.AuditActionPause); err != nil {
		return err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.settings.SetPaused(ctx, dbTx, true); err != nil {
		return apperror.InternalError(fmt.Errorf("set paused: %w", err))
	}

	event := domain.NewPauseActivatedEvent(caller)
	if err := appendToJournal(ctx, s.events, dbTx, event); err != nil {
		return apperror.InternalError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if s.publisher != nil {
		s.publisher.Publish(event)
	}

	s.log.Warn().Str("admin", caller.String()).Int64("event_seq", event.Seq).Msg("deposits paused")
	return nil
}

// Unpause clears the safety flag. It journals nothing.
func (s *SafetyControllerImpl) Unpause(ctx context.Context, caller domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorize(ctx, caller, domain.AuditActionUnpause); err != nil {
		return err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.settings.SetPaused(ctx, dbTx, false); err != nil {
		return apperror.InternalError(fmt.Errorf("clear paused: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("admin", caller.String()).Msg("deposits resumed")
	return nil
}

// SetCap replaces the per-call deposit cap.
func (s *SafetyControllerImpl) SetCap(ctx context.Context, caller domain.AccountID, depositCap int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorize(ctx, caller, domain.AuditActionSetCap); err != nil {
		return err
	}
	if depositCap < 0 {
		return apperror.ErrInvalidAmount()
	}

	if err := s.settings.SetCap(ctx, depositCap); err != nil {
		return apperror.InternalError(fmt.Errorf("set cap: %w", err))
	}

	s.log.Info().Str("admin", caller.String()).Int64("deposit_cap", depositCap).Msg("deposit cap updated")
	return nil
}

// Cap returns the current deposit cap.
func (s *SafetyControllerImpl) Cap(ctx context.Context) (int64, error) {
	state, err := s.State(ctx)
	if err != nil {
		return 0, err
	}
	return state.DepositCap, nil
}

// Paused reports whether deposits are paused.
func (s *SafetyControllerImpl) Paused(ctx context.Context) (bool, error) {
	state, err := s.State(ctx)
	if err != nil {
		return false, err
	}
	return state.Paused, nil
}

// Admin returns the administrator identity.
func (s *SafetyControllerImpl) Admin(ctx context.Context) (domain.AccountID, error) {
	state, err := s.State(ctx)
	if err != nil {
		return "", err
	}
	return state.Admin, nil
}

// State returns a snapshot of the controller state.
func (s *SafetyControllerImpl) State(ctx context.Context) (*domain.SafetyState, error) {
	state, err := s.settings.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load safety state: %w", err))
	}
	if state == nil {
		return nil, apperror.InternalError(errors.New("safety state not initialised"))
	}
	return state, nil
}

func (s *SafetyControllerImpl) authorize(ctx context.Context, caller domain.AccountID, action domain.AuditAction) error {
	state, err := s.State(ctx)
	if err != nil {
		return err
	}
	if !state.IsAdmin(caller) {
		s.log.Warn().
			Str("caller", caller.String()).
			Str("action", string(action)).
			Msg("unauthorized administrative call")
		return apperror.ErrNotAuthorized()
	}
	return nil
}
