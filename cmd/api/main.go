package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"custody-vault/config"
	httpHandler "custody-vault/internal/adapter/http/handler"
	memStorage "custody-vault/internal/adapter/storage/memory"
	pgStorage "custody-vault/internal/adapter/storage/postgres"
	redisStorage "custody-vault/internal/adapter/storage/redis"
	"custody-vault/internal/adapter/transfer"
	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/internal/service"
	"custody-vault/pkg/logger"

	"github.com/rs/zerolog"
)

// storage bundles the repositories of one backend.
type storage struct {
	accounts    ports.AccountRepository
	settings    ports.SettingsRepository
	events      ports.EventRepository
	audit       ports.AuditRepository
	idempotency ports.IdempotencyRepository
	transactor  ports.DBTransactor
	health      []ports.HealthChecker
	close       func()
}

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CV_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Str("transfer", cfg.Transfer.Mode).
		Msg("Starting Custody Vault")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Custody Vault stopped")
	}
	log.Info().Msg("Server exited")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	// Optional Redis: nonce store and idempotency fast path
	var (
		nonceStore       ports.NonceStore
		idempotencyCache ports.IdempotencyCache
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		nonceStore = redisStorage.NewNonceStore(rdb)
		idempotencyCache = redisStorage.NewIdempotencyCache(rdb)
		store.health = append(store.health, redisStorage.NewHealthCheck(rdb))
	} else {
		log.Warn().Msg("Redis disabled: X-Nonce replay protection is off")
	}

	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Subscribers
	bus := service.NewEventBus(logger.Component(log, "event_bus"))
	notifier := service.NewEventNotifier(
		cfg.Webhook.URLs,
		cfg.Webhook.Secret,
		sigSvc,
		&http.Client{Timeout: cfg.Webhook.Timeout},
		cfg.Webhook.Buffer,
		logger.Component(log, "webhook"),
	)
	publisher := service.Publishers{bus, notifier}

	var gateway ports.TransferGateway
	switch cfg.Transfer.Mode {
	case config.TransferModeHTTP:
		gateway = transfer.NewHTTPGateway(cfg.Transfer.URL, cfg.Transfer.Secret, cfg.Transfer.Timeout, sigSvc, logger.Component(log, "transfer"))
	default:
		gateway = transfer.NewLoopback(logger.Component(log, "transfer"))
	}

	safety := service.NewSafetyController(store.settings, store.events, store.transactor, publisher, logger.Component(log, "safety"))
	if err := safety.Init(ctx, domain.AccountID(cfg.Vault.Admin), cfg.Vault.DepositCap); err != nil {
		return fmt.Errorf("init safety controller: %w", err)
	}

	ledger := service.NewLedgerService(
		store.accounts,
		store.events,
		store.transactor,
		safety,
		gateway,
		service.NewReentrancyGuard(cfg.Vault.LockWait),
		publisher,
		logger.Component(log, "ledger"),
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:           ledger,
		Safety:           safety,
		Journal:          service.NewJournalService(store.events, logger.Component(log, "journal")),
		Stream:           bus,
		TokenSvc:         tokenSvc,
		NonceStore:       nonceStore,
		NonceTTL:         cfg.Redis.NonceTTL,
		IdempotencyStore: service.NewTieredIdempotencyStore(idempotencyCache, store.idempotency, cfg.Redis.IdemTTL, log),
		AuditSvc:         service.NewAuditService(store.audit, logger.Component(log, "audit")),
		HealthCheckers:   store.health,
		Logger:           log,
	})

	var workers sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	workers.Add(1)
	go func() {
		defer workers.Done()
		notifier.Run(workerCtx)
	}()

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorkers()
	workers.Wait()
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory storage: balances are lost on restart")
		store := memStorage.NewStore()
		return &storage{
			accounts:    memStorage.NewAccountRepo(store),
			settings:    memStorage.NewSettingsRepo(store),
			events:      memStorage.NewEventRepo(store),
			audit:       memStorage.NewAuditRepo(store),
			idempotency: memStorage.NewIdempotencyRepo(store),
			transactor:  memStorage.NewTransactor(store),
			close:       func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Database.Migrate {
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		log.Info().Msg("PostgreSQL schema up to date")
	}

	return &storage{
		accounts:    pgStorage.NewAccountRepo(pool),
		settings:    pgStorage.NewSettingsRepo(pool),
		events:      pgStorage.NewEventRepo(pool),
		audit:       pgStorage.NewAuditRepo(pool),
		idempotency: pgStorage.NewIdempotencyRepo(pool),
		transactor:  pgStorage.NewTransactor(pool),
		health:      []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		close:       pool.Close,
	}, nil
}
