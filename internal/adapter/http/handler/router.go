package handler

import (
	"time"

	"custody-vault/internal/adapter/http/middleware"
	"custody-vault/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 64 << 10

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger           ports.LedgerService
	Safety           ports.SafetyController
	Journal          ports.JournalService
	Stream           ports.EventStream // nil = no live event stream
	TokenSvc         ports.TokenService
	NonceStore       ports.NonceStore // nil = replay protection disabled
	NonceTTL         time.Duration
	IdempotencyStore ports.IdempotencyStore // nil = Idempotency-Key ignored
	AuditSvc         ports.AuditService     // nil = audit logging disabled
	HealthCheckers   []ports.HealthChecker
	MaxBodyBytes     int64
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	// Health check (deep: verifies PostgreSQL + Redis when configured)
	r.GET("/health", HealthCheck(deps.Safety, deps.HealthCheckers...))

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	// mutating routes: replay guard then idempotency, when configured
	guarded := func(operation string) []gin.HandlerFunc {
		chain := []gin.HandlerFunc{jwtAuth}
		if deps.NonceStore != nil {
			chain = append(chain, middleware.ReplayGuard(deps.NonceStore, deps.NonceTTL, deps.Logger))
		}
		if operation != "" && deps.IdempotencyStore != nil {
			chain = append(chain, middleware.Idempotency(deps.IdempotencyStore, operation, deps.Logger))
		}
		return chain
	}

	v1 := r.Group("/api/v1")

	vaultHandler := NewVaultHandler(deps.Ledger, deps.Safety)
	vault := v1.Group("/vault")
	{
		vault.GET("/status", vaultHandler.Status)
		vault.GET("/balance", jwtAuth, vaultHandler.Balance)
		vault.POST("/deposit", append(guarded("deposit"), vaultHandler.Deposit)...)
		vault.POST("/withdraw", append(guarded("withdraw"), vaultHandler.Withdraw)...)
	}

	eventHandler := NewEventHandler(deps.Journal, deps.Stream)
	events := v1.Group("/events")
	{
		events.GET("", eventHandler.List)
		events.GET("/verify", eventHandler.Verify)
		if deps.Stream != nil {
			events.GET("/stream", eventHandler.Stream)
		}
	}

	adminHandler := NewAdminHandler(deps.Safety, deps.Ledger)
	admin := v1.Group("/admin")
	if deps.AuditSvc != nil {
		admin.Use(middleware.AuditLog(deps.AuditSvc))
	}
	{
		admin.POST("/pause", append(guarded(""), adminHandler.Pause)...)
		admin.POST("/unpause", append(guarded(""), adminHandler.Unpause)...)
		admin.PUT("/cap", append(guarded(""), adminHandler.SetCap)...)
	}

	return r
}
