package service

import (
	"context"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit entries are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Log records an administrative call asynchronously (fire-and-forget).
func (s *auditService) Log(_ context.Context, entry *domain.AuditLog) {
	go func() {
		ev := s.log.Info()
		if entry.Outcome == domain.AuditOutcomeDenied {
			ev = s.log.Warn()
		}
		ev.Str("caller", entry.Caller.String()).
			Str("action", string(entry.Action)).
			Str("outcome", string(entry.Outcome)).
			Str("ip", entry.IPAddress).
			Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), entry); err != nil {
				s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
			}
		}
	}()
}
