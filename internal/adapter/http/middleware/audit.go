package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog records every administrative call that reached an authorization
// decision: ALLOWED on 2xx, DENIED when the handler failed with NotAuthorized.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action := mapPathToAction(c.Request.URL.Path, c.Request.Method)
		if action == "" {
			return
		}

		status := c.Writer.Status()
		var outcome domain.AuditOutcome
		switch {
		case status >= http.StatusOK && status < http.StatusMultipleChoices:
			outcome = domain.AuditOutcomeAllowed
		case deniedByController(c):
			outcome = domain.AuditOutcomeDenied
		default:
			return
		}

		caller, _ := AccountFrom(c)
		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(response.CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:        uuid.New(),
			Caller:    caller,
			Action:    action,
			Outcome:   outcome,
			IPAddress: c.ClientIP(),
			Details:   string(details),
			CreatedAt: time.Now().UTC(),
		})
	}
}

func deniedByController(c *gin.Context) bool {
	last := c.Errors.Last()
	return last != nil && apperror.CodeOf(last.Err) == apperror.CodeNotAuthorized
}

func mapPathToAction(path, method string) domain.AuditAction {
	switch {
	case path == "/api/v1/admin/pause" && method == http.MethodPost:
		return domain.AuditActionPause
	case path == "/api/v1/admin/unpause" && method == http.MethodPost:
		return domain.AuditActionUnpause
	case path == "/api/v1/admin/cap" && method == http.MethodPut:
		return domain.AuditActionSetCap
	}
	return ""
}
