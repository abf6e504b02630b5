package handler

import (
	"context"

	"custody-vault/internal/adapter/http/dto"
	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the safety controller's administrative operations.
// Authorization is decided by the controller, not here.
type AdminHandler struct {
	safety ports.SafetyController
	ledger ports.LedgerService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(safety ports.SafetyController, ledger ports.LedgerService) *AdminHandler {
	return &AdminHandler{safety: safety, ledger: ledger}
}

// Pause handles POST /api/v1/admin/pause.
func (h *AdminHandler) Pause(c *gin.Context) {
	h.run(c, h.safety.Pause)
}

// Unpause handles POST /api/v1/admin/unpause.
func (h *AdminHandler) Unpause(c *gin.Context) {
	h.run(c, h.safety.Unpause)
}

// SetCap handles PUT /api/v1/admin/cap.
func (h *AdminHandler) SetCap(c *gin.Context) {
	var req dto.SetCapRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	h.run(c, func(ctx context.Context, account domain.AccountID) error {
		return h.safety.SetCap(ctx, account, *req.Cap)
	})
}

// run performs op as the caller and answers with the resulting vault status.
func (h *AdminHandler) run(c *gin.Context, op func(context.Context, domain.AccountID) error) {
	account, ok := caller(c)
	if !ok {
		return
	}

	if err := op(c.Request.Context(), account); err != nil {
		fail(c, err)
		return
	}

	state, err := h.safety.State(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	total, err := h.ledger.TotalCustody(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.OK(c, dto.NewVaultStatusResponse(state, total))
}
