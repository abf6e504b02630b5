package handler

import (
	"custody-vault/internal/adapter/http/dto"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

// VaultHandler handles custody endpoints for the authenticated caller.
type VaultHandler struct {
	ledger ports.LedgerService
	safety ports.SafetyController
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(ledger ports.LedgerService, safety ports.SafetyController) *VaultHandler {
	return &VaultHandler{ledger: ledger, safety: safety}
}

// Deposit handles POST /api/v1/vault/deposit.
func (h *VaultHandler) Deposit(c *gin.Context) {
	account, ok := caller(c)
	if !ok {
		return
	}

	var req dto.AmountRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	receipt, err := h.ledger.Deposit(c.Request.Context(), account, *req.Amount)
	if err != nil {
		fail(c, err)
		return
	}

	response.OK(c, dto.NewReceiptResponse(receipt))
}

// Withdraw handles POST /api/v1/vault/withdraw.
func (h *VaultHandler) Withdraw(c *gin.Context) {
	account, ok := caller(c)
	if !ok {
		return
	}

	var req dto.AmountRequest
	if err := bindJSON(c, &req); err != nil {
		fail(c, err)
		return
	}

	receipt, err := h.ledger.Withdraw(c.Request.Context(), account, *req.Amount)
	if err != nil {
		fail(c, err)
		return
	}

	response.OK(c, dto.NewReceiptResponse(receipt))
}

// Balance handles GET /api/v1/vault/balance.
func (h *VaultHandler) Balance(c *gin.Context) {
	account, ok := caller(c)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), account)
	if err != nil {
		fail(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Account: account.String(), Balance: balance})
}

// Status handles GET /api/v1/vault/status.
func (h *VaultHandler) Status(c *gin.Context) {
	state, err := h.safety.State(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	total, err := h.ledger.TotalCustody(c.Request.Context())
	if err != nil {
		fail(c, apperror.InternalError(err))
		return
	}

	response.OK(c, dto.NewVaultStatusResponse(state, total))
}
