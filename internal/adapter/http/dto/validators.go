package dto

import (
	"custody-vault/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("account_id", validateAccountID)
		_ = v.RegisterValidation("event_kind", validateEventKind)
	}
}

// validateAccountID applies the ledger's identity rules to query filters.
func validateAccountID(fl validator.FieldLevel) bool {
	return domain.AccountID(fl.Field().String()).Valid()
}

func validateEventKind(fl validator.FieldLevel) bool {
	return domain.EventKind(fl.Field().String()).Valid()
}
