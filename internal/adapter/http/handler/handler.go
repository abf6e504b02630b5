package handler

import (
	"errors"
	"io"
	"net/http"

	"custody-vault/internal/adapter/http/middleware"
	"custody-vault/internal/core/domain"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

// fail records err on the gin context for logging and auditing, then writes
// the error envelope.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	response.Error(c, err)
}

// bindJSON decodes the request body into req, mapping oversize bodies and
// binding failures to request errors.
func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ErrPayloadTooLarge()
		case errors.Is(err, io.EOF):
			return apperror.Validation("request body is required")
		default:
			return apperror.Validation(err.Error())
		}
	}
	return nil
}

// caller returns the authenticated account, writing 401 when absent.
func caller(c *gin.Context) (domain.AccountID, bool) {
	account, ok := middleware.AccountFrom(c)
	if !ok {
		fail(c, apperror.ErrInvalidToken())
	}
	return account, ok
}
