package response

import (
	"errors"
	"net/http"
	"time"

	"custody-vault/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxRequestID is the gin context key holding the request correlation ID.
const CtxRequestID = "request_id"

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data:      data,
		RequestID: RequestID(c),
		Timestamp: now(),
	})
}

// Error sends an error response. An *apperror.AppError anywhere in the chain
// decides the status and code; anything else becomes a 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorResponse{
			ErrorCode: appErr.Code,
			Message:   appErr.Message,
			RequestID: RequestID(c),
			Timestamp: now(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{
		ErrorCode: apperror.CodeInternal,
		Message:   "Internal server error",
		RequestID: RequestID(c),
		Timestamp: now(),
	})
}

// RequestID returns the request ID stored on the context, generating and
// storing one when absent so every envelope of a request shares it.
func RequestID(c *gin.Context) string {
	if id, exists := c.Get(CtxRequestID); exists {
		if s, ok := id.(string); ok && s != "" {
			return s
		}
	}
	id := uuid.New().String()
	c.Set(CtxRequestID, id)
	return id
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
