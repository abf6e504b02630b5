package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	maxIdempotencyKeyLen = 128
	idempotencySaveWait  = 5 * time.Second
)

// bodyRecorder tees the response body so it can be stored for replay.
type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the first 2xx response stored for the caller's
// Idempotency-Key on operation. Requests without the header pass through.
// A duplicate arriving while the first is still running gets 409; a retry
// whose body differs from the first request gets 422. Must run after JWTAuth.
func Idempotency(store ports.IdempotencyStore, operation string, log zerolog.Logger) gin.HandlerFunc {
	var inflight sync.Map

	return func(c *gin.Context) {
		clientKey := c.GetHeader(HeaderIdempotencyKey)
		if clientKey == "" {
			c.Next()
			return
		}
		if len(clientKey) > maxIdempotencyKeyLen {
			response.Error(c, apperror.Validation("Idempotency-Key too long"))
			c.Abort()
			return
		}

		account, ok := AccountFrom(c)
		if !ok {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}
		key := domain.BuildIdempotencyKey(account, operation, clientKey)

		if _, busy := inflight.LoadOrStore(key, struct{}{}); busy {
			response.Error(c, apperror.ErrRequestInProgress())
			c.Abort()
			return
		}
		defer inflight.Delete(key)

		requestHash, ok := fingerprintBody(c)
		if !ok {
			return
		}

		record, err := store.Get(c.Request.Context(), key)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("idempotency lookup failed")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if record != nil {
			if !record.Matches(requestHash) {
				response.Error(c, apperror.ErrIdempotencyReuse())
				c.Abort()
				return
			}
			c.Header(HeaderReplayed, "true")
			c.Data(record.StatusCode, "application/json; charset=utf-8", record.ResponseJSON)
			c.Abort()
			return
		}

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		status := rec.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}

		// the operation has committed; a client that hung up must still find
		// the record when it retries
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), idempotencySaveWait)
		defer cancel()
		err = store.Save(saveCtx, &domain.IdempotencyRecord{
			Key:          key,
			RequestHash:  requestHash,
			StatusCode:   status,
			ResponseJSON: bytes.Clone(rec.body.Bytes()),
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
		}
	}
}

// fingerprintBody hashes the request body and puts it back for the handler.
// On failure the error response is already written.
func fingerprintBody(c *gin.Context) (string, bool) {
	if c.Request.Body == nil {
		return domain.HashRequestBody(nil), true
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, apperror.ErrPayloadTooLarge())
		} else {
			response.Error(c, apperror.Validation("Unreadable request body"))
		}
		c.Abort()
		return "", false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return domain.HashRequestBody(body), true
}
