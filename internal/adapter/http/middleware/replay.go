package middleware

import (
	"time"

	"custody-vault/internal/core/ports"
	"custody-vault/pkg/apperror"
	"custody-vault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	defaultNonceTTL = 120 * time.Second
	maxNonceLen     = 128
)

// ReplayGuard requires a fresh X-Nonce per caller on mutating routes. It
// must run after JWTAuth. A failing nonce store lets the request through.
func ReplayGuard(nonceStore ports.NonceStore, ttl time.Duration, log zerolog.Logger) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = defaultNonceTTL
	}
	return func(c *gin.Context) {
		nonce := c.GetHeader(HeaderNonce)
		if nonce == "" || len(nonce) > maxNonceLen {
			response.Error(c, apperror.ErrNonceMissing())
			c.Abort()
			return
		}

		account, ok := AccountFrom(c)
		if !ok {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		isNew, err := nonceStore.CheckAndSet(c.Request.Context(), account.String(), nonce, ttl)
		if err != nil {
			log.Warn().Err(err).Str("account", account.String()).Msg("nonce store error, allowing request")
		} else if !isNew {
			response.Error(c, apperror.ErrNonceUsed())
			c.Abort()
			return
		}

		c.Next()
	}
}
