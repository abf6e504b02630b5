package domain

import (
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// IdempotencyRecord is the stored outcome of a request that carried an
// Idempotency-Key, replayed verbatim for retries.
type IdempotencyRecord struct {
	Key          string    `json:"key"`          // Format: "account:operation:client_key"
	RequestHash  string    `json:"request_hash"` // HashRequestBody of the first request
	StatusCode   int       `json:"status_code"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// Matches reports whether a retry with requestHash may replay r. Records
// stored without a hash match any body.
func (r *IdempotencyRecord) Matches(requestHash string) bool {
	return r.RequestHash == "" || r.RequestHash == requestHash
}

// BuildIdempotencyKey scopes a client key to the caller and operation so one
// account can never replay another account's response.
func BuildIdempotencyKey(account AccountID, operation, clientKey string) string {
	return string(account) + ":" + operation + ":" + clientKey
}

// HashRequestBody fingerprints a request body (BLAKE2b-256, hex).
func HashRequestBody(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}
