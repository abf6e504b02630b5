package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	HeaderTransferID = "X-Transfer-Id"
	HeaderTimestamp  = "X-Timestamp"
	HeaderSignature  = "X-Signature"

	maxResponseDrain = 64 << 10
)

// ErrRejected is returned when the payout endpoint answers with a non-2xx status.
var ErrRejected = errors.New("transfer rejected by payout endpoint")

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPGateway sends transfers to a payout endpoint as signed JSON POSTs.
// Any transport error or non-2xx status is a failed transfer.
type HTTPGateway struct {
	url    string
	secret string
	sigSvc ports.SignatureService
	client HTTPClient
	log    zerolog.Logger
}

// NewHTTPGateway creates a gateway posting to url with the given request timeout.
func NewHTTPGateway(url, secret string, timeout time.Duration, sigSvc ports.SignatureService, log zerolog.Logger) *HTTPGateway {
	return NewHTTPGatewayWithClient(url, secret, &http.Client{Timeout: timeout}, sigSvc, log)
}

// NewHTTPGatewayWithClient creates a gateway over a caller-supplied client.
func NewHTTPGatewayWithClient(url, secret string, client HTTPClient, sigSvc ports.SignatureService, log zerolog.Logger) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		secret: secret,
		sigSvc: sigSvc,
		client: client,
		log:    log,
	}
}

// Transfer implements ports.TransferGateway.
func (g *HTTPGateway) Transfer(ctx context.Context, t *domain.Transfer) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transfer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create transfer request: %w", err)
	}

	ts := time.Now().Unix()
	canonical := g.sigSvc.BuildCanonicalString(http.MethodPost, req.URL.Path, ts, t.ID.String(), string(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTransferID, t.ID.String())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, g.sigSvc.Sign(g.secret, canonical))

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send transfer %s: %w", t.ID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: transfer %s status %d", ErrRejected, t.ID, resp.StatusCode)
	}

	g.log.Debug().
		Str("transfer_id", t.ID.String()).
		Str("account", t.To.String()).
		Int64("amount", t.Amount).
		Int("status", resp.StatusCode).
		Msg("transfer accepted")
	return nil
}
