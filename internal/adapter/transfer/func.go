package transfer

import (
	"context"

	"custody-vault/internal/core/domain"
)

// GatewayFunc adapts a function to ports.TransferGateway.
type GatewayFunc func(ctx context.Context, t *domain.Transfer) error

// Transfer calls f(ctx, t).
func (f GatewayFunc) Transfer(ctx context.Context, t *domain.Transfer) error {
	return f(ctx, t)
}
