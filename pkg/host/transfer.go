package host

import (
	"context"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/log"
	"github.com/cuemby/cronfleet/pkg/types"
)

// Transfer moves amt to target's account, modeling the host's
// transfer(account, amount) capability used for task-removal refunds and
// agent payouts. Actual custody of funds belongs to the host environment
// (spec.md §1 out-of-scope collaborator); the production Transfer only
// records the instruction.
type Transfer func(ctx context.Context, target types.Principal, amt amount.Amount) error

// NewLogTransfer returns a Transfer that logs each payout through the
// named component logger instead of moving funds itself.
func NewLogTransfer(component string) Transfer {
	logger := log.WithComponent(component)
	return func(ctx context.Context, target types.Principal, amt amount.Amount) error {
		if amt.IsZero() {
			return nil
		}
		logger.Info().
			Str("target", string(target)).
			Str("amount", amt.String()).
			Msg("transfer")
		return nil
	}
}
