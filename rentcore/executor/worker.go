package executor

import (
	"context"
	"time"

	"github.com/0chain/errors"
	"go.uber.org/zap"

	"subnet-rentd/core/lock"
	"subnet-rentd/core/logging"
	"subnet-rentd/rentcore/services"
)

// StartProposalWorker polls the governance authority for adopted rental
// proposals and executes each one once. A proposal that failed stays marked
// as handled: the caller is expected to resubmit a fresh proposal, the
// executor never retries a terminal outcome.
func (ex *Executor) StartProposalWorker(ctx context.Context, gov services.Governance, freq time.Duration) {
	go func() {
		handled := make(map[uint64]bool)
		ticker := time.NewTicker(freq)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ex.pollProposals(ctx, gov, handled)
			}
		}
	}()
}

func (ex *Executor) pollProposals(ctx context.Context, gov services.Governance, handled map[uint64]bool) {
	proposals, err := gov.ListAdoptedProposals(ctx, 0)
	if err != nil {
		logging.Logger.Error("Failed to list adopted proposals", zap.Error(err))
		return
	}

	for _, p := range proposals {
		if handled[p.ID] {
			continue
		}

		err := ex.ExecuteRentalRequest(ctx, ex.governance, p)
		switch {
		case err == nil:
			handled[p.ID] = true
		case errors.Is(err, lock.ErrAlreadyRunning):
			// another invocation for the same user is in flight; leave the
			// proposal unhandled and pick it up on the next tick
		default:
			handled[p.ID] = true
			logging.Logger.Warn("Rental proposal reached a failure outcome",
				zap.Uint64("proposal", p.ID),
				zap.String("user", string(p.User)),
				zap.Error(err))
		}
	}
}
