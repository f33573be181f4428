package executor

import (
	"context"
	"math/big"
	"strconv"
	"time"

	"go.uber.org/zap"

	"subnet-rentd/core/common"
	"subnet-rentd/core/logging"
	"subnet-rentd/rentcore/store"
)

// StartBillingWorker periodically burns each agreement's pre-paid resource
// balance. RentalAgreement -> Terminated once coverage runs out.
func (ex *Executor) StartBillingWorker(ctx context.Context, freq time.Duration) {
	go func() {
		ticker := time.NewTicker(freq)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ex.burnBillingRecords(ctx)
			}
		}
	}()
}

func (ex *Executor) burnBillingRecords(ctx context.Context) {
	agreements, err := ex.store.Agreements()
	if err != nil {
		logging.Logger.Error("Failed to scan agreements for billing", zap.Error(err))
		return
	}

	for _, agr := range agreements {
		if err := ex.burnOne(ctx, agr, common.Now()); err != nil {
			logging.Logger.Error("Billing burn failed",
				zap.String("subnet", string(agr.Subnet)), zap.Error(err))
		}
	}
}

// burnOne deducts the share of the balance covering the time elapsed since
// the last burn. The balance burns linearly to zero at covered-until; once
// coverage lapses the remainder is burned and the agreement terminates.
func (ex *Executor) burnOne(ctx context.Context, agr *store.RentalAgreement, now common.Timestamp) error {
	rec, err := ex.store.GetBilling(agr.Subnet)
	if err != nil {
		return err
	}

	period := common.Timestamp(agr.Conditions.BillingPeriodDays) * common.SecondsPerDay
	if now < rec.LastBurned+period {
		return nil
	}

	if now >= rec.CoveredUntil {
		if rec.Balance > 0 {
			if err := ex.persistEvent(agr.User, store.EventBillingBurned,
				strconv.FormatUint(uint64(rec.Balance), 10)); err != nil {
				return err
			}
		}
		return ex.terminate(ctx, agr.Subnet, "coverage expired")
	}

	burn := proRataBurn(rec.Balance, now-rec.LastBurned, rec.CoveredUntil-rec.LastBurned)
	remaining, err := common.SubResource(rec.Balance, burn)
	if err != nil {
		return err
	}

	rec.Balance = remaining
	rec.LastBurned = now
	if err := ex.store.PutBilling(agr.Subnet, rec); err != nil {
		return err
	}

	return ex.persistEvent(agr.User, store.EventBillingBurned,
		strconv.FormatUint(uint64(burn), 10))
}

// proRataBurn = balance * elapsed / window, computed wide so large balances
// cannot wrap.
func proRataBurn(balance common.Resource, elapsed, window common.Timestamp) common.Resource {
	if window <= 0 || elapsed >= window {
		return balance
	}
	burn := new(big.Int).SetUint64(uint64(balance))
	burn.Mul(burn, big.NewInt(int64(elapsed)))
	burn.Div(burn, big.NewInt(int64(window)))
	return common.Resource(burn.Uint64())
}
