package pricing

import (
	"context"
	"math/big"
	"time"

	"github.com/0chain/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"subnet-rentd/core/common"
	"subnet-rentd/core/logging"
	"subnet-rentd/core/retry"
	"subnet-rentd/rentcore/services"
)

var (
	// ErrZeroRate - the exchange-rate service reported a zero rate; dividing
	// by it would be meaningless, so pricing refuses.
	ErrZeroRate = errors.New("zero_rate", "exchange rate is zero")

	// ErrPriceOverflow - the computed payment does not fit the currency
	// range. Never truncated, always surfaced.
	ErrPriceOverflow = errors.New("price_overflow", "computed payment overflows the currency range")

	ErrRateUnavailable = errors.New("rate_unavailable", "could not obtain an exchange rate")
)

const rateCacheSize = 64

// Oracle prices a rental period against the historical exchange rate of its
// proposal day.
type Oracle struct {
	rates services.Rates

	base  string
	quote string
	// unitScale converts billing-reference minor units into payment-currency
	// minor units.
	unitScale uint64

	attempts int
	delay    time.Duration

	// cache holds one rate per day boundary, filled by Price on demand and
	// by the midnight refresh worker.
	cache *lru.Cache[common.Timestamp, services.Rate]
}

func NewOracle(rates services.Rates, base, quote string, unitScale uint64, attempts int, delay time.Duration) *Oracle {
	cache, _ := lru.New[common.Timestamp, services.Rate](rateCacheSize)
	return &Oracle{
		rates:     rates,
		base:      base,
		quote:     quote,
		unitScale: unitScale,
		attempts:  attempts,
		delay:     delay,
		cache:     cache,
	}
}

// Price computes the payment needed to cover periodDays at dailyCost, using
// the exchange rate of the day boundary below ts:
//
//	needed = dailyCost * periodDays * 10^decimals / scaledRate / unitScale
//
// The whole computation is big-int; a result that does not fit the currency
// range is an error, never a wrapped value. For fixed inputs and a fixed
// oracle response the result is bit-identical across calls.
func (o *Oracle) Price(ctx context.Context, ts common.Timestamp, dailyCost common.Coin, periodDays uint32) (common.Coin, error) {
	day := ts.PrevDayBoundary()

	rate, err := o.rateAt(ctx, day)
	if err != nil {
		return 0, errors.Throw(ErrRateUnavailable, err.Error())
	}
	if rate.Scaled == 0 {
		return 0, ErrZeroRate
	}

	needed := new(big.Int).SetUint64(uint64(dailyCost))
	needed.Mul(needed, new(big.Int).SetUint64(uint64(periodDays)))
	needed.Mul(needed, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(rate.Decimals)), nil))
	needed.Div(needed, new(big.Int).SetUint64(rate.Scaled))
	needed.Div(needed, new(big.Int).SetUint64(o.unitScale))

	if !needed.IsUint64() {
		return 0, ErrPriceOverflow
	}
	return common.Coin(needed.Uint64()), nil
}

// rateAt returns the rate for the given day boundary, preferring the daily
// cache over a live query. Transient oracle failures are retried; the retry
// layer does not tell transient from domain errors (a known simplification).
func (o *Oracle) rateAt(ctx context.Context, day common.Timestamp) (services.Rate, error) {
	if rate, ok := o.cache.Get(day); ok {
		return rate, nil
	}

	rate, err := retry.Do(ctx, o.attempts, o.delay, func(ctx context.Context) (services.Rate, error) {
		return o.rates.GetRate(ctx, o.base, o.quote, day)
	})
	if err != nil {
		return services.Rate{}, err
	}

	o.cache.Add(day, rate)
	return rate, nil
}

// refresh fetches and caches the rate of the previous midnight.
func (o *Oracle) refresh(ctx context.Context) {
	day := common.Now().PrevDayBoundary()
	if _, ok := o.cache.Get(day); ok {
		return
	}

	rate, err := retry.Do(ctx, o.attempts, o.delay, func(ctx context.Context) (services.Rate, error) {
		return o.rates.GetRate(ctx, o.base, o.quote, day)
	})
	if err != nil {
		logging.Logger.Error("Failed to refresh the daily exchange rate",
			zap.Int64("day", int64(day)), zap.Error(err))
		return
	}

	o.cache.Add(day, rate)
	logging.Logger.Info("Refreshed the daily exchange rate",
		zap.Int64("day", int64(day)),
		zap.Uint64("scaled_rate", rate.Scaled),
		zap.Uint32("decimals", rate.Decimals))
}
