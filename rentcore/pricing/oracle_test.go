package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/0chain/errors"
	"github.com/stretchr/testify/require"

	"subnet-rentd/core/common"
	"subnet-rentd/rentcore/services"
)

type fakeRates struct {
	rate  services.Rate
	err   error
	calls int
	// failuresBeforeSuccess makes the first n calls fail with err
	failuresBeforeSuccess int
	lastTimestamp         common.Timestamp
}

func (f *fakeRates) GetRate(_ context.Context, _, _ string, ts common.Timestamp) (services.Rate, error) {
	f.calls++
	f.lastTimestamp = ts
	if f.err != nil && f.calls <= f.failuresBeforeSuccess {
		return services.Rate{}, f.err
	}
	if f.err != nil && f.failuresBeforeSuccess == 0 {
		return services.Rate{}, f.err
	}
	return f.rate, nil
}

func newTestOracle(rates services.Rates) *Oracle {
	return NewOracle(rates, "XBR", "SET", 10000, 3, time.Millisecond)
}

func TestPriceApp13CHFixture(t *testing.T) {
	// condition "App13CH": daily_cost = 835e12, 180 days;
	// rate 350000 at 4 decimals => (835e12 * 180 * 1e4) / 350000 / 10000
	rates := &fakeRates{rate: services.Rate{Scaled: 350000, Decimals: 4}}
	o := newTestOracle(rates)

	price, err := o.Price(context.Background(), 1700000042, 835_000_000_000_000, 180)
	require.NoError(t, err)
	require.Equal(t, common.Coin(429_428_571_428), price)
}

func TestPriceDeterministic(t *testing.T) {
	rates := &fakeRates{rate: services.Rate{Scaled: 350000, Decimals: 4}}
	o := newTestOracle(rates)

	first, err := o.Price(context.Background(), 1700000042, 835_000_000_000_000, 180)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := o.Price(context.Background(), 1700000042, 835_000_000_000_000, 180)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	// the rate was fetched once; later calls hit the daily cache
	require.Equal(t, 1, rates.calls)
}

func TestPriceRoundsToDayBoundary(t *testing.T) {
	rates := &fakeRates{rate: services.Rate{Scaled: 350000, Decimals: 4}}
	o := newTestOracle(rates)

	ts := common.Timestamp(1700000042)
	_, err := o.Price(context.Background(), ts, 1000, 1)
	require.NoError(t, err)
	require.Equal(t, ts.PrevDayBoundary(), rates.lastTimestamp)
	require.Equal(t, common.Timestamp(0), rates.lastTimestamp%common.SecondsPerDay)
}

func TestPriceZeroRate(t *testing.T) {
	rates := &fakeRates{rate: services.Rate{Scaled: 0, Decimals: 4}}
	o := newTestOracle(rates)

	_, err := o.Price(context.Background(), 1700000042, 1000, 1)
	require.ErrorIs(t, err, ErrZeroRate)
}

func TestPriceOverflowSurfaces(t *testing.T) {
	// a 1-scaled rate with many decimals blows far past the currency range
	rates := &fakeRates{rate: services.Rate{Scaled: 1, Decimals: 18}}
	o := newTestOracle(rates)

	_, err := o.Price(context.Background(), 1700000042, 1_000_000_000_000_000, 10_000)
	require.ErrorIs(t, err, ErrPriceOverflow)
}

func TestPriceLargeInputsNoTruncation(t *testing.T) {
	// daily_cost up to 1e15 and period up to 1e4 must never truncate
	rates := &fakeRates{rate: services.Rate{Scaled: 350000, Decimals: 4}}
	o := newTestOracle(rates)

	price, err := o.Price(context.Background(), 1700000042, 1_000_000_000_000_000, 10_000)
	require.NoError(t, err)
	// (1e15 * 1e4 * 1e4) / 350000 / 10000 = 1e23 / 3.5e9
	require.Equal(t, common.Coin(28_571_428_571_428), price)
}

func TestPriceRetriesTransientFailures(t *testing.T) {
	rates := &fakeRates{
		rate:                  services.Rate{Scaled: 350000, Decimals: 4},
		err:                   services.ErrRateLimited,
		failuresBeforeSuccess: 2,
	}
	o := newTestOracle(rates)

	_, err := o.Price(context.Background(), 1700000042, 1000, 1)
	require.NoError(t, err)
	require.Equal(t, 3, rates.calls)
}

func TestPriceExhaustedRetriesSurface(t *testing.T) {
	rates := &fakeRates{err: services.ErrRateLimited}
	o := newTestOracle(rates)

	_, err := o.Price(context.Background(), 1700000042, 1000, 1)
	require.ErrorIs(t, err, ErrRateUnavailable)
	require.Equal(t, 3, rates.calls)
}

func TestRefreshFillsCache(t *testing.T) {
	rates := &fakeRates{rate: services.Rate{Scaled: 123456, Decimals: 4}}
	o := newTestOracle(rates)

	o.refresh(context.Background())
	require.Equal(t, 1, rates.calls)

	// Price for today's boundary must not query again
	_, err := o.Price(context.Background(), common.Now(), 1000, 1)
	require.NoError(t, err)
	require.Equal(t, 1, rates.calls)
}

func TestRefreshKeepsGoingOnFailure(t *testing.T) {
	rates := &fakeRates{err: errors.New("rate_pending", "not collected yet")}
	o := newTestOracle(rates)

	o.refresh(context.Background())
	require.Equal(t, 3, rates.calls)
}
