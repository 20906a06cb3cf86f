package arbitrage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiter/internal/config"
	"arbiter/internal/exchange"
	"arbiter/internal/model"
	"arbiter/internal/notify"
)

type engineFixture struct {
	engine *ArbitrageEngine
	a, b   *fakeVenue
	sink   *recordingSink
}

func newFixture(t *testing.T, threshold string, demo bool) *engineFixture {
	t.Helper()
	a, b := newFakeVenue("binance"), newFakeVenue("kraken")
	sink := &recordingSink{}
	cfg := config.ArbitrageConfig{
		TradingPair:     "BTC/EUR",
		ProfitThreshold: d(threshold),
		Demo:            demo,
	}
	engine, err := NewArbitrageEngine(discardLogger(), cfg, sink, a, b)
	require.NoError(t, err)
	return &engineFixture{engine: engine, a: a, b: b, sink: sink}
}

// publish pushes fresh quotes for v through the engine as its watcher would.
func (f *engineFixture) publish(v *fakeVenue, bid, ask model.Quote) {
	v.Publish(context.Background(), f.engine, bid, ask)
}

func TestArbitrageEngine_CheckArbitrage(t *testing.T) {
	t.Run("no opportunity", func(t *testing.T) {
		f := newFixture(t, "0", true)
		f.publish(f.a, q("60000", "1"), q("60050", "1"))
		f.publish(f.b, q("60000", "1"), q("60050", "1"))

		assert.Empty(t, f.sink.kinds())
		assert.Zero(t, f.a.purchases.Load()+f.b.purchases.Load())
		assert.Zero(t, f.engine.Ledger().TotalDeals)
	})

	t.Run("profitable opportunity", func(t *testing.T) {
		// binance ask 100.00 x5, kraken bid 100.50 x5, threshold 2.00
		f := newFixture(t, "2.00", true)
		f.publish(f.a, q("99.90", "5"), q("100.00", "5"))
		f.publish(f.b, q("100.50", "5"), q("100.60", "5"))

		require.Equal(t, []notify.Kind{notify.KindOpportunity, notify.KindDealCompleted}, f.sink.kinds())
		deal := f.sink.last()
		assert.Equal(t, "binance", deal.BuyVenue)
		assert.Equal(t, "kraken", deal.SellVenue)
		assert.True(t, deal.Quantity.Equal(d("5")))
		assert.Equal(t, "500.00", deal.PurchaseCost.StringFixed(2))
		assert.Equal(t, "502.50", deal.SaleProceeds.StringFixed(2))
		assert.Equal(t, "2.50", deal.Profit.StringFixed(2))
		assert.Equal(t, int64(1), deal.TotalDeals)
		assert.NotEqual(t, uuid.Nil, deal.DealID)
		assert.Equal(t, f.sink.events[0].DealID, deal.DealID, "opportunity and outcome share an id")

		ledger := f.engine.Ledger()
		assert.Equal(t, int64(1), ledger.TotalDeals)
		assert.True(t, ledger.TotalProfit.Equal(d("2.50")))
		assert.Equal(t, int32(1), f.a.purchases.Load())
		assert.Equal(t, int32(1), f.b.sales.Load())
	})

	t.Run("below threshold", func(t *testing.T) {
		f := newFixture(t, "3.00", true)
		f.publish(f.a, q("99.90", "5"), q("100.00", "5"))
		f.publish(f.b, q("100.50", "5"), q("100.60", "5"))

		assert.Empty(t, f.sink.kinds(), "sub-threshold gaps are not notified")
		assert.Zero(t, f.a.purchases.Load())
		assert.Zero(t, f.engine.Ledger().TotalDeals)
		assert.True(t, f.engine.Ledger().TotalProfit.IsZero())
	})

	t.Run("zero ask is no quote", func(t *testing.T) {
		f := newFixture(t, "0", true)
		f.publish(f.a, q("99", "5"), q("0", "5"))
		f.publish(f.b, q("200", "5"), q("250", "5"))

		assert.Empty(t, f.sink.kinds())
		assert.Zero(t, f.engine.Ledger().TotalDeals)
	})

	t.Run("negative ask is no quote", func(t *testing.T) {
		f := newFixture(t, "0", true)
		f.publish(f.a, q("99", "5"), q("-1", "5"))
		f.publish(f.b, q("200", "5"), q("250", "5"))

		assert.Empty(t, f.sink.kinds())
	})

	t.Run("sizes to the thinner side", func(t *testing.T) {
		f := newFixture(t, "0", true)
		f.publish(f.a, q("99.90", "1"), q("100.00", "3"))
		f.publish(f.b, q("100.50", "7"), q("100.60", "1"))

		deal := f.sink.last()
		require.Equal(t, notify.KindDealCompleted, deal.Kind)
		assert.True(t, deal.Quantity.Equal(d("3")))
		assert.Equal(t, "1.50", deal.Profit.StringFixed(2))

		assert.True(t, f.a.BestAsk().Quantity.IsZero())
		assert.True(t, f.b.BestBid().Quantity.Equal(d("4")))
		assert.True(t, f.a.BestAsk().Price.Equal(d("100.00")))
	})

	t.Run("reverse direction", func(t *testing.T) {
		f := newFixture(t, "0", true)
		f.publish(f.a, q("101.00", "2"), q("101.10", "2"))
		f.publish(f.b, q("99.00", "2"), q("100.00", "2"))

		deal := f.sink.last()
		require.Equal(t, notify.KindDealCompleted, deal.Kind)
		assert.Equal(t, "kraken", deal.BuyVenue)
		assert.Equal(t, "binance", deal.SellVenue)
		assert.Equal(t, "2.00", deal.Profit.StringFixed(2))
		assert.Equal(t, int32(1), f.b.purchases.Load())
		assert.Equal(t, int32(1), f.a.sales.Load())
	})

	t.Run("no depth", func(t *testing.T) {
		f := newFixture(t, "0", true)
		f.publish(f.a, q("99.90", "5"), q("100.00", "0"))
		f.publish(f.b, q("100.50", "5"), q("100.60", "5"))

		assert.Empty(t, f.sink.kinds())
	})

	t.Run("equal prices do not cross", func(t *testing.T) {
		f := newFixture(t, "0", true)
		f.publish(f.a, q("99.90", "5"), q("100.50", "5"))
		f.publish(f.b, q("100.50", "5"), q("100.60", "5"))

		assert.Empty(t, f.sink.kinds())
	})

	t.Run("notify only when not in demo mode", func(t *testing.T) {
		f := newFixture(t, "2.00", false)
		f.publish(f.a, q("99.90", "5"), q("100.00", "5"))
		f.publish(f.b, q("100.50", "5"), q("100.60", "5"))

		assert.Equal(t, []notify.Kind{notify.KindOpportunity}, f.sink.kinds())
		assert.Zero(t, f.a.purchases.Load()+f.b.sales.Load())
		assert.Zero(t, f.engine.Ledger().TotalDeals)
		assert.True(t, f.a.BestAsk().Quantity.Equal(d("5")), "depth untouched")
	})
}

func TestArbitrageEngine_FailedLegDoesNotBook(t *testing.T) {
	for _, tc := range []struct {
		name        string
		purchaseErr error
		saleErr     error
	}{
		{name: "purchase fails", purchaseErr: errors.New("rejected")},
		{name: "sale fails", saleErr: errors.New("timeout")},
		{name: "both fail", purchaseErr: errors.New("rejected"), saleErr: errors.New("timeout")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "0", true)
			f.a.purchaseErr = tc.purchaseErr
			f.b.saleErr = tc.saleErr

			f.publish(f.a, q("99.90", "5"), q("100.00", "5"))
			f.publish(f.b, q("100.50", "5"), q("100.60", "5"))

			require.Equal(t, []notify.Kind{notify.KindOpportunity, notify.KindDealFailed}, f.sink.kinds())
			assert.Error(t, f.sink.last().Err)
			assert.Equal(t, int32(1), f.a.purchases.Load(), "both legs are always attempted")
			assert.Equal(t, int32(1), f.b.sales.Load(), "both legs are always attempted")

			assert.Zero(t, f.engine.Ledger().TotalDeals)
			assert.True(t, f.engine.Ledger().TotalProfit.IsZero())
			assert.True(t, f.a.BestAsk().Quantity.Equal(d("5")), "depth is not consumed")
			assert.True(t, f.b.BestBid().Quantity.Equal(d("5")), "depth is not consumed")
		})
	}
}

func TestArbitrageEngine_LiveBookRejectsOversizedFill(t *testing.T) {
	f := newFixture(t, "0", true)
	f.publish(f.a, q("99.90", "5"), q("100.00", "5"))

	// The engine sees depth 5 on kraken while the live book has been thinned.
	stale := f.b.SetQuotes(q("100.50", "5"), q("100.60", "5"))
	f.b.SetQuotes(q("100.50", "1"), q("100.60", "5"))
	f.engine.OnVenueUpdate(context.Background(), "kraken", stale)

	assert.Equal(t, notify.KindDealFailed, f.sink.last().Kind)
	assert.ErrorIs(t, f.sink.last().Err, exchange.ErrInsufficientDepth)
	assert.Zero(t, f.engine.Ledger().TotalDeals)
}

func TestArbitrageEngine_RepeatedSnapshotDoesNotRefire(t *testing.T) {
	f := newFixture(t, "0", true)
	f.publish(f.a, q("99.90", "5"), q("100.00", "5"))
	f.publish(f.b, q("100.50", "3"), q("100.60", "5"))
	require.Equal(t, int64(1), f.engine.Ledger().TotalDeals)

	// Snapshots after the fill: binance has 2 left, kraken bid depth is gone.
	ctx := context.Background()
	f.engine.OnVenueUpdate(ctx, "binance", f.a.Snapshot())
	f.engine.OnVenueUpdate(ctx, "kraken", f.b.Snapshot())
	f.engine.OnVenueUpdate(ctx, "kraken", f.b.Snapshot())
	assert.Equal(t, int64(1), f.engine.Ledger().TotalDeals)

	// A fresh bid restores depth and trades the remaining 2.
	f.publish(f.b, q("100.50", "4"), q("100.60", "5"))
	ledger := f.engine.Ledger()
	assert.Equal(t, int64(2), ledger.TotalDeals)
	assert.True(t, f.sink.last().Quantity.Equal(d("2")))
	assert.Equal(t, "2.50", ledger.TotalProfit.StringFixed(2))
}

func TestArbitrageEngine_PreFillSnapshotIsStale(t *testing.T) {
	f := newFixture(t, "0", true)
	f.publish(f.a, q("99.90", "5"), q("100.00", "5"))
	before := f.b.SetQuotes(q("100.50", "5"), q("100.60", "5"))

	ctx := context.Background()
	f.engine.OnVenueUpdate(ctx, "kraken", before)
	f.engine.OnVenueUpdate(ctx, "kraken", before)

	assert.Equal(t, int64(1), f.engine.Ledger().TotalDeals)
	assert.Equal(t, int32(1), f.a.purchases.Load())
}

// unstamped drops the book timestamp, as a venue that does not stamp its quotes would.
func unstamped(s model.VenueState) model.VenueState {
	s.UpdatedAt = time.Time{}
	return s
}

func TestArbitrageEngine_UnstampedReplayDoesNotRefire(t *testing.T) {
	f := newFixture(t, "0", true)
	snapA := unstamped(f.a.SetQuotes(q("99.90", "5"), q("100.00", "5")))
	snapB := unstamped(f.b.SetQuotes(q("100.50", "3"), q("100.60", "5")))

	ctx := context.Background()
	f.engine.OnVenueUpdate(ctx, "binance", snapA)
	f.engine.OnVenueUpdate(ctx, "kraken", snapB)
	require.Equal(t, int64(1), f.engine.Ledger().TotalDeals)

	f.engine.OnVenueUpdate(ctx, "binance", snapA)
	f.engine.OnVenueUpdate(ctx, "kraken", snapB)
	f.engine.OnVenueUpdate(ctx, "kraken", snapB)

	assert.Equal(t, []notify.Kind{notify.KindOpportunity, notify.KindDealCompleted}, f.sink.kinds())
	assert.Equal(t, int32(1), f.a.purchases.Load())
	assert.Equal(t, int32(1), f.b.sales.Load())

	// A moved price is a real update and trades the 2 left on binance.
	moved := unstamped(f.b.SetQuotes(q("100.70", "5"), q("100.80", "5")))
	f.engine.OnVenueUpdate(ctx, "kraken", moved)

	ledger := f.engine.Ledger()
	assert.Equal(t, int64(2), ledger.TotalDeals)
	assert.True(t, f.sink.last().Quantity.Equal(d("2")))
	assert.Equal(t, "2.90", ledger.TotalProfit.StringFixed(2))
}

func TestArbitrageEngine_ConcurrentUpdatesNeverDoubleSpend(t *testing.T) {
	f := newFixture(t, "0", true)
	snapA := f.a.SetQuotes(q("99.90", "5"), q("100.00", "5"))
	snapB := f.b.SetQuotes(q("100.50", "5"), q("100.60", "5"))

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				f.engine.OnVenueUpdate(ctx, "binance", snapA)
			} else {
				f.engine.OnVenueUpdate(ctx, "kraken", snapB)
			}
		}()
	}
	wg.Wait()

	ledger := f.engine.Ledger()
	assert.Equal(t, int64(1), ledger.TotalDeals)
	assert.Equal(t, "2.50", ledger.TotalProfit.StringFixed(2))
	assert.Equal(t, int32(1), f.a.purchases.Load())
	assert.Equal(t, int32(1), f.b.sales.Load())
}

func TestArbitrageEngine_LedgerSumsRoundedProfits(t *testing.T) {
	f := newFixture(t, "0.01", true)

	// 10.004 rounds to 10.00 and 10.006 to 10.01: profit 0.01 per deal.
	f.publish(f.a, q("9.00", "1"), q("10.004", "1"))
	f.publish(f.b, q("10.006", "1"), q("11.00", "1"))
	// 3 x 100.005 = 300.015 -> 300.02, 3 x 100.015 = 300.045 -> 300.05
	f.publish(f.a, q("9.00", "3"), q("100.005", "3"))
	f.publish(f.b, q("100.015", "3"), q("101.00", "3"))
	// 2 x 50 = 100.00, 2 x 51.25 = 102.50
	f.publish(f.a, q("9.00", "2"), q("50", "2"))
	f.publish(f.b, q("51.25", "2"), q("60", "2"))

	ledger := f.engine.Ledger()
	assert.Equal(t, int64(3), ledger.TotalDeals)
	assert.Equal(t, "2.54", ledger.TotalProfit.StringFixed(2))
}

func TestArbitrageEngine_UnknownVenue(t *testing.T) {
	f := newFixture(t, "0", true)
	f.engine.OnVenueUpdate(context.Background(), "ftx", model.VenueState{Name: "ftx"})
	assert.Empty(t, f.sink.kinds())
}

func TestNewArbitrageEngine_SameVenueTwice(t *testing.T) {
	a := newFakeVenue("binance")
	_, err := NewArbitrageEngine(discardLogger(), config.ArbitrageConfig{}, nil, a, a)
	assert.Error(t, err)
}
