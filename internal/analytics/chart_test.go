package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPnLSeries(t *testing.T) {
	trades := []Trade{
		{Symbol: "ETHUSD", PnL: -20, EntryTimestamp: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{Symbol: "XBTUSD", PnL: 50, EntryTimestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{Symbol: "XBTUSD", PnL: 10, EntryTimestamp: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)},
	}

	points := PnLSeries(trades)

	assert.Len(t, points, 3)
	assert.Equal(t, "2024-03-01", points[0].Date)
	assert.InDelta(t, 50, points[0].CumulativePnL, 1e-9)
	assert.Equal(t, "2024-03-02", points[1].Date)
	assert.InDelta(t, 30, points[1].CumulativePnL, 1e-9)
	assert.Equal(t, "2024-03-03", points[2].Date)
	assert.InDelta(t, 40, points[2].CumulativePnL, 1e-9)

	// Input order untouched.
	assert.Equal(t, "ETHUSD", trades[0].Symbol)
}

func TestBalanceSeries(t *testing.T) {
	txs := []WalletTransaction{
		{Timestamp: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), WalletBalance: 1_682_039_462},
		{Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), WalletBalance: 1_000_000},
	}

	points := BalanceSeries(txs)

	assert.Len(t, points, 2)
	assert.Equal(t, "2024-03-01", points[0].Date)
	assert.InDelta(t, 1.0, points[0].Balance, 1e-9)
	assert.InDelta(t, 1682.039462, points[1].Balance, 1e-6)
}

func TestDistributionBySymbol(t *testing.T) {
	trades := []Trade{
		{Symbol: "XBTUSD", PnL: 10},
		{Symbol: "ETHUSD", PnL: -5},
		{Symbol: "XBTUSD", PnL: -3},
		{Symbol: "XBTUSD", PnL: 7},
	}

	dist := DistributionBySymbol(trades)

	assert.Len(t, dist, 2)
	assert.Equal(t, "XBTUSD", dist[0].Symbol) // first-seen order
	assert.Equal(t, 3, dist[0].TotalTrades)
	assert.Equal(t, 2, dist[0].WinningTrades)
	assert.Equal(t, 1, dist[0].LosingTrades)
	assert.InDelta(t, 100.0*2/3, dist[0].WinRate, 1e-9)

	assert.Equal(t, "ETHUSD", dist[1].Symbol)
	assert.Zero(t, dist[1].WinningTrades)
}

func TestDistributionBySide(t *testing.T) {
	trades := []Trade{
		{Type: TypeLong, PnL: 10},
		{Type: TypeLong, PnL: -10},
		{Type: TypeShort, PnL: 5},
		{Type: TypeShort, PnL: 0}, // break-even lands in no category
	}

	dist := DistributionBySide(trades)

	assert.Len(t, dist, 4)
	assert.Equal(t, SideBreakdown{Name: "Long Wins", Value: 1}, dist[0])
	assert.Equal(t, SideBreakdown{Name: "Long Losses", Value: 1}, dist[1])
	assert.Equal(t, SideBreakdown{Name: "Short Wins", Value: 1}, dist[2])
	assert.Equal(t, SideBreakdown{Name: "Short Losses", Value: 0}, dist[3])
}

func TestDistributionEmptyInput(t *testing.T) {
	assert.Empty(t, PnLSeries(nil))
	assert.Empty(t, BalanceSeries(nil))
	assert.Empty(t, DistributionBySymbol(nil))
	assert.Len(t, DistributionBySide(nil), 4)
}

func TestPipelineWalletSummary(t *testing.T) {
	p := NewPipeline(zap.NewNop(), 0)

	txs := []WalletTransaction{
		{TransactType: TransactTypeRealisedPnL, Amount: 2_000_000, Fee: 10_000},
		{TransactType: "Deposit", Amount: 99_000_000},
		{TransactType: TransactTypeRealisedPnL, Amount: -500_000, Fee: 5_000},
	}

	filtered, total, summary := p.WalletSummary(txs, 0)

	assert.Len(t, filtered, 2)
	assert.InDelta(t, 1.485, total, 1e-9)
	assert.Equal(t, 2, summary.TotalTrades)
	assert.InDelta(t, total, summary.TotalPnL, 1e-9)
}
