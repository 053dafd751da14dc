package analytics

import "sort"

// PnLPoint is one step of the cumulative PnL series consumed by the
// dashboard's PnL chart.
type PnLPoint struct {
	Date          string  `json:"date"`
	PnL           float64 `json:"pnl"`
	CumulativePnL float64 `json:"cumulativePnL"`
	Symbol        string  `json:"symbol"`
}

// PnLSeries orders trades chronologically by entry time and accumulates
// their PnL into a chartable series. The input slice is not modified.
func PnLSeries(trades []Trade) []PnLPoint {
	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EntryTimestamp.Before(sorted[j].EntryTimestamp)
	})

	points := make([]PnLPoint, 0, len(sorted))
	var cumulative float64
	for _, trade := range sorted {
		cumulative += trade.PnL
		points = append(points, PnLPoint{
			Date:          trade.EntryTimestamp.Format("2006-01-02"),
			PnL:           trade.PnL,
			CumulativePnL: cumulative,
			Symbol:        trade.Symbol,
		})
	}
	return points
}

// BalancePoint is one step of the account balance series.
type BalancePoint struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

// BalanceSeries maps wallet transactions to their running wallet balance in
// decimal currency, sorted ascending by timestamp.
func BalanceSeries(txs []WalletTransaction) []BalancePoint {
	sorted := make([]WalletTransaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	points := make([]BalancePoint, 0, len(sorted))
	for _, tx := range sorted {
		points = append(points, BalancePoint{
			Date:    tx.Timestamp.Format("2006-01-02"),
			Balance: tx.WalletBalance / WalletSatoshiScale,
		})
	}
	return points
}

// SymbolDistribution is the per-symbol win/loss breakdown for the trade
// distribution chart.
type SymbolDistribution struct {
	Symbol        string  `json:"symbol"`
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"`
}

// DistributionBySymbol groups trades per symbol, in first-seen symbol
// order, and computes each group's win/loss counts.
func DistributionBySymbol(trades []Trade) []SymbolDistribution {
	byIndex := make(map[string]int)
	dist := make([]SymbolDistribution, 0)

	for _, trade := range trades {
		i, seen := byIndex[trade.Symbol]
		if !seen {
			i = len(dist)
			byIndex[trade.Symbol] = i
			dist = append(dist, SymbolDistribution{Symbol: trade.Symbol})
		}
		dist[i].TotalTrades++
		if trade.PnL > 0 {
			dist[i].WinningTrades++
		}
	}

	for i := range dist {
		dist[i].LosingTrades = dist[i].TotalTrades - dist[i].WinningTrades
		dist[i].WinRate = rate(dist[i].WinningTrades, dist[i].TotalTrades)
	}
	return dist
}

// SideBreakdown is one slice of the long/short win-loss pie chart.
type SideBreakdown struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// DistributionBySide partitions trades into the four long/short win/loss
// categories. All four categories are always present.
func DistributionBySide(trades []Trade) []SideBreakdown {
	var longWins, longLosses, shortWins, shortLosses int
	for _, trade := range trades {
		switch {
		case trade.Type == TypeLong && trade.PnL > 0:
			longWins++
		case trade.Type == TypeLong && trade.PnL < 0:
			longLosses++
		case trade.Type == TypeShort && trade.PnL > 0:
			shortWins++
		case trade.Type == TypeShort && trade.PnL < 0:
			shortLosses++
		}
	}
	return []SideBreakdown{
		{Name: "Long Wins", Value: longWins},
		{Name: "Long Losses", Value: longLosses},
		{Name: "Short Wins", Value: shortWins},
		{Name: "Short Losses", Value: shortLosses},
	}
}
