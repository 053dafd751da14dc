package analytics

import "math"

// MetricsSummary is the full reduction of a trade set into dashboard
// statistics. TotalLosses accumulates signed losing PnLs (zero or
// negative), so AvgLoss is reported as a negative number while
// ProfitFactor uses the absolute value.
type MetricsSummary struct {
	TotalTrades     int     `json:"totalTrades"`
	WinningTrades   int     `json:"winningTrades"`
	LosingTrades    int     `json:"losingTrades"`
	BreakEvenTrades int     `json:"breakEvenTrades"`
	WinRate         float64 `json:"winRate"`
	TotalPnL        float64 `json:"totalPnL"`
	TotalWinnings   float64 `json:"totalWinnings"`
	TotalLosses     float64 `json:"totalLosses"`
	AvgWin          float64 `json:"avgWin"`
	AvgLoss         float64 `json:"avgLoss"`
	ProfitFactor    float64 `json:"profitFactor"`
	MaxDrawdown     float64 `json:"maxDrawdown"`
	LongTrades      int     `json:"longTrades"`
	LongWinRate     float64 `json:"longWinRate"`
	LongPnL         float64 `json:"longPnL"`
	ShortTrades     int     `json:"shortTrades"`
	ShortWinRate    float64 `json:"shortWinRate"`
	ShortPnL        float64 `json:"shortPnL"`
}

// Summarize reduces a trade set into a MetricsSummary.
//
// Classification runs against threshold: winning when pnl > threshold,
// losing when pnl < -threshold, break-even otherwise. Max drawdown walks
// the trades in the order given, so the caller supplies them sorted
// chronologically; Summarize does not re-sort.
//
// With zero gross losses the profit factor is reported as 0; the gross
// winnings stay available in TotalWinnings for callers that prefer to
// render the raw figure.
func Summarize(trades []Trade, threshold float64) MetricsSummary {
	summary := MetricsSummary{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return summary
	}

	var longWins, shortWins int
	var balance, peak float64

	for _, trade := range trades {
		win := trade.PnL > threshold
		switch {
		case win:
			summary.WinningTrades++
			summary.TotalWinnings += trade.PnL
		case trade.PnL < -threshold:
			summary.LosingTrades++
			summary.TotalLosses += trade.PnL
		default:
			summary.BreakEvenTrades++
		}
		summary.TotalPnL += trade.PnL

		// Running drawdown against the historical peak balance.
		balance += trade.PnL
		if balance > peak {
			peak = balance
		} else if dd := peak - balance; dd > summary.MaxDrawdown {
			summary.MaxDrawdown = dd
		}

		switch trade.Type {
		case TypeLong:
			summary.LongTrades++
			summary.LongPnL += trade.PnL
			if win {
				longWins++
			}
		case TypeShort:
			summary.ShortTrades++
			summary.ShortPnL += trade.PnL
			if win {
				shortWins++
			}
		}
	}

	summary.WinRate = rate(summary.WinningTrades, summary.TotalTrades)
	summary.LongWinRate = rate(longWins, summary.LongTrades)
	summary.ShortWinRate = rate(shortWins, summary.ShortTrades)

	if summary.WinningTrades > 0 {
		summary.AvgWin = summary.TotalWinnings / float64(summary.WinningTrades)
	}
	if summary.LosingTrades > 0 {
		summary.AvgLoss = summary.TotalLosses / float64(summary.LosingTrades)
	}
	if summary.TotalLosses != 0 {
		summary.ProfitFactor = math.Abs(summary.TotalWinnings / summary.TotalLosses)
	}

	return summary
}

// SummarizeValues reduces bare PnL values, as produced by the wallet-ledger
// path, into a MetricsSummary. Long/short partitions stay zero because a
// ledger entry carries no direction.
func SummarizeValues(pnls []float64, threshold float64) MetricsSummary {
	trades := make([]Trade, 0, len(pnls))
	for _, pnl := range pnls {
		trades = append(trades, Trade{PnL: pnl})
	}
	return Summarize(trades, threshold)
}

// rate is the percentage of wins over total, 0 on an empty denominator.
func rate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}
