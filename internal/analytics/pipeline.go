package analytics

import "go.uber.org/zap"

// Pipeline is the entry point for one fetch-and-compute cycle: raw
// executions and wallet entries in, aggregated trades and summaries out.
// It holds no per-run state, so a single Pipeline can serve every request.
type Pipeline struct {
	normalizer *Normalizer
	threshold  float64
}

// NewPipeline wires a pipeline with the given break-even threshold.
func NewPipeline(log *zap.Logger, threshold float64) *Pipeline {
	return &Pipeline{
		normalizer: NewNormalizer(log),
		threshold:  threshold,
	}
}

// Threshold returns the configured break-even classification band.
func (p *Pipeline) Threshold() float64 {
	return p.threshold
}

// Trades normalizes raw execution rows and aggregates them into trades.
func (p *Pipeline) Trades(raws []RawExecution) []Trade {
	return AggregateExecutions(p.normalizer.Normalize(raws))
}

// Summary aggregates raw executions and reduces them into the full metrics
// summary. Trades are fed to the metrics engine sorted by entry time, the
// order the drawdown computation requires.
func (p *Pipeline) Summary(raws []RawExecution) ([]Trade, MetricsSummary) {
	trades := p.Trades(raws)
	chronological := make([]Trade, len(trades))
	copy(chronological, trades)
	sortTradesByEntry(chronological)
	return trades, Summarize(chronological, p.threshold)
}

// WalletSummary filters a wallet-history set to realized-PnL transactions
// and reduces their net PnLs, returning the filtered set, the total and
// the summary.
func (p *Pipeline) WalletSummary(txs []WalletTransaction, threshold float64) ([]WalletTransaction, float64, MetricsSummary) {
	filtered := FilterRealisedPnL(txs)
	return filtered, TotalWalletPnL(filtered), SummarizeValues(WalletPnLs(filtered), threshold)
}
