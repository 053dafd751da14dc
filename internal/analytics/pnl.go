package analytics

import "math"

// TransactTypeRealisedPnL is the wallet-history transaction type carrying
// realized profit and loss.
const TransactTypeRealisedPnL = "RealisedPNL"

// executionTradePnL derives the realized PnL for one aggregated trade.
//
// When any constituent fill carries realized-PnL or commission data the sum
// of those fields is authoritative (commissions always subtract). Otherwise
// a closed trade's PnL is the entry/exit value difference signed by side;
// an open trade without realized fields has no PnL yet.
func executionTradePnL(fills []NormalizedExecution, side string, quantity float64, closed bool) float64 {
	var realized float64
	hasRealized := false
	for _, fill := range fills {
		if fill.HasPnl {
			realized += fill.RealizedPnl
			hasRealized = true
		}
		if fill.Commission != 0 {
			realized -= math.Abs(fill.Commission)
			hasRealized = true
		}
	}
	if hasRealized {
		return realized
	}

	if !closed || len(fills) == 0 {
		return 0
	}

	entryValue := fills[0].Price * quantity
	exitValue := fills[len(fills)-1].Price * quantity
	if side == SideBuy {
		return exitValue - entryValue
	}
	return entryValue - exitValue
}

// NetPnL returns the decimal-currency net PnL of one wallet transaction.
func NetPnL(tx WalletTransaction) float64 {
	return tx.Amount/WalletSatoshiScale - tx.Fee/WalletSatoshiScale
}

// WalletPnLs maps a wallet transaction set to its per-transaction net PnL
// values, preserving order.
func WalletPnLs(txs []WalletTransaction) []float64 {
	pnls := make([]float64, 0, len(txs))
	for _, tx := range txs {
		pnls = append(pnls, NetPnL(tx))
	}
	return pnls
}

// TotalWalletPnL sums the net PnL over a wallet transaction set.
func TotalWalletPnL(txs []WalletTransaction) float64 {
	var total float64
	for _, tx := range txs {
		total += NetPnL(tx)
	}
	return total
}

// FilterRealisedPnL keeps only RealisedPNL transactions, in input order.
// The input slice is not modified.
func FilterRealisedPnL(txs []WalletTransaction) []WalletTransaction {
	filtered := make([]WalletTransaction, 0, len(txs))
	for _, tx := range txs {
		if tx.TransactType == TransactTypeRealisedPnL {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}
