package analytics

import (
	"fmt"
	"time"
)

// Dimension selects the calendar axis for time-bucketed analysis.
type Dimension string

const (
	GroupByDayOfWeek Dimension = "dayOfWeek"
	GroupByHourOfDay Dimension = "hourOfDay"
)

// TimeBucket holds per-calendar-unit trade statistics.
type TimeBucket struct {
	Label      string  `json:"label"`
	TradeCount int     `json:"tradeCount"`
	WinRate    float64 `json:"winRate"`
	PnL        float64 `json:"pnl"`
}

// BucketTrades groups trades by the entry timestamp's local weekday or
// hour. The full fixed label set is always emitted, empty buckets
// included, so chart axes stay stable regardless of data sparsity.
func BucketTrades(trades []Trade, dim Dimension) ([]TimeBucket, error) {
	var size int
	var label func(i int) string
	var index func(t time.Time) int

	switch dim {
	case GroupByDayOfWeek:
		size = 7
		label = func(i int) string { return time.Weekday(i).String() }
		index = func(t time.Time) int { return int(t.Local().Weekday()) }
	case GroupByHourOfDay:
		size = 24
		label = func(i int) string { return fmt.Sprintf("%d:00", i) }
		index = func(t time.Time) int { return t.Local().Hour() }
	default:
		return nil, fmt.Errorf("unknown grouping dimension %q", dim)
	}

	buckets := make([]TimeBucket, size)
	wins := make([]int, size)
	for i := range buckets {
		buckets[i].Label = label(i)
	}

	for _, trade := range trades {
		i := index(trade.EntryTimestamp)
		buckets[i].TradeCount++
		buckets[i].PnL += trade.PnL
		if trade.PnL > 0 {
			wins[i]++
		}
	}

	for i := range buckets {
		buckets[i].WinRate = rate(wins[i], buckets[i].TradeCount)
	}
	return buckets, nil
}
