package wallet

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"bitmex-dashboard-go/internal/analytics"
	"go.uber.org/zap"
)

// Record is one header-keyed row of a BitMEX wallet-history CSV export.
type Record map[string]string

// ParseCSV reads a wallet-history export. The first row is treated as the
// header; ragged rows are tolerated and missing cells stay absent from the
// record.
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.Trim(strings.TrimSpace(h), `"`)
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(Record, len(headers))
		for i, value := range row {
			if i >= len(headers) {
				break
			}
			record[headers[i]] = strings.Trim(strings.TrimSpace(value), `"`)
		}
		if len(record) > 0 {
			records = append(records, record)
		}
	}
	return records, nil
}

// FindTransaction looks a row up by its transactID.
func FindTransaction(records []Record, txID string) (Record, bool) {
	for _, record := range records {
		if record["transactID"] == txID {
			return record, true
		}
	}
	return nil, false
}

// csvTimeLayouts are the timestamp formats wallet exports have been seen
// to use.
var csvTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

// ToTransactions converts CSV rows into wallet transactions for the
// analytics pipeline. Missing or malformed values default rather than
// fail: numbers to 0, timestamps to the current time.
func ToTransactions(records []Record, log *zap.Logger) []analytics.WalletTransaction {
	txs := make([]analytics.WalletTransaction, 0, len(records))
	for _, record := range records {
		tx := analytics.WalletTransaction{
			TransactID:     record["transactID"],
			TransactType:   record["transactType"],
			TransactStatus: record["transactStatus"],
			Address:        record["address"],
			Currency:       record["currency"],
			Amount:         parseNumber(record["amount"]),
			Fee:            parseNumber(record["fee"]),
			WalletBalance:  parseNumber(record["walletBalance"]),
		}

		tx.Timestamp = parseTime(record["transactTime"])
		if tx.Timestamp.IsZero() {
			log.Warn("unparseable CSV transaction time, falling back to now",
				zap.String("transactTime", record["transactTime"]),
				zap.String("transactID", tx.TransactID),
			)
			tx.Timestamp = time.Now()
		}

		txs = append(txs, tx)
	}
	return txs
}

// parseNumber handles the thousands separators exports include.
func parseNumber(value string) float64 {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return 0
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range csvTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
