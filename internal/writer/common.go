package writer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/binance-collector/internal/model"
)

// parseDecimal converts an exchange decimal string (e.g. "50000.50") to a
// float64. The second return is false when the text is not a decimal, in
// which case the value is 0.
func parseDecimal(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// formatTimestamp renders a receipt time as HH:MM:SS.mmm UTC.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(model.TimestampLayout)
}
