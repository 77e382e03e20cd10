package pricing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// FromCents converts an amount in cents to dollars rounded to 2 decimals.
// Rounding happens on the float product cents/100*100, so a half cent that
// the division already nudged below .5 rounds down (14.5 -> 0.14), which
// keeps artifacts identical to those written by earlier rebuilds.
func FromCents(cents float64) float64 {
	v, _ := decimal.NewFromFloat(cents / 100 * 100).Round(0).Shift(-2).Float64()
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func ptr(v float64) *float64 {
	return &v
}

// ToISO formats a unix millisecond timestamp the way the artifact stores it.
func ToISO(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format("2006-01-02T15:04:05.000Z")
}

// FormatUpdatedAt renders the updatedAt stamp, e.g. "2025-03-01 14:05:09 UTC".
func FormatUpdatedAt(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

// WindowStart returns UTC midnight one year before now's UTC date.
func WindowStart(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year()-1, u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
