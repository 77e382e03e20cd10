package pricing

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"game-price-tracker/internal/models"
)

// priceEpsilon is the largest difference still treated as "same price".
const priceEpsilon = 0.0001

// ParseSeries decodes raw [timestamp, cents] chart entries into dollar
// PricePoints sorted by timestamp. Malformed entries are dropped.
func ParseSeries(raw []json.RawMessage) []models.PricePoint {
	points := make([]models.PricePoint, 0, len(raw))
	for _, entry := range raw {
		var pair []any
		if err := json.Unmarshal(entry, &pair); err != nil || len(pair) < 2 {
			continue
		}
		ts, ok := toNumber(pair[0])
		if !ok {
			continue
		}
		cents, ok := toNumber(pair[1])
		if !ok {
			continue
		}
		points = append(points, models.PricePoint{TimestampMs: int64(ts), Price: FromCents(cents)})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})
	return points
}

// CompressSeries turns a raw chart series into change points confined to
// [start, now]. A non-empty result always ends exactly at now.
func CompressSeries(raw []json.RawMessage, start, now time.Time) []models.PricePoint {
	all := ParseSeries(raw)
	if len(all) == 0 {
		return nil
	}
	startMs, nowMs := start.UnixMilli(), now.UnixMilli()

	var points []models.PricePoint
	add := func(p models.PricePoint) {
		// same instant: the later reading wins
		if n := len(points); n > 0 && points[n-1].TimestampMs == p.TimestampMs {
			points[n-1] = p
			return
		}
		points = append(points, p)
	}

	// last price seen before the window holds at its start
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].TimestampMs < startMs {
			add(models.PricePoint{TimestampMs: startMs, Price: all[i].Price})
			break
		}
	}
	for _, p := range all {
		if p.TimestampMs >= startMs && p.TimestampMs <= nowMs {
			add(p)
		}
	}

	if len(points) == 0 {
		for i := len(all) - 1; i >= 0; i-- {
			if all[i].TimestampMs <= nowMs {
				return []models.PricePoint{
					{TimestampMs: startMs, Price: all[i].Price},
					{TimestampMs: nowMs, Price: all[i].Price},
				}
			}
		}
		return nil
	}

	compressed := make([]models.PricePoint, 0, len(points))
	for _, p := range points {
		if n := len(compressed); n > 0 && math.Abs(compressed[n-1].Price-p.Price) < priceEpsilon {
			compressed[n-1].TimestampMs = p.TimestampMs
			continue
		}
		compressed = append(compressed, p)
	}

	if last := compressed[len(compressed)-1]; last.TimestampMs < nowMs {
		compressed = append(compressed, models.PricePoint{TimestampMs: nowMs, Price: last.Price})
	}
	return compressed
}

// MergeSeries aligns two compressed series on the union of their timestamps.
// Each storefront carries its last known price forward; consecutive rows with
// identical prices collapse into the later one.
func MergeSeries(steam, epic []models.PricePoint) []models.MergedPoint {
	stamps := make([]int64, 0, len(steam)+len(epic))
	for _, p := range steam {
		stamps = append(stamps, p.TimestampMs)
	}
	for _, p := range epic {
		stamps = append(stamps, p.TimestampMs)
	}
	if len(stamps) == 0 {
		return nil
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	merged := make([]models.MergedPoint, 0, len(stamps))
	var si, ei int
	var steamVal, epicVal *float64
	for i, ts := range stamps {
		if i > 0 && stamps[i-1] == ts {
			continue
		}
		for si < len(steam) && steam[si].TimestampMs <= ts {
			steamVal = ptr(steam[si].Price)
			si++
		}
		for ei < len(epic) && epic[ei].TimestampMs <= ts {
			epicVal = ptr(epic[ei].Price)
			ei++
		}
		row := models.MergedPoint{At: ToISO(ts), Steam: steamVal, Epic: epicVal}

		if n := len(merged); n > 0 && samePrice(merged[n-1].Steam, row.Steam) && samePrice(merged[n-1].Epic, row.Epic) {
			merged[n-1].At = row.At
			continue
		}
		merged = append(merged, row)
	}
	return merged
}

// MonthlyBuckets reduces merged points to the 12 calendar months ending at
// now's month, oldest first.
func MonthlyBuckets(points []models.MergedPoint, now time.Time) []models.MonthlyBucket {
	u := now.UTC()
	buckets := make([]models.MonthlyBucket, 0, 12)
	ends := make([]time.Time, 0, 12)
	for i := 11; i >= 0; i-- {
		start := time.Date(u.Year(), u.Month()-time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		buckets = append(buckets, models.MonthlyBucket{Month: start.Format("2006-01")})
		ends = append(ends, start.AddDate(0, 1, 0).Add(-time.Microsecond))
	}
	if len(points) == 0 {
		return buckets
	}

	type stamped struct {
		at          time.Time
		steam, epic *float64
	}
	parsed := make([]stamped, 0, len(points))
	for _, p := range points {
		at, err := time.Parse(time.RFC3339Nano, p.At)
		if err != nil {
			continue
		}
		parsed = append(parsed, stamped{at: at, steam: p.Steam, epic: p.Epic})
	}
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].at.Before(parsed[j].at) })

	for i := range buckets {
		var steam, epic *float64
		for _, p := range parsed {
			if p.at.After(ends[i]) {
				break
			}
			steam, epic = p.steam, p.epic
		}
		buckets[i].Steam = clone(steam)
		buckets[i].Epic = clone(epic)
	}
	return buckets
}

func samePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return ptr(*v)
}

// toNumber accepts JSON numbers and numeric strings.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, finite(f)
}
