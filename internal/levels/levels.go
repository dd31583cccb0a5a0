// Package levels implements touch-counting support/resistance zone
// detection over a set of closed candles, and multi-timeframe closest-level
// selection. Ported in idiom (not transliterated) from the original
// platform's scanner_worker.calculate_levels / find_closest_level.
package levels

import (
	"sort"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// ZoneThreshold is the relative price-matching tolerance for grouping
// touches into one zone (0.5%).
const ZoneThreshold = 0.005

// TimeframeWeights maps a timeframe label to its level strength weight.
var TimeframeWeights = map[string]int{
	"5m":  1,
	"15m": 2,
	"30m": 3,
	"1h":  4,
	"4h":  6,
	"12h": 8,
	"1d":  10,
}

func weightFor(timeframe string) int {
	if w, ok := TimeframeWeights[timeframe]; ok {
		return w
	}
	return 1
}

// zone is a pivot price with a running touch count.
type zone struct {
	price   float64
	touches int
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Calculate runs the touch-counting algorithm for one timeframe's closed
// candles relative to referencePrice, and returns the closest support
// below and resistance above. Deterministic in candle order: the same
// input sequence always yields the same zones and classification.
func Calculate(candles []domain.Candle, timeframe string, referencePrice float64) domain.TimeframeLevels {
	if len(candles) == 0 {
		return fallback(candles, timeframe, referencePrice)
	}

	var zones []*zone
	for _, c := range candles {
		if c.High <= 0 || c.Low <= 0 {
			continue
		}
		touchZone(&zones, c.High, referencePrice)
		touchZone(&zones, c.Low, referencePrice)
	}

	var significant []*zone
	for _, z := range zones {
		if z.touches >= 2 {
			significant = append(significant, z)
		}
	}
	if len(significant) == 0 {
		return fallback(candles, timeframe, referencePrice)
	}

	// Sort by touch count descending; stable to keep insertion order among ties.
	sort.SliceStable(significant, func(i, j int) bool {
		return significant[i].touches > significant[j].touches
	})

	weight := weightFor(timeframe)
	var support, resistance *domain.LevelPoint
	for _, z := range significant {
		if z.price < referencePrice {
			if support == nil || referencePrice-z.price < referencePrice-support.Price {
				support = &domain.LevelPoint{Price: z.price, Timeframe: timeframe, Touches: z.touches, Weight: weight}
			}
		} else if z.price > referencePrice {
			if resistance == nil || z.price-referencePrice < resistance.Price-referencePrice {
				resistance = &domain.LevelPoint{Price: z.price, Timeframe: timeframe, Touches: z.touches, Weight: weight}
			}
		}
	}
	return domain.TimeframeLevels{Support: support, Resistance: resistance}
}

// touchZone increments the matching zone's count (creating/appending one if
// needed) — it mutates zones in place so repeated touches on the same pivot
// accumulate on a single slice entry.
func touchZone(zones *[]*zone, price, referencePrice float64) {
	for _, z := range *zones {
		if referencePrice == 0 {
			continue
		}
		if absFloat(z.price-price)/referencePrice <= ZoneThreshold {
			z.touches++
			return
		}
	}
	*zones = append(*zones, &zone{price: price, touches: 1})
}

// fallback uses the extremes of the most recent up-to-20 closed candles as
// a single support/resistance pair when no zone reaches 2 touches. When
// fewer than 20 candles are available, every candle on hand is used — a
// no-op slice bound, matching the original platform's behavior exactly.
func fallback(candles []domain.Candle, timeframe string, referencePrice float64) domain.TimeframeLevels {
	if len(candles) == 0 {
		return domain.TimeframeLevels{}
	}
	n := 20
	if len(candles) < n {
		n = len(candles)
	}
	recent := candles[len(candles)-n:]

	high, low := recent[0].High, recent[0].Low
	for _, c := range recent[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	weight := weightFor(timeframe)
	var support, resistance *domain.LevelPoint
	if low < referencePrice {
		support = &domain.LevelPoint{Price: low, Timeframe: timeframe, Touches: 1, Weight: weight}
	}
	if high > referencePrice {
		resistance = &domain.LevelPoint{Price: high, Timeframe: timeframe, Touches: 1, Weight: weight}
	}
	return domain.TimeframeLevels{Support: support, Resistance: resistance}
}

// ClosestLevel selects, across every inspected timeframe, the single
// nearest level by (distance_pct ascending, weight descending).
func ClosestLevel(byTF map[string]domain.TimeframeLevels, currentPrice float64) *domain.ClosestLevel {
	var candidates []domain.ClosestLevel
	for tf, lv := range byTF {
		if lv.Support != nil && currentPrice != 0 {
			dist := absFloat(currentPrice-lv.Support.Price) / currentPrice * 100
			candidates = append(candidates, domain.ClosestLevel{
				Price: lv.Support.Price, Timeframe: tf, Type: "LOW",
				DistancePct: dist, Weight: lv.Support.Weight,
			})
		}
		if lv.Resistance != nil && currentPrice != 0 {
			dist := absFloat(lv.Resistance.Price-currentPrice) / currentPrice * 100
			candidates = append(candidates, domain.ClosestLevel{
				Price: lv.Resistance.Price, Timeframe: tf, Type: "HIGH",
				DistancePct: dist, Weight: lv.Resistance.Weight,
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistancePct != candidates[j].DistancePct {
			return candidates[i].DistancePct < candidates[j].DistancePct
		}
		return candidates[i].Weight > candidates[j].Weight
	})
	return &candidates[0]
}
