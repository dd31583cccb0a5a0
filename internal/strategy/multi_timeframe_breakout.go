package strategy

import (
	"context"
	"fmt"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// multiTFLookback is how many closed candles multi_timeframe_breakout
// retrieves per timeframe to compute its average-volume reference.
const multiTFLookback = 20

var multiTFIntervalMs = map[string]int64{
	"15m": 15 * 60 * 1000,
	"30m": 30 * 60 * 1000,
	"1h":  60 * 60 * 1000,
}

const nearLowWiggle = 0.0005

// MultiTimeframeBreakout is multi_timeframe_breakout: a dip-buying,
// long-only strategy. Each timeframe's high is recorded but no near-high
// condition is evaluated or logged; highs never fire entries.
type MultiTimeframeBreakout struct{}

type tfSnapshot struct {
	high   float64
	low    float64
	avgVol float64
}

// Evaluate implements Evaluator.
func (s *MultiTimeframeBreakout) Evaluate(ctx context.Context, in Input) (*Intent, error) {
	snapshots := make(map[string]tfSnapshot, len(multiTFIntervalMs))
	for _, tf := range []string{"15m", "30m", "1h"} {
		snap, err := s.fetchSnapshot(ctx, in, tf)
		if err != nil {
			return nil, fmt.Errorf("fetching %s snapshot for %s: %w", tf, in.Symbol, err)
		}
		if snap == nil {
			continue
		}
		snapshots[tf] = *snap
	}

	bullish := s.trendFilterPermits(ctx, in)

	w := clamp(snapshots["15m"].avgVol/nonZero(snapshots["30m"].avgVol), 0.5, 3.0)
	hasVolume := w > 0.5

	// "Near" low means within nearLowWiggle of the reference low, not
	// strictly below it — a price a touch above the low still counts as
	// a dip buy as long as it's inside the wiggle band.
	nearLow := func(tf string) bool {
		snap, ok := snapshots[tf]
		if !ok || snap.low == 0 {
			return false
		}
		return absFloat(in.Mid-snap.low)/snap.low <= nearLowWiggle
	}
	nearLow1h := nearLow("1h")
	nearLow30m := nearLow("30m")
	nearLow15m := nearLow("15m")

	in.Logger.WithField("symbol", in.Symbol).WithFields(map[string]any{
		"near_low_1h": nearLow1h, "near_low_30m": nearLow30m, "near_low_15m": nearLow15m,
		"volume_weight": w, "has_volume": hasVolume, "trend_bullish": bullish,
	}).Debug("multi_timeframe_breakout reading")

	if !bullish {
		return nil, nil
	}
	allowed, reason := entryAllowed(in)
	if !allowed {
		in.Logger.WithField("symbol", in.Symbol).Debugf("multi_timeframe_breakout entry suppressed: %s", reason)
		return nil, nil
	}

	switch {
	case nearLow1h && hasVolume:
		return s.intent(in, "Buy dip at 1h low"), nil
	case nearLow30m && hasVolume:
		return s.intent(in, "Buy dip at 30m low"), nil
	case nearLow15m && hasVolume:
		return s.intent(in, "Buy dip at 15m low"), nil
	}
	return nil, nil
}

func (s *MultiTimeframeBreakout) intent(in Input, reason string) *Intent {
	return &Intent{
		Symbol:     in.Symbol,
		Side:       domain.SideLong,
		EntryPrice: in.Mid,
		Reason:     reason,
	}
}

func (s *MultiTimeframeBreakout) fetchSnapshot(ctx context.Context, in Input, tf string) (*tfSnapshot, error) {
	intervalMs := multiTFIntervalMs[tf]
	end := in.Now.UnixMilli()
	start := end - intervalMs*multiTFLookback
	candles, err := in.Candles.Get(ctx, in.Symbol, tf, start, end)
	if err != nil {
		return nil, err
	}
	closed := closedCandles(candles)
	if len(closed) == 0 {
		return nil, nil
	}
	last := closed[len(closed)-1]

	var volSum float64
	for _, c := range closed {
		volSum += c.Volume
	}
	return &tfSnapshot{
		high:   last.High,
		low:    last.Low,
		avgVol: volSum / float64(len(closed)),
	}, nil
}

// trendFilterPermits examines the last closed 1h candle; a bearish candle
// blocks entries. On a fetch error or when no candle is available it
// returns the TrendFilterFailOpen parameter: true permits trading, false
// blocks it.
func (s *MultiTimeframeBreakout) trendFilterPermits(ctx context.Context, in Input) bool {
	end := in.Now.UnixMilli()
	start := end - multiTFIntervalMs["1h"]*2
	candles, err := in.Candles.Get(ctx, in.Symbol, "1h", start, end)
	if err != nil {
		return in.Bot.Strategy.Params.TrendFilterFailOpen
	}
	closed := closedCandles(candles)
	if len(closed) == 0 {
		return in.Bot.Strategy.Params.TrendFilterFailOpen
	}
	last := closed[len(closed)-1]
	return last.Close >= last.Open
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
