package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

const (
	liquidityGrabCadence  = 5 * time.Second
	liquidityArmedTimeout = 600 * time.Second
	liquiditySupportBand  = 0.001
	liquidityBounceBand   = 0.002
	liquidityVolumeRatio  = 0.8
	liquidityRecoveryPct  = 0.1
)

// LiquidityGrab is the liquidity_grab strategy: an Idle/Armed state
// machine per symbol that watches for a brief touch of support followed
// by a bounce.
type LiquidityGrab struct{}

// Evaluate implements Evaluator.
func (s *LiquidityGrab) Evaluate(ctx context.Context, in Input) (*Intent, error) {
	if !in.State.LastLiquidityCheck.IsZero() && in.Now.Sub(in.State.LastLiquidityCheck) < liquidityGrabCadence {
		return nil, nil
	}
	in.State.LastLiquidityCheck = in.Now

	end := in.Now.UnixMilli()
	candles1h, err := in.Candles.Get(ctx, in.Symbol, "1h", end-2*multiTFIntervalMs["1h"], end)
	if err != nil {
		return nil, fmt.Errorf("fetching 1h candles for %s: %w", in.Symbol, err)
	}
	candles30m, err := in.Candles.Get(ctx, in.Symbol, "30m", end-2*multiTFIntervalMs["30m"], end)
	if err != nil {
		return nil, fmt.Errorf("fetching 30m candles for %s: %w", in.Symbol, err)
	}
	candles15m, err := in.Candles.Get(ctx, in.Symbol, "15m", end-2*multiTFIntervalMs["15m"], end)
	if err != nil {
		return nil, fmt.Errorf("fetching 15m candles for %s: %w", in.Symbol, err)
	}
	closed1h := closedCandles(candles1h)
	closed30m := closedCandles(candles30m)
	closed15m := closedCandles(candles15m)
	if len(closed1h) == 0 || len(closed30m) == 0 {
		return nil, nil
	}

	last30m := closed30m[len(closed30m)-1]
	if last30m.Close < last30m.Open {
		return nil, nil // bearish last closed 30m: skip
	}

	var vNow float64
	if len(closed15m) > 0 {
		vNow = closed15m[len(closed15m)-1].Volume
	}

	allowed, reason := entryAllowed(in)
	if !allowed {
		in.Logger.WithField("symbol", in.Symbol).Debugf("liquidity_grab entry suppressed: %s", reason)
		return nil, nil
	}

	if in.State.LiquidityWick == nil {
		support, tf, vAvg := s.pickSupport(closed1h, closed30m)
		if support == 0 {
			return nil, nil
		}
		if in.Mid <= support*(1+liquiditySupportBand) {
			now := in.Now
			in.State.LiquidityWick = &WickEvent{
				SupportPrice: support,
				Timeframe:    tf,
				WickPrice:    in.Mid,
				WickTime:     now,
			}
			in.Logger.WithField("symbol", in.Symbol).Debugf("liquidity_grab armed at %.6f (support %.6f)", in.Mid, support)
		}
		_ = vAvg
		return nil, nil
	}

	wick := in.State.LiquidityWick
	elapsed := in.Now.Sub(wick.WickTime)
	if elapsed > liquidityArmedTimeout {
		in.State.LiquidityWick = nil
		return nil, nil
	}

	_, _, vAvg := s.pickSupport(closed1h, closed30m)
	volumeRatioOK := vAvg > 0 && vNow/vAvg >= liquidityVolumeRatio
	recoveryPct := (in.Mid - wick.WickPrice) / wick.WickPrice * 100
	recoveryOK := recoveryPct >= liquidityRecoveryPct

	if in.Mid >= wick.SupportPrice*(1-liquidityBounceBand) && (volumeRatioOK || recoveryOK) {
		in.State.LiquidityWick = nil
		return &Intent{
			Symbol:     in.Symbol,
			Side:       domain.SideLong,
			EntryPrice: in.Mid,
			Reason:     "liquidity grab: support bounce",
			Data:       map[string]any{"support": wick.SupportPrice, "timeframe": wick.Timeframe, "recovery_pct": recoveryPct},
		}, nil
	}
	return nil, nil
}

// pickSupport prefers the 1h candidate over 30m. avgVol is the average
// volume across the closed lookback candles of the chosen timeframe.
func (s *LiquidityGrab) pickSupport(closed1h, closed30m []domain.Candle) (support float64, timeframe string, avgVol float64) {
	if len(closed1h) > 0 {
		if last := closed1h[len(closed1h)-1]; last.Low > 0 {
			return last.Low, "1h", avgVolume(closed1h)
		}
	}
	if len(closed30m) > 0 {
		if last := closed30m[len(closed30m)-1]; last.Low > 0 {
			return last.Low, "30m", avgVolume(closed30m)
		}
	}
	return 0, "", 0
}

func avgVolume(candles []domain.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candles {
		sum += c.Volume
	}
	return sum / float64(len(candles))
}
