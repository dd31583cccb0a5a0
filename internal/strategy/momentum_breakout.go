package strategy

import (
	"context"
	"fmt"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// momentumWindowMs is how far back momentum_breakout looks for its oldest
// reference close (~5 minutes of 1m candles).
const momentumWindowMs = 5 * 60 * 1000

// MomentumBreakout is the momentum_breakout strategy: a short-lookback
// percent-change signal on 1m candles.
type MomentumBreakout struct{}

// Evaluate implements Evaluator.
func (s *MomentumBreakout) Evaluate(ctx context.Context, in Input) (*Intent, error) {
	allowed, reason := entryAllowed(in)
	if !allowed {
		in.Logger.WithField("symbol", in.Symbol).Debugf("momentum_breakout entry suppressed: %s", reason)
		return nil, nil
	}

	end := in.Now.UnixMilli()
	start := end - momentumWindowMs
	candles, err := in.Candles.Get(ctx, in.Symbol, "1m", start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching 1m candles for %s: %w", in.Symbol, err)
	}
	if len(candles) == 0 {
		return nil, nil
	}

	oldestClose := candles[0].Close
	if oldestClose == 0 {
		return nil, nil
	}
	momentum := (in.Mid - oldestClose) / oldestClose * 100

	// momentum_score is an observable metric only — the source never used
	// it as a filter, and this engine preserves that rather than infer intent.
	in.Logger.WithField("symbol", in.Symbol).WithField("momentum_score", momentum).Debug("momentum_breakout reading")

	switch {
	case momentum > 2.0:
		return &Intent{
			Symbol:     in.Symbol,
			Side:       domain.SideLong,
			EntryPrice: in.Mid,
			Reason:     "momentum breakout: upward",
			Data:       map[string]any{"momentum_score": momentum},
		}, nil
	case momentum < -2.0:
		return &Intent{
			Symbol:     in.Symbol,
			Side:       domain.SideShort,
			EntryPrice: in.Mid,
			Reason:     "momentum breakout: downward",
			Data:       map[string]any{"momentum_score": momentum},
		}, nil
	}
	return nil, nil
}
