package strategy

import (
	"context"
	"fmt"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

const (
	supportLiquidityBand   = 0.0015
	supportLiquidityFloor  = 0.9985
	supportLiquidityTrades = 100
)

// SupportLiquidity is the support_liquidity strategy: long-only entries
// near a scanner-derived support level, confirmed by net trade flow.
type SupportLiquidity struct{}

// Evaluate implements Evaluator.
func (s *SupportLiquidity) Evaluate(ctx context.Context, in Input) (*Intent, error) {
	level, err := in.Scanner.Get(ctx, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("reading scanner level for %s: %w", in.Symbol, err)
	}
	if level == nil || level.Support == nil {
		return nil, nil
	}
	support := level.Support.Price

	trades, err := in.Market.RecentTrades(ctx, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching recent trades for %s: %w", in.Symbol, err)
	}
	if len(trades) > supportLiquidityTrades {
		trades = trades[len(trades)-supportLiquidityTrades:]
	}

	var buyVolume, sellVolume float64
	for _, t := range trades {
		notional := t.Price * t.Size
		if t.Side == domain.InitiatorBid {
			buyVolume += notional
		} else {
			sellVolume += notional
		}
	}
	netFlow := buyVolume - sellVolume
	bullish := netFlow > 0

	in.Logger.WithField("symbol", in.Symbol).WithFields(map[string]any{
		"support": support, "net_flow": netFlow, "bullish": bullish,
	}).Debug("support_liquidity reading")

	if !bullish || support == 0 {
		return nil, nil
	}
	if absFloat(in.Mid-support)/support > supportLiquidityBand {
		return nil, nil
	}
	if in.Mid < support*supportLiquidityFloor {
		return nil, nil
	}

	allowed, reason := entryAllowed(in)
	if !allowed {
		in.Logger.WithField("symbol", in.Symbol).Debugf("support_liquidity entry suppressed: %s", reason)
		return nil, nil
	}

	return &Intent{
		Symbol:     in.Symbol,
		Side:       domain.SideLong,
		EntryPrice: in.Mid,
		Reason:     "support liquidity: bullish flow at support",
		Data:       map[string]any{"support": support, "net_flow": netFlow},
	}, nil
}
