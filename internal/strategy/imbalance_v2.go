package strategy

import (
	"context"
	"fmt"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// ImbalanceV2 is orderbook_imbalance_v2: a bounded-ratio long-only
// variant of ImbalanceV1 with its own min-hold/max-hold exit timing,
// layered on top of the position manager's TP/SL sweep. Per the
// documented open-question decision, v2 is intentionally long-only —
// it has no short branch.
type ImbalanceV2 struct{}

// Evaluate implements Evaluator.
func (s *ImbalanceV2) Evaluate(ctx context.Context, in Input) (*Intent, error) {
	allowed, reason := entryAllowed(in)
	if !allowed {
		in.Logger.WithField("symbol", in.Symbol).Debugf("imbalance_v2 entry suppressed: %s", reason)
		return nil, nil
	}

	book, err := in.Market.L2Book(ctx, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching l2 book for %s: %w", in.Symbol, err)
	}

	params := in.Bot.Strategy.Params
	bidDepth := sumSize(book.Bids, params.Depth)
	askDepth := sumSize(book.Asks, params.Depth)
	total := bidDepth + askDepth
	if total == 0 {
		return nil, nil
	}
	rho := bidDepth / total

	if rho <= params.ImbalanceThreshold {
		return nil, nil
	}

	now := in.Now
	in.State.V2OpenTime = &now
	in.State.V2LastTradeTime = &now

	// Intent.Symbol must be the same raw pair string the bot actor keys
	// its open-positions map, mids snapshot, and per-symbol state by
	// (in.Symbol, as configured in strategy.pairs) — not the normalized
	// base asset, which exists only for logging/display and would make
	// this position unreachable by CheckExit and entryAllowed forever.
	in.Logger.WithField("symbol", in.Symbol).WithField("base_asset", normalizeSymbol(in.Symbol)).Debug("orderbook_imbalance_v2 entry")

	return &Intent{
		Symbol:     in.Symbol,
		Side:       domain.SideLong,
		EntryPrice: in.Mid,
		Reason:     "orderbook_imbalance_v2: imbalance threshold exceeded",
		Data:       map[string]any{"ratio": rho, "threshold": params.ImbalanceThreshold, "base_asset": normalizeSymbol(in.Symbol)},
	}, nil
}

// CheckExit implements ExitChecker. It only applies to a currently open
// long on this symbol; it returns nil when no position is open or the
// hold-time/reversal conditions haven't fired.
func (s *ImbalanceV2) CheckExit(ctx context.Context, in Input) (*ExitSignal, error) {
	if !in.HasOpenPosition || in.Position == nil || in.State == nil || in.State.V2OpenTime == nil {
		return nil, nil
	}

	held := in.Now.Sub(*in.State.V2OpenTime)
	params := in.Bot.Strategy.Params

	if held >= 2*params.MinHoldTime {
		return &ExitSignal{Reason: "max hold reached"}, nil
	}
	if held < params.MinHoldTime {
		return nil, nil
	}

	book, err := in.Market.L2Book(ctx, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching l2 book for %s: %w", in.Symbol, err)
	}
	bidDepth := sumSize(book.Bids, params.Depth)
	askDepth := sumSize(book.Asks, params.Depth)
	total := bidDepth + askDepth
	if total == 0 {
		return nil, nil
	}
	rho := bidDepth / total

	if rho < (1 - params.ImbalanceThreshold) {
		return &ExitSignal{Reason: "imbalance reversed"}, nil
	}
	return nil, nil
}
