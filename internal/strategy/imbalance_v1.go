package strategy

import (
	"context"
	"fmt"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// ImbalanceV1 is the orderbook_imbalance strategy: a straight bid/ask
// depth ratio over the top 10 levels on each side.
type ImbalanceV1 struct{}

const imbalanceV1Depth = 10

// Evaluate implements Evaluator.
func (s *ImbalanceV1) Evaluate(ctx context.Context, in Input) (*Intent, error) {
	book, err := in.Market.L2Book(ctx, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching l2 book for %s: %w", in.Symbol, err)
	}

	bidDepth := sumSize(book.Bids, imbalanceV1Depth)
	askDepth := sumSize(book.Asks, imbalanceV1Depth)
	if askDepth == 0 {
		return nil, nil
	}
	ratio := bidDepth / askDepth

	allowed, reason := entryAllowed(in)
	if !allowed {
		in.Logger.WithField("symbol", in.Symbol).Debugf("imbalance_v1 entry suppressed: %s", reason)
		return nil, nil
	}

	switch {
	case ratio > 3.0:
		if len(book.Asks) == 0 {
			return nil, nil
		}
		return &Intent{
			Symbol:     in.Symbol,
			Side:       domain.SideLong,
			EntryPrice: book.Asks[0].Price,
			Reason:     "orderbook imbalance: bid-heavy",
			Data:       map[string]any{"ratio": ratio, "bid_depth": bidDepth, "ask_depth": askDepth},
		}, nil
	case ratio < 0.33:
		if len(book.Bids) == 0 {
			return nil, nil
		}
		return &Intent{
			Symbol:     in.Symbol,
			Side:       domain.SideShort,
			EntryPrice: book.Bids[0].Price,
			Reason:     "orderbook imbalance: ask-heavy",
			Data:       map[string]any{"ratio": ratio, "bid_depth": bidDepth, "ask_depth": askDepth},
		}, nil
	}
	return nil, nil
}

func sumSize(levels []domain.BookLevel, depth int) float64 {
	var total float64
	for i, lvl := range levels {
		if i >= depth {
			break
		}
		total += lvl.Size
	}
	return total
}
