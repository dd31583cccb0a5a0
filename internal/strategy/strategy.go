// Package strategy implements the engine's entry-decision procedures.
//
// Each strategy is a closed variant dispatched by domain.StrategyType
// rather than a string switch scattered through the bot loop — each bot
// actor builds its own map[domain.StrategyType]Evaluator when it is
// created and looks up its evaluator once per tick.
package strategy

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// Intent is an evaluator's request to open a position. Exit decisions are
// not modeled here — they belong to the position manager.
type Intent struct {
	Symbol     string
	Side       domain.Side
	EntryPrice float64
	Reason     string
	Data       map[string]any
}

// MarketSource is the subset of the market data client a strategy needs.
type MarketSource interface {
	L2Book(ctx context.Context, symbol string) (*domain.L2Book, error)
	RecentTrades(ctx context.Context, symbol string) ([]domain.RecentTrade, error)
}

// CandleSource is satisfied by *candlecache.Cache.
type CandleSource interface {
	Get(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]domain.Candle, error)
}

// ScannerSource is satisfied by *store.ScannerLevelStore.
type ScannerSource interface {
	Get(ctx context.Context, symbol string) (*domain.ScannerLevel, error)
}

// Input bundles everything an Evaluator needs for one symbol on one tick.
// State is owned by the calling bot actor and mutated in place across
// ticks — strategies never persist their own timers.
type Input struct {
	Bot             domain.BotConfig
	Symbol          string
	Mid             float64
	HasOpenPosition bool
	OpenCount       int
	Position        *domain.Position // this symbol's open position, if HasOpenPosition
	State           *SymbolState
	Now             time.Time

	Market  MarketSource
	Candles CandleSource
	Scanner ScannerSource
	Logger  *logrus.Entry
}

// Evaluator produces at most one entry Intent per call, or nil if no
// signal fired. An error aborts entry consideration for that symbol this
// tick but never exits a position.
type Evaluator interface {
	Evaluate(ctx context.Context, in Input) (*Intent, error)
}

// ExitSignal is a strategy-specific early exit, layered on top of the
// position manager's standard stop-loss/take-profit exits. Only
// orderbook_imbalance_v2 currently produces one.
type ExitSignal struct {
	Reason string
}

// ExitChecker is an optional capability an Evaluator may implement when
// it needs to force a close ahead of (or independent of) the position
// manager's TP/SL sweep.
type ExitChecker interface {
	CheckExit(ctx context.Context, in Input) (*ExitSignal, error)
}

// cooldownActive reports whether symbol is still inside the post-close
// cooldown window.
func cooldownActive(st *SymbolState, now time.Time) bool {
	if st == nil || st.LastCloseTime == nil {
		return false
	}
	return now.Sub(*st.LastCloseTime) < cooldownPeriod
}

const cooldownPeriod = 60 * time.Second

// entryAllowed applies the shared preamble every strategy observes before
// considering a new entry: an existing position on the symbol, the bot's
// max_positions cap, and the post-close cooldown all suppress entries
// without suppressing observational logging.
func entryAllowed(in Input) (bool, string) {
	if in.HasOpenPosition {
		return false, "position already open"
	}
	if in.OpenCount >= in.Bot.Strategy.MaxPositions {
		return false, "max_positions reached"
	}
	if cooldownActive(in.State, in.Now) {
		return false, "cooldown active"
	}
	return true, ""
}

// normalizeSymbol strips common quote-asset suffixes, matching the
// provider's base-asset coin naming used by orderbook_imbalance_v2.
func normalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.TrimSuffix(s, "USDT")
	s = strings.TrimSuffix(s, "USD")
	return s
}

// closedCandles drops the last, still-forming candle, matching the
// bot's own treatment of an in-progress bar in internal/scanner.
func closedCandles(candles []domain.Candle) []domain.Candle {
	if len(candles) > 1 {
		return candles[:len(candles)-1]
	}
	return candles
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// BuildEvaluators returns the dispatch table from strategy type to
// Evaluator, including the no-op default for an unrecognized/absent type.
func BuildEvaluators() map[domain.StrategyType]Evaluator {
	return map[domain.StrategyType]Evaluator{
		domain.StrategyOrderbookImbalance:     &ImbalanceV1{},
		domain.StrategyOrderbookImbalanceV2:   &ImbalanceV2{},
		domain.StrategyMomentumBreakout:       &MomentumBreakout{},
		domain.StrategyMultiTimeframeBreakout: &MultiTimeframeBreakout{},
		domain.StrategyLiquidityGrab:          &LiquidityGrab{},
		domain.StrategySupportLiquidity:       &SupportLiquidity{},
		domain.StrategyDefault:                &Default{},
	}
}
