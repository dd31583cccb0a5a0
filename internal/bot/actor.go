// Package bot implements the per-bot tick: refresh prices, reload open
// positions, dispatch the configured strategy, run the position manager
// sweep, and log. Each Actor is a self-contained unit owning its own
// caches and timers — no state is shared across bots.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/candlecache"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/position"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/strategy"
)

const defaultMidPriceTTL = 2 * time.Second

// MarketClient is the subset of *marketdata.Client an Actor depends on.
type MarketClient interface {
	AllMids(ctx context.Context) (map[string]float64, error)
	L2Book(ctx context.Context, symbol string) (*domain.L2Book, error)
	RecentTrades(ctx context.Context, symbol string) ([]domain.RecentTrade, error)
}

// OpenPositioner is the subset of *store.PositionStore an Actor uses to
// open new positions (the rest flows through position.PositionStore).
type OpenPositioner interface {
	OpenPosition(ctx context.Context, botID, symbol string, side domain.Side, positionSizeUSD, entryPrice, stopLoss, takeProfit float64, mode string) (string, error)
	ListOpen(ctx context.Context, botID string) ([]domain.Position, error)
}

// Actor is one running bot instance: its config snapshot, market access,
// strategy dispatch table, per-symbol timers, and position manager.
type Actor struct {
	cfg     domain.BotConfig
	ownerID string

	market    MarketClient
	candles   *candlecache.Cache
	scanner   strategy.ScannerSource
	openStore OpenPositioner
	posMgr    *position.Manager

	evaluators map[domain.StrategyType]strategy.Evaluator
	states     map[string]*strategy.SymbolState

	mids        map[string]float64
	midsFetched time.Time
	midPriceTTL time.Duration

	logger *logrus.Entry
}

// New constructs a bot actor. candles and posMgr are built once per bot
// and never shared with another bot; scanner and openStore are stateless
// store views that every bot may share.
// midPriceTTL falls back to the documented 2s default when zero.
func New(
	cfg domain.BotConfig,
	ownerID string,
	market MarketClient,
	candles *candlecache.Cache,
	scanner strategy.ScannerSource,
	openStore OpenPositioner,
	posMgr *position.Manager,
	logger *logrus.Entry,
	midPriceTTL time.Duration,
) *Actor {
	if midPriceTTL <= 0 {
		midPriceTTL = defaultMidPriceTTL
	}
	return &Actor{
		cfg:         cfg,
		ownerID:     ownerID,
		market:      market,
		candles:     candles,
		scanner:     scanner,
		openStore:   openStore,
		posMgr:      posMgr,
		evaluators:  strategy.BuildEvaluators(),
		states:      make(map[string]*strategy.SymbolState),
		logger:      logger,
		midPriceTTL: midPriceTTL,
	}
}

// UpdateConfig replaces the bot's config snapshot, applied by the
// supervisor each reconciliation pass.
func (a *Actor) UpdateConfig(cfg domain.BotConfig) {
	a.cfg = cfg
}

func (a *Actor) stateFor(symbol string) *strategy.SymbolState {
	st, ok := a.states[symbol]
	if !ok {
		st = &strategy.SymbolState{}
		a.states[symbol] = st
	}
	return st
}

// Tick runs one full cycle: refresh mids, reload positions, dispatch the
// strategy per symbol, then sweep the position manager.
func (a *Actor) Tick(ctx context.Context, now time.Time) error {
	if err := a.refreshMids(ctx, now); err != nil {
		return fmt.Errorf("refreshing mid prices: %w", err)
	}

	open, err := a.openStore.ListOpen(ctx, a.cfg.ID)
	if err != nil {
		return fmt.Errorf("listing open positions: %w", err)
	}
	bySymbol := make(map[string]*domain.Position, len(open))
	for i := range open {
		bySymbol[open[i].Symbol] = &open[i]
	}

	evaluator, ok := a.evaluators[a.cfg.Strategy.Type]
	if !ok {
		evaluator = a.evaluators[domain.StrategyDefault]
	}

	for _, symbol := range a.cfg.Strategy.Pairs {
		a.tickSymbol(ctx, symbol, evaluator, bySymbol, &open, now)
	}

	if _, err := a.posMgr.Sweep(ctx, a.cfg, a.ownerID, a.mids, a.states, now); err != nil {
		return fmt.Errorf("sweeping positions: %w", err)
	}
	return nil
}

func (a *Actor) tickSymbol(ctx context.Context, symbol string, evaluator strategy.Evaluator, bySymbol map[string]*domain.Position, open *[]domain.Position, now time.Time) {
	mid, ok := a.mids[symbol]
	if !ok || mid == 0 {
		return
	}
	pos, hasPosition := bySymbol[symbol]
	state := a.stateFor(symbol)

	defer func() {
		_, stillOpen := bySymbol[symbol]
		a.refreshTiles(ctx, symbol, stillOpen, mid, now)
	}()

	in := strategy.Input{
		Bot:             a.cfg,
		Symbol:          symbol,
		Mid:             mid,
		HasOpenPosition: hasPosition,
		OpenCount:       len(*open),
		Position:        pos,
		State:           state,
		Now:             now,
		Market:          a.market,
		Candles:         a.candles,
		Scanner:         a.scanner,
		Logger:          a.logger,
	}

	if checker, ok := evaluator.(strategy.ExitChecker); ok && hasPosition {
		signal, err := checker.CheckExit(ctx, in)
		if err != nil {
			a.logger.WithField("symbol", symbol).Warnf("strategy exit check failed: %v", err)
		} else if signal != nil {
			if a.forceExit(ctx, *pos, mid, signal.Reason, now) {
				delete(bySymbol, symbol)
				*open = removePosition(*open, pos.ID)
			}
		}
		return
	}

	intent, err := evaluator.Evaluate(ctx, in)
	if err != nil {
		a.logger.WithField("symbol", symbol).Warnf("strategy evaluation failed: %v", err)
		return
	}
	if intent == nil {
		return
	}

	a.openEntry(ctx, *intent, bySymbol, open)
}

// refreshTiles updates the symbol's ambient market_metrics tile (always,
// on its own 30s cadence) and its monitoring tile (only while no position
// is open on it, on its own 5s cadence) — both calls are cheap no-ops
// between cadence windows, so tickSymbol runs them unconditionally rather
// than tracking "is it time yet" itself.
func (a *Actor) refreshTiles(ctx context.Context, symbol string, hasPosition bool, mid float64, now time.Time) {
	data := map[string]any{"mid": mid}
	a.posMgr.RefreshMarketMetricsTile(ctx, a.cfg, a.ownerID, symbol, fmt.Sprintf("%s mid=%.6f", symbol, mid), data, now)
	if !hasPosition {
		a.posMgr.RefreshMonitoringTile(ctx, a.cfg, a.ownerID, symbol, fmt.Sprintf("watching %s mid=%.6f", symbol, mid), data, now)
	}
}

func (a *Actor) openEntry(ctx context.Context, intent strategy.Intent, bySymbol map[string]*domain.Position, open *[]domain.Position) {
	params := a.cfg.Strategy
	stopLoss, takeProfit := stopsFor(intent.Side, intent.EntryPrice, params.StopLossPercent, params.TakeProfitPercent)

	id, err := a.openStore.OpenPosition(ctx, a.cfg.ID, intent.Symbol, intent.Side, params.PositionSizeUSD, intent.EntryPrice, stopLoss, takeProfit, a.cfg.Mode)
	if err != nil {
		a.logger.WithField("symbol", intent.Symbol).Errorf("opening position: %v", err)
		return
	}

	size := params.PositionSizeUSD / intent.EntryPrice
	newPos := domain.Position{
		ID: id, BotID: a.cfg.ID, Symbol: intent.Symbol, Side: intent.Side,
		Size: size, EntryPrice: intent.EntryPrice, CurrentPrice: intent.EntryPrice,
		StopLoss: stopLoss, TakeProfit: takeProfit, Status: domain.PositionOpen,
	}
	*open = append(*open, newPos)
	bySymbol[intent.Symbol] = &(*open)[len(*open)-1]
	a.posMgr.ClearMonitoringTile(ctx, a.cfg, intent.Symbol)

	a.logger.WithField("symbol", intent.Symbol).Infof("opened %s: %s", intent.Side, intent.Reason)
}

// forceExit closes pos immediately at currentPrice for a strategy-driven
// exit signal. It reports whether the close succeeded; on failure the
// position stays in the caller's in-memory open list so the next tick's
// CheckExit retries it, per the engine's close-failure retry policy.
func (a *Actor) forceExit(ctx context.Context, pos domain.Position, currentPrice float64, reason string, now time.Time) bool {
	if err := a.posMgr.ForceClose(ctx, a.cfg, a.ownerID, pos, currentPrice, reason, a.states, now); err != nil {
		a.logger.WithField("symbol", pos.Symbol).Errorf("strategy-forced close failed: %v", err)
		return false
	}
	a.logger.WithField("symbol", pos.Symbol).Infof("strategy-forced exit: %s", reason)
	return true
}

func stopsFor(side domain.Side, entry, stopLossPct, takeProfitPct float64) (stopLoss, takeProfit float64) {
	if side == domain.SideShort {
		return entry * (1 + stopLossPct/100), entry * (1 - takeProfitPct/100)
	}
	return entry * (1 - stopLossPct/100), entry * (1 + takeProfitPct/100)
}

func removePosition(positions []domain.Position, id string) []domain.Position {
	out := positions[:0]
	for _, p := range positions {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func (a *Actor) refreshMids(ctx context.Context, now time.Time) error {
	if !a.midsFetched.IsZero() && now.Sub(a.midsFetched) < a.midPriceTTL {
		return nil
	}
	mids, err := a.market.AllMids(ctx)
	if err != nil {
		if a.mids != nil {
			a.logger.Warnf("refreshing mid prices, using stale snapshot: %v", err)
			return nil
		}
		return err
	}
	a.mids = mids
	a.midsFetched = now
	return nil
}
