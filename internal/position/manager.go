// Package position implements the per-bot position lifecycle: metadata
// tracking, break-even stop protection, stop-loss/take-profit exits, and
// the live status tiles a UI reads.
package position

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/strategy"
)

// PositionStore is the subset of *store.PositionStore the manager needs.
type PositionStore interface {
	ListOpen(ctx context.Context, botID string) ([]domain.Position, error)
	MarkPosition(ctx context.Context, id string, currentPrice, unrealizedPnL float64) error
	AdjustStop(ctx context.Context, id string, newStop float64) error
	ClosePosition(ctx context.Context, id string, pos *domain.Position, closePrice, pnl float64, mode string) error
}

// LogStore is the subset of *store.LogStore the manager needs.
type LogStore interface {
	Append(ctx context.Context, botID, ownerID string, kind domain.LogType, message string, data map[string]any) error
	UpdateTile(ctx context.Context, botID, ownerID, symbol string, kind domain.TileKind, message string, data map[string]any) error
	DeleteTile(ctx context.Context, botID, symbol string, kind domain.TileKind) error
}

const (
	positionStatusCadence = 5 * time.Second
	monitoringCadence     = 5 * time.Second
	marketMetricsCadence  = 30 * time.Second

	breakEvenTriggerPct = 0.15 // percent
)

type tileKey struct {
	symbol string
	kind   domain.TileKind
}

// Manager owns the open-position sweep for a single bot. It is not safe
// to share across bots — each bot actor owns one Manager instance,
// mirroring the engine's per-bot isolation.
type Manager struct {
	positions PositionStore
	logs      LogStore
	logger    *logrus.Entry

	metadata      map[string]*domain.PositionMetadata
	lastTileWrite map[tileKey]time.Time
}

// NewManager constructs a position manager for one bot.
func NewManager(positions PositionStore, logs LogStore, logger *logrus.Entry) *Manager {
	return &Manager{
		positions:     positions,
		logs:          logs,
		logger:        logger,
		metadata:      make(map[string]*domain.PositionMetadata),
		lastTileWrite: make(map[tileKey]time.Time),
	}
}

// Sweep re-reads the bot's open positions from the store, marks each to
// the bot's live mid price, updates metadata/break-even protection,
// closes any position past its stop-loss or take-profit, and refreshes
// the position_status tile on its cadence. It returns the open positions
// remaining after the sweep. mids is the bot's current symbol->price
// snapshot (the position's stored current_price is stale the moment it
// leaves the store, since nothing else advances it between ticks); a
// symbol missing from mids leaves that position's price untouched for
// this sweep rather than erroring the whole pass. symStates carries the
// bot's per-symbol cooldown/strategy timers so a close can stamp the
// shared re-entry cooldown.
func (m *Manager) Sweep(ctx context.Context, bot domain.BotConfig, ownerID string, mids map[string]float64, symStates map[string]*strategy.SymbolState, now time.Time) ([]domain.Position, error) {
	open, err := m.positions.ListOpen(ctx, bot.ID)
	if err != nil {
		return nil, fmt.Errorf("listing open positions for bot %s: %w", bot.ID, err)
	}

	var remaining []domain.Position
	for _, pos := range open {
		if mid, ok := mids[pos.Symbol]; ok && mid != 0 {
			pos.CurrentPrice = mid
		}
		meta := m.metadataFor(pos)

		pnl, pnlPct := computePnL(pos)
		if err := m.positions.MarkPosition(ctx, pos.ID, pos.CurrentPrice, pnl); err != nil {
			m.logger.WithField("position_id", pos.ID).Warnf("marking position: %v", err)
		}

		m.updatePeak(meta, pnlPct, pos.CurrentPrice, now)
		m.applyBreakEven(ctx, &pos, meta, pnlPct)

		if reason, hit := checkExit(pos); hit {
			if err := m.closePosition(ctx, bot, ownerID, pos, reason, symStates, now); err != nil {
				m.logger.WithField("position_id", pos.ID).Errorf("closing position: %v", err)
				// Leave the position in the in-memory open list so the
				// next tick retries the close.
				remaining = append(remaining, pos)
			}
			continue
		}

		m.refreshPositionStatusTile(ctx, bot, ownerID, pos, pnl, pnlPct, now)
		remaining = append(remaining, pos)
	}
	return remaining, nil
}

func (m *Manager) metadataFor(pos domain.Position) *domain.PositionMetadata {
	meta, ok := m.metadata[pos.ID]
	if !ok {
		meta = &domain.PositionMetadata{
			HighestProfitPct:   0,
			HighestProfitPrice: pos.EntryPrice,
			OriginalStopLoss:   pos.StopLoss,
		}
		m.metadata[pos.ID] = meta
	}
	return meta
}

func computePnL(pos domain.Position) (pnl, pnlPct float64) {
	notional := pos.EntryPrice * pos.Size
	switch pos.Side {
	case domain.SideShort:
		pnl = (pos.EntryPrice - pos.CurrentPrice) * pos.Size
	default:
		pnl = (pos.CurrentPrice - pos.EntryPrice) * pos.Size
	}
	if notional != 0 {
		pnlPct = pnl / notional * 100
	}
	return pnl, pnlPct
}

func (m *Manager) updatePeak(meta *domain.PositionMetadata, pnlPct, currentPrice float64, now time.Time) {
	if pnlPct > meta.HighestProfitPct {
		meta.HighestProfitPct = pnlPct
		meta.HighestProfitPrice = currentPrice
	}
	if pnlPct > 0 && meta.FirstProfitTime == nil {
		t := now
		meta.FirstProfitTime = &t
	}
}

// applyBreakEven moves the stop to entry exactly once, the first tick
// unrealized profit reaches breakEvenTriggerPct, if the stop is still on
// the loss side of entry.
func (m *Manager) applyBreakEven(ctx context.Context, pos *domain.Position, meta *domain.PositionMetadata, pnlPct float64) {
	if pnlPct < breakEvenTriggerPct {
		return
	}
	onLossSide := (pos.Side == domain.SideLong && pos.StopLoss < pos.EntryPrice) ||
		(pos.Side == domain.SideShort && pos.StopLoss > pos.EntryPrice)
	if !onLossSide {
		return
	}
	if err := m.positions.AdjustStop(ctx, pos.ID, pos.EntryPrice); err != nil {
		m.logger.WithField("position_id", pos.ID).Warnf("adjusting stop for break-even: %v", err)
		return
	}
	pos.StopLoss = pos.EntryPrice
}

// checkExit reports whether pos has crossed its stop-loss or take-profit.
func checkExit(pos domain.Position) (reason string, hit bool) {
	switch pos.Side {
	case domain.SideShort:
		if pos.CurrentPrice >= pos.StopLoss {
			return "Stop Loss", true
		}
		if pos.CurrentPrice <= pos.TakeProfit {
			return "Take Profit", true
		}
	default:
		if pos.CurrentPrice <= pos.StopLoss {
			return "Stop Loss", true
		}
		if pos.CurrentPrice >= pos.TakeProfit {
			return "Take Profit", true
		}
	}
	return "", false
}

// ForceClose closes pos immediately at currentPrice for a strategy-driven
// exit reason (e.g. orderbook_imbalance_v2's "max hold reached" or
// "imbalance reversed") rather than waiting for the standard stop-loss/
// take-profit sweep to cross — those exits don't necessarily correspond
// to any price level. It shares closePosition's store/tile/cooldown
// bookkeeping so both paths stay consistent.
func (m *Manager) ForceClose(ctx context.Context, bot domain.BotConfig, ownerID string, pos domain.Position, currentPrice float64, reason string, symStates map[string]*strategy.SymbolState, now time.Time) error {
	pos.CurrentPrice = currentPrice
	return m.closePosition(ctx, bot, ownerID, pos, reason, symStates, now)
}

func (m *Manager) closePosition(ctx context.Context, bot domain.BotConfig, ownerID string, pos domain.Position, reason string, symStates map[string]*strategy.SymbolState, now time.Time) error {
	pnl, _ := computePnL(pos)
	if err := m.positions.ClosePosition(ctx, pos.ID, &pos, pos.CurrentPrice, pnl, bot.Mode); err != nil {
		return err
	}

	delete(m.metadata, pos.ID)
	if err := m.logs.DeleteTile(ctx, bot.ID, pos.Symbol, domain.TileLivePositionStatus); err != nil {
		m.logger.WithField("symbol", pos.Symbol).Warnf("deleting position tile: %v", err)
	}

	if st, ok := symStates[pos.Symbol]; ok {
		closedAt := now
		st.LastCloseTime = &closedAt
		st.V2OpenTime = nil
		st.V2LastTradeTime = nil
	}

	if err := m.logs.Append(ctx, bot.ID, ownerID, domain.LogTrade, fmt.Sprintf("closed %s %s: %s", pos.Symbol, pos.Side, reason), map[string]any{
		"position_id": pos.ID, "reason": reason, "pnl": pnl, "close_price": pos.CurrentPrice,
	}); err != nil {
		m.logger.WithField("position_id", pos.ID).Warnf("appending close log: %v", err)
	}
	return nil
}

func (m *Manager) refreshPositionStatusTile(ctx context.Context, bot domain.BotConfig, ownerID string, pos domain.Position, pnl, pnlPct float64, now time.Time) {
	key := tileKey{symbol: pos.Symbol, kind: domain.TileLivePositionStatus}
	if last, ok := m.lastTileWrite[key]; ok && now.Sub(last) < positionStatusCadence {
		return
	}
	m.lastTileWrite[key] = now

	msg := fmt.Sprintf("%s %s pnl=%.2f (%.2f%%)", pos.Symbol, pos.Side, pnl, pnlPct)
	data := map[string]any{
		"position_id": pos.ID, "side": pos.Side, "entry_price": pos.EntryPrice,
		"current_price": pos.CurrentPrice, "pnl": pnl, "pnl_pct": pnlPct,
		"stop_loss": pos.StopLoss, "take_profit": pos.TakeProfit,
	}
	if err := m.logs.UpdateTile(ctx, bot.ID, ownerID, pos.Symbol, domain.TileLivePositionStatus, msg, data); err != nil {
		m.logger.WithField("symbol", pos.Symbol).Warnf("updating position tile: %v", err)
	}
}

// RefreshMonitoringTile updates the monitoring tile for a symbol with no
// open position, on its own 5s cadence. Called by the bot actor for
// every configured symbol lacking a position this tick.
func (m *Manager) RefreshMonitoringTile(ctx context.Context, bot domain.BotConfig, ownerID, symbol, message string, data map[string]any, now time.Time) {
	key := tileKey{symbol: symbol, kind: domain.TileMonitoring}
	if last, ok := m.lastTileWrite[key]; ok && now.Sub(last) < monitoringCadence {
		return
	}
	m.lastTileWrite[key] = now
	if err := m.logs.UpdateTile(ctx, bot.ID, ownerID, symbol, domain.TileMonitoring, message, data); err != nil {
		m.logger.WithField("symbol", symbol).Warnf("updating monitoring tile: %v", err)
	}
}

// RefreshMarketMetricsTile updates the market_metrics tile on its 30s
// cadence.
func (m *Manager) RefreshMarketMetricsTile(ctx context.Context, bot domain.BotConfig, ownerID, symbol, message string, data map[string]any, now time.Time) {
	key := tileKey{symbol: symbol, kind: domain.TileMarketMetrics}
	if last, ok := m.lastTileWrite[key]; ok && now.Sub(last) < marketMetricsCadence {
		return
	}
	m.lastTileWrite[key] = now
	if err := m.logs.UpdateTile(ctx, bot.ID, ownerID, symbol, domain.TileMarketMetrics, message, data); err != nil {
		m.logger.WithField("symbol", symbol).Warnf("updating market metrics tile: %v", err)
	}
}

// ClearMonitoringTile removes the monitoring tile when a position opens
// on that symbol.
func (m *Manager) ClearMonitoringTile(ctx context.Context, bot domain.BotConfig, symbol string) {
	if err := m.logs.DeleteTile(ctx, bot.ID, symbol, domain.TileMonitoring); err != nil {
		m.logger.WithField("symbol", symbol).Warnf("deleting monitoring tile: %v", err)
	}
}
