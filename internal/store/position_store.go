package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// PositionStore adapts bot_positions + bot_trades CRUD.
type PositionStore struct{ s *Store }

// NewPositionStore returns a PositionStore view over the given Store.
func NewPositionStore(s *Store) *PositionStore { return &PositionStore{s: s} }

// OpenPosition inserts a position row and its opening trade row, returning
// the new position id. If the position insert fails, no trade row is
// written. If the trade insert fails after the position insert succeeds,
// the error surfaces to the caller but the position row is NOT rolled
// back: a position can exist with no corresponding opening trade, which
// a later reconciliation pass can detect and repair. Position size is computed in
// decimal to avoid the rounding drift that would otherwise accumulate
// across repeated USD/price divisions.
func (p *PositionStore) OpenPosition(
	ctx context.Context,
	botID, symbol string,
	side domain.Side,
	positionSizeUSD, entryPrice, stopLoss, takeProfit float64,
	mode string,
) (string, error) {
	size, _ := decimal.NewFromFloat(positionSizeUSD).
		Div(decimal.NewFromFloat(entryPrice)).
		Float64()

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := p.s.pool.Exec(ctx, `
		INSERT INTO bot_positions
			(id, bot_id, symbol, side, size, entry_price, current_price,
			 stop_loss, take_profit, unrealized_pnl, status, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6,$7,$8,0,'open',$9)`,
		id, botID, symbol, side, size, entryPrice, stopLoss, takeProfit, now)
	if err != nil {
		return "", fmt.Errorf("inserting position for bot %s symbol %s: %w", botID, symbol, err)
	}

	tradeSide := domain.TradeBuy
	if side == domain.SideShort {
		tradeSide = domain.TradeSell
	}
	tradeID := uuid.NewString()
	_, err = p.s.pool.Exec(ctx, `
		INSERT INTO bot_trades (id, bot_id, position_id, symbol, side, size, price, pnl, executed_at, mode)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,$8,$9)`,
		tradeID, botID, id, symbol, tradeSide, size, entryPrice, now, mode)
	if err != nil {
		return id, fmt.Errorf("inserting opening trade for position %s: %w", id, err)
	}
	return id, nil
}

// MarkPosition persists a live current-price/unrealized-PnL update.
func (p *PositionStore) MarkPosition(ctx context.Context, id string, currentPrice, unrealizedPnL float64) error {
	_, err := p.s.pool.Exec(ctx,
		`UPDATE bot_positions SET current_price = $1, unrealized_pnl = $2 WHERE id = $3`,
		currentPrice, unrealizedPnL, id)
	if err != nil {
		return fmt.Errorf("marking position %s: %w", id, err)
	}
	return nil
}

// AdjustStop persists a new stop-loss level (break-even protection).
func (p *PositionStore) AdjustStop(ctx context.Context, id string, newStop float64) error {
	_, err := p.s.pool.Exec(ctx, `UPDATE bot_positions SET stop_loss = $1 WHERE id = $2`, newStop, id)
	if err != nil {
		return fmt.Errorf("adjusting stop for position %s: %w", id, err)
	}
	return nil
}

// ClosePosition marks a position closed and inserts its closing trade with
// signed pnl. If the status update fails, nothing is written and ListOpen
// keeps returning the position, so the next sweep tries the close again.
// If the closing trade insert fails, the position row is already closed:
// the error is returned (the caller logs it), ListOpen no longer returns
// the position, and the closing trade insert is not retried.
func (p *PositionStore) ClosePosition(ctx context.Context, id string, bot *domain.Position, closePrice, pnl float64, mode string) error {
	now := time.Now().UTC()
	_, err := p.s.pool.Exec(ctx,
		`UPDATE bot_positions SET status='closed', current_price=$1, unrealized_pnl=$2, closed_at=$3 WHERE id=$4`,
		closePrice, pnl, now, id)
	if err != nil {
		return fmt.Errorf("closing position %s: %w", id, err)
	}

	tradeSide := domain.TradeSell
	if bot.Side == domain.SideShort {
		tradeSide = domain.TradeBuy
	}
	tradeID := uuid.NewString()
	_, err = p.s.pool.Exec(ctx, `
		INSERT INTO bot_trades (id, bot_id, position_id, symbol, side, size, price, pnl, executed_at, mode)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		tradeID, bot.BotID, id, bot.Symbol, tradeSide, bot.Size, closePrice, pnl, now, mode)
	if err != nil {
		return fmt.Errorf("inserting closing trade for position %s: %w", id, err)
	}
	return nil
}

// ListOpen returns a bot's currently open positions, source of truth for
// reconciliation each tick.
func (p *PositionStore) ListOpen(ctx context.Context, botID string) ([]domain.Position, error) {
	rows, err := p.s.pool.Query(ctx, `
		SELECT id, bot_id, symbol, side, size, entry_price, current_price,
		       stop_loss, take_profit, unrealized_pnl, status, opened_at, closed_at
		FROM bot_positions
		WHERE bot_id = $1 AND status = 'open'`, botID)
	if err != nil {
		return nil, fmt.Errorf("listing open positions for bot %s: %w", botID, err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var pos domain.Position
		var closedAt *time.Time
		if err := rows.Scan(
			&pos.ID, &pos.BotID, &pos.Symbol, &pos.Side, &pos.Size, &pos.EntryPrice,
			&pos.CurrentPrice, &pos.StopLoss, &pos.TakeProfit, &pos.UnrealizedPnL,
			&pos.Status, &pos.OpenedAt, &closedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning position row: %w", err)
		}
		pos.ClosedAt = closedAt
		out = append(out, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating position rows: %w", err)
	}
	return out, nil
}
