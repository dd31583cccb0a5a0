// Package store provides Postgres-backed adapters for the row-store tables
// the engine shares with the external UI: bot_instances, strategies,
// bot_positions, bot_trades, bot_logs, and scanner_levels. The schema
// itself is an external contract owned by that UI; this package only
// issues the reads/writes the engine needs.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/config"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// Store bundles the pool and exposes the engine's full persistence surface.
// Individual adapters (BotConfigStore, PositionStore, LogStore,
// ScannerLevelStore) are thin views over the same pool, split out so the
// supervisor/bot/scanner each depend only on the slice of the interface
// they use.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a pgx connection pool against dsn (derived from SUPABASE_URL at
// the call site — the engine treats Supabase as a plain Postgres endpoint).
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// nullableTime converts a nullable *time.Time for scanning/binding.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// BotConfigStore reads the desired running-bot set.
type BotConfigStore struct {
	s        *Store
	defaults *config.StrategyDefaults
}

// NewBotConfigStore returns a BotConfigStore view over the given Store.
// defaults fills any strategy parameters a bot's row omits. With nil
// defaults only the built-in defaults apply (trend_filter_fail_open true);
// an empty &config.StrategyDefaults{} also leaves the numeric parameters
// to the built-in defaults but makes an omitted trend_filter_fail_open false.
func NewBotConfigStore(s *Store, defaults *config.StrategyDefaults) *BotConfigStore {
	return &BotConfigStore{s: s, defaults: defaults}
}

// ListRunning returns every bot_instances row with status='running',
// joined against its strategies row.
func (b *BotConfigStore) ListRunning(ctx context.Context) ([]domain.BotConfig, error) {
	rows, err := b.s.pool.Query(ctx, `
		SELECT bi.id, bi.user_id, bi.name, bi.mode,
		       s.id, s.type, s.pairs, s.max_positions, s.position_size,
		       s.stop_loss_percent, s.take_profit_percent, s.parameters
		FROM bot_instances bi
		JOIN strategies s ON s.id = bi.strategy_id
		WHERE bi.status = 'running'`)
	if err != nil {
		return nil, fmt.Errorf("listing running bots: %w", err)
	}
	defer rows.Close()

	var out []domain.BotConfig
	for rows.Next() {
		var cfg domain.BotConfig
		var params map[string]any
		if err := rows.Scan(
			&cfg.ID, &cfg.OwnerID, &cfg.Name, &cfg.Mode,
			&cfg.Strategy.ID, &cfg.Strategy.Type, &cfg.Strategy.Pairs,
			&cfg.Strategy.MaxPositions, &cfg.Strategy.PositionSizeUSD,
			&cfg.Strategy.StopLossPercent, &cfg.Strategy.TakeProfitPercent,
			&params,
		); err != nil {
			return nil, fmt.Errorf("scanning bot row: %w", err)
		}
		cfg.Strategy.Params = paramsFromMap(params, b.defaults)
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bot rows: %w", err)
	}
	return out, nil
}

// TouchLastTick updates last_tick_at after a successful tick.
func (b *BotConfigStore) TouchLastTick(ctx context.Context, botID string, at time.Time) error {
	_, err := b.s.pool.Exec(ctx, `UPDATE bot_instances SET last_tick_at = $1 WHERE id = $2`, at, botID)
	if err != nil {
		return fmt.Errorf("touching last_tick_at for bot %s: %w", botID, err)
	}
	return nil
}

// paramsFromMap decodes a strategy row's loosely-typed parameters JSON,
// falling back to defaults (and ultimately domain.StrategyParams.Normalize's
// built-in constants) for anything the row omits.
func paramsFromMap(m map[string]any, defaults *config.StrategyDefaults) domain.StrategyParams {
	var p domain.StrategyParams
	if v, ok := m["imbalance_threshold"].(float64); ok {
		p.ImbalanceThreshold = v
	}
	if v, ok := m["depth"].(float64); ok {
		p.Depth = int(v)
	}
	if v, ok := m["min_hold_time"].(float64); ok {
		p.MinHoldTime = time.Duration(v) * time.Second
	}
	if v, ok := m["cooldown_period"].(float64); ok {
		p.CooldownPeriod = time.Duration(v) * time.Second
	}
	if v, ok := m["trend_filter_fail_open"].(bool); ok {
		p.TrendFilterFailOpen = v
	} else if defaults != nil {
		p.TrendFilterFailOpen = defaults.TrendFilterFailOpen
	} else {
		p.TrendFilterFailOpen = true
	}
	if defaults != nil {
		defaults.Apply(&p)
	} else {
		p.Normalize()
	}
	return p
}
