package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// ScannerLevelStore upserts and reads the scanner_levels table, the
// scanner worker's sole output and the support_liquidity strategy's sole
// input.
type ScannerLevelStore struct{ s *Store }

// NewScannerLevelStore returns a ScannerLevelStore view over the given Store.
func NewScannerLevelStore(s *Store) *ScannerLevelStore { return &ScannerLevelStore{s: s} }

// Upsert writes one row per symbol, replacing whatever the previous cycle
// computed for it.
func (sc *ScannerLevelStore) Upsert(ctx context.Context, lvl domain.ScannerLevel) error {
	allTF, err := json.Marshal(lvl.AllLevelsByTF)
	if err != nil {
		return fmt.Errorf("marshaling levels for %s: %w", lvl.Symbol, err)
	}
	var closest []byte
	if lvl.ClosestLevel != nil {
		closest, err = json.Marshal(lvl.ClosestLevel)
		if err != nil {
			return fmt.Errorf("marshaling closest level for %s: %w", lvl.Symbol, err)
		}
	}
	var support, resistance []byte
	if lvl.Support != nil {
		support, _ = json.Marshal(lvl.Support)
	}
	if lvl.Resistance != nil {
		resistance, _ = json.Marshal(lvl.Resistance)
	}

	_, err = sc.s.pool.Exec(ctx, `
		INSERT INTO scanner_levels
			(symbol, current_price, support, resistance, closest_level, all_levels_by_timeframe, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (symbol) DO UPDATE SET
			current_price = EXCLUDED.current_price,
			support = EXCLUDED.support,
			resistance = EXCLUDED.resistance,
			closest_level = EXCLUDED.closest_level,
			all_levels_by_timeframe = EXCLUDED.all_levels_by_timeframe,
			updated_at = EXCLUDED.updated_at`,
		lvl.Symbol, lvl.CurrentPrice, support, resistance, closest, allTF, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting scanner level for %s: %w", lvl.Symbol, err)
	}
	return nil
}

// Get reads the most recently scanned level row for symbol, used by the
// support_liquidity strategy. Returns nil, nil if the scanner hasn't
// covered that symbol yet.
func (sc *ScannerLevelStore) Get(ctx context.Context, symbol string) (*domain.ScannerLevel, error) {
	row := sc.s.pool.QueryRow(ctx, `
		SELECT symbol, current_price, support, resistance, closest_level, all_levels_by_timeframe, updated_at
		FROM scanner_levels WHERE symbol = $1`, symbol)

	var (
		lvl                                  domain.ScannerLevel
		supportRaw, resistanceRaw, closestRaw []byte
		allTFRaw                             []byte
	)
	if err := row.Scan(&lvl.Symbol, &lvl.CurrentPrice, &supportRaw, &resistanceRaw, &closestRaw, &allTFRaw, &lvl.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading scanner level for %s: %w", symbol, err)
	}

	if len(supportRaw) > 0 {
		lvl.Support = &domain.LevelPoint{}
		if err := json.Unmarshal(supportRaw, lvl.Support); err != nil {
			return nil, fmt.Errorf("decoding support for %s: %w", symbol, err)
		}
	}
	if len(resistanceRaw) > 0 {
		lvl.Resistance = &domain.LevelPoint{}
		if err := json.Unmarshal(resistanceRaw, lvl.Resistance); err != nil {
			return nil, fmt.Errorf("decoding resistance for %s: %w", symbol, err)
		}
	}
	if len(closestRaw) > 0 {
		lvl.ClosestLevel = &domain.ClosestLevel{}
		if err := json.Unmarshal(closestRaw, lvl.ClosestLevel); err != nil {
			return nil, fmt.Errorf("decoding closest level for %s: %w", symbol, err)
		}
	}
	if len(allTFRaw) > 0 {
		if err := json.Unmarshal(allTFRaw, &lvl.AllLevelsByTF); err != nil {
			return nil, fmt.Errorf("decoding levels by timeframe for %s: %w", symbol, err)
		}
	}
	return &lvl, nil
}
