package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// LogStore appends bot_logs rows and maintains the per-(bot,symbol,kind)
// "tile" rows that are updated in place rather than re-appended every
// tick.
type LogStore struct {
	s *Store

	mu    sync.Mutex
	tiles map[tileKey]string // (bot, symbol, kind) -> row id
}

type tileKey struct {
	botID  string
	symbol string
	kind   domain.TileKind
}

// NewLogStore returns a LogStore view over the given Store.
func NewLogStore(s *Store) *LogStore {
	return &LogStore{s: s, tiles: make(map[tileKey]string)}
}

// Append writes a new, append-only bot_logs row.
func (l *LogStore) Append(ctx context.Context, botID, ownerID string, kind domain.LogType, message string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling log data: %w", err)
	}
	_, err = l.s.pool.Exec(ctx, `
		INSERT INTO bot_logs (id, bot_id, user_id, type, message, data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.NewString(), botID, ownerID, kind, message, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("appending log for bot %s: %w", botID, err)
	}
	return nil
}

// UpdateTile updates the single bot_logs row tracked for (botID, symbol,
// kind) in place, inserting it on first use. If the tracked row id no
// longer exists (e.g. truncated by a retention job), the update affects
// zero rows and UpdateTile falls back to inserting a fresh one, re-keying
// the tracked id rather than failing the tick over a missing row.
func (l *LogStore) UpdateTile(ctx context.Context, botID, ownerID, symbol string, kind domain.TileKind, message string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling tile data: %w", err)
	}

	key := tileKey{botID: botID, symbol: symbol, kind: kind}
	l.mu.Lock()
	id, ok := l.tiles[key]
	l.mu.Unlock()

	now := time.Now().UTC()

	if ok {
		tag, err := l.s.pool.Exec(ctx, `
			UPDATE bot_logs SET message = $1, data = $2, created_at = $3
			WHERE id = $4`, message, raw, now, id)
		if err != nil {
			return fmt.Errorf("updating tile %s/%s/%s: %w", botID, symbol, kind, err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
	}

	id = uuid.NewString()
	_, err = l.s.pool.Exec(ctx, `
		INSERT INTO bot_logs (id, bot_id, user_id, type, message, data, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, botID, ownerID, logTypeForTile(kind), message, raw, now)
	if err != nil {
		return fmt.Errorf("inserting tile %s/%s/%s: %w", botID, symbol, kind, err)
	}

	l.mu.Lock()
	l.tiles[key] = id
	l.mu.Unlock()
	return nil
}

// logTypeForTile maps a tile kind to the bot_logs.log_type value the row
// is stored under, since TileKind (a UI display concept) and LogType (the
// shared enum the external dashboard filters on) are distinct vocabularies.
func logTypeForTile(kind domain.TileKind) domain.LogType {
	if kind == domain.TileMarketMetrics {
		return domain.LogMarketData
	}
	return domain.LogInfo
}

// DeleteTile removes the tracked tile row for (botID, symbol, kind), best
// effort: a delete failure is logged by the caller, not fatal to the tick.
func (l *LogStore) DeleteTile(ctx context.Context, botID, symbol string, kind domain.TileKind) error {
	key := tileKey{botID: botID, symbol: symbol, kind: kind}
	l.mu.Lock()
	id, ok := l.tiles[key]
	delete(l.tiles, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if _, err := l.s.pool.Exec(ctx, `DELETE FROM bot_logs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting tile %s/%s/%s: %w", botID, symbol, kind, err)
	}
	return nil
}
