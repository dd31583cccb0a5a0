package position

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/strategy"
)

type fakePositionStore struct {
	open    []domain.Position
	stops   map[string]float64
	closed  map[string]bool
}

func (f *fakePositionStore) ListOpen(ctx context.Context, botID string) ([]domain.Position, error) {
	return f.open, nil
}

func (f *fakePositionStore) MarkPosition(ctx context.Context, id string, currentPrice, unrealizedPnL float64) error {
	for i := range f.open {
		if f.open[i].ID == id {
			f.open[i].CurrentPrice = currentPrice
			f.open[i].UnrealizedPnL = unrealizedPnL
		}
	}
	return nil
}

func (f *fakePositionStore) AdjustStop(ctx context.Context, id string, newStop float64) error {
	if f.stops == nil {
		f.stops = make(map[string]float64)
	}
	f.stops[id] = newStop
	for i := range f.open {
		if f.open[i].ID == id {
			f.open[i].StopLoss = newStop
		}
	}
	return nil
}

func (f *fakePositionStore) ClosePosition(ctx context.Context, id string, pos *domain.Position, closePrice, pnl float64, mode string) error {
	if f.closed == nil {
		f.closed = make(map[string]bool)
	}
	f.closed[id] = true
	return nil
}

type fakeLogStore struct{}

func (f *fakeLogStore) Append(ctx context.Context, botID, ownerID string, kind domain.LogType, message string, data map[string]any) error {
	return nil
}
func (f *fakeLogStore) UpdateTile(ctx context.Context, botID, ownerID, symbol string, kind domain.TileKind, message string, data map[string]any) error {
	return nil
}
func (f *fakeLogStore) DeleteTile(ctx context.Context, botID, symbol string, kind domain.TileKind) error {
	return nil
}

func TestManager_BreakEvenThenStopLossExit(t *testing.T) {
	posStore := &fakePositionStore{
		open: []domain.Position{{
			ID: "p1", BotID: "bot1", Symbol: "BTC", Side: domain.SideLong,
			Size: 1, EntryPrice: 200.00, CurrentPrice: 200.00,
			StopLoss: 198.00, TakeProfit: 204.00, Status: domain.PositionOpen,
		}},
	}
	mgr := NewManager(posStore, &fakeLogStore{}, logrus.NewEntry(logrus.New()))
	bot := domain.BotConfig{ID: "bot1", Mode: "paper"}
	states := map[string]*strategy.SymbolState{"BTC": {}}

	// Price reaches 200.30 -> pnl_pct = 0.15% -> break-even fires.
	mids := map[string]float64{"BTC": 200.30}
	remaining, err := mgr.Sweep(context.Background(), bot, "owner1", mids, states, time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, 200.00, remaining[0].StopLoss)

	// Price drops to 199.90 -> below the new break-even stop -> exits.
	posStore.open[0].StopLoss = 200.00
	mids["BTC"] = 199.90
	remaining2, err := mgr.Sweep(context.Background(), bot, "owner1", mids, states, time.Unix(10, 0))
	require.NoError(t, err)
	require.Len(t, remaining2, 0)
	require.True(t, posStore.closed["p1"])
	require.NotNil(t, states["BTC"].LastCloseTime)
}
