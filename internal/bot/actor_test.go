package bot

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/candlecache"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/position"
)

type fakeMarketClient struct {
	mids map[string]float64
	book *domain.L2Book
}

func (f *fakeMarketClient) AllMids(ctx context.Context) (map[string]float64, error) {
	return f.mids, nil
}
func (f *fakeMarketClient) L2Book(ctx context.Context, symbol string) (*domain.L2Book, error) {
	return f.book, nil
}
func (f *fakeMarketClient) RecentTrades(ctx context.Context, symbol string) ([]domain.RecentTrade, error) {
	return nil, nil
}

type fakeOpenStore struct {
	open   []domain.Position
	opened int
}

func (f *fakeOpenStore) ListOpen(ctx context.Context, botID string) ([]domain.Position, error) {
	return f.open, nil
}
func (f *fakeOpenStore) OpenPosition(ctx context.Context, botID, symbol string, side domain.Side, positionSizeUSD, entryPrice, stopLoss, takeProfit float64, mode string) (string, error) {
	f.opened++
	return "pos-new", nil
}

type fakePosStore struct {
	open   []domain.Position
	closed []string
}

func (f *fakePosStore) ListOpen(ctx context.Context, botID string) ([]domain.Position, error) {
	return f.open, nil
}
func (f *fakePosStore) MarkPosition(ctx context.Context, id string, currentPrice, unrealizedPnL float64) error {
	return nil
}
func (f *fakePosStore) AdjustStop(ctx context.Context, id string, newStop float64) error { return nil }
func (f *fakePosStore) ClosePosition(ctx context.Context, id string, pos *domain.Position, closePrice, pnl float64, mode string) error {
	f.closed = append(f.closed, id)
	return nil
}

type fakeLogs struct{}

func (f *fakeLogs) Append(ctx context.Context, botID, ownerID string, kind domain.LogType, message string, data map[string]any) error {
	return nil
}
func (f *fakeLogs) UpdateTile(ctx context.Context, botID, ownerID, symbol string, kind domain.TileKind, message string, data map[string]any) error {
	return nil
}
func (f *fakeLogs) DeleteTile(ctx context.Context, botID, symbol string, kind domain.TileKind) error {
	return nil
}

func newTestActor(market *fakeMarketClient, openStore *fakeOpenStore, cfg domain.BotConfig) *Actor {
	return newTestActorWithPosStore(market, openStore, &fakePosStore{}, cfg)
}

func newTestActorWithPosStore(market *fakeMarketClient, openStore *fakeOpenStore, posStore *fakePosStore, cfg domain.BotConfig) *Actor {
	logger := logrus.NewEntry(logrus.New())
	posMgr := position.NewManager(posStore, &fakeLogs{}, logger)
	cache := candlecache.New(nil, time.Minute)
	return New(cfg, "owner1", market, cache, nil, openStore, posMgr, logger, 0)
}

func TestActor_TickEntersPositionOnSignal(t *testing.T) {
	book := &domain.L2Book{
		Symbol: "BTC",
		Bids:   []domain.BookLevel{{Price: 100, Size: 30}},
		Asks:   []domain.BookLevel{{Price: 100.5, Size: 8}},
	}
	market := &fakeMarketClient{mids: map[string]float64{"BTC": 100.25}, book: book}
	openStore := &fakeOpenStore{}
	cfg := domain.BotConfig{
		ID: "bot1", Mode: "paper",
		Strategy: domain.StrategyConfig{
			Type:              domain.StrategyOrderbookImbalance,
			Pairs:             []string{"BTC"},
			MaxPositions:      5,
			PositionSizeUSD:   1000,
			StopLossPercent:   1,
			TakeProfitPercent: 2,
		},
	}
	actor := newTestActor(market, openStore, cfg)

	err := actor.Tick(context.Background(), time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, 1, openStore.opened)
}

// TestActor_ForceExitClosesPositionInStore verifies that an
// orderbook_imbalance_v2 max-hold exit signal actually closes the
// position in the store, not just the in-memory cooldown timers — the
// price stays well inside the stop-loss/take-profit band, so only a
// strategy-forced close can end it.
func TestActor_ForceExitClosesPositionInStore(t *testing.T) {
	market := &fakeMarketClient{mids: map[string]float64{"BTC": 100.0}}
	pos := domain.Position{
		ID: "pos-1", BotID: "bot1", Symbol: "BTC", Side: domain.SideLong,
		Size: 1, EntryPrice: 100.0, CurrentPrice: 100.0,
		StopLoss: 50.0, TakeProfit: 500.0, Status: domain.PositionOpen,
	}
	openStore := &fakeOpenStore{open: []domain.Position{pos}}
	posStore := &fakePosStore{open: []domain.Position{pos}}
	cfg := domain.BotConfig{
		ID: "bot1", Mode: "paper",
		Strategy: domain.StrategyConfig{
			Type:         domain.StrategyOrderbookImbalanceV2,
			Pairs:        []string{"BTC"},
			MaxPositions: 5,
			Params: domain.StrategyParams{
				ImbalanceThreshold: 0.7, Depth: 10, MinHoldTime: 30 * time.Second,
			},
		},
	}
	actor := newTestActorWithPosStore(market, openStore, posStore, cfg)
	actor.stateFor("BTC").V2OpenTime = timePtr(time.Unix(0, 0))

	err := actor.Tick(context.Background(), time.Unix(0, 0).Add(61*time.Second))
	require.NoError(t, err)
	require.Equal(t, []string{"pos-1"}, posStore.closed)
}

func timePtr(t time.Time) *time.Time { return &t }

func TestActor_TickSkipsSymbolWithoutMid(t *testing.T) {
	market := &fakeMarketClient{mids: map[string]float64{}}
	openStore := &fakeOpenStore{}
	cfg := domain.BotConfig{
		ID: "bot1", Mode: "paper",
		Strategy: domain.StrategyConfig{
			Type:         domain.StrategyOrderbookImbalance,
			Pairs:        []string{"BTC"},
			MaxPositions: 5,
		},
	}
	actor := newTestActor(market, openStore, cfg)

	err := actor.Tick(context.Background(), time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, 0, openStore.opened)
}
