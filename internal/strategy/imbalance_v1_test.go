package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

type fakeMarket struct {
	book   *domain.L2Book
	bookErr error
	trades []domain.RecentTrade
}

func (f *fakeMarket) L2Book(ctx context.Context, symbol string) (*domain.L2Book, error) {
	return f.book, f.bookErr
}

func (f *fakeMarket) RecentTrades(ctx context.Context, symbol string) ([]domain.RecentTrade, error) {
	return f.trades, nil
}

func testInput(overrides func(*Input)) Input {
	in := Input{
		Bot: domain.BotConfig{
			Strategy: domain.StrategyConfig{MaxPositions: 5},
		},
		Symbol: "BTC",
		Mid:    100,
		State:  &SymbolState{},
		Now:    time.Now(),
		Logger: logrus.NewEntry(logrus.New()),
	}
	if overrides != nil {
		overrides(&in)
	}
	return in
}

func TestImbalanceV1_LongOnBidHeavyBook(t *testing.T) {
	book := &domain.L2Book{
		Bids: []domain.BookLevel{{Price: 99.9, Size: 30.0}},
		Asks: []domain.BookLevel{{Price: 100.0, Size: 8.0}},
	}
	in := testInput(func(in *Input) {
		in.Market = &fakeMarket{book: book}
	})

	strat := &ImbalanceV1{}
	intent, err := strat.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, domain.SideLong, intent.Side)
	require.Equal(t, 100.0, intent.EntryPrice)
}

func TestImbalanceV1_ShortOnAskHeavyBook(t *testing.T) {
	book := &domain.L2Book{
		Bids: []domain.BookLevel{{Price: 99.9, Size: 5.0}},
		Asks: []domain.BookLevel{{Price: 100.0, Size: 30.0}},
	}
	in := testInput(func(in *Input) {
		in.Market = &fakeMarket{book: book}
	})

	strat := &ImbalanceV1{}
	intent, err := strat.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, domain.SideShort, intent.Side)
	require.Equal(t, 99.9, intent.EntryPrice)
}

func TestImbalanceV1_NoSignalWhenBalanced(t *testing.T) {
	book := &domain.L2Book{
		Bids: []domain.BookLevel{{Price: 99.9, Size: 10.0}},
		Asks: []domain.BookLevel{{Price: 100.0, Size: 10.0}},
	}
	in := testInput(func(in *Input) {
		in.Market = &fakeMarket{book: book}
	})

	strat := &ImbalanceV1{}
	intent, err := strat.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Nil(t, intent)
}

func TestImbalanceV1_SuppressedByMaxPositions(t *testing.T) {
	book := &domain.L2Book{
		Bids: []domain.BookLevel{{Price: 99.9, Size: 30.0}},
		Asks: []domain.BookLevel{{Price: 100.0, Size: 8.0}},
	}
	in := testInput(func(in *Input) {
		in.Market = &fakeMarket{book: book}
		in.OpenCount = 5
	})

	strat := &ImbalanceV1{}
	intent, err := strat.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Nil(t, intent)
}
