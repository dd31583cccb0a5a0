package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

func bookWithRatio(bid, ask float64) *domain.L2Book {
	return &domain.L2Book{
		Bids: []domain.BookLevel{{Price: 50, Size: bid}},
		Asks: []domain.BookLevel{{Price: 50, Size: ask}},
	}
}

func TestImbalanceV2_HoldThenReverseExit(t *testing.T) {
	t0 := time.Unix(0, 0)
	strat := &ImbalanceV2{}

	params := domain.StrategyParams{ImbalanceThreshold: 0.7, Depth: 10, MinHoldTime: 30 * time.Second, CooldownPeriod: 60 * time.Second}
	state := &SymbolState{}

	// t=0, rho=0.85 -> entry at mid 50.00
	in := testInput(func(in *Input) {
		in.Bot.Strategy.Params = params
		in.State = state
		in.Now = t0
		in.Mid = 50.00
		in.Market = &fakeMarket{book: bookWithRatio(85, 15)}
	})
	intent, err := strat.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, domain.SideLong, intent.Side)
	require.Equal(t, 50.00, intent.EntryPrice)
	require.NotNil(t, state.V2OpenTime)

	// t=10s, rho=0.20 -> no exit, hold time not met
	exitIn := testInput(func(in *Input) {
		in.Bot.Strategy.Params = params
		in.State = state
		in.Now = t0.Add(10 * time.Second)
		in.HasOpenPosition = true
		in.Position = &domain.Position{Side: domain.SideLong}
		in.Market = &fakeMarket{book: bookWithRatio(20, 80)}
	})
	signal, err := strat.CheckExit(context.Background(), exitIn)
	require.NoError(t, err)
	require.Nil(t, signal)

	// t=31s, rho=0.25 -> exit, "imbalance reversed"
	exitIn2 := testInput(func(in *Input) {
		in.Bot.Strategy.Params = params
		in.State = state
		in.Now = t0.Add(31 * time.Second)
		in.HasOpenPosition = true
		in.Position = &domain.Position{Side: domain.SideLong}
		in.Market = &fakeMarket{book: bookWithRatio(25, 75)}
	})
	signal2, err := strat.CheckExit(context.Background(), exitIn2)
	require.NoError(t, err)
	require.NotNil(t, signal2)
	require.Equal(t, "imbalance reversed", signal2.Reason)
}

func TestImbalanceV2_ForceCloseAtMaxHold(t *testing.T) {
	t0 := time.Unix(0, 0)
	strat := &ImbalanceV2{}
	params := domain.StrategyParams{ImbalanceThreshold: 0.7, Depth: 10, MinHoldTime: 30 * time.Second}
	openTime := t0
	state := &SymbolState{V2OpenTime: &openTime}

	in := testInput(func(in *Input) {
		in.Bot.Strategy.Params = params
		in.State = state
		in.Now = t0.Add(61 * time.Second)
		in.HasOpenPosition = true
		in.Position = &domain.Position{Side: domain.SideLong}
		in.Market = &fakeMarket{book: bookWithRatio(90, 10)} // still favorable, but max hold wins
	})
	signal, err := strat.CheckExit(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, signal)
	require.Equal(t, "max hold reached", signal.Reason)
}
