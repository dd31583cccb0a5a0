package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

func TestLiquidityGrab_ArmsThenBounces(t *testing.T) {
	t0 := time.Unix(0, 0)
	strat := &LiquidityGrab{}
	state := &SymbolState{}

	candles := &fakeCandles{byInterval: map[string][]domain.Candle{
		"1h":  {{Open: 0, High: 0, Low: 0, Close: 0, Volume: 0}}, // no valid 1h support
		"30m": {{Open: 99.50, High: 100.50, Low: 100.00, Close: 100.00, Volume: 1.0}},
		"15m": {{Open: 99.80, High: 100.10, Low: 99.90, Close: 100.00, Volume: 0.9}},
	}}

	armIn := testInput(func(in *Input) {
		in.Now = t0
		in.Mid = 99.95
		in.State = state
		in.Candles = candles
	})
	intent, err := strat.Evaluate(context.Background(), armIn)
	require.NoError(t, err)
	require.Nil(t, intent)
	require.NotNil(t, state.LiquidityWick)
	require.Equal(t, 99.95, state.LiquidityWick.WickPrice)
	require.Equal(t, "30m", state.LiquidityWick.Timeframe)

	bounceIn := testInput(func(in *Input) {
		in.Now = t0.Add(120 * time.Second)
		in.Mid = 100.05
		in.State = state
		in.Candles = candles
	})
	intent2, err := strat.Evaluate(context.Background(), bounceIn)
	require.NoError(t, err)
	require.NotNil(t, intent2)
	require.Equal(t, domain.SideLong, intent2.Side)
	require.Equal(t, 100.05, intent2.EntryPrice)
	require.Nil(t, state.LiquidityWick)
}
