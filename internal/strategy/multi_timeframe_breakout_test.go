package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

func tfCandles(volume, open, high, low, close float64) []domain.Candle {
	return []domain.Candle{{Open: open, High: high, Low: low, Close: close, Volume: volume}}
}

func TestMultiTimeframeBreakout_DipEntryAt1hLow(t *testing.T) {
	candles := &fakeCandles{byInterval: map[string][]domain.Candle{
		"1h":  tfCandles(1.0, 167.50, 168.50, 168.00, 168.00), // bullish, low=168.00
		"30m": tfCandles(1.0, 167.80, 168.20, 167.90, 168.00),
		"15m": tfCandles(1.1, 167.90, 168.10, 167.95, 168.00),
	}}
	in := testInput(func(in *Input) {
		in.Mid = 168.05
		in.Candles = candles
	})

	strat := &MultiTimeframeBreakout{}
	intent, err := strat.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, intent)
	require.Equal(t, domain.SideLong, intent.Side)
	require.Equal(t, "Buy dip at 1h low", intent.Reason)
	require.Equal(t, 168.05, intent.EntryPrice)
}

func TestMultiTimeframeBreakout_SkipsOnDowntrend(t *testing.T) {
	candles := &fakeCandles{byInterval: map[string][]domain.Candle{
		"1h":  tfCandles(1.0, 168.50, 168.50, 168.00, 167.80), // bearish: close < open
		"30m": tfCandles(1.0, 167.80, 168.20, 167.90, 168.00),
		"15m": tfCandles(1.1, 167.90, 168.10, 167.95, 168.00),
	}}
	in := testInput(func(in *Input) {
		in.Mid = 168.05
		in.Candles = candles
	})

	strat := &MultiTimeframeBreakout{}
	intent, err := strat.Evaluate(context.Background(), in)
	require.NoError(t, err)
	require.Nil(t, intent)
}
