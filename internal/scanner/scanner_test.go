package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/marketdata"
)

type fakeMarket struct {
	assets       []marketdata.AssetContext
	candlesByKey map[string][]domain.Candle
}

func (f *fakeMarket) MetaAndAssetCtxs(ctx context.Context) ([]marketdata.AssetContext, error) {
	return f.assets, nil
}

type fakeCandleSource struct {
	candlesByKey map[string][]domain.Candle
}

func (f *fakeCandleSource) Get(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]domain.Candle, error) {
	return f.candlesByKey[symbol+"_"+interval], nil
}

type fakeLevelStore struct {
	upserted []domain.ScannerLevel
}

func (f *fakeLevelStore) Upsert(ctx context.Context, lvl domain.ScannerLevel) error {
	f.upserted = append(f.upserted, lvl)
	return nil
}

func TestWorker_FiltersAndRanksTokensByVolume(t *testing.T) {
	market := &fakeMarket{assets: []marketdata.AssetContext{
		{Symbol: "BTC", MarkPrice: 100, PrevDayPrice: 100, DayNotionalVlm: 60_000_000},
		{Symbol: "LOWVOL", MarkPrice: 10, PrevDayPrice: 10, DayNotionalVlm: 1_000_000},
		{Symbol: "CRASHED", MarkPrice: 5, PrevDayPrice: 10, DayNotionalVlm: 70_000_000},
	}}
	store := &fakeLevelStore{}
	w := New(market, &fakeCandleSource{}, store, time.Minute, logrus.NewEntry(logrus.New()))

	tokens, err := w.topTokensByVolume(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, "BTC", tokens[0].Symbol)
}

func TestWorker_ScanSymbolUpsertsLevels(t *testing.T) {
	candles := []domain.Candle{
		{High: 105, Low: 95}, {High: 105, Low: 95}, {High: 110, Low: 90},
	}
	market := &fakeMarket{}
	cs := &fakeCandleSource{candlesByKey: map[string][]domain.Candle{
		"BTC_15m": candles, "BTC_30m": candles, "BTC_1h": candles,
	}}
	store := &fakeLevelStore{}
	w := New(market, cs, store, time.Minute, logrus.NewEntry(logrus.New()))

	err := w.scanSymbol(context.Background(), marketdata.AssetContext{Symbol: "BTC", MarkPrice: 100})
	require.NoError(t, err)
	require.Len(t, store.upserted, 1)
	require.Equal(t, "BTC", store.upserted[0].Symbol)
	require.NotNil(t, store.upserted[0].Support)
	require.Equal(t, 95.0, store.upserted[0].Support.Price)
}
