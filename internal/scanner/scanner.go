// Package scanner runs the background worker that recomputes
// support/resistance levels for the most liquid symbols and publishes
// them to the scanner_levels table the support_liquidity strategy reads.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/levels"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/marketdata"
)

const (
	minVolumeUSD       = 50_000_000
	maxDeclinePct      = -10
	topTokenCount      = 10
	candlesPerTimeframe = 50
	maxConcurrentSymbols = 4
)

var timeframes = []string{"15m", "30m", "1h"}

var timeframeMinutes = map[string]int64{"15m": 15, "30m": 30, "1h": 60}

// MarketSource is the subset of *marketdata.Client the scanner needs for
// its top-volume symbol selection.
type MarketSource interface {
	MetaAndAssetCtxs(ctx context.Context) ([]marketdata.AssetContext, error)
}

// CandleSource is satisfied by *candlecache.Cache. The scanner shares one
// cache instance across its own cycles (it is not a "bot" and owns no
// per-bot state), so repeated requests for the same symbol/timeframe
// within the scanner's own cycle still hit the rate-limit discipline the
// cache enforces, per spec's "fetches ~50 closed candles via the cache."
type CandleSource interface {
	Get(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]domain.Candle, error)
}

// LevelStore is the subset of *store.ScannerLevelStore the scanner needs.
type LevelStore interface {
	Upsert(ctx context.Context, lvl domain.ScannerLevel) error
}

// Worker recomputes scanner_levels on a fixed cycle.
type Worker struct {
	market   MarketSource
	candles  CandleSource
	store    LevelStore
	interval time.Duration
	logger   *logrus.Entry
}

// New constructs a scanner worker.
func New(market MarketSource, candles CandleSource, store LevelStore, interval time.Duration, logger *logrus.Entry) *Worker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Worker{market: market, candles: candles, store: store, interval: interval, logger: logger}
}

// Run executes the scan cycle immediately, then on Worker's interval,
// until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

func (w *Worker) runCycle(ctx context.Context) {
	tokens, err := w.topTokensByVolume(ctx)
	if err != nil {
		w.logger.Errorf("fetching top tokens: %v", err)
		return
	}
	if len(tokens) == 0 {
		w.logger.Warn("no tokens matched the scanner's volume/decline filter this cycle")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSymbols)
	for _, token := range tokens {
		token := token
		g.Go(func() error {
			if err := w.scanSymbol(gctx, token); err != nil {
				w.logger.WithField("symbol", token.Symbol).Errorf("scanning symbol: %v", err)
			}
			return nil
		})
	}
	_ = g.Wait() // per-symbol errors are logged and isolated, never fatal to the cycle
}

func (w *Worker) topTokensByVolume(ctx context.Context) ([]marketdata.AssetContext, error) {
	all, err := w.market.MetaAndAssetCtxs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching asset contexts: %w", err)
	}

	var matched []marketdata.AssetContext
	for _, a := range all {
		if a.DayNotionalVlm < minVolumeUSD || a.PrevDayPrice <= 0 || a.MarkPrice <= 0 {
			continue
		}
		change24h := (a.MarkPrice - a.PrevDayPrice) / a.PrevDayPrice * 100
		if change24h <= maxDeclinePct {
			continue
		}
		matched = append(matched, a)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].DayNotionalVlm > matched[j].DayNotionalVlm })
	if len(matched) > topTokenCount {
		matched = matched[:topTokenCount]
	}
	return matched, nil
}

func (w *Worker) scanSymbol(ctx context.Context, token marketdata.AssetContext) error {
	endMs := time.Now().UnixMilli()
	byTF := make(map[string]domain.TimeframeLevels, len(timeframes))

	for _, tf := range timeframes {
		startMs := endMs - candlesPerTimeframe*timeframeMinutes[tf]*60*1000
		var candles []domain.Candle
		err := marketdata.WithRetry(ctx, marketdata.DefaultRetryConfig, func() error {
			fetched, fetchErr := w.candles.Get(ctx, token.Symbol, tf, startMs, endMs)
			candles = fetched
			return fetchErr
		})
		if err != nil {
			w.logger.WithField("symbol", token.Symbol).Warnf("fetching %s candles: %v", tf, err)
			continue
		}
		closed := closedCandles(candles)
		if len(closed) == 0 {
			continue
		}
		byTF[tf] = levels.Calculate(closed, tf, token.MarkPrice)
	}

	lvl := domain.ScannerLevel{
		Symbol:        token.Symbol,
		CurrentPrice:  token.MarkPrice,
		AllLevelsByTF: byTF,
		ClosestLevel:  levels.ClosestLevel(byTF, token.MarkPrice),
	}
	lvl.Support, lvl.Resistance = strongestLevels(byTF, token.MarkPrice)

	if err := w.store.Upsert(ctx, lvl); err != nil {
		return fmt.Errorf("upserting levels: %w", err)
	}
	return nil
}

// closedCandles drops the last, still-forming candle, matching the
// bot's own treatment of an in-progress bar.
func closedCandles(candles []domain.Candle) []domain.Candle {
	if len(candles) > 1 {
		return candles[:len(candles)-1]
	}
	return candles
}

// strongestLevels picks, independently for support and resistance, the
// candidate across all timeframes nearest to currentPrice, breaking ties
// by higher timeframe weight.
func strongestLevels(byTF map[string]domain.TimeframeLevels, currentPrice float64) (support, resistance *domain.LevelPoint) {
	var supportCandidates, resistanceCandidates []domain.LevelPoint
	for _, lv := range byTF {
		if lv.Support != nil && lv.Support.Price < currentPrice {
			supportCandidates = append(supportCandidates, *lv.Support)
		}
		if lv.Resistance != nil && lv.Resistance.Price > currentPrice {
			resistanceCandidates = append(resistanceCandidates, *lv.Resistance)
		}
	}
	if currentPrice == 0 {
		return nil, nil
	}

	if len(supportCandidates) > 0 {
		sort.Slice(supportCandidates, func(i, j int) bool {
			di := distancePct(currentPrice, supportCandidates[i].Price)
			dj := distancePct(currentPrice, supportCandidates[j].Price)
			if di != dj {
				return di < dj
			}
			return supportCandidates[i].Weight > supportCandidates[j].Weight
		})
		support = &supportCandidates[0]
	}
	if len(resistanceCandidates) > 0 {
		sort.Slice(resistanceCandidates, func(i, j int) bool {
			di := distancePct(currentPrice, resistanceCandidates[i].Price)
			dj := distancePct(currentPrice, resistanceCandidates[j].Price)
			if di != dj {
				return di < dj
			}
			return resistanceCandidates[i].Weight > resistanceCandidates[j].Weight
		})
		resistance = &resistanceCandidates[0]
	}
	return support, resistance
}

func distancePct(currentPrice, levelPrice float64) float64 {
	d := currentPrice - levelPrice
	if d < 0 {
		d = -d
	}
	return d / currentPrice
}
