// Package main provides the entry point for the multi-tenant strategy
// execution engine: the supervisor's per-bot reconcile loop, the scanner
// worker, and the health endpoint all run side by side until signalled
// to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/bot"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/candlecache"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/config"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/health"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/logging"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/marketdata"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/position"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/scanner"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/store"
	"github.com/insytemarkets/hyperliquid-bot-platform/internal/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return 1
	}

	logger := logging.New(cfg.LogLevel)
	log := logrus.NewEntry(logger)
	log.Infof("starting engine, connecting to %s", cfg.MaskedURL())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received, stopping engine")
		cancel()
	}()

	dsn := fmt.Sprintf("%s?sslmode=require", cfg.SupabaseURL)
	db, err := store.New(ctx, dsn)
	if err != nil {
		log.Errorf("opening store: %v", err)
		return 1
	}
	defer db.Close()

	market := marketdata.New(marketdata.Config{
		Timeout:        cfg.MarketDataTimeout,
		CandleDelay:    cfg.CandleCallDelay,
		OrderBookDelay: cfg.OrderBookCallDelay,
	})

	strategyDefaults, err := config.LoadStrategyDefaults(cfg.StrategyDefaultsPath)
	if err != nil {
		log.Errorf("loading strategy defaults: %v", err)
		return 1
	}

	botConfigs := store.NewBotConfigStore(db, strategyDefaults)
	positions := store.NewPositionStore(db)
	logs := store.NewLogStore(db)
	scannerLevels := store.NewScannerLevelStore(db)

	scannerCandles := candlecache.New(market, cfg.CandleCacheTTL)
	scannerWorker := scanner.New(market, scannerCandles, scannerLevels, cfg.ScannerInterval, log.WithField("component", "scanner"))
	healthServer := health.NewServer(cfg.Port, logger)

	newActor := func(botCfg domain.BotConfig) supervisor.Actor {
		cache := candlecache.New(market, cfg.CandleCacheTTL)
		botLog := logging.WithBot(logger, botCfg.ID)
		posMgr := position.NewManager(positions, logs, botLog)
		return bot.New(botCfg, botCfg.OwnerID, market, cache, scannerLevels, positions, posMgr, botLog, cfg.MidPriceTTL)
	}
	sup := supervisor.New(botConfigs, logs, newActor, log.WithField("component", "supervisor"),
		cfg.SupervisorTickInterval, cfg.SupervisorErrorBackoff)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sup.Run(gctx) })
	g.Go(func() error { return scannerWorker.Run(gctx) })
	g.Go(func() error {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("engine stopped with error: %v", err)
		return 1
	}
	log.Info("engine stopped cleanly")
	return 0
}
