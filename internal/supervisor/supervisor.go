// Package supervisor reconciles the set of running bots against
// bot_instances.status='running' and drives each bot's tick, isolating
// failures so one broken bot never stops the others.
package supervisor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

const (
	defaultReconcileInterval = 1 * time.Second
	defaultTickBackoff       = 5 * time.Second
)

// BotConfigStore is the subset of *store.BotConfigStore the supervisor uses.
type BotConfigStore interface {
	ListRunning(ctx context.Context) ([]domain.BotConfig, error)
	TouchLastTick(ctx context.Context, botID string, at time.Time) error
}

// LogStore is the subset of *store.LogStore the supervisor uses to report
// per-bot tick errors.
type LogStore interface {
	Append(ctx context.Context, botID, ownerID string, kind domain.LogType, message string, data map[string]any) error
}

// Actor is the tick-able unit the supervisor drives — satisfied by
// *bot.Actor.
type Actor interface {
	Tick(ctx context.Context, now time.Time) error
	UpdateConfig(cfg domain.BotConfig)
}

// ActorFactory builds a new Actor for a bot config, wiring its own caches,
// position manager, and strategy dispatch table.
type ActorFactory func(cfg domain.BotConfig) Actor

// Supervisor owns the set of live bot actors and the 1s reconcile loop
// that keeps it in sync with bot_instances.
type Supervisor struct {
	configs  BotConfigStore
	logs     LogStore
	newActor ActorFactory
	logger   *logrus.Entry

	reconcileInterval time.Duration
	tickBackoff       time.Duration

	actors map[string]Actor
}

// New constructs a Supervisor. newActor is called once per bot the first
// time it is observed running; the returned Actor is reused across ticks
// and only torn down when the bot stops running. reconcileInterval and
// tickBackoff fall back to their documented 1s/5s defaults when zero.
func New(configs BotConfigStore, logs LogStore, newActor ActorFactory, logger *logrus.Entry, reconcileInterval, tickBackoff time.Duration) *Supervisor {
	if reconcileInterval <= 0 {
		reconcileInterval = defaultReconcileInterval
	}
	if tickBackoff <= 0 {
		tickBackoff = defaultTickBackoff
	}
	return &Supervisor{
		configs:           configs,
		logs:              logs,
		newActor:          newActor,
		logger:            logger,
		reconcileInterval: reconcileInterval,
		tickBackoff:       tickBackoff,
		actors:            make(map[string]Actor),
	}
}

// Run executes the reconcile loop until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// reconcile lists the running bots, creates/updates/drops actors to match,
// and ticks every live bot once. Loop-level failures (e.g. the store being
// briefly unreachable) back off rather than spinning.
func (s *Supervisor) reconcile(ctx context.Context) {
	running, err := s.configs.ListRunning(ctx)
	if err != nil {
		s.logger.Errorf("listing running bots: %v", err)
		time.Sleep(s.tickBackoff)
		return
	}

	seen := make(map[string]bool, len(running))
	for _, cfg := range running {
		seen[cfg.ID] = true
		actor, ok := s.actors[cfg.ID]
		if !ok {
			actor = s.newActor(cfg)
			s.actors[cfg.ID] = actor
			s.logger.WithField("bot_id", cfg.ID).Info("bot started")
		} else {
			actor.UpdateConfig(cfg)
		}
		s.tickBot(ctx, cfg, actor)
	}

	for id := range s.actors {
		if !seen[id] {
			delete(s.actors, id)
			s.logger.WithField("bot_id", id).Info("bot stopped")
		}
	}
}

func (s *Supervisor) tickBot(ctx context.Context, cfg domain.BotConfig, actor Actor) {
	now := time.Now().UTC()
	if err := actor.Tick(ctx, now); err != nil {
		s.logger.WithField("bot_id", cfg.ID).Errorf("tick failed: %v", err)
		if logErr := s.logs.Append(ctx, cfg.ID, cfg.OwnerID, domain.LogError, "tick failed", map[string]any{"error": err.Error()}); logErr != nil {
			s.logger.WithField("bot_id", cfg.ID).Warnf("appending tick error log: %v", logErr)
		}
		return
	}
	if err := s.configs.TouchLastTick(ctx, cfg.ID, now); err != nil {
		s.logger.WithField("bot_id", cfg.ID).Warnf("touching last_tick_at: %v", err)
	}
}
