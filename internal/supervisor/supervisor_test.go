package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

type fakeConfigStore struct {
	running []domain.BotConfig
	err     error
	touched map[string]int
}

func (f *fakeConfigStore) ListRunning(ctx context.Context) ([]domain.BotConfig, error) {
	return f.running, f.err
}
func (f *fakeConfigStore) TouchLastTick(ctx context.Context, botID string, at time.Time) error {
	if f.touched == nil {
		f.touched = make(map[string]int)
	}
	f.touched[botID]++
	return nil
}

type fakeLogStore struct{ appended int }

func (f *fakeLogStore) Append(ctx context.Context, botID, ownerID string, kind domain.LogType, message string, data map[string]any) error {
	f.appended++
	return nil
}

type fakeActor struct {
	ticks       int
	tickErr     error
	lastCfg     domain.BotConfig
	configCalls int
}

func (f *fakeActor) Tick(ctx context.Context, now time.Time) error {
	f.ticks++
	return f.tickErr
}
func (f *fakeActor) UpdateConfig(cfg domain.BotConfig) {
	f.lastCfg = cfg
	f.configCalls++
}

func TestSupervisor_CreatesActorPerBotAndTicks(t *testing.T) {
	configs := &fakeConfigStore{running: []domain.BotConfig{{ID: "bot1", OwnerID: "owner1"}}}
	logs := &fakeLogStore{}
	var created []*fakeActor
	sup := New(configs, logs, func(cfg domain.BotConfig) Actor {
		a := &fakeActor{}
		created = append(created, a)
		return a
	}, logrus.NewEntry(logrus.New()), 0, 0)

	sup.reconcile(context.Background())
	require.Len(t, created, 1)
	require.Equal(t, 1, created[0].ticks)
	require.Equal(t, 1, configs.touched["bot1"])

	// Second reconcile reuses the existing actor instead of creating a new one.
	sup.reconcile(context.Background())
	require.Len(t, created, 1)
	require.Equal(t, 2, created[0].ticks)
	require.Equal(t, 1, created[0].configCalls)
}

func TestSupervisor_DropsActorWhenBotStopsRunning(t *testing.T) {
	configs := &fakeConfigStore{running: []domain.BotConfig{{ID: "bot1"}}}
	logs := &fakeLogStore{}
	sup := New(configs, logs, func(cfg domain.BotConfig) Actor { return &fakeActor{} }, logrus.NewEntry(logrus.New()), 0, 0)

	sup.reconcile(context.Background())
	require.Len(t, sup.actors, 1)

	configs.running = nil
	sup.reconcile(context.Background())
	require.Len(t, sup.actors, 0)
}

func TestSupervisor_IsolatesTickFailure(t *testing.T) {
	configs := &fakeConfigStore{running: []domain.BotConfig{{ID: "bot1"}, {ID: "bot2"}}}
	logs := &fakeLogStore{}
	actors := map[string]*fakeActor{
		"bot1": {tickErr: errors.New("boom")},
		"bot2": {},
	}
	sup := New(configs, logs, func(cfg domain.BotConfig) Actor { return actors[cfg.ID] }, logrus.NewEntry(logrus.New()), 0, 0)

	sup.reconcile(context.Background())
	require.Equal(t, 1, actors["bot1"].ticks)
	require.Equal(t, 1, actors["bot2"].ticks)
	require.Equal(t, 1, logs.appended)
	require.Equal(t, 0, configs.touched["bot1"])
	require.Equal(t, 1, configs.touched["bot2"])
}
