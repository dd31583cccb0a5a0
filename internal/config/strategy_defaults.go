package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// StrategyDefaults holds fallback strategy parameters applied when a bot's
// strategy row in the database omits optional tunables, scoped down to the
// handful of knobs that are genuinely optional per-strategy.
type StrategyDefaults struct {
	OrderbookImbalanceV2 struct {
		ImbalanceThreshold float64 `yaml:"imbalance_threshold"`
		Depth              int     `yaml:"depth"`
		MinHoldTimeSeconds int     `yaml:"min_hold_time_seconds"`
		CooldownSeconds    int     `yaml:"cooldown_seconds"`
	} `yaml:"orderbook_imbalance_v2"`
	TrendFilterFailOpen bool `yaml:"trend_filter_fail_open"`
}

// LoadStrategyDefaults reads an optional YAML defaults file. A missing file
// is not an error; built-in defaults from domain.StrategyParams.Normalize
// apply instead.
func LoadStrategyDefaults(path string) (*StrategyDefaults, error) {
	d := &StrategyDefaults{TrendFilterFailOpen: true}
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-provided local config path
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("reading strategy defaults %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing strategy defaults %q: %w", path, err)
	}
	return d, nil
}

// Apply overlays the defaults onto params wherever the caller's value is
// the zero value, then normalizes remaining gaps. TrendFilterFailOpen is
// left to the caller since false is a valid explicit override and can't be
// distinguished from "unset" once it reaches this struct.
func (d *StrategyDefaults) Apply(p *domain.StrategyParams) {
	if p.ImbalanceThreshold == 0 && d.OrderbookImbalanceV2.ImbalanceThreshold != 0 {
		p.ImbalanceThreshold = d.OrderbookImbalanceV2.ImbalanceThreshold
	}
	if p.Depth == 0 && d.OrderbookImbalanceV2.Depth != 0 {
		p.Depth = d.OrderbookImbalanceV2.Depth
	}
	if p.MinHoldTime == 0 && d.OrderbookImbalanceV2.MinHoldTimeSeconds != 0 {
		p.MinHoldTime = time.Duration(d.OrderbookImbalanceV2.MinHoldTimeSeconds) * time.Second
	}
	if p.CooldownPeriod == 0 && d.OrderbookImbalanceV2.CooldownSeconds != 0 {
		p.CooldownPeriod = time.Duration(d.OrderbookImbalanceV2.CooldownSeconds) * time.Second
	}
	p.Normalize()
}
