// Package domain defines the core types shared across the execution engine:
// bot configuration, positions, trades, log rows, and scanner levels.
package domain

import "time"

// Side is a position direction.
type Side string

// Position sides.
const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// TradeSide is the side of a trade row (distinct from Side: trades are buy/sell).
type TradeSide string

// Trade sides.
const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// PositionStatus is the lifecycle status of a position.
type PositionStatus string

// Position statuses.
const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// LogType enumerates the kinds of bot_logs rows.
type LogType string

// Log types.
const (
	LogInfo       LogType = "info"
	LogError      LogType = "error"
	LogSignal     LogType = "signal"
	LogTrade      LogType = "trade"
	LogMarketData LogType = "market_data"
)

// TileKind enumerates the per-symbol log rows that are updated in place.
type TileKind string

// Tile kinds.
const (
	TileLivePositionStatus TileKind = "position_status"
	TileMonitoring         TileKind = "monitoring"
	TileMarketMetrics      TileKind = "market_metrics"
)

// StrategyType is the closed set of supported strategy descriptors.
type StrategyType string

// Strategy types.
const (
	StrategyOrderbookImbalance        StrategyType = "orderbook_imbalance"
	StrategyOrderbookImbalanceV2      StrategyType = "orderbook_imbalance_v2"
	StrategyMomentumBreakout          StrategyType = "momentum_breakout"
	StrategyMultiTimeframeBreakout    StrategyType = "multi_timeframe_breakout"
	StrategyLiquidityGrab             StrategyType = "liquidity_grab"
	StrategySupportLiquidity          StrategyType = "support_liquidity"
	StrategyDefault                   StrategyType = "default"
)

// StrategyParams carries the strategy's typed, optional tunables. Only the
// fields relevant to the configured StrategyType are consulted; the
// numeric fields carry defaults applied by Normalize, which leaves
// TrendFilterFailOpen as it is.
type StrategyParams struct {
	// orderbook_imbalance_v2
	ImbalanceThreshold float64
	Depth              int
	MinHoldTime        time.Duration
	CooldownPeriod     time.Duration

	// multi_timeframe_breakout
	TrendFilterFailOpen bool
}

// Normalize fills zero-valued fields with their documented defaults.
func (p *StrategyParams) Normalize() {
	if p.ImbalanceThreshold == 0 {
		p.ImbalanceThreshold = 0.7
	}
	if p.Depth == 0 {
		p.Depth = 10
	}
	if p.MinHoldTime == 0 {
		p.MinHoldTime = 30 * time.Second
	}
	if p.CooldownPeriod == 0 {
		p.CooldownPeriod = 60 * time.Second
	}
}

// StrategyConfig is the strategy descriptor attached to a bot.
type StrategyConfig struct {
	ID               string
	Type             StrategyType
	Pairs            []string
	MaxPositions     int
	PositionSizeUSD  float64
	StopLossPercent  float64
	TakeProfitPercent float64
	Params           StrategyParams
}

// BotConfig is the read-only configuration for a running bot instance.
type BotConfig struct {
	ID       string
	OwnerID  string
	Name     string
	Mode     string // "paper" | "live"
	Strategy StrategyConfig
}

// PositionMetadata is in-memory-only bookkeeping kept per open position.
type PositionMetadata struct {
	HighestProfitPct   float64
	HighestProfitPrice float64
	FirstProfitTime    *time.Time
	OriginalStopLoss   float64
}

// Position is a paper trading position, persisted via the position store.
type Position struct {
	ID             string
	BotID          string
	Symbol         string
	Side           Side
	Size           float64 // base-asset units, never USD
	EntryPrice     float64
	CurrentPrice   float64
	StopLoss       float64
	TakeProfit     float64
	OpenedAt       time.Time
	ClosedAt       *time.Time
	Status         PositionStatus
	UnrealizedPnL  float64
}

// Trade is an append-only execution record, two per closed position.
type Trade struct {
	ID         string
	BotID      string
	PositionID string
	Symbol     string
	Side       TradeSide
	Size       float64
	Price      float64
	PnL        *float64
	ExecutedAt time.Time
	Mode       string
}

// LogRow is a bot_logs row.
type LogRow struct {
	ID        string
	BotID     string
	OwnerID   string
	Type      LogType
	Message   string
	Data      map[string]any
	CreatedAt time.Time
}

// LevelPoint is one support/resistance point at a given timeframe.
type LevelPoint struct {
	Price     float64
	Timeframe string
	Touches   int
	Weight    int
}

// ClosestLevel is the single level (across all inspected timeframes)
// nearest to the reference price.
type ClosestLevel struct {
	Price      float64
	Timeframe  string
	Type       string // "LOW" | "HIGH"
	DistancePct float64
	Weight     int
}

// TimeframeLevels bundles the support/resistance pair computed for one timeframe.
type TimeframeLevels struct {
	Support    *LevelPoint
	Resistance *LevelPoint
}

// ScannerLevel is one row of the scanner_levels table.
type ScannerLevel struct {
	Symbol             string
	CurrentPrice       float64
	Support            *LevelPoint
	Resistance         *LevelPoint
	ClosestLevel       *ClosestLevel
	AllLevelsByTF      map[string]TimeframeLevels
	UpdatedAt          time.Time
}

// Candle is one OHLCV bar.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Time   time.Time
}

// BookLevel is one price/size level of an order book side.
type BookLevel struct {
	Price float64
	Size  float64
}

// L2Book is an order book snapshot, best-first on both sides.
type L2Book struct {
	Symbol string
	Bids   []BookLevel
	Asks   []BookLevel
	Time   time.Time
}

// TradeInitiator marks which side initiated a recent trade.
type TradeInitiator string

// Trade initiators.
const (
	InitiatorBid TradeInitiator = "B"
	InitiatorAsk TradeInitiator = "A"
)

// RecentTrade is one recent market trade print.
type RecentTrade struct {
	Price float64
	Size  float64
	Side  TradeInitiator
	Time  time.Time
}
