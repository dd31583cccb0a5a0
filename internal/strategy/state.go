package strategy

import "time"

// WickEvent records a liquidity_grab candidate touch of support, armed
// until it bounces, expires, or the symbol is reset.
type WickEvent struct {
	SupportPrice float64
	Timeframe    string
	WickPrice    float64
	WickTime     time.Time
}

// SymbolState is the per-(bot,symbol) timer/event bookkeeping that
// strategies consult and mutate across ticks. One instance is owned by
// the bot actor per symbol; it is never shared across bots or goroutines.
type SymbolState struct {
	// LastCloseTime anchors the shared 60s re-entry cooldown. The source
	// tracked this separately from orderbook_imbalance_v2's own
	// last-trade-time; this engine unifies them into one timestamp.
	LastCloseTime *time.Time

	// V2OpenTime anchors orderbook_imbalance_v2's min-hold/max-hold exit
	// timing for the currently open long, if any. V2LastTradeTime records
	// the same entry instant; no exit or cooldown check reads it.
	V2OpenTime      *time.Time
	V2LastTradeTime *time.Time

	// LiquidityWick is the liquidity_grab state machine's current Armed
	// record, nil when Idle.
	LiquidityWick *WickEvent

	// LastLiquidityCheck throttles liquidity_grab to its 5s cadence.
	LastLiquidityCheck time.Time
}
