// Package marketdata implements a rate-limited client for the exchange's
// market-data HTTP endpoint: mid prices, L2 order books, candles, and
// recent trades. It enforces the provider's polite-delay discipline with a
// token bucket, trips a circuit breaker on sustained failures, and never
// retries internally — callers decide whether to skip or retry a tick.
package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

// APIError represents a non-2xx HTTP response from the exchange endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market data API error %d: %s", e.Status, e.Body)
}

// RateLimitError indicates the provider rejected the call for rate limiting.
type RateLimitError struct {
	RetryAfter string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("rate limited (retry-after: %s)", e.RetryAfter)
	}
	return "rate limited"
}

// Client talks to the exchange's single POST JSON endpoint. L2Book and
// Candles sleep their polite delay before issuing the HTTP call; the other
// methods do not. Every call waits on the token bucket and then runs
// through a circuit breaker so a string of failures stops hammering a
// struggling provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter

	candleDelay    time.Duration
	orderBookDelay time.Duration
}

// Config configures a Client's timeouts and pacing.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	CandleDelay    time.Duration
	OrderBookDelay time.Duration
}

// New creates a market data client against baseURL with the given pacing.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CandleDelay <= 0 {
		cfg.CandleDelay = 1500 * time.Millisecond
	}
	if cfg.OrderBookDelay <= 0 {
		cfg.OrderBookDelay = time.Second
	}

	breakerSettings := gobreaker.Settings{
		Name:        "marketdata",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		breaker:        gobreaker.NewCircuitBreaker(breakerSettings),
		limiter:        rate.NewLimiter(rate.Every(time.Second), 2),
		candleDelay:    cfg.CandleDelay,
		orderBookDelay: cfg.OrderBookDelay,
	}
}

// AllMids returns the current mid price for every traded symbol.
func (c *Client) AllMids(ctx context.Context) (map[string]float64, error) {
	raw, err := c.post(ctx, map[string]any{"type": "allMids"})
	if err != nil {
		return nil, err
	}
	var strMap map[string]string
	if err := json.Unmarshal(raw, &strMap); err != nil {
		return nil, fmt.Errorf("decoding allMids: %w", err)
	}
	mids := make(map[string]float64, len(strMap))
	for sym, s := range strMap {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue // malformed entry for one symbol must not fail the whole snapshot
		}
		mids[sym] = v
	}
	return mids, nil
}

// l2Wire is the raw wire shape for an L2 book response.
type l2Wire struct {
	Coin   string          `json:"coin"`
	Levels [][]l2LevelWire `json:"levels"`
	Time   int64           `json:"time"`
}

type l2LevelWire struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
}

// UnmarshalJSON accepts either {"px":"1","sz":"2"} or ["1","2"] level shapes,
// since providers in this space are inconsistent about object vs array legs.
func (l *l2LevelWire) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var pair [2]string
		if err := json.Unmarshal(b, &pair); err != nil {
			return err
		}
		l.Px, l.Sz = pair[0], pair[1]
		return nil
	}
	type alias l2LevelWire
	return json.Unmarshal(b, (*alias)(l))
}

// L2Book fetches the order book for symbol, best-first on both sides.
func (c *Client) L2Book(ctx context.Context, symbol string) (*domain.L2Book, error) {
	time.Sleep(c.orderBookDelay)

	raw, err := c.post(ctx, map[string]any{"type": "l2Book", "coin": symbol})
	if err != nil {
		return nil, err
	}
	var wire l2Wire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding l2Book for %s: %w", symbol, err)
	}
	if len(wire.Levels) < 2 {
		return nil, fmt.Errorf("malformed l2Book response for %s: expected 2 sides, got %d", symbol, len(wire.Levels))
	}

	book := &domain.L2Book{Symbol: symbol, Time: time.UnixMilli(wire.Time)}
	book.Bids = parseLevels(wire.Levels[0])
	book.Asks = parseLevels(wire.Levels[1])
	return book, nil
}

func parseLevels(wire []l2LevelWire) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(wire))
	for _, w := range wire {
		px, errPx := strconv.ParseFloat(w.Px, 64)
		sz, errSz := strconv.ParseFloat(w.Sz, 64)
		if errPx != nil || errSz != nil {
			continue
		}
		out = append(out, domain.BookLevel{Price: px, Size: sz})
	}
	return out
}

// candleWire is the raw wire shape for one candle.
type candleWire struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
	V string `json:"v"`
	T int64  `json:"t"`
}

// Candles fetches closed+in-progress candles for symbol over [startMs, endMs].
// This method sleeps candleDelay before every fetch; the candle cache adds
// no delay of its own, so a cache miss pays exactly this one sleep.
func (c *Client) Candles(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]domain.Candle, error) {
	time.Sleep(c.candleDelay)

	raw, err := c.post(ctx, map[string]any{
		"type":      "candleSnapshot",
		"coin":      symbol,
		"interval":  interval,
		"startTime": startMs,
		"endTime":   endMs,
	})
	if err != nil {
		return nil, err
	}
	var wire []candleWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding candles for %s/%s: %w", symbol, interval, err)
	}

	out := make([]domain.Candle, 0, len(wire))
	for _, w := range wire {
		candle, ok := parseCandle(w)
		if !ok {
			continue
		}
		out = append(out, candle)
	}
	return out, nil
}

func parseCandle(w candleWire) (domain.Candle, bool) {
	o, errO := strconv.ParseFloat(w.O, 64)
	h, errH := strconv.ParseFloat(w.H, 64)
	l, errL := strconv.ParseFloat(w.L, 64)
	cl, errC := strconv.ParseFloat(w.C, 64)
	v, errV := strconv.ParseFloat(w.V, 64)
	if errO != nil || errH != nil || errL != nil || errC != nil || errV != nil {
		return domain.Candle{}, false
	}
	return domain.Candle{
		Open: o, High: h, Low: l, Close: cl, Volume: v,
		Time: time.UnixMilli(w.T),
	}, true
}

// recentTradeWire is the raw wire shape for one recent trade print.
type recentTradeWire struct {
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Side string `json:"side"`
	Time int64  `json:"time"`
}

// RecentTrades fetches the most recent prints for symbol.
func (c *Client) RecentTrades(ctx context.Context, symbol string) ([]domain.RecentTrade, error) {
	raw, err := c.post(ctx, map[string]any{"type": "recentTrades", "coin": symbol})
	if err != nil {
		return nil, err
	}
	var wire []recentTradeWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding recentTrades for %s: %w", symbol, err)
	}

	out := make([]domain.RecentTrade, 0, len(wire))
	for _, w := range wire {
		px, errPx := strconv.ParseFloat(w.Px, 64)
		sz, errSz := strconv.ParseFloat(w.Sz, 64)
		if errPx != nil || errSz != nil {
			continue
		}
		side := domain.InitiatorAsk
		if w.Side == string(domain.InitiatorBid) {
			side = domain.InitiatorBid
		}
		out = append(out, domain.RecentTrade{Price: px, Size: sz, Side: side, Time: time.UnixMilli(w.Time)})
	}
	return out, nil
}

// AssetContext is one symbol's 24h market snapshot, used by the scanner.
type AssetContext struct {
	Symbol        string
	MarkPrice     float64
	PrevDayPrice  float64
	DayNotionalVlm float64
}

// MetaAndAssetCtxs returns the 24h volume/price snapshot for every symbol.
func (c *Client) MetaAndAssetCtxs(ctx context.Context) ([]AssetContext, error) {
	raw, err := c.post(ctx, map[string]any{"type": "metaAndAssetCtxs"})
	if err != nil {
		return nil, err
	}

	var wire []json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil || len(wire) < 2 {
		return nil, fmt.Errorf("decoding metaAndAssetCtxs: unexpected shape")
	}

	var meta struct {
		Universe []struct {
			Name string `json:"name"`
		} `json:"universe"`
	}
	if err := json.Unmarshal(wire[0], &meta); err != nil {
		return nil, fmt.Errorf("decoding metaAndAssetCtxs universe: %w", err)
	}

	var ctxs []struct {
		MarkPx   string `json:"markPx"`
		PrevDayPx string `json:"prevDayPx"`
		DayNtlVlm string `json:"dayNtlVlm"`
	}
	if err := json.Unmarshal(wire[1], &ctxs); err != nil {
		return nil, fmt.Errorf("decoding metaAndAssetCtxs contexts: %w", err)
	}

	n := len(meta.Universe)
	if len(ctxs) < n {
		n = len(ctxs)
	}
	out := make([]AssetContext, 0, n)
	for i := 0; i < n; i++ {
		mark, _ := strconv.ParseFloat(ctxs[i].MarkPx, 64)
		prev, _ := strconv.ParseFloat(ctxs[i].PrevDayPx, 64)
		vlm, _ := strconv.ParseFloat(ctxs[i].DayNtlVlm, 64)
		out = append(out, AssetContext{
			Symbol:         meta.Universe[i].Name,
			MarkPrice:      mark,
			PrevDayPrice:   prev,
			DayNotionalVlm: vlm,
		})
	}
	return out, nil
}

// post performs the HTTP round trip through the rate limiter and circuit
// breaker. It never retries: callers skip the symbol/tick on error.
func (c *Client) post(ctx context.Context, payload map[string]any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doPost(ctx, payload)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doPost(ctx context.Context, payload map[string]any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/info", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: resp.Header.Get("Retry-After")}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return io.ReadAll(resp.Body)
}
