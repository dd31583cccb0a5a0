package strategy

import (
	"context"

	"github.com/insytemarkets/hyperliquid-bot-platform/internal/domain"
)

type fakeCandles struct {
	byInterval map[string][]domain.Candle
	err        error
}

func (f *fakeCandles) Get(ctx context.Context, symbol, interval string, startMs, endMs int64) ([]domain.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byInterval[interval], nil
}

type fakeScanner struct {
	level *domain.ScannerLevel
	err   error
}

func (f *fakeScanner) Get(ctx context.Context, symbol string) (*domain.ScannerLevel, error) {
	return f.level, f.err
}
