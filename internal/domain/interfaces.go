package domain

import (
	"context"
	"time"
)

// PriceHistoryProvider returns daily prices for one symbol within [start, end]
// in ascending date order. Zero times mean unbounded.
type PriceHistoryProvider interface {
	GetDailyPrices(ctx context.Context, symbol string, start, end time.Time) ([]DailyPrice, error)
}
