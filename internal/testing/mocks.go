package testing

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/history"
)

// MockPriceProvider serves prices from memory and records how it is called
type MockPriceProvider struct {
	mu       sync.RWMutex
	prices   map[string][]domain.DailyPrice
	versions map[string]int64
	err      error
	delay    time.Duration

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// NewMockPriceProvider creates a provider over prices
func NewMockPriceProvider(prices map[string][]domain.DailyPrice) *MockPriceProvider {
	versions := make(map[string]int64, len(prices))
	for s := range prices {
		versions[s] = 1
	}
	return &MockPriceProvider{prices: prices, versions: versions}
}

// SetPrices replaces the stored series of symbol and bumps its data version
func (m *MockPriceProvider) SetPrices(symbol string, prices []domain.DailyPrice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = prices
	m.versions[symbol]++
}

// DataVersions returns a copy of the per-symbol write counters
func (m *MockPriceProvider) DataVersions(ctx context.Context) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.versions))
	for s, v := range m.versions {
		out[s] = v
	}
	return out, nil
}

// SetError makes every subsequent call fail with err
func (m *MockPriceProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes every call sleep for d before answering
func (m *MockPriceProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls is the number of GetDailyPrices calls so far
func (m *MockPriceProvider) Calls() int {
	return int(m.calls.Load())
}

// MaxInFlight is the highest number of concurrent GetDailyPrices calls seen
func (m *MockPriceProvider) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}

// GetDailyPrices returns the stored prices of symbol within [start, end]
func (m *MockPriceProvider) GetDailyPrices(ctx context.Context, symbol string, start, end time.Time) ([]domain.DailyPrice, error) {
	m.calls.Add(1)
	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		prev := m.maxInFlight.Load()
		if cur <= prev || m.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	m.mu.RLock()
	delay, err := m.delay, m.err
	series := m.prices[symbol]
	m.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	var out []domain.DailyPrice
	for _, p := range series {
		if !start.IsZero() && p.Date.Before(start) {
			continue
		}
		if !end.IsZero() && p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ListSymbols returns every stored symbol in name order
func (m *MockPriceProvider) ListSymbols(ctx context.Context) ([]history.SymbolSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]history.SymbolSummary, 0, len(m.prices))
	for s, p := range m.prices {
		sum := history.SymbolSummary{Symbol: s, Count: len(p)}
		if len(p) > 0 {
			sum.First, sum.Last = p[0].Date, p[len(p)-1].Date
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
