package returns

import (
	"sort"
	"strings"
	"time"

	"github.com/aristath/frontier/internal/domain"
)

const dayLayout = "2006-01-02"

func dayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// AlignPrices keeps only the dates present in every series (inner join),
// so returns computed afterwards span identical intervals.
func AlignPrices(series []domain.AssetSeries) ([]domain.AssetSeries, error) {
	sets := make([]map[string]struct{}, len(series))
	symbols := make([]string, len(series))
	for i, s := range series {
		symbols[i] = s.Symbol
		sets[i] = make(map[string]struct{}, len(s.Prices))
		for _, p := range s.Prices {
			sets[i][dayKey(p.Date)] = struct{}{}
		}
	}

	common, err := intersect("align_prices", symbols, sets, 2)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AssetSeries, len(series))
	for i, s := range series {
		kept := make([]domain.DailyPrice, 0, len(common))
		seen := make(map[string]struct{}, len(common))
		for _, p := range s.Prices {
			k := dayKey(p.Date)
			if _, ok := common[k]; !ok {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			kept = append(kept, p)
		}
		sort.SliceStable(kept, func(a, b int) bool { return kept[a].Date.Before(kept[b].Date) })
		out[i] = domain.AssetSeries{Symbol: s.Symbol, Prices: kept}
	}
	return out, nil
}

// Align inner-joins return series on their dates. Series without dates must
// already share a common length, in which case they are returned as-is.
func Align(series []domain.ReturnSeries) ([]domain.ReturnSeries, error) {
	if len(series) == 0 {
		return nil, domain.DataError("align_returns", "no return series")
	}

	undated := 0
	for _, s := range series {
		if s.Dates == nil {
			undated++
		}
	}
	if undated == len(series) {
		n := series[0].Len()
		for _, s := range series[1:] {
			if s.Len() != n {
				return nil, domain.DataError("align_returns", "undated series %s has %d observations, %s has %d", s.Symbol, s.Len(), series[0].Symbol, n)
			}
		}
		if n < 2 {
			return nil, domain.DataError("align_returns", "need at least 2 observations, got %d", n)
		}
		return series, nil
	}
	if undated > 0 {
		return nil, domain.DataError("align_returns", "cannot align dated and undated return series")
	}

	sets := make([]map[string]struct{}, len(series))
	symbols := make([]string, len(series))
	for i, s := range series {
		symbols[i] = s.Symbol
		sets[i] = make(map[string]struct{}, len(s.Dates))
		for _, d := range s.Dates {
			sets[i][dayKey(d)] = struct{}{}
		}
	}
	common, err := intersect("align_returns", symbols, sets, 2)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ReturnSeries, len(series))
	for i, s := range series {
		type obs struct {
			date time.Time
			val  float64
		}
		kept := make([]obs, 0, len(common))
		seen := make(map[string]struct{}, len(common))
		for j, d := range s.Dates {
			k := dayKey(d)
			if _, ok := common[k]; !ok {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			kept = append(kept, obs{date: d, val: s.Values[j]})
		}
		sort.SliceStable(kept, func(a, b int) bool { return kept[a].date.Before(kept[b].date) })

		dates := make([]time.Time, len(kept))
		values := make([]float64, len(kept))
		for j, o := range kept {
			dates[j] = o.date
			values[j] = o.val
		}
		out[i] = domain.ReturnSeries{
			Symbol:         s.Symbol,
			Dates:          dates,
			Values:         values,
			Method:         s.Method,
			PeriodsPerYear: s.PeriodsPerYear,
		}
	}
	return out, nil
}

// intersect returns the date keys shared by all sets. When fewer than minDates
// remain, it names the symbols that overlap with no other series on at least
// minDates dates, or all symbols if every pair overlaps but the whole set does not.
func intersect(op string, symbols []string, sets []map[string]struct{}, minDates int) (map[string]struct{}, error) {
	if len(sets) == 0 {
		return nil, domain.DataError(op, "no series to align")
	}
	common := make(map[string]struct{}, len(sets[0]))
	for k := range sets[0] {
		common[k] = struct{}{}
	}
	for _, s := range sets[1:] {
		for k := range common {
			if _, ok := s[k]; !ok {
				delete(common, k)
			}
		}
	}
	if len(common) >= minDates {
		return common, nil
	}

	if len(sets) == 1 {
		return nil, domain.DataError(op, "%s has fewer than %d dates", symbols[0], minDates)
	}

	var isolated []string
	for i := range sets {
		best := 0
		for j := range sets {
			if i == j {
				continue
			}
			n := 0
			for k := range sets[i] {
				if _, ok := sets[j][k]; ok {
					n++
				}
			}
			if n > best {
				best = n
			}
		}
		if best < minDates {
			isolated = append(isolated, symbols[i])
		}
	}
	if len(isolated) > 0 {
		sort.Strings(isolated)
		return nil, domain.DataError(op, "no overlapping dates for: %s", strings.Join(isolated, ", "))
	}
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	return nil, domain.DataError(op, "only %d dates common to all of: %s", len(common), strings.Join(sorted, ", "))
}
