package biz

import (
	"sort"

	"openshortlink/internal/domain"
)

// MergeBreakdown combines two per-dimension result sets keyed by their natural
// dimension key. Clicks are summed and unique visitors maxed for matching
// keys; unmatched keys pass through unchanged. The union is re-sorted by
// clicks descending and truncated to limit after merging, never before —
// truncating a partial source first can drop a key that would rank highly
// once totals are combined. A limit of 0 means no truncation.
//
// The merge is commutative and idempotent with respect to empty input.
func MergeBreakdown[P domain.Mergeable[P]](a, b []P, limit int) []P {
	merged := make(map[string]P, len(a)+len(b))
	order := make([]string, 0, len(a)+len(b))
	for _, points := range [][]P{a, b} {
		for _, p := range points {
			k := p.MergeKey()
			if existing, ok := merged[k]; ok {
				merged[k] = existing.Combine(p)
				continue
			}
			merged[k] = p
			order = append(order, k)
		}
	}

	out := make([]P, 0, len(order))
	for _, k := range order {
		out = append(out, merged[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ClickCount() != out[j].ClickCount() {
			return out[i].ClickCount() > out[j].ClickCount()
		}
		return out[i].MergeKey() < out[j].MergeKey()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MergeTimeSeries merges two time series on date, summing clicks and maxing
// unique visitors for dates present in both, sorted ascending by date.
func MergeTimeSeries(a, b []domain.TimePoint) []domain.TimePoint {
	out := MergeBreakdown(a, b, 0)
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// MergeSummary combines range totals across sources.
func MergeSummary(a, b *domain.Summary) *domain.Summary {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	uniques := a.TotalUniqueVisitors
	if b.TotalUniqueVisitors > uniques {
		uniques = b.TotalUniqueVisitors
	}
	return &domain.Summary{
		TotalClicks:         a.TotalClicks + b.TotalClicks,
		TotalUniqueVisitors: uniques,
	}
}

// MergeReports combines the per-backend partial reports dimension by
// dimension. Each backend contributes at most once per request. limit bounds
// breakdown dimensions only; the time series is never truncated.
func MergeReports(a, b domain.Report, limit int) domain.Report {
	return domain.Report{
		TimeSeries: mergeIfPresent(a.TimeSeries, b.TimeSeries, MergeTimeSeries),
		Geo:        mergeIfPresent(a.Geo, b.Geo, func(x, y []domain.GeoPoint) []domain.GeoPoint { return MergeBreakdown(x, y, limit) }),
		Referrers:  mergeIfPresent(a.Referrers, b.Referrers, func(x, y []domain.ReferrerPoint) []domain.ReferrerPoint { return MergeBreakdown(x, y, limit) }),
		Devices:    mergeIfPresent(a.Devices, b.Devices, func(x, y []domain.DevicePoint) []domain.DevicePoint { return MergeBreakdown(x, y, limit) }),
		UTM:        mergeIfPresent(a.UTM, b.UTM, func(x, y []domain.UTMPoint) []domain.UTMPoint { return MergeBreakdown(x, y, limit) }),
		Params:     mergeIfPresent(a.Params, b.Params, func(x, y []domain.ParamPoint) []domain.ParamPoint { return MergeBreakdown(x, y, limit) }),
		Summary:    MergeSummary(a.Summary, b.Summary),
	}
}

// mergeIfPresent keeps the requested-vs-absent distinction: a dimension absent
// (nil) on both sides stays absent, while one present side passes through.
func mergeIfPresent[P any](a, b []P, merge func(x, y []P) []P) []P {
	if a == nil && b == nil {
		return nil
	}
	if a == nil {
		return merge(b, nil)
	}
	if b == nil {
		return merge(a, nil)
	}
	return merge(a, b)
}
