package biz

import (
	"time"

	"openshortlink/internal/domain"
)

// DataSourceDecision is the per-request split of a date range across the two
// backends. It is derived, never persisted.
//
// Invariant: when both sub-ranges are present they partition the requested
// range without gaps or overlap, and Old.End is the day before Recent.Start.
type DataSourceDecision struct {
	UseRecentStore     bool
	UseAggregateStore  bool
	Recent             *domain.DateRange
	Old                *domain.DateRange
	AggregationEnabled bool
}

// DecideDataSources splits the requested range at the retention threshold and
// decides which backends are eligible. Requesting data past the threshold
// while aggregation is disabled is a configuration error, raised here before
// any query executes.
func DecideDataSources(r domain.DateRange, today time.Time, policy domain.RetentionPolicy) (DataSourceDecision, error) {
	threshold := domain.Midnight(today).AddDate(0, 0, -policy.ThresholdDays)

	d := DataSourceDecision{AggregationEnabled: policy.AggregationEnabled}
	switch {
	case r.End.Before(threshold):
		// Entire range is older than the threshold.
		d.Old = &r
	case !r.Start.Before(threshold):
		// Entire range is within the recent window.
		d.Recent = &r
	default:
		recent := domain.DateRange{Start: threshold, End: r.End}
		old := domain.DateRange{Start: r.Start, End: threshold.AddDate(0, 0, -1)}
		d.Recent = &recent
		d.Old = &old
	}

	if d.Old != nil && !policy.AggregationEnabled {
		return DataSourceDecision{}, domain.ErrAggregationDisabled
	}

	d.UseRecentStore = d.Recent != nil
	d.UseAggregateStore = d.Old != nil && policy.AggregationEnabled
	return d, nil
}
