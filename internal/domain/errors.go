package domain

import "errors"

var (
	// ErrInvalidDateRange is returned for malformed or inverted date ranges.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrAggregationDisabled is returned when the requested range reaches past
	// the retention threshold but the aggregate store is disabled. Nothing is
	// queried in that case; the caller sees a 400-class error.
	ErrAggregationDisabled = errors.New("aggregation is disabled: historical data is unavailable")

	// ErrRecentStoreUnconfigured is returned by the recent event store when no
	// connection is configured. It degrades to a warning unless the recent
	// store was the only eligible source for the requested range.
	ErrRecentStoreUnconfigured = errors.New("recent event store is not configured")

	// ErrNoDataSource is returned when no backend can serve the requested range.
	ErrNoDataSource = errors.New("no data source available for the requested range")

	// ErrUnknownDimension is returned for dimension names outside the known set.
	ErrUnknownDimension = errors.New("unknown analytics dimension")
)
