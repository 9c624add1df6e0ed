package domain

import "fmt"

// Dimension is one breakdown axis of analytics output.
type Dimension string

const (
	DimensionTimeSeries Dimension = "timeseries"
	DimensionGeo        Dimension = "geo"
	DimensionReferrers  Dimension = "referrers"
	DimensionDevices    Dimension = "devices"
	DimensionUTM        Dimension = "utm"
	DimensionParams     Dimension = "params"
	DimensionSummary    Dimension = "summary"
)

// AllDimensions returns every dimension in stable order.
func AllDimensions() []Dimension {
	return []Dimension{
		DimensionTimeSeries,
		DimensionGeo,
		DimensionReferrers,
		DimensionDevices,
		DimensionUTM,
		DimensionParams,
		DimensionSummary,
	}
}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	switch d {
	case DimensionTimeSeries, DimensionGeo, DimensionReferrers,
		DimensionDevices, DimensionUTM, DimensionParams, DimensionSummary:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
}
