package domain

// DefaultRetentionDays is the boundary age past which click data is promoted
// from the recent event store to the aggregate store.
const DefaultRetentionDays = 89

// RetentionPolicy holds the recent/old threshold and the aggregation flag.
// Pure data, externally configured through settings storage.
type RetentionPolicy struct {
	ThresholdDays      int
	AggregationEnabled bool
}

// DefaultRetentionPolicy is used when settings storage has no explicit policy.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{ThresholdDays: DefaultRetentionDays, AggregationEnabled: true}
}
