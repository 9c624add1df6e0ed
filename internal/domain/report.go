package domain

// DataSource describes which backends contributed to an answer.
type DataSource string

const (
	DataSourceRecent    DataSource = "recent"
	DataSourceAggregate DataSource = "aggregate"
	DataSourceMixed     DataSource = "mixed"
	DataSourceNone      DataSource = "none"
)

// Report holds the per-dimension result sets of one analytics answer. A nil
// slice means the dimension was not requested; an empty non-nil slice means it
// was requested and legitimately has no data. The fields deliberately carry no
// omitempty: a requested-but-empty dimension must serialize as [], not vanish.
type Report struct {
	TimeSeries []TimePoint     `json:"timeseries"`
	Geo        []GeoPoint      `json:"geo"`
	Referrers  []ReferrerPoint `json:"referrers"`
	Devices    []DevicePoint   `json:"devices"`
	UTM        []UTMPoint      `json:"utm"`
	Params     []ParamPoint    `json:"params"`
	Summary    *Summary        `json:"summary,omitempty"`
}

// Meta describes how an answer was produced.
type Meta struct {
	DataSource         DataSource `json:"data_source"`
	AggregationEnabled bool       `json:"aggregation_enabled"`
	RecentRange        *DateRange `json:"recent_range,omitempty"`
	OldRange           *DateRange `json:"old_range,omitempty"`
	Warnings           []string   `json:"warnings,omitempty"`
}

// QueryResult is the merged, cacheable answer for one analytics request.
type QueryResult struct {
	Report Report `json:"data"`
	Meta   Meta   `json:"meta"`
}
