package domain

// Mergeable is implemented by breakdown points that can be combined across
// data sources. Combine must sum clicks and take the maximum of unique
// visitors: unique-visitor counts from possibly-overlapping windows cannot be
// added without distinct-count reconciliation, so max is the conservative,
// idempotent choice.
type Mergeable[P any] interface {
	// MergeKey identifies the natural dimension key of the point.
	MergeKey() string
	// Combine folds another point with the same key into this one.
	Combine(other P) P
	// ClickCount returns the click total, used for post-merge ordering.
	ClickCount() int64
}

func combineCounts(clicks, uniques, otherClicks, otherUniques int64) (int64, int64) {
	clicks += otherClicks
	if otherUniques > uniques {
		uniques = otherUniques
	}
	return clicks, uniques
}

// TimePoint is one day of the time series.
type TimePoint struct {
	Date           string `json:"date"`
	Clicks         int64  `json:"clicks"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

func (p TimePoint) MergeKey() string { return p.Date }

func (p TimePoint) Combine(o TimePoint) TimePoint {
	p.Clicks, p.UniqueVisitors = combineCounts(p.Clicks, p.UniqueVisitors, o.Clicks, o.UniqueVisitors)
	return p
}

func (p TimePoint) ClickCount() int64 { return p.Clicks }

// GeoPoint is a country/city breakdown entry.
type GeoPoint struct {
	Country        string `json:"country"`
	City           string `json:"city,omitempty"`
	Clicks         int64  `json:"clicks"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

func (p GeoPoint) MergeKey() string { return p.Country + "\x1f" + p.City }

func (p GeoPoint) Combine(o GeoPoint) GeoPoint {
	p.Clicks, p.UniqueVisitors = combineCounts(p.Clicks, p.UniqueVisitors, o.Clicks, o.UniqueVisitors)
	return p
}

func (p GeoPoint) ClickCount() int64 { return p.Clicks }

// ReferrerPoint is a referrer breakdown entry, keyed by referrer domain.
type ReferrerPoint struct {
	Referrer       string `json:"referrer"`
	Category       string `json:"category,omitempty"`
	Clicks         int64  `json:"clicks"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

func (p ReferrerPoint) MergeKey() string { return p.Referrer }

func (p ReferrerPoint) Combine(o ReferrerPoint) ReferrerPoint {
	p.Clicks, p.UniqueVisitors = combineCounts(p.Clicks, p.UniqueVisitors, o.Clicks, o.UniqueVisitors)
	if p.Category == "" {
		p.Category = o.Category
	}
	return p
}

func (p ReferrerPoint) ClickCount() int64 { return p.Clicks }

// DevicePoint is a device/browser/os breakdown entry.
type DevicePoint struct {
	Device         string `json:"device"`
	Browser        string `json:"browser,omitempty"`
	OS             string `json:"os,omitempty"`
	Clicks         int64  `json:"clicks"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

func (p DevicePoint) MergeKey() string { return p.Device + "\x1f" + p.Browser + "\x1f" + p.OS }

func (p DevicePoint) Combine(o DevicePoint) DevicePoint {
	p.Clicks, p.UniqueVisitors = combineCounts(p.Clicks, p.UniqueVisitors, o.Clicks, o.UniqueVisitors)
	return p
}

func (p DevicePoint) ClickCount() int64 { return p.Clicks }

// UTMPoint is a utm_source/utm_medium/utm_campaign breakdown entry.
type UTMPoint struct {
	Source         string `json:"utm_source"`
	Medium         string `json:"utm_medium,omitempty"`
	Campaign       string `json:"utm_campaign,omitempty"`
	Clicks         int64  `json:"clicks"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

func (p UTMPoint) MergeKey() string { return p.Source + "\x1f" + p.Medium + "\x1f" + p.Campaign }

func (p UTMPoint) Combine(o UTMPoint) UTMPoint {
	p.Clicks, p.UniqueVisitors = combineCounts(p.Clicks, p.UniqueVisitors, o.Clicks, o.UniqueVisitors)
	return p
}

func (p UTMPoint) ClickCount() int64 { return p.Clicks }

// ParamPoint is a custom query-parameter breakdown entry.
type ParamPoint struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	Clicks         int64  `json:"clicks"`
	UniqueVisitors int64  `json:"unique_visitors"`
}

func (p ParamPoint) MergeKey() string { return p.Name + "\x1f" + p.Value }

func (p ParamPoint) Combine(o ParamPoint) ParamPoint {
	p.Clicks, p.UniqueVisitors = combineCounts(p.Clicks, p.UniqueVisitors, o.Clicks, o.UniqueVisitors)
	return p
}

func (p ParamPoint) ClickCount() int64 { return p.Clicks }

// Summary holds the range totals.
type Summary struct {
	TotalClicks         int64 `json:"total_clicks"`
	TotalUniqueVisitors int64 `json:"total_unique_visitors"`
}
