package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openshortlink/internal/domain"
)

func TestMergeTimeSeries(t *testing.T) {
	recent := []domain.TimePoint{
		{Date: "2024-12-01", Clicks: 5, UniqueVisitors: 3},
		{Date: "2024-12-02", Clicks: 1, UniqueVisitors: 1},
	}
	old := []domain.TimePoint{
		{Date: "2024-12-01", Clicks: 2, UniqueVisitors: 4},
		{Date: "2024-11-30", Clicks: 9, UniqueVisitors: 6},
	}

	got := MergeTimeSeries(recent, old)

	assert.Equal(t, []domain.TimePoint{
		{Date: "2024-11-30", Clicks: 9, UniqueVisitors: 6},
		{Date: "2024-12-01", Clicks: 7, UniqueVisitors: 4},
		{Date: "2024-12-02", Clicks: 1, UniqueVisitors: 1},
	}, got)
}

func TestMergeTimeSeries_Commutative(t *testing.T) {
	a := []domain.TimePoint{{Date: "2024-12-01", Clicks: 5, UniqueVisitors: 3}}
	b := []domain.TimePoint{
		{Date: "2024-12-01", Clicks: 2, UniqueVisitors: 4},
		{Date: "2024-12-02", Clicks: 1, UniqueVisitors: 1},
	}
	assert.Equal(t, MergeTimeSeries(a, b), MergeTimeSeries(b, a))
}

func TestMergeBreakdown(t *testing.T) {
	a := []domain.GeoPoint{
		{Country: "US", Clicks: 10, UniqueVisitors: 7},
		{Country: "DE", Clicks: 4, UniqueVisitors: 2},
	}
	b := []domain.GeoPoint{
		{Country: "DE", Clicks: 8, UniqueVisitors: 5},
		{Country: "FR", Clicks: 3, UniqueVisitors: 3},
	}

	got := MergeBreakdown(a, b, 0)

	assert.Equal(t, []domain.GeoPoint{
		{Country: "DE", Clicks: 12, UniqueVisitors: 5},
		{Country: "US", Clicks: 10, UniqueVisitors: 7},
		{Country: "FR", Clicks: 3, UniqueVisitors: 3},
	}, got)
}

// Truncation happens after combining, so a key mediocre in both sources can
// still win once its totals are summed.
func TestMergeBreakdown_TruncatesAfterMerge(t *testing.T) {
	a := []domain.ReferrerPoint{
		{Referrer: "google.com", Clicks: 10},
		{Referrer: "bing.com", Clicks: 6},
	}
	b := []domain.ReferrerPoint{
		{Referrer: "twitter.com", Clicks: 9},
		{Referrer: "bing.com", Clicks: 6},
	}

	got := MergeBreakdown(a, b, 2)

	require.Len(t, got, 2)
	assert.Equal(t, "bing.com", got[0].Referrer)
	assert.Equal(t, int64(12), got[0].Clicks)
	assert.Equal(t, "google.com", got[1].Referrer)
}

func TestMergeBreakdown_EmptySideIsIdentity(t *testing.T) {
	a := []domain.DevicePoint{
		{Device: "mobile", Browser: "chrome", Clicks: 5, UniqueVisitors: 2},
		{Device: "desktop", Browser: "firefox", Clicks: 3, UniqueVisitors: 1},
	}

	assert.Equal(t, a, MergeBreakdown(a, nil, 0))
	assert.Equal(t, a, MergeBreakdown(nil, a, 0))
	assert.Empty(t, MergeBreakdown[domain.DevicePoint](nil, nil, 0))
}

func TestMergeBreakdown_TieBreaksOnKey(t *testing.T) {
	a := []domain.UTMPoint{
		{Source: "newsletter", Clicks: 5},
		{Source: "ads", Clicks: 5},
	}
	got := MergeBreakdown(a, nil, 0)
	assert.Equal(t, "ads", got[0].Source)
	assert.Equal(t, "newsletter", got[1].Source)
}

func TestMergeSummary(t *testing.T) {
	tests := []struct {
		name string
		a, b *domain.Summary
		want *domain.Summary
	}{
		{
			name: "both present",
			a:    &domain.Summary{TotalClicks: 100, TotalUniqueVisitors: 40},
			b:    &domain.Summary{TotalClicks: 50, TotalUniqueVisitors: 60},
			want: &domain.Summary{TotalClicks: 150, TotalUniqueVisitors: 60},
		},
		{
			name: "one side missing",
			a:    nil,
			b:    &domain.Summary{TotalClicks: 50, TotalUniqueVisitors: 60},
			want: &domain.Summary{TotalClicks: 50, TotalUniqueVisitors: 60},
		},
		{
			name: "both missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeSummary(tt.a, tt.b))
		})
	}
}

func TestMergeReports_KeepsAbsentDimensionsAbsent(t *testing.T) {
	a := domain.Report{
		TimeSeries: []domain.TimePoint{{Date: "2024-12-01", Clicks: 5, UniqueVisitors: 3}},
	}
	b := domain.Report{
		Geo: []domain.GeoPoint{},
	}

	got := MergeReports(a, b, 10)

	assert.NotNil(t, got.TimeSeries)
	assert.NotNil(t, got.Geo) // present-but-empty survives the merge
	assert.Nil(t, got.Referrers)
	assert.Nil(t, got.Devices)
	assert.Nil(t, got.Summary)
}
