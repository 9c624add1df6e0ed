package biz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openshortlink/internal/domain"
)

func mustRange(t *testing.T, start, end string) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}

func TestDecideDataSources(t *testing.T) {
	today := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
	policy := domain.RetentionPolicy{ThresholdDays: 89, AggregationEnabled: true}
	// threshold date with these inputs is 2024-10-04

	tests := []struct {
		name       string
		start, end string
		wantRecent string // "start/end" or "" for nil
		wantOld    string
	}{
		{
			name:  "entirely within recent window",
			start: "2024-12-01", end: "2024-12-31",
			wantRecent: "2024-12-01/2024-12-31",
		},
		{
			name:  "starts exactly on threshold",
			start: "2024-10-04", end: "2024-12-31",
			wantRecent: "2024-10-04/2024-12-31",
		},
		{
			name:  "entirely before threshold",
			start: "2024-01-01", end: "2024-06-30",
			wantOld: "2024-01-01/2024-06-30",
		},
		{
			name:  "ends the day before threshold",
			start: "2024-09-01", end: "2024-10-03",
			wantOld: "2024-09-01/2024-10-03",
		},
		{
			name:  "spans the threshold",
			start: "2024-09-01", end: "2024-12-31",
			wantRecent: "2024-10-04/2024-12-31",
			wantOld:    "2024-09-01/2024-10-03",
		},
		{
			name:  "single day on threshold",
			start: "2024-10-04", end: "2024-10-04",
			wantRecent: "2024-10-04/2024-10-04",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DecideDataSources(mustRange(t, tt.start, tt.end), today, policy)
			require.NoError(t, err)

			assertRange(t, tt.wantRecent, d.Recent)
			assertRange(t, tt.wantOld, d.Old)
			assert.Equal(t, tt.wantRecent != "", d.UseRecentStore)
			assert.Equal(t, tt.wantOld != "", d.UseAggregateStore)
			assert.True(t, d.AggregationEnabled)

			// A split must partition the requested range: contiguous, no overlap.
			if d.Recent != nil && d.Old != nil {
				assert.Equal(t, tt.start, d.Old.Start.Format(domain.DateLayout))
				assert.Equal(t, tt.end, d.Recent.End.Format(domain.DateLayout))
				assert.Equal(t, d.Recent.Start, d.Old.End.AddDate(0, 0, 1))
			}
		})
	}
}

func assertRange(t *testing.T, want string, got *domain.DateRange) {
	t.Helper()
	if want == "" {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.Equal(t, want, got.Start.Format(domain.DateLayout)+"/"+got.End.Format(domain.DateLayout))
}

func TestDecideDataSources_AggregationDisabled(t *testing.T) {
	today := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := domain.RetentionPolicy{ThresholdDays: 89, AggregationEnabled: false}

	t.Run("range past threshold fails", func(t *testing.T) {
		_, err := DecideDataSources(mustRange(t, "2024-09-01", "2024-12-31"), today, policy)
		assert.ErrorIs(t, err, domain.ErrAggregationDisabled)
	})

	t.Run("recent range unaffected", func(t *testing.T) {
		d, err := DecideDataSources(mustRange(t, "2024-12-01", "2024-12-31"), today, policy)
		require.NoError(t, err)
		assert.True(t, d.UseRecentStore)
		assert.False(t, d.UseAggregateStore)
	})
}

func TestDecideDataSources_CustomThreshold(t *testing.T) {
	today := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	policy := domain.RetentionPolicy{ThresholdDays: 30, AggregationEnabled: true}
	// threshold is 2024-12-02

	d, err := DecideDataSources(mustRange(t, "2024-11-01", "2024-12-31"), today, policy)
	require.NoError(t, err)
	assertRange(t, "2024-12-02/2024-12-31", d.Recent)
	assertRange(t, "2024-11-01/2024-12-01", d.Old)
}
