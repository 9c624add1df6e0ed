package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"golang.org/x/sync/errgroup"

	"openshortlink/internal/conf"
	"openshortlink/internal/domain"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(NewFilterResolver, NewAnalyticsUsecase)

const (
	// recentCacheTTL applies when the recent store contributed: the data is
	// still volatile.
	recentCacheTTL = 5 * time.Minute
	// aggregateCacheTTL applies to aggregate-only answers, which change at
	// most once per nightly rollup.
	aggregateCacheTTL = time.Hour

	defaultQueryTimeout   = 10 * time.Second
	defaultBreakdownLimit = 100
)

// RecentStore queries the low-latency click event store. It holds only the
// last N days of raw events and accepts at most MaxFilterIDs link ids per
// filtered query, so callers hand it a BatchPlan instead of a raw filter.
type RecentStore interface {
	// Configured reports whether a connection to the store exists. Queries
	// against an unconfigured store return domain.ErrRecentStoreUnconfigured.
	Configured() bool

	TimeSeries(ctx context.Context, plan BatchPlan, r domain.DateRange) ([]domain.TimePoint, error)
	Geo(ctx context.Context, plan BatchPlan, r domain.DateRange) ([]domain.GeoPoint, error)
	Referrers(ctx context.Context, plan BatchPlan, r domain.DateRange) ([]domain.ReferrerPoint, error)
	Devices(ctx context.Context, plan BatchPlan, r domain.DateRange) ([]domain.DevicePoint, error)
	UTM(ctx context.Context, plan BatchPlan, r domain.DateRange) ([]domain.UTMPoint, error)
	Params(ctx context.Context, plan BatchPlan, r domain.DateRange) ([]domain.ParamPoint, error)
	Summary(ctx context.Context, plan BatchPlan, r domain.DateRange) (*domain.Summary, error)
}

// AggregateStore queries the durable rollup store with a relational filter.
// Unbounded retention, no cardinality limit, no batching.
type AggregateStore interface {
	TimeSeries(ctx context.Context, f AggregateFilter, r domain.DateRange) ([]domain.TimePoint, error)
	Geo(ctx context.Context, f AggregateFilter, r domain.DateRange) ([]domain.GeoPoint, error)
	Referrers(ctx context.Context, f AggregateFilter, r domain.DateRange) ([]domain.ReferrerPoint, error)
	Devices(ctx context.Context, f AggregateFilter, r domain.DateRange) ([]domain.DevicePoint, error)
	UTM(ctx context.Context, f AggregateFilter, r domain.DateRange) ([]domain.UTMPoint, error)
	Params(ctx context.Context, f AggregateFilter, r domain.DateRange) ([]domain.ParamPoint, error)
	Summary(ctx context.Context, f AggregateFilter, r domain.DateRange) (*domain.Summary, error)
}

// RetentionPolicies reads the retention policy from settings storage.
type RetentionPolicies interface {
	Current(ctx context.Context) (domain.RetentionPolicy, error)
}

// ResponseCache stores serialized answers. Implementations must treat read
// failures as misses and write failures as log-only: the cache never surfaces
// errors to the request path.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
}

// Query is one analytics request after authorization has been resolved into a
// concrete logical filter.
type Query struct {
	Range      domain.DateRange
	Filter     domain.LogicalFilter
	Dimensions []domain.Dimension
	// Limit bounds breakdown dimensions after merging. Zero means the
	// configured default.
	Limit int
	// SkipCache bypasses the cache read; the computed answer is still written.
	SkipCache bool
}

// AnalyticsUsecase routes analytics queries across the recent event store and
// the aggregate store, merging their partial answers into one response.
type AnalyticsUsecase struct {
	recent    RecentStore
	aggregate AggregateStore
	resolver  *FilterResolver
	settings  RetentionPolicies
	cache     ResponseCache
	log       *log.Helper

	queryTimeout   time.Duration
	breakdownLimit int
	now            func() time.Time
}

func NewAnalyticsUsecase(
	recent RecentStore,
	aggregate AggregateStore,
	resolver *FilterResolver,
	settings RetentionPolicies,
	cache ResponseCache,
	c *conf.Analytics,
	logger log.Logger,
) *AnalyticsUsecase {
	uc := &AnalyticsUsecase{
		recent:         recent,
		aggregate:      aggregate,
		resolver:       resolver,
		settings:       settings,
		cache:          cache,
		log:            log.NewHelper(logger),
		queryTimeout:   defaultQueryTimeout,
		breakdownLimit: defaultBreakdownLimit,
		now:            time.Now,
	}
	if c != nil {
		if d := c.QueryTimeout.AsDuration(); d > 0 {
			uc.queryTimeout = d
		}
		if c.BreakdownLimit > 0 {
			uc.breakdownLimit = int(c.BreakdownLimit)
		}
	}
	return uc
}

// Query answers one analytics request. Backend failures degrade to warnings
// in the result meta; only configuration errors fail the request outright.
func (uc *AnalyticsUsecase) Query(ctx context.Context, q Query) (*domain.QueryResult, error) {
	if len(q.Dimensions) == 0 {
		q.Dimensions = domain.AllDimensions()
	}
	limit := q.Limit
	if limit <= 0 {
		limit = uc.breakdownLimit
	}

	policy, err := uc.settings.Current(ctx)
	if err != nil {
		uc.log.WithContext(ctx).Warnf("retention policy lookup failed, using defaults: %v", err)
		policy = domain.DefaultRetentionPolicy()
	}

	decision, err := DecideDataSources(q.Range, uc.now(), policy)
	if err != nil {
		return nil, err
	}

	var warnings []string
	useRecent := decision.UseRecentStore
	if useRecent && !uc.recent.Configured() {
		if !decision.UseAggregateStore {
			return nil, domain.ErrRecentStoreUnconfigured
		}
		warnings = append(warnings, "recent event store is not configured; answer covers the aggregated range only")
		useRecent = false
	}
	if !useRecent && !decision.UseAggregateStore {
		return nil, domain.ErrNoDataSource
	}

	key := cacheKey(q, limit, sourcePreference(useRecent, decision.UseAggregateStore))
	if !q.SkipCache {
		if payload, ok := uc.cache.Get(ctx, key); ok {
			var cached domain.QueryResult
			if err := json.Unmarshal(payload, &cached); err == nil {
				return &cached, nil
			}
			uc.log.WithContext(ctx).Warnf("discarding undecodable cache entry %s", key)
		}
	}

	resolved, err := uc.resolver.Resolve(ctx, q.Filter, useRecent)
	if err != nil {
		return nil, fmt.Errorf("resolving filter: %w", err)
	}
	plan := PlanBatches(resolved)

	var (
		mu           sync.Mutex
		recentReport domain.Report
		oldReport    domain.Report
		recentFailed int
		oldFailed    int
	)
	var g errgroup.Group
	for _, dim := range q.Dimensions {
		dim := dim
		if useRecent {
			g.Go(func() error {
				cctx, cancel := context.WithTimeout(ctx, uc.queryTimeout)
				defer cancel()
				if err := uc.fetchRecent(cctx, &mu, &recentReport, dim, plan, *decision.Recent); err != nil {
					uc.log.WithContext(ctx).Warnf("recent store %s query failed: %v", dim, err)
					mu.Lock()
					recentFailed++
					warnings = append(warnings, fmt.Sprintf("recent data for %s is unavailable", dim))
					mu.Unlock()
				}
				return nil
			})
		}
		if decision.UseAggregateStore {
			g.Go(func() error {
				cctx, cancel := context.WithTimeout(ctx, uc.queryTimeout)
				defer cancel()
				if err := uc.fetchAggregate(cctx, &mu, &oldReport, dim, resolved.Aggregate, *decision.Old); err != nil {
					uc.log.WithContext(ctx).Warnf("aggregate store %s query failed: %v", dim, err)
					mu.Lock()
					oldFailed++
					warnings = append(warnings, fmt.Sprintf("historical data for %s is unavailable", dim))
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	recentContributed := useRecent && recentFailed < len(q.Dimensions)
	aggContributed := decision.UseAggregateStore && oldFailed < len(q.Dimensions)

	result := &domain.QueryResult{
		Report: MergeReports(recentReport, oldReport, limit),
		Meta: domain.Meta{
			DataSource:         dataSource(recentContributed, aggContributed),
			AggregationEnabled: decision.AggregationEnabled,
			OldRange:           decision.Old,
			Warnings:           warnings,
		},
	}
	if useRecent {
		result.Meta.RecentRange = decision.Recent
	}
	normalizeReport(&result.Report, q.Dimensions)

	if result.Meta.DataSource != domain.DataSourceNone {
		ttl := aggregateCacheTTL
		if useRecent {
			ttl = recentCacheTTL
		}
		if payload, err := json.Marshal(result); err == nil {
			uc.cache.Set(ctx, key, payload, ttl)
		}
	}
	return result, nil
}

func (uc *AnalyticsUsecase) fetchRecent(ctx context.Context, mu *sync.Mutex, report *domain.Report, dim domain.Dimension, plan BatchPlan, r domain.DateRange) error {
	switch dim {
	case domain.DimensionTimeSeries:
		points, err := uc.recent.TimeSeries(ctx, plan, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.TimeSeries = points
		mu.Unlock()
	case domain.DimensionGeo:
		points, err := uc.recent.Geo(ctx, plan, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Geo = points
		mu.Unlock()
	case domain.DimensionReferrers:
		points, err := uc.recent.Referrers(ctx, plan, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Referrers = points
		mu.Unlock()
	case domain.DimensionDevices:
		points, err := uc.recent.Devices(ctx, plan, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Devices = points
		mu.Unlock()
	case domain.DimensionUTM:
		points, err := uc.recent.UTM(ctx, plan, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.UTM = points
		mu.Unlock()
	case domain.DimensionParams:
		points, err := uc.recent.Params(ctx, plan, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Params = points
		mu.Unlock()
	case domain.DimensionSummary:
		summary, err := uc.recent.Summary(ctx, plan, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Summary = summary
		mu.Unlock()
	}
	return nil
}

func (uc *AnalyticsUsecase) fetchAggregate(ctx context.Context, mu *sync.Mutex, report *domain.Report, dim domain.Dimension, f AggregateFilter, r domain.DateRange) error {
	switch dim {
	case domain.DimensionTimeSeries:
		points, err := uc.aggregate.TimeSeries(ctx, f, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.TimeSeries = points
		mu.Unlock()
	case domain.DimensionGeo:
		points, err := uc.aggregate.Geo(ctx, f, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Geo = points
		mu.Unlock()
	case domain.DimensionReferrers:
		points, err := uc.aggregate.Referrers(ctx, f, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Referrers = points
		mu.Unlock()
	case domain.DimensionDevices:
		points, err := uc.aggregate.Devices(ctx, f, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Devices = points
		mu.Unlock()
	case domain.DimensionUTM:
		points, err := uc.aggregate.UTM(ctx, f, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.UTM = points
		mu.Unlock()
	case domain.DimensionParams:
		points, err := uc.aggregate.Params(ctx, f, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Params = points
		mu.Unlock()
	case domain.DimensionSummary:
		summary, err := uc.aggregate.Summary(ctx, f, r)
		if err != nil {
			return err
		}
		mu.Lock()
		report.Summary = summary
		mu.Unlock()
	}
	return nil
}

// normalizeReport makes every requested dimension present in the answer, so a
// degraded or legitimately-empty dimension serializes as empty rather than
// disappearing.
func normalizeReport(r *domain.Report, dims []domain.Dimension) {
	for _, dim := range dims {
		switch dim {
		case domain.DimensionTimeSeries:
			if r.TimeSeries == nil {
				r.TimeSeries = []domain.TimePoint{}
			}
		case domain.DimensionGeo:
			if r.Geo == nil {
				r.Geo = []domain.GeoPoint{}
			}
		case domain.DimensionReferrers:
			if r.Referrers == nil {
				r.Referrers = []domain.ReferrerPoint{}
			}
		case domain.DimensionDevices:
			if r.Devices == nil {
				r.Devices = []domain.DevicePoint{}
			}
		case domain.DimensionUTM:
			if r.UTM == nil {
				r.UTM = []domain.UTMPoint{}
			}
		case domain.DimensionParams:
			if r.Params == nil {
				r.Params = []domain.ParamPoint{}
			}
		case domain.DimensionSummary:
			if r.Summary == nil {
				r.Summary = &domain.Summary{}
			}
		}
	}
}

func sourcePreference(useRecent, useAggregate bool) string {
	switch {
	case useRecent && useAggregate:
		return "mixed"
	case useRecent:
		return "recent"
	case useAggregate:
		return "aggregate"
	}
	return "none"
}

func dataSource(recentContributed, aggContributed bool) domain.DataSource {
	switch {
	case recentContributed && aggContributed:
		return domain.DataSourceMixed
	case recentContributed:
		return domain.DataSourceRecent
	case aggContributed:
		return domain.DataSourceAggregate
	}
	return domain.DataSourceNone
}

// cacheKey is dimension set : filter signature : range : limit : source
// preference, all components stable under reordering of the caller's inputs.
// The effective limit is part of the key because it changes the truncated
// breakdowns stored in the payload.
func cacheKey(q Query, limit int, sourcePref string) string {
	names := make([]string, len(q.Dimensions))
	for i, d := range q.Dimensions {
		names[i] = string(d)
	}
	sort.Strings(names)
	return fmt.Sprintf("analytics:v1:%s:%s:%s:%s:%d:%s",
		strings.Join(names, "+"),
		q.Filter.Signature(),
		q.Range.Start.Format(domain.DateLayout),
		q.Range.End.Format(domain.DateLayout),
		limit,
		sourcePref,
	)
}
