package data

import (
	"context"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"

	"openshortlink/internal/biz"
	"openshortlink/internal/domain"
)

// chunkConcurrency bounds parallel chunk queries for one batched dimension.
const chunkConcurrency = 4

// sourceRowCap bounds breakdown rows fetched from one source. Final
// truncation to the caller's limit happens after cross-source merge.
const sourceRowCap = 1000

// Compile-time interface check
var _ biz.RecentStore = (*EngineQueryAdapter)(nil)

// EngineQueryAdapter serves analytics dimensions from the ClickHouse click
// event table. Filters arrive as BatchPlans because the store accepts at most
// biz.MaxFilterIDs link ids per query; batched plans fan out one query per
// chunk and merge chunk results with the same rules as cross-backend merge.
type EngineQueryAdapter struct {
	ch  clickhouse.Conn
	log *log.Helper
}

func NewEngineQueryAdapter(d *Data, logger log.Logger) biz.RecentStore {
	return &EngineQueryAdapter{ch: d.ch, log: log.NewHelper(logger)}
}

// Configured reports whether a ClickHouse connection exists.
func (a *EngineQueryAdapter) Configured() bool { return a.ch != nil }

func (a *EngineQueryAdapter) TimeSeries(ctx context.Context, plan biz.BatchPlan, r domain.DateRange) ([]domain.TimePoint, error) {
	return queryPlanned(ctx, a, plan, func(ctx context.Context, where string, args []any) ([]domain.TimePoint, error) {
		return a.queryTimeSeries(ctx, r, where, args)
	}, biz.MergeTimeSeries)
}

func (a *EngineQueryAdapter) Geo(ctx context.Context, plan biz.BatchPlan, r domain.DateRange) ([]domain.GeoPoint, error) {
	return queryPlanned(ctx, a, plan, func(ctx context.Context, where string, args []any) ([]domain.GeoPoint, error) {
		return a.queryGeo(ctx, r, where, args)
	}, mergeChunks[domain.GeoPoint])
}

func (a *EngineQueryAdapter) Referrers(ctx context.Context, plan biz.BatchPlan, r domain.DateRange) ([]domain.ReferrerPoint, error) {
	return queryPlanned(ctx, a, plan, func(ctx context.Context, where string, args []any) ([]domain.ReferrerPoint, error) {
		return a.queryReferrers(ctx, r, where, args)
	}, mergeChunks[domain.ReferrerPoint])
}

func (a *EngineQueryAdapter) Devices(ctx context.Context, plan biz.BatchPlan, r domain.DateRange) ([]domain.DevicePoint, error) {
	return queryPlanned(ctx, a, plan, func(ctx context.Context, where string, args []any) ([]domain.DevicePoint, error) {
		return a.queryDevices(ctx, r, where, args)
	}, mergeChunks[domain.DevicePoint])
}

func (a *EngineQueryAdapter) UTM(ctx context.Context, plan biz.BatchPlan, r domain.DateRange) ([]domain.UTMPoint, error) {
	return queryPlanned(ctx, a, plan, func(ctx context.Context, where string, args []any) ([]domain.UTMPoint, error) {
		return a.queryUTM(ctx, r, where, args)
	}, mergeChunks[domain.UTMPoint])
}

func (a *EngineQueryAdapter) Params(ctx context.Context, plan biz.BatchPlan, r domain.DateRange) ([]domain.ParamPoint, error) {
	return queryPlanned(ctx, a, plan, func(ctx context.Context, where string, args []any) ([]domain.ParamPoint, error) {
		return a.queryParams(ctx, r, where, args)
	}, mergeChunks[domain.ParamPoint])
}

func (a *EngineQueryAdapter) Summary(ctx context.Context, plan biz.BatchPlan, r domain.DateRange) (*domain.Summary, error) {
	rows, err := queryPlanned(ctx, a, plan, func(ctx context.Context, where string, args []any) ([]domain.Summary, error) {
		s, err := a.querySummary(ctx, r, where, args)
		if err != nil {
			return nil, err
		}
		return []domain.Summary{*s}, nil
	}, func(x, y []domain.Summary) []domain.Summary {
		merged := biz.MergeSummary(first(x), first(y))
		if merged == nil {
			return nil
		}
		return []domain.Summary{*merged}
	})
	if err != nil {
		return nil, err
	}
	if s := first(rows); s != nil {
		return s, nil
	}
	return &domain.Summary{}, nil
}

func first(s []domain.Summary) *domain.Summary {
	if len(s) == 0 {
		return nil
	}
	return &s[0]
}

// mergeChunks merges breakdown chunk results without truncation.
func mergeChunks[P domain.Mergeable[P]](a, b []P) []P {
	return biz.MergeBreakdown(a, b, 0)
}

// queryPlanned executes one dimension query according to the batch plan. Any
// chunk failure of a batched plan fails the whole dimension: partial chunk
// loss would silently understate totals.
func queryPlanned[P any](
	ctx context.Context,
	a *EngineQueryAdapter,
	plan biz.BatchPlan,
	run func(ctx context.Context, where string, args []any) ([]P, error),
	merge func(x, y []P) []P,
) ([]P, error) {
	if a.ch == nil {
		return nil, domain.ErrRecentStoreUnconfigured
	}
	switch plan.Kind {
	case biz.PlanEmpty:
		return []P{}, nil
	case biz.PlanDirectDomains:
		return run(ctx, inClause("domain", len(plan.DomainNames)), stringArgs(plan.DomainNames))
	case biz.PlanDirectLinks:
		return run(ctx, inClause("link_id", len(plan.LinkIDs)), intArgs(plan.LinkIDs))
	case biz.PlanUnfiltered:
		return run(ctx, "", nil)
	case biz.PlanBatched:
		return runChunked(ctx, plan.Chunks, func(ctx context.Context, ids []int64) ([]P, error) {
			return run(ctx, inClause("link_id", len(ids)), intArgs(ids))
		}, merge)
	}
	return []P{}, nil
}

// runChunked fans chunk queries out with bounded concurrency and merges the
// results; merge order does not matter because the merge is commutative.
func runChunked[P any](
	ctx context.Context,
	chunks [][]int64,
	run func(ctx context.Context, ids []int64) ([]P, error),
	merge func(x, y []P) []P,
) ([]P, error) {
	results := make([][]P, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chunkConcurrency)
	for i, ids := range chunks {
		i, ids := i, ids
		g.Go(func() error {
			points, err := run(gctx, ids)
			if err != nil {
				return err
			}
			results[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := []P{}
	for _, r := range results {
		out = merge(out, r)
	}
	return out, nil
}

func inClause(column string, n int) string {
	return " AND " + column + " IN (" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func intArgs(values []int64) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func dateArgs(r domain.DateRange) (string, string) {
	return r.Start.Format(domain.DateLayout), r.End.Format(domain.DateLayout)
}

func (a *EngineQueryAdapter) queryTimeSeries(ctx context.Context, r domain.DateRange, where string, args []any) ([]domain.TimePoint, error) {
	start, end := dateArgs(r)
	rows, err := a.ch.Query(ctx,
		`SELECT toDate(ts) AS day, count() AS clicks, uniqExact(visitor_hash) AS uniques
		   FROM clicks
		  WHERE toDate(ts) BETWEEN toDate(?) AND toDate(?)`+where+`
		  GROUP BY day
		  ORDER BY day`,
		append([]any{start, end}, args...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.TimePoint{}
	for rows.Next() {
		var (
			day              time.Time
			clicks, visitors uint64
		)
		if err := rows.Scan(&day, &clicks, &visitors); err != nil {
			return nil, err
		}
		points = append(points, domain.TimePoint{
			Date:           day.Format(domain.DateLayout),
			Clicks:         int64(clicks),
			UniqueVisitors: int64(visitors),
		})
	}
	return points, rows.Err()
}

func (a *EngineQueryAdapter) queryGeo(ctx context.Context, r domain.DateRange, where string, args []any) ([]domain.GeoPoint, error) {
	start, end := dateArgs(r)
	rows, err := a.ch.Query(ctx,
		`SELECT country, city, count() AS clicks, uniqExact(visitor_hash) AS uniques
		   FROM clicks
		  WHERE toDate(ts) BETWEEN toDate(?) AND toDate(?)`+where+`
		  GROUP BY country, city
		  ORDER BY clicks DESC
		  LIMIT ?`,
		append(append([]any{start, end}, args...), sourceRowCap)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.GeoPoint{}
	for rows.Next() {
		var (
			country, city    string
			clicks, visitors uint64
		)
		if err := rows.Scan(&country, &city, &clicks, &visitors); err != nil {
			return nil, err
		}
		points = append(points, domain.GeoPoint{
			Country:        country,
			City:           city,
			Clicks:         int64(clicks),
			UniqueVisitors: int64(visitors),
		})
	}
	return points, rows.Err()
}

func (a *EngineQueryAdapter) queryReferrers(ctx context.Context, r domain.DateRange, where string, args []any) ([]domain.ReferrerPoint, error) {
	start, end := dateArgs(r)
	rows, err := a.ch.Query(ctx,
		`SELECT referrer, count() AS clicks, uniqExact(visitor_hash) AS uniques
		   FROM clicks
		  WHERE toDate(ts) BETWEEN toDate(?) AND toDate(?)`+where+`
		  GROUP BY referrer
		  ORDER BY clicks DESC
		  LIMIT ?`,
		append(append([]any{start, end}, args...), sourceRowCap)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.ReferrerPoint{}
	for rows.Next() {
		var (
			referrer         string
			clicks, visitors uint64
		)
		if err := rows.Scan(&referrer, &clicks, &visitors); err != nil {
			return nil, err
		}
		points = append(points, domain.ReferrerPoint{
			Referrer:       referrer,
			Clicks:         int64(clicks),
			UniqueVisitors: int64(visitors),
		})
	}
	return points, rows.Err()
}

func (a *EngineQueryAdapter) queryDevices(ctx context.Context, r domain.DateRange, where string, args []any) ([]domain.DevicePoint, error) {
	start, end := dateArgs(r)
	rows, err := a.ch.Query(ctx,
		`SELECT device, browser, os, count() AS clicks, uniqExact(visitor_hash) AS uniques
		   FROM clicks
		  WHERE toDate(ts) BETWEEN toDate(?) AND toDate(?)`+where+`
		  GROUP BY device, browser, os
		  ORDER BY clicks DESC
		  LIMIT ?`,
		append(append([]any{start, end}, args...), sourceRowCap)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.DevicePoint{}
	for rows.Next() {
		var (
			device, browser, osName string
			clicks, visitors        uint64
		)
		if err := rows.Scan(&device, &browser, &osName, &clicks, &visitors); err != nil {
			return nil, err
		}
		points = append(points, domain.DevicePoint{
			Device:         device,
			Browser:        browser,
			OS:             osName,
			Clicks:         int64(clicks),
			UniqueVisitors: int64(visitors),
		})
	}
	return points, rows.Err()
}

func (a *EngineQueryAdapter) queryUTM(ctx context.Context, r domain.DateRange, where string, args []any) ([]domain.UTMPoint, error) {
	start, end := dateArgs(r)
	rows, err := a.ch.Query(ctx,
		`SELECT utm_source, utm_medium, utm_campaign, count() AS clicks, uniqExact(visitor_hash) AS uniques
		   FROM clicks
		  WHERE toDate(ts) BETWEEN toDate(?) AND toDate(?)`+where+`
		    AND utm_source != ''
		  GROUP BY utm_source, utm_medium, utm_campaign
		  ORDER BY clicks DESC
		  LIMIT ?`,
		append(append([]any{start, end}, args...), sourceRowCap)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.UTMPoint{}
	for rows.Next() {
		var (
			source, medium, campaign string
			clicks, visitors         uint64
		)
		if err := rows.Scan(&source, &medium, &campaign, &clicks, &visitors); err != nil {
			return nil, err
		}
		points = append(points, domain.UTMPoint{
			Source:         source,
			Medium:         medium,
			Campaign:       campaign,
			Clicks:         int64(clicks),
			UniqueVisitors: int64(visitors),
		})
	}
	return points, rows.Err()
}

func (a *EngineQueryAdapter) queryParams(ctx context.Context, r domain.DateRange, where string, args []any) ([]domain.ParamPoint, error) {
	start, end := dateArgs(r)
	rows, err := a.ch.Query(ctx,
		`SELECT param_name, param_value, count() AS clicks, uniqExact(visitor_hash) AS uniques
		   FROM clicks
		  ARRAY JOIN param_names AS param_name, param_values AS param_value
		  WHERE toDate(ts) BETWEEN toDate(?) AND toDate(?)`+where+`
		  GROUP BY param_name, param_value
		  ORDER BY clicks DESC
		  LIMIT ?`,
		append(append([]any{start, end}, args...), sourceRowCap)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []domain.ParamPoint{}
	for rows.Next() {
		var (
			name, value      string
			clicks, visitors uint64
		)
		if err := rows.Scan(&name, &value, &clicks, &visitors); err != nil {
			return nil, err
		}
		points = append(points, domain.ParamPoint{
			Name:           name,
			Value:          value,
			Clicks:         int64(clicks),
			UniqueVisitors: int64(visitors),
		})
	}
	return points, rows.Err()
}

func (a *EngineQueryAdapter) querySummary(ctx context.Context, r domain.DateRange, where string, args []any) (*domain.Summary, error) {
	start, end := dateArgs(r)
	var clicks, visitors uint64
	err := a.ch.QueryRow(ctx,
		`SELECT count(), uniqExact(visitor_hash)
		   FROM clicks
		  WHERE toDate(ts) BETWEEN toDate(?) AND toDate(?)`+where,
		append([]any{start, end}, args...)...).Scan(&clicks, &visitors)
	if err != nil {
		return nil, err
	}
	return &domain.Summary{TotalClicks: int64(clicks), TotalUniqueVisitors: int64(visitors)}, nil
}
