package service

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"

	"openshortlink/internal/biz"
	"openshortlink/internal/domain"
	"openshortlink/pkg/problemdetails"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewAnalyticsService)

// AnalyticsQuerier answers routed analytics queries.
type AnalyticsQuerier interface {
	Query(ctx context.Context, q biz.Query) (*domain.QueryResult, error)
}

// HealthChecker reports per-backend connectivity.
type HealthChecker interface {
	Check(ctx context.Context) map[string]string
}

// AnalyticsService exposes the analytics router over HTTP.
type AnalyticsService struct {
	uc     AnalyticsQuerier
	health HealthChecker
	log    *log.Helper
}

func NewAnalyticsService(uc AnalyticsQuerier, health HealthChecker, logger log.Logger) *AnalyticsService {
	return &AnalyticsService{uc: uc, health: health, log: log.NewHelper(logger)}
}

type queryResponse struct {
	Success bool          `json:"success"`
	Data    domain.Report `json:"data"`
	Meta    metaPayload   `json:"meta"`
}

type metaPayload struct {
	DataSource         domain.DataSource `json:"data_source"`
	AggregationEnabled bool              `json:"aggregation_enabled"`
	DateRanges         dateRanges        `json:"date_ranges"`
	Warnings           []string          `json:"warnings,omitempty"`
}

type dateRanges struct {
	Recent *domain.DateRange `json:"recent,omitempty"`
	Old    *domain.DateRange `json:"old,omitempty"`
}

// HandleQuery serves GET /api/v1/analytics.
func (s *AnalyticsService) HandleQuery(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeProblem(w, problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidationError, "Invalid Query", err.Error()))
		return
	}

	result, err := s.uc.Query(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Success: true,
		Data:    result.Report,
		Meta: metaPayload{
			DataSource:         result.Meta.DataSource,
			AggregationEnabled: result.Meta.AggregationEnabled,
			DateRanges:         dateRanges{Recent: result.Meta.RecentRange, Old: result.Meta.OldRange},
			Warnings:           result.Meta.Warnings,
		},
	})
}

// HandleExport serves GET /api/v1/analytics/export: the time series as CSV.
func (s *AnalyticsService) HandleExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeProblem(w, problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidationError, "Invalid Query", err.Error()))
		return
	}
	q.Dimensions = []domain.Dimension{domain.DimensionTimeSeries}

	result, err := s.uc.Query(r.Context(), q)
	if err != nil {
		s.writeQueryError(w, r, err)
		return
	}

	filename := "clicks_" + q.Range.Start.Format(domain.DateLayout) + "_" + q.Range.End.Format(domain.DateLayout) + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"date", "clicks", "unique_visitors"})
	for _, p := range result.Report.TimeSeries {
		_ = cw.Write([]string{p.Date, strconv.FormatInt(p.Clicks, 10), strconv.FormatInt(p.UniqueVisitors, 10)})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.log.WithContext(r.Context()).Errorf("writing csv export: %v", err)
	}
}

// HandleHealth serves GET /healthz.
func (s *AnalyticsService) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.health.Check(r.Context())
	code := http.StatusOK
	if status["postgres"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status})
}

func (s *AnalyticsService) writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrAggregationDisabled),
		errors.Is(err, domain.ErrRecentStoreUnconfigured),
		errors.Is(err, domain.ErrNoDataSource):
		writeProblem(w, problemdetails.New(http.StatusBadRequest, problemdetails.TypeConfigurationError, "Data Source Unavailable", err.Error()))
	case errors.Is(err, domain.ErrInvalidDateRange), errors.Is(err, domain.ErrUnknownDimension):
		writeProblem(w, problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidationError, "Invalid Query", err.Error()))
	default:
		s.log.WithContext(r.Context()).Errorf("analytics query failed: %v", err)
		writeProblem(w, problemdetails.New(http.StatusInternalServerError, problemdetails.TypeInternalError, "Internal Server Error", "Failed to compute analytics"))
	}
}

func parseQuery(r *http.Request) (biz.Query, error) {
	values := r.URL.Query()

	dateRange, err := domain.ParseDateRange(values.Get("start"), values.Get("end"))
	if err != nil {
		return biz.Query{}, err
	}

	filter := domain.LogicalFilter{DomainNames: splitList(values.Get("domains"))}
	if filter.DomainIDs, err = parseIDList(values.Get("domain_ids")); err != nil {
		return biz.Query{}, err
	}
	if filter.TagIDs, err = parseIDList(values.Get("tag_ids")); err != nil {
		return biz.Query{}, err
	}
	if filter.CategoryIDs, err = parseIDList(values.Get("category_ids")); err != nil {
		return biz.Query{}, err
	}
	if filter.LinkIDs, err = parseIDList(values.Get("link_ids")); err != nil {
		return biz.Query{}, err
	}

	var dimensions []domain.Dimension
	for _, name := range splitList(values.Get("dimensions")) {
		d, err := domain.ParseDimension(name)
		if err != nil {
			return biz.Query{}, err
		}
		dimensions = append(dimensions, d)
	}

	limit := 0
	if raw := values.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return biz.Query{}, errors.New("limit must be a non-negative integer")
		}
	}

	return biz.Query{
		Range:      dateRange,
		Filter:     filter,
		Dimensions: dimensions,
		Limit:      limit,
		SkipCache:  values.Get("cache") == "false",
	}, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseIDList(raw string) ([]int64, error) {
	parts := splitList(raw)
	if parts == nil {
		return nil, nil
	}
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, errors.New("ids must be comma-separated integers")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
