package data

import (
	"context"
	"errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"openshortlink/internal/biz"
	"openshortlink/internal/domain"
)

// Compile-time interface check
var _ biz.RetentionPolicies = (*settingsRepo)(nil)

// settingsRepo reads the retention policy from settings storage.
type settingsRepo struct {
	pg  *pgxpool.Pool
	log *log.Helper
}

func NewSettingsRepo(d *Data, logger log.Logger) biz.RetentionPolicies {
	return &settingsRepo{pg: d.pg, log: log.NewHelper(logger)}
}

// Current returns the stored policy, or the defaults when none is stored.
func (s *settingsRepo) Current(ctx context.Context) (domain.RetentionPolicy, error) {
	var p domain.RetentionPolicy
	err := s.pg.QueryRow(ctx,
		"SELECT threshold_days, aggregation_enabled FROM analytics_settings ORDER BY id LIMIT 1",
	).Scan(&p.ThresholdDays, &p.AggregationEnabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultRetentionPolicy(), nil
	}
	if err != nil {
		return domain.RetentionPolicy{}, err
	}
	if p.ThresholdDays <= 0 {
		p.ThresholdDays = domain.DefaultRetentionDays
	}
	return p, nil
}
