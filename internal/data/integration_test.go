package data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"openshortlink/internal/biz"
	"openshortlink/internal/domain"
)

// IntegrationTestSuite exercises the PostgreSQL-backed repositories and the
// Redis response cache against real containers.
type IntegrationTestSuite struct {
	suite.Suite
	ctx            context.Context
	pgContainer    *postgres.PostgresContainer
	redisContainer *tcredis.RedisContainer
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	data           *Data

	catalog   biz.LinkCatalog
	settings  biz.RetentionPolicies
	aggregate biz.AggregateStore
	cache     biz.ResponseCache
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	pgContainer, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(s.T(), err)
	s.pgContainer = pgContainer

	redisContainer, err := tcredis.Run(s.ctx,
		"redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(s.T(), err)
	s.redisContainer = redisContainer

	pgConnStr, err := pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	redisEndpoint, err := redisContainer.Endpoint(s.ctx, "")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(s.ctx, pgConnStr)
	require.NoError(s.T(), err)

	for _, file := range []string{"../../db/migrations/001_init.sql", "../../db/migrations/002_rollups.sql"} {
		sql, err := os.ReadFile(file)
		require.NoError(s.T(), err)
		_, err = s.pool.Exec(s.ctx, string(sql))
		require.NoError(s.T(), err)
	}

	s.redisClient = redis.NewClient(&redis.Options{Addr: redisEndpoint})

	s.data = &Data{pg: s.pool, rdb: s.redisClient, log: log.NewHelper(log.DefaultLogger)}
	s.catalog = NewLinkCatalog(s.data, log.DefaultLogger)
	s.settings = NewSettingsRepo(s.data, log.DefaultLogger)
	s.aggregate = NewAggregateQueryAdapter(s.data, log.DefaultLogger)
	s.cache = NewResponseCache(s.data, log.DefaultLogger)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.pgContainer != nil {
		s.pgContainer.Terminate(s.ctx)
	}
	if s.redisContainer != nil {
		s.redisContainer.Terminate(s.ctx)
	}
}

func (s *IntegrationTestSuite) TearDownTest() {
	_, err := s.pool.Exec(s.ctx, `
		TRUNCATE daily_clicks, daily_geo, daily_referrers, daily_devices, daily_utm, daily_params,
		         link_tags, link_categories, links, domains, analytics_settings
		RESTART IDENTITY CASCADE`)
	require.NoError(s.T(), err)
	s.redisClient.FlushAll(s.ctx)
}

func TestIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

// seedLinks creates two domains with two links each; links 1 and 3 carry tag 1,
// link 2 carries category 1, link 4 is archived.
func (s *IntegrationTestSuite) seedLinks() {
	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO domains (id, name) VALUES (1, 'sho.rt'), (2, 'exa.mpl');
		INSERT INTO links (id, domain_id, short_code, status) VALUES
			(1, 1, 'a', 'active'),
			(2, 1, 'b', 'active'),
			(3, 2, 'c', 'active'),
			(4, 2, 'd', 'archived');
		INSERT INTO link_tags (link_id, tag_id) VALUES (1, 1), (3, 1), (4, 1);
		INSERT INTO link_categories (link_id, category_id) VALUES (2, 1);`)
	require.NoError(s.T(), err)
}

func (s *IntegrationTestSuite) TestResolveLinkIDs_ByTag() {
	s.seedLinks()

	ids, err := s.catalog.ResolveLinkIDs(s.ctx, nil, []int64{1}, nil, "active")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []int64{1, 3}, ids, "archived link 4 must be excluded")
}

func (s *IntegrationTestSuite) TestResolveLinkIDs_DomainAndCategory() {
	s.seedLinks()

	ids, err := s.catalog.ResolveLinkIDs(s.ctx, []int64{1}, nil, []int64{1}, "active")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []int64{2}, ids)
}

func (s *IntegrationTestSuite) TestResolveLinkIDs_NoMatch() {
	s.seedLinks()

	ids, err := s.catalog.ResolveLinkIDs(s.ctx, nil, []int64{99}, nil, "active")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), ids)
}

func (s *IntegrationTestSuite) TestDomainIDsByName() {
	s.seedLinks()

	ids, err := s.catalog.DomainIDsByName(s.ctx, []string{"sho.rt", "unknown.example"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []int64{1}, ids)
}

func (s *IntegrationTestSuite) TestRetentionPolicy_DefaultWhenUnset() {
	policy, err := s.settings.Current(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), domain.DefaultRetentionPolicy(), policy)
}

func (s *IntegrationTestSuite) TestRetentionPolicy_Stored() {
	_, err := s.pool.Exec(s.ctx,
		"INSERT INTO analytics_settings (threshold_days, aggregation_enabled) VALUES (30, false)")
	require.NoError(s.T(), err)

	policy, err := s.settings.Current(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 30, policy.ThresholdDays)
	assert.False(s.T(), policy.AggregationEnabled)
}

func (s *IntegrationTestSuite) seedRollups() {
	s.seedLinks()
	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO daily_clicks (link_id, day, clicks, unique_visitors) VALUES
			(1, '2024-06-01', 10, 4),
			(1, '2024-06-02', 5, 2),
			(2, '2024-06-01', 3, 1),
			(3, '2024-06-01', 7, 7);
		INSERT INTO daily_geo (link_id, day, country, city, clicks, unique_visitors) VALUES
			(1, '2024-06-01', 'US', 'NYC', 6, 3),
			(1, '2024-06-02', 'US', 'NYC', 5, 2),
			(2, '2024-06-01', 'DE', 'Berlin', 3, 1);`)
	require.NoError(s.T(), err)
}

func (s *IntegrationTestSuite) TestAggregateTimeSeries() {
	s.seedRollups()
	r, err := domain.ParseDateRange("2024-06-01", "2024-06-30")
	require.NoError(s.T(), err)

	points, err := s.aggregate.TimeSeries(s.ctx, biz.AggregateFilter{}, r)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), []domain.TimePoint{
		{Date: "2024-06-01", Clicks: 20, UniqueVisitors: 12},
		{Date: "2024-06-02", Clicks: 5, UniqueVisitors: 2},
	}, points)
}

func (s *IntegrationTestSuite) TestAggregateTimeSeries_TagFilter() {
	s.seedRollups()
	r, err := domain.ParseDateRange("2024-06-01", "2024-06-30")
	require.NoError(s.T(), err)

	// Tag 1 selects links 1, 3 and the archived link 4 (which has no rollups).
	points, err := s.aggregate.TimeSeries(s.ctx, biz.AggregateFilter{TagIDs: []int64{1}}, r)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), []domain.TimePoint{
		{Date: "2024-06-01", Clicks: 17, UniqueVisitors: 11},
		{Date: "2024-06-02", Clicks: 5, UniqueVisitors: 2},
	}, points)
}

func (s *IntegrationTestSuite) TestAggregateGeo_GroupsAcrossDays() {
	s.seedRollups()
	r, err := domain.ParseDateRange("2024-06-01", "2024-06-30")
	require.NoError(s.T(), err)

	points, err := s.aggregate.Geo(s.ctx, biz.AggregateFilter{}, r)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), []domain.GeoPoint{
		{Country: "US", City: "NYC", Clicks: 11, UniqueVisitors: 5},
		{Country: "DE", City: "Berlin", Clicks: 3, UniqueVisitors: 1},
	}, points)
}

func (s *IntegrationTestSuite) TestAggregateSummary() {
	s.seedRollups()
	r, err := domain.ParseDateRange("2024-06-01", "2024-06-30")
	require.NoError(s.T(), err)

	summary, err := s.aggregate.Summary(s.ctx, biz.AggregateFilter{DomainIDs: []int64{1}}, r)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(18), summary.TotalClicks)
}

func (s *IntegrationTestSuite) TestAggregateTimeSeries_OutsideRange() {
	s.seedRollups()
	r, err := domain.ParseDateRange("2023-01-01", "2023-12-31")
	require.NoError(s.T(), err)

	points, err := s.aggregate.TimeSeries(s.ctx, biz.AggregateFilter{}, r)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), points)
}

func (s *IntegrationTestSuite) TestResponseCache_RoundTrip() {
	s.cache.Set(s.ctx, "analytics:v1:test", []byte(`{"ok":true}`), time.Minute)

	payload, ok := s.cache.Get(s.ctx, "analytics:v1:test")
	require.True(s.T(), ok)
	assert.JSONEq(s.T(), `{"ok":true}`, string(payload))

	ttl := s.redisClient.TTL(s.ctx, "analytics:v1:test").Val()
	assert.Greater(s.T(), ttl, 50*time.Second)
}

func (s *IntegrationTestSuite) TestResponseCache_Miss() {
	_, ok := s.cache.Get(s.ctx, "analytics:v1:absent")
	assert.False(s.T(), ok)
}
