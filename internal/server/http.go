package server

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"

	"openshortlink/internal/conf"
	"openshortlink/internal/service"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, analytics *service.AnalyticsService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.HTTP != nil {
		if c.HTTP.Network != "" {
			opts = append(opts, http.Network(c.HTTP.Network))
		}
		if c.HTTP.Addr != "" {
			opts = append(opts, http.Address(c.HTTP.Addr))
		}
		if t := c.HTTP.Timeout.AsDuration(); t > 0 {
			opts = append(opts, http.Timeout(t))
		}
	}
	srv := http.NewServer(opts...)

	srv.HandleFunc("/api/v1/analytics", analytics.HandleQuery)
	srv.HandleFunc("/api/v1/analytics/export", analytics.HandleExport)
	srv.HandleFunc("/healthz", analytics.HandleHealth)

	return srv
}
