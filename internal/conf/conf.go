// Package conf holds the bootstrap configuration scanned from configs/ by the
// kratos config loader.
package conf

import "time"

// Bootstrap is the root configuration document.
type Bootstrap struct {
	Server    *Server    `json:"server"`
	Data      *Data      `json:"data"`
	Analytics *Analytics `json:"analytics"`
}

// Server configures the HTTP transport.
type Server struct {
	HTTP *HTTPServer `json:"http"`
}

// HTTPServer mirrors the kratos HTTP server options.
type HTTPServer struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// Data configures the backend connections. ClickHouse and Redis are optional:
// an empty address leaves the recent store unconfigured and the cache a noop.
type Data struct {
	Database   *Database   `json:"database"`
	Clickhouse *Clickhouse `json:"clickhouse"`
	Redis      *Redis      `json:"redis"`
}

// Database is the PostgreSQL aggregate store and link catalog.
type Database struct {
	Source string `json:"source"`
}

// Clickhouse is the recent click event store.
type Clickhouse struct {
	Addr     string `json:"addr"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Redis is the response cache.
type Redis struct {
	Addr     string   `json:"addr"`
	Password string   `json:"password"`
	DB       int32    `json:"db"`
	Timeout  Duration `json:"timeout"`
}

// Analytics tunes the query router.
type Analytics struct {
	QueryTimeout   Duration `json:"query_timeout"`
	BreakdownLimit int32    `json:"breakdown_limit"`
}

// Duration is a time.ParseDuration-formatted config value ("10s", "1m30s").
type Duration string

// AsDuration parses the value, returning zero for empty or malformed input so
// callers fall back to their defaults.
func (d Duration) AsDuration() time.Duration {
	if d == "" {
		return 0
	}
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return v
}
