package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

// PoolStats is a snapshot of the connection pool.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats reads pool counters. The pool counts as healthy while it
// holds at least one connection.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	s := pool.Stat()
	return &PoolStats{
		TotalConns:      s.TotalConns(),
		IdleConns:       s.IdleConns(),
		AcquiredConns:   s.AcquiredConns(),
		MaxConns:        s.MaxConns(),
		AcquireCount:    s.AcquireCount(),
		AcquireDuration: s.AcquireDuration().String(),
		Healthy:         s.TotalConns() > 0,
	}
}

// Pinger is the part of a pool the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Gauges are named point-in-time counts reported next to the pool, such as
// open live streams per stream kind.
type Gauges map[string]func() int

// HealthReport is the /health/db response body.
type HealthReport struct {
	Status  string         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Pool    *PoolStats     `json:"pool"`
	Streams map[string]int `json:"streams,omitempty"`
}

// HealthHandler pings the database and reports pool stats and gauges.
func HealthHandler(pool *pgxpool.Pool, gauges Gauges) echo.HandlerFunc {
	return healthHandler(pool, func() *PoolStats { return GetPoolStats(pool) }, gauges)
}

func healthHandler(p Pinger, stats func() *PoolStats, gauges Gauges) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		report := HealthReport{Status: "healthy", Pool: stats()}
		if len(gauges) > 0 {
			report.Streams = make(map[string]int, len(gauges))
			for name, read := range gauges {
				report.Streams[name] = read()
			}
		}

		if err := p.Ping(ctx); err != nil {
			report.Status = "unhealthy"
			report.Error = err.Error()
			report.Pool.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
