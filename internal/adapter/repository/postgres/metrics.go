package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// QueryNameLabel is the label for DB metrics, representing the query name (e.g., "Save", "RetrieveAll").
	QueryNameLabel = "query_name"
	// StatusLabel is the label for DB metrics, representing the outcome of a query.
	StatusLabel = "status"

	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCollision = "collision"
	StatusNotFound  = "not_found"
)

// Metrics holds the Prometheus collectors updated by URLRepository.
// A nil *Metrics records nothing.
type Metrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryTotal    *prometheus.CounterVec
}

// NewMetrics creates the query collectors and a pool statistics collector for db
// and registers them with reg.
func NewMetrics(reg prometheus.Registerer, db StatsProvider) (*Metrics, error) {
	const op = "adapter.repository.postgres.NewMetrics"

	m := &Metrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "The latency of database queries in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{QueryNameLabel}),
		QueryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "db_query_total",
			Help: "The total number of database queries.",
		}, []string{QueryNameLabel, StatusLabel}),
	}

	collectors := []prometheus.Collector{
		m.QueryDuration,
		m.QueryTotal,
		NewPoolStatsCollector(db),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("%s: failed to register collector: %w", op, err)
		}
	}

	return m, nil
}

func (m *Metrics) observe(query, status string, start time.Time) {
	if m == nil {
		return
	}

	m.QueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	m.QueryTotal.WithLabelValues(query, status).Inc()
}

// StatsProvider is implemented by *sql.DB and *sqlx.DB.
type StatsProvider interface {
	Stats() sql.DBStats
}

// PoolStatsCollector exports sql.DBStats of a connection pool.
type PoolStatsCollector struct {
	db StatsProvider

	MaxOpenConns *prometheus.Desc
	OpenConns    *prometheus.Desc
	InUseConns   *prometheus.Desc
	IdleConns    *prometheus.Desc
	WaitCount    *prometheus.Desc
	WaitDuration *prometheus.Desc
}

func NewPoolStatsCollector(db StatsProvider) *PoolStatsCollector {
	return &PoolStatsCollector{
		db: db,
		MaxOpenConns: prometheus.NewDesc(
			"db_pool_max_open_conns",
			"Maximum number of open connections to the database.",
			nil, nil,
		),
		OpenConns: prometheus.NewDesc(
			"db_pool_open_conns",
			"Number of established connections, both in use and idle.",
			nil, nil,
		),
		InUseConns: prometheus.NewDesc(
			"db_pool_in_use_conns",
			"Number of connections currently in use.",
			nil, nil,
		),
		IdleConns: prometheus.NewDesc(
			"db_pool_idle_conns",
			"Number of idle connections.",
			nil, nil,
		),
		WaitCount: prometheus.NewDesc(
			"db_pool_wait_count_total",
			"Total number of connections waited for.",
			nil, nil,
		),
		WaitDuration: prometheus.NewDesc(
			"db_pool_wait_duration_seconds_total",
			"Total time blocked waiting for a new connection, in seconds.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.MaxOpenConns
	ch <- c.OpenConns
	ch <- c.InUseConns
	ch <- c.IdleConns
	ch <- c.WaitCount
	ch <- c.WaitDuration
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.db.Stats()
	ch <- prometheus.MustNewConstMetric(c.MaxOpenConns, prometheus.GaugeValue, float64(stats.MaxOpenConnections))
	ch <- prometheus.MustNewConstMetric(c.OpenConns, prometheus.GaugeValue, float64(stats.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.InUseConns, prometheus.GaugeValue, float64(stats.InUse))
	ch <- prometheus.MustNewConstMetric(c.IdleConns, prometheus.GaugeValue, float64(stats.Idle))
	ch <- prometheus.MustNewConstMetric(c.WaitCount, prometheus.CounterValue, float64(stats.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.WaitDuration, prometheus.CounterValue, stats.WaitDuration.Seconds())
}
