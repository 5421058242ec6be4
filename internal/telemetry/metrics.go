// Package telemetry provides application-level observability for shopdesk.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are served on the
// side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<SHOPDESK_TELEMETRY_METRICS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Approval workflow submissions and decisions
//   - Status cascade fan-out per entity kind
//   - Transaction conflicts (serialization failures and deadlocks)
//   - Database connection pool gauge (polled every 30 s)
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/shops/:shopID/approvals/:id)
// rather than the raw request URL so shop and record IDs do not explode label cardinality.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Error rate (%):        sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Approval workflow metrics.
//
// ApprovalRequestsSubmittedTotal counts PENDING requests created, by table.
// ApprovalDecisionsTotal counts decisions by outcome: approved (applied), rejected, apply_failed.
// A growing apply_failed share means records change under pending requests faster than owners decide.
//
// Example PromQL queries:
//   - Pending inflow by table: sum by (table) (rate(approval_requests_submitted_total[1h]))
//   - Apply failure ratio:     rate(approval_decisions_total{outcome="apply_failed"}[1d]) / rate(approval_decisions_total[1d])
var (
	ApprovalRequestsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_requests_submitted_total",
			Help: "Total number of approval requests submitted, by table.",
		},
		[]string{"table"},
	)

	ApprovalDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_decisions_total",
			Help: "Total number of approval decisions, by outcome (approved, rejected, apply_failed).",
		},
		[]string{"outcome"},
	)
)

// StatusCascadeEntitiesTotal counts entities whose status a cascade changed, by entity
// (principal, shop, assignment).
var StatusCascadeEntitiesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "status_cascade_entities_total",
		Help: "Total number of entities whose status was changed by a status cascade, by entity kind.",
	},
	[]string{"entity"},
)

// TransactionConflictsTotal counts transactions lost to a concurrent writer. Each conflict is
// retried once, so the rate roughly equals the extra transaction load caused by contention.
var TransactionConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "transaction_conflicts_total",
		Help: "Total number of transactions aborted by serialization failures or deadlocks.",
	},
)

// DBOpenConnections tracks the number of open connections held by the pool. It is sampled
// every 30 seconds by StartDBStatsCollector rather than per request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every 30 seconds until ctx is done or the
// database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sqlx.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
