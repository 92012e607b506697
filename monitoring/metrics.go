package monitoring

import (
	"context"
	"log/slog"
	"time"

	"ticket-portal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	salesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sales_total",
			Help: "Current number of sales per status",
		},
		[]string{"status"},
	)

	webhookQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webhook_queue_depth",
			Help: "Pending webhook dispatch jobs in the redis queue",
		},
	)

	saleDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sale_decisions_total",
			Help: "Approve and reject attempts by outcome",
		},
		[]string{"action", "result"},
	)

	inventoryConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_conflicts_total",
			Help: "Approvals aborted because a tier was short",
		},
		[]string{"tier_id"},
	)

	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sale_submissions_total",
			Help: "Sale submissions by source and outcome",
		},
		[]string{"source", "result"},
	)

	webhookAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_attempts_total",
			Help: "Individual webhook POST attempts by outcome",
		},
		[]string{"outcome"},
	)

	webhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_duration_seconds",
			Help:    "Duration of a full webhook delivery sequence including retries",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"status"},
	)
)

func TrackDecision(action, result string) {
	saleDecisions.WithLabelValues(action, result).Inc()
}

func TrackInventoryConflict(tierID string) {
	inventoryConflicts.WithLabelValues(tierID).Inc()
}

func TrackSubmission(source, result string) {
	submissions.WithLabelValues(source, result).Inc()
}

func TrackWebhookAttempt(outcome string) {
	webhookAttempts.WithLabelValues(outcome).Inc()
}

func TrackWebhookDelivery(status models.DeliveryStatus, duration time.Duration) {
	webhookDeliveryDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// SaleCounter reports current sale totals per status.
type SaleCounter interface {
	CountByStatus(ctx context.Context) (map[models.SaleStatus]int, error)
}

// Monitor refreshes the gauges on a fixed interval.
type Monitor struct {
	sales    SaleCounter
	redis    *redis.Client
	queueKey string
	interval time.Duration
}

// NewMonitor builds a monitor. redisClient may be nil when the webhook queue
// runs in memory.
func NewMonitor(sales SaleCounter, redisClient *redis.Client, queueKey string) *Monitor {
	return &Monitor{
		sales:    sales,
		redis:    redisClient,
		queueKey: queueKey,
		interval: 30 * time.Second,
	}
}

func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Collect(ctx)
		}
	}
}

func (m *Monitor) Collect(ctx context.Context) {
	m.collectSaleMetrics(ctx)
	m.collectQueueMetrics(ctx)
}

func (m *Monitor) collectSaleMetrics(ctx context.Context) {
	counts, err := m.sales.CountByStatus(ctx)
	if err != nil {
		slog.Error("m.sales.CountByStatus()", "error", err)
		return
	}
	for status, total := range counts {
		salesByStatus.WithLabelValues(string(status)).Set(float64(total))
	}
}

func (m *Monitor) collectQueueMetrics(ctx context.Context) {
	if m.redis == nil || m.queueKey == "" {
		return
	}
	length, err := m.redis.LLen(ctx, m.queueKey).Result()
	if err != nil {
		slog.Error("m.redis.LLen()", "key", m.queueKey, "error", err)
		return
	}
	webhookQueueDepth.Set(float64(length))
}
