package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopify_app"

// Collectors records reconcile, billing, webhook and job activity
type Collectors struct {
	reconcileOps      *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	verifications     *prometheus.CounterVec
	webhooks          *prometheus.CounterVec
	jobs              *prometheus.CounterVec
	shopEvents        *prometheus.CounterVec
}

// NewCollectors registers the collectors on reg; a nil registerer yields a no-op recorder
func NewCollectors(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		return &Collectors{}
	}

	c := &Collectors{
		reconcileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_operations_total",
			Help:      "Remote resources created, deleted or failed by reconciliation.",
		}, []string{"resource", "operation"}),
		reconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of one reconciliation run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charge_verifications_total",
			Help:      "Charge verification outcomes.",
		}, []string{"outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by topic and response status.",
		}, []string{"topic", "status"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Background jobs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		shopEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shop_events_total",
			Help:      "Shop events published on the in-process bus.",
		}, []string{"type"}),
	}
	reg.MustRegister(c.reconcileOps, c.reconcileDuration, c.verifications, c.webhooks, c.jobs, c.shopEvents)
	return c
}

func (c *Collectors) ObserveReconcile(resource string, created, deleted, failed int, duration time.Duration) {
	if c == nil || c.reconcileOps == nil {
		return
	}
	resource = normalizeLabel(resource)
	c.reconcileOps.WithLabelValues(resource, "created").Add(float64(created))
	c.reconcileOps.WithLabelValues(resource, "deleted").Add(float64(deleted))
	c.reconcileOps.WithLabelValues(resource, "failed").Add(float64(failed))
	c.reconcileDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

func (c *Collectors) ObserveChargeVerification(outcome string) {
	if c == nil || c.verifications == nil {
		return
	}
	c.verifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (c *Collectors) ObserveWebhook(topic string, status int) {
	if c == nil || c.webhooks == nil {
		return
	}
	c.webhooks.WithLabelValues(normalizeLabel(topic), strconv.Itoa(status)).Inc()
}

func (c *Collectors) ObserveJob(kind string, outcome string) {
	if c == nil || c.jobs == nil {
		return
	}
	c.jobs.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (c *Collectors) ObserveShopEvent(eventType string) {
	if c == nil || c.shopEvents == nil {
		return
	}
	c.shopEvents.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
