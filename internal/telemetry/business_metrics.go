package telemetry

import (
	"time"

	"github.com/dukerupert/cartwright/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for pricing and checkout observability.
type BusinessMetrics struct {
	// Cart
	CartResolves        *prometheus.CounterVec
	CartResolveDuration prometheus.Histogram
	CartValue           *prometheus.HistogramVec
	ProductAddToCart    *prometheus.CounterVec

	// Promotions
	BundleChunks        *prometheus.CounterVec
	BundleSavings       *prometheus.CounterVec
	DiscountValidations *prometheus.CounterVec
	DiscountRedemptions *prometheus.CounterVec

	// Stock
	StockReductions        *prometheus.CounterVec
	StockAdmissionFailures prometheus.Counter

	// Orders
	OrdersCreated    *prometheus.CounterVec
	OrdersByStatus   *prometheus.CounterVec
	OrderValue       *prometheus.HistogramVec
	ProductPurchased *prometheus.CounterVec
	PaymentFailed    prometheus.Counter

	// Background jobs
	CartsPurged   prometheus.Counter
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
}

// NewBusinessMetrics creates all business metrics and registers them with reg.
// A nil reg uses the default registerer.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "cartwright"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	subsystem := "business"

	// Money values are observed in minor units.
	moneyBuckets := []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000}

	return &BusinessMetrics{
		// =======================================================================
		// Cart
		// =======================================================================
		CartResolves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_resolves_total",
				Help:      "Total cart resolve passes",
			},
			[]string{"currency"},
		),
		CartResolveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_resolve_duration_seconds",
				Help:      "Time spent in one resolve pass including rule lookup",
				Buckets:   prometheus.DefBuckets,
			},
		),
		CartValue: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cart_value_minor_units",
				Help:      "Resolved cart totals",
				Buckets:   moneyBuckets,
			},
			[]string{"currency"},
		),
		ProductAddToCart: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "product_add_to_cart_total",
				Help:      "Total units added to carts",
			},
			[]string{"product_id"},
		),

		// =======================================================================
		// Promotions
		// =======================================================================
		BundleChunks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "bundle_chunks_total",
				Help:      "Bundle chunks committed during resolve",
			},
			[]string{"currency"},
		),
		BundleSavings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "bundle_savings_minor_units_total",
				Help:      "Amount saved by committed bundle chunks",
			},
			[]string{"currency"},
		),
		DiscountValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "discount_validations_total",
				Help:      "Discount code validations by outcome",
			},
			[]string{"result"}, // valid, not_found, expired, ...
		),
		DiscountRedemptions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "discount_redemptions_total",
				Help:      "Discount codes redeemed on completed orders",
			},
			[]string{"code"},
		),

		// =======================================================================
		// Stock
		// =======================================================================
		StockReductions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stock_reductions_total",
				Help:      "Stock reduce attempts by result",
			},
			[]string{"result"}, // reserved, insufficient
		),
		StockAdmissionFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "stock_admission_failures_total",
				Help:      "Checkouts rejected because items were no longer available",
			},
		),

		// =======================================================================
		// Orders
		// =======================================================================
		OrdersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_created_total",
				Help:      "Orders written by checkout setup",
			},
			[]string{"currency"},
		),
		OrdersByStatus: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "orders_status_total",
				Help:      "Order status changes by new status",
			},
			[]string{"status"},
		),
		OrderValue: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value_minor_units",
				Help:      "Completed order totals",
				Buckets:   moneyBuckets,
			},
			[]string{"currency"},
		),
		ProductPurchased: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "product_purchased_total",
				Help:      "Units sold on completed orders",
			},
			[]string{"sku"},
		),
		PaymentFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_failed_total",
				Help:      "Orders aborted after a failed payment",
			},
		),

		// =======================================================================
		// Background jobs
		// =======================================================================
		CartsPurged: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "carts_purged_total",
				Help:      "Expired carts deleted by the sweeper",
			},
		),
		JobsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_processed_total",
				Help:      "Background jobs completed",
			},
			[]string{"job_type"},
		),
		JobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_failed_total",
				Help:      "Background jobs that returned an error",
			},
			[]string{"job_type"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Background job run time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job_type"},
		),
	}
}

// RecordResolve observes one resolve pass. Safe on a nil receiver.
func (m *BusinessMetrics) RecordResolve(resolved *domain.ResolvedCart, elapsed time.Duration) {
	if m == nil || resolved == nil {
		return
	}
	m.CartResolves.WithLabelValues(resolved.Currency).Inc()
	m.CartResolveDuration.Observe(elapsed.Seconds())
	m.CartValue.WithLabelValues(resolved.Currency).Observe(float64(resolved.Total))
	for _, b := range resolved.Bundles {
		m.BundleChunks.WithLabelValues(resolved.Currency).Add(float64(b.Chunks))
		m.BundleSavings.WithLabelValues(resolved.Currency).Add(float64(b.Savings))
	}
}

// RecordDiscountValidation counts a validation; an empty reason counts as valid.
func (m *BusinessMetrics) RecordDiscountValidation(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "valid"
	}
	m.DiscountValidations.WithLabelValues(reason).Inc()
}

// RecordStockReduction counts a reduce attempt.
func (m *BusinessMetrics) RecordStockReduction(ok bool) {
	if m == nil {
		return
	}
	result := "reserved"
	if !ok {
		result = "insufficient"
	}
	m.StockReductions.WithLabelValues(result).Inc()
}

// RecordJob observes a background job run.
func (m *BusinessMetrics) RecordJob(jobType string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.JobDuration.WithLabelValues(jobType).Observe(elapsed.Seconds())
	if err != nil {
		m.JobsFailed.WithLabelValues(jobType).Inc()
		return
	}
	m.JobsProcessed.WithLabelValues(jobType).Inc()
}

// RecordOrderCreated observes a freshly set up order.
func (m *BusinessMetrics) RecordOrderCreated(order *domain.Order) {
	if m == nil || order == nil {
		return
	}
	m.OrdersCreated.WithLabelValues(order.Currency).Inc()
	m.OrdersByStatus.WithLabelValues(string(order.Status)).Inc()
	m.OrderValue.WithLabelValues(order.Currency).Observe(float64(order.Total))
}

// RecordOrderStatus counts a status change.
func (m *BusinessMetrics) RecordOrderStatus(status domain.OrderStatus) {
	if m == nil {
		return
	}
	m.OrdersByStatus.WithLabelValues(string(status)).Inc()
}

// RecordPurchase counts every unit of a completed order.
func (m *BusinessMetrics) RecordPurchase(order *domain.Order) {
	if m == nil || order == nil {
		return
	}
	for _, item := range order.Items {
		m.ProductPurchased.WithLabelValues(item.SKU).Add(float64(item.Quantity))
	}
	if order.DiscountCode != "" {
		m.DiscountRedemptions.WithLabelValues(order.DiscountCode).Inc()
	}
}

func (m *BusinessMetrics) RecordStockAdmissionFailure() {
	if m == nil {
		return
	}
	m.StockAdmissionFailures.Inc()
}

func (m *BusinessMetrics) RecordPaymentFailed() {
	if m == nil {
		return
	}
	m.PaymentFailed.Inc()
}

// RecordCartsPurged counts carts removed by one sweep.
func (m *BusinessMetrics) RecordCartsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CartsPurged.Add(float64(n))
}
