// Package telemetry exposes the terminal's Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metric names
const (
	MetricSalesTotal              = "pos_sales_total"
	MetricSalesAmountTotal        = "pos_sales_amount_total"
	MetricSaleItemsTotal          = "pos_sale_items_total"
	MetricCartRejectionsTotal     = "pos_cart_rejections_total"
	MetricCatalogLoadsTotal       = "pos_catalog_loads_total"
	MetricCatalogProducts         = "pos_catalog_products"
	MetricBackendRequestDuration  = "pos_backend_request_duration_seconds"
	MetricReceiptsRenderedTotal   = "pos_receipts_rendered_total"
	MetricHTTPRequestsTotal       = "pos_http_requests_total"
	MetricHTTPRequestDurationSecs = "pos_http_request_duration_seconds"
)

// Metrics holds the terminal's collectors on a private registry.
// Safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	salesTotal          *prometheus.CounterVec
	salesAmountTotal    prometheus.Counter
	saleItemsTotal      prometheus.Counter
	cartRejectionsTotal *prometheus.CounterVec
	catalogLoadsTotal   *prometheus.CounterVec
	catalogProducts     prometheus.Gauge
	backendDuration     *prometheus.HistogramVec
	receiptsRendered    *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors. Process and Go runtime
// collectors are included.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		salesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSalesTotal,
			Help: "Checkout attempts by payment method and outcome",
		}, []string{"payment_method", "outcome"}),
		salesAmountTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSalesAmountTotal,
			Help: "Sum of completed sale totals",
		}),
		saleItemsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSaleItemsTotal,
			Help: "Units sold in completed sales",
		}),
		cartRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCartRejectionsTotal,
			Help: "Cart mutations refused, by error code",
		}, []string{"code"}),
		catalogLoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCatalogLoadsTotal,
			Help: "Catalog loads by outcome",
		}, []string{"outcome"}),
		catalogProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricCatalogProducts,
			Help: "Products in the catalog cache",
		}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricBackendRequestDuration,
			Help:    "Backend request latency by endpoint and outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "outcome"}),
		receiptsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricReceiptsRenderedTotal,
			Help: "Receipts rendered by format and outcome",
		}, []string{"format", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequestsTotal,
			Help: "Terminal HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDurationSecs,
			Help:    "Terminal HTTP request latency by route",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.salesTotal,
		m.salesAmountTotal,
		m.saleItemsTotal,
		m.cartRejectionsTotal,
		m.catalogLoadsTotal,
		m.catalogProducts,
		m.backendDuration,
		m.receiptsRendered,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SaleCompleted records a completed sale
func (m *Metrics) SaleCompleted(method string, total decimal.Decimal, units int) {
	m.salesTotal.WithLabelValues(method, "success").Inc()
	m.salesAmountTotal.Add(total.InexactFloat64())
	m.saleItemsTotal.Add(float64(units))
}

// SaleFailed records a checkout that did not produce a sale
func (m *Metrics) SaleFailed(method string) {
	m.salesTotal.WithLabelValues(method, "failure").Inc()
}

// CartRejected records a refused cart mutation
func (m *Metrics) CartRejected(code string) {
	m.cartRejectionsTotal.WithLabelValues(code).Inc()
}

// CatalogLoaded records a successful catalog load
func (m *Metrics) CatalogLoaded(products int) {
	m.catalogLoadsTotal.WithLabelValues("success").Inc()
	m.catalogProducts.Set(float64(products))
}

// CatalogLoadFailed records a failed catalog load
func (m *Metrics) CatalogLoadFailed() {
	m.catalogLoadsTotal.WithLabelValues("failure").Inc()
}

// ObserveBackendRequest records one backend call
func (m *Metrics) ObserveBackendRequest(endpoint, outcome string, d time.Duration) {
	m.backendDuration.WithLabelValues(endpoint, outcome).Observe(d.Seconds())
}

// ReceiptRendered records a receipt rendering attempt
func (m *Metrics) ReceiptRendered(format string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.receiptsRendered.WithLabelValues(format, outcome).Inc()
}

// GinMiddleware records request count and latency per route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
