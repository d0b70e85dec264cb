package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Transaction metrics
	Transactions        *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec

	// Registry metrics
	RegistryPackages prometheus.Gauge

	startTime time.Time

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON stats endpoint
type Snapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	TotalErrors        int64   `json:"total_errors"`
	Installs           int64   `json:"installs"`
	Uninstalls         int64   `json:"uninstalls"`
	FailedTransactions int64   `json:"failed_transactions"`
	Packages           int64   `json:"packages"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),

		Transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pm_transactions_total",
				Help: "Total number of install and uninstall transactions by result code",
			},
			[]string{"op", "code"},
		),
		TransactionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pm_transaction_duration_seconds",
				Help:    "Transaction duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"op"},
		),

		RegistryPackages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pm_registry_packages",
				Help: "Number of packages in the registry",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pm_uptime_seconds",
			Help: "Daemon uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordTransaction records the terminal result of a transaction
func (m *Metrics) RecordTransaction(op string, code int32, duration time.Duration) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(op, strconv.Itoa(int(code))).Inc()
	m.TransactionDuration.WithLabelValues(op).Observe(duration.Seconds())

	m.mu.Lock()
	switch {
	case code != 0:
		m.snapshot.FailedTransactions++
	case op == OpInstall:
		m.snapshot.Installs++
	case op == OpUninstall:
		m.snapshot.Uninstalls++
	}
	m.mu.Unlock()
}

// SetRegistryPackages sets the number of packages in the registry
func (m *Metrics) SetRegistryPackages(count int) {
	if m == nil {
		return
	}
	m.RegistryPackages.Set(float64(count))
	m.mu.Lock()
	m.snapshot.Packages = int64(count)
	m.mu.Unlock()
}

// Snapshot returns a copy of the current values
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

// Transaction operation labels
const (
	OpInstall   = "install"
	OpUninstall = "uninstall"
)
