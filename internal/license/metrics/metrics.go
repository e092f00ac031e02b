package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the license lifecycle engine.
type Metrics struct {
	LicensesIssued  prometheus.Counter
	LicensesRenewed prometheus.Counter
	CopiesIssued    prometheus.Counter
	LicensesSwept   prometheus.Counter
	IssueDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all license module metrics registered.
func New() *Metrics {
	return &Metrics{
		LicensesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vialidad_licenses_issued_total",
			Help: "Total number of licenses issued",
		}),
		LicensesRenewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vialidad_licenses_renewed_total",
			Help: "Total number of licenses renewed",
		}),
		CopiesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vialidad_license_copies_issued_total",
			Help: "Total number of license copies issued",
		}),
		LicensesSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vialidad_licenses_swept_total",
			Help: "Total number of licenses deactivated by the expiry sweeper",
		}),
		IssueDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vialidad_license_issue_duration_seconds",
			Help:    "Duration of license issuance operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementIssued records a successful issuance.
func (m *Metrics) IncrementIssued() {
	m.LicensesIssued.Inc()
}

// IncrementRenewed records a successful renewal.
func (m *Metrics) IncrementRenewed() {
	m.LicensesRenewed.Inc()
}

// IncrementCopies records a successful copy issuance.
func (m *Metrics) IncrementCopies() {
	m.CopiesIssued.Inc()
}

// AddSwept records how many licenses one sweep pass deactivated.
func (m *Metrics) AddSwept(n int64) {
	m.LicensesSwept.Add(float64(n))
}

// ObserveIssue records the duration of an issuance operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveIssue(start time.Time) {
	m.IssueDuration.Observe(time.Since(start).Seconds())
}
