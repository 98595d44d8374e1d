// Package metrics defines the Prometheus collectors for training and testing runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type Metrics struct {
	TrainRuns     *prometheus.CounterVec   // training runs by model and status
	TestRuns      *prometheus.CounterVec   // test runs by status
	TrainDuration *prometheus.HistogramVec // end-to-end training time by model
	TestDuration  prometheus.Histogram     // end-to-end test time
	RowsDropped   prometheus.Counter       // rows removed by missing-value handling
	LastAccuracy  *prometheus.GaugeVec     // accuracy of the latest evaluation by model
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with registerer, so tests can use an isolated registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		TrainRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "automl_train_runs_total",
			Help: "Total number of training runs",
		}, []string{"model", "status"}),
		TestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "automl_test_runs_total",
			Help: "Total number of test runs",
		}, []string{"status"}),
		TrainDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "automl_train_duration_seconds",
			Help:    "Training run duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"model"}),
		TestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "automl_test_duration_seconds",
			Help:    "Test run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		RowsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "automl_rows_dropped_total",
			Help: "Rows removed because of missing values",
		}),
		LastAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "automl_last_accuracy",
			Help: "Accuracy of the most recent evaluation",
		}, []string{"model"}),
	}
}

// ObserveTrain records one training run. A nil receiver is a no-op.
func (m *Metrics) ObserveTrain(model string, d time.Duration, accuracy float64, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.TrainRuns.WithLabelValues(model, status).Inc()
	m.TrainDuration.WithLabelValues(model).Observe(d.Seconds())
	if err == nil {
		m.LastAccuracy.WithLabelValues(model).Set(accuracy)
	}
}

func (m *Metrics) ObserveTest(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.TestRuns.WithLabelValues(status).Inc()
	m.TestDuration.Observe(d.Seconds())
}

func (m *Metrics) AddDroppedRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsDropped.Add(float64(n))
}
