// Package metrics exports upload pipeline telemetry to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for a finished upload
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// UploadObserver captures telemetry for card video uploads.
type UploadObserver interface {
	RecordUpload(duration time.Duration, sizeBytes int, kind string)
	RecordFunding(amount *big.Int)
}

// PrometheusObserver exports upload metrics to Prometheus.
type PrometheusObserver struct {
	uploadDuration *prometheus.HistogramVec
	uploadFailures *prometheus.CounterVec
	uploadBytes    prometheus.Counter
	fundings       prometheus.Counter
	fundedAmount   prometheus.Counter
}

// NewPrometheusObserver registers the upload metrics on reg. A nil reg uses
// the default registerer. Registering twice reuses the existing collectors.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "vinculo"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	uploadDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_duration_seconds",
		Help:      "End to end latency of card video uploads.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	uploadFailures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_failures_total",
		Help:      "Failed uploads by error kind.",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}
	uploadBytes, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Cumulative payload size uploaded to the storage network.",
	}))
	if err != nil {
		return nil, err
	}
	fundings, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fundings_total",
		Help:      "Number of times the storage account was topped up.",
	}))
	if err != nil {
		return nil, err
	}
	fundedAmount, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "funded_base_units_total",
		Help:      "Cumulative amount funded, in fee-currency base units.",
	}))
	if err != nil {
		return nil, err
	}

	return &PrometheusObserver{
		uploadDuration: uploadDuration,
		uploadFailures: uploadFailures,
		uploadBytes:    uploadBytes,
		fundings:       fundings,
		fundedAmount:   fundedAmount,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register upload metric: %w", err)
	}
	return c, nil
}

// RecordUpload tracks upload duration and size. kind is empty on success and
// names the error kind otherwise.
func (o *PrometheusObserver) RecordUpload(duration time.Duration, sizeBytes int, kind string) {
	if o == nil {
		return
	}
	if kind != "" {
		o.uploadDuration.WithLabelValues(OutcomeFailure).Observe(duration.Seconds())
		o.uploadFailures.WithLabelValues(kind).Inc()
		return
	}
	o.uploadDuration.WithLabelValues(OutcomeSuccess).Observe(duration.Seconds())
	o.uploadBytes.Add(float64(sizeBytes))
}

// RecordFunding counts a top-up of amount base units.
func (o *PrometheusObserver) RecordFunding(amount *big.Int) {
	if o == nil || amount == nil {
		return
	}
	o.fundings.Inc()
	f, _ := new(big.Float).SetInt(amount).Float64()
	o.fundedAmount.Add(f)
}

// Nop discards all telemetry.
type Nop struct{}

func (Nop) RecordUpload(time.Duration, int, string) {}

func (Nop) RecordFunding(*big.Int) {}
