package metrics

import (
	"context"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ruteri/vanity-name-registrar/api"
	"github.com/ruteri/vanity-name-registrar/interfaces"
)

// RegistrarMetrics counts registrar activity. It is an interfaces.EventSink
// for committed operations; failures are reported through ObserveFailure.
type RegistrarMetrics struct {
	Events          *prometheus.CounterVec
	EscrowDeposited prometheus.Counter
	EscrowReleased  prometheus.Counter
	Failures        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistrarMetrics registers registrar metrics with reg. escrowHeld, when
// set, backs a gauge of the escrow currently in custody.
func NewRegistrarMetrics(reg prometheus.Registerer, namespace string, escrowHeld func() *big.Int) *RegistrarMetrics {
	factory := promauto.With(reg)

	m := &RegistrarMetrics{
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed registrar events by kind",
		}, []string{"kind"}),
		EscrowDeposited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_deposited_wei_total",
			Help:      "Total escrow accepted by registrations, in wei",
		}),
		EscrowReleased: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_released_wei_total",
			Help:      "Total escrow paid out by withdrawals, in wei",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_operations_total",
			Help:      "Rejected registrar operations by operation and reason",
		}, []string{"operation", "reason"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of registrar operations",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
	}

	if escrowHeld != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "escrow_held_wei",
			Help:      "Escrow currently held by the registrar, in wei",
		}, func() float64 {
			return weiToFloat(escrowHeld())
		})
	}

	return m
}

// Publish implements interfaces.EventSink.
func (m *RegistrarMetrics) Publish(ctx context.Context, event interfaces.Event) error {
	m.Events.WithLabelValues(string(event.Kind)).Inc()

	switch event.Kind {
	case interfaces.EventRegistered:
		m.EscrowDeposited.Add(weiToFloat(event.Amount))
	case interfaces.EventWithdrawn:
		m.EscrowReleased.Add(weiToFloat(event.Amount))
	}
	return nil
}

// ObserveFailure counts a rejected operation under the reason derived from err.
func (m *RegistrarMetrics) ObserveFailure(operation string, err error) {
	m.Failures.WithLabelValues(operation, FailureReason(err)).Inc()
}

// ObserveDuration records how long operation took since start.
func (m *RegistrarMetrics) ObserveDuration(operation string, start time.Time) {
	m.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// FailureReason maps registrar errors to a bounded label value.
func FailureReason(err error) string {
	return api.ErrorCode(err)
}

func weiToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
