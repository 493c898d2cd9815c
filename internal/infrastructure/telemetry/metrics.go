// Package telemetry métricas Prometheus y trazas OpenTelemetry del ledger.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
)

const namespace = "stock_ledger"

var _ stock.Metrics = (*Metrics)(nil)

// Metrics colectores del ledger registrados en un registry propio.
type Metrics struct {
	registry        *prometheus.Registry
	recorded        *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	conflictRetries prometheus.Counter
	replayLength    prometheus.Histogram
}

// NewMetrics crea el registry con los colectores del ledger, de proceso y del runtime Go.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		recorded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_recorded_total",
			Help:      "Movimientos confirmados por tipo.",
		}, []string{"kind"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movements_rejected_total",
			Help:      "Movimientos rechazados por motivo.",
		}, []string{"reason"}),
		conflictRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Reintentos por conflicto de versión del saldo.",
		}),
		replayLength: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "replay_movements",
			Help:      "Cantidad de movimientos plegados por replay.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

func (m *Metrics) MovementRecorded(kind string) { m.recorded.WithLabelValues(kind).Inc() }

func (m *Metrics) MovementRejected(reason string) { m.rejected.WithLabelValues(reason).Inc() }

func (m *Metrics) ConflictRetried() { m.conflictRetries.Inc() }

func (m *Metrics) ReplayObserved(movements int) { m.replayLength.Observe(float64(movements)) }

// Registry para registrar colectores adicionales (p. ej. del HTTP).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler expone el registry en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
