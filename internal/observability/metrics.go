package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
	Turns             *prometheus.CounterVec
	TopScore          prometheus.Histogram
	DisplayConfidence prometheus.Histogram
	TurnLatency       prometheus.Histogram
	KnowledgeReloads  *prometheus.CounterVec
	KnowledgeEntries  prometheus.Gauge

	turns *turnWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of open assistant widget sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		Turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed assistant turns by outcome and category.",
		}, []string{"outcome", "category"}),
		TopScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_top_score",
			Help:      "Weighted score of the top-ranked rule per turn.",
			Buckets:   []float64{0, 4, 8, 12, 16, 20, 30, 40, 60, 80},
		}),
		DisplayConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_display_confidence",
			Help:      "Confidence shown to the user per turn.",
			Buckets:   []float64{50, 60, 70, 75, 80, 85, 90, 95, 98},
		}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "Submission to completed reveal in milliseconds.",
			Buckets:   []float64{500, 1000, 1500, 2000, 3000, 4500, 6000, 9000},
		}),
		KnowledgeReloads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "knowledge_reloads_total",
			Help:      "Knowledge table reload attempts by result.",
		}, []string{"result"}),
		KnowledgeEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_entries",
			Help:      "Entries in the current knowledge table.",
		}),
		turns: newTurnWindow(256),
	}
}

// ObserveTurn records the outcome of one completed turn.
func (m *Metrics) ObserveTurn(s TurnSample) {
	outcome := "fallback"
	if s.Matched {
		outcome = "matched"
	}
	m.Turns.WithLabelValues(outcome, s.Category).Inc()
	m.TopScore.Observe(s.Score)
	m.DisplayConfidence.Observe(float64(s.Confidence))
	m.TurnLatency.Observe(float64(s.Total.Milliseconds()))
	m.turns.Observe(s)
}

// SetPacingBudget sets the limits the latency report checks turns against.
func (m *Metrics) SetPacingBudget(b PacingBudget) {
	m.turns.SetBudget(b)
}

func (m *Metrics) SnapshotTurns() TurnWindowSnapshot {
	return m.turns.Snapshot()
}

// ObserveKnowledgeReload counts a reload attempt; err is nil when it was applied.
func (m *Metrics) ObserveKnowledgeReload(err error) {
	if err != nil {
		m.KnowledgeReloads.WithLabelValues("rejected").Inc()
		return
	}
	m.KnowledgeReloads.WithLabelValues("applied").Inc()
}

func (m *Metrics) ObserveKnowledgeTable(entries int) {
	m.KnowledgeEntries.Set(float64(entries))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
