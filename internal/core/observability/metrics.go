// Package observability registers and exposes Prometheus metrics for the
// catalog, conjunction, reservation, and risk-model pipelines.
package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func Init(r prometheus.Registerer, isEnabled bool) {
	enabled.Store(isEnabled)
	if !isEnabled || r == nil {
		return
	}
	initCollectors(r)
}

func Enabled() bool { return enabled.Load() }

var (
	catalogRefreshTotal       *prometheus.CounterVec
	catalogObjectCount        prometheus.Gauge
	catalogLastUpdateUnix     prometheus.Gauge
	propagationErrorsTotal    *prometheus.CounterVec
	fetcherHTTPTotal          *prometheus.CounterVec
	conjunctionScreenedTotal  prometheus.Counter
	conjunctionCandidateTotal prometheus.Counter
	conjunctionEventsTotal    *prometheus.CounterVec
	conjunctionDurationSecs   prometheus.Histogram
	reservationEvalTotal      *prometheus.CounterVec
	reservationConflictsTotal *prometheus.CounterVec
	riskModelUpdatesTotal     prometheus.Counter
	riskModelPersistTotal     *prometheus.CounterVec
	alertsPublishedTotal      *prometheus.CounterVec
	alertSubscribersGauge     prometheus.Gauge
	kafkaEventsPublishedTotal *prometheus.CounterVec
)

func initCollectors(r prometheus.Registerer) {
	catalogRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ssa_catalog_refresh_total", Help: "Catalog refresh attempts by outcome."},
		[]string{"outcome"},
	)
	catalogObjectCount = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ssa_catalog_object_count", Help: "Number of objects currently held in the catalog."},
	)
	catalogLastUpdateUnix = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ssa_catalog_last_update_unix", Help: "Unix timestamp of the last successful catalog refresh."},
	)
	propagationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ssa_propagation_errors_total", Help: "Propagation failures by kind."},
		[]string{"kind"},
	)
	fetcherHTTPTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ssa_fetcher_http_total", Help: "Fetcher HTTP requests by group and status class."},
		[]string{"group", "status"},
	)
	conjunctionScreenedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ssa_conjunction_pairs_screened_total", Help: "Total object pairs passed through broad-phase screening."},
	)
	conjunctionCandidateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ssa_conjunction_candidate_pairs_total", Help: "Total pairs that survived broad-phase screening."},
	)
	conjunctionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ssa_conjunction_events_total", Help: "Conjunction events emitted by risk band."},
		[]string{"band"},
	)
	conjunctionDurationSecs = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "ssa_conjunction_analysis_duration_seconds", Help: "Duration of a full analyze() call.", Buckets: prometheus.ExponentialBuckets(0.01, 2, 12)},
	)
	reservationEvalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ssa_reservation_evaluations_total", Help: "Reservation evaluations by outcome."},
		[]string{"outcome"},
	)
	reservationConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ssa_reservation_conflicts_total", Help: "Reservation conflicts found by severity."},
		[]string{"severity"},
	)
	riskModelUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ssa_risk_model_updates_total", Help: "Risk model parameter updates performed."},
	)
	riskModelPersistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ssa_risk_model_persist_total", Help: "Risk model persistence attempts by outcome."},
		[]string{"outcome"},
	)
	alertsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ssa_alerts_published_total", Help: "Alerts published by category and severity."},
		[]string{"category", "severity"},
	)
	alertSubscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ssa_alert_subscribers", Help: "Current number of connected alert subscribers."},
	)
	kafkaEventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ssa_kafka_alert_events_total", Help: "Alert events published to Kafka by outcome."},
		[]string{"outcome"},
	)

	r.MustRegister(
		catalogRefreshTotal, catalogObjectCount, catalogLastUpdateUnix,
		propagationErrorsTotal, fetcherHTTPTotal,
		conjunctionScreenedTotal, conjunctionCandidateTotal, conjunctionEventsTotal, conjunctionDurationSecs,
		reservationEvalTotal, reservationConflictsTotal,
		riskModelUpdatesTotal, riskModelPersistTotal,
		alertsPublishedTotal, alertSubscribersGauge, kafkaEventsPublishedTotal,
	)
}

func ObserveCatalogRefresh(outcome string, objectCount int) {
	if !enabled.Load() || catalogRefreshTotal == nil {
		return
	}
	catalogRefreshTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		catalogObjectCount.Set(float64(objectCount))
		catalogLastUpdateUnix.SetToCurrentTime()
	}
}

func IncPropagationError(kind string) {
	if !enabled.Load() || propagationErrorsTotal == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	propagationErrorsTotal.WithLabelValues(kind).Inc()
}

func ObserveFetcherHTTP(group, status string) {
	if !enabled.Load() || fetcherHTTPTotal == nil {
		return
	}
	fetcherHTTPTotal.WithLabelValues(group, status).Inc()
}

func ObserveConjunctionAnalysis(screened, candidates int, durationSeconds float64, bandCounts map[string]int) {
	if !enabled.Load() {
		return
	}
	if conjunctionScreenedTotal != nil {
		conjunctionScreenedTotal.Add(float64(screened))
	}
	if conjunctionCandidateTotal != nil {
		conjunctionCandidateTotal.Add(float64(candidates))
	}
	if conjunctionDurationSecs != nil {
		conjunctionDurationSecs.Observe(durationSeconds)
	}
	if conjunctionEventsTotal != nil {
		for band, n := range bandCounts {
			conjunctionEventsTotal.WithLabelValues(band).Add(float64(n))
		}
	}
}

func ObserveReservationEvaluation(outcome string) {
	if !enabled.Load() || reservationEvalTotal == nil {
		return
	}
	reservationEvalTotal.WithLabelValues(outcome).Inc()
}

func IncReservationConflict(severity string) {
	if !enabled.Load() || reservationConflictsTotal == nil {
		return
	}
	reservationConflictsTotal.WithLabelValues(severity).Inc()
}

func IncRiskModelUpdate() {
	if !enabled.Load() || riskModelUpdatesTotal == nil {
		return
	}
	riskModelUpdatesTotal.Inc()
}

func ObserveRiskModelPersist(err error) {
	if !enabled.Load() || riskModelPersistTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	riskModelPersistTotal.WithLabelValues(outcome).Inc()
}

func IncAlertPublished(category, severity string) {
	if !enabled.Load() || alertsPublishedTotal == nil {
		return
	}
	alertsPublishedTotal.WithLabelValues(category, severity).Inc()
}

func SetAlertSubscribers(n int) {
	if !enabled.Load() || alertSubscribersGauge == nil {
		return
	}
	alertSubscribersGauge.Set(float64(n))
}

func ObserveKafkaEventPublish(err error) {
	if !enabled.Load() || kafkaEventsPublishedTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	kafkaEventsPublishedTotal.WithLabelValues(outcome).Inc()
}
