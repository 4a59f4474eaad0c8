package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	SourceFeed     = "feed"
	SourceOperator = "operator"

	OutcomeResolved  = "resolved"
	OutcomeNoRecord  = "no_record"
	OutcomeDraw      = "draw"
	OutcomeFeedError = "feed_error"
)

type metrics struct {
	registrationsCounter      prometheus.Counter
	deregistrationsCounter    prometheus.Counter
	resultsRecordedCounter    *prometheus.CounterVec
	resolutionAttemptsCounter *prometheus.CounterVec
	feedRequestsCounter       *prometheus.CounterVec
	roundsAdvancedCounter     prometheus.Counter
	forcedForfeitsCounter     prometheus.Counter
	conflictsCounter          prometheus.Counter
	currentRoundGauge         prometheus.Gauge
}

func (m *metrics) Registered() {
	m.registrationsCounter.Inc()
}

func (m *metrics) Deregistered() {
	m.deregistrationsCounter.Inc()
}

func (m *metrics) ResultRecorded(source string) {
	m.resultsRecordedCounter.WithLabelValues(source).Inc()
}

func (m *metrics) ResolutionAttempt(outcome string) {
	m.resolutionAttemptsCounter.WithLabelValues(outcome).Inc()
}

func (m *metrics) FeedRequest(status string) {
	m.feedRequestsCounter.WithLabelValues(status).Inc()
}

func (m *metrics) RoundAdvanced(round int) {
	m.roundsAdvancedCounter.Inc()
	m.currentRoundGauge.Set(float64(round))
}

func (m *metrics) Forfeited(count int) {
	m.forcedForfeitsCounter.Add(float64(count))
}

func (m *metrics) Conflict() {
	m.conflictsCounter.Inc()
}

func (m *metrics) SetCurrentRound(round int) {
	m.currentRoundGauge.Set(float64(round))
}

var Metrics = &metrics{
	registrationsCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "bracket_registrations_total",
		Help: "Total number of accepted registrations",
	}),
	deregistrationsCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "bracket_deregistrations_total",
		Help: "Total number of withdrawn registrations",
	}),
	resultsRecordedCounter: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bracket_results_recorded_total",
		Help: "Total number of match results recorded, by source",
	}, []string{"source"}),
	resolutionAttemptsCounter: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bracket_resolution_attempts_total",
		Help: "Total number of result submissions, by outcome",
	}, []string{"outcome"}),
	feedRequestsCounter: promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bracket_feed_requests_total",
		Help: "Total number of history feed requests, by status",
	}, []string{"status"}),
	roundsAdvancedCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "bracket_rounds_advanced_total",
		Help: "Total number of round advancements",
	}),
	forcedForfeitsCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "bracket_forced_forfeits_total",
		Help: "Total number of matches closed as double forfeits by a forced advance",
	}),
	conflictsCounter: promauto.NewCounter(prometheus.CounterOpts{
		Name: "bracket_conflicts_total",
		Help: "Total number of writes rejected by a conditional update",
	}),
	currentRoundGauge: promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bracket_current_round",
		Help: "Round currently being played, 0 before the start",
	}),
}
