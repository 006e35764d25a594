// Package metrics exposes the platform's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "earnhub",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earnhub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "earnhub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	pointsCredited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earnhub",
			Subsystem: "rewards",
			Name:      "points_credited_total",
			Help:      "Total points credited, by source.",
		},
		[]string{"source"},
	)

	ticketsSold = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "earnhub",
			Subsystem: "lottery",
			Name:      "tickets_sold_total",
			Help:      "Total lottery tickets sold.",
		},
	)

	lotteryDraws = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earnhub",
			Subsystem: "lottery",
			Name:      "draws_total",
			Help:      "Total lottery draws, by outcome.",
		},
		[]string{"outcome"},
	)

	withdrawalsDecided = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "earnhub",
			Subsystem: "wallet",
			Name:      "withdrawals_decided_total",
			Help:      "Total withdrawal decisions, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		pointsCredited,
		ticketsSold,
		lotteryDraws,
		withdrawalsDecided,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed HTTP request.
func ObserveRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncInFlight increments the in-flight gauge.
func IncInFlight() { httpInFlight.Inc() }

// DecInFlight decrements the in-flight gauge.
func DecInFlight() { httpInFlight.Dec() }

// AddPointsCredited records points credited from a source
// (task, referral, lottery, course).
func AddPointsCredited(source string, points int64) {
	if points > 0 {
		pointsCredited.WithLabelValues(source).Add(float64(points))
	}
}

// IncTicketSold records one ticket sale.
func IncTicketSold() { ticketsSold.Inc() }

// IncDraw records one draw outcome (completed or cancelled).
func IncDraw(outcome string) { lotteryDraws.WithLabelValues(outcome).Inc() }

// IncWithdrawalDecision records one withdrawal decision outcome.
func IncWithdrawalDecision(outcome string) { withdrawalsDecided.WithLabelValues(outcome).Inc() }
