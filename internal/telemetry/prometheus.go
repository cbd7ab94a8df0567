package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opsdash/internal/ics"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opsdash_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	calendarFilters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_calendar_filter_total",
		Help: "Calendar window filter invocations by outcome",
	}, []string{"outcome"})

	calendarEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opsdash_calendar_upcoming_events",
		Help: "Number of events in the window at the last successful filter",
	})

	calendarRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opsdash_calendar_refresh_total",
		Help: "Subscription refresh attempts by result",
	}, []string{"result"})
)

// Outcome labels for opsdash_calendar_filter_total.
const (
	OutcomeOK           = "ok"
	OutcomeMalformed    = "malformed"
	OutcomeIncomparable = "incomparable_frame"
	OutcomeOther        = "error"
)

// FilterOutcome classifies a filter error into a metric label.
func FilterOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ics.ErrMalformedDocument):
		return OutcomeMalformed
	case errors.Is(err, ics.ErrIncomparableTimeFrame):
		return OutcomeIncomparable
	default:
		return OutcomeOther
	}
}

// RecordCalendarFilter counts one filter call.
func RecordCalendarFilter(err error, upcoming int) {
	calendarFilters.WithLabelValues(FilterOutcome(err)).Inc()
	if err == nil {
		calendarEvents.Set(float64(upcoming))
	}
}

// RecordRefresh counts one subscription refresh; result is "fetched",
// "cached" or "failed".
func RecordRefresh(result string) {
	calendarRefreshes.WithLabelValues(result).Inc()
}

// RecordRequest observes one HTTP request. route is the router template,
// not the raw path, to keep label cardinality bounded.
func RecordRequest(method, route string, statusCode int, duration time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
