package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CloseErrorTypeGateway    = "gateway"
	CloseErrorTypeValidation = "validation"
	CloseErrorTypeSchedule   = "schedule"
	CloseErrorTypeUnknown    = "unknown"
)

// ClosingMetrics captures closing-workflow health signals on the
// prometheus registry scraped at /metrics.
type ClosingMetrics struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsCancelled prometheus.Counter
	groupsClosed      prometheus.Counter
	closeErrors       *prometheus.CounterVec
	submitDuration    prometheus.Histogram
	groupsPerSession  prometheus.Histogram
}

var (
	closingMetricsOnce sync.Once
	closingMetrics     *ClosingMetrics
)

// Closing returns the process-wide closing metrics, registering the
// collectors on first use.
func Closing() *ClosingMetrics {
	closingMetricsOnce.Do(func() {
		closingMetrics = newClosingMetrics(prometheus.DefaultRegisterer)
	})
	return closingMetrics
}

func newClosingMetrics(reg prometheus.Registerer) *ClosingMetrics {
	m := &ClosingMetrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sphera_closing_sessions_started_total",
			Help: "Closing sessions started.",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sphera_closing_sessions_completed_total",
			Help: "Closing sessions that reached the done state.",
		}),
		sessionsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sphera_closing_sessions_cancelled_total",
			Help: "Closing sessions cancelled by the operator.",
		}),
		groupsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sphera_closing_groups_closed_total",
			Help: "Closure groups confirmed closed by the gateway.",
		}),
		closeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sphera_closing_errors_total",
			Help: "Failed close submissions by error type.",
		}, []string{"error_type"}),
		submitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sphera_closing_submit_duration_seconds",
			Help:    "Wall time of one group submission including the gateway call.",
			Buckets: prometheus.DefBuckets,
		}),
		groupsPerSession: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sphera_closing_groups_per_session",
			Help:    "Closure groups per started session.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}

	for _, collector := range []prometheus.Collector{
		m.sessionsStarted,
		m.sessionsCompleted,
		m.sessionsCancelled,
		m.groupsClosed,
		m.closeErrors,
		m.submitDuration,
		m.groupsPerSession,
	} {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}

	return m
}

func (m *ClosingMetrics) SessionStarted(groupCount int) {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
	m.groupsPerSession.Observe(float64(groupCount))
}

func (m *ClosingMetrics) SessionCompleted() {
	if m == nil {
		return
	}
	m.sessionsCompleted.Inc()
}

func (m *ClosingMetrics) SessionCancelled() {
	if m == nil {
		return
	}
	m.sessionsCancelled.Inc()
}

func (m *ClosingMetrics) GroupClosed(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.groupsClosed.Inc()
	m.submitDuration.Observe(elapsed.Seconds())
}

func (m *ClosingMetrics) CloseError(errorType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	errorType = strings.TrimSpace(errorType)
	if errorType == "" {
		errorType = CloseErrorTypeUnknown
	}
	m.closeErrors.WithLabelValues(errorType).Inc()
	m.submitDuration.Observe(elapsed.Seconds())
}
