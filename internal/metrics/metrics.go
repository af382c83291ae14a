// Package metrics holds the Prometheus collectors of the service.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	codesGenerated  prometheus.Counter
	redemptions     *prometheus.CounterVec
	pageViews       prometheus.Counter
	searches        prometheus.Counter
	sessions        prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		codesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "docspace_invite_codes_generated_total",
			Help: "Invite codes created",
		}),
		redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docspace_invite_redemptions_total",
			Help: "Invite code redemption attempts by result",
		}, []string{"result"}), // result: ok, NOT_FOUND, DEACTIVATED, EXPIRED, EXHAUSTED
		pageViews: factory.NewCounter(prometheus.CounterOpts{
			Name: "docspace_page_views_total",
			Help: "Tracked page views",
		}),
		searches: factory.NewCounter(prometheus.CounterOpts{
			Name: "docspace_searches_total",
			Help: "Tracked searches",
		}),
		sessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "docspace_sessions_total",
			Help: "Browsing sessions started",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docspace_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) CodeGenerated() {
	if m == nil {
		return
	}
	m.codesGenerated.Inc()
}

func (m *Metrics) Redemption(result string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(result).Inc()
}

func (m *Metrics) PageView() {
	if m == nil {
		return
	}
	m.pageViews.Inc()
}

func (m *Metrics) Search() {
	if m == nil {
		return
	}
	m.searches.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
