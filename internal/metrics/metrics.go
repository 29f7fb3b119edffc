// metrics — прикладные метрики auth-сервиса (Prometheus).
//
// Все методы безопасны для nil-получателя: сервис можно собрать без метрик.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Значения метки table для счётчика очистки.
const (
	TableRefreshTokens = "refresh_tokens"
	TableBlacklist     = "token_blacklist"
)

type Metrics struct {
	logins         *prometheus.CounterVec
	registrations  *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	logouts        prometheus.Counter
	blacklistHits  prometheus.Counter
	cleanupRuns    *prometheus.CounterVec
	cleanupDeleted *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New создаёт и регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "registrations_total",
			Help:      "Registration attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "refreshes_total",
			Help:      "Refresh token rotations by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
		blacklistHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "blacklist_hits_total",
			Help:      "Requests rejected because the presented token is blacklisted.",
		}),
		cleanupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "cleanup_runs_total",
			Help:      "Token cleanup cycles by result.",
		}, []string{"result"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "cleanup_deleted_total",
			Help:      "Rows deleted by token cleanup.",
		}, []string{"table"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		m.logins,
		m.registrations,
		m.refreshes,
		m.logouts,
		m.blacklistHits,
		m.cleanupRuns,
		m.cleanupDeleted,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Registration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) Logout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

func (m *Metrics) BlacklistHit() {
	if m == nil {
		return
	}
	m.blacklistHits.Inc()
}

// CleanupRun учитывает цикл очистки и число удалённых строк по таблицам.
func (m *Metrics) CleanupRun(result string, refreshDeleted, blacklistDeleted int64) {
	if m == nil {
		return
	}
	m.cleanupRuns.WithLabelValues(result).Inc()
	m.cleanupDeleted.WithLabelValues(TableRefreshTokens).Add(float64(refreshDeleted))
	m.cleanupDeleted.WithLabelValues(TableBlacklist).Add(float64(blacklistDeleted))
}

// HTTPRequest учитывает завершённый HTTP-запрос.
func (m *Metrics) HTTPRequest(route, method string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(seconds)
}
