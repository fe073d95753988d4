package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "admin_auth"

var (
	// HTTPRequests рахує запити за маршрутом, методом і статусом
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by route, method and status.",
	}, []string{"route", "method", "status"})

	// HTTPDuration тривалість обробки запитів
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// Logins результати входу за паролем: success, invalid_credentials, error
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_logins_total",
		Help:      "Password login attempts by outcome.",
	}, []string{"outcome"})

	// Refreshes результати оновлення access token
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Refresh attempts by outcome.",
	}, []string{"outcome"})

	// CSRFRejections відхилені CSRF перевірки
	CSRFRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "csrf_rejections_total",
		Help:      "State-changing requests rejected by the CSRF guard.",
	})

	// SignIns результати входу через провайдера, outcome = completed або код помилки
	SignIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oauth_signins_total",
		Help:      "Third-party sign-in attempts by outcome.",
	}, []string{"provider", "outcome"})

	// RateLimited запити, відхилені лімітером
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-address rate limiter.",
	}, []string{"route"})
)
