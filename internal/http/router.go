package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-invoicing-auth/internal/http/handlers"
	"github.com/pribylovaa/go-invoicing-auth/internal/http/middleware"
	"github.com/pribylovaa/go-invoicing-auth/internal/metrics"
)

// Pinger проверяет доступность хранилища для /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Metrics *metrics.Metrics
	// Gatherer — источник для /metrics; nil отключает эндпоинт.
	Gatherer prometheus.Gatherer
	// Health — проверка БД для /healthz; nil — всегда ok.
	Health Pinger
	Auth   middleware.AuthOptions
}

// Deps — зависимости маршрутов.
type Deps struct {
	Service   handlers.AuthService
	Validator middleware.TokenValidator
	Blacklist middleware.BlacklistChecker
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(deps Deps, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования: request_id попадает в логгер
		middleware.Logging(opts.Logger, opts.Metrics),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	registerOps(root, opts)

	h := handlers.New(deps.Service)

	root.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Validator, deps.Blacklist, opts.Auth))
		registerRoutes(r, h)
	})

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireIdentity())

		r.Post("/auth/logout", h.Logout)
		r.Post("/auth/sessions/revoke", h.RevokeSession)
		r.Get("/auth/sessions", h.Sessions)
		r.Get("/auth/me", h.Me)
	})
}

// registerOps — служебные эндпоинты: liveness, readiness, метрики.
func registerOps(r chi.Router, opts Options) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := opts.Health.Ping(ctx); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
}
