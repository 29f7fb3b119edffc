package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-invoicing-auth/internal/metrics"
	logctx "github.com/pribylovaa/go-invoicing-auth/internal/pkg/log"
)

// routeUnmatched — метка route для запросов, не попавших ни в один маршрут.
const routeUnmatched = "unmatched"

// Logging кладёт request-scoped логгер в контекст, пишет запись "http"
// по завершении запроса и учитывает его в метриках (m может быть nil).
func Logging(l *slog.Logger, m *metrics.Metrics) Middleware {
	if l == nil {
		l = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := r.Header.Get("X-Request-Id"); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}
			ctx := logctx.Into(r.Context(), reqLogger)
			r = r.WithContext(ctx)

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.code()),
				slog.Duration("dur", dur),
				slog.Int("bytes", sw.count),
			}

			logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelInfo, "http", attrs...)
			m.HTTPRequest(routePattern(r), r.Method, sw.code(), dur.Seconds())
		})
	}
}

// routePattern возвращает шаблон маршрута chi ("/auth/login"), а не сырой путь,
// чтобы не раздувать кардинальность метрик.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return routeUnmatched
}
