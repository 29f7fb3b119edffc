package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	logctx "github.com/pribylovaa/go-invoicing-auth/internal/pkg/log"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

// AccessTokenQueryParam — запасной источник токена, если заголовка нет
// (WebSocket и ссылки на скачивание не умеют слать Authorization).
const AccessTokenQueryParam = "access_token"

// TokenValidator проверяет подпись и срок токена.
type TokenValidator interface {
	Validate(raw string) token.Result
}

// BlacklistChecker сообщает, занесён ли токен в blacklist.
type BlacklistChecker interface {
	IsTokenBlacklisted(ctx context.Context, raw string) (bool, error)
}

// AuthOptions — поведение Authenticate.
type AuthOptions struct {
	// FailClosed: ошибка проверки blacklist даёт 503 вместо анонимного прохода.
	FailClosed bool
}

type verdict int

const (
	anonymous verdict = iota
	authenticated
	blacklisted
	unavailable
)

// Authenticate извлекает bearer-токен (заголовок Authorization, иначе
// query-параметр access_token), проверяет его и сверяет с blacklist.
//
//   - токена нет или он невалиден: запрос идёт дальше анонимным;
//   - токен в blacklist: 401 text/plain, следующий обработчик не вызывается;
//   - токен валиден: Identity кладётся в контекст запроса.
//
// Ошибки и паники внутри проверки трактуются как отсутствие токена,
// если не включён FailClosed.
func Authenticate(v TokenValidator, bl BlacklistChecker, opts AuthOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			id, res := authenticate(ctx, v, bl, raw)

			switch res {
			case blacklisted:
				http.Error(w, "token has been revoked", http.StatusUnauthorized)
				return
			case unavailable:
				if opts.FailClosed {
					http.Error(w, "authentication unavailable", http.StatusServiceUnavailable)
					return
				}
			case authenticated:
				ctx = WithIdentity(ctx, id)
				ctx = logctx.With(ctx, slog.String("user_id", id.UserID.String()))
				r = r.WithContext(ctx)
			}

			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(ctx context.Context, v TokenValidator, bl BlacklistChecker, raw string) (id Identity, res verdict) {
	const op = "http.middleware.Authenticate"

	defer func() {
		if rec := recover(); rec != nil {
			logctx.From(ctx).Error("authenticate_panic",
				slog.String("op", op),
				slog.String("err", fmt.Sprint(rec)),
			)
			id, res = Identity{}, unavailable
		}
	}()

	claims, ok := v.Validate(raw).Claims()
	if !ok || claims.IsRefresh() {
		return Identity{}, anonymous
	}

	userID, ok := claims.UserID()
	if !ok {
		return Identity{}, anonymous
	}

	found, err := bl.IsTokenBlacklisted(ctx, raw)
	if err != nil {
		logctx.From(ctx).Warn("blacklist_check_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return Identity{}, unavailable
	}

	if found {
		logctx.From(ctx).Info("blacklisted_token_rejected",
			slog.String("user_id", userID.String()),
		)
		return Identity{}, blacklisted
	}

	return Identity{UserID: userID, Claims: claims, Token: raw}, authenticated
}

// extractToken берёт токен из "Authorization: Bearer <token>", а при
// отсутствии заголовка из query-параметра access_token.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
		return ""
	}

	return strings.TrimSpace(r.URL.Query().Get(AccessTokenQueryParam))
}
