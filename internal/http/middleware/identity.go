package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/go-invoicing-auth/internal/http/errors"
	"github.com/pribylovaa/go-invoicing-auth/internal/token"
)

// Identity — аутентифицированный владелец запроса.
// Живёт только в контексте запроса; глобального "текущего пользователя" нет.
type Identity struct {
	UserID uuid.UUID
	Claims *token.Claims
	// Token — сырой access-токен; нужен logout, чтобы занести его в blacklist.
	Token string
}

type identityKey struct{}

// WithIdentity кладёт identity в контекст.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom достаёт identity из контекста. ok=false — запрос анонимный.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RequireIdentity отвечает 401 на анонимные запросы.
// Ставится на маршруты, где анонимный доступ не допускается.
func RequireIdentity() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFrom(r.Context()); !ok {
				apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
