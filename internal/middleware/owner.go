package middleware

import (
	"context"
	"net/http"

	"github.com/tempizhere/shortlink/internal/auth"
	"go.uber.org/zap"
)

type ownerIDKey struct{}

// Owner определяет владельца по токену из заголовка Authorization или куки.
// Запрос без токена считается анонимным; неверный токен отклоняется с 401.
func Owner(v *auth.Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				if cookie, err := r.Cookie(auth.CookieName); err == nil {
					token = cookie.Value
				}
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ownerID, err := v.ParseOwner(token)
			if err != nil {
				logger.Warn("Invalid owner token", zap.String("uri", r.RequestURI), zap.Error(err))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}

// WithOwnerID кладёт ownerId в контекст
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey{}, ownerID)
}

// OwnerID извлекает ownerId из контекста
func OwnerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerIDKey{}).(string)
	return id, ok && id != ""
}
