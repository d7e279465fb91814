package middleware

import (
	"context"
	"net/http"
	"strings"

	"coursify/internal/models"
	"coursify/internal/service"
	"coursify/internal/transport/http/httperr"

	"github.com/google/uuid"
)

// Identity — проверенная идентичность запроса. Заполняется ТОЛЬКО из
// подписанного access-токена; никакие клиентские поля запроса на неё
// не влияют.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

type identityKey struct{}

// IdentityFrom достаёт идентичность, положенную Auth.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Auth — гейт аутентификации: извлекает Bearer-токен из Authorization,
// проверяет подпись/срок и кладёт идентичность в контекст запроса.
//
// Коды отказов различимы: auth_missing (нет/битый заголовок),
// token_expired (клиенту пора на refresh), unauthenticated (подделка).
func Auth(svc *service.Service) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httperr.WriteError(w, r, httperr.ErrAuthMissing)
				return
			}

			uid, role, err := svc.ValidateAccessToken(token)
			if err != nil {
				httperr.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, Identity{UserID: uid, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}
