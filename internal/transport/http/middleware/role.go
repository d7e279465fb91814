package middleware

import (
	"net/http"

	"coursify/internal/models"
	"coursify/internal/transport/http/httperr"
)

// RequireRole пропускает запрос, только если роль из контекста входит
// в требуемый набор. Должен стоять строго после Auth: отсутствие
// идентичности в контексте — ошибка сборки роутера, а не запроса,
// поэтому паникуем (Recover превратит это в 500).
func RequireRole(roles ...models.Role) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				panic("middleware: RequireRole used without Auth")
			}

			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			httperr.WriteError(w, r, httperr.ErrForbidden)
		})
	}
}
