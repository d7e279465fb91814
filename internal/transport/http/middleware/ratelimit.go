package middleware

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	logctx "coursify/internal/pkg/log"
	"coursify/internal/ratelimit"
	"coursify/internal/transport/http/httperr"
)

// Limit ограничивает частоту попыток на маршруте по адресу клиента.
// Недоступность лимитера не блокирует аутентификацию: запрос
// пропускается с предупреждением в логе (fail-open).
func Limit(l *ratelimit.Limiter, route string, rule ratelimit.Rule) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := l.Allow(r.Context(), route, clientAddr(r), rule)
			if err != nil {
				if errors.Is(err, ratelimit.ErrUnavailable) {
					logctx.From(r.Context()).Warn("rate_limiter_unavailable",
						slog.String("route", route),
						slog.String("err", err.Error()),
					)
					next.ServeHTTP(w, r)
					return
				}

				httperr.WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddr возвращает адрес клиента без порта.
// Сервис стоит за доверенным прокси либо смотрит наружу напрямую;
// X-Forwarded-For намеренно не читается — заголовок подделываем клиентом.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
