// httperr стандартизирует ответы об ошибках HTTP-слоя.
// На вход он принимает доменную ошибку (sentinel-ошибки сервиса,
// лимитера или самого HTTP-слоя), а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Маппинг фиксирован таблицей в toHTTP; всё незнакомое — 500/internal,
// чтобы детали персистентности и подписи не утекали наружу.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"coursify/internal/ratelimit"
	"coursify/internal/service"
)

var (
	// ErrAuthMissing — в запросе нет bearer-токена или refresh-credential.
	ErrAuthMissing = errors.New("authentication credential missing")
	// ErrForbidden — роль пользователя не входит в требуемый набор маршрута.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidArgument — тело запроса не распарсилось или неполно.
	ErrInvalidArgument = errors.New("invalid argument")
)

// APIError — единый формат ошибки для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует доменную ошибку в HTTP-статус и унифицированный ответ.
// err == nil — программная ошибка вызова: возвращаем 500/internal, чтобы
// не послать "200 OK" с телом ошибки и не маскировать баг.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := toHTTP(err)
	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	// Прокидываем request_id для фронта, чтобы он мог репортить баги с привязкой.
	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// toHTTP — таблица маппинга sentinel-ошибок на статус/код/сообщение.
//
// Замечания:
//   - ErrInvalidCredentials не различает "нет такого аккаунта" и
//     "пароль неверен" — защита от перебора аккаунтов;
//   - ErrTokenExpired имеет собственный код, чтобы клиент запускал
//     refresh вместо полного re-login;
//   - ErrInvalidRefreshToken — это 403 (учётные данные предъявлены,
//     но отклонены), в отличие от 401 при их отсутствии.
func toHTTP(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrEmptyTitle),
		errors.Is(err, service.ErrAlreadyEnrolled):
		return http.StatusBadRequest, "invalid_argument", err.Error()
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "email already registered"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthenticated", "invalid credentials"
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired", "access token expired"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthenticated", "invalid access token"
	case errors.Is(err, ErrAuthMissing):
		return http.StatusUnauthorized, "auth_missing", "authentication credential missing"
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return http.StatusForbidden, "invalid_refresh", "invalid or expired refresh token"
	case errors.Is(err, ErrForbidden), errors.Is(err, service.ErrNotCourseOwner):
		return http.StatusForbidden, "forbidden", "forbidden"
	case errors.Is(err, service.ErrCourseNotFound):
		return http.StatusNotFound, "not_found", "course not found"
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
