// service содержит бизнес-логику сервиса: регистрацию/аутентификацию
// пользователей, выпуск/проверку токенов, refresh-протокол с ротацией
// и операции над курсами через интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при условии,
//     что переданное хранилище (storage.Storage) потокобезопасно.
//   - Ошибки возвращаются наружу и маппятся HTTP-слоем на статусы
//     (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"coursify/internal/config"
	"coursify/internal/storage"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь
	// не найден. Эти случаи намеренно неразличимы, чтобы не допускать
	// перебора существующих аккаунтов. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — access-токен некорректен по формату/подписи. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия access-токена истёк. Отдельный код
	// позволяет клиенту запустить refresh вместо повторного логина. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidRefreshToken — refresh-токен не найден в сторе, просрочен,
	// подделан или принадлежит перезаписанной сессии. HTTP 403.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrEmailTaken — e-mail уже занят другим пользователем. HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrEmptyName — имя пустое. HTTP 400.
	ErrEmptyName = errors.New("name is empty")

	// ErrInvalidRole — роль вне закрытого множества student|instructor. HTTP 400.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptyTitle — у курса отсутствует название или описание. HTTP 400.
	ErrEmptyTitle = errors.New("title and description are required")

	// ErrCourseNotFound — курс не найден. HTTP 404.
	ErrCourseNotFound = errors.New("course not found")

	// ErrNotCourseOwner — операция над чужим курсом. HTTP 403.
	ErrNotCourseOwner = errors.New("not a course owner")

	// ErrAlreadyEnrolled — повторная запись на курс. HTTP 400.
	ErrAlreadyEnrolled = errors.New("already enrolled")
)

// Service описывает бизнес-логику сервиса.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}
