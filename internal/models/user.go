package models

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль пользователя. Закрытый enum: роль валидируется при регистрации
// и после создания учётной записи не меняется.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
)

// ParseRole нормализует и проверяет строковое представление роли.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleStudent:
		return RoleStudent, true
	case RoleInstructor:
		return RoleInstructor, true
	default:
		return "", false
	}
}

// User — модель пользователя в системе.
//
// Поле RefreshTokenHash хранит SHA-256 хэш текущего refresh-токена:
// у аккаунта ровно одна активная сессия, логин в другом месте перезаписывает
// её. Пустая строка означает отсутствие активной сессии.
type User struct {
	ID               uuid.UUID
	Name             string
	Email            string
	PasswordHash     string
	Role             Role
	RefreshTokenHash string
	RefreshExpiresAt time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
