package storage

import (
	"context"
	"errors"
	"time"

	"coursify/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound — запись не найдена (пользователь/сессия/курс).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/запись на курс).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по нормализованному email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionStorage управляет refresh-сессией пользователя.
// У аккаунта одна активная сессия: хэш текущего refresh-токена хранится
// прямо в записи пользователя.
type SessionStorage interface {
	// AttachRefreshToken безусловно перезаписывает хэш refresh-токена
	// пользователя (login/register).
	AttachRefreshToken(ctx context.Context, userID uuid.UUID, hash string, expiresAt time.Time) error
	// UserByRefreshToken выполняет обратный поиск пользователя по хэшу
	// предъявленного refresh-токена.
	UserByRefreshToken(ctx context.Context, hash string) (*models.User, error)
	// RotateRefreshToken атомарно заменяет хэш oldHash на newHash
	// (compare-and-swap по текущему значению). Возвращает false, если
	// сохранённый хэш уже не равен oldHash — ротацию выиграл кто-то другой.
	RotateRefreshToken(ctx context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) (bool, error)
	// ClearRefreshToken сбрасывает сессию с данным хэшем (logout).
	// Идемпотентна: отсутствие совпадения не является ошибкой.
	ClearRefreshToken(ctx context.Context, hash string) error
	// ClearExpiredSessions сбрасывает все просроченные сессии.
	ClearExpiredSessions(ctx context.Context, now time.Time) error
}

// CourseStorage выполняет операции над курсами и записями на них.
type CourseStorage interface {
	// SaveCourse создает новый курс.
	SaveCourse(ctx context.Context, course *models.Course) error
	// CourseByID находит курс по ID.
	CourseByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	// ListCourses возвращает все курсы.
	ListCourses(ctx context.Context) ([]models.Course, error)
	// CoursesByInstructor возвращает курсы, созданные преподавателем.
	CoursesByInstructor(ctx context.Context, instructorID uuid.UUID) ([]models.Course, error)
	// UpdateCourse сохраняет изменённые поля курса.
	UpdateCourse(ctx context.Context, course *models.Course) error
	// DeleteCourse удаляет курс.
	DeleteCourse(ctx context.Context, id uuid.UUID) error
	// Enroll записывает студента на курс. ErrAlreadyExists — повторная
	// запись, ErrNotFound — курс не существует.
	Enroll(ctx context.Context, courseID, userID uuid.UUID) error
	// EnrolledCourses возвращает курсы, на которые записан студент.
	EnrolledCourses(ctx context.Context, userID uuid.UUID) ([]models.Course, error)
}

// Storage задает контракт работы с БД.
type Storage interface {
	UserStorage
	SessionStorage
	CourseStorage
	Close()
}
