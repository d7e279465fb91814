package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"coursify/internal/models"
	"coursify/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Интеграционные тесты пакета postgres:
//   - поднимают реальный PostgreSQL через testcontainers-go (postgres:16-alpine);
//   - миграции применяются самим New (goose, embed);
//   - проверяют уникальность email, refresh-сессии (attach/lookup/CAS/clear)
//     и CRUD курсов с записями студентов.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

// startPostgres поднимает временный PostgreSQL и возвращает готовое
// хранилище. Без GO_TEST_INTEGRATION тест пропускается.
func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	st, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st
}

func seedUser(t *testing.T, st *Storage, email string, role models.Role) *models.User {
	t.Helper()

	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: "bcrypt-hash",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.SaveUser(context.Background(), u))
	return u
}

func seedCourse(t *testing.T, st *Storage, instructorID uuid.UUID, title string) *models.Course {
	t.Helper()

	now := time.Now().UTC()
	c := &models.Course{
		ID:           uuid.New(),
		Title:        title,
		Description:  "description",
		InstructorID: instructorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.SaveCourse(context.Background(), c))
	return c
}

func TestIntegration_SaveUser_And_Lookups(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	u := seedUser(t, st, "user@example.com", models.RoleStudent)

	byEmail, err := st.UserByEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, models.RoleStudent, byEmail.Role)
	require.Empty(t, byEmail.RefreshTokenHash)
	require.WithinDuration(t, u.CreatedAt, byEmail.CreatedAt, time.Second)

	byID, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, byID.Email)

	_, err = st.UserByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_SaveUser_DuplicateEmail(t *testing.T) {
	st := startPostgres(t)

	seedUser(t, st, "dup@example.com", models.RoleStudent)

	now := time.Now().UTC()
	err := st.SaveUser(context.Background(), &models.User{
		ID:           uuid.New(),
		Name:         "Other",
		Email:        "dup@example.com",
		PasswordHash: "hash",
		Role:         models.RoleInstructor,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestIntegration_RefreshSession_Lifecycle(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	u := seedUser(t, st, "session@example.com", models.RoleStudent)
	expires := time.Now().UTC().Add(24 * time.Hour)

	require.NoError(t, st.AttachRefreshToken(ctx, u.ID, "hash-1", expires))

	got, err := st.UserByRefreshToken(ctx, "hash-1")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	// Пустой хэш не матчится на аккаунты без сессии.
	_, err = st.UserByRefreshToken(ctx, "")
	require.ErrorIs(t, err, storage.ErrNotFound)

	// CAS-ротация: успешная, затем проигравшая (старый хэш уже не тот).
	rotated, err := st.RotateRefreshToken(ctx, u.ID, "hash-1", "hash-2", expires)
	require.NoError(t, err)
	require.True(t, rotated)

	rotated, err = st.RotateRefreshToken(ctx, u.ID, "hash-1", "hash-3", expires)
	require.NoError(t, err)
	require.False(t, rotated)

	got, err = st.UserByRefreshToken(ctx, "hash-2")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	// Logout идемпотентен: повторный сброс того же хэша не ошибка.
	require.NoError(t, st.ClearRefreshToken(ctx, "hash-2"))
	require.NoError(t, st.ClearRefreshToken(ctx, "hash-2"))

	_, err = st.UserByRefreshToken(ctx, "hash-2")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_AttachRefreshToken_OverwritesSession(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	u := seedUser(t, st, "single@example.com", models.RoleStudent)
	expires := time.Now().UTC().Add(24 * time.Hour)

	require.NoError(t, st.AttachRefreshToken(ctx, u.ID, "old-hash", expires))
	require.NoError(t, st.AttachRefreshToken(ctx, u.ID, "new-hash", expires))

	// Одна активная сессия на аккаунт: старый хэш мёртв.
	_, err := st.UserByRefreshToken(ctx, "old-hash")
	require.ErrorIs(t, err, storage.ErrNotFound)

	got, err := st.UserByRefreshToken(ctx, "new-hash")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
}

func TestIntegration_ClearExpiredSessions(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	expired := seedUser(t, st, "expired@example.com", models.RoleStudent)
	live := seedUser(t, st, "live@example.com", models.RoleStudent)

	now := time.Now().UTC()
	require.NoError(t, st.AttachRefreshToken(ctx, expired.ID, "expired-hash", now.Add(-time.Hour)))
	require.NoError(t, st.AttachRefreshToken(ctx, live.ID, "live-hash", now.Add(time.Hour)))

	require.NoError(t, st.ClearExpiredSessions(ctx, now))

	_, err := st.UserByRefreshToken(ctx, "expired-hash")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByRefreshToken(ctx, "live-hash")
	require.NoError(t, err)
}

func TestIntegration_Courses_CRUD_And_Enrollment(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	instructor := seedUser(t, st, "teacher@example.com", models.RoleInstructor)
	student := seedUser(t, st, "pupil@example.com", models.RoleStudent)

	a := seedCourse(t, st, instructor.ID, "Course A")
	seedCourse(t, st, instructor.ID, "Course B")

	all, err := st.ListCourses(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	mine, err := st.CoursesByInstructor(ctx, instructor.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	got, err := st.CourseByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "Course A", got.Title)

	got.Title = "Course A v2"
	got.UpdatedAt = time.Now().UTC()
	require.NoError(t, st.UpdateCourse(ctx, got))

	got, err = st.CourseByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "Course A v2", got.Title)

	// Запись на курс и конфликты.
	require.NoError(t, st.Enroll(ctx, a.ID, student.ID))
	require.ErrorIs(t, st.Enroll(ctx, a.ID, student.ID), storage.ErrAlreadyExists)
	require.ErrorIs(t, st.Enroll(ctx, uuid.New(), student.ID), storage.ErrNotFound)

	enrolled, err := st.EnrolledCourses(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, enrolled, 1)
	require.Equal(t, a.ID, enrolled[0].ID)

	// Удаление курса каскадом снимает записи.
	require.NoError(t, st.DeleteCourse(ctx, a.ID))
	_, err = st.CourseByID(ctx, a.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	enrolled, err = st.EnrolledCourses(ctx, student.ID)
	require.NoError(t, err)
	require.Empty(t, enrolled)

	require.ErrorIs(t, st.DeleteCourse(ctx, a.ID), storage.ErrNotFound)
}
