package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coursify/internal/config"
	"coursify/internal/models"
	"coursify/internal/ratelimit"
	"coursify/internal/service"
	"coursify/internal/storage"
	transport "coursify/internal/transport/http"
	"coursify/internal/transport/http/handlers"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// memStorage — потокобезопасная in-memory реализация storage.Storage
// для сквозных тестов HTTP-слоя: реальный роутер, реальный сервис,
// без контейнеров.
type memStorage struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*models.User
	courses     map[uuid.UUID]*models.Course
	enrollments map[uuid.UUID]map[uuid.UUID]bool // courseID -> userID
}

func newMemStorage() *memStorage {
	return &memStorage{
		users:       make(map[uuid.UUID]*models.User),
		courses:     make(map[uuid.UUID]*models.Course),
		enrollments: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (m *memStorage) SaveUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return storage.ErrAlreadyExists
		}
	}

	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStorage) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStorage) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStorage) AttachRefreshToken(_ context.Context, userID uuid.UUID, hash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.RefreshTokenHash = hash
	u.RefreshExpiresAt = expiresAt
	return nil
}

func (m *memStorage) UserByRefreshToken(_ context.Context, hash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hash == "" {
		return nil, storage.ErrNotFound
	}
	for _, u := range m.users {
		if u.RefreshTokenHash == hash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStorage) RotateRefreshToken(_ context.Context, userID uuid.UUID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok || u.RefreshTokenHash != oldHash {
		return false, nil
	}
	u.RefreshTokenHash = newHash
	u.RefreshExpiresAt = expiresAt
	return true, nil
}

func (m *memStorage) ClearRefreshToken(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.RefreshTokenHash == hash {
			u.RefreshTokenHash = ""
			u.RefreshExpiresAt = time.Time{}
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStorage) ClearExpiredSessions(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.RefreshTokenHash != "" && u.RefreshExpiresAt.Before(now) {
			u.RefreshTokenHash = ""
			u.RefreshExpiresAt = time.Time{}
		}
	}
	return nil
}

func (m *memStorage) SaveCourse(_ context.Context, c *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *c
	m.courses[c.ID] = &cp
	return nil
}

func (m *memStorage) CourseByID(_ context.Context, id uuid.UUID) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.courses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStorage) ListCourses(_ context.Context) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Course, 0, len(m.courses))
	for _, c := range m.courses {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStorage) CoursesByInstructor(_ context.Context, instructorID uuid.UUID) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Course{}
	for _, c := range m.courses {
		if c.InstructorID == instructorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStorage) UpdateCourse(_ context.Context, c *models.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.courses[c.ID]; !ok {
		return storage.ErrNotFound
	}
	cp := *c
	m.courses[c.ID] = &cp
	return nil
}

func (m *memStorage) DeleteCourse(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.courses[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.courses, id)
	delete(m.enrollments, id)
	return nil
}

func (m *memStorage) Enroll(_ context.Context, courseID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.courses[courseID]; !ok {
		return storage.ErrNotFound
	}
	if m.enrollments[courseID] == nil {
		m.enrollments[courseID] = make(map[uuid.UUID]bool)
	}
	if m.enrollments[courseID][userID] {
		return storage.ErrAlreadyExists
	}
	m.enrollments[courseID][userID] = true
	return nil
}

func (m *memStorage) EnrolledCourses(_ context.Context, userID uuid.UUID) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []models.Course{}
	for courseID, byUser := range m.enrollments {
		if byUser[userID] {
			if c, ok := m.courses[courseID]; ok {
				out = append(out, *c)
			}
		}
	}
	return out, nil
}

func (m *memStorage) Close() {}

var _ storage.Storage = (*memStorage)(nil)

// testApp собирает реальный роутер поверх in-memory хранилища и miniredis.
type testApp struct {
	router http.Handler
	st     *memStorage
}

func newTestApp(t *testing.T, mutate func(*config.Config)) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		Auth: config.AuthConfig{
			AccessSecret:    "flow-access-secret",
			RefreshSecret:   "flow-refresh-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
			Issuer:          "coursify",
			RotateRefresh:   true,
		},
		Cookie: config.CookieConfig{
			Name:     "refresh_token",
			Path:     "/api/auth",
			SameSite: "strict",
		},
		CORS: config.CORSConfig{AllowedOrigin: "http://localhost:3000"},
		RateLimit: config.RateLimitConfig{
			Register: config.RateLimitRule{Max: 100, Window: time.Minute},
			Login:    config.RateLimitRule{Max: 100, Window: time.Minute},
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	st := newMemStorage()
	svc := service.New(st, cfg.Auth)
	h := handlers.New(svc, cfg.Cookie, cfg.Auth.RefreshTokenTTL)

	var ready atomic.Bool
	ready.Store(true)

	router := transport.NewRouter(svc, h, ratelimit.New(rdb, ""), transport.Options{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout:   5 * time.Second,
		BasePath:  "/api",
		CORS:      cfg.CORS,
		RateLimit: cfg.RateLimit,
		Ready:     &ready,
	})

	return &testApp{router: router, st: st}
}

type reqOpt func(*http.Request)

func withBearer(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) { r.AddCookie(c) }
}

func (a *testApp) do(t *testing.T, method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "192.0.2.1:40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), into))
}

func errCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, rr, &env)
	return env.Error.Code
}

func refreshCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatal("refresh_token cookie not set")
	return nil
}

type authBody struct {
	Account struct {
		ID    uuid.UUID `json:"id"`
		Name  string    `json:"name"`
		Email string    `json:"email"`
		Role  string    `json:"role"`
	} `json:"account"`
	AccessToken string `json:"accessToken"`
}

func (a *testApp) register(t *testing.T, name, email, role string) (authBody, *http.Cookie) {
	t.Helper()

	rr := a.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": "secret1", "role": role,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var out authBody
	decodeBody(t, rr, &out)
	return out, refreshCookie(t, rr)
}

func TestAuthFlow_Register_Refresh_Logout(t *testing.T) {
	app := newTestApp(t, nil)

	out, cookie := app.register(t, "Alice", "Alice@Example.com", "student")
	require.Equal(t, "alice@example.com", out.Account.Email)
	require.Equal(t, "student", out.Account.Role)
	require.NotEmpty(t, out.AccessToken)

	require.True(t, cookie.HttpOnly)
	require.Equal(t, "/api/auth", cookie.Path)
	require.NotEmpty(t, cookie.Value)

	// Refresh по cookie: новый access + ротация refresh.
	rr := app.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var refreshed struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	decodeBody(t, rr, &refreshed)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEmpty(t, refreshed.RefreshToken)

	rotated := refreshCookie(t, rr)
	require.NotEqual(t, cookie.Value, rotated.Value)

	// Предыдущий токен отозван ротацией.
	rr = app.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookie(cookie))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "invalid_refresh", errCode(t, rr))

	// Logout по актуальному токену.
	rr = app.do(t, http.MethodPost, "/api/auth/logout", nil, withCookie(rotated))
	require.Equal(t, http.StatusOK, rr.Code)

	cleared := refreshCookie(t, rr)
	require.Empty(t, cleared.Value)
	require.Less(t, cleared.MaxAge, 0)

	// После logout сессии нет.
	rr = app.do(t, http.MethodPost, "/api/auth/refresh", nil, withCookie(rotated))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAuthFlow_RefreshViaBody(t *testing.T) {
	app := newTestApp(t, nil)

	_, cookie := app.register(t, "Bob", "bob@example.com", "student")

	// Body-режим для клиентов без cookie.
	rr := app.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refreshToken": cookie.Value,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var refreshed struct {
		RefreshToken string `json:"refreshToken"`
	}
	decodeBody(t, rr, &refreshed)
	require.NotEmpty(t, refreshed.RefreshToken)
}

func TestRefresh_MissingCredential(t *testing.T) {
	app := newTestApp(t, nil)

	rr := app.do(t, http.MethodPost, "/api/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "auth_missing", errCode(t, rr))
}

func TestLogout_WithoutCredential_NoContent(t *testing.T) {
	app := newTestApp(t, nil)

	rr := app.do(t, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRegister_Validation_And_Conflict(t *testing.T) {
	app := newTestApp(t, nil)

	rr := app.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "X", "email": "not-an-email", "password": "secret1", "role": "student",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_argument", errCode(t, rr))

	rr = app.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "X", "email": "x@e.com", "password": "secret1", "role": "admin",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	app.register(t, "Carol", "carol@example.com", "student")

	// Дубликат, отличающийся только регистром.
	rr = app.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Carol2", "email": "CAROL@example.com", "password": "secret1", "role": "student",
	})
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "already_exists", errCode(t, rr))
}

func TestLogin_OkAndFailures(t *testing.T) {
	app := newTestApp(t, nil)

	app.register(t, "Dave", "dave@example.com", "instructor")

	rr := app.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "dave@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out authBody
	decodeBody(t, rr, &out)
	require.Equal(t, "instructor", out.Account.Role)
	require.NotEmpty(t, out.AccessToken)

	// Неверный пароль и незнакомый email неразличимы.
	rr = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "dave@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthenticated", errCode(t, rr))

	rr = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ghost@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "unauthenticated", errCode(t, rr))

	// Пустые поля — 400, а не 401.
	rr = app.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "dave@example.com",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMe(t *testing.T) {
	app := newTestApp(t, nil)

	out, _ := app.register(t, "Grace", "grace@example.com", "student")

	rr := app.do(t, http.MethodGet, "/api/auth/me", nil, withBearer(out.AccessToken))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var me struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
		Role  string    `json:"role"`
	}
	decodeBody(t, rr, &me)
	require.Equal(t, out.Account.ID, me.ID)
	require.Equal(t, "grace@example.com", me.Email)
	require.Equal(t, "student", me.Role)

	rr = app.do(t, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "auth_missing", errCode(t, rr))
}

func TestCourses_EndToEnd(t *testing.T) {
	app := newTestApp(t, nil)

	instructor, _ := app.register(t, "Ivan", "ivan@example.com", "instructor")
	student, _ := app.register(t, "Sam", "sam@example.com", "student")

	// Каталог публичен и пока пуст.
	rr := app.do(t, http.MethodGet, "/api/courses", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	// Студенту нельзя создавать курсы.
	rr = app.do(t, http.MethodPost, "/api/courses/instructor", map[string]string{
		"title": "Hack", "description": "nope",
	}, withBearer(student.AccessToken))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Equal(t, "forbidden", errCode(t, rr))

	// Создание курса преподавателем.
	rr = app.do(t, http.MethodPost, "/api/courses/instructor", map[string]string{
		"title": "Go Basics", "description": "Intro",
	}, withBearer(instructor.AccessToken))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var course struct {
		ID           uuid.UUID `json:"id"`
		Title        string    `json:"title"`
		InstructorID uuid.UUID `json:"instructor_id"`
	}
	decodeBody(t, rr, &course)
	require.Equal(t, instructor.Account.ID, course.InstructorID)

	// Без токена защищённые маршруты закрыты.
	rr = app.do(t, http.MethodPost, "/api/courses/"+course.ID.String()+"/enroll", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "auth_missing", errCode(t, rr))

	// Запись студента на курс.
	rr = app.do(t, http.MethodPost, "/api/courses/"+course.ID.String()+"/enroll", nil,
		withBearer(student.AccessToken))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Повторная запись.
	rr = app.do(t, http.MethodPost, "/api/courses/"+course.ID.String()+"/enroll", nil,
		withBearer(student.AccessToken))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_argument", errCode(t, rr))

	// Мои курсы студента.
	rr = app.do(t, http.MethodGet, "/api/courses/me/enrolled", nil, withBearer(student.AccessToken))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "Go Basics"))

	// Обновление и удаление — только владельцем.
	other, _ := app.register(t, "Eve", "eve@example.com", "instructor")
	rr = app.do(t, http.MethodPut, "/api/courses/instructor/"+course.ID.String(), map[string]string{
		"title": "Stolen",
	}, withBearer(other.AccessToken))
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = app.do(t, http.MethodPut, "/api/courses/instructor/"+course.ID.String(), map[string]string{
		"title": "Go Basics 2",
	}, withBearer(instructor.AccessToken))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = app.do(t, http.MethodDelete, "/api/courses/instructor/"+course.ID.String(), nil,
		withBearer(instructor.AccessToken))
	require.Equal(t, http.StatusOK, rr.Code)

	// Удалённый курс не найден.
	rr = app.do(t, http.MethodDelete, "/api/courses/instructor/"+course.ID.String(), nil,
		withBearer(instructor.AccessToken))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", errCode(t, rr))

	// Кривой id в пути.
	rr = app.do(t, http.MethodPost, "/api/courses/not-a-uuid/enroll", nil,
		withBearer(student.AccessToken))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.RateLimit.Login = config.RateLimitRule{Max: 2, Window: time.Minute}
	})

	app.register(t, "Fred", "fred@example.com", "student")

	body := map[string]string{"email": "fred@example.com", "password": "wrong"}
	for i := 0; i < 2; i++ {
		rr := app.do(t, http.MethodPost, "/api/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr := app.do(t, http.MethodPost, "/api/auth/login", body)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "rate_limited", errCode(t, rr))
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	rr := app.do(t, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = app.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = app.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}
