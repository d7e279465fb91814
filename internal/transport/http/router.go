package http

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"coursify/internal/config"
	"coursify/internal/models"
	"coursify/internal/ratelimit"
	"coursify/internal/service"
	"coursify/internal/transport/http/handlers"
	"coursify/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.

	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig

	// Ready — readiness-флаг процесса; /healthz отвечает 503, пока флаг не взведён.
	Ready *atomic.Bool
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, h *handlers.Handlers, limiter *ratelimit.Limiter, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(),            // счётчики/гистограммы HTTP
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	// Cookie с credentials требует точного origin и AllowCredentials.
	root.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{opts.CORS.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Служебные эндпойнты живут на корне вне BasePath.
	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready != nil && !opts.Ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Handle("/metrics", promhttp.Handler())

	// Регистрация маршрутов.
	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, svc, h, limiter, opts)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, svc, h, limiter, opts)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, svc *service.Service, h *handlers.Handlers, limiter *ratelimit.Limiter, opts Options) {
	// auth: register/login за лимитером, refresh/logout — нет.
	r.With(middleware.Limit(limiter, "register", rule(opts.RateLimit.Register))).
		Post("/auth/register", h.Register)
	r.With(middleware.Limit(limiter, "login", rule(opts.RateLimit.Login))).
		Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
	r.Get("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)

	// публичный каталог курсов
	r.Get("/courses", h.ListCourses)

	// защищённые маршруты: Auth обязателен, роль — по маршруту.
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.Auth(svc))

		pr.Get("/auth/me", h.Me)

		pr.With(middleware.RequireRole(models.RoleInstructor)).
			Post("/courses/instructor", h.CreateCourse)
		pr.With(middleware.RequireRole(models.RoleInstructor)).
			Get("/courses/instructor/mine", h.MyCourses)
		pr.With(middleware.RequireRole(models.RoleInstructor)).
			Put("/courses/instructor/{id}", h.UpdateCourse)
		pr.With(middleware.RequireRole(models.RoleInstructor)).
			Delete("/courses/instructor/{id}", h.DeleteCourse)

		pr.With(middleware.RequireRole(models.RoleStudent)).
			Post("/courses/{id}/enroll", h.Enroll)
		pr.With(middleware.RequireRole(models.RoleStudent)).
			Get("/courses/me/enrolled", h.EnrolledCourses)
	})
}

func rule(r config.RateLimitRule) ratelimit.Rule {
	return ratelimit.Rule{Max: r.Max, Window: r.Window}
}
