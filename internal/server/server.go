// Пакет server — HTTP-сервер DongriGo с graceful shutdown.
// Без TLS: TLS termination на reverse proxy.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	apierrors "github.com/bigkaa/dongrigo/internal/api/errors"
	"github.com/bigkaa/dongrigo/internal/api/handlers"
	"github.com/bigkaa/dongrigo/internal/api/middleware"
	"github.com/bigkaa/dongrigo/internal/config"
	"github.com/bigkaa/dongrigo/internal/domain/rbac"
	uihandlers "github.com/bigkaa/dongrigo/internal/ui/handlers"
	"github.com/bigkaa/dongrigo/internal/ui/i18n"
	"github.com/bigkaa/dongrigo/internal/ui/static"
)

// previewRateLimit — запросов предпросмотра в минуту с одного IP.
const previewRateLimit = 60

// Handlers — обработчики, которые монтирует сервер.
type Handlers struct {
	API    *handlers.APIHandler
	Health *handlers.HealthHandler
	Site   *uihandlers.SiteHandler
}

// Server — HTTP-сервер DongriGo.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
// jwtAuth — проверка токенов admin API (nil отключает admin API целиком).
func New(cfg *config.Config, logger *slog.Logger, h Handlers, jwtAuth *middleware.JWTAuth) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, logger, h, jwtAuth),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты: health и metrics, статика и медиа,
// публичный JSON, admin API под JWT и страницы сайта.
func NewRouter(cfg *config.Config, logger *slog.Logger, h Handlers, jwtAuth *middleware.JWTAuth) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.RequestID)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics опрашиваются напрямую, без proxy
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static.FileSystem())))
	if prefix := mediaPrefix(cfg); prefix != "" {
		router.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.MediaDir))))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			apierrors.NotFound(w, "Маршрут не найден")
		})

		r.With(httprate.Limit(cfg.LoginRateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(apierrors.TooManyRequests),
		)).Post("/auth/token", h.API.IssueToken)

		r.Get("/globe/countries", h.API.GlobeCountries)

		if jwtAuth != nil {
			r.Route("/admin", func(r chi.Router) {
				adminRoutes(r, cfg, h.API, jwtAuth)
			})
		}
	})

	router.Group(func(r chi.Router) {
		r.Use(i18n.Middleware(cfg.DefaultLang))
		r.NotFound(h.Site.NotFound)

		r.Post("/set-language", uihandlers.HandleSetLanguage)
		r.Get("/", h.Site.HandleHome)
		r.Get("/tags", uihandlers.HandleAddSlash)
		r.Get("/tags/", h.Site.HandleTags)
		r.Get("/tags/{slug}", uihandlers.HandleAddSlash)
		r.Get("/tags/{slug}/", h.Site.HandleTag)
		r.Get("/{country}", uihandlers.HandleAddSlash)
		r.Get("/{country}/", h.Site.HandleCountry)
		r.Get("/{country}/{category}", uihandlers.HandleAddSlash)
		r.Get("/{country}/{category}/", h.Site.HandleCountry)
		r.Get("/{country}/{category}/{post}", uihandlers.HandleAddSlash)
		r.Get("/{country}/{category}/{post}/", h.Site.HandleCountry)
	})

	return router
}

// adminRoutes — JSON API администратора. Создание и изменение доступны
// роли editor, удаление только admin.
func adminRoutes(r chi.Router, cfg *config.Config, api *handlers.APIHandler, jwtAuth *middleware.JWTAuth) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposedHeaders:   []string{middleware.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(jwtAuth.Middleware())
	r.Use(middleware.RequireRole(rbac.RoleEditor))

	adminOnly := middleware.RequireRole(rbac.RoleAdmin)

	r.Get("/countries", api.ListCountries)
	r.Post("/countries", api.CreateCountry)
	r.Get("/countries/{id}", api.GetCountry)
	r.Put("/countries/{id}", api.UpdateCountry)
	r.With(adminOnly).Delete("/countries/{id}", api.DeleteCountry)

	r.Get("/posts", api.ListPosts)
	r.Post("/posts", api.CreatePost)
	r.Get("/posts/{id}", api.GetPost)
	r.Put("/posts/{id}", api.UpdatePost)
	r.With(adminOnly).Delete("/posts/{id}", api.DeletePost)
	r.Get("/posts/{id}/images", api.ListPostImages)
	r.Post("/posts/{id}/images", api.UploadPostImage)

	r.With(adminOnly).Delete("/images/{id}", api.DeleteImage)

	r.Get("/tags", api.ListTags)
	r.Post("/tags", api.CreateTag)
	r.Get("/tags/{id}", api.GetTag)
	r.Put("/tags/{id}", api.UpdateTag)
	r.With(adminOnly).Delete("/tags/{id}", api.DeleteTag)

	r.Get("/slug-history", api.ListSlugHistory)

	r.With(httprate.Limit(previewRateLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(apierrors.TooManyRequests),
	)).Post("/preview", api.Preview)
}

// mediaPrefix — путь раздачи локальных медиафайлов ("" — не раздаются).
func mediaPrefix(cfg *config.Config) string {
	if cfg.MediaBackend != config.MediaBackendLocal || !strings.HasPrefix(cfg.MediaBaseURL, "/") {
		return ""
	}
	return strings.TrimRight(cfg.MediaBaseURL, "/")
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
