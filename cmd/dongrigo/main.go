// Точка входа DongriGo — HTTP-сервер блога о путешествиях.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL
// и хранилищу медиа, создаёт сервисный слой, публичный сайт, admin API
// и запускает HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/dongrigo/internal/api/handlers"
	"github.com/bigkaa/dongrigo/internal/api/middleware"
	"github.com/bigkaa/dongrigo/internal/config"
	"github.com/bigkaa/dongrigo/internal/database"
	"github.com/bigkaa/dongrigo/internal/media"
	"github.com/bigkaa/dongrigo/internal/repository"
	"github.com/bigkaa/dongrigo/internal/richtext"
	"github.com/bigkaa/dongrigo/internal/server"
	"github.com/bigkaa/dongrigo/internal/service"
	uihandlers "github.com/bigkaa/dongrigo/internal/ui/handlers"
	"github.com/bigkaa/dongrigo/internal/ui/i18n"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("DongriGo запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics.
	// Проверка PostgreSQL идёт через общий пул соединений.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище медиафайлов (local или S3)
	mediaStore, err := media.New(ctx, cfg)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища медиа", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Хранилище медиа готово", slog.String("backend", mediaStore.Backend()))

	// 6. Каталоги переводов
	bundle, err := i18n.Load(cfg.DefaultLang, logger)
	if err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	i18n.SetBundle(bundle)

	// 7. Services
	store := repository.NewStore(pool)
	globeSvc := service.NewGlobeService(store.Repos().Countries, cfg.CacheSize, cfg.CacheTTL, logger)
	contentSvc := service.NewContentService(store, globeSvc, logger)
	imageSvc := service.NewImageService(store, mediaStore, logger)
	boardSvc := service.NewBoardService(store, richtext.NewRenderer(), logger)
	resolver := service.NewResolver(store, logger)
	authSvc := service.NewAuthService(
		cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecret,
		cfg.JWTIssuer, cfg.JWTTTL,
		logger,
	)
	if !authSvc.Enabled() {
		logger.Warn("Локальный вход отключён: не заданы DG_ADMIN_PASSWORD_HASH или DG_JWT_SECRET")
	}

	// 8. JWT middleware: JWKS внешнего IdP или HS256 с локальным секретом
	jwtAuth, err := newJWTAuth(cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Handlers
	h := server.Handlers{
		API: handlers.NewAPIHandler(contentSvc, imageSvc, boardSvc, authSvc, globeSvc, logger),
		Health: handlers.NewHealthHandler(
			database.NewReadinessChecker(pool),
			handlers.NewMediaChecker(mediaStore),
		),
		Site: uihandlers.NewSiteHandler(boardSvc, resolver, logger),
	}

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL, JWKS)
	dephealthSvc, err := service.NewDephealthService(service.DephealthOptions{
		ServiceID:     "dongrigo",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, h, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	logger.Info("DongriGo остановлен")
}

// newJWTAuth выбирает режим проверки токенов admin API.
// nil — ни JWKS, ни секрет не заданы, admin API не монтируется.
func newJWTAuth(cfg *config.Config, logger *slog.Logger) (*middleware.JWTAuth, error) {
	switch {
	case cfg.JWTJWKSURL != "":
		auth, err := middleware.NewJWTAuthJWKS(
			cfg.JWTJWKSURL,
			cfg.JWTIssuer,
			cfg.JWTAdminGroups, cfg.JWTEditorGroups,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			return nil, err
		}
		logger.Info("JWT middleware инициализирован (JWKS)",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
		return auth, nil
	case cfg.JWTSecret != "":
		logger.Info("JWT middleware инициализирован (HS256)",
			slog.String("issuer", cfg.JWTIssuer),
			slog.String("ttl", cfg.JWTTTL.Round(time.Second).String()),
		)
		return middleware.NewJWTAuthHS256(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTLeeway, logger), nil
	default:
		logger.Warn("admin API отключён: не заданы DG_JWT_JWKS_URL и DG_JWT_SECRET")
		return nil, nil
	}
}
