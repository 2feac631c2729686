// opscheck.go — эксплуатационные проверки перед выкладкой (ops_check).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bigkaa/dongrigo/internal/config"
	"github.com/bigkaa/dongrigo/internal/database"
	"github.com/bigkaa/dongrigo/internal/media"
	"github.com/bigkaa/dongrigo/internal/repository"
)

// Статусы пунктов ops_check.
const (
	OpsOK    = "OK"
	OpsWarn  = "WARN"
	OpsError = "ERROR"
)

// opsTimeout — таймаут каждой сетевой проверки.
const opsTimeout = 5 * time.Second

// OpsItem — результат одной проверки.
type OpsItem struct {
	Key     string         `json:"key"`
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta"`
}

// OpsSummary — количество пунктов по статусам.
type OpsSummary struct {
	OK    int `json:"ok"`
	Warn  int `json:"warn"`
	Error int `json:"error"`
}

// OpsReport — отчёт ops_check.
type OpsReport struct {
	Summary OpsSummary `json:"summary"`
	Items   []OpsItem  `json:"items"`
}

// HasErrors сообщает о наличии пунктов со статусом ERROR.
func (r *OpsReport) HasErrors() bool { return r.Summary.Error > 0 }

func (r *OpsReport) add(key, status, message string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	r.Items = append(r.Items, OpsItem{Key: key, Status: status, Message: message, Meta: meta})
	switch status {
	case OpsOK:
		r.Summary.OK++
	case OpsWarn:
		r.Summary.Warn++
	default:
		r.Summary.Error++
	}
}

// OpsProbes — внешние проверки ops_check. Nil-поле означает,
// что зависимость недоступна (например, не удалось подключиться к БД).
type OpsProbes struct {
	PingDB     func(ctx context.Context) error
	Migrations func() (database.MigrationState, error)
	Seed       repository.SeedRepository
	Media      media.Store
}

// OpsChecker выполняет ops_check.
type OpsChecker struct {
	cfg    *config.Config
	probes OpsProbes
	logger *slog.Logger
}

// NewOpsChecker создаёт OpsChecker.
func NewOpsChecker(cfg *config.Config, probes OpsProbes, logger *slog.Logger) *OpsChecker {
	return &OpsChecker{
		cfg:    cfg,
		probes: probes,
		logger: logger.With(slog.String("component", "ops_check")),
	}
}

// Run выполняет все проверки по порядку: конфигурация, медиа, БД,
// миграции, seed.
func (c *OpsChecker) Run(ctx context.Context) *OpsReport {
	r := &OpsReport{Items: []OpsItem{}}
	c.checkConfig(r)
	c.checkMedia(ctx, r)
	dbOK := c.checkDB(ctx, r)
	c.checkMigrations(r, dbOK)
	c.checkSeed(ctx, r, dbOK)

	c.logger.Debug("ops_check выполнен",
		slog.Int("ok", r.Summary.OK),
		slog.Int("warn", r.Summary.Warn),
		slog.Int("error", r.Summary.Error),
	)
	return r
}

func (c *OpsChecker) checkConfig(r *OpsReport) {
	cfg := c.cfg
	r.add("app.version", OpsOK, "version="+config.Version, map[string]any{
		"log_level":  cfg.LogLevel.String(),
		"log_format": cfg.LogFormat,
	})

	switch {
	case cfg.AdminPasswordHash != "" && cfg.JWTSecret == "":
		r.add("env.DG_JWT_SECRET", OpsError, "DG_ADMIN_PASSWORD_HASH задан, но DG_JWT_SECRET отсутствует.", nil)
	case cfg.JWTSecret != "":
		r.add("env.DG_JWT_SECRET", OpsOK, "DG_JWT_SECRET задан (значение скрыто).", nil)
	case cfg.JWTJWKSURL != "":
		r.add("env.DG_JWT_SECRET", OpsOK, "Локальный вход отключён, токены проверяются через JWKS.", nil)
	default:
		r.add("env.DG_JWT_SECRET", OpsWarn, "Не заданы ни DG_JWT_SECRET, ни DG_JWT_JWKS_URL: admin API недоступен.", nil)
	}

	if cfg.JWTJWKSURL != "" {
		r.add("auth.jwks", OpsOK, "Внешний IdP настроен.", map[string]any{"jwks_url": cfg.JWTJWKSURL})
	}

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.add("http.cors", OpsOK, fmt.Sprintf("%d origin(s) разрешено.", len(cfg.CORSAllowedOrigins)),
			map[string]any{"origins": cfg.CORSAllowedOrigins})
	} else {
		r.add("http.cors", OpsWarn, "DG_CORS_ALLOWED_ORIGINS пуст: admin API доступен только с того же origin.", nil)
	}
}

func (c *OpsChecker) checkMedia(ctx context.Context, r *OpsReport) {
	cfg := c.cfg
	meta := map[string]any{"backend": cfg.MediaBackend}

	switch cfg.MediaBackend {
	case config.MediaBackendS3:
		meta["DG_S3_BUCKET"] = cfg.S3Bucket != ""
		meta["DG_S3_ACCESS_KEY"] = cfg.S3AccessKey != ""
		meta["DG_S3_SECRET_KEY"] = cfg.S3SecretKey != ""
		if (cfg.S3AccessKey == "") != (cfg.S3SecretKey == "") {
			r.add("media.credentials", OpsError, "S3 включён, но задан только один из ключей доступа.", meta)
		} else if cfg.S3AccessKey == "" {
			r.add("media.credentials", OpsWarn, "Ключи S3 не заданы, используется цепочка учётных данных AWS.", meta)
		} else {
			r.add("media.credentials", OpsOK, "S3 включён, ключи заданы.", meta)
		}
	default:
		meta["dir"] = cfg.MediaDir
		if st, err := os.Stat(cfg.MediaDir); err == nil && st.IsDir() {
			r.add("media.credentials", OpsOK, "Локальное хранилище: "+cfg.MediaDir, meta)
		} else {
			r.add("media.credentials", OpsWarn, "Каталог медиа не создан: "+cfg.MediaDir, meta)
		}
	}

	if c.probes.Media == nil {
		r.add("media.ping", OpsWarn, "Хранилище медиа не инициализировано.", nil)
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, opsTimeout)
	defer cancel()
	if err := c.probes.Media.Ping(pingCtx); err != nil {
		r.add("media.ping", OpsError, "Хранилище медиа недоступно.", map[string]any{"error": err.Error()})
		return
	}
	r.add("media.ping", OpsOK, "Хранилище медиа доступно ("+c.probes.Media.Backend()+").", nil)
}

func (c *OpsChecker) checkDB(ctx context.Context, r *OpsReport) bool {
	if c.probes.PingDB == nil {
		r.add("db.connection", OpsError, "Подключение к БД не установлено.", nil)
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, opsTimeout)
	defer cancel()
	if err := c.probes.PingDB(pingCtx); err != nil {
		r.add("db.connection", OpsError, "Подключение к БД не удалось.", map[string]any{"error": err.Error()})
		return false
	}
	r.add("db.connection", OpsOK, "Подключено к БД: "+c.cfg.DBName, nil)
	return true
}

func (c *OpsChecker) checkMigrations(r *OpsReport, dbOK bool) {
	if !dbOK || c.probes.Migrations == nil {
		r.add("db.migrations", OpsWarn, "Состояние миграций не проверено.", nil)
		return
	}
	st, err := c.probes.Migrations()
	if err != nil {
		r.add("db.migrations", OpsWarn, "Не удалось определить состояние миграций.", map[string]any{"error": err.Error()})
		return
	}
	meta := map[string]any{"current": st.Current, "latest": st.Latest, "dirty": st.Dirty}
	switch {
	case st.Dirty:
		r.add("db.migrations", OpsError, fmt.Sprintf("Миграция %d не завершена (dirty).", st.Current), meta)
	case st.Pending():
		r.add("db.migrations", OpsError, fmt.Sprintf("%d непримененных миграций.", st.Latest-st.Current), meta)
	default:
		r.add("db.migrations", OpsOK, "Непримененных миграций нет.", meta)
	}
}

func (c *OpsChecker) checkSeed(ctx context.Context, r *OpsReport, dbOK bool) {
	if _, err := os.Stat(c.cfg.SeedFixturePath); err == nil {
		r.add("seed.fixture", OpsOK, "Фикстура найдена: "+c.cfg.SeedFixturePath, nil)
	} else {
		r.add("seed.fixture", OpsWarn, "Фикстура не найдена: "+c.cfg.SeedFixturePath, nil)
	}

	if !dbOK || c.probes.Seed == nil {
		r.add("seed.meta", OpsWarn, "Проверка seed_meta недоступна.", nil)
		return
	}
	meta, err := c.probes.Seed.GetMeta(ctx, SeedName)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		r.add("seed.meta", OpsWarn, "seed_meta не найдена: идемпотентная загрузка не активна.", nil)
		return
	case err != nil:
		r.add("seed.meta", OpsWarn, "Проверка seed_meta недоступна.", map[string]any{"error": err.Error()})
		return
	}
	if meta.FixtureSHA256 == "" {
		r.add("seed.meta", OpsWarn, "seed_meta без sha256: идемпотентная загрузка не активна.", nil)
		return
	}
	r.add("seed.meta", OpsOK, "seed_meta найдена, идемпотентная загрузка активна.", map[string]any{
		"fixture_path": meta.FixturePath,
		"sha256":       ShortHash(meta.FixtureSHA256),
		"applied_at":   meta.AppliedAt.Format(time.RFC3339),
	})
}

// ShortHash сокращает hex-хеш для вывода: первые 12 символов и "...".
func ShortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12] + "..."
}
