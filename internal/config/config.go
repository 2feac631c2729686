// Пакет config — загрузка и валидация конфигурации DongriGo
// из переменных окружения (префикс DG_).
// Используется и HTTP-сервером, и CLI dongrigoctl.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые бэкенды хранения медиафайлов.
const (
	MediaBackendLocal = "local"
	MediaBackendS3    = "s3"
)

// Config содержит все параметры конфигурации DongriGo.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Язык сайта по умолчанию (ko, en)
	DefaultLang string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Администратор и JWT ---

	// Логин администратора для POST /api/v1/auth/token
	AdminUsername string
	// bcrypt-хеш пароля администратора (пустой — локальный вход отключён)
	AdminPasswordHash string
	// Секрет подписи HS256-токенов
	JWTSecret string
	// Issuer выпускаемых и проверяемых токенов
	JWTIssuer string
	// Время жизни выпускаемых токенов
	JWTTTL time.Duration
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// URL JWKS внешнего IdP (опционально, RS256 вместо HS256)
	JWTJWKSURL string
	// Интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// Группы IdP, дающие роль admin / editor (claim groups в токене JWKS)
	JWTAdminGroups  []string
	JWTEditorGroups []string

	// --- HTTP ---

	// Разрешённые origins для admin API
	CORSAllowedOrigins []string
	// Лимит запросов к /api/v1/auth/token в минуту с одного IP
	LoginRateLimit int

	// --- Кэш ---

	// Максимальное количество записей в LRU-кэше
	CacheSize int
	// TTL записей кэша
	CacheTTL time.Duration

	// --- Медиафайлы ---

	// Бэкенд хранения: local, s3
	MediaBackend string
	// Каталог для локального хранения
	MediaDir string
	// Базовый URL, по которому раздаются файлы
	MediaBaseURL string
	// Параметры S3
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Seed ---

	// Путь к fixture по умолчанию для seed_prod и rebuild_seed
	SeedFixturePath string

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("DG_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("DG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("DG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("DG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("DG_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("DG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("DG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.DefaultLang = getEnvDefault("DG_DEFAULT_LANG", "ko")
	if cfg.DefaultLang != "ko" && cfg.DefaultLang != "en" {
		return nil, fmt.Errorf("DG_DEFAULT_LANG: недопустимое значение %q, допустимые: ko, en", cfg.DefaultLang)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("DG_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("DG_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("DG_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("DG_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("DG_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("DG_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("DG_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("DG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Администратор и JWT ---

	cfg.AdminUsername = getEnvDefault("DG_ADMIN_USERNAME", "admin")
	cfg.AdminPasswordHash = getEnvDefault("DG_ADMIN_PASSWORD_HASH", "")
	if cfg.AdminPasswordHash != "" && !strings.HasPrefix(cfg.AdminPasswordHash, "$2") {
		return nil, fmt.Errorf("DG_ADMIN_PASSWORD_HASH: ожидается bcrypt-хеш ($2a$/$2b$/$2y$)")
	}

	cfg.JWTSecret = getEnvDefault("DG_JWT_SECRET", "")
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("DG_JWT_SECRET: минимальная длина 32 символа, получено %d", len(cfg.JWTSecret))
	}

	cfg.JWTIssuer = getEnvDefault("DG_JWT_ISSUER", "dongrigo")

	cfg.JWTTTL, err = getEnvDuration("DG_JWT_TTL", 12*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("DG_JWT_TTL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("DG_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DG_JWT_LEEWAY: %w", err)
	}

	cfg.JWTJWKSURL = getEnvDefault("DG_JWT_JWKS_URL", "")
	if cfg.JWTJWKSURL != "" {
		if _, parseErr := url.ParseRequestURI(cfg.JWTJWKSURL); parseErr != nil {
			return nil, fmt.Errorf("DG_JWT_JWKS_URL: некорректный URL %q", cfg.JWTJWKSURL)
		}
	}

	cfg.JWKSRefreshInterval, err = getEnvDuration("DG_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DG_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTAdminGroups = parseCSV(getEnvDefault("DG_JWT_ADMIN_GROUPS", "dongrigo-admins"))
	cfg.JWTEditorGroups = parseCSV(getEnvDefault("DG_JWT_EDITOR_GROUPS", "dongrigo-editors"))

	// --- HTTP ---

	cfg.CORSAllowedOrigins = parseCSV(getEnvDefault("DG_CORS_ALLOWED_ORIGINS", ""))

	cfg.LoginRateLimit, err = getEnvInt("DG_LOGIN_RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("DG_LOGIN_RATE_LIMIT: %w", err)
	}
	if cfg.LoginRateLimit < 1 {
		return nil, fmt.Errorf("DG_LOGIN_RATE_LIMIT: значение должно быть положительным, получено %d", cfg.LoginRateLimit)
	}

	// --- Кэш ---

	cfg.CacheSize, err = getEnvInt("DG_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("DG_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("DG_CACHE_SIZE: значение должно быть положительным, получено %d", cfg.CacheSize)
	}

	cfg.CacheTTL, err = getEnvDuration("DG_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("DG_CACHE_TTL: %w", err)
	}

	// --- Медиафайлы ---

	cfg.MediaBackend = getEnvDefault("DG_MEDIA_BACKEND", MediaBackendLocal)
	cfg.MediaDir = getEnvDefault("DG_MEDIA_DIR", "./media")
	cfg.MediaBaseURL = strings.TrimRight(getEnvDefault("DG_MEDIA_BASE_URL", "/media"), "/")
	cfg.S3Bucket = getEnvDefault("DG_S3_BUCKET", "")
	cfg.S3Region = getEnvDefault("DG_S3_REGION", "us-east-1")
	cfg.S3Endpoint = getEnvDefault("DG_S3_ENDPOINT", "")
	cfg.S3AccessKey = getEnvDefault("DG_S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvDefault("DG_S3_SECRET_KEY", "")
	cfg.S3UsePathStyle, err = getEnvBool("DG_S3_USE_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("DG_S3_USE_PATH_STYLE: %w", err)
	}

	switch cfg.MediaBackend {
	case MediaBackendLocal:
	case MediaBackendS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("DG_S3_BUCKET: обязателен при DG_MEDIA_BACKEND=s3")
		}
	default:
		return nil, fmt.Errorf("DG_MEDIA_BACKEND: недопустимое значение %q, допустимые: local, s3", cfg.MediaBackend)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("DG_DEPHEALTH_GROUP", "dongrigo")

	cfg.DephealthCheckInterval, err = getEnvDuration("DG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Seed ---

	cfg.SeedFixturePath = getEnvDefault("DG_SEED_FIXTURE", "fixtures/prod_seed.json")

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("DG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("DG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}

// LocalLoginEnabled сообщает, настроен ли вход по логину и паролю (HS256).
func (c *Config) LocalLoginEnabled() bool {
	return c.AdminPasswordHash != "" && c.JWTSecret != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	logger := NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	return logger
}

// NewLogger создаёт slog-логгер с выводом в w.
// CLI пишет логи в stderr, чтобы stdout оставался для отчётов.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает логическое значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
