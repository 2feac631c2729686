package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"DG_DB_HOST":     "localhost",
		"DG_DB_NAME":     "dongrigo",
		"DG_DB_USER":     "dongrigo",
		"DG_DB_PASSWORD": "secret",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DefaultLang != "ko" {
		t.Errorf("DefaultLang = %q, ожидается ko", cfg.DefaultLang)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.AdminUsername != "admin" {
		t.Errorf("AdminUsername = %q, ожидается admin", cfg.AdminUsername)
	}
	if cfg.LocalLoginEnabled() {
		t.Error("LocalLoginEnabled() = true без хеша пароля и секрета")
	}
	if cfg.JWTTTL != 12*time.Hour {
		t.Errorf("JWTTTL = %v, ожидается 12h", cfg.JWTTTL)
	}
	if cfg.MediaBackend != MediaBackendLocal {
		t.Errorf("MediaBackend = %q, ожидается local", cfg.MediaBackend)
	}
	if cfg.MediaBaseURL != "/media" {
		t.Errorf("MediaBaseURL = %q, ожидается /media", cfg.MediaBaseURL)
	}
	if cfg.CacheSize != 256 {
		t.Errorf("CacheSize = %d, ожидается 256", cfg.CacheSize)
	}
	if cfg.SeedFixturePath != "fixtures/prod_seed.json" {
		t.Errorf("SeedFixturePath = %q", cfg.SeedFixturePath)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["DG_PORT"] = "8080"
	envs["DG_LOG_LEVEL"] = "debug"
	envs["DG_LOG_FORMAT"] = "text"
	envs["DG_DEFAULT_LANG"] = "en"
	envs["DG_DB_SSL_MODE"] = "require"
	envs["DG_ADMIN_PASSWORD_HASH"] = "$2a$10$abcdefghijklmnopqrstuu"
	envs["DG_JWT_SECRET"] = strings.Repeat("s", 32)
	envs["DG_CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example"
	envs["DG_MEDIA_BACKEND"] = "s3"
	envs["DG_S3_BUCKET"] = "media"
	envs["DG_S3_USE_PATH_STYLE"] = "true"
	envs["DG_MEDIA_BASE_URL"] = "https://cdn.example/media/"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.DefaultLang != "en" {
		t.Errorf("DefaultLang = %q, ожидается en", cfg.DefaultLang)
	}
	if !cfg.LocalLoginEnabled() {
		t.Error("LocalLoginEnabled() = false при заданных хеше и секрете")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.S3UsePathStyle {
		t.Error("S3UsePathStyle = false, ожидается true")
	}
	if cfg.MediaBaseURL != "https://cdn.example/media" {
		t.Errorf("MediaBaseURL = %q, ожидается без завершающего слэша", cfg.MediaBaseURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for key := range minimalEnvs() {
		t.Run(key, func(t *testing.T) {
			setEnvs(t, minimalEnvs())
			t.Setenv(key, "")

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() не вернул ошибку при отсутствии %s", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("ошибка %q не содержит имя переменной %s", err, key)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"порт не число", "DG_PORT", "abc"},
		{"порт вне диапазона", "DG_PORT", "70000"},
		{"уровень логирования", "DG_LOG_LEVEL", "verbose"},
		{"формат логов", "DG_LOG_FORMAT", "xml"},
		{"язык", "DG_DEFAULT_LANG", "ru"},
		{"ssl mode", "DG_DB_SSL_MODE", "prefer"},
		{"не bcrypt-хеш", "DG_ADMIN_PASSWORD_HASH", "plain-password"},
		{"короткий секрет", "DG_JWT_SECRET", "short"},
		{"некорректный JWKS URL", "DG_JWT_JWKS_URL", "not a url"},
		{"длительность", "DG_JWT_TTL", "12 hours"},
		{"лимит входа", "DG_LOGIN_RATE_LIMIT", "0"},
		{"размер кэша", "DG_CACHE_SIZE", "-1"},
		{"бэкенд медиа", "DG_MEDIA_BACKEND", "ftp"},
		{"s3 без bucket", "DG_MEDIA_BACKEND", "s3"},
		{"path style", "DG_S3_USE_PATH_STYLE", "maybe"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setEnvs(t, minimalEnvs())
			t.Setenv(tc.key, tc.val)

			if _, err := Load(); err == nil {
				t.Errorf("Load() не вернул ошибку для %s=%q", tc.key, tc.val)
			}
		})
	}
}

func TestMigrateURL_EscapesPassword(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5432, DBName: "blog",
		DBUser: "user", DBPassword: "p@ss/word", DBSSLMode: "disable",
	}

	got := cfg.MigrateURL()
	want := "pgx5://user:p%40ss%2Fword@db:5432/blog?sslmode=disable"
	if got != want {
		t.Errorf("MigrateURL() = %q, ожидается %q", got, want)
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , ,b ", []string{"a", "b"}},
	}
	for _, tc := range tests {
		got := parseCSV(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("parseCSV(%q) = %v, ожидается %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("parseCSV(%q)[%d] = %q, ожидается %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}
