package database

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/dongrigo/internal/config"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("dongrigo_test"),
		postgres.WithUsername("dongrigo"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("DG_DB_HOST", host)
	t.Setenv("DG_DB_PORT", port.Port())
	t.Setenv("DG_DB_NAME", "dongrigo_test")
	t.Setenv("DG_DB_USER", "dongrigo")
	t.Setenv("DG_DB_PASSWORD", "test-password")
	t.Setenv("DG_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestLatestVersion проверяет чтение последней встроенной миграции без БД.
func TestLatestVersion(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("iofs.New() вернул ошибку: %v", err)
	}
	defer src.Close()

	got, err := latestVersion(src)
	if err != nil {
		t.Fatalf("latestVersion() вернул ошибку: %v", err)
	}
	if got != 1 {
		t.Errorf("latestVersion() = %d, ожидали 1", got)
	}
}

func TestMigrationState_Pending(t *testing.T) {
	tests := []struct {
		state MigrationState
		want  bool
	}{
		{MigrationState{Current: 0, Latest: 1}, true},
		{MigrationState{Current: 1, Latest: 1}, false},
		{MigrationState{Current: 2, Latest: 1}, false},
	}
	for _, tc := range tests {
		if got := tc.state.Pending(); got != tc.want {
			t.Errorf("%+v.Pending() = %v, ожидали %v", tc.state, got, tc.want)
		}
	}
}

// TestConnect проверяет подключение к PostgreSQL через pgxpool.
func TestConnect(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("pool.Ping() вернул ошибку: %v", err)
	}
}

// TestMigrate проверяет применение миграций и статус схемы.
func TestMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	logger := testLogger()

	state, err := MigrationStatus(cfg)
	if err != nil {
		t.Fatalf("MigrationStatus() до миграций вернул ошибку: %v", err)
	}
	if state.Current != 0 || !state.Pending() {
		t.Errorf("до миграций state = %+v, ожидали Current=0 и Pending", state)
	}

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	// Повторное применение — без ошибки (ErrNoChange)
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	state, err = MigrationStatus(cfg)
	if err != nil {
		t.Fatalf("MigrationStatus() вернул ошибку: %v", err)
	}
	if state.Pending() || state.Dirty || state.Current != state.Latest {
		t.Errorf("после миграций state = %+v", state)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	tables := []string{
		"countries",
		"posts",
		"post_images",
		"tags",
		"post_tags",
		"slug_history",
		"seed_meta",
	}
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx,
			`SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("Ошибка проверки таблицы %s: %v", table, err)
		}
		if !exists {
			t.Errorf("Таблица %s не создана", table)
		}
	}
}

// TestReadinessChecker проверяет ReadinessChecker.
func TestReadinessChecker(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	status, msg := NewReadinessChecker(pool).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() status = %q, message = %q; ожидали ok", status, msg)
	}
}
