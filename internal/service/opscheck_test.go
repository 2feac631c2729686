package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/bigkaa/dongrigo/internal/config"
	"github.com/bigkaa/dongrigo/internal/database"
	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// fakeMedia — media.Store с управляемым Ping.
type fakeMedia struct {
	pingErr error
}

func (f *fakeMedia) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
	return "/media/" + key, nil
}
func (f *fakeMedia) Delete(context.Context, string) error { return nil }
func (f *fakeMedia) Ping(context.Context) error          { return f.pingErr }
func (f *fakeMedia) Backend() string                     { return config.MediaBackendLocal }

func opsConfig(t *testing.T) *config.Config {
	return &config.Config{
		LogFormat:          "json",
		DBName:             "dongrigo",
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		AdminPasswordHash:  "$2a$10$hash",
		CORSAllowedOrigins: []string{"https://admin.example.com"},
		MediaBackend:       config.MediaBackendLocal,
		MediaDir:           t.TempDir(),
		SeedFixturePath:    writeFixture(t, "prod.json", "[]"),
	}
}

func healthyProbes(m *memStore) OpsProbes {
	return OpsProbes{
		PingDB:     func(context.Context) error { return nil },
		Migrations: func() (database.MigrationState, error) { return database.MigrationState{Current: 1, Latest: 1}, nil },
		Seed:       m.Repos().Seed,
		Media:      &fakeMedia{},
	}
}

func itemsByKey(r *OpsReport) map[string]OpsItem {
	out := make(map[string]OpsItem, len(r.Items))
	for _, it := range r.Items {
		out[it.Key] = it
	}
	return out
}

func TestOpsCheck_AllOK(t *testing.T) {
	m := newMemStore()
	m.st.seed[SeedName] = model.SeedMeta{Name: SeedName, FixturePath: "fixtures/prod_seed.json", FixtureSHA256: "0123456789abcdef0123"}

	report := NewOpsChecker(opsConfig(t), healthyProbes(m), testLogger()).Run(context.Background())
	if report.HasErrors() || report.Summary.Warn != 0 {
		t.Fatalf("ожидались только OK: %+v", report.Items)
	}
	if report.Summary.OK != len(report.Items) {
		t.Errorf("Summary = %+v, пунктов %d", report.Summary, len(report.Items))
	}

	wantOrder := []string{"app.version", "env.DG_JWT_SECRET", "http.cors", "media.credentials", "media.ping",
		"db.connection", "db.migrations", "seed.fixture", "seed.meta"}
	if len(report.Items) != len(wantOrder) {
		t.Fatalf("пункты = %+v", report.Items)
	}
	for i, key := range wantOrder {
		if report.Items[i].Key != key {
			t.Errorf("пункт %d = %s, ожидался %s", i, report.Items[i].Key, key)
		}
	}
	if got := itemsByKey(report)["seed.meta"].Meta["sha256"]; got != "0123456789ab..." {
		t.Errorf("sha256 = %v", got)
	}
}

func TestOpsCheck_Problems(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(cfg *config.Config, p *OpsProbes)
		key        string
		wantStatus string
	}{
		{
			name:       "хеш пароля без секрета",
			mutate:     func(cfg *config.Config, _ *OpsProbes) { cfg.JWTSecret = "" },
			key:        "env.DG_JWT_SECRET",
			wantStatus: OpsError,
		},
		{
			name: "нет ни секрета, ни JWKS",
			mutate: func(cfg *config.Config, _ *OpsProbes) {
				cfg.JWTSecret, cfg.AdminPasswordHash = "", ""
			},
			key:        "env.DG_JWT_SECRET",
			wantStatus: OpsWarn,
		},
		{
			name:       "пустой CORS",
			mutate:     func(cfg *config.Config, _ *OpsProbes) { cfg.CORSAllowedOrigins = nil },
			key:        "http.cors",
			wantStatus: OpsWarn,
		},
		{
			name: "S3 с одним ключом",
			mutate: func(cfg *config.Config, _ *OpsProbes) {
				cfg.MediaBackend, cfg.S3Bucket, cfg.S3AccessKey = config.MediaBackendS3, "media", "AKIA"
			},
			key:        "media.credentials",
			wantStatus: OpsError,
		},
		{
			name:       "S3 без ключей",
			mutate:     func(cfg *config.Config, _ *OpsProbes) { cfg.MediaBackend = config.MediaBackendS3 },
			key:        "media.credentials",
			wantStatus: OpsWarn,
		},
		{
			name: "нет каталога медиа",
			mutate: func(cfg *config.Config, _ *OpsProbes) {
				cfg.MediaDir = filepath.Join(cfg.MediaDir, "missing")
			},
			key:        "media.credentials",
			wantStatus: OpsWarn,
		},
		{
			name:       "медиа недоступно",
			mutate:     func(_ *config.Config, p *OpsProbes) { p.Media = &fakeMedia{pingErr: errStorage} },
			key:        "media.ping",
			wantStatus: OpsError,
		},
		{
			name:       "БД недоступна",
			mutate:     func(_ *config.Config, p *OpsProbes) { p.PingDB = func(context.Context) error { return errStorage } },
			key:        "db.connection",
			wantStatus: OpsError,
		},
		{
			name:       "нет подключения к БД",
			mutate:     func(_ *config.Config, p *OpsProbes) { p.PingDB = nil },
			key:        "db.migrations",
			wantStatus: OpsWarn,
		},
		{
			name: "непримененные миграции",
			mutate: func(_ *config.Config, p *OpsProbes) {
				p.Migrations = func() (database.MigrationState, error) { return database.MigrationState{Current: 1, Latest: 3}, nil }
			},
			key:        "db.migrations",
			wantStatus: OpsError,
		},
		{
			name: "dirty миграция",
			mutate: func(_ *config.Config, p *OpsProbes) {
				p.Migrations = func() (database.MigrationState, error) { return database.MigrationState{Current: 1, Latest: 1, Dirty: true}, nil }
			},
			key:        "db.migrations",
			wantStatus: OpsError,
		},
		{
			name: "ошибка чтения миграций",
			mutate: func(_ *config.Config, p *OpsProbes) {
				p.Migrations = func() (database.MigrationState, error) { return database.MigrationState{}, errors.New("нет таблицы") }
			},
			key:        "db.migrations",
			wantStatus: OpsWarn,
		},
		{
			name:       "нет фикстуры",
			mutate:     func(cfg *config.Config, _ *OpsProbes) { cfg.SeedFixturePath = filepath.Join(cfg.MediaDir, "nope.json") },
			key:        "seed.fixture",
			wantStatus: OpsWarn,
		},
		{
			name:       "нет seed_meta",
			mutate:     func(*config.Config, *OpsProbes) {},
			key:        "seed.meta",
			wantStatus: OpsWarn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := opsConfig(t)
			probes := healthyProbes(newMemStore())
			tt.mutate(cfg, &probes)

			report := NewOpsChecker(cfg, probes, testLogger()).Run(context.Background())
			item, ok := itemsByKey(report)[tt.key]
			if !ok {
				t.Fatalf("нет пункта %s: %+v", tt.key, report.Items)
			}
			if item.Status != tt.wantStatus {
				t.Errorf("%s = %s (%s), ожидалось %s", tt.key, item.Status, item.Message, tt.wantStatus)
			}
			if got := report.HasErrors(); got != (report.Summary.Error > 0) {
				t.Errorf("HasErrors() = %v", got)
			}
		})
	}
}

func TestOpsCheck_JWKS(t *testing.T) {
	cfg := opsConfig(t)
	cfg.JWTSecret, cfg.AdminPasswordHash = "", ""
	cfg.JWTJWKSURL = "https://idp.example.com/jwks"

	items := itemsByKey(NewOpsChecker(cfg, healthyProbes(newMemStore()), testLogger()).Run(context.Background()))
	if items["env.DG_JWT_SECRET"].Status != OpsOK || items["auth.jwks"].Status != OpsOK {
		t.Errorf("пункты = %+v", items)
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("abc"); got != "abc" {
		t.Errorf("ShortHash(abc) = %q", got)
	}
	if got := ShortHash("0123456789abcdef"); got != "0123456789ab..." {
		t.Errorf("ShortHash = %q", got)
	}
}
