package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/dongrigo/internal/config"
	"github.com/bigkaa/dongrigo/internal/database"
	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// setupTestDB запускает PostgreSQL контейнер и применяет миграции.
func setupTestDB(t *testing.T) *pgxpool.Pool {
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

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

func strPtr(s string) *string { return &s }

func TestCountryCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCountryRepository(pool)

	c := &model.Country{Name: "France", Slug: "france", ISOA2: strPtr("FR"), ISOA3: strPtr("FRA")}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if c.ID == 0 || c.CreatedAt.IsZero() {
		t.Fatalf("Create() не заполнил id/created_at: %+v", c)
	}

	dup := &model.Country{Name: "France 2", Slug: "france"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() дубликата slug: ошибка %v, ожидали ErrConflict", err)
	}

	got, err := repo.GetBySlug(ctx, "france")
	if err != nil {
		t.Fatalf("GetBySlug() ошибка: %v", err)
	}
	if got.ISOA3 == nil || *got.ISOA3 != "FRA" {
		t.Errorf("ISOA3 = %v, ожидали FRA", got.ISOA3)
	}

	got.Slug = "french-republic"
	got.ISOA2 = nil
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() ошибка: %v", err)
	}
	again, err := repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if again.Slug != "french-republic" || again.ISOA2 != nil {
		t.Errorf("после Update: slug=%q iso_a2=%v", again.Slug, again.ISOA2)
	}

	taken, err := repo.SlugExists(ctx, "french-republic", 0)
	if err != nil || !taken {
		t.Errorf("SlugExists() = %v, %v; ожидали true", taken, err)
	}
	taken, err = repo.SlugExists(ctx, "french-republic", c.ID)
	if err != nil || taken {
		t.Errorf("SlugExists(exclude self) = %v, %v; ожидали false", taken, err)
	}

	if err := repo.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.GetByID(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() после Delete: %v, ожидали ErrNotFound", err)
	}
}

func TestCountryUpsert_SkipsUnchanged(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewCountryRepository(pool)

	c := &model.Country{ID: 7, Name: "Japan", Slug: "japan"}
	res, err := repo.Upsert(ctx, c)
	if err != nil {
		t.Fatalf("Upsert() ошибка: %v", err)
	}
	if !res.Written || res.PrevSlug != "" {
		t.Errorf("первый Upsert() = %+v, ожидали вставку", res)
	}

	res, err = repo.Upsert(ctx, c)
	if err != nil {
		t.Fatalf("повторный Upsert() ошибка: %v", err)
	}
	if res.Written {
		t.Error("повторный Upsert() без изменений переписал строку")
	}

	c.Slug = "nippon"
	res, err = repo.Upsert(ctx, c)
	if err != nil {
		t.Fatalf("Upsert() со сменой slug ошибка: %v", err)
	}
	if !res.Written || res.PrevSlug != "japan" {
		t.Errorf("Upsert() со сменой slug = %+v, ожидали PrevSlug=japan", res)
	}

	if err := NewSeedRepository(pool).ResetSequences(ctx); err != nil {
		t.Fatalf("ResetSequences() ошибка: %v", err)
	}
	next := &model.Country{Name: "Korea", Slug: "korea"}
	if err := repo.Create(ctx, next); err != nil {
		t.Fatalf("Create() после ResetSequences ошибка: %v", err)
	}
	if next.ID <= 7 {
		t.Errorf("id после ResetSequences = %d, ожидали > 7", next.ID)
	}
}

func TestPostListAndPosition(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepos(pool)

	country := &model.Country{Name: "Italy", Slug: "italy"}
	if err := repos.Countries.Create(ctx, country); err != nil {
		t.Fatalf("Create(country) ошибка: %v", err)
	}

	var ids []int64
	for i := 0; i < 3; i++ {
		day := time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC)
		p := &model.Post{
			CountryID: country.ID, Category: model.CategoryTravel,
			Title: "Rome", Slug: "rome-" + string(rune('a'+i)),
			Content: "Colosseum", IsPublished: true, PublishedAt: &day,
		}
		if err := repos.Posts.Create(ctx, p); err != nil {
			t.Fatalf("Create(post) ошибка: %v", err)
		}
		ids = append(ids, p.ID)
	}

	f := model.PostFilter{CountryID: &country.ID, Category: model.CategoryTravel, PublishedOnly: true}
	posts, err := repos.Posts.List(ctx, f)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("List() вернул %d постов, ожидали 3", len(posts))
	}
	if posts[0].ID != ids[2] {
		t.Errorf("первый id=%d, ожидали самый новый %d", posts[0].ID, ids[2])
	}
	if posts[0].CountrySlug != "italy" {
		t.Errorf("CountrySlug = %q, ожидали italy", posts[0].CountrySlug)
	}

	pos, err := repos.Posts.Position(ctx, f, ids[0])
	if err != nil {
		t.Fatalf("Position() ошибка: %v", err)
	}
	if pos != 2 {
		t.Errorf("Position() = %d, ожидали 2", pos)
	}

	f.Query = "colos"
	n, err := repos.Posts.Count(ctx, f)
	if err != nil || n != 3 {
		t.Errorf("Count(q=colos) = %d, %v; ожидали 3", n, err)
	}
	f.Query = "100%"
	n, err = repos.Posts.Count(ctx, f)
	if err != nil || n != 0 {
		t.Errorf("Count(q=100%%) = %d, %v; ожидали 0", n, err)
	}
}

func TestPostImageAutoOrder(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepos(pool)

	country := &model.Country{Name: "Peru", Slug: "peru"}
	if err := repos.Countries.Create(ctx, country); err != nil {
		t.Fatalf("Create(country) ошибка: %v", err)
	}
	post := &model.Post{CountryID: country.ID, Category: model.CategoryTravel, Title: "Cusco", Slug: "cusco"}
	if err := repos.Posts.Create(ctx, post); err != nil {
		t.Fatalf("Create(post) ошибка: %v", err)
	}

	for _, want := range []int{10, 20} {
		img := &model.PostImage{PostID: post.ID, ImageURL: "/media/a.jpg"}
		if err := repos.Images.Create(ctx, img); err != nil {
			t.Fatalf("Create(image) ошибка: %v", err)
		}
		if img.SortOrder != want {
			t.Errorf("SortOrder = %d, ожидали %d", img.SortOrder, want)
		}
	}

	missing := &model.PostImage{PostID: 9999, ImageURL: "/media/x.jpg"}
	if err := repos.Images.Create(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Create(image) для несуществующего поста: %v, ожидали ErrNotFound", err)
	}
}

func TestSlugHistory(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repos := NewRepos(pool)

	a := &model.Country{Name: "A", Slug: "a-live"}
	b := &model.Country{Name: "B", Slug: "b-live"}
	for _, c := range []*model.Country{a, b} {
		if err := repos.Countries.Create(ctx, c); err != nil {
			t.Fatalf("Create(country) ошибка: %v", err)
		}
	}

	// old-a -> a (валидна), b-live -> a (коллизия с живым slug b),
	// a-live -> a (избыточна), ghost -> 999 (сирота)
	records := []struct {
		slug string
		id   int64
	}{
		{"old-a", a.ID}, {"b-live", a.ID}, {"a-live", a.ID}, {"ghost", 999},
	}
	for _, r := range records {
		if err := repos.History.Record(ctx, model.KindCountry, r.slug, r.id); err != nil {
			t.Fatalf("Record(%s) ошибка: %v", r.slug, err)
		}
	}

	rec, err := repos.History.Lookup(ctx, model.KindCountry, "old-a")
	if err != nil || rec.ItemID != a.ID {
		t.Fatalf("Lookup(old-a) = %+v, %v", rec, err)
	}
	if _, err := repos.History.Lookup(ctx, model.KindTag, "old-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup другого типа: %v, ожидали ErrNotFound", err)
	}

	rows, err := repos.History.ListWithOwners(ctx)
	if err != nil {
		t.Fatalf("ListWithOwners() ошибка: %v", err)
	}
	bySlug := map[string]*model.SlugHistoryRow{}
	for _, row := range rows {
		bySlug[row.OldSlug] = row
	}
	if r := bySlug["old-a"]; !r.ItemExists || r.ItemSlug != "a-live" || r.LiveOwnerID != 0 {
		t.Errorf("old-a: %+v", r)
	}
	if r := bySlug["b-live"]; r.LiveOwnerID != b.ID {
		t.Errorf("b-live: LiveOwnerID = %d, ожидали %d", r.LiveOwnerID, b.ID)
	}
	if r := bySlug["a-live"]; r.ItemSlug != r.OldSlug {
		t.Errorf("a-live: ожидали совпадение с текущим slug, %+v", r)
	}
	if r := bySlug["ghost"]; r.ItemExists {
		t.Errorf("ghost: ItemExists = true")
	}

	// Перепривязка существующего old_slug
	if err := repos.History.Record(ctx, model.KindCountry, "old-a", b.ID); err != nil {
		t.Fatalf("Record(rebind) ошибка: %v", err)
	}
	rec, _ = repos.History.Lookup(ctx, model.KindCountry, "old-a")
	if rec.ItemID != b.ID {
		t.Errorf("после перепривязки ItemID = %d, ожидали %d", rec.ItemID, b.ID)
	}

	if err := repos.History.DeleteForItem(ctx, model.KindCountry, a.ID); err != nil {
		t.Fatalf("DeleteForItem() ошибка: %v", err)
	}
	all, err := repos.History.List(ctx, "")
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("после DeleteForItem осталось %d записей, ожидали 2", len(all))
	}
}

func TestSeedMeta(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSeedRepository(pool)

	if _, err := repo.GetMeta(ctx, "prod_seed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMeta() до записи: %v, ожидали ErrNotFound", err)
	}

	m := &model.SeedMeta{
		Name: "prod_seed", FixturePath: "fixtures/prod_seed.json",
		FixtureSHA256: "abc", Notes: map[string]any{"countries": 3},
	}
	if err := repo.SaveMeta(ctx, m); err != nil {
		t.Fatalf("SaveMeta() ошибка: %v", err)
	}

	got, err := repo.GetMeta(ctx, "prod_seed")
	if err != nil {
		t.Fatalf("GetMeta() ошибка: %v", err)
	}
	if got.FixtureSHA256 != "abc" {
		t.Errorf("FixtureSHA256 = %q, ожидали abc", got.FixtureSHA256)
	}
	if v, ok := got.Notes["countries"].(float64); !ok || v != 3 {
		t.Errorf("Notes[countries] = %v", got.Notes["countries"])
	}
}
