package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("запись фикстуры: %v", err)
	}
	return path
}

func newSeed(m *memStore) *SeedService {
	return NewSeedService(m, nil, "/media", testLogger())
}

func TestSeed_LoadsAndSkipsSameHash(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	path := writeFixture(t, "prod.json", fixtureJSON)
	svc := newSeed(m)

	res, err := svc.Seed(ctx, SeedOptions{FixturePath: path})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if res.Skipped || res.Records != 5 || res.Written != 5 {
		t.Fatalf("первая загрузка = %+v", res)
	}
	if len(m.st.countries) != 1 || len(m.st.posts) != 1 || len(m.st.images) != 2 {
		t.Errorf("загружено стран=%d постов=%d изображений=%d", len(m.st.countries), len(m.st.posts), len(m.st.images))
	}
	if tags := m.st.postTags[10]; len(tags) != 1 || tags[0] != 3 {
		t.Errorf("теги поста = %v", tags)
	}
	meta := m.st.seed[SeedName]
	if meta.FixtureSHA256 != res.Hash || meta.FixturePath != path {
		t.Errorf("seed_meta = %+v", meta)
	}
	if len(m.st.history) != 0 {
		t.Errorf("первая загрузка записала историю: %+v", m.st.history)
	}

	writes, txs := m.writes, m.txCount
	res, err = svc.Seed(ctx, SeedOptions{FixturePath: path})
	if err != nil {
		t.Fatalf("повторный Seed: %v", err)
	}
	if !res.Skipped || m.writes != writes || m.txCount != txs {
		t.Errorf("повторная загрузка не пропущена: %+v", res)
	}
}

func TestSeed_ForceWritesNothingUnchanged(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	path := writeFixture(t, "prod.json", fixtureJSON)
	svc := newSeed(m)

	if _, err := svc.Seed(ctx, SeedOptions{FixturePath: path}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	res, err := svc.Seed(ctx, SeedOptions{FixturePath: path, Force: true})
	if err != nil {
		t.Fatalf("Seed(force): %v", err)
	}
	if res.Skipped || res.Written != 0 || res.Renamed != 0 {
		t.Errorf("Force на неизменной фикстуре = %+v", res)
	}
}

func TestSeed_RenameRecordsHistory(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	svc := newSeed(m)

	if _, err := svc.Seed(ctx, SeedOptions{FixturePath: writeFixture(t, "a.json", fixtureJSON)}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	renamed := strings.Replace(fixtureJSON, `"slug": "onsen"`, `"slug": "onsen-trip"`, 1)
	res, err := svc.Seed(ctx, SeedOptions{FixturePath: writeFixture(t, "b.json", renamed)})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if res.Written != 1 || res.Renamed != 1 {
		t.Errorf("Written=%d Renamed=%d", res.Written, res.Renamed)
	}
	if got := m.historyFor(model.KindPost); got["onsen"] != 10 {
		t.Errorf("история постов = %v", got)
	}

	r, err := NewResolver(m, testLogger()).Resolve(ctx, model.KindPost, "onsen")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.RedirectTo != "/japan/my-log/onsen-trip/" {
		t.Errorf("RedirectTo = %q", r.RedirectTo)
	}
}

func TestSeed_WipeAndIntegrity(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addCountry(50, "Old", "old")
	svc := NewSeedService(m, NewIntegrityService(m, testLogger()), "/media", testLogger())

	res, err := svc.Seed(ctx, SeedOptions{FixturePath: writeFixture(t, "prod.json", fixtureJSON), Wipe: true})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if _, ok := m.st.countries[50]; ok {
		t.Error("Wipe не удалил старый контент")
	}
	if res.Integrity == nil || res.IntegrityErr != nil {
		t.Fatalf("Integrity = %+v, err = %v", res.Integrity, res.IntegrityErr)
	}
	if res.Integrity.Fixable() != 0 {
		t.Errorf("фикстура требует исправлений: %+v", res.Integrity.Changes)
	}
}

func TestSeed_InvalidFixtureRollsBack(t *testing.T) {
	ctx := context.Background()
	m := newMemStore()
	m.addCountry(1, "Japan", "japan")
	bad := `[{"model": "blog.post", "pk": 10, "fields": {"country": 99, "title": "Orphan", "slug": "orphan"}}]`

	if _, err := newSeed(m).Seed(ctx, SeedOptions{FixturePath: writeFixture(t, "bad.json", bad)}); err == nil {
		t.Fatal("ожидалась ошибка для поста без страны")
	}
	if len(m.st.posts) != 0 || len(m.st.seed) != 0 {
		t.Errorf("частичная загрузка не откатена: posts=%d seed=%d", len(m.st.posts), len(m.st.seed))
	}
}

func TestSeed_MissingFile(t *testing.T) {
	_, err := newSeed(newMemStore()).Seed(context.Background(), SeedOptions{FixturePath: filepath.Join(t.TempDir(), "nope.json")})
	if err == nil {
		t.Fatal("ожидалась ошибка чтения файла")
	}
}

func TestRebuild_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	if _, err := newSeed(src).Seed(ctx, SeedOptions{FixturePath: writeFixture(t, "prod.json", fixtureJSON)}); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	out := filepath.Join(t.TempDir(), "rebuilt.json")
	n, err := newSeed(src).Rebuild(ctx, out, 2)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 5 {
		t.Errorf("Rebuild записал %d записей", n)
	}

	// Пересобранная фикстура загружается в пустую базу без потерь
	dst := newMemStore()
	if _, err := newSeed(dst).Seed(ctx, SeedOptions{FixturePath: out}); err != nil {
		t.Fatalf("Seed(rebuilt): %v", err)
	}
	if got, want := dst.st.images[7], src.st.images[7]; got.ImageURL != want.ImageURL || got.StorageKey != want.StorageKey {
		t.Errorf("изображение: %+v != %+v", got, want)
	}
	if got, want := dst.st.posts[10], src.st.posts[10]; got.Slug != want.Slug || !sameDate(got.PublishedAt, want.PublishedAt) {
		t.Errorf("пост: %+v != %+v", got, want)
	}
	if tags := dst.st.postTags[10]; len(tags) != 1 || tags[0] != 3 {
		t.Errorf("теги поста = %v", tags)
	}
}
