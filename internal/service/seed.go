// seed.go — идемпотентная загрузка фикстуры (seed_prod) и выгрузка
// текущего контента в фикстуру (rebuild_seed).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/repository"
)

// SeedName — имя отметки seed_meta для продуктивной фикстуры.
const SeedName = "prod_seed"

// SeedOptions — параметры seed_prod.
type SeedOptions struct {
	FixturePath string
	// Force — загрузить даже при совпадении хеша
	Force bool
	// Wipe — удалить весь контент перед загрузкой
	Wipe bool
}

// SeedResult — итог seed_prod.
type SeedResult struct {
	Hash string
	// Skipped — хеш совпал с последним применённым, запись не выполнялась
	Skipped bool
	Records int
	// Written — вставленные или изменённые записи
	Written int
	// Renamed — переименования slug, записанные в историю
	Renamed int
	Meta    *model.SeedMeta

	// Integrity — отчёт check_integrity --fix после загрузки
	Integrity *IntegrityReport
	// IntegrityErr — ошибка проверки целостности (загрузка при этом успешна)
	IntegrityErr error
}

// SeedService загружает и выгружает фикстуры контента.
type SeedService struct {
	store        repository.Store
	integrity    *IntegrityService
	mediaBaseURL string
	logger       *slog.Logger
}

// NewSeedService создаёт SeedService.
func NewSeedService(store repository.Store, integrity *IntegrityService, mediaBaseURL string, logger *slog.Logger) *SeedService {
	return &SeedService{
		store:        store,
		integrity:    integrity,
		mediaBaseURL: mediaBaseURL,
		logger:       logger.With(slog.String("component", "seed")),
	}
}

// Seed загружает фикстуру. При совпадении хеша с seed_meta (без Force)
// ничего не пишет. Вся загрузка выполняется в одной транзакции.
func (s *SeedService) Seed(ctx context.Context, opts SeedOptions) (*SeedResult, error) {
	raw, err := os.ReadFile(opts.FixturePath)
	if err != nil {
		return nil, fmt.Errorf("чтение фикстуры %s: %w", opts.FixturePath, err)
	}
	res := &SeedResult{Hash: FixtureHash(raw)}

	meta, err := s.store.Repos().Seed.GetMeta(ctx, SeedName)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		meta = nil
	case err != nil:
		return nil, fmt.Errorf("чтение seed_meta: %w", err)
	}
	if meta != nil && meta.FixtureSHA256 == res.Hash && !opts.Force {
		res.Skipped = true
		res.Meta = meta
		s.logger.Info("Фикстура уже применена, загрузка пропущена",
			slog.String("fixture", opts.FixturePath),
			slog.String("sha256", res.Hash),
		)
		return res, nil
	}

	fx, err := DecodeFixture(raw, opts.FixturePath, s.mediaBaseURL)
	if err != nil {
		return nil, err
	}
	res.Records = fx.Total()

	err = s.store.InTx(ctx, func(r *repository.Repos) error {
		if opts.Wipe {
			if err := r.Seed.Wipe(ctx); err != nil {
				return err
			}
			s.logger.Warn("Контент удалён перед загрузкой фикстуры")
		}
		if err := s.load(ctx, r, fx, res); err != nil {
			return err
		}
		if err := r.Seed.ResetSequences(ctx); err != nil {
			return err
		}
		res.Meta = &model.SeedMeta{
			Name:          SeedName,
			FixturePath:   opts.FixturePath,
			FixtureSHA256: res.Hash,
			Notes: map[string]any{
				"countries": len(fx.Countries),
				"tags":      len(fx.Tags),
				"posts":     len(fx.Posts),
				"images":    len(fx.Images),
				"written":   res.Written,
				"renamed":   res.Renamed,
				"wipe":      opts.Wipe,
			},
		}
		return r.Seed.SaveMeta(ctx, res.Meta)
	})
	if err != nil {
		return nil, fmt.Errorf("загрузка фикстуры: %w", err)
	}

	s.logger.Info("Фикстура загружена",
		slog.String("fixture", opts.FixturePath),
		slog.String("sha256", res.Hash),
		slog.Int("records", res.Records),
		slog.Int("written", res.Written),
		slog.Int("renamed", res.Renamed),
	)

	// Проверка целостности не отменяет загрузку
	if s.integrity != nil {
		res.Integrity, res.IntegrityErr = s.integrity.Run(ctx, true)
		if res.IntegrityErr != nil {
			s.logger.Warn("check_integrity после загрузки завершился ошибкой",
				slog.String("error", res.IntegrityErr.Error()),
			)
		}
	}
	return res, nil
}

// load выполняет upsert всех записей фикстуры в порядке зависимостей.
func (s *SeedService) load(ctx context.Context, r *repository.Repos, fx *Fixture, res *SeedResult) error {
	track := func(kind model.SlugKind, id int64, up repository.UpsertResult, slug string) error {
		if !up.Written {
			return nil
		}
		res.Written++
		if up.PrevSlug != "" && up.PrevSlug != slug {
			res.Renamed++
		}
		return applySlugChange(ctx, r, kind, id, up.PrevSlug, slug)
	}

	for _, c := range fx.Countries {
		normalizeCountry(c)
		if c.Slug == "" {
			slug, err := countrySlug(ctx, r, c)
			if err != nil {
				return err
			}
			c.Slug = slug
		}
		up, err := r.Countries.Upsert(ctx, c)
		if err != nil {
			return err
		}
		if err := track(model.KindCountry, c.ID, up, c.Slug); err != nil {
			return err
		}
	}

	for _, t := range fx.Tags {
		if err := prepareTag(t); err != nil {
			return fmt.Errorf("тег %d: %w", t.ID, err)
		}
		if t.Slug == "" {
			slug, err := tagSlug(ctx, r, t)
			if err != nil {
				return err
			}
			t.Slug = slug
		}
		up, err := r.Tags.Upsert(ctx, t)
		if err != nil {
			return err
		}
		if err := track(model.KindTag, t.ID, up, t.Slug); err != nil {
			return err
		}
	}

	for _, pr := range fx.Posts {
		p := pr.Post
		if err := preparePost(p); err != nil {
			return fmt.Errorf("пост %d: %w", p.ID, err)
		}
		if p.Slug == "" {
			slug, err := postSlug(ctx, r, p)
			if err != nil {
				return err
			}
			p.Slug = slug
		}
		up, err := r.Posts.Upsert(ctx, p)
		if err != nil {
			return err
		}
		if err := track(model.KindPost, p.ID, up, p.Slug); err != nil {
			return err
		}
		if err := s.syncTags(ctx, r, p, pr.TagIDs); err != nil {
			return err
		}
	}

	for _, img := range fx.Images {
		written, err := r.Images.Upsert(ctx, img)
		if err != nil {
			return err
		}
		if written {
			res.Written++
		}
	}
	return nil
}

// syncTags заменяет теги поста, только если набор отличается.
func (s *SeedService) syncTags(ctx context.Context, r *repository.Repos, p *model.Post, tagIDs []int64) error {
	if tagIDs == nil {
		return nil
	}
	if err := r.Posts.LoadTags(ctx, []*model.Post{p}); err != nil {
		return err
	}
	current := make([]int64, 0, len(p.Tags))
	for _, t := range p.Tags {
		current = append(current, t.ID)
	}
	want := slices.Clone(tagIDs)
	slices.Sort(current)
	slices.Sort(want)
	want = slices.Compact(want)
	if slices.Equal(current, want) {
		return nil
	}
	if err := r.Posts.SetTags(ctx, p.ID, want); err != nil {
		return fmt.Errorf("теги поста %d: %w", p.ID, err)
	}
	return nil
}

// Dump собирает фикстуру из текущего контента.
func (s *SeedService) Dump(ctx context.Context) ([]FixtureRecord, error) {
	repos := s.store.Repos()

	countries, err := repos.Countries.List(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := repos.Tags.List(ctx)
	if err != nil {
		return nil, err
	}
	posts, err := repos.Posts.List(ctx, model.PostFilter{})
	if err != nil {
		return nil, err
	}
	if err := repos.Posts.LoadTags(ctx, posts); err != nil {
		return nil, err
	}
	images, err := repos.Images.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(images, func(i, j int) bool { return images[i].ID < images[j].ID })

	return BuildFixture(countries, tags, posts, images), nil
}

// Rebuild записывает текущий контент в файл фикстуры.
// Возвращает количество записей.
func (s *SeedService) Rebuild(ctx context.Context, path string, indent int) (int, error) {
	records, err := s.Dump(ctx)
	if err != nil {
		return 0, fmt.Errorf("выгрузка контента: %w", err)
	}
	data, err := EncodeFixture(records, indent)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // фикстура не содержит секретов
		return 0, fmt.Errorf("запись фикстуры %s: %w", path, err)
	}
	s.logger.Info("Фикстура пересобрана",
		slog.String("output", path),
		slog.Int("records", len(records)),
	)
	return len(records), nil
}
