// content.go — сервис управления контентом: страны, посты, теги.
// Любая смена slug проходит через историю slug в той же транзакции.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/repository"
	"github.com/bigkaa/dongrigo/internal/slugs"
)

// ContentService — CRUD контента для admin API.
type ContentService struct {
	store  repository.Store
	globe  *GlobeService
	logger *slog.Logger
}

// NewContentService создаёт сервис контента.
// globe может быть nil (CLI): тогда кэш глобуса не сбрасывается.
func NewContentService(store repository.Store, globe *GlobeService, logger *slog.Logger) *ContentService {
	return &ContentService{
		store:  store,
		globe:  globe,
		logger: logger.With(slog.String("component", "content_service")),
	}
}

// applySlugChange записывает переименование в историю.
// Новый живой slug вытесняет запись истории с тем же значением,
// старый slug сохраняется с привязкой к элементу.
func applySlugChange(ctx context.Context, r *repository.Repos, kind model.SlugKind, itemID int64, oldSlug, newSlug string) error {
	if oldSlug == newSlug {
		return nil
	}
	if newSlug != "" {
		if err := r.History.DeleteSlug(ctx, kind, newSlug); err != nil {
			return err
		}
	}
	if oldSlug != "" {
		if err := r.History.Record(ctx, kind, oldSlug, itemID); err != nil {
			return err
		}
	}
	return nil
}

// --- Страны ---

// ListCountries возвращает все страны.
func (s *ContentService) ListCountries(ctx context.Context) ([]*model.Country, error) {
	list, err := s.store.Repos().Countries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка стран: %w", err)
	}
	return list, nil
}

// GetCountry возвращает страну по id.
func (s *ContentService) GetCountry(ctx context.Context, id int64) (*model.Country, error) {
	c, err := s.store.Repos().Countries.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, fmt.Sprintf("страна %d", id))
	}
	return c, nil
}

// validateCountry проверяет нормализованные поля страны.
func validateCountry(c *model.Country) error {
	if c.Name == "" {
		return fmt.Errorf("%w: имя страны обязательно", ErrValidation)
	}
	if c.Slug != "" && (!slugs.IsASCII(c.Slug) || len(c.Slug) > slugs.MaxCountryLen) {
		return fmt.Errorf("%w: недопустимый slug страны %q", ErrValidation, c.Slug)
	}
	if c.ISOA2 != nil && !ValidISO(*c.ISOA2, 2) {
		return fmt.Errorf("%w: iso_a2 должен состоять из 2 латинских букв", ErrValidation)
	}
	if c.ISOA3 != nil && !ValidISO(*c.ISOA3, 3) {
		return fmt.Errorf("%w: iso_a3 должен состоять из 3 латинских букв", ErrValidation)
	}
	return nil
}

// countrySlug возвращает slug страны: заданный или сгенерированный из имени.
func countrySlug(ctx context.Context, r *repository.Repos, c *model.Country) (string, error) {
	if c.Slug != "" {
		taken, err := r.Countries.SlugExists(ctx, c.Slug, c.ID)
		if err != nil {
			return "", err
		}
		if taken {
			return "", fmt.Errorf("%w: slug страны %q уже используется", ErrConflict, c.Slug)
		}
		return c.Slug, nil
	}
	base := c.NameEn
	if base == "" {
		base = c.Name
	}
	return slugs.Unique(ctx, base, "country", slugs.MaxCountryLen, func(ctx context.Context, cand string) (bool, error) {
		return r.Countries.SlugExists(ctx, cand, c.ID)
	})
}

// CreateCountry создаёт страну.
func (s *ContentService) CreateCountry(ctx context.Context, c *model.Country) (*model.Country, error) {
	normalizeCountry(c)
	if err := validateCountry(c); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(r *repository.Repos) error {
		slug, err := countrySlug(ctx, r, c)
		if err != nil {
			return err
		}
		c.Slug = slug
		if err := r.Countries.Create(ctx, c); err != nil {
			return mapRepoErr(err, "создание страны")
		}
		return applySlugChange(ctx, r, model.KindCountry, c.ID, "", c.Slug)
	})
	if err != nil {
		return nil, err
	}

	s.globe.Invalidate()
	s.logger.Info("Страна создана",
		slog.Int64("country_id", c.ID),
		slog.String("slug", c.Slug),
	)
	return c, nil
}

// UpdateCountry обновляет страну. Смена slug записывается в историю.
func (s *ContentService) UpdateCountry(ctx context.Context, id int64, c *model.Country) (*model.Country, error) {
	c.ID = id
	normalizeCountry(c)
	if err := validateCountry(c); err != nil {
		return nil, err
	}

	var oldSlug string
	err := s.store.InTx(ctx, func(r *repository.Repos) error {
		current, err := r.Countries.GetByID(ctx, id)
		if err != nil {
			return mapRepoErr(err, fmt.Sprintf("страна %d", id))
		}
		oldSlug = current.Slug
		// Пустой slug в запросе — «не менять».
		if c.Slug == "" {
			c.Slug = current.Slug
		}

		slug, err := countrySlug(ctx, r, c)
		if err != nil {
			return err
		}
		c.Slug = slug
		if err := r.Countries.Update(ctx, c); err != nil {
			return mapRepoErr(err, fmt.Sprintf("обновление страны %d", id))
		}
		return applySlugChange(ctx, r, model.KindCountry, id, oldSlug, c.Slug)
	})
	if err != nil {
		return nil, err
	}

	s.globe.Invalidate()
	if oldSlug != c.Slug {
		s.logger.Info("Slug страны изменён",
			slog.Int64("country_id", id),
			slog.String("old_slug", oldSlug),
			slog.String("new_slug", c.Slug),
		)
	}
	return c, nil
}

// DeleteCountry удаляет страну вместе с постами и их историей slug.
func (s *ContentService) DeleteCountry(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(r *repository.Repos) error {
		posts, err := r.Posts.List(ctx, model.PostFilter{CountryID: &id})
		if err != nil {
			return err
		}
		for _, p := range posts {
			if err := r.History.DeleteForItem(ctx, model.KindPost, p.ID); err != nil {
				return err
			}
		}
		if err := r.History.DeleteForItem(ctx, model.KindCountry, id); err != nil {
			return err
		}
		return mapRepoErr(r.Countries.Delete(ctx, id), fmt.Sprintf("удаление страны %d", id))
	})
	if err != nil {
		return err
	}

	s.globe.Invalidate()
	s.logger.Info("Страна удалена", slog.Int64("country_id", id))
	return nil
}

// --- Посты ---

// ListPosts возвращает посты по фильтру с тегами.
func (s *ContentService) ListPosts(ctx context.Context, f model.PostFilter) ([]*model.Post, int, error) {
	repos := s.store.Repos()
	posts, err := repos.Posts.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка постов: %w", err)
	}
	total, err := repos.Posts.Count(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт постов: %w", err)
	}
	if err := repos.Posts.LoadTags(ctx, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// GetPost возвращает пост по id с тегами.
func (s *ContentService) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	repos := s.store.Repos()
	p, err := repos.Posts.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, fmt.Sprintf("пост %d", id))
	}
	if err := repos.Posts.LoadTags(ctx, []*model.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// preparePost нормализует и проверяет поля поста.
func preparePost(p *model.Post) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.TrimSpace(p.Slug)
	if p.Title == "" {
		return fmt.Errorf("%w: заголовок поста обязателен", ErrValidation)
	}
	if utf8.RuneCountInString(p.Title) > 200 {
		return fmt.Errorf("%w: заголовок длиннее 200 символов", ErrValidation)
	}
	if p.Slug != "" && (!slugs.IsASCII(p.Slug) || len(p.Slug) > slugs.MaxPostLen) {
		return fmt.Errorf("%w: недопустимый slug поста %q", ErrValidation, p.Slug)
	}
	if !p.Category.Valid() {
		p.Category = model.ParseCategory(string(p.Category))
	}
	if p.IsPublished && p.PublishedAt == nil {
		d := today()
		p.PublishedAt = &d
	}
	return nil
}

// postSlug возвращает slug поста: заданный или сгенерированный из заголовка.
func postSlug(ctx context.Context, r *repository.Repos, p *model.Post) (string, error) {
	if p.Slug != "" {
		taken, err := r.Posts.SlugExists(ctx, p.Slug, p.ID)
		if err != nil {
			return "", err
		}
		if taken {
			return "", fmt.Errorf("%w: slug поста %q уже используется", ErrConflict, p.Slug)
		}
		return p.Slug, nil
	}
	return slugs.Unique(ctx, p.Title, "post", slugs.MaxPostLen, func(ctx context.Context, cand string) (bool, error) {
		return r.Posts.SlugExists(ctx, cand, p.ID)
	})
}

// writePostTags заменяет теги поста, если набор передан.
func writePostTags(ctx context.Context, r *repository.Repos, p *model.Post, tagIDs []int64) error {
	if tagIDs == nil {
		return nil
	}
	if err := r.Posts.SetTags(ctx, p.ID, tagIDs); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: один из тегов не существует", ErrValidation)
		}
		return err
	}
	return nil
}

// checkCountry проверяет существование страны поста и заполняет CountrySlug.
func checkCountry(ctx context.Context, r *repository.Repos, p *model.Post) error {
	c, err := r.Countries.GetByID(ctx, p.CountryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: страна %d не существует", ErrValidation, p.CountryID)
		}
		return err
	}
	p.CountrySlug = c.Slug
	return nil
}

// CreatePost создаёт пост. tagIDs == nil — теги не задаются.
func (s *ContentService) CreatePost(ctx context.Context, p *model.Post, tagIDs []int64) (*model.Post, error) {
	if err := preparePost(p); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(r *repository.Repos) error {
		if err := checkCountry(ctx, r, p); err != nil {
			return err
		}
		slug, err := postSlug(ctx, r, p)
		if err != nil {
			return err
		}
		p.Slug = slug
		if err := r.Posts.Create(ctx, p); err != nil {
			return mapRepoErr(err, "создание поста")
		}
		if err := writePostTags(ctx, r, p, tagIDs); err != nil {
			return err
		}
		return applySlugChange(ctx, r, model.KindPost, p.ID, "", p.Slug)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Пост создан",
		slog.Int64("post_id", p.ID),
		slog.String("slug", p.Slug),
		slog.String("category", string(p.Category)),
	)
	return s.GetPost(ctx, p.ID)
}

// UpdatePost обновляет пост. Смена slug записывается в историю.
func (s *ContentService) UpdatePost(ctx context.Context, id int64, p *model.Post, tagIDs []int64) (*model.Post, error) {
	p.ID = id
	if err := preparePost(p); err != nil {
		return nil, err
	}

	var oldSlug string
	err := s.store.InTx(ctx, func(r *repository.Repos) error {
		current, err := r.Posts.GetByID(ctx, id)
		if err != nil {
			return mapRepoErr(err, fmt.Sprintf("пост %d", id))
		}
		oldSlug = current.Slug
		if p.Slug == "" {
			p.Slug = current.Slug
		}

		if err := checkCountry(ctx, r, p); err != nil {
			return err
		}
		slug, err := postSlug(ctx, r, p)
		if err != nil {
			return err
		}
		p.Slug = slug
		if err := r.Posts.Update(ctx, p); err != nil {
			return mapRepoErr(err, fmt.Sprintf("обновление поста %d", id))
		}
		if err := writePostTags(ctx, r, p, tagIDs); err != nil {
			return err
		}
		return applySlugChange(ctx, r, model.KindPost, id, oldSlug, p.Slug)
	})
	if err != nil {
		return nil, err
	}

	if oldSlug != p.Slug {
		s.logger.Info("Slug поста изменён",
			slog.Int64("post_id", id),
			slog.String("old_slug", oldSlug),
			slog.String("new_slug", p.Slug),
		)
	}
	return s.GetPost(ctx, id)
}

// DeletePost удаляет пост, его изображения (каскадом) и историю slug.
// Возвращает ключи медиа удалённых изображений для очистки хранилища.
func (s *ContentService) DeletePost(ctx context.Context, id int64) ([]string, error) {
	var keys []string
	err := s.store.InTx(ctx, func(r *repository.Repos) error {
		images, err := r.Images.ListByPost(ctx, id)
		if err != nil {
			return err
		}
		for _, img := range images {
			if img.StorageKey != "" {
				keys = append(keys, img.StorageKey)
			}
		}
		if err := r.History.DeleteForItem(ctx, model.KindPost, id); err != nil {
			return err
		}
		return mapRepoErr(r.Posts.Delete(ctx, id), fmt.Sprintf("удаление поста %d", id))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Пост удалён", slog.Int64("post_id", id))
	return keys, nil
}

// --- Теги ---

// ListTags возвращает все теги.
func (s *ContentService) ListTags(ctx context.Context) ([]*model.Tag, error) {
	list, err := s.store.Repos().Tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка тегов: %w", err)
	}
	return list, nil
}

// GetTag возвращает тег по id.
func (s *ContentService) GetTag(ctx context.Context, id int64) (*model.Tag, error) {
	t, err := s.store.Repos().Tags.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, fmt.Sprintf("тег %d", id))
	}
	return t, nil
}

// tagSlug возвращает slug тега: заданный или ожидаемый по имени (с суффиксом при занятости).
func tagSlug(ctx context.Context, r *repository.Repos, t *model.Tag) (string, error) {
	exists := func(ctx context.Context, cand string) (bool, error) {
		return r.Tags.SlugExists(ctx, cand, t.ID)
	}
	if t.Slug != "" {
		taken, err := exists(ctx, t.Slug)
		if err != nil {
			return "", err
		}
		if taken {
			return "", fmt.Errorf("%w: slug тега %q уже используется", ErrConflict, t.Slug)
		}
		return t.Slug, nil
	}
	return slugs.Dedupe(ctx, slugs.ExpectedTagSlug(t.Name), slugs.MaxTagLen, exists)
}

// prepareTag нормализует и проверяет поля тега.
func prepareTag(t *model.Tag) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Slug = strings.TrimSpace(t.Slug)
	if t.Name == "" {
		return fmt.Errorf("%w: имя тега обязательно", ErrValidation)
	}
	if utf8.RuneCountInString(t.Name) > 60 {
		return fmt.Errorf("%w: имя тега длиннее 60 символов", ErrValidation)
	}
	if t.Slug != "" && (!slugs.IsUnicode(t.Slug) || utf8.RuneCountInString(t.Slug) > slugs.MaxTagLen) {
		return fmt.Errorf("%w: недопустимый slug тега %q", ErrValidation, t.Slug)
	}
	return nil
}

// CreateTag создаёт тег.
func (s *ContentService) CreateTag(ctx context.Context, t *model.Tag) (*model.Tag, error) {
	if err := prepareTag(t); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(r *repository.Repos) error {
		slug, err := tagSlug(ctx, r, t)
		if err != nil {
			return err
		}
		t.Slug = slug
		if err := r.Tags.Create(ctx, t); err != nil {
			return mapRepoErr(err, "создание тега")
		}
		return applySlugChange(ctx, r, model.KindTag, t.ID, "", t.Slug)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Тег создан", slog.Int64("tag_id", t.ID), slog.String("slug", t.Slug))
	return t, nil
}

// UpdateTag обновляет тег. Смена slug записывается в историю.
func (s *ContentService) UpdateTag(ctx context.Context, id int64, t *model.Tag) (*model.Tag, error) {
	t.ID = id
	if err := prepareTag(t); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(r *repository.Repos) error {
		current, err := r.Tags.GetByID(ctx, id)
		if err != nil {
			return mapRepoErr(err, fmt.Sprintf("тег %d", id))
		}
		slug, err := tagSlug(ctx, r, t)
		if err != nil {
			return err
		}
		t.Slug = slug
		if err := r.Tags.Update(ctx, t); err != nil {
			return mapRepoErr(err, fmt.Sprintf("обновление тега %d", id))
		}
		return applySlugChange(ctx, r, model.KindTag, id, current.Slug, t.Slug)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// renameTagSlug меняет только slug тега через историю.
func renameTagSlug(ctx context.Context, r *repository.Repos, t *model.Tag, newSlug string) error {
	oldSlug := t.Slug
	t.Slug = newSlug
	if err := r.Tags.Update(ctx, t); err != nil {
		return mapRepoErr(err, fmt.Sprintf("обновление тега %d", t.ID))
	}
	return applySlugChange(ctx, r, model.KindTag, t.ID, oldSlug, newSlug)
}

// DeleteTag удаляет тег и его историю slug.
func (s *ContentService) DeleteTag(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(r *repository.Repos) error {
		if err := r.History.DeleteForItem(ctx, model.KindTag, id); err != nil {
			return err
		}
		return mapRepoErr(r.Tags.Delete(ctx, id), fmt.Sprintf("удаление тега %d", id))
	})
	if err != nil {
		return err
	}
	s.logger.Info("Тег удалён", slog.Int64("tag_id", id))
	return nil
}

// SlugHistory возвращает записи истории slug (пустой kind — все типы).
func (s *ContentService) SlugHistory(ctx context.Context, kind model.SlugKind) ([]*model.SlugHistoryRecord, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: неизвестный тип %q", ErrValidation, kind)
	}
	list, err := s.store.Repos().History.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("получение истории slug: %w", err)
	}
	return list, nil
}
