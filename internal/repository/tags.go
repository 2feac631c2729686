package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// TagRepository — интерфейс CRUD для таблицы tags.
type TagRepository interface {
	Create(ctx context.Context, t *model.Tag) error
	GetByID(ctx context.Context, id int64) (*model.Tag, error)
	GetBySlug(ctx context.Context, slug string) (*model.Tag, error)
	// List возвращает все теги в порядке имени.
	List(ctx context.Context) ([]*model.Tag, error)
	// ListWithCounts возвращает теги с количеством опубликованных постов.
	ListWithCounts(ctx context.Context) ([]*model.TagCount, error)
	Update(ctx context.Context, t *model.Tag) error
	Delete(ctx context.Context, id int64) error
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	Upsert(ctx context.Context, t *model.Tag) (UpsertResult, error)
}

type tagRepo struct {
	db DBTX
}

// NewTagRepository создаёт репозиторий тегов.
func NewTagRepository(db DBTX) TagRepository {
	return &tagRepo{db: db}
}

func (r *tagRepo) Create(ctx context.Context, t *model.Tag) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO tags (name, slug) VALUES ($1, $2) RETURNING id`,
		t.Name, t.Slug,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slug тега уже используется", ErrConflict)
		}
		return fmt.Errorf("ошибка создания тега: %w", err)
	}
	return nil
}

func (r *tagRepo) getOne(ctx context.Context, where string, arg any) (*model.Tag, error) {
	t := &model.Tag{}
	err := r.db.QueryRow(ctx, `SELECT id, name, slug FROM tags WHERE `+where, arg).
		Scan(&t.ID, &t.Name, &t.Slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения тега: %w", err)
	}
	return t, nil
}

func (r *tagRepo) GetByID(ctx context.Context, id int64) (*model.Tag, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *tagRepo) GetBySlug(ctx context.Context, slug string) (*model.Tag, error) {
	return r.getOne(ctx, "slug = $1", slug)
}

func (r *tagRepo) List(ctx context.Context) ([]*model.Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug FROM tags ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка тегов: %w", err)
	}
	defer rows.Close()

	var result []*model.Tag
	for rows.Next() {
		t := &model.Tag{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("ошибка сканирования тега: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *tagRepo) ListWithCounts(ctx context.Context) ([]*model.TagCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.name, t.slug, COUNT(p.id)
		FROM tags t
		LEFT JOIN post_tags pt ON pt.tag_id = t.id
		LEFT JOIN posts p ON p.id = pt.post_id AND p.is_published
		GROUP BY t.id
		ORDER BY t.name, t.id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тегов со счётчиками: %w", err)
	}
	defer rows.Close()

	var result []*model.TagCount
	for rows.Next() {
		tc := &model.TagCount{}
		if err := rows.Scan(&tc.ID, &tc.Name, &tc.Slug, &tc.PublishedPosts); err != nil {
			return nil, fmt.Errorf("ошибка сканирования тега: %w", err)
		}
		result = append(result, tc)
	}
	return result, rows.Err()
}

func (r *tagRepo) Update(ctx context.Context, t *model.Tag) error {
	tag, err := r.db.Exec(ctx, `UPDATE tags SET name = $2, slug = $3 WHERE id = $1`,
		t.ID, t.Name, t.Slug)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slug тега уже используется", ErrConflict)
		}
		return fmt.Errorf("ошибка обновления тега: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tagRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления тега: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *tagRepo) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tags WHERE slug = $1 AND id <> $2)`,
		slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки slug тега: %w", err)
	}
	return exists, nil
}

func (r *tagRepo) Upsert(ctx context.Context, t *model.Tag) (UpsertResult, error) {
	query := `
		WITH prev AS (SELECT slug FROM tags WHERE id = $1)
		INSERT INTO tags (id, name, slug)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, slug = EXCLUDED.slug
		WHERE (tags.name, tags.slug) IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.slug)
		RETURNING COALESCE((SELECT slug FROM prev), '')`

	var res UpsertResult
	err := r.db.QueryRow(ctx, query, t.ID, t.Name, t.Slug).Scan(&res.PrevSlug)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return UpsertResult{}, nil
	case err != nil:
		if isUniqueViolation(err) {
			return UpsertResult{}, fmt.Errorf("%w: тег %d: slug уже используется", ErrConflict, t.ID)
		}
		return UpsertResult{}, fmt.Errorf("ошибка upsert тега %d: %w", t.ID, err)
	}
	res.Written = true
	return res, nil
}
