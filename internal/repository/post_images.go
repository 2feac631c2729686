package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// PostImageRepository — интерфейс CRUD для таблицы post_images.
type PostImageRepository interface {
	// Create добавляет изображение. SortOrder == 0 — в конец (max + 10).
	Create(ctx context.Context, img *model.PostImage) error
	GetByID(ctx context.Context, id int64) (*model.PostImage, error)
	// ListByPost возвращает изображения поста в порядке sort_order, id.
	ListByPost(ctx context.Context, postID int64) ([]*model.PostImage, error)
	// ListAll возвращает все изображения в порядке post_id, sort_order, id.
	ListAll(ctx context.Context) ([]*model.PostImage, error)
	Delete(ctx context.Context, id int64) error
	Upsert(ctx context.Context, img *model.PostImage) (bool, error)
	// CountOrphans считает изображения, чей пост отсутствует.
	CountOrphans(ctx context.Context) (int, error)
}

type postImageRepo struct {
	db DBTX
}

// NewPostImageRepository создаёт репозиторий изображений постов.
func NewPostImageRepository(db DBTX) PostImageRepository {
	return &postImageRepo{db: db}
}

const postImageColumns = `id, post_id, image_url, storage_key, caption, sort_order, created_at`

func scanPostImage(row pgx.Row, img *model.PostImage) error {
	return row.Scan(&img.ID, &img.PostID, &img.ImageURL, &img.StorageKey,
		&img.Caption, &img.SortOrder, &img.CreatedAt)
}

func (r *postImageRepo) Create(ctx context.Context, img *model.PostImage) error {
	query := `
		INSERT INTO post_images (post_id, image_url, storage_key, caption, sort_order)
		VALUES ($1, $2, $3, $4,
			CASE WHEN $5::int > 0 THEN $5::int
				ELSE COALESCE((SELECT MAX(sort_order) FROM post_images WHERE post_id = $1), 0) + 10
			END)
		RETURNING id, sort_order, created_at`

	err := r.db.QueryRow(ctx, query,
		img.PostID, img.ImageURL, img.StorageKey, img.Caption, img.SortOrder,
	).Scan(&img.ID, &img.SortOrder, &img.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: пост %d не существует", ErrNotFound, img.PostID)
		}
		return fmt.Errorf("ошибка создания изображения: %w", err)
	}
	return nil
}

func (r *postImageRepo) GetByID(ctx context.Context, id int64) (*model.PostImage, error) {
	img := &model.PostImage{}
	err := scanPostImage(r.db.QueryRow(ctx,
		`SELECT `+postImageColumns+` FROM post_images WHERE id = $1`, id), img)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения изображения: %w", err)
	}
	return img, nil
}

func (r *postImageRepo) list(ctx context.Context, query string, args ...any) ([]*model.PostImage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения изображений: %w", err)
	}
	defer rows.Close()

	var result []*model.PostImage
	for rows.Next() {
		img := &model.PostImage{}
		if err := scanPostImage(rows, img); err != nil {
			return nil, fmt.Errorf("ошибка сканирования изображения: %w", err)
		}
		result = append(result, img)
	}
	return result, rows.Err()
}

func (r *postImageRepo) ListByPost(ctx context.Context, postID int64) ([]*model.PostImage, error) {
	return r.list(ctx,
		`SELECT `+postImageColumns+` FROM post_images WHERE post_id = $1 ORDER BY sort_order, id`,
		postID)
}

func (r *postImageRepo) ListAll(ctx context.Context) ([]*model.PostImage, error) {
	return r.list(ctx,
		`SELECT `+postImageColumns+` FROM post_images ORDER BY post_id, sort_order, id`)
}

func (r *postImageRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM post_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления изображения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postImageRepo) Upsert(ctx context.Context, img *model.PostImage) (bool, error) {
	query := `
		INSERT INTO post_images (id, post_id, image_url, storage_key, caption, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET post_id = EXCLUDED.post_id, image_url = EXCLUDED.image_url,
			storage_key = EXCLUDED.storage_key, caption = EXCLUDED.caption,
			sort_order = EXCLUDED.sort_order
		WHERE (post_images.post_id, post_images.image_url, post_images.storage_key,
				post_images.caption, post_images.sort_order)
			IS DISTINCT FROM
			(EXCLUDED.post_id, EXCLUDED.image_url, EXCLUDED.storage_key,
				EXCLUDED.caption, EXCLUDED.sort_order)
		RETURNING id`

	var id int64
	err := r.db.QueryRow(ctx, query,
		img.ID, img.PostID, img.ImageURL, img.StorageKey, img.Caption, img.SortOrder,
	).Scan(&id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case err != nil:
		if isForeignKeyViolation(err) {
			return false, fmt.Errorf("%w: изображение %d: пост %d не существует", ErrNotFound, img.ID, img.PostID)
		}
		return false, fmt.Errorf("ошибка upsert изображения %d: %w", img.ID, err)
	}
	return true, nil
}

func (r *postImageRepo) CountOrphans(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM post_images i
		WHERE NOT EXISTS (SELECT 1 FROM posts p WHERE p.id = i.post_id)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта изображений без поста: %w", err)
	}
	return n, nil
}
