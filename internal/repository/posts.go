package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// PostRepository — интерфейс CRUD для таблиц posts и post_tags.
type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	GetBySlug(ctx context.Context, slug string) (*model.Post, error)
	// List возвращает посты по фильтру в порядке доски
	// (published_at, created_at, id по убыванию). Limit <= 0 — без ограничения.
	List(ctx context.Context, f model.PostFilter) ([]*model.Post, error)
	// Count возвращает количество постов по фильтру (Limit/Offset игнорируются).
	Count(ctx context.Context, f model.PostFilter) (int, error)
	// Position возвращает индекс поста (с нуля) в выборке по фильтру.
	Position(ctx context.Context, f model.PostFilter, postID int64) (int, error)
	Update(ctx context.Context, p *model.Post) error
	Delete(ctx context.Context, id int64) error
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	Upsert(ctx context.Context, p *model.Post) (UpsertResult, error)
	// SetTags заменяет набор тегов поста.
	SetTags(ctx context.Context, postID int64, tagIDs []int64) error
	// LoadTags заполняет поле Tags у переданных постов.
	LoadTags(ctx context.Context, posts []*model.Post) error
}

type postRepo struct {
	db DBTX
}

// NewPostRepository создаёт репозиторий постов.
func NewPostRepository(db DBTX) PostRepository {
	return &postRepo{db: db}
}

const postColumns = `p.id, p.country_id, p.category, p.title, p.slug, p.content,
	p.cover_image_url, p.is_published, p.published_at, p.created_at, p.updated_at,
	c.slug`

const postOrder = `p.published_at DESC NULLS LAST, p.created_at DESC, p.id DESC`

func scanPost(row pgx.Row, p *model.Post) error {
	var category string
	if err := row.Scan(
		&p.ID, &p.CountryID, &category, &p.Title, &p.Slug, &p.Content,
		&p.CoverImageURL, &p.IsPublished, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt,
		&p.CountrySlug,
	); err != nil {
		return err
	}
	p.Category = model.Category(category)
	return nil
}

func (r *postRepo) Create(ctx context.Context, p *model.Post) error {
	query := `
		INSERT INTO posts (country_id, category, title, slug, content, cover_image_url,
			is_published, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		p.CountryID, string(p.Category), p.Title, p.Slug, p.Content, p.CoverImageURL,
		p.IsPublished, p.PublishedAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return postWriteError(err, "создания")
	}
	return nil
}

func postWriteError(err error, op string) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: slug поста уже используется", ErrConflict)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: страна поста не существует", ErrNotFound)
	}
	return fmt.Errorf("ошибка %s поста: %w", op, err)
}

func (r *postRepo) getOne(ctx context.Context, where string, arg any) (*model.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts p JOIN countries c ON c.id = p.country_id
		WHERE ` + where

	p := &model.Post{}
	if err := scanPost(r.db.QueryRow(ctx, query, arg), p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения поста: %w", err)
	}
	return p, nil
}

func (r *postRepo) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	return r.getOne(ctx, "p.id = $1", id)
}

func (r *postRepo) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return r.getOne(ctx, "p.slug = $1", slug)
}

// buildPostWhere строит WHERE по фильтру. Возвращает условие, аргументы
// и номер следующего плейсхолдера.
func buildPostWhere(f model.PostFilter) (string, []any, int) {
	var conditions []string
	var args []any
	argNum := 1

	if f.PublishedOnly {
		conditions = append(conditions, "p.is_published")
	}
	if f.CountryID != nil {
		conditions = append(conditions, fmt.Sprintf("p.country_id = $%d", argNum))
		args = append(args, *f.CountryID)
		argNum++
	}
	if f.Category != "" {
		conditions = append(conditions, fmt.Sprintf("p.category = $%d", argNum))
		args = append(args, string(f.Category))
		argNum++
	}
	if f.TagID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM post_tags pt WHERE pt.post_id = p.id AND pt.tag_id = $%d)", argNum))
		args = append(args, *f.TagID)
		argNum++
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.content ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+escapeLike(q)+"%")
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args, argNum
}

// escapeLike экранирует спецсимволы LIKE.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *postRepo) List(ctx context.Context, f model.PostFilter) ([]*model.Post, error) {
	where, args, argNum := buildPostWhere(f)

	query := fmt.Sprintf(`
		SELECT %s
		FROM posts p JOIN countries c ON c.id = p.country_id
		%s
		ORDER BY %s`, postColumns, where, postOrder)
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка постов: %w", err)
	}
	defer rows.Close()

	var result []*model.Post
	for rows.Next() {
		p := &model.Post{}
		if err := scanPost(rows, p); err != nil {
			return nil, fmt.Errorf("ошибка сканирования поста: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *postRepo) Count(ctx context.Context, f model.PostFilter) (int, error) {
	where, args, _ := buildPostWhere(f)

	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts p `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта постов: %w", err)
	}
	return count, nil
}

func (r *postRepo) Position(ctx context.Context, f model.PostFilter, postID int64) (int, error) {
	where, args, argNum := buildPostWhere(f)

	query := fmt.Sprintf(`
		SELECT pos FROM (
			SELECT p.id, ROW_NUMBER() OVER (ORDER BY %s) - 1 AS pos
			FROM posts p
			%s
		) ranked
		WHERE id = $%d`, postOrder, where, argNum)
	args = append(args, postID)

	var pos int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&pos); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка определения позиции поста: %w", err)
	}
	return pos, nil
}

func (r *postRepo) Update(ctx context.Context, p *model.Post) error {
	query := `
		UPDATE posts
		SET country_id = $2, category = $3, title = $4, slug = $5, content = $6,
			cover_image_url = $7, is_published = $8, published_at = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.CountryID, string(p.Category), p.Title, p.Slug, p.Content,
		p.CoverImageURL, p.IsPublished, p.PublishedAt,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return postWriteError(err, "обновления")
	}
	return nil
}

func (r *postRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления поста: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postRepo) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM posts WHERE slug = $1 AND id <> $2)`,
		slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки slug поста: %w", err)
	}
	return exists, nil
}

func (r *postRepo) Upsert(ctx context.Context, p *model.Post) (UpsertResult, error) {
	query := `
		WITH prev AS (SELECT slug FROM posts WHERE id = $1)
		INSERT INTO posts (id, country_id, category, title, slug, content, cover_image_url,
			is_published, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET country_id = EXCLUDED.country_id, category = EXCLUDED.category,
			title = EXCLUDED.title, slug = EXCLUDED.slug, content = EXCLUDED.content,
			cover_image_url = EXCLUDED.cover_image_url, is_published = EXCLUDED.is_published,
			published_at = EXCLUDED.published_at, updated_at = now()
		WHERE (posts.country_id, posts.category, posts.title, posts.slug, posts.content,
				posts.cover_image_url, posts.is_published, posts.published_at)
			IS DISTINCT FROM
			(EXCLUDED.country_id, EXCLUDED.category, EXCLUDED.title, EXCLUDED.slug,
				EXCLUDED.content, EXCLUDED.cover_image_url, EXCLUDED.is_published,
				EXCLUDED.published_at)
		RETURNING COALESCE((SELECT slug FROM prev), '')`

	var res UpsertResult
	err := r.db.QueryRow(ctx, query,
		p.ID, p.CountryID, string(p.Category), p.Title, p.Slug, p.Content,
		p.CoverImageURL, p.IsPublished, p.PublishedAt,
	).Scan(&res.PrevSlug)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return UpsertResult{}, nil
	case err != nil:
		return UpsertResult{}, postWriteError(err, fmt.Sprintf("upsert (id %d)", p.ID))
	}
	res.Written = true
	return res, nil
}

func (r *postRepo) SetTags(ctx context.Context, postID int64, tagIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("ошибка очистки тегов поста: %w", err)
	}
	if len(tagIDs) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO post_tags (post_id, tag_id)
		SELECT $1, unnest($2::bigint[])
		ON CONFLICT DO NOTHING`, postID, tagIDs)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: пост или тег не существует", ErrNotFound)
		}
		return fmt.Errorf("ошибка сохранения тегов поста: %w", err)
	}
	return nil
}

func (r *postRepo) LoadTags(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[int64]*model.Post, len(posts))
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		p.Tags = nil
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.Query(ctx, `
		SELECT pt.post_id, t.id, t.name, t.slug
		FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = ANY($1)
		ORDER BY t.name, t.id`, ids)
	if err != nil {
		return fmt.Errorf("ошибка получения тегов постов: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		var t model.Tag
		if err := rows.Scan(&postID, &t.ID, &t.Name, &t.Slug); err != nil {
			return fmt.Errorf("ошибка сканирования тега поста: %w", err)
		}
		if p, ok := byID[postID]; ok {
			p.Tags = append(p.Tags, t)
		}
	}
	return rows.Err()
}
