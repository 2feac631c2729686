package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// SlugHistoryRepository — доступ к таблице slug_history.
// Каждая запись указывает на id текущего элемента, цепочек нет.
type SlugHistoryRepository interface {
	// Lookup ищет старый slug заданного типа.
	Lookup(ctx context.Context, kind model.SlugKind, oldSlug string) (*model.SlugHistoryRecord, error)
	// Record сохраняет старый slug элемента. Существующая запись
	// (kind, old_slug) перепривязывается к itemID.
	Record(ctx context.Context, kind model.SlugKind, oldSlug string, itemID int64) error
	// DeleteSlug удаляет запись (kind, slug), если она есть.
	DeleteSlug(ctx context.Context, kind model.SlugKind, slug string) error
	// DeleteForItem удаляет все записи элемента.
	DeleteForItem(ctx context.Context, kind model.SlugKind, itemID int64) error
	// DeleteByIDs удаляет записи по id и возвращает число удалённых.
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	// List возвращает записи типа kind (пустой kind — все) по убыванию времени.
	List(ctx context.Context, kind model.SlugKind) ([]*model.SlugHistoryRecord, error)
	// ListWithOwners возвращает записи вместе с состоянием владельца
	// и возможным конфликтом с живым slug другого элемента.
	ListWithOwners(ctx context.Context) ([]*model.SlugHistoryRow, error)
}

type slugHistoryRepo struct {
	db DBTX
}

// NewSlugHistoryRepository создаёт репозиторий истории slug.
func NewSlugHistoryRepository(db DBTX) SlugHistoryRepository {
	return &slugHistoryRepo{db: db}
}

func (r *slugHistoryRepo) Lookup(ctx context.Context, kind model.SlugKind, oldSlug string) (*model.SlugHistoryRecord, error) {
	rec := &model.SlugHistoryRecord{}
	var k string
	err := r.db.QueryRow(ctx, `
		SELECT id, kind, old_slug, item_id, recorded_at
		FROM slug_history
		WHERE kind = $1 AND old_slug = $2`, string(kind), oldSlug,
	).Scan(&rec.ID, &k, &rec.OldSlug, &rec.ItemID, &rec.RecordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска в истории slug: %w", err)
	}
	rec.Kind = model.SlugKind(k)
	return rec, nil
}

func (r *slugHistoryRepo) Record(ctx context.Context, kind model.SlugKind, oldSlug string, itemID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO slug_history (kind, old_slug, item_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, old_slug) DO UPDATE
		SET item_id = EXCLUDED.item_id, recorded_at = now()`,
		string(kind), oldSlug, itemID)
	if err != nil {
		return fmt.Errorf("ошибка записи истории slug: %w", err)
	}
	return nil
}

func (r *slugHistoryRepo) DeleteSlug(ctx context.Context, kind model.SlugKind, slug string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM slug_history WHERE kind = $1 AND old_slug = $2`,
		string(kind), slug)
	if err != nil {
		return fmt.Errorf("ошибка удаления slug из истории: %w", err)
	}
	return nil
}

func (r *slugHistoryRepo) DeleteForItem(ctx context.Context, kind model.SlugKind, itemID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM slug_history WHERE kind = $1 AND item_id = $2`,
		string(kind), itemID)
	if err != nil {
		return fmt.Errorf("ошибка удаления истории элемента: %w", err)
	}
	return nil
}

func (r *slugHistoryRepo) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM slug_history WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления записей истории slug: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *slugHistoryRepo) List(ctx context.Context, kind model.SlugKind) ([]*model.SlugHistoryRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, kind, old_slug, item_id, recorded_at
		FROM slug_history
		WHERE $1::text = '' OR kind = $1::text
		ORDER BY recorded_at DESC, id DESC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории slug: %w", err)
	}
	defer rows.Close()

	var result []*model.SlugHistoryRecord
	for rows.Next() {
		rec := &model.SlugHistoryRecord{}
		var k string
		if err := rows.Scan(&rec.ID, &k, &rec.OldSlug, &rec.ItemID, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории slug: %w", err)
		}
		rec.Kind = model.SlugKind(k)
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *slugHistoryRepo) ListWithOwners(ctx context.Context) ([]*model.SlugHistoryRow, error) {
	query := `
		WITH items AS (
			SELECT 'country'::varchar AS kind, id, slug FROM countries
			UNION ALL
			SELECT 'post'::varchar, id, slug FROM posts
			UNION ALL
			SELECT 'tag'::varchar, id, slug FROM tags
		)
		SELECT h.id, h.kind, h.old_slug, h.item_id, h.recorded_at,
			own.id IS NOT NULL, COALESCE(own.slug, ''), COALESCE(live.id, 0)
		FROM slug_history h
		LEFT JOIN items own ON own.kind = h.kind AND own.id = h.item_id
		LEFT JOIN items live ON live.kind = h.kind AND live.slug = h.old_slug AND live.id <> h.item_id
		ORDER BY h.kind, h.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории slug с владельцами: %w", err)
	}
	defer rows.Close()

	var result []*model.SlugHistoryRow
	for rows.Next() {
		row := &model.SlugHistoryRow{}
		var k string
		if err := rows.Scan(
			&row.ID, &k, &row.OldSlug, &row.ItemID, &row.RecordedAt,
			&row.ItemExists, &row.ItemSlug, &row.LiveOwnerID,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования истории slug: %w", err)
		}
		row.Kind = model.SlugKind(k)
		result = append(result, row)
	}
	return result, rows.Err()
}
