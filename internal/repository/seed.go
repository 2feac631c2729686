package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// SeedRepository — метаданные seed и массовые операции загрузчика.
type SeedRepository interface {
	// GetMeta возвращает отметку seed по имени.
	GetMeta(ctx context.Context, name string) (*model.SeedMeta, error)
	// SaveMeta создаёт или обновляет отметку seed.
	SaveMeta(ctx context.Context, m *model.SeedMeta) error
	// Wipe удаляет весь контент: изображения, посты, страны, теги, историю slug.
	Wipe(ctx context.Context) error
	// ResetSequences выравнивает последовательности id после вставки с явными id.
	ResetSequences(ctx context.Context) error
}

type seedRepo struct {
	db DBTX
}

// NewSeedRepository создаёт репозиторий seed.
func NewSeedRepository(db DBTX) SeedRepository {
	return &seedRepo{db: db}
}

// seededTables — таблицы с явными id из фикстуры.
var seededTables = []string{"countries", "posts", "post_images", "tags", "slug_history"}

func (r *seedRepo) GetMeta(ctx context.Context, name string) (*model.SeedMeta, error) {
	m := &model.SeedMeta{}
	err := r.db.QueryRow(ctx, `
		SELECT name, fixture_path, fixture_sha256, applied_at, notes
		FROM seed_meta WHERE name = $1`, name,
	).Scan(&m.Name, &m.FixturePath, &m.FixtureSHA256, &m.AppliedAt, &m.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения seed_meta: %w", err)
	}
	return m, nil
}

func (r *seedRepo) SaveMeta(ctx context.Context, m *model.SeedMeta) error {
	notes := m.Notes
	if notes == nil {
		notes = map[string]any{}
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO seed_meta (name, fixture_path, fixture_sha256, applied_at, notes)
		VALUES ($1, $2, $3, now(), $4)
		ON CONFLICT (name) DO UPDATE
		SET fixture_path = EXCLUDED.fixture_path, fixture_sha256 = EXCLUDED.fixture_sha256,
			applied_at = EXCLUDED.applied_at, notes = EXCLUDED.notes
		RETURNING applied_at`,
		m.Name, m.FixturePath, m.FixtureSHA256, notes,
	).Scan(&m.AppliedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения seed_meta: %w", err)
	}
	return nil
}

func (r *seedRepo) Wipe(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM post_images`,
		`DELETE FROM post_tags`,
		`DELETE FROM posts`,
		`DELETE FROM countries`,
		`DELETE FROM tags`,
		`DELETE FROM slug_history`,
	} {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ошибка очистки (%s): %w", stmt, err)
		}
	}
	return nil
}

func (r *seedRepo) ResetSequences(ctx context.Context) error {
	for _, table := range seededTables {
		query := fmt.Sprintf(`
			SELECT setval(pg_get_serial_sequence('%[1]s', 'id'),
				COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false)`, table)
		if _, err := r.db.Exec(ctx, query); err != nil {
			return fmt.Errorf("ошибка сброса последовательности %s: %w", table, err)
		}
	}
	return nil
}
