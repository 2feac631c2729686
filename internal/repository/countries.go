package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// CountryRepository — интерфейс CRUD для таблицы countries.
type CountryRepository interface {
	// Create создаёт страну; ID и временные метки заполняются из БД.
	Create(ctx context.Context, c *model.Country) error
	GetByID(ctx context.Context, id int64) (*model.Country, error)
	GetBySlug(ctx context.Context, slug string) (*model.Country, error)
	GetByISOA3(ctx context.Context, iso string) (*model.Country, error)
	// List возвращает все страны в порядке имени.
	List(ctx context.Context) ([]*model.Country, error)
	// ListCards возвращает страны со счётчиками опубликованных постов.
	ListCards(ctx context.Context) ([]*model.CountryCard, error)
	Update(ctx context.Context, c *model.Country) error
	Delete(ctx context.Context, id int64) error
	// SlugExists проверяет, занят ли slug страной с id != excludeID.
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	// Upsert вставляет или обновляет страну по id, не переписывая неизменённые строки.
	Upsert(ctx context.Context, c *model.Country) (UpsertResult, error)
}

type countryRepo struct {
	db DBTX
}

// NewCountryRepository создаёт репозиторий стран.
func NewCountryRepository(db DBTX) CountryRepository {
	return &countryRepo{db: db}
}

const countryColumns = `id, name, slug, iso_a2, iso_a3, name_ko, name_en, aliases,
	short_description, flag_image_url, created_at, updated_at`

func scanCountry(row pgx.Row, c *model.Country) error {
	return row.Scan(
		&c.ID, &c.Name, &c.Slug, &c.ISOA2, &c.ISOA3, &c.NameKo, &c.NameEn, &c.Aliases,
		&c.ShortDescription, &c.FlagImageURL, &c.CreatedAt, &c.UpdatedAt,
	)
}

func (r *countryRepo) Create(ctx context.Context, c *model.Country) error {
	query := `
		INSERT INTO countries (name, slug, iso_a2, iso_a3, name_ko, name_en, aliases,
			short_description, flag_image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.Name, c.Slug, c.ISOA2, c.ISOA3, c.NameKo, c.NameEn, c.Aliases,
		c.ShortDescription, c.FlagImageURL,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slug или iso_a3 страны уже используется", ErrConflict)
		}
		return fmt.Errorf("ошибка создания страны: %w", err)
	}
	return nil
}

func (r *countryRepo) getOne(ctx context.Context, where string, arg any) (*model.Country, error) {
	query := `SELECT ` + countryColumns + ` FROM countries WHERE ` + where

	c := &model.Country{}
	if err := scanCountry(r.db.QueryRow(ctx, query, arg), c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения страны: %w", err)
	}
	return c, nil
}

func (r *countryRepo) GetByID(ctx context.Context, id int64) (*model.Country, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *countryRepo) GetBySlug(ctx context.Context, slug string) (*model.Country, error) {
	return r.getOne(ctx, "slug = $1", slug)
}

func (r *countryRepo) GetByISOA3(ctx context.Context, iso string) (*model.Country, error) {
	return r.getOne(ctx, "iso_a3 = $1", iso)
}

func (r *countryRepo) List(ctx context.Context) ([]*model.Country, error) {
	rows, err := r.db.Query(ctx, `SELECT `+countryColumns+` FROM countries ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка стран: %w", err)
	}
	defer rows.Close()

	var result []*model.Country
	for rows.Next() {
		c := &model.Country{}
		if err := scanCountry(rows, c); err != nil {
			return nil, fmt.Errorf("ошибка сканирования страны: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *countryRepo) ListCards(ctx context.Context) ([]*model.CountryCard, error) {
	query := `
		SELECT c.id, c.name, c.slug, c.iso_a2, c.iso_a3, c.name_ko, c.name_en, c.aliases,
			c.short_description, c.flag_image_url, c.created_at, c.updated_at,
			COUNT(p.id) FILTER (WHERE p.is_published)
		FROM countries c
		LEFT JOIN posts p ON p.country_id = c.id
		GROUP BY c.id
		ORDER BY c.name, c.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения карточек стран: %w", err)
	}
	defer rows.Close()

	var result []*model.CountryCard
	for rows.Next() {
		card := &model.CountryCard{}
		c := &card.Country
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Slug, &c.ISOA2, &c.ISOA3, &c.NameKo, &c.NameEn, &c.Aliases,
			&c.ShortDescription, &c.FlagImageURL, &c.CreatedAt, &c.UpdatedAt,
			&card.PublishedPosts,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования карточки страны: %w", err)
		}
		result = append(result, card)
	}
	return result, rows.Err()
}

func (r *countryRepo) Update(ctx context.Context, c *model.Country) error {
	query := `
		UPDATE countries
		SET name = $2, slug = $3, iso_a2 = $4, iso_a3 = $5, name_ko = $6, name_en = $7,
			aliases = $8, short_description = $9, flag_image_url = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.Name, c.Slug, c.ISOA2, c.ISOA3, c.NameKo, c.NameEn,
		c.Aliases, c.ShortDescription, c.FlagImageURL,
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slug или iso_a3 страны уже используется", ErrConflict)
		}
		return fmt.Errorf("ошибка обновления страны: %w", err)
	}
	return nil
}

func (r *countryRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM countries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления страны: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *countryRepo) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM countries WHERE slug = $1 AND id <> $2)`,
		slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки slug страны: %w", err)
	}
	return exists, nil
}

func (r *countryRepo) Upsert(ctx context.Context, c *model.Country) (UpsertResult, error) {
	query := `
		WITH prev AS (SELECT slug FROM countries WHERE id = $1)
		INSERT INTO countries (id, name, slug, iso_a2, iso_a3, name_ko, name_en, aliases,
			short_description, flag_image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, slug = EXCLUDED.slug, iso_a2 = EXCLUDED.iso_a2,
			iso_a3 = EXCLUDED.iso_a3, name_ko = EXCLUDED.name_ko, name_en = EXCLUDED.name_en,
			aliases = EXCLUDED.aliases, short_description = EXCLUDED.short_description,
			flag_image_url = EXCLUDED.flag_image_url, updated_at = now()
		WHERE (countries.name, countries.slug, countries.iso_a2, countries.iso_a3,
				countries.name_ko, countries.name_en, countries.aliases,
				countries.short_description, countries.flag_image_url)
			IS DISTINCT FROM
			(EXCLUDED.name, EXCLUDED.slug, EXCLUDED.iso_a2, EXCLUDED.iso_a3,
				EXCLUDED.name_ko, EXCLUDED.name_en, EXCLUDED.aliases,
				EXCLUDED.short_description, EXCLUDED.flag_image_url)
		RETURNING COALESCE((SELECT slug FROM prev), '')`

	var res UpsertResult
	err := r.db.QueryRow(ctx, query,
		c.ID, c.Name, c.Slug, c.ISOA2, c.ISOA3, c.NameKo, c.NameEn,
		c.Aliases, c.ShortDescription, c.FlagImageURL,
	).Scan(&res.PrevSlug)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Строка не изменилась
		return UpsertResult{}, nil
	case err != nil:
		if isUniqueViolation(err) {
			return UpsertResult{}, fmt.Errorf("%w: страна %d: slug или iso_a3 уже используется", ErrConflict, c.ID)
		}
		return UpsertResult{}, fmt.Errorf("ошибка upsert страны %d: %w", c.ID, err)
	}
	res.Written = true
	return res, nil
}
