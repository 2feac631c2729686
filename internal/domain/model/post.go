package model

import (
	"strings"
	"time"
)

// Category — категория поста.
type Category string

// Категории постов в порядке вкладок доски.
const (
	CategoryTravel  Category = "TRAVEL"
	CategoryHistory Category = "HISTORY"
	CategoryCulture Category = "CULTURE"
	CategoryMyLog   Category = "MY_LOG"
)

// DefaultCategory — категория доски, если в URL она не указана или неизвестна.
const DefaultCategory = CategoryTravel

// Categories возвращает все категории в порядке вкладок.
func Categories() []Category {
	return []Category{CategoryTravel, CategoryHistory, CategoryCulture, CategoryMyLog}
}

var categorySlugs = map[Category]string{
	CategoryTravel:  "travel",
	CategoryHistory: "history",
	CategoryCulture: "culture",
	CategoryMyLog:   "my-log",
}

// Slug возвращает сегмент URL категории (travel, my-log, ...).
func (c Category) Slug() string {
	return categorySlugs[c]
}

// Valid проверяет, является ли значение известной категорией.
func (c Category) Valid() bool {
	_, ok := categorySlugs[c]
	return ok
}

// CategoryFromSlug преобразует сегмент URL в категорию.
// Второе значение false, если slug неизвестен.
func CategoryFromSlug(slug string) (Category, bool) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	for c, s := range categorySlugs {
		if s == slug {
			return c, true
		}
	}
	return "", false
}

// ParseCategory принимает как код (MY_LOG), так и slug (my-log).
// Неизвестное значение даёт DefaultCategory.
func ParseCategory(v string) Category {
	if c := Category(strings.ToUpper(strings.TrimSpace(v))); c.Valid() {
		return c
	}
	if c, ok := CategoryFromSlug(v); ok {
		return c
	}
	return DefaultCategory
}

// Post — пост блога.
// Хранится в таблице posts.
type Post struct {
	ID        int64
	CountryID int64
	Category  Category
	Title     string
	// Slug — ASCII slug, уникален среди всех постов
	Slug string
	// Content — Markdown с токенами [[img:ID|...]]
	Content       string
	CoverImageURL string
	IsPublished   bool
	// PublishedAt — дата публикации (NULL допустим только у черновиков)
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Заполняются при чтении с JOIN
	CountrySlug string
	Tags        []Tag
}

// PostImage — изображение поста; ID используется в токенах [[img:ID]].
// Хранится в таблице post_images.
type PostImage struct {
	ID     int64
	PostID int64
	// ImageURL — публичный URL (локальный /media/... или S3/Cloudinary)
	ImageURL string
	// StorageKey — ключ в хранилище медиа (пустой для внешних URL)
	StorageKey string
	Caption    string
	SortOrder  int
	CreatedAt  time.Time
}

// PostFilter — параметры выборки постов для доски.
type PostFilter struct {
	CountryID     *int64
	Category      Category
	TagID         *int64
	Query         string
	PublishedOnly bool
	Limit         int
	Offset        int
}
