package model

import "time"

// Country — страна, единица навигации по глобусу.
// Хранится в таблице countries.
type Country struct {
	ID int64
	// Name — отображаемое имя (обычно английское)
	Name string
	// Slug — ASCII slug, уникален среди стран
	Slug string
	// ISOA2 — ISO 3166-1 alpha-2 (NULL, если не задан)
	ISOA2 *string
	// ISOA3 — ISO 3166-1 alpha-3, ключ сопоставления с GeoJSON глобуса
	ISOA3 *string
	NameKo string
	NameEn string
	// Aliases — альтернативные имена через запятую для поиска по глобусу
	Aliases string
	// ShortDescription — краткое описание для списка стран
	ShortDescription string
	FlagImageURL     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CountryCard — страна со счётчиком опубликованных постов для списка.
type CountryCard struct {
	Country
	PublishedPosts int
}
