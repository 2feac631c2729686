package model

import "time"

// SlugKind — тип элемента, которому принадлежит slug.
type SlugKind string

// Типы элементов со slug-историей.
const (
	KindCountry SlugKind = "country"
	KindPost    SlugKind = "post"
	KindTag     SlugKind = "tag"
)

// SlugKinds возвращает все типы в фиксированном порядке.
func SlugKinds() []SlugKind {
	return []SlugKind{KindCountry, KindPost, KindTag}
}

// Valid проверяет, является ли значение известным типом.
func (k SlugKind) Valid() bool {
	return k == KindCountry || k == KindPost || k == KindTag
}

// SlugHistoryRecord — запись старого slug элемента.
// Хранится в таблице slug_history; указывает на id элемента,
// поэтому разрешение всегда выполняется за один шаг.
type SlugHistoryRecord struct {
	ID         int64
	Kind       SlugKind
	OldSlug    string
	ItemID     int64
	RecordedAt time.Time
}

// SlugHistoryRow — запись истории вместе с состоянием элемента-владельца.
// Используется проверками целостности.
type SlugHistoryRow struct {
	SlugHistoryRecord
	// ItemExists — элемент с ItemID существует
	ItemExists bool
	// ItemSlug — текущий slug владельца (пустой, если элемента нет)
	ItemSlug string
	// LiveOwnerID — id другого элемента того же типа, у которого old_slug
	// является текущим slug (0, если такого нет)
	LiveOwnerID int64
}
