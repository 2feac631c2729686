package model

import "time"

// SeedMeta — отметка о применённом seed-фикстуре.
// Хранится в таблице seed_meta (name — первичный ключ).
type SeedMeta struct {
	Name        string
	FixturePath string
	// FixtureSHA256 — hex SHA-256 сырых байтов фикстуры
	FixtureSHA256 string
	AppliedAt     time.Time
	// Notes — произвольные сведения о прогоне (счётчики записей)
	Notes map[string]any
}
