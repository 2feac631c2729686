// normalize.go — нормализация полей страны при сохранении и проверке целостности.
package service

import (
	"strings"
	"time"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// NormalizeISO обрезает пробелы и переводит код в верхний регистр.
// Пустое значение становится NULL.
func NormalizeISO(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.ToUpper(strings.TrimSpace(*v))
	if s == "" {
		return nil
	}
	return &s
}

// ValidISO проверяет, что код состоит ровно из n латинских букв.
func ValidISO(v string, n int) bool {
	if len(v) != n {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

// NormalizeAliases приводит список псевдонимов к виду "a, b, c".
func NormalizeAliases(s string) string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// normalizeCountry применяет правила сохранения страны к полям c.
func normalizeCountry(c *model.Country) {
	c.Name = strings.TrimSpace(c.Name)
	c.Slug = strings.TrimSpace(c.Slug)
	c.ISOA2 = NormalizeISO(c.ISOA2)
	c.ISOA3 = NormalizeISO(c.ISOA3)
	c.NameKo = strings.TrimSpace(c.NameKo)
	c.NameEn = strings.TrimSpace(c.NameEn)
	c.Aliases = NormalizeAliases(c.Aliases)
	c.ShortDescription = strings.TrimSpace(c.ShortDescription)
}

// strPtrValue возвращает значение указателя или пустую строку.
func strPtrValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// today возвращает текущую дату (UTC, без времени).
func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
