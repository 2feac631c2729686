// Пакет slugs — генерация и проверка slug для стран, постов и тегов.
package slugs

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Максимальные длины slug по типам элементов (совпадают со схемой БД).
const (
	MaxCountryLen = 50
	MaxPostLen    = 220
	MaxTagLen     = 60
)

var (
	asciiSlugRe   = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	unicodeSlugRe = regexp.MustCompile(`^[-\p{L}\p{N}_]+$`)
	dashSpaceRe   = regexp.MustCompile(`[-\s]+`)
)

// IsASCII проверяет slug стран и постов.
func IsASCII(s string) bool {
	return asciiSlugRe.MatchString(s)
}

// IsUnicode проверяет slug тегов: допускаются буквы и цифры любых алфавитов.
func IsUnicode(s string) bool {
	return unicodeSlugRe.MatchString(s)
}

// Slugify строит ASCII slug: NFKD, удаление диакритики и всех
// не-ASCII символов, нижний регистр, пробелы и дефисы схлопываются в "-".
func Slugify(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range folded {
		if r > unicode.MaxASCII {
			continue
		}
		b.WriteRune(r)
	}
	return clean(b.String())
}

// SlugifyUnicode строит slug с сохранением букв любых алфавитов (NFKC).
func SlugifyUnicode(s string) string {
	return clean(norm.NFKC.String(s))
}

// clean оставляет буквы, цифры, "_", "-" и пробелы, затем приводит
// к нижнему регистру и заменяет серии пробелов и дефисов на "-".
func clean(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-', unicode.IsSpace(r):
			return r
		}
		return -1
	}, strings.ToLower(s))
	s = dashSpaceRe.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.Trim(s, "-_")
}

// Base возвращает кандидат slug для base: сначала ASCII, затем Unicode,
// затем fallback. Результат обрезается до maxLen рун.
func Base(base, fallback string, maxLen int) string {
	base = strings.TrimSpace(base)
	s := Slugify(base)
	if s == "" {
		s = SlugifyUnicode(base)
	}
	if s == "" {
		s = fallback
	}
	return truncate(s, maxLen)
}

// ExistsFunc сообщает, занят ли candidate другим элементом.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Unique возвращает свободный slug на основе base, добавляя суффиксы
// -2, -3, ... с сохранением ограничения maxLen.
func Unique(ctx context.Context, base, fallback string, maxLen int, exists ExistsFunc) (string, error) {
	return Dedupe(ctx, Base(base, fallback, maxLen), maxLen, exists)
}

// Dedupe возвращает s или первый свободный вариант s-2, s-3, ...
func Dedupe(ctx context.Context, s string, maxLen int, exists ExistsFunc) (string, error) {
	candidate := s
	for n := 2; ; n++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("проверка занятости slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}

		suffix := fmt.Sprintf("-%d", n)
		cut := maxLen - len(suffix)
		if cut > 0 {
			candidate = truncate(s, cut) + suffix
		} else {
			candidate = s + suffix
		}
	}
}

// TagSlug возвращает ожидаемый slug тега из имени: Unicode сохраняется,
// пробелы и "/" заменяются на "-", повторные дефисы схлопываются.
func TagSlug(name string) string {
	s := strings.TrimSpace(name)
	s = strings.NewReplacer(" ", "-", "/", "-").Replace(s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return strings.Trim(string(r[:maxLen]), "-")
}

// ExpectedTagSlug возвращает slug, который должен быть у тега с именем name.
// Если TagSlug даёт недопустимые символы, используется обычная генерация.
func ExpectedTagSlug(name string) string {
	if s := TagSlug(name); IsUnicode(s) {
		return truncate(s, MaxTagLen)
	}
	return Base(name, "tag", MaxTagLen)
}
