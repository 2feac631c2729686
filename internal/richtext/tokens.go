// Пакет richtext — рендеринг тела поста: токены изображений
// [[img:ID|опции]], Markdown, санитизация HTML и подсветка поиска.
package richtext

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

var (
	imgTokenRe = regexp.MustCompile(`\[\[img:(\d+)(?:\|([^\]]+))?\]\]`)
	fencedRe   = regexp.MustCompile("(?ms)^```.*?$.*?^```[ \\t]*$|^~~~.*?$.*?^~~~[ \\t]*$")
)

// ImageOptions — опции токена изображения.
type ImageOptions struct {
	Width   int
	Height  int
	Crop    string
	Caption *string
	Alt     *string
}

// ParseImageOptions разбирает строку вида `w=480|h=320|crop=fill|caption="..."`.
// Кавычки вокруг значения снимаются, нечисловые w/h игнорируются.
func ParseImageOptions(s string) ImageOptions {
	var opts ImageOptions
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = unquote(strings.TrimSpace(val))

		switch key {
		case "w":
			opts.Width = positiveInt(val)
		case "h":
			opts.Height = positiveInt(val)
		case "crop":
			opts.Crop = val
		case "caption":
			v := val
			opts.Caption = &v
		case "alt":
			v := val
			opts.Alt = &v
		}
	}
	return opts
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == v[len(v)-1] && (v[0] == '"' || v[0] == '\'') {
		return v[1 : len(v)-1]
	}
	return v
}

func positiveInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// ReplaceImageTokens заменяет токены изображений поста на <figure>
// вне fenced- и inline-блоков кода. Токены с неизвестным id остаются как есть.
// Возвращает текст и множество использованных id.
func ReplaceImageTokens(md string, images map[int64]*model.PostImage) (string, map[int64]bool) {
	used := make(map[int64]bool)
	out := mapOutsideCode(md, func(text string) string {
		return imgTokenRe.ReplaceAllStringFunc(text, func(token string) string {
			m := imgTokenRe.FindStringSubmatch(token)
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return token
			}
			img, ok := images[id]
			if !ok {
				return token
			}
			used[id] = true
			return figureHTML(img, ParseImageOptions(m[2]))
		})
	})
	return out, used
}

// TokenIDs возвращает id изображений из токенов вне кода в порядке появления.
func TokenIDs(md string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	mapOutsideCode(md, func(text string) string {
		for _, m := range imgTokenRe.FindAllStringSubmatch(text, -1) {
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		return text
	})
	return ids
}

func figureHTML(img *model.PostImage, opts ImageOptions) string {
	caption := img.Caption
	if opts.Caption != nil {
		caption = *opts.Caption
	}
	alt := caption
	if opts.Alt != nil {
		alt = *opts.Alt
	}

	src := CloudinaryURL(img.ImageURL, opts.Width, opts.Height, opts.Crop)

	var b strings.Builder
	b.WriteString(`<figure class="md-img">`)
	b.WriteString(`<img class="md-img__img" src="` + html.EscapeString(src) +
		`" alt="` + html.EscapeString(alt) + `" loading="lazy" />`)
	if caption != "" {
		b.WriteString(`<figcaption class="hint md-img__cap">` + html.EscapeString(caption) + `</figcaption>`)
	}
	b.WriteString(`</figure>`)
	return b.String()
}

// mapOutsideCode применяет fn к участкам текста вне fenced- и inline-кода.
func mapOutsideCode(md string, fn func(string) string) string {
	var b strings.Builder
	last := 0
	for _, loc := range fencedRe.FindAllStringIndex(md, -1) {
		b.WriteString(mapOutsideInline(md[last:loc[0]], fn))
		b.WriteString(md[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(mapOutsideInline(md[last:], fn))
	return b.String()
}

// mapOutsideInline применяет fn вне inline-кода: серия из n обратных
// кавычек закрывается ближайшей серией той же длины.
func mapOutsideInline(s string, fn func(string) string) string {
	var b strings.Builder
	plainStart := 0
	i := 0
	for i < len(s) {
		if s[i] != '`' {
			i++
			continue
		}
		n := backtickRun(s, i)
		closeAt := findClosingRun(s, i+n, n)
		if closeAt < 0 {
			i += n
			continue
		}
		b.WriteString(fn(s[plainStart:i]))
		end := closeAt + n
		b.WriteString(s[i:end])
		i = end
		plainStart = end
	}
	b.WriteString(fn(s[plainStart:]))
	return b.String()
}

func backtickRun(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] == '`' {
		n++
	}
	return n
}

func findClosingRun(s string, from, n int) int {
	for j := from; j < len(s); {
		if s[j] != '`' {
			j++
			continue
		}
		run := backtickRun(s, j)
		if run == n {
			return j
		}
		j += run
	}
	return -1
}
