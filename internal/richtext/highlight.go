package richtext

import (
	"html/template"
	"regexp"
	"sort"
	"strings"
)

// Highlight экранирует text и оборачивает в <mark> совпадения со словами
// запроса без учёта регистра. Более длинные слова проверяются первыми.
func Highlight(text, query string) template.HTML {
	tokens := uniqueTokens(query)
	if text == "" || len(tokens) == 0 {
		return template.HTML(template.HTMLEscapeString(text)) //nolint:gosec // экранировано
	}

	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	re := regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)

	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		b.WriteString(template.HTMLEscapeString(text[last:loc[0]]))
		b.WriteString("<mark>")
		b.WriteString(template.HTMLEscapeString(text[loc[0]:loc[1]]))
		b.WriteString("</mark>")
		last = loc[1]
	}
	b.WriteString(template.HTMLEscapeString(text[last:]))
	return template.HTML(b.String()) //nolint:gosec // все участки экранированы
}

func uniqueTokens(query string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, t := range strings.Fields(query) {
		if !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool { return len(tokens[i]) > len(tokens[j]) })
	return tokens
}
