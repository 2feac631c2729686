package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/service"
)

// writeJSON выводит v в JSON с отступами, не экранируя не-ASCII символы.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("кодирование JSON: %w", err)
	}
	return nil
}

func printSeedResult(w io.Writer, path string, res *service.SeedResult) {
	if res.Skipped {
		fmt.Fprintf(w, "Фикстура %s уже применена (sha256 %s), загрузка пропущена.\n", path, service.ShortHash(res.Hash))
		return
	}
	fmt.Fprintf(w, "Фикстура %s загружена (sha256 %s).\n", path, service.ShortHash(res.Hash))
	fmt.Fprintf(w, "  записей: %d, изменено: %d, переименований slug: %d\n", res.Records, res.Written, res.Renamed)
	switch {
	case res.IntegrityErr != nil:
		fmt.Fprintf(w, "  check_integrity --fix: ошибка: %v\n", res.IntegrityErr)
	case res.Integrity != nil:
		fmt.Fprintf(w, "  check_integrity --fix: исправлено %d, предупреждений %d\n",
			len(res.Integrity.Changes), len(res.Integrity.Warnings))
	}
}

func printIntegrityReport(w io.Writer, r *service.IntegrityReport, limit int) {
	s := r.Summary
	mode := "проверка (без изменений)"
	if r.FixApplied {
		mode = "исправления применены"
	}
	fmt.Fprintf(w, "check_integrity: %s\n", mode)
	fmt.Fprintf(w, "  страны: %d (изменено %d)\n", s.CountriesTotal, s.CountriesTouched)
	fmt.Fprintf(w, "  посты: %d (изменено %d)\n", s.PostsTotal, s.PostsTouched)
	fmt.Fprintf(w, "  история slug: %d (удалено %d)\n", s.SlugHistoryTotal, s.SlugHistoryDeleted)
	fmt.Fprintf(w, "  изображения без поста: %d\n", s.OrphanImages)
	fmt.Fprintf(w, "  исправимых нарушений: %d, предупреждений: %d, постов с битыми токенами: %d\n",
		r.Fixable(), len(r.Warnings), len(r.MissingImageTokens))

	if len(r.Changes) > 0 {
		fmt.Fprintln(w, "\nИзменения:")
		for _, c := range sample(r.Changes, limit) {
			fmt.Fprintf(w, "  %s#%d %s: %v -> %v\n", c.Model, c.ID, c.Field, printable(c.Before), printable(c.After))
		}
		printMore(w, len(r.Changes), limit)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "\nПредупреждения:")
		for _, wr := range sample(r.Warnings, limit) {
			if wr.Value != nil {
				fmt.Fprintf(w, "  %s#%d %s (%v)\n", wr.Model, wr.ID, wr.Issue, wr.Value)
			} else {
				fmt.Fprintf(w, "  %s#%d %s\n", wr.Model, wr.ID, wr.Issue)
			}
		}
		printMore(w, len(r.Warnings), limit)
	}
	if len(r.MissingImageTokens) > 0 {
		fmt.Fprintln(w, "\nТокены [[img:N]] без изображения в посте:")
		for _, m := range sample(r.MissingImageTokens, limit) {
			fmt.Fprintf(w, "  post#%d %s/%s: %v\n", m.PostID, m.Country, m.PostSlug, m.MissingImageIDs)
		}
		printMore(w, len(r.MissingImageTokens), limit)
	}
}

func printISOFix(w io.Writer, res *service.ISOFixResult, apply bool, limit int) {
	if len(res.Bad) == 0 {
		fmt.Fprintln(w, "Некорректных iso_a3 нет.")
		return
	}
	fmt.Fprintf(w, "Некорректных iso_a3: %d\n", len(res.Bad))
	for _, b := range sample(res.Bad, limit) {
		fmt.Fprintf(w, "  country#%d %s (%s): %q\n", b.ID, b.Slug, b.Name, b.ISOA3)
	}
	printMore(w, len(res.Bad), limit)
	if apply {
		fmt.Fprintf(w, "Очищено: %d\n", res.Cleared)
	} else {
		fmt.Fprintln(w, "Dry-run: для очистки запустите с --apply.")
	}
}

func printHistoryFix(w io.Writer, res *service.HistoryFixResult, apply, verbose bool, limit int) {
	fmt.Fprintf(w, "Записей истории slug: %d\n", res.Total)
	groups := []struct {
		title string
		rows  []*model.SlugHistoryRow
	}{
		{"недопустимый формат", res.Issues.Invalid},
		{"элемент удалён", res.Issues.Orphan},
		{"совпадает с живым slug другого элемента", res.Issues.Collision},
		{"совпадает с текущим slug", res.Issues.Redundant},
	}
	for _, g := range groups {
		fmt.Fprintf(w, "  %s: %d\n", g.title, len(g.rows))
		if !verbose {
			continue
		}
		for _, row := range sample(g.rows, limit) {
			fmt.Fprintf(w, "    #%d %s %q -> %d\n", row.ID, row.Kind, row.OldSlug, row.ItemID)
		}
		printMore(w, len(g.rows), limit)
	}
	fmt.Fprintf(w, "К удалению: %d\n", len(res.ToDelete))
	if !apply {
		if len(res.ToDelete) > 0 {
			fmt.Fprintln(w, "Dry-run: для удаления запустите с --apply.")
		}
		return
	}
	fmt.Fprintf(w, "Удалено: %d\n", res.Deleted)
	if res.RemainingInvalid > 0 {
		fmt.Fprintf(w, "После удаления осталось недопустимых записей: %d\n", res.RemainingInvalid)
	}
}

func printTagSlugFix(w io.Writer, res *service.TagSlugFixResult, apply, verbose bool, limit int) {
	if len(res.Candidates) == 0 {
		fmt.Fprintln(w, "Все slug тегов соответствуют именам.")
		return
	}
	skipped := 0
	for _, c := range res.Candidates {
		if c.Skipped {
			skipped++
		}
	}
	fmt.Fprintf(w, "Тегов с неожиданным slug: %d\n", len(res.Candidates))
	if verbose {
		for _, c := range sample(res.Candidates, limit) {
			note := ""
			if c.Skipped {
				note = " (пропущен: slug занят)"
			}
			fmt.Fprintf(w, "  tag#%d %q: %q -> %q%s\n", c.Tag.ID, c.Tag.Name, c.Tag.Slug, c.Expected, note)
		}
		printMore(w, len(res.Candidates), limit)
	}
	if apply {
		fmt.Fprintf(w, "Переименовано: %d, пропущено: %d\n", res.Renamed, skipped)
	} else {
		fmt.Fprintln(w, "Dry-run: для переименования запустите с --apply.")
	}
}

func printAudit(w io.Writer, r *service.AuditReport) {
	for i, s := range r.Sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s ==\n", s.Title)
		for _, line := range s.Lines {
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintln(w)
	if r.OK() {
		fmt.Fprintln(w, "Аудит пройден: проблем не найдено.")
		return
	}
	fmt.Fprintf(w, "Найдено проблем: %d\n", len(r.Issues))
	for _, issue := range r.Issues {
		fmt.Fprintf(w, "  - %s\n", issue)
	}
}

func printOpsReport(w io.Writer, r *service.OpsReport) {
	width := 0
	for _, it := range r.Items {
		width = max(width, len(it.Key))
	}
	for _, it := range r.Items {
		fmt.Fprintf(w, "[%-5s] %-*s %s\n", it.Status, width, it.Key, it.Message)
	}
	fmt.Fprintf(w, "\nOK: %d, WARN: %d, ERROR: %d\n", r.Summary.OK, r.Summary.Warn, r.Summary.Error)
}

func printGeoImport(w io.Writer, res *service.GeoImportResult) {
	prefix := ""
	if res.DryRun {
		prefix = "Dry-run: "
	}
	fmt.Fprintf(w, "%sсоздано %d, обновлено %d, пропущено %d\n", prefix, res.Created, res.Updated, res.Skipped)
}

// sample возвращает первые limit элементов; limit <= 0 — все.
func sample[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}

func printMore(w io.Writer, total, limit int) {
	if limit > 0 && total > limit {
		fmt.Fprintf(w, "  ... и ещё %d\n", total-limit)
	}
}

// printable показывает nil как NULL, строки в кавычках.
func printable(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", x)
	case *string:
		if x == nil {
			return "NULL"
		}
		return fmt.Sprintf("%q", *x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
