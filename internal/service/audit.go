// audit.go — аудит контента только на чтение (audit_content).
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// AuditSection — раздел отчёта аудита.
type AuditSection struct {
	Title string
	Lines []string
}

// AuditReport — результат аудита.
type AuditReport struct {
	Sections []*AuditSection
	// Issues — найденные проблемы; пустой список — аудит пройден
	Issues []string
}

// OK сообщает об отсутствии проблем.
func (r *AuditReport) OK() bool { return len(r.Issues) == 0 }

// auditBuilder добавляет строки в текущий раздел.
type auditBuilder struct {
	report  *AuditReport
	section *AuditSection
	verbose bool
	sample  int
}

func (b *auditBuilder) begin(title string) {
	b.section = &AuditSection{Title: title}
	b.report.Sections = append(b.report.Sections, b.section)
}

func (b *auditBuilder) info(format string, args ...any) {
	b.section.Lines = append(b.section.Lines, fmt.Sprintf(format, args...))
}

// check фиксирует проблему (n > 0) или строку "OK".
// details выводятся только в подробном режиме, не больше sample строк.
func (b *auditBuilder) check(n int, issue, okLine string, details []string) {
	if n == 0 {
		b.info("- %s: OK", okLine)
		return
	}
	b.report.Issues = append(b.report.Issues, fmt.Sprintf("%s: %d", issue, n))
	if !b.verbose {
		return
	}
	for i, d := range details {
		if i >= b.sample {
			b.info("  ... (показаны первые %d)", b.sample)
			break
		}
		b.info("  ! %s", d)
	}
}

// duplicateGroups возвращает группы повторяющихся ключей (ключ -> количество).
func duplicateGroups(keys []string) []string {
	counts := make(map[string]int)
	for _, k := range keys {
		counts[k]++
	}
	var out []string
	for k, n := range counts {
		if n > 1 {
			out = append(out, fmt.Sprintf("dup slug='%s' count=%d", k, n))
		}
	}
	sort.Strings(out)
	return out
}

// Audit проверяет контент, ничего не изменяя.
func (s *MaintenanceService) Audit(ctx context.Context, verbose bool, sample int) (*AuditReport, error) {
	if sample <= 0 {
		sample = DefaultReportLimit
	}
	repos := s.store.Repos()
	b := &auditBuilder{report: &AuditReport{}, verbose: verbose, sample: sample}

	// Страны
	countries, err := repos.Countries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка стран: %w", err)
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].ID < countries[j].ID })

	b.begin("Country")
	b.info("- total: %d", len(countries))
	var slugsList, missing, badA2, badA3 []string
	for _, c := range countries {
		if strings.TrimSpace(c.Slug) == "" {
			missing = append(missing, fmt.Sprintf("id=%d name=%q", c.ID, c.Name))
		} else {
			slugsList = append(slugsList, c.Slug)
		}
		if v := strPtrValue(c.ISOA2); v != "" && !ValidISO(v, 2) {
			badA2 = append(badA2, fmt.Sprintf("%d slug=%s iso_a2='%s'", c.ID, c.Slug, v))
		}
		if v := strPtrValue(c.ISOA3); v != "" && !ValidISO(v, 3) {
			badA3 = append(badA3, fmt.Sprintf("%d slug=%s iso_a3='%s'", c.ID, c.Slug, v))
		}
	}
	dups := duplicateGroups(slugsList)
	b.check(len(dups), "Country.slug duplicate groups", "slug duplicates", dups)
	b.check(len(missing), "Country.slug missing", "slug missing", missing)
	b.check(len(badA2), "Country.iso_a2 invalid", "iso_a2 format", badA2)
	b.check(len(badA3), "Country.iso_a3 invalid", "iso_a3 format", badA3)

	// Теги
	tags, err := repos.Tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка тегов: %w", err)
	}
	b.begin("Tag")
	b.info("- total: %d", len(tags))
	slugsList, missing = nil, nil
	var noName []string
	for _, t := range tags {
		if strings.TrimSpace(t.Slug) == "" {
			missing = append(missing, fmt.Sprintf("id=%d name=%q", t.ID, t.Name))
		} else {
			slugsList = append(slugsList, t.Slug)
		}
		if strings.TrimSpace(t.Name) == "" {
			noName = append(noName, fmt.Sprintf("id=%d slug=%s", t.ID, t.Slug))
		}
	}
	dups = duplicateGroups(slugsList)
	b.check(len(dups), "Tag.slug duplicate groups", "slug duplicates", dups)
	b.check(len(missing), "Tag.slug missing", "slug missing", missing)
	b.check(len(noName), "Tag.name missing", "name missing", noName)

	// Посты
	posts, err := repos.Posts.List(ctx, model.PostFilter{})
	if err != nil {
		return nil, fmt.Errorf("получение списка постов: %w", err)
	}
	if err := repos.Posts.LoadTags(ctx, posts); err != nil {
		return nil, err
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })

	b.begin("Post")
	published, withTags := 0, 0
	slugsList, missing = nil, nil
	var noDate []string
	for _, p := range posts {
		if p.IsPublished {
			published++
			if len(p.Tags) > 0 {
				withTags++
			}
			if p.PublishedAt == nil {
				noDate = append(noDate, fmt.Sprintf("id=%d slug=%s", p.ID, p.Slug))
			}
		}
		if strings.TrimSpace(p.Slug) == "" {
			missing = append(missing, fmt.Sprintf("id=%d title=%q", p.ID, p.Title))
		} else {
			slugsList = append(slugsList, p.Slug)
		}
	}
	b.info("- total: %d (published: %d)", len(posts), published)
	b.check(len(missing), "Post.slug missing", "slug missing", missing)
	dups = duplicateGroups(slugsList)
	b.check(len(dups), "Post slug duplicates", "slug duplicates", dups)
	b.check(len(noDate), "Published posts missing published_at", "published_at for published posts", noDate)
	b.info("- published posts with ≥1 tag: %d", withTags)

	// История slug
	rows, err := repos.History.ListWithOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение истории slug: %w", err)
	}
	issues := ClassifyHistory(rows)
	b.begin("SlugHistory")
	b.info("- total: %d", len(rows))
	describe := func(list []*model.SlugHistoryRow) []string {
		out := make([]string, 0, len(list))
		for _, row := range list {
			out = append(out, fmt.Sprintf("id=%d kind=%s old_slug='%s' item_id=%d", row.ID, row.Kind, row.OldSlug, row.ItemID))
		}
		return out
	}
	b.check(len(issues.Invalid), "SlugHistory invalid old_slug", "invalid old_slug", describe(issues.Invalid))
	b.check(len(issues.Orphan), "SlugHistory orphan rows", "orphan rows", describe(issues.Orphan))
	b.check(len(issues.Collision), "SlugHistory collisions with live slugs", "collisions with live slugs", describe(issues.Collision))
	b.check(len(issues.Redundant), "SlugHistory redundant rows", "redundant rows", describe(issues.Redundant))

	return b.report, nil
}
