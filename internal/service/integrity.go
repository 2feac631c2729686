// integrity.go — проверка и исправление целостности контента (check_integrity).
// Без Fix отчёт только описывает изменения; с Fix они применяются
// в одной транзакции. Повторный прогон после Fix изменений не находит.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/repository"
	"github.com/bigkaa/dongrigo/internal/richtext"
	"github.com/bigkaa/dongrigo/internal/slugs"
)

// DefaultReportLimit — размер выборок в отчёте по умолчанию.
const DefaultReportLimit = 50

// Коды предупреждений.
const (
	IssueISOA2Len           = "iso_a2_len"
	IssueISOA3Len           = "iso_a3_len"
	IssueMissingSlug        = "missing_slug"
	IssueMissingPublishedAt = "missing_published_at"
	IssueHistoryOrphan      = "history_orphan"
	IssueHistoryCollision   = "history_collision"
	IssueHistoryRedundant   = "history_redundant"
)

// IntegrityWarning — найденное нарушение.
type IntegrityWarning struct {
	Model string `json:"model"`
	ID    int64  `json:"id"`
	Issue string `json:"issue"`
	Value any    `json:"value,omitempty"`
}

// IntegrityChange — изменение поля (запланированное или применённое).
type IntegrityChange struct {
	Model  string `json:"model"`
	ID     int64  `json:"id"`
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// MissingImageTokens — пост с токенами на изображения, не прикреплённые к нему.
type MissingImageTokens struct {
	PostID          int64   `json:"post_id"`
	PostSlug        string  `json:"post_slug"`
	Country         string  `json:"country"`
	MissingImageIDs []int64 `json:"missing_image_ids"`
}

// IntegritySummary — итоговые счётчики.
type IntegritySummary struct {
	CountriesTotal     int `json:"countries_total"`
	CountriesTouched   int `json:"countries_touched"`
	PostsTotal         int `json:"posts_total"`
	PostsTouched       int `json:"posts_touched"`
	OrphanImages       int `json:"orphan_images"`
	SlugHistoryTotal   int `json:"slug_history_total"`
	SlugHistoryDeleted int `json:"slug_history_deleted"`
}

// IntegrityCounts — полные размеры списков отчёта.
type IntegrityCounts struct {
	Warnings           int `json:"warnings"`
	MissingImageTokens int `json:"missing_image_tokens"`
	Changes            int `json:"changes"`
}

// IntegrityReport — полный результат проверки.
type IntegrityReport struct {
	FixApplied         bool
	Summary            IntegritySummary
	Warnings           []IntegrityWarning
	MissingImageTokens []MissingImageTokens
	Changes            []IntegrityChange
}

// IntegrityJSON — машиночитаемый отчёт с ограниченными выборками.
type IntegrityJSON struct {
	FixApplied               bool                 `json:"fix_applied"`
	Summary                  IntegritySummary     `json:"summary"`
	WarningsSample           []IntegrityWarning   `json:"warnings_sample"`
	MissingImageTokensSample []MissingImageTokens `json:"missing_image_tokens_sample"`
	ChangesSample            []IntegrityChange    `json:"changes_sample"`
	Counts                   IntegrityCounts      `json:"counts"`
}

// Fixable — количество нарушений, которые исправляет Fix.
func (r *IntegrityReport) Fixable() int {
	return len(r.Changes)
}

// JSON возвращает отчёт с выборками не длиннее limit.
func (r *IntegrityReport) JSON(limit int) IntegrityJSON {
	if limit < 0 {
		limit = 0
	}
	return IntegrityJSON{
		FixApplied:               r.FixApplied,
		Summary:                  r.Summary,
		WarningsSample:           head(r.Warnings, limit),
		MissingImageTokensSample: head(r.MissingImageTokens, limit),
		ChangesSample:            head(r.Changes, limit),
		Counts: IntegrityCounts{
			Warnings:           len(r.Warnings),
			MissingImageTokens: len(r.MissingImageTokens),
			Changes:            len(r.Changes),
		},
	}
}

// head возвращает первые n элементов (никогда не nil для JSON).
func head[T any](items []T, n int) []T {
	if len(items) < n {
		n = len(items)
	}
	out := make([]T, n)
	copy(out, items[:n])
	return out
}

// IntegrityService выполняет check_integrity.
type IntegrityService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewIntegrityService создаёт IntegrityService.
func NewIntegrityService(store repository.Store, logger *slog.Logger) *IntegrityService {
	return &IntegrityService{
		store:  store,
		logger: logger.With(slog.String("component", "integrity")),
	}
}

// Run проверяет контент. fix = true применяет исправления в одной транзакции.
func (s *IntegrityService) Run(ctx context.Context, fix bool) (*IntegrityReport, error) {
	var report *IntegrityReport
	run := func(r *repository.Repos) error {
		var err error
		report, err = checkIntegrity(ctx, r, fix)
		return err
	}

	var err error
	if fix {
		err = s.store.InTx(ctx, run)
	} else {
		err = run(s.store.Repos())
	}
	if err != nil {
		return nil, fmt.Errorf("проверка целостности: %w", err)
	}

	s.logger.Info("Проверка целостности завершена",
		slog.Bool("fix", fix),
		slog.Int("warnings", len(report.Warnings)),
		slog.Int("changes", len(report.Changes)),
		slog.Int("missing_image_tokens", len(report.MissingImageTokens)),
	)
	return report, nil
}

// integrityCheck накапливает отчёт по одному элементу.
type integrityCheck struct {
	report  *IntegrityReport
	model   string
	id      int64
	changed bool
}

func (c *integrityCheck) warn(issue string, value any) {
	c.report.Warnings = append(c.report.Warnings, IntegrityWarning{Model: c.model, ID: c.id, Issue: issue, Value: value})
}

func (c *integrityCheck) change(field string, before, after any) {
	c.report.Changes = append(c.report.Changes, IntegrityChange{Model: c.model, ID: c.id, Field: field, Before: before, After: after})
	c.changed = true
}

// isoValue — значение ISO для отчёта (nil для NULL).
func isoValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// dateValue — дата для отчёта (nil для NULL).
func dateValue(p *model.Post) any {
	if p.PublishedAt == nil {
		return nil
	}
	return p.PublishedAt.Format(dateLayout)
}

func checkIntegrity(ctx context.Context, r *repository.Repos, fix bool) (*IntegrityReport, error) {
	report := &IntegrityReport{FixApplied: fix}

	if err := checkCountries(ctx, r, report, fix); err != nil {
		return nil, err
	}
	if err := checkPosts(ctx, r, report, fix); err != nil {
		return nil, err
	}
	if err := checkHistory(ctx, r, report, fix); err != nil {
		return nil, err
	}

	orphans, err := r.Images.CountOrphans(ctx)
	if err != nil {
		return nil, err
	}
	report.Summary.OrphanImages = orphans
	return report, nil
}

func checkCountries(ctx context.Context, r *repository.Repos, report *IntegrityReport, fix bool) error {
	countries, err := r.Countries.List(ctx)
	if err != nil {
		return err
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].ID < countries[j].ID })
	report.Summary.CountriesTotal = len(countries)

	for _, c := range countries {
		chk := &integrityCheck{report: report, model: "Country", id: c.ID}

		// Нормализация ISO: пробелы, регистр, "" -> NULL
		if v := NormalizeISO(c.ISOA2); strPtrValue(v) != strPtrValue(c.ISOA2) || (v == nil) != (c.ISOA2 == nil) {
			chk.change("iso_a2", isoValue(c.ISOA2), isoValue(v))
			c.ISOA2 = v
		}
		if v := NormalizeISO(c.ISOA3); strPtrValue(v) != strPtrValue(c.ISOA3) || (v == nil) != (c.ISOA3 == nil) {
			chk.change("iso_a3", isoValue(c.ISOA3), isoValue(v))
			c.ISOA3 = v
		}

		if c.ISOA2 != nil && !ValidISO(*c.ISOA2, 2) {
			chk.warn(IssueISOA2Len, *c.ISOA2)
			chk.change("iso_a2", *c.ISOA2, nil)
			c.ISOA2 = nil
		}
		if c.ISOA3 != nil && !ValidISO(*c.ISOA3, 3) {
			chk.warn(IssueISOA3Len, *c.ISOA3)
			chk.change("iso_a3", *c.ISOA3, nil)
			c.ISOA3 = nil
		}

		if strings.TrimSpace(c.Slug) == "" {
			chk.warn(IssueMissingSlug, nil)
			base := c.NameEn
			if strings.TrimSpace(base) == "" {
				base = c.Name
			}
			id := c.ID
			slug, err := slugs.Unique(ctx, base, "country", slugs.MaxCountryLen, func(ctx context.Context, cand string) (bool, error) {
				return r.Countries.SlugExists(ctx, cand, id)
			})
			if err != nil {
				return err
			}
			chk.change("slug", c.Slug, slug)
			c.Slug = slug
		}

		if v := NormalizeAliases(c.Aliases); v != c.Aliases {
			chk.change("aliases", c.Aliases, v)
			c.Aliases = v
		}
		if v := strings.TrimSpace(c.NameKo); v != c.NameKo {
			chk.change("name_ko", c.NameKo, v)
			c.NameKo = v
		}
		if v := strings.TrimSpace(c.NameEn); v != c.NameEn {
			chk.change("name_en", c.NameEn, v)
			c.NameEn = v
		}

		if fix && chk.changed {
			if err := r.Countries.Update(ctx, c); err != nil {
				return fmt.Errorf("исправление страны %d: %w", c.ID, err)
			}
			if err := r.History.DeleteSlug(ctx, model.KindCountry, c.Slug); err != nil {
				return err
			}
			report.Summary.CountriesTouched++
		}
	}
	return nil
}

func checkPosts(ctx context.Context, r *repository.Repos, report *IntegrityReport, fix bool) error {
	posts, err := r.Posts.List(ctx, model.PostFilter{})
	if err != nil {
		return err
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	report.Summary.PostsTotal = len(posts)

	images, err := r.Images.ListAll(ctx)
	if err != nil {
		return err
	}
	attached := make(map[int64]map[int64]bool)
	for _, img := range images {
		if attached[img.PostID] == nil {
			attached[img.PostID] = make(map[int64]bool)
		}
		attached[img.PostID][img.ID] = true
	}

	for _, p := range posts {
		chk := &integrityCheck{report: report, model: "Post", id: p.ID}

		if strings.TrimSpace(p.Slug) == "" {
			chk.warn(IssueMissingSlug, nil)
			id := p.ID
			slug, err := slugs.Unique(ctx, p.Title, "post", slugs.MaxPostLen, func(ctx context.Context, cand string) (bool, error) {
				return r.Posts.SlugExists(ctx, cand, id)
			})
			if err != nil {
				return err
			}
			chk.change("slug", p.Slug, slug)
			p.Slug = slug
		}

		if p.IsPublished && p.PublishedAt == nil {
			chk.warn(IssueMissingPublishedAt, nil)
			d := today()
			before := dateValue(p)
			p.PublishedAt = &d
			chk.change("published_at", before, dateValue(p))
		}

		// Токены изображений проверяются, но не исправляются
		var missing []int64
		for _, id := range richtext.TokenIDs(p.Content) {
			if !attached[p.ID][id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
			report.MissingImageTokens = append(report.MissingImageTokens, MissingImageTokens{
				PostID:          p.ID,
				PostSlug:        p.Slug,
				Country:         p.CountrySlug,
				MissingImageIDs: missing,
			})
		}

		if fix && chk.changed {
			if err := r.Posts.Update(ctx, p); err != nil {
				return fmt.Errorf("исправление поста %d: %w", p.ID, err)
			}
			if err := r.History.DeleteSlug(ctx, model.KindPost, p.Slug); err != nil {
				return err
			}
			report.Summary.PostsTouched++
		}
	}
	return nil
}

func checkHistory(ctx context.Context, r *repository.Repos, report *IntegrityReport, fix bool) error {
	rows, err := r.History.ListWithOwners(ctx)
	if err != nil {
		return err
	}
	report.Summary.SlugHistoryTotal = len(rows)

	issues := ClassifyHistory(rows)
	add := func(list []*model.SlugHistoryRow, issue string) {
		for _, row := range list {
			chk := &integrityCheck{report: report, model: "SlugHistory", id: row.ID}
			chk.warn(issue, string(row.Kind)+":"+row.OldSlug)
			chk.change("row", row.OldSlug, nil)
		}
	}
	add(issues.Orphan, IssueHistoryOrphan)
	add(issues.Collision, IssueHistoryCollision)
	add(issues.Redundant, IssueHistoryRedundant)

	if !fix {
		return nil
	}
	ids := issues.IDs(false)
	if len(ids) == 0 {
		return nil
	}
	deleted, err := r.History.DeleteByIDs(ctx, ids)
	if err != nil {
		return err
	}
	report.Summary.SlugHistoryDeleted = int(deleted)
	return nil
}
