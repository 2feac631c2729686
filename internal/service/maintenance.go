// maintenance.go — команды обслуживания данных: fix_country_iso,
// fix_slug_history, fix_tag_slugs. По умолчанию только отчёт (dry-run).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/repository"
	"github.com/bigkaa/dongrigo/internal/slugs"
)

// MaintenanceService выполняет исправления данных.
type MaintenanceService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewMaintenanceService создаёт MaintenanceService.
func NewMaintenanceService(store repository.Store, logger *slog.Logger) *MaintenanceService {
	return &MaintenanceService{
		store:  store,
		logger: logger.With(slog.String("component", "maintenance")),
	}
}

// --- История slug ---

// HistoryIssues — проблемные записи истории slug по категориям.
// Одна запись может попасть в несколько категорий.
type HistoryIssues struct {
	// Invalid — old_slug не проходит проверку формата для своего типа
	Invalid []*model.SlugHistoryRow
	// Orphan — элемент, к которому привязана запись, не существует
	Orphan []*model.SlugHistoryRow
	// Collision — old_slug является живым slug другого элемента
	Collision []*model.SlugHistoryRow
	// Redundant — old_slug совпадает с текущим slug своего элемента
	Redundant []*model.SlugHistoryRow
}

// validHistorySlug проверяет формат old_slug для типа элемента.
func validHistorySlug(kind model.SlugKind, slug string) bool {
	if kind == model.KindTag {
		return slugs.IsUnicode(slug)
	}
	return slugs.IsASCII(slug)
}

// ClassifyHistory раскладывает записи истории по категориям проблем.
func ClassifyHistory(rows []*model.SlugHistoryRow) HistoryIssues {
	var issues HistoryIssues
	for _, row := range rows {
		if !validHistorySlug(row.Kind, row.OldSlug) {
			issues.Invalid = append(issues.Invalid, row)
		}
		if !row.ItemExists {
			issues.Orphan = append(issues.Orphan, row)
			continue
		}
		if row.LiveOwnerID != 0 {
			issues.Collision = append(issues.Collision, row)
		}
		if row.ItemSlug == row.OldSlug {
			issues.Redundant = append(issues.Redundant, row)
		}
	}
	return issues
}

// IDs возвращает отсортированные id записей к удалению без повторов.
// withInvalid включает записи с недопустимым форматом.
func (h HistoryIssues) IDs(withInvalid bool) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	add := func(list []*model.SlugHistoryRow) {
		for _, row := range list {
			if !seen[row.ID] {
				seen[row.ID] = true
				ids = append(ids, row.ID)
			}
		}
	}
	if withInvalid {
		add(h.Invalid)
	}
	add(h.Orphan)
	add(h.Collision)
	add(h.Redundant)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HistoryFixResult — результат fix_slug_history.
type HistoryFixResult struct {
	Total    int
	Issues   HistoryIssues
	ToDelete []*model.SlugHistoryRow
	Deleted  int64
	// RemainingInvalid — записи с недопустимым форматом после удаления
	RemainingInvalid int
}

// FixSlugHistory находит проблемные записи истории slug (kind "" — все типы)
// и при apply удаляет их, после чего проверяет формат повторно.
func (s *MaintenanceService) FixSlugHistory(ctx context.Context, kind model.SlugKind, apply bool) (*HistoryFixResult, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: неизвестный тип %q", ErrValidation, kind)
	}

	repos := s.store.Repos()
	rows, err := listHistoryRows(ctx, repos, kind)
	if err != nil {
		return nil, err
	}

	res := &HistoryFixResult{Total: len(rows), Issues: ClassifyHistory(rows)}
	ids := res.Issues.IDs(true)
	byID := make(map[int64]*model.SlugHistoryRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	for _, id := range ids {
		res.ToDelete = append(res.ToDelete, byID[id])
	}

	if !apply || len(ids) == 0 {
		return res, nil
	}

	err = s.store.InTx(ctx, func(r *repository.Repos) error {
		n, err := r.History.DeleteByIDs(ctx, ids)
		res.Deleted = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("удаление записей истории slug: %w", err)
	}
	s.logger.Info("Записи истории slug удалены", slog.Int64("deleted", res.Deleted))

	rows, err = listHistoryRows(ctx, repos, kind)
	if err != nil {
		return nil, err
	}
	res.RemainingInvalid = len(ClassifyHistory(rows).Invalid)
	return res, nil
}

// listHistoryRows возвращает записи истории с владельцами, отфильтрованные по kind.
func listHistoryRows(ctx context.Context, r *repository.Repos, kind model.SlugKind) ([]*model.SlugHistoryRow, error) {
	rows, err := r.History.ListWithOwners(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение истории slug: %w", err)
	}
	if kind == "" {
		return rows, nil
	}
	out := rows[:0]
	for _, row := range rows {
		if row.Kind == kind {
			out = append(out, row)
		}
	}
	return out, nil
}

// --- ISO кодов стран ---

// BadISO — страна с некорректным iso_a3.
type BadISO struct {
	ID    int64
	Slug  string
	Name  string
	ISOA3 string
}

// ISOFixResult — результат fix_country_iso.
type ISOFixResult struct {
	Bad     []BadISO
	Cleared int
}

// FixCountryISO находит iso_a3, не состоящие из 3 латинских букв,
// и при apply очищает их (NULL).
func (s *MaintenanceService) FixCountryISO(ctx context.Context, apply bool) (*ISOFixResult, error) {
	countries, err := s.store.Repos().Countries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка стран: %w", err)
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].ID < countries[j].ID })

	res := &ISOFixResult{}
	var bad []*model.Country
	for _, c := range countries {
		v := strings.TrimSpace(strPtrValue(c.ISOA3))
		if v == "" || ValidISO(v, 3) {
			continue
		}
		bad = append(bad, c)
		res.Bad = append(res.Bad, BadISO{ID: c.ID, Slug: c.Slug, Name: c.Name, ISOA3: v})
	}

	if !apply || len(bad) == 0 {
		return res, nil
	}

	err = s.store.InTx(ctx, func(r *repository.Repos) error {
		for _, c := range bad {
			c.ISOA3 = nil
			if err := r.Countries.Update(ctx, c); err != nil {
				return fmt.Errorf("очистка iso_a3 страны %d: %w", c.ID, err)
			}
			res.Cleared++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Некорректные iso_a3 очищены", slog.Int("cleared", res.Cleared))
	return res, nil
}

// --- Slug тегов ---

// TagSlugCandidate — тег, чей slug отличается от ожидаемого по имени.
type TagSlugCandidate struct {
	Tag      *model.Tag
	Expected string
	// Skipped — ожидаемый slug занят другим тегом
	Skipped bool
}

// TagSlugFixResult — результат fix_tag_slugs.
type TagSlugFixResult struct {
	Candidates []*TagSlugCandidate
	Renamed    int
}

// FixTagSlugs приводит slug тегов к ожидаемому виду (пробелы и "/" -> "-").
// Старый slug сохраняется в истории, страницы по нему перенаправляются.
func (s *MaintenanceService) FixTagSlugs(ctx context.Context, apply bool) (*TagSlugFixResult, error) {
	tags, err := s.store.Repos().Tags.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка тегов: %w", err)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })

	res := &TagSlugFixResult{}
	for _, t := range tags {
		expected := slugs.ExpectedTagSlug(t.Name)
		if expected == "" || expected == t.Slug {
			continue
		}
		res.Candidates = append(res.Candidates, &TagSlugCandidate{Tag: t, Expected: expected})
	}

	if !apply || len(res.Candidates) == 0 {
		return res, nil
	}

	err = s.store.InTx(ctx, func(r *repository.Repos) error {
		for _, c := range res.Candidates {
			taken, err := r.Tags.SlugExists(ctx, c.Expected, c.Tag.ID)
			if err != nil {
				return err
			}
			if taken {
				c.Skipped = true
				s.logger.Warn("Ожидаемый slug тега уже занят",
					slog.Int64("tag_id", c.Tag.ID),
					slog.String("expected", c.Expected),
				)
				continue
			}
			if err := renameTagSlug(ctx, r, c.Tag, c.Expected); err != nil {
				return err
			}
			res.Renamed++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("переименование slug тегов: %w", err)
	}
	s.logger.Info("Slug тегов нормализованы", slog.Int("renamed", res.Renamed))
	return res, nil
}
