// geoimport.go — импорт стран из GeoJSON (import_countries).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/repository"
	"github.com/bigkaa/dongrigo/internal/slugs"
)

// Режимы выбора slug для import_countries.
const (
	SlugModeKeep      = "keep"
	SlugModeISO2      = "iso2"
	SlugModeSlugifyEn = "slugify_en"
)

// Поля properties, из которых читаются коды и английское имя.
var (
	iso2Keys    = []string{"ISO_A2", "ISO3166-1-Alpha-2", "iso_a2"}
	iso3Keys    = []string{"ISO_A3", "ISO3166-1-Alpha-3", "iso_a3", "ADM0_A3"}
	englishKeys = []string{"ADMIN", "NAME_EN", "NAME", "name", "SOVEREIGNT", "FORMAL_EN"}
)

// GeoImportOptions — параметры import_countries.
type GeoImportOptions struct {
	GeoJSONPath string
	// KoMapPath — JSON ISO_A2 -> "한국어" или {"ko": ..., "display": ...}
	KoMapPath      string
	UpdateExisting bool
	SlugMode       string
	DryRun         bool
}

// GeoImportResult — итог import_countries.
type GeoImportResult struct {
	Created int
	Updated int
	Skipped int
	DryRun  bool
}

// KoName — корейское имя страны и необязательное отображаемое имя.
type KoName struct {
	Ko      string
	Display string
}

type geoFeature struct {
	Properties map[string]any `json:"properties"`
}

type geoCollection struct {
	Features []geoFeature `json:"features"`
}

// GeoImportService импортирует страны из GeoJSON глобуса.
type GeoImportService struct {
	store  repository.Store
	globe  *GlobeService
	logger *slog.Logger
}

// NewGeoImportService создаёт GeoImportService.
func NewGeoImportService(store repository.Store, globe *GlobeService, logger *slog.Logger) *GeoImportService {
	return &GeoImportService{
		store:  store,
		globe:  globe,
		logger: logger.With(slog.String("component", "geo_import")),
	}
}

// Import читает GeoJSON и создаёт страны, сопоставляя существующие по iso_a3.
// Существующие страны обновляются только с UpdateExisting.
func (s *GeoImportService) Import(ctx context.Context, opts GeoImportOptions) (*GeoImportResult, error) {
	switch opts.SlugMode {
	case "":
		opts.SlugMode = SlugModeKeep
	case SlugModeKeep, SlugModeISO2, SlugModeSlugifyEn:
	default:
		return nil, fmt.Errorf("%w: неизвестный slug-mode %q", ErrValidation, opts.SlugMode)
	}

	raw, err := os.ReadFile(opts.GeoJSONPath)
	if err != nil {
		return nil, fmt.Errorf("чтение geojson %s: %w", opts.GeoJSONPath, err)
	}
	var fc geoCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("%w: некорректный GeoJSON: %v", ErrValidation, err) //nolint:errorlint // текст ошибки разбора
	}

	koMap := map[string]KoName{}
	if opts.KoMapPath != "" {
		koMap, err = LoadKoMap(opts.KoMapPath)
		if err != nil {
			return nil, err
		}
	}

	res := &GeoImportResult{DryRun: opts.DryRun}
	run := func(r *repository.Repos) error {
		imp, err := newGeoImporter(ctx, r, opts, koMap, res)
		if err != nil {
			return err
		}
		for _, f := range fc.Features {
			if err := imp.feature(ctx, f.Properties); err != nil {
				return err
			}
		}
		return nil
	}

	if opts.DryRun {
		err = run(s.store.Repos())
	} else {
		err = s.store.InTx(ctx, run)
	}
	if err != nil {
		return nil, fmt.Errorf("импорт стран: %w", err)
	}

	if !opts.DryRun && res.Created+res.Updated > 0 {
		s.globe.Invalidate()
	}
	s.logger.Info("Импорт стран завершён",
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped),
		slog.Bool("dry_run", res.DryRun),
	)
	return res, nil
}

// LoadKoMap читает карту корейских имён по ISO_A2.
func LoadKoMap(path string) (map[string]KoName, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение ko-map %s: %w", path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: некорректный ko-map: %v", ErrValidation, err) //nolint:errorlint // текст ошибки разбора
	}
	out := make(map[string]KoName, len(m))
	for k, v := range m {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch val := v.(type) {
		case map[string]any:
			out[key] = KoName{Ko: propString(val, "ko"), Display: propString(val, "display")}
		case nil:
		default:
			out[key] = KoName{Ko: strings.TrimSpace(fmt.Sprint(val))}
		}
	}
	return out, nil
}

// geoImporter хранит состояние одного прогона импорта.
type geoImporter struct {
	r     *repository.Repos
	opts  GeoImportOptions
	koMap map[string]KoName
	res   *GeoImportResult
	// slugs — занятые slug, включая созданные в этом прогоне
	slugs map[string]bool
	// byISO3 — страны, найденные или созданные в этом прогоне
	byISO3 map[string]*model.Country
}

func newGeoImporter(ctx context.Context, r *repository.Repos, opts GeoImportOptions, koMap map[string]KoName, res *GeoImportResult) (*geoImporter, error) {
	existing, err := r.Countries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение списка стран: %w", err)
	}
	imp := &geoImporter{
		r:      r,
		opts:   opts,
		koMap:  koMap,
		res:    res,
		slugs:  make(map[string]bool, len(existing)),
		byISO3: make(map[string]*model.Country, len(existing)),
	}
	for _, c := range existing {
		imp.slugs[c.Slug] = true
		if c.ISOA3 != nil {
			imp.byISO3[strings.ToUpper(*c.ISOA3)] = c
		}
	}
	return imp, nil
}

// feature обрабатывает один объект GeoJSON.
func (g *geoImporter) feature(ctx context.Context, props map[string]any) error {
	if props == nil {
		g.res.Skipped++
		return nil
	}
	iso2 := pickISO(props, iso2Keys, 2)
	iso3 := pickISO(props, iso3Keys, 3)
	en := ""
	for _, k := range englishKeys {
		if en = propString(props, k); en != "" {
			break
		}
	}
	if iso3 == "" || en == "" {
		g.res.Skipped++
		return nil
	}

	var ko KoName
	if iso2 != "" {
		ko = g.koMap[iso2]
	}
	display := ko.Display
	if display == "" {
		display = DisplayName(ko.Ko, en)
	}

	aliases := map[string]bool{}
	for _, v := range []string{en, iso2, iso3, propString(props, "FORMAL_EN"), propString(props, "NAME_LONG")} {
		if v = strings.Join(strings.Fields(v), " "); v != "" {
			aliases[v] = true
		}
	}

	if c, ok := g.byISO3[iso3]; ok {
		if !g.opts.UpdateExisting {
			g.res.Skipped++
			return nil
		}
		oldSlug := c.Slug
		if g.opts.SlugMode != SlugModeKeep && c.Slug == "" {
			c.Slug = g.defaultSlug(iso2, en)
		}
		if iso2 != "" {
			c.ISOA2 = &iso2
		}
		if ko.Ko != "" {
			c.NameKo = ko.Ko
		}
		c.NameEn = en
		c.Name = display
		for _, a := range strings.Split(c.Aliases, ",") {
			if a = strings.TrimSpace(a); a != "" {
				aliases[a] = true
			}
		}
		c.Aliases = joinAliases(aliases)
		if !g.opts.DryRun && c.ID != 0 {
			if err := g.r.Countries.Update(ctx, c); err != nil {
				return fmt.Errorf("обновление страны %s: %w", iso3, err)
			}
			if err := applySlugChange(ctx, g.r, model.KindCountry, c.ID, oldSlug, c.Slug); err != nil {
				return err
			}
		}
		g.res.Updated++
		return nil
	}

	c := &model.Country{
		Name:    display,
		Slug:    g.defaultSlug(iso2, en),
		ISOA3:   &iso3,
		NameKo:  ko.Ko,
		NameEn:  en,
		Aliases: joinAliases(aliases),
	}
	if iso2 != "" {
		c.ISOA2 = &iso2
	}
	if !g.opts.DryRun {
		if err := g.r.Countries.Create(ctx, c); err != nil {
			return fmt.Errorf("создание страны %s: %w", iso3, err)
		}
		if err := applySlugChange(ctx, g.r, model.KindCountry, c.ID, "", c.Slug); err != nil {
			return err
		}
	}
	g.byISO3[iso3] = c
	g.res.Created++
	return nil
}

// defaultSlug выбирает slug новой страны по режиму и снимает повторы суффиксом -2, -3...
func (g *geoImporter) defaultSlug(iso2, en string) string {
	var base string
	switch g.opts.SlugMode {
	case SlugModeISO2:
		base = strings.ToLower(iso2)
		if base == "" {
			base = slugs.Slugify(en)
		}
	case SlugModeSlugifyEn:
		base = slugs.Slugify(en)
		if base == "" {
			base = strings.ToLower(iso2)
		}
	default:
		base = strings.ToLower(iso2)
		if base == "" {
			base = slugs.Slugify(en)
		}
	}
	if len(base) > slugs.MaxCountryLen {
		base = strings.Trim(base[:slugs.MaxCountryLen], "-")
	}
	if base == "" {
		base = "country"
	}

	slug := base
	for i := 2; g.slugs[slug]; i++ {
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	g.slugs[slug] = true
	return slug
}

// DisplayName собирает отображаемое имя страны "한국어(English)".
func DisplayName(ko, en string) string {
	ko, en = strings.TrimSpace(ko), strings.TrimSpace(en)
	switch {
	case ko != "" && en != "":
		return ko + "(" + en + ")"
	case ko != "":
		return ko
	}
	return en
}

// pickISO возвращает первый код из keys, состоящий из n латинских букв.
// Значения вроде "-99" пропускаются.
func pickISO(props map[string]any, keys []string, n int) string {
	for _, k := range keys {
		v := strings.ToUpper(propString(props, k))
		if ValidISO(v, n) {
			return v
		}
	}
	return ""
}

// propString возвращает свойство как обрезанную строку.
func propString(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func joinAliases(set map[string]bool) string {
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
