// fixture.go — формат фикстур контента: [{"model","pk","fields"}].
// Чтение JSON (goccy/go-json) и YAML (yaml.v3), запись JSON для rebuild_seed.
package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// Имена моделей в фикстуре.
const (
	FixtureCountry   = "blog.country"
	FixtureTag       = "blog.tag"
	FixturePost      = "blog.post"
	FixturePostImage = "blog.postimage"
)

// dateLayout — формат даты публикации в фикстуре.
const dateLayout = "2006-01-02"

// FixtureRecord — одна запись фикстуры.
type FixtureRecord struct {
	Model  string         `json:"model" yaml:"model"`
	PK     int64          `json:"pk" yaml:"pk"`
	Fields map[string]any `json:"fields" yaml:"fields"`
}

// Fixture — разобранная фикстура, разложенная по типам в порядке загрузки.
type Fixture struct {
	Countries []*model.Country
	Tags      []*model.Tag
	Posts     []*FixturePostRecord
	Images    []*model.PostImage
}

// FixturePostRecord — пост и id его тегов (nil — поле tags отсутствует).
type FixturePostRecord struct {
	Post   *model.Post
	TagIDs []int64
}

// Total — общее количество записей.
func (f *Fixture) Total() int {
	return len(f.Countries) + len(f.Tags) + len(f.Posts) + len(f.Images)
}

// FixtureHash возвращает hex SHA-256 сырых байтов фикстуры.
func FixtureHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// DecodeFixture разбирает фикстуру. Формат определяется по расширению:
// .yaml/.yml — YAML, иначе JSON. mediaBaseURL используется для
// относительных путей изображений.
func DecodeFixture(raw []byte, path, mediaBaseURL string) (*Fixture, error) {
	var records []FixtureRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("%w: разбор YAML фикстуры: %v", ErrValidation, err) //nolint:errorlint // текст ошибки парсера
		}
	default:
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("%w: разбор JSON фикстуры: %v", ErrValidation, err) //nolint:errorlint // текст ошибки парсера
		}
	}

	f := &Fixture{}
	for i, rec := range records {
		if rec.PK <= 0 {
			return nil, fmt.Errorf("%w: запись %d (%s): pk должен быть положительным", ErrValidation, i, rec.Model)
		}
		fl := fields(rec.Fields)
		switch strings.ToLower(rec.Model) {
		case FixtureCountry:
			f.Countries = append(f.Countries, &model.Country{
				ID:               rec.PK,
				Name:             fl.str("name"),
				Slug:             fl.str("slug"),
				ISOA2:            fl.strPtr("iso_a2"),
				ISOA3:            fl.strPtr("iso_a3"),
				NameKo:           fl.str("name_ko"),
				NameEn:           fl.str("name_en"),
				Aliases:          fl.str("aliases"),
				ShortDescription: fl.str("short_description"),
				FlagImageURL:     mediaURL(mediaBaseURL, fl.str("flag_image")),
			})
		case FixtureTag:
			f.Tags = append(f.Tags, &model.Tag{
				ID:   rec.PK,
				Name: fl.str("name"),
				Slug: fl.str("slug"),
			})
		case FixturePost:
			countryID, err := fl.integer("country")
			if err != nil {
				return nil, fmt.Errorf("%w: пост %d: %v", ErrValidation, rec.PK, err) //nolint:errorlint // текст ошибки
			}
			publishedAt, err := fl.date("published_at")
			if err != nil {
				return nil, fmt.Errorf("%w: пост %d: %v", ErrValidation, rec.PK, err) //nolint:errorlint // текст ошибки
			}
			pr := &FixturePostRecord{Post: &model.Post{
				ID:            rec.PK,
				CountryID:     countryID,
				Category:      model.ParseCategory(fl.str("category")),
				Title:         fl.str("title"),
				Slug:          fl.str("slug"),
				Content:       fl.str("content"),
				CoverImageURL: mediaURL(mediaBaseURL, fl.str("cover_image")),
				IsPublished:   fl.boolean("is_published"),
				PublishedAt:   publishedAt,
			}}
			if _, ok := rec.Fields["tags"]; ok {
				ids, err := fl.integers("tags")
				if err != nil {
					return nil, fmt.Errorf("%w: пост %d: %v", ErrValidation, rec.PK, err) //nolint:errorlint // текст ошибки
				}
				pr.TagIDs = ids
			}
			f.Posts = append(f.Posts, pr)
		case FixturePostImage:
			postID, err := fl.integer("post")
			if err != nil {
				return nil, fmt.Errorf("%w: изображение %d: %v", ErrValidation, rec.PK, err) //nolint:errorlint // текст ошибки
			}
			order, _ := fl.integer("order")
			image := fl.str("image")
			img := &model.PostImage{
				ID:        rec.PK,
				PostID:    postID,
				ImageURL:  mediaURL(mediaBaseURL, image),
				Caption:   fl.str("caption"),
				SortOrder: int(order),
			}
			if !isAbsoluteURL(image) {
				img.StorageKey = image
			}
			f.Images = append(f.Images, img)
		default:
			return nil, fmt.Errorf("%w: запись %d: неизвестная модель %q", ErrValidation, i, rec.Model)
		}
	}
	return f, nil
}

// EncodeFixture сериализует записи в JSON (UTF-8 без экранирования, отступ indent).
func EncodeFixture(records []FixtureRecord, indent int) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if records == nil {
		records = []FixtureRecord{}
	}
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("сериализация фикстуры: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildFixture собирает записи фикстуры из контента в стабильном порядке:
// страны, теги, посты, изображения, каждая группа по возрастанию id.
func BuildFixture(countries []*model.Country, tags []*model.Tag, posts []*model.Post, images []*model.PostImage) []FixtureRecord {
	sort.Slice(countries, func(i, j int) bool { return countries[i].ID < countries[j].ID })
	sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	sort.Slice(images, func(i, j int) bool { return images[i].ID < images[j].ID })

	out := make([]FixtureRecord, 0, len(countries)+len(tags)+len(posts)+len(images))
	for _, c := range countries {
		out = append(out, FixtureRecord{Model: FixtureCountry, PK: c.ID, Fields: map[string]any{
			"name":              c.Name,
			"slug":              c.Slug,
			"iso_a2":            c.ISOA2,
			"iso_a3":            c.ISOA3,
			"name_ko":           c.NameKo,
			"name_en":           c.NameEn,
			"aliases":           c.Aliases,
			"short_description": c.ShortDescription,
			"flag_image":        c.FlagImageURL,
		}})
	}
	for _, t := range tags {
		out = append(out, FixtureRecord{Model: FixtureTag, PK: t.ID, Fields: map[string]any{
			"name": t.Name,
			"slug": t.Slug,
		}})
	}
	for _, p := range posts {
		tagIDs := make([]int64, 0, len(p.Tags))
		for _, t := range p.Tags {
			tagIDs = append(tagIDs, t.ID)
		}
		sort.Slice(tagIDs, func(i, j int) bool { return tagIDs[i] < tagIDs[j] })

		var published any
		if p.PublishedAt != nil {
			published = p.PublishedAt.Format(dateLayout)
		}
		out = append(out, FixtureRecord{Model: FixturePost, PK: p.ID, Fields: map[string]any{
			"country":      p.CountryID,
			"category":     string(p.Category),
			"title":        p.Title,
			"slug":         p.Slug,
			"content":      p.Content,
			"cover_image":  p.CoverImageURL,
			"is_published": p.IsPublished,
			"published_at": published,
			"tags":         tagIDs,
		}})
	}
	for _, img := range images {
		image := img.ImageURL
		if img.StorageKey != "" {
			image = img.StorageKey
		}
		out = append(out, FixtureRecord{Model: FixturePostImage, PK: img.ID, Fields: map[string]any{
			"post":    img.PostID,
			"image":   image,
			"caption": img.Caption,
			"order":   img.SortOrder,
		}})
	}
	return out
}

// isAbsoluteURL — http(s) URL или абсолютный путь сайта.
func isAbsoluteURL(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") || strings.HasPrefix(v, "/")
}

// mediaURL превращает относительный путь файла в URL хранилища медиа.
func mediaURL(baseURL, v string) string {
	v = strings.TrimSpace(v)
	if v == "" || isAbsoluteURL(v) {
		return v
	}
	return strings.TrimRight(baseURL, "/") + "/" + v
}

// fields — поля записи фикстуры с приведением типов JSON/YAML.
type fields map[string]any

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (f fields) strPtr(key string) *string {
	if f[key] == nil {
		return nil
	}
	s := f.str(key)
	return &s
}

func (f fields) boolean(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil //nolint:gosec // id фикстуры
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("ожидалось целое число, получено %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case nil:
		return 0, fmt.Errorf("значение отсутствует")
	}
	return 0, fmt.Errorf("ожидалось целое число, получено %T", v)
}

func (f fields) integer(key string) (int64, error) {
	n, err := toInt(f[key])
	if err != nil {
		return 0, fmt.Errorf("поле %s: %w", key, err)
	}
	return n, nil
}

func (f fields) integers(key string) ([]int64, error) {
	raw, ok := f[key].([]any)
	if !ok {
		if f[key] == nil {
			return []int64{}, nil
		}
		return nil, fmt.Errorf("поле %s: ожидался список", key)
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		n, err := toInt(v)
		if err != nil {
			return nil, fmt.Errorf("поле %s: %w", key, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// date разбирает дату публикации: "2006-01-02", RFC 3339 или time.Time из YAML.
func (f fields) date(key string) (*time.Time, error) {
	switch v := f[key].(type) {
	case nil:
		return nil, nil
	case time.Time:
		d := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return &d, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		if len(v) > len(dateLayout) {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("поле %s: некорректная дата %q", key, v)
			}
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d, nil
		}
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("поле %s: некорректная дата %q", key, v)
		}
		return &d, nil
	}
	return nil, fmt.Errorf("поле %s: некорректный тип %T", key, f[key])
}
