// dto.go — JSON-представления ресурсов admin API.
package handlers

import (
	"strconv"
	"time"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/service"
)

const dateLayout = "2006-01-02"

// countryRequest — тело создания/обновления страны.
type countryRequest struct {
	Name             string  `json:"name" validate:"required,max=100"`
	Slug             string  `json:"slug" validate:"max=120"`
	ISOA2            *string `json:"iso_a2" validate:"omitempty,len=2,alpha"`
	ISOA3            *string `json:"iso_a3" validate:"omitempty,len=3,alpha"`
	NameKo           string  `json:"name_ko" validate:"max=100"`
	NameEn           string  `json:"name_en" validate:"max=100"`
	Aliases          string  `json:"aliases" validate:"max=500"`
	ShortDescription string  `json:"short_description" validate:"max=300"`
	FlagImageURL     string  `json:"flag_image_url" validate:"omitempty,max=500"`
}

func (req *countryRequest) toModel() *model.Country {
	return &model.Country{
		Name:             req.Name,
		Slug:             req.Slug,
		ISOA2:            req.ISOA2,
		ISOA3:            req.ISOA3,
		NameKo:           req.NameKo,
		NameEn:           req.NameEn,
		Aliases:          req.Aliases,
		ShortDescription: req.ShortDescription,
		FlagImageURL:     req.FlagImageURL,
	}
}

type countryResponse struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	URL              string    `json:"url"`
	ISOA2            *string   `json:"iso_a2"`
	ISOA3            *string   `json:"iso_a3"`
	NameKo           string    `json:"name_ko"`
	NameEn           string    `json:"name_en"`
	Aliases          string    `json:"aliases"`
	ShortDescription string    `json:"short_description"`
	FlagImageURL     string    `json:"flag_image_url"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func mapCountry(c *model.Country) countryResponse {
	return countryResponse{
		ID:               c.ID,
		Name:             c.Name,
		Slug:             c.Slug,
		URL:              service.CountryURL(c.Slug),
		ISOA2:            c.ISOA2,
		ISOA3:            c.ISOA3,
		NameKo:           c.NameKo,
		NameEn:           c.NameEn,
		Aliases:          c.Aliases,
		ShortDescription: c.ShortDescription,
		FlagImageURL:     c.FlagImageURL,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// postRequest — тело создания/обновления поста.
// TagIDs == nil при обновлении оставляет теги без изменений.
type postRequest struct {
	CountryID     int64   `json:"country_id" validate:"required,gt=0"`
	Category      string  `json:"category" validate:"omitempty,oneof=TRAVEL HISTORY CULTURE MY_LOG travel history culture my-log"`
	Title         string  `json:"title" validate:"required,max=200"`
	Slug          string  `json:"slug" validate:"max=220"`
	Content       string  `json:"content"`
	CoverImageURL string  `json:"cover_image_url" validate:"max=500"`
	IsPublished   bool    `json:"is_published"`
	PublishedAt   string  `json:"published_at" validate:"omitempty,datetime=2006-01-02"`
	TagIDs        []int64 `json:"tag_ids" validate:"omitempty,dive,gt=0"`
}

func (req *postRequest) toModel() *model.Post {
	p := &model.Post{
		CountryID:     req.CountryID,
		Category:      model.ParseCategory(req.Category),
		Title:         req.Title,
		Slug:          req.Slug,
		Content:       req.Content,
		CoverImageURL: req.CoverImageURL,
		IsPublished:   req.IsPublished,
	}
	if req.PublishedAt != "" {
		// формат уже проверен тегом datetime
		if d, err := time.Parse(dateLayout, req.PublishedAt); err == nil {
			p.PublishedAt = &d
		}
	}
	return p
}

type tagRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type postResponse struct {
	ID            int64     `json:"id"`
	CountryID     int64     `json:"country_id"`
	Category      string    `json:"category"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	URL           string    `json:"url,omitempty"`
	Content       string    `json:"content"`
	CoverImageURL string    `json:"cover_image_url"`
	IsPublished   bool      `json:"is_published"`
	PublishedAt   *string   `json:"published_at"`
	Tags          []tagRef  `json:"tags"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func mapPost(p *model.Post) postResponse {
	resp := postResponse{
		ID:            p.ID,
		CountryID:     p.CountryID,
		Category:      string(p.Category),
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		CoverImageURL: p.CoverImageURL,
		IsPublished:   p.IsPublished,
		Tags:          make([]tagRef, 0, len(p.Tags)),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.CountrySlug != "" {
		resp.URL = service.PostURL(p.CountrySlug, p.Category, p.Slug)
	}
	if p.PublishedAt != nil {
		d := p.PublishedAt.Format(dateLayout)
		resp.PublishedAt = &d
	}
	for _, t := range p.Tags {
		resp.Tags = append(resp.Tags, tagRef{ID: t.ID, Name: t.Name, Slug: t.Slug})
	}
	return resp
}

// tagRequest — тело создания/обновления тега.
type tagRequest struct {
	Name string `json:"name" validate:"required,max=60"`
	Slug string `json:"slug" validate:"max=80"`
}

type tagResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

func mapTag(t *model.Tag) tagResponse {
	return tagResponse{ID: t.ID, Name: t.Name, Slug: t.Slug, URL: service.TagURL(t.Slug)}
}

type imageResponse struct {
	ID        int64  `json:"id"`
	PostID    int64  `json:"post_id"`
	ImageURL  string `json:"image_url"`
	Caption   string `json:"caption"`
	SortOrder int    `json:"order"`
	// Token — готовый токен для вставки в Markdown
	Token string `json:"token"`
}

func mapImage(img *model.PostImage) imageResponse {
	return imageResponse{
		ID:        img.ID,
		PostID:    img.PostID,
		ImageURL:  img.ImageURL,
		Caption:   img.Caption,
		SortOrder: img.SortOrder,
		Token:     imageToken(img.ID),
	}
}

func imageToken(id int64) string {
	return "[[img:" + strconv.FormatInt(id, 10) + "]]"
}

type slugHistoryResponse struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	OldSlug    string    `json:"old_slug"`
	ItemID     int64     `json:"item_id"`
	RecordedAt time.Time `json:"recorded_at"`
}

// listResponse — список с общим количеством.
type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func mapList[S any, T any](items []S, total int, fn func(S) T) listResponse[T] {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	if total < 0 {
		total = len(out)
	}
	return listResponse[T]{Items: out, Total: total}
}
