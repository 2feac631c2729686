package richtext

import (
	"bytes"
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// Renderer преобразует Markdown постов в безопасный HTML.
// Безопасен для конкурентного использования.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer создаёт Renderer: GFM (таблицы, зачёркивание, автоссылки),
// жёсткие переносы строк и санитизация bluemonday.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			// Сырой HTML (в том числе <figure> из токенов) чистит bluemonday
			gmhtml.WithUnsafe(),
		),
	)
	return &Renderer{md: md, policy: newPolicy()}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("figure", "figcaption")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[\w\- ]+$`)).
		OnElements("figure", "figcaption", "img", "code", "pre", "span")
	p.AllowAttrs("loading").Matching(regexp.MustCompile(`^(lazy|eager)$`)).OnElements("img")
	p.AllowAttrs("decoding").Matching(regexp.MustCompile(`^(async|sync|auto)$`)).OnElements("img")
	p.AllowDataAttributes()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Markdown рендерит Markdown и санитизирует результат.
func (r *Renderer) Markdown(src string) template.HTML {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>") //nolint:gosec // экранировано
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes())) //nolint:gosec // санитизировано bluemonday
}

// RenderedPost — тело поста и изображения для галереи.
type RenderedPost struct {
	HTML template.HTML
	// Gallery — изображения поста, не вставленные в текст токенами
	Gallery []*model.PostImage
}

// RenderPost заменяет токены изображений поста, рендерит Markdown и
// собирает галерею из неиспользованных изображений (в исходном порядке).
func (r *Renderer) RenderPost(content string, images []*model.PostImage) RenderedPost {
	byID := make(map[int64]*model.PostImage, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}

	md, used := ReplaceImageTokens(content, byID)

	gallery := make([]*model.PostImage, 0, len(images))
	for _, img := range images {
		if !used[img.ID] {
			gallery = append(gallery, img)
		}
	}

	return RenderedPost{HTML: r.Markdown(md), Gallery: gallery}
}
