// Пакет handlers — HTTP-обработчики публичного сайта.
package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/service"
	"github.com/bigkaa/dongrigo/internal/ui/pages"
)

// SiteHandler — страницы доски, стран, постов и тегов.
type SiteHandler struct {
	board    *service.BoardService
	resolver *service.Resolver
	logger   *slog.Logger
}

// NewSiteHandler создаёт SiteHandler.
func NewSiteHandler(board *service.BoardService, resolver *service.Resolver, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{
		board:    board,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "ui.site")),
	}
}

// HandleHome обрабатывает GET / — доска всех стран.
// Параметры: category (slug или код), q, page.
func (h *SiteHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.renderBoard(w, r, service.BoardQuery{
		Category: model.ParseCategory(q.Get("category")),
		Query:    q.Get("q"),
		Page:     pageParam(q),
	}, "")
}

// HandleCountry обрабатывает GET /{country}/[{category}/[{post}/]].
func (h *SiteHandler) HandleCountry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	countrySlug := urlParam(r, "country")
	categorySlug := urlParam(r, "category")
	postSlug := urlParam(r, "post")

	res, err := h.resolver.Resolve(ctx, model.KindCountry, countrySlug)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if res.RedirectTo != "" {
		target := res.RedirectTo
		if categorySlug != "" {
			target += categorySlug + "/"
			if postSlug != "" {
				target += postSlug + "/"
			}
		}
		redirect(w, r, target)
		return
	}
	if res.NotFound {
		if isHTMX(r) {
			// Доска остаётся без изменений
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.NotFound(w, r)
		return
	}
	country := res.Country

	category := model.DefaultCategory
	if categorySlug != "" {
		c, ok := model.CategoryFromSlug(categorySlug)
		if !ok {
			h.NotFound(w, r)
			return
		}
		category = c
	}

	var post *model.Post
	if postSlug != "" {
		pr, err := h.resolver.Resolve(ctx, model.KindPost, postSlug)
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		if pr.RedirectTo != "" {
			redirect(w, r, pr.RedirectTo)
			return
		}
		if pr.NotFound || !pr.Post.IsPublished {
			h.NotFound(w, r)
			return
		}
		if pr.Post.CountryID != country.ID || pr.Post.Category != category {
			redirect(w, r, service.PostURL(pr.Post.CountrySlug, pr.Post.Category, pr.Post.Slug))
			return
		}
		post = pr.Post
	}

	q := r.URL.Query()
	title := country.Name
	if post != nil {
		title = post.Title
	}
	h.renderBoard(w, r, service.BoardQuery{
		Country:  country,
		Category: category,
		Post:     post,
		Query:    q.Get("q"),
		Page:     pageParam(q),
	}, title)
}

// HandleTags обрабатывает GET /tags/ — теги с опубликованными постами.
func (h *SiteHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.board.Tags(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	v := pages.NewView(r.Context())
	v.Tags = tags
	v.Title = v.T("tags.title")
	h.render(w, r, http.StatusOK, pages.TagsIndex(v), "TagsIndex")
}

// HandleTag обрабатывает GET /tags/{slug}/.
func (h *SiteHandler) HandleTag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.resolver.Resolve(ctx, model.KindTag, urlParam(r, "slug"))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if res.RedirectTo != "" {
		redirect(w, r, res.RedirectTo)
		return
	}
	if res.NotFound {
		h.NotFound(w, r)
		return
	}

	tp, err := h.board.TagPosts(ctx, res.Tag, pageParam(r.URL.Query()))
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	v := pages.NewView(ctx)
	v.TagPage = tp
	v.Title = "#" + res.Tag.Name
	h.render(w, r, http.StatusOK, pages.TagDetail(v), "TagDetail")
}

// NotFound отображает страницу 404.
func (h *SiteHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	v := pages.NewView(r.Context())
	v.Status = http.StatusNotFound
	v.Title = v.T("error.not_found")
	h.render(w, r, http.StatusNotFound, pages.Error(v), "NotFound")
}

// serverError логирует сбой хранилища и отображает страницу 500.
func (h *SiteHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("Ошибка обработки страницы",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	v := pages.NewView(r.Context())
	v.Status = http.StatusInternalServerError
	v.Title = v.T("error.server")
	h.render(w, r, http.StatusInternalServerError, pages.Error(v), "ServerError")
}

// renderBoard собирает доску; HTMX-запрос получает только фрагмент доски.
func (h *SiteHandler) renderBoard(w http.ResponseWriter, r *http.Request, q service.BoardQuery, title string) {
	ctx := r.Context()
	board, err := h.board.Build(ctx, q)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	v := pages.NewView(ctx)
	v.Board = board
	v.Title = title

	if isHTMX(r) {
		h.render(w, r, http.StatusOK, pages.BoardFragment(v), "BoardFragment")
		return
	}

	v.Countries, err = h.board.Countries(ctx)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, pages.Home(v), "Home")
}

// render рендерит компонент в буфер, чтобы ошибка шаблона давала 500,
// а не обрезанную страницу.
func (h *SiteHandler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component, name string) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		h.logger.Error("Ошибка рендеринга "+name,
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Ошибка рендеринга страницы", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Vary", HeaderHXRequest)
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// urlParam возвращает декодированный параметр маршрута.
func urlParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if s, err := url.PathUnescape(v); err == nil {
		return s
	}
	return v
}

// pageParam разбирает ?page; некорректное значение — 0 (не задан).
func pageParam(q url.Values) int {
	n, err := strconv.Atoi(q.Get("page"))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
