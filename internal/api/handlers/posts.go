// posts.go — обработчики /api/v1/admin/posts.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/bigkaa/dongrigo/internal/api/errors"
	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// Параметры пагинации списка постов.
const (
	defaultPostLimit = 50
	maxPostLimit     = 200
)

// ListPosts — GET /api/v1/admin/posts?country_id=&category=&q=&published=&limit=&offset=.
func (h *APIHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	f, err := postFilterFromQuery(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	list, total, err := h.content.ListPosts(r.Context(), f)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения списка постов")
		return
	}
	writeJSON(w, http.StatusOK, mapList(list, total, mapPost))
}

// postFilterFromQuery разбирает параметры фильтра списка постов.
func postFilterFromQuery(r *http.Request) (model.PostFilter, error) {
	q := r.URL.Query()
	f := model.PostFilter{
		Query:  strings.TrimSpace(q.Get("q")),
		Limit:  defaultPostLimit,
		Offset: 0,
	}
	if v := q.Get("country_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, errInvalidParam("country_id")
		}
		f.CountryID = &id
	}
	if v := q.Get("category"); v != "" {
		c := model.Category(strings.ToUpper(v))
		if !c.Valid() {
			var ok bool
			if c, ok = model.CategoryFromSlug(v); !ok {
				return f, errInvalidParam("category")
			}
		}
		f.Category = c
	}
	if v := q.Get("published"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errInvalidParam("published")
		}
		f.PublishedOnly = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, errInvalidParam("limit")
		}
		f.Limit = min(n, maxPostLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errInvalidParam("offset")
		}
		f.Offset = n
	}
	return f, nil
}

// GetPost — GET /api/v1/admin/posts/{id}.
func (h *APIHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.content.GetPost(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения поста")
		return
	}
	writeJSON(w, http.StatusOK, mapPost(p))
}

// CreatePost — POST /api/v1/admin/posts.
func (h *APIHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.content.CreatePost(r.Context(), req.toModel(), req.TagIDs)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка создания поста")
		return
	}
	writeJSON(w, http.StatusCreated, mapPost(p))
}

// UpdatePost — PUT /api/v1/admin/posts/{id}.
func (h *APIHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req postRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.content.UpdatePost(r.Context(), id, req.toModel(), req.TagIDs)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка обновления поста")
		return
	}
	writeJSON(w, http.StatusOK, mapPost(p))
}

// DeletePost — DELETE /api/v1/admin/posts/{id}. Доступ: admin.
// Файлы изображений удаляются из хранилища после коммита.
func (h *APIHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	keys, err := h.content.DeletePost(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка удаления поста")
		return
	}
	h.images.RemoveObjects(r.Context(), keys)
	w.WriteHeader(http.StatusNoContent)
}
