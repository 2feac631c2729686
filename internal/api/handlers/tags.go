// tags.go — обработчики /api/v1/admin/tags.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// ListTags — GET /api/v1/admin/tags.
func (h *APIHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	list, err := h.content.ListTags(r.Context())
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения списка тегов")
		return
	}
	writeJSON(w, http.StatusOK, mapList(list, -1, mapTag))
}

// GetTag — GET /api/v1/admin/tags/{id}.
func (h *APIHandler) GetTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.content.GetTag(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения тега")
		return
	}
	writeJSON(w, http.StatusOK, mapTag(t))
}

// CreateTag — POST /api/v1/admin/tags.
func (h *APIHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.content.CreateTag(r.Context(), &model.Tag{Name: req.Name, Slug: req.Slug})
	if err != nil {
		h.serviceError(w, r, err, "Ошибка создания тега")
		return
	}
	writeJSON(w, http.StatusCreated, mapTag(t))
}

// UpdateTag — PUT /api/v1/admin/tags/{id}.
func (h *APIHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req tagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.content.UpdateTag(r.Context(), id, &model.Tag{Name: req.Name, Slug: req.Slug})
	if err != nil {
		h.serviceError(w, r, err, "Ошибка обновления тега")
		return
	}
	writeJSON(w, http.StatusOK, mapTag(t))
}

// DeleteTag — DELETE /api/v1/admin/tags/{id}. Доступ: admin.
func (h *APIHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.content.DeleteTag(r.Context(), id); err != nil {
		h.serviceError(w, r, err, "Ошибка удаления тега")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func errInvalidParam(name string) error {
	return fmt.Errorf("некорректный параметр %s", name)
}
