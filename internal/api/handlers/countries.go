// countries.go — обработчики /api/v1/admin/countries.
package handlers

import (
	"net/http"

	"github.com/bigkaa/dongrigo/internal/domain/model"
)

// ListCountries — GET /api/v1/admin/countries.
func (h *APIHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	list, err := h.content.ListCountries(r.Context())
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения списка стран")
		return
	}
	writeJSON(w, http.StatusOK, mapList(list, -1, mapCountry))
}

// GetCountry — GET /api/v1/admin/countries/{id}.
func (h *APIHandler) GetCountry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.content.GetCountry(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения страны")
		return
	}
	writeJSON(w, http.StatusOK, mapCountry(c))
}

// CreateCountry — POST /api/v1/admin/countries.
// Пустой slug генерируется из английского имени.
func (h *APIHandler) CreateCountry(w http.ResponseWriter, r *http.Request) {
	var req countryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.content.CreateCountry(r.Context(), req.toModel())
	if err != nil {
		h.serviceError(w, r, err, "Ошибка создания страны")
		return
	}
	writeJSON(w, http.StatusCreated, mapCountry(c))
}

// UpdateCountry — PUT /api/v1/admin/countries/{id}.
// Смена slug записывается в историю, старые URL продолжают работать.
func (h *APIHandler) UpdateCountry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req countryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.content.UpdateCountry(r.Context(), id, req.toModel())
	if err != nil {
		h.serviceError(w, r, err, "Ошибка обновления страны")
		return
	}
	writeJSON(w, http.StatusOK, mapCountry(c))
}

// DeleteCountry — DELETE /api/v1/admin/countries/{id}. Доступ: admin.
func (h *APIHandler) DeleteCountry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.content.DeleteCountry(r.Context(), id); err != nil {
		h.serviceError(w, r, err, "Ошибка удаления страны")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSlugHistory — GET /api/v1/admin/slug-history?kind=country|post|tag.
func (h *APIHandler) ListSlugHistory(w http.ResponseWriter, r *http.Request) {
	kind := model.SlugKind(r.URL.Query().Get("kind"))
	list, err := h.content.SlugHistory(r.Context(), kind)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения истории slug")
		return
	}
	writeJSON(w, http.StatusOK, mapList(list, -1, func(rec *model.SlugHistoryRecord) slugHistoryResponse {
		return slugHistoryResponse{
			ID:         rec.ID,
			Kind:       string(rec.Kind),
			OldSlug:    rec.OldSlug,
			ItemID:     rec.ItemID,
			RecordedAt: rec.RecordedAt,
		}
	}))
}
