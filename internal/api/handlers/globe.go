package handlers

import (
	"net/http"
)

// GlobeCountries — GET /api/v1/globe/countries.
// Публичный эндпоинт данных глобуса; ответ кэшируется сервисом.
func (h *APIHandler) GlobeCountries(w http.ResponseWriter, r *http.Request) {
	list, err := h.globe.Countries(r.Context())
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения стран для глобуса")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	writeJSON(w, http.StatusOK, list)
}
