package handlers

import (
	"net/http"
)

// previewRequest — Markdown для предпросмотра; post_id подключает
// изображения существующего поста к токенам [[img:ID]].
type previewRequest struct {
	Content string `json:"content" validate:"max=200000"`
	PostID  int64  `json:"post_id" validate:"gte=0"`
}

type galleryItem struct {
	ID       int64  `json:"id"`
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption"`
}

type previewResponse struct {
	HTML    string        `json:"html"`
	Gallery []galleryItem `json:"gallery"`
}

// Preview — POST /api/v1/admin/preview.
// Рендерит Markdown так же, как страница поста.
func (h *APIHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rendered, err := h.board.Preview(r.Context(), req.Content, req.PostID)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка рендеринга предпросмотра")
		return
	}
	resp := previewResponse{
		HTML:    string(rendered.HTML),
		Gallery: make([]galleryItem, 0, len(rendered.Gallery)),
	}
	for _, img := range rendered.Gallery {
		resp.Gallery = append(resp.Gallery, galleryItem{ID: img.ID, ImageURL: img.ImageURL, Caption: img.Caption})
	}
	writeJSON(w, http.StatusOK, resp)
}
