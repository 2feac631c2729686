// images.go — изображения постов: multipart-загрузка в хранилище медиа.
package handlers

import (
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/dongrigo/internal/api/errors"
	"github.com/bigkaa/dongrigo/internal/service"
)

// maxUploadSize — предельный размер загружаемого изображения.
const maxUploadSize = 20 << 20

// ListPostImages — GET /api/v1/admin/posts/{id}/images.
func (h *APIHandler) ListPostImages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.images.List(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err, "Ошибка получения изображений")
		return
	}
	writeJSON(w, http.StatusOK, mapList(list, -1, mapImage))
}

// UploadPostImage — POST /api/v1/admin/posts/{id}/images (multipart/form-data).
// Поля: file (обязательно), caption, order (0 или пусто — в конец).
func (h *APIHandler) UploadPostImage(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле file обязательно")
		return
	}
	defer file.Close()

	order := 0
	if v := r.FormValue("order"); v != "" {
		order, err = strconv.Atoi(v)
		if err != nil || order < 0 {
			apierrors.ValidationError(w, "Некорректный параметр order")
			return
		}
	}

	img, err := h.images.Upload(r.Context(), service.UploadInput{
		PostID:    postID,
		Filename:  header.Filename,
		Body:      file,
		Size:      header.Size,
		Caption:   r.FormValue("caption"),
		SortOrder: order,
	})
	if err != nil {
		h.serviceError(w, r, err, "Ошибка загрузки изображения")
		return
	}
	writeJSON(w, http.StatusCreated, mapImage(img))
}

// DeleteImage — DELETE /api/v1/admin/images/{id}.
func (h *APIHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.images.Delete(r.Context(), id); err != nil {
		h.serviceError(w, r, err, "Ошибка удаления изображения")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
