// handler.go — обработчики admin API и JSON-эндпоинтов сайта.
// Делегируют запросы в сервисный слой.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	apierrors "github.com/bigkaa/dongrigo/internal/api/errors"
	"github.com/bigkaa/dongrigo/internal/service"
)

// maxJSONBody — предельный размер JSON-тела запроса.
const maxJSONBody = 1 << 20

// APIHandler — обработчик admin API.
type APIHandler struct {
	content *service.ContentService
	images  *service.ImageService
	board   *service.BoardService
	auth    *service.AuthService
	globe   *service.GlobeService
	logger  *slog.Logger
}

// NewAPIHandler создаёт обработчик API.
func NewAPIHandler(
	content *service.ContentService,
	images *service.ImageService,
	board *service.BoardService,
	auth *service.AuthService,
	globe *service.GlobeService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		content: content,
		images:  images,
		board:   board,
		auth:    auth,
		globe:   globe,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst и проверяет теги validate.
// При ошибке ответ уже записан.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	if err := validateStruct(dst); err != nil {
		apierrors.ValidationError(w, err.Error())
		return false
	}
	return true
}

// pathID извлекает числовой параметр маршрута.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		apierrors.ValidationError(w, fmt.Sprintf("Некорректный параметр %s", name))
		return 0, false
	}
	return id, true
}

// serviceError отвечает по ошибке сервиса; неизвестные ошибки
// логируются и дают 500 с сообщением msg.
func (h *APIHandler) serviceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if apierrors.FromService(w, err) {
		return
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		apierrors.ValidationError(w, "Превышен размер запроса")
		return
	}
	h.logger.Error(msg,
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	apierrors.InternalError(w, msg)
}
