package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/bigkaa/dongrigo/internal/api/errors"
	"github.com/bigkaa/dongrigo/internal/service"
)

type tokenRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=200"`
}

// IssueToken — POST /api/v1/auth/token.
// Обменивает логин и пароль администратора на HS256-токен.
func (h *APIHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrLoginDisabled) {
			apierrors.Forbidden(w, "Локальный вход отключён: используйте токен IdP")
			return
		}
		h.serviceError(w, r, err, "Ошибка выпуска токена")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
