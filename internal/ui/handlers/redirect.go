// redirect.go — перенаправления со старых slug и нормализация путей.
package handlers

import (
	"net/http"
	"net/url"
	"strings"
)

// HeaderHXRequest — заголовок, которым HTMX помечает свои запросы.
const HeaderHXRequest = "HX-Request"

func isHTMX(r *http.Request) bool {
	return r.Header.Get(HeaderHXRequest) == "true"
}

// redirect перенаправляет на канонический путь, сохраняя строку запроса как есть.
// Полная навигация получает 301, HTMX — 204 с HX-Redirect.
func redirect(w http.ResponseWriter, r *http.Request, path string) {
	u := url.URL{Path: path, RawQuery: r.URL.RawQuery}
	target := u.String()

	w.Header().Set("Vary", HeaderHXRequest)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusMovedPermanently)
}

// HandleAddSlash перенаправляет путь без завершающего «/» на канонический.
// Ведущие «/» схлопываются: «//host» не должен уйти в Location как
// адрес другого сайта.
func HandleAddSlash(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if strings.Contains(path, `\`) {
		http.NotFound(w, r)
		return
	}
	redirect(w, r, "/"+strings.TrimLeft(path, "/")+"/")
}
