// Пакет pages — страницы публичного сайта.
// Шаблоны html/template встроены в бинарник и отдаются как templ-компоненты,
// поэтому обработчики рендерят их так же, как сгенерированные .templ.
package pages

import (
	"context"
	"embed"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/richtext"
	"github.com/bigkaa/dongrigo/internal/service"
	"github.com/bigkaa/dongrigo/internal/ui/i18n"
)

//go:embed templates/*.html
var templateFS embed.FS

// GeoJSONURL — контуры стран Natural Earth для глобуса.
const GeoJSONURL = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"

// Kind — вид страницы внутри общего layout.
type Kind string

const (
	KindBoard Kind = "board"
	KindTags  Kind = "tags"
	KindTag   Kind = "tag"
	KindError Kind = "error"
)

var templates = template.Must(template.New("pages").Funcs(template.FuncMap{
	"highlight":   richtext.Highlight,
	"postURL":     postURL,
	"countryURL":  service.CountryURL,
	"tagURL":      service.TagURL,
	"date":        formatDate,
	"categories":  model.Categories,
	"categoryKey": func(c model.Category) string { return "category." + string(c) },
	"thumb":       func(u string) string { return richtext.CloudinaryURL(u, 400, 300, "fill") },
}).ParseFS(templateFS, "templates/*.html"))

// View — данные страницы. Заполняется обработчиком, язык берётся из ctx.
type View struct {
	ctx context.Context

	Kind  Kind
	Lang  string
	Title string
	// Status — HTTP-статус страницы ошибки (404, 500)
	Status int

	Countries []*model.CountryCard
	Board     *service.Board
	Tags      []*model.TagCount
	TagPage   *service.TagPage
}

// NewView создаёт View для запроса.
func NewView(ctx context.Context) View {
	return View{ctx: ctx, Lang: i18n.LangFromContext(ctx)}
}

// T — перевод ключа на язык запроса.
func (v View) T(key string) string {
	return i18n.T(v.ctx, key)
}

// Tf — перевод с подстановкой аргументов.
func (v View) Tf(key string, args ...any) string {
	return i18n.Tf(v.ctx, key, args...)
}

// PageTitle — содержимое <title>.
func (v View) PageTitle() string {
	site := v.T("site.title")
	if v.Title == "" {
		return site
	}
	return v.Title + " · " + site
}

// GeoJSONURL — источник контуров для глобуса.
func (v View) GeoJSONURL() string {
	return GeoJSONURL
}

// BoardURL — адрес текущей вкладки доски без параметров.
func (v View) BoardURL() string {
	if v.Board == nil || v.Board.Country == nil {
		return "/"
	}
	return service.CategoryURL(v.Board.Country.Slug, v.Board.Category)
}

// TabURL — адрес вкладки категории.
func (v View) TabURL(c model.Category) string {
	if v.Board == nil || v.Board.Country == nil {
		return "/?category=" + c.Slug()
	}
	return service.CategoryURL(v.Board.Country.Slug, c)
}

// PageURL — адрес страницы n текущей доски с сохранением поиска.
func (v View) PageURL(n int) string {
	q := url.Values{}
	if v.Board.Country == nil {
		q.Set("category", v.Board.Category.Slug())
	}
	if v.Board.Query != "" {
		q.Set("q", v.Board.Query)
	}
	q.Set("page", strconv.Itoa(n))
	base := v.BoardURL()
	if v.Board.Post != nil {
		base = postURL(v.Board.Post)
	}
	return base + "?" + q.Encode()
}

// TagPageURL — адрес страницы n списка постов тега.
func (v View) TagPageURL(n int) string {
	return service.TagURL(v.TagPage.Tag.Slug) + "?page=" + strconv.Itoa(n)
}

// IsSelected сообщает, открыт ли пост на доске.
func (v View) IsSelected(p *model.Post) bool {
	return v.Board != nil && v.Board.Post != nil && v.Board.Post.ID == p.ID
}

func postURL(p *model.Post) string {
	return service.PostURL(p.CountrySlug, p.Category, p.Slug)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func component(name string, v View) templ.Component {
	return templ.FromGoHTML(templates.Lookup(name), v)
}

// Home — полная страница: глобус, список стран и доска.
func Home(v View) templ.Component {
	v.Kind = KindBoard
	return component("page", v)
}

// BoardFragment — только панель доски для HTMX-запросов.
func BoardFragment(v View) templ.Component {
	v.Kind = KindBoard
	return component("board", v)
}

// TagsIndex — список тегов.
func TagsIndex(v View) templ.Component {
	v.Kind = KindTags
	return component("page", v)
}

// TagDetail — посты тега.
func TagDetail(v View) templ.Component {
	v.Kind = KindTag
	return component("page", v)
}

// Error — страница ошибки с v.Status.
func Error(v View) templ.Component {
	v.Kind = KindError
	return component("page", v)
}
