// resolver.go — разрешение slug элемента: живой slug, затем история.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/repository"
)

// resolverTotal — исходы разрешения slug.
var resolverTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dg_slug_resolve_total",
	Help: "Количество разрешений slug по типу элемента и исходу.",
}, []string{"kind", "outcome"})

// Исходы разрешения slug (значения метки outcome).
const (
	outcomeFound    = "found"
	outcomeRedirect = "redirect"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// Resolution — результат разрешения slug.
// Ровно одно из: элемент найден (Country/Post/Tag), RedirectTo, NotFound.
type Resolution struct {
	Kind model.SlugKind

	Country *model.Country
	Post    *model.Post
	Tag     *model.Tag

	// RedirectTo — канонический путь элемента, если slug найден в истории
	RedirectTo string
	NotFound   bool
}

// Found сообщает, что slug является живым slug элемента.
func (r Resolution) Found() bool {
	return r.Country != nil || r.Post != nil || r.Tag != nil
}

// Канонические URL элементов.

// CountryURL — путь страницы страны.
func CountryURL(countrySlug string) string {
	return "/" + countrySlug + "/"
}

// CategoryURL — путь вкладки категории страны.
func CategoryURL(countrySlug string, c model.Category) string {
	return "/" + countrySlug + "/" + c.Slug() + "/"
}

// PostURL — путь поста.
func PostURL(countrySlug string, c model.Category, postSlug string) string {
	return "/" + countrySlug + "/" + c.Slug() + "/" + postSlug + "/"
}

// TagURL — путь страницы тега.
func TagURL(tagSlug string) string {
	return "/tags/" + tagSlug + "/"
}

// Resolver ищет элементы по slug с учётом истории переименований.
type Resolver struct {
	store  repository.Store
	logger *slog.Logger
}

// NewResolver создаёт Resolver.
func NewResolver(store repository.Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With(slog.String("component", "resolver")),
	}
}

// Resolve ищет slug заданного типа. Живой slug имеет приоритет над историей.
// Ошибка возвращается только при сбое хранилища.
func (r *Resolver) Resolve(ctx context.Context, kind model.SlugKind, slug string) (Resolution, error) {
	res, err := r.resolve(ctx, kind, slug)
	switch {
	case err != nil:
		resolverTotal.WithLabelValues(string(kind), outcomeError).Inc()
		r.logger.Error("Ошибка разрешения slug",
			slog.String("kind", string(kind)),
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
	case res.Found():
		resolverTotal.WithLabelValues(string(kind), outcomeFound).Inc()
	case res.RedirectTo != "":
		resolverTotal.WithLabelValues(string(kind), outcomeRedirect).Inc()
		r.logger.Debug("Старый slug, перенаправление",
			slog.String("kind", string(kind)),
			slog.String("slug", slug),
			slog.String("location", res.RedirectTo),
		)
	default:
		resolverTotal.WithLabelValues(string(kind), outcomeNotFound).Inc()
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, kind model.SlugKind, slug string) (Resolution, error) {
	if !kind.Valid() {
		return Resolution{}, fmt.Errorf("неизвестный тип элемента %q", kind)
	}
	res := Resolution{Kind: kind}
	if slug == "" {
		res.NotFound = true
		return res, nil
	}

	repos := r.store.Repos()

	// Живой slug
	var err error
	switch kind {
	case model.KindCountry:
		res.Country, err = repos.Countries.GetBySlug(ctx, slug)
	case model.KindPost:
		res.Post, err = repos.Posts.GetBySlug(ctx, slug)
	case model.KindTag:
		res.Tag, err = repos.Tags.GetBySlug(ctx, slug)
	}
	switch {
	case err == nil:
		return res, nil
	case !errors.Is(err, repository.ErrNotFound):
		return Resolution{}, err
	}

	// История slug
	rec, err := repos.History.Lookup(ctx, kind, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			res.NotFound = true
			return res, nil
		}
		return Resolution{}, err
	}

	target, err := r.canonicalURL(ctx, repos, kind, rec.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Запись истории без владельца
			res.NotFound = true
			return res, nil
		}
		return Resolution{}, err
	}
	res.RedirectTo = target
	return res, nil
}

// canonicalURL возвращает путь элемента по его id.
func (r *Resolver) canonicalURL(ctx context.Context, repos *repository.Repos, kind model.SlugKind, id int64) (string, error) {
	switch kind {
	case model.KindCountry:
		c, err := repos.Countries.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return CountryURL(c.Slug), nil
	case model.KindPost:
		p, err := repos.Posts.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		// Старый slug черновика не должен раскрывать его текущий адрес.
		if !p.IsPublished {
			return "", repository.ErrNotFound
		}
		return PostURL(p.CountrySlug, p.Category, p.Slug), nil
	default:
		t, err := repos.Tags.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		return TagURL(t.Slug), nil
	}
}
