// board.go — сборка «доски» публичного сайта: вкладки, поиск, пагинация,
// выбранный пост с галереей, а также страницы тегов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/repository"
	"github.com/bigkaa/dongrigo/internal/richtext"
)

// PageSize — количество постов на странице доски.
const PageSize = 10

// Pagination — состояние пагинации.
type Pagination struct {
	Number     int
	TotalPages int
	TotalItems int
}

// HasPrev сообщает о наличии предыдущей страницы.
func (p Pagination) HasPrev() bool { return p.Number > 1 }

// HasNext сообщает о наличии следующей страницы.
func (p Pagination) HasNext() bool { return p.Number < p.TotalPages }

// Prev — номер предыдущей страницы.
func (p Pagination) Prev() int { return p.Number - 1 }

// Next — номер следующей страницы.
func (p Pagination) Next() int { return p.Number + 1 }

// newPagination ограничивает номер страницы диапазоном [1, TotalPages].
func newPagination(page, total int) Pagination {
	pages := (total + PageSize - 1) / PageSize
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	return Pagination{Number: page, TotalPages: pages, TotalItems: total}
}

// BoardQuery — параметры доски. Country и Post уже разрешены по slug.
type BoardQuery struct {
	Country  *model.Country
	Category model.Category
	Post     *model.Post
	Query    string
	// Page — номер страницы из ?page; 0 — не задан
	Page int
}

// Board — данные для шаблона доски.
type Board struct {
	Country  *model.Country
	Category model.Category
	Query    string
	Posts    []*model.Post
	Page     Pagination

	// Выбранный пост (nil — только список)
	Post     *model.Post
	PostHTML richtext.RenderedPost
}

// TagPage — страница тега со списком опубликованных постов.
type TagPage struct {
	Tag   *model.Tag
	Posts []*model.Post
	Page  Pagination
}

// BoardService собирает данные публичных страниц.
type BoardService struct {
	store    repository.Store
	renderer *richtext.Renderer
	logger   *slog.Logger
}

// NewBoardService создаёт BoardService.
func NewBoardService(store repository.Store, renderer *richtext.Renderer, logger *slog.Logger) *BoardService {
	return &BoardService{
		store:    store,
		renderer: renderer,
		logger:   logger.With(slog.String("component", "board")),
	}
}

// Countries возвращает карточки стран для списка слева.
func (s *BoardService) Countries(ctx context.Context) ([]*model.CountryCard, error) {
	cards, err := s.store.Repos().Countries.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение карточек стран: %w", err)
	}
	return cards, nil
}

// Build собирает доску. Неопубликованный выбранный пост не показывается.
func (s *BoardService) Build(ctx context.Context, q BoardQuery) (*Board, error) {
	repos := s.store.Repos()

	category := q.Category
	if !category.Valid() {
		category = model.DefaultCategory
	}
	b := &Board{
		Country:  q.Country,
		Category: category,
		Query:    strings.TrimSpace(q.Query),
	}
	if q.Post != nil && q.Post.IsPublished {
		b.Post = q.Post
	}

	filter := model.PostFilter{
		Category:      category,
		Query:         b.Query,
		PublishedOnly: true,
	}
	if q.Country != nil {
		filter.CountryID = &q.Country.ID
	}

	total, err := repos.Posts.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("подсчёт постов доски: %w", err)
	}

	page := q.Page
	if page <= 0 && b.Post != nil {
		// Страница, на которой находится выбранный пост
		pos, err := repos.Posts.Position(ctx, filter, b.Post.ID)
		switch {
		case err == nil:
			page = pos/PageSize + 1
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("позиция поста на доске: %w", err)
		}
	}
	b.Page = newPagination(page, total)

	filter.Limit = PageSize
	filter.Offset = (b.Page.Number - 1) * PageSize
	posts, err := repos.Posts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("получение постов доски: %w", err)
	}
	if err := repos.Posts.LoadTags(ctx, posts); err != nil {
		return nil, err
	}
	b.Posts = posts

	if b.Post != nil {
		if err := repos.Posts.LoadTags(ctx, []*model.Post{b.Post}); err != nil {
			return nil, err
		}
		images, err := repos.Images.ListByPost(ctx, b.Post.ID)
		if err != nil {
			return nil, fmt.Errorf("получение изображений поста: %w", err)
		}
		b.PostHTML = s.renderer.RenderPost(b.Post.Content, images)
	}
	return b, nil
}

// Tags возвращает теги с количеством опубликованных постов.
// Теги без опубликованных постов не показываются.
func (s *BoardService) Tags(ctx context.Context) ([]*model.TagCount, error) {
	list, err := s.store.Repos().Tags.ListWithCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение тегов: %w", err)
	}
	out := list[:0]
	for _, t := range list {
		if t.PublishedPosts > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

// TagPosts возвращает страницу опубликованных постов тега.
func (s *BoardService) TagPosts(ctx context.Context, tag *model.Tag, page int) (*TagPage, error) {
	repos := s.store.Repos()
	filter := model.PostFilter{TagID: &tag.ID, PublishedOnly: true}

	total, err := repos.Posts.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("подсчёт постов тега: %w", err)
	}
	tp := &TagPage{Tag: tag, Page: newPagination(page, total)}

	filter.Limit = PageSize
	filter.Offset = (tp.Page.Number - 1) * PageSize
	posts, err := repos.Posts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("получение постов тега: %w", err)
	}
	if err := repos.Posts.LoadTags(ctx, posts); err != nil {
		return nil, err
	}
	tp.Posts = posts
	return tp, nil
}

// Preview рендерит Markdown так же, как на странице поста.
// postID > 0 — токены изображений разрешаются по изображениям этого поста.
func (s *BoardService) Preview(ctx context.Context, content string, postID int64) (richtext.RenderedPost, error) {
	var images []*model.PostImage
	if postID > 0 {
		var err error
		images, err = s.store.Repos().Images.ListByPost(ctx, postID)
		if err != nil {
			return richtext.RenderedPost{}, fmt.Errorf("получение изображений поста %d: %w", postID, err)
		}
	}
	return s.renderer.RenderPost(content, images), nil
}
