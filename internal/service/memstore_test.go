// memstore_test.go — хранилище в памяти для unit-тестов сервисов.
// Повторяет семантику PostgreSQL-репозиториев: уникальность slug,
// каскадное удаление, порядок выборок, откат транзакции при ошибке.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/repository"
)

// errStorage — имитация недоступного хранилища.
var errStorage = errors.New("connection refused")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memState struct {
	countries map[int64]model.Country
	posts     map[int64]model.Post
	images    map[int64]model.PostImage
	tags      map[int64]model.Tag
	postTags  map[int64][]int64
	history   map[int64]model.SlugHistoryRecord
	seed      map[string]model.SeedMeta
	nextID    int64
}

func (s *memState) clone() *memState {
	c := &memState{
		countries: maps.Clone(s.countries),
		posts:     maps.Clone(s.posts),
		images:    maps.Clone(s.images),
		tags:      maps.Clone(s.tags),
		postTags:  make(map[int64][]int64, len(s.postTags)),
		history:   maps.Clone(s.history),
		seed:      maps.Clone(s.seed),
		nextID:    s.nextID,
	}
	for k, v := range s.postTags {
		c.postTags[k] = slices.Clone(v)
	}
	return c
}

// memStore реализует repository.Store.
type memStore struct {
	st *memState
	// fail — ошибка, возвращаемая операциями чтения по slug и подсчётом
	fail  error
	repos *repository.Repos
	// txCount — количество вызовов InTx
	txCount int
	// writes — количество изменяющих операций
	writes int
}

func newMemStore() *memStore {
	m := &memStore{st: &memState{
		countries: map[int64]model.Country{},
		posts:     map[int64]model.Post{},
		images:    map[int64]model.PostImage{},
		tags:      map[int64]model.Tag{},
		postTags:  map[int64][]int64{},
		history:   map[int64]model.SlugHistoryRecord{},
		seed:      map[string]model.SeedMeta{},
	}}
	m.repos = &repository.Repos{
		Countries: &memCountries{m},
		Posts:     &memPosts{m},
		Images:    &memImages{m},
		Tags:      &memTags{m},
		History:   &memHistory{m},
		Seed:      &memSeed{m},
	}
	return m
}

func (m *memStore) Repos() *repository.Repos { return m.repos }

func (m *memStore) InTx(_ context.Context, fn func(r *repository.Repos) error) error {
	m.txCount++
	snapshot := m.st.clone()
	if err := fn(m.repos); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *memStore) id(explicit int64) int64 {
	if explicit > 0 {
		if explicit > m.st.nextID {
			m.st.nextID = explicit
		}
		return explicit
	}
	m.st.nextID++
	return m.st.nextID
}

// --- Заполнение данными в тестах ---

func (m *memStore) addCountry(id int64, name, slug string) *model.Country {
	c := model.Country{ID: id, Name: name, Slug: slug, NameEn: name}
	m.id(id)
	m.st.countries[id] = c
	return &c
}

func (m *memStore) addPost(id, countryID int64, cat model.Category, title, slug string, published bool, day int) *model.Post {
	p := model.Post{ID: id, CountryID: countryID, Category: cat, Title: title, Slug: slug, IsPublished: published}
	if day > 0 {
		d := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
		p.PublishedAt = &d
	}
	p.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, int(id), time.UTC)
	m.id(id)
	m.st.posts[id] = p
	return m.postView(p)
}

func (m *memStore) addTag(id int64, name, slug string) *model.Tag {
	t := model.Tag{ID: id, Name: name, Slug: slug}
	m.id(id)
	m.st.tags[id] = t
	return &t
}

func (m *memStore) addHistory(kind model.SlugKind, old string, itemID int64) int64 {
	id := m.id(0)
	m.st.history[id] = model.SlugHistoryRecord{ID: id, Kind: kind, OldSlug: old, ItemID: itemID}
	return id
}

func (m *memStore) historyFor(kind model.SlugKind) map[string]int64 {
	out := map[string]int64{}
	for _, h := range m.st.history {
		if h.Kind == kind {
			out[h.OldSlug] = h.ItemID
		}
	}
	return out
}

func (m *memStore) postView(p model.Post) *model.Post {
	p.CountrySlug = m.st.countries[p.CountryID].Slug
	p.Tags = nil
	return &p
}

// --- Страны ---

type memCountries struct{ m *memStore }

func (r *memCountries) conflict(c *model.Country) error {
	for id, o := range r.m.st.countries {
		if id == c.ID {
			continue
		}
		if o.Slug == c.Slug {
			return fmt.Errorf("%w: slug страны уже используется", repository.ErrConflict)
		}
		if c.ISOA3 != nil && o.ISOA3 != nil && *c.ISOA3 == *o.ISOA3 {
			return fmt.Errorf("%w: iso_a3 уже используется", repository.ErrConflict)
		}
	}
	return nil
}

func (r *memCountries) Create(_ context.Context, c *model.Country) error {
	if err := r.conflict(c); err != nil {
		return err
	}
	c.ID = r.m.id(0)
	r.m.st.countries[c.ID] = *c
	r.m.writes++
	return nil
}

func (r *memCountries) GetByID(_ context.Context, id int64) (*model.Country, error) {
	c, ok := r.m.st.countries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *memCountries) GetBySlug(_ context.Context, slug string) (*model.Country, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	for _, c := range r.m.st.countries {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memCountries) GetByISOA3(_ context.Context, iso string) (*model.Country, error) {
	for _, c := range r.m.st.countries {
		if c.ISOA3 != nil && *c.ISOA3 == iso {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memCountries) List(_ context.Context) ([]*model.Country, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	out := make([]*model.Country, 0, len(r.m.st.countries))
	for _, c := range r.m.st.countries {
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memCountries) ListCards(ctx context.Context) ([]*model.CountryCard, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.CountryCard, 0, len(list))
	for _, c := range list {
		card := &model.CountryCard{Country: *c}
		for _, p := range r.m.st.posts {
			if p.CountryID == c.ID && p.IsPublished {
				card.PublishedPosts++
			}
		}
		out = append(out, card)
	}
	return out, nil
}

func (r *memCountries) Update(_ context.Context, c *model.Country) error {
	if _, ok := r.m.st.countries[c.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.conflict(c); err != nil {
		return err
	}
	r.m.st.countries[c.ID] = *c
	r.m.writes++
	return nil
}

func (r *memCountries) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.st.countries[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.m.st.countries, id)
	for pid, p := range r.m.st.posts {
		if p.CountryID == id {
			r.m.deletePost(pid)
		}
	}
	r.m.writes++
	return nil
}

func (r *memCountries) SlugExists(_ context.Context, slug string, excludeID int64) (bool, error) {
	for id, c := range r.m.st.countries {
		if c.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memCountries) Upsert(_ context.Context, c *model.Country) (repository.UpsertResult, error) {
	if err := r.conflict(c); err != nil {
		return repository.UpsertResult{}, err
	}
	prev, ok := r.m.st.countries[c.ID]
	var res repository.UpsertResult
	if ok {
		res.PrevSlug = prev.Slug
		c.CreatedAt, c.UpdatedAt = prev.CreatedAt, prev.UpdatedAt
		if countriesEqual(prev, *c) {
			return res, nil
		}
	}
	r.m.id(c.ID)
	r.m.st.countries[c.ID] = *c
	r.m.writes++
	res.Written = true
	return res, nil
}

func countriesEqual(a, b model.Country) bool {
	return a.Name == b.Name && a.Slug == b.Slug && strPtrValue(a.ISOA2) == strPtrValue(b.ISOA2) &&
		strPtrValue(a.ISOA3) == strPtrValue(b.ISOA3) && (a.ISOA2 == nil) == (b.ISOA2 == nil) &&
		(a.ISOA3 == nil) == (b.ISOA3 == nil) && a.NameKo == b.NameKo && a.NameEn == b.NameEn &&
		a.Aliases == b.Aliases && a.ShortDescription == b.ShortDescription && a.FlagImageURL == b.FlagImageURL
}

// --- Посты ---

type memPosts struct{ m *memStore }

func (m *memStore) deletePost(id int64) {
	delete(m.st.posts, id)
	delete(m.st.postTags, id)
	for iid, img := range m.st.images {
		if img.PostID == id {
			delete(m.st.images, iid)
		}
	}
}

func (r *memPosts) check(p *model.Post) error {
	if _, ok := r.m.st.countries[p.CountryID]; !ok {
		return fmt.Errorf("%w: страна поста не существует", repository.ErrNotFound)
	}
	for id, o := range r.m.st.posts {
		if id != p.ID && o.Slug == p.Slug {
			return fmt.Errorf("%w: slug поста уже используется", repository.ErrConflict)
		}
	}
	return nil
}

func (r *memPosts) Create(_ context.Context, p *model.Post) error {
	if err := r.check(p); err != nil {
		return err
	}
	p.ID = r.m.id(0)
	p.CreatedAt = time.Now()
	stored := *p
	stored.Tags = nil
	r.m.st.posts[p.ID] = stored
	r.m.writes++
	return nil
}

func (r *memPosts) GetByID(_ context.Context, id int64) (*model.Post, error) {
	p, ok := r.m.st.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.m.postView(p), nil
}

func (r *memPosts) GetBySlug(_ context.Context, slug string) (*model.Post, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	for _, p := range r.m.st.posts {
		if p.Slug == slug {
			return r.m.postView(p), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memPosts) matches(p model.Post, f model.PostFilter) bool {
	if f.PublishedOnly && !p.IsPublished {
		return false
	}
	if f.CountryID != nil && p.CountryID != *f.CountryID {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.TagID != nil && !slices.Contains(r.m.st.postTags[p.ID], *f.TagID) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Content), q) {
			return false
		}
	}
	return true
}

// ordered возвращает посты по фильтру в порядке доски без Limit/Offset.
func (r *memPosts) ordered(f model.PostFilter) []*model.Post {
	var out []*model.Post
	for _, p := range r.m.st.posts {
		if r.matches(p, f) {
			out = append(out, r.m.postView(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.PublishedAt == nil && b.PublishedAt != nil:
			return false
		case a.PublishedAt != nil && b.PublishedAt == nil:
			return true
		case a.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt):
			return a.PublishedAt.After(*b.PublishedAt)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out
}

func (r *memPosts) List(_ context.Context, f model.PostFilter) ([]*model.Post, error) {
	out := r.ordered(f)
	if f.Limit > 0 {
		start := min(f.Offset, len(out))
		end := min(start+f.Limit, len(out))
		out = out[start:end]
	}
	return out, nil
}

func (r *memPosts) Count(_ context.Context, f model.PostFilter) (int, error) {
	if r.m.fail != nil {
		return 0, r.m.fail
	}
	return len(r.ordered(f)), nil
}

func (r *memPosts) Position(_ context.Context, f model.PostFilter, postID int64) (int, error) {
	for i, p := range r.ordered(f) {
		if p.ID == postID {
			return i, nil
		}
	}
	return 0, repository.ErrNotFound
}

func (r *memPosts) Update(_ context.Context, p *model.Post) error {
	prev, ok := r.m.st.posts[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := r.check(p); err != nil {
		return err
	}
	stored := *p
	stored.Tags = nil
	stored.CreatedAt = prev.CreatedAt
	r.m.st.posts[p.ID] = stored
	r.m.writes++
	return nil
}

func (r *memPosts) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.st.posts[id]; !ok {
		return repository.ErrNotFound
	}
	r.m.deletePost(id)
	r.m.writes++
	return nil
}

func (r *memPosts) SlugExists(_ context.Context, slug string, excludeID int64) (bool, error) {
	for id, p := range r.m.st.posts {
		if p.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPosts) Upsert(_ context.Context, p *model.Post) (repository.UpsertResult, error) {
	if err := r.check(p); err != nil {
		return repository.UpsertResult{}, err
	}
	prev, ok := r.m.st.posts[p.ID]
	var res repository.UpsertResult
	if ok {
		res.PrevSlug = prev.Slug
		if prev.CountryID == p.CountryID && prev.Category == p.Category && prev.Title == p.Title &&
			prev.Slug == p.Slug && prev.Content == p.Content && prev.CoverImageURL == p.CoverImageURL &&
			prev.IsPublished == p.IsPublished && sameDate(prev.PublishedAt, p.PublishedAt) {
			return res, nil
		}
	}
	r.m.id(p.ID)
	stored := *p
	stored.Tags = nil
	r.m.st.posts[p.ID] = stored
	r.m.writes++
	res.Written = true
	return res, nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (r *memPosts) SetTags(_ context.Context, postID int64, tagIDs []int64) error {
	r.m.st.postTags[postID] = slices.Clone(tagIDs)
	r.m.writes++
	return nil
}

func (r *memPosts) LoadTags(_ context.Context, posts []*model.Post) error {
	for _, p := range posts {
		p.Tags = nil
		for _, tid := range r.m.st.postTags[p.ID] {
			if t, ok := r.m.st.tags[tid]; ok {
				p.Tags = append(p.Tags, t)
			}
		}
		sort.Slice(p.Tags, func(i, j int) bool { return p.Tags[i].Name < p.Tags[j].Name })
	}
	return nil
}

// --- Изображения ---

type memImages struct{ m *memStore }

func (r *memImages) Create(_ context.Context, img *model.PostImage) error {
	if _, ok := r.m.st.posts[img.PostID]; !ok {
		return fmt.Errorf("%w: пост не существует", repository.ErrNotFound)
	}
	if img.SortOrder == 0 {
		maxOrder := 0
		for _, o := range r.m.st.images {
			if o.PostID == img.PostID && o.SortOrder > maxOrder {
				maxOrder = o.SortOrder
			}
		}
		img.SortOrder = maxOrder + 10
	}
	img.ID = r.m.id(0)
	r.m.st.images[img.ID] = *img
	r.m.writes++
	return nil
}

func (r *memImages) GetByID(_ context.Context, id int64) (*model.PostImage, error) {
	img, ok := r.m.st.images[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &img, nil
}

func (r *memImages) sorted(filter func(model.PostImage) bool) []*model.PostImage {
	var out []*model.PostImage
	for _, img := range r.m.st.images {
		if filter(img) {
			out = append(out, &img)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PostID != b.PostID {
			return a.PostID < b.PostID
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	})
	return out
}

func (r *memImages) ListByPost(_ context.Context, postID int64) ([]*model.PostImage, error) {
	return r.sorted(func(img model.PostImage) bool { return img.PostID == postID }), nil
}

func (r *memImages) ListAll(_ context.Context) ([]*model.PostImage, error) {
	return r.sorted(func(model.PostImage) bool { return true }), nil
}

func (r *memImages) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.st.images[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.m.st.images, id)
	r.m.writes++
	return nil
}

func (r *memImages) Upsert(_ context.Context, img *model.PostImage) (bool, error) {
	if prev, ok := r.m.st.images[img.ID]; ok {
		img.CreatedAt = prev.CreatedAt
		if prev == *img {
			return false, nil
		}
	}
	r.m.id(img.ID)
	r.m.st.images[img.ID] = *img
	r.m.writes++
	return true, nil
}

func (r *memImages) CountOrphans(_ context.Context) (int, error) {
	n := 0
	for _, img := range r.m.st.images {
		if _, ok := r.m.st.posts[img.PostID]; !ok {
			n++
		}
	}
	return n, nil
}

// --- Теги ---

type memTags struct{ m *memStore }

func (r *memTags) conflict(t *model.Tag) error {
	for id, o := range r.m.st.tags {
		if id != t.ID && o.Slug == t.Slug {
			return fmt.Errorf("%w: slug тега уже используется", repository.ErrConflict)
		}
	}
	return nil
}

func (r *memTags) Create(_ context.Context, t *model.Tag) error {
	if err := r.conflict(t); err != nil {
		return err
	}
	t.ID = r.m.id(0)
	r.m.st.tags[t.ID] = *t
	r.m.writes++
	return nil
}

func (r *memTags) GetByID(_ context.Context, id int64) (*model.Tag, error) {
	t, ok := r.m.st.tags[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *memTags) GetBySlug(_ context.Context, slug string) (*model.Tag, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	for _, t := range r.m.st.tags {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memTags) List(_ context.Context) ([]*model.Tag, error) {
	out := make([]*model.Tag, 0, len(r.m.st.tags))
	for _, t := range r.m.st.tags {
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memTags) ListWithCounts(ctx context.Context) ([]*model.TagCount, error) {
	tags, _ := r.List(ctx)
	out := make([]*model.TagCount, 0, len(tags))
	for _, t := range tags {
		tc := &model.TagCount{Tag: *t}
		for pid, ids := range r.m.st.postTags {
			if slices.Contains(ids, t.ID) && r.m.st.posts[pid].IsPublished {
				tc.PublishedPosts++
			}
		}
		out = append(out, tc)
	}
	return out, nil
}

func (r *memTags) Update(_ context.Context, t *model.Tag) error {
	if _, ok := r.m.st.tags[t.ID]; !ok {
		return repository.ErrNotFound
	}
	if err := r.conflict(t); err != nil {
		return err
	}
	r.m.st.tags[t.ID] = *t
	r.m.writes++
	return nil
}

func (r *memTags) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.st.tags[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.m.st.tags, id)
	for pid, ids := range r.m.st.postTags {
		r.m.st.postTags[pid] = slices.DeleteFunc(ids, func(v int64) bool { return v == id })
	}
	r.m.writes++
	return nil
}

func (r *memTags) SlugExists(_ context.Context, slug string, excludeID int64) (bool, error) {
	for id, t := range r.m.st.tags {
		if t.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memTags) Upsert(_ context.Context, t *model.Tag) (repository.UpsertResult, error) {
	if err := r.conflict(t); err != nil {
		return repository.UpsertResult{}, err
	}
	prev, ok := r.m.st.tags[t.ID]
	var res repository.UpsertResult
	if ok {
		res.PrevSlug = prev.Slug
		if prev == *t {
			return res, nil
		}
	}
	r.m.id(t.ID)
	r.m.st.tags[t.ID] = *t
	r.m.writes++
	res.Written = true
	return res, nil
}

// --- История slug ---

type memHistory struct{ m *memStore }

func (r *memHistory) Lookup(_ context.Context, kind model.SlugKind, oldSlug string) (*model.SlugHistoryRecord, error) {
	if r.m.fail != nil {
		return nil, r.m.fail
	}
	for _, h := range r.m.st.history {
		if h.Kind == kind && h.OldSlug == oldSlug {
			return &h, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memHistory) Record(_ context.Context, kind model.SlugKind, oldSlug string, itemID int64) error {
	for id, h := range r.m.st.history {
		if h.Kind == kind && h.OldSlug == oldSlug {
			h.ItemID = itemID
			r.m.st.history[id] = h
			r.m.writes++
			return nil
		}
	}
	id := r.m.id(0)
	r.m.st.history[id] = model.SlugHistoryRecord{ID: id, Kind: kind, OldSlug: oldSlug, ItemID: itemID, RecordedAt: time.Now()}
	r.m.writes++
	return nil
}

func (r *memHistory) DeleteSlug(_ context.Context, kind model.SlugKind, slug string) error {
	for id, h := range r.m.st.history {
		if h.Kind == kind && h.OldSlug == slug {
			delete(r.m.st.history, id)
			r.m.writes++
		}
	}
	return nil
}

func (r *memHistory) DeleteForItem(_ context.Context, kind model.SlugKind, itemID int64) error {
	for id, h := range r.m.st.history {
		if h.Kind == kind && h.ItemID == itemID {
			delete(r.m.st.history, id)
			r.m.writes++
		}
	}
	return nil
}

func (r *memHistory) DeleteByIDs(_ context.Context, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := r.m.st.history[id]; ok {
			delete(r.m.st.history, id)
			n++
		}
	}
	r.m.writes++
	return n, nil
}

func (r *memHistory) List(_ context.Context, kind model.SlugKind) ([]*model.SlugHistoryRecord, error) {
	var out []*model.SlugHistoryRecord
	for _, h := range r.m.st.history {
		if kind == "" || h.Kind == kind {
			out = append(out, &h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// liveSlug возвращает текущий slug элемента и признак его существования.
func (m *memStore) liveSlug(kind model.SlugKind, id int64) (string, bool) {
	switch kind {
	case model.KindCountry:
		c, ok := m.st.countries[id]
		return c.Slug, ok
	case model.KindPost:
		p, ok := m.st.posts[id]
		return p.Slug, ok
	default:
		t, ok := m.st.tags[id]
		return t.Slug, ok
	}
}

// liveOwner возвращает id элемента с живым slug (0 — нет).
func (m *memStore) liveOwner(kind model.SlugKind, slug string) int64 {
	switch kind {
	case model.KindCountry:
		for id, c := range m.st.countries {
			if c.Slug == slug {
				return id
			}
		}
	case model.KindPost:
		for id, p := range m.st.posts {
			if p.Slug == slug {
				return id
			}
		}
	default:
		for id, t := range m.st.tags {
			if t.Slug == slug {
				return id
			}
		}
	}
	return 0
}

func (r *memHistory) ListWithOwners(_ context.Context) ([]*model.SlugHistoryRow, error) {
	var out []*model.SlugHistoryRow
	for _, h := range r.m.st.history {
		row := &model.SlugHistoryRow{SlugHistoryRecord: h}
		row.ItemSlug, row.ItemExists = r.m.liveSlug(h.Kind, h.ItemID)
		if owner := r.m.liveOwner(h.Kind, h.OldSlug); owner != 0 && owner != h.ItemID {
			row.LiveOwnerID = owner
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- Seed ---

type memSeed struct{ m *memStore }

func (r *memSeed) GetMeta(_ context.Context, name string) (*model.SeedMeta, error) {
	meta, ok := r.m.st.seed[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &meta, nil
}

func (r *memSeed) SaveMeta(_ context.Context, meta *model.SeedMeta) error {
	meta.AppliedAt = time.Now()
	r.m.st.seed[meta.Name] = *meta
	r.m.writes++
	return nil
}

func (r *memSeed) Wipe(_ context.Context) error {
	r.m.st.images = map[int64]model.PostImage{}
	r.m.st.posts = map[int64]model.Post{}
	r.m.st.postTags = map[int64][]int64{}
	r.m.st.countries = map[int64]model.Country{}
	r.m.st.tags = map[int64]model.Tag{}
	r.m.st.history = map[int64]model.SlugHistoryRecord{}
	r.m.writes++
	return nil
}

func (r *memSeed) ResetSequences(_ context.Context) error { return nil }
