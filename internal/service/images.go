// images.go — изображения постов: загрузка в хранилище медиа, список, удаление.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bigkaa/dongrigo/internal/domain/model"
	"github.com/bigkaa/dongrigo/internal/media"
	"github.com/bigkaa/dongrigo/internal/repository"
)

// ImageService управляет изображениями постов.
type ImageService struct {
	store  repository.Store
	media  media.Store
	logger *slog.Logger
}

// NewImageService создаёт ImageService.
func NewImageService(store repository.Store, mediaStore media.Store, logger *slog.Logger) *ImageService {
	return &ImageService{
		store:  store,
		media:  mediaStore,
		logger: logger.With(slog.String("component", "image_service")),
	}
}

// UploadInput — параметры загрузки изображения.
type UploadInput struct {
	PostID   int64
	Filename string
	Body     io.Reader
	Size     int64
	Caption  string
	// SortOrder == 0 — изображение добавляется в конец
	SortOrder int
}

// Upload сохраняет файл в хранилище медиа и привязывает его к посту.
func (s *ImageService) Upload(ctx context.Context, in UploadInput) (*model.PostImage, error) {
	contentType, ok := media.ContentTypeFor(in.Filename)
	if !ok {
		return nil, fmt.Errorf("%w: неподдерживаемый тип файла %q", ErrValidation, in.Filename)
	}
	caption := strings.TrimSpace(in.Caption)
	if utf8.RuneCountInString(caption) > 200 {
		return nil, fmt.Errorf("%w: подпись длиннее 200 символов", ErrValidation)
	}

	repos := s.store.Repos()
	if _, err := repos.Posts.GetByID(ctx, in.PostID); err != nil {
		return nil, mapRepoErr(err, fmt.Sprintf("пост %d", in.PostID))
	}

	key := media.NewKey(in.PostID, in.Filename)
	url, err := s.media.Put(ctx, key, in.Body, in.Size, contentType)
	if err != nil {
		return nil, fmt.Errorf("сохранение файла в хранилище: %w", err)
	}

	img := &model.PostImage{
		PostID:     in.PostID,
		ImageURL:   url,
		StorageKey: key,
		Caption:    caption,
		SortOrder:  in.SortOrder,
	}
	if err := repos.Images.Create(ctx, img); err != nil {
		s.removeObject(ctx, key)
		return nil, mapRepoErr(err, "сохранение изображения")
	}

	s.logger.Info("Изображение загружено",
		slog.Int64("post_id", in.PostID),
		slog.Int64("image_id", img.ID),
		slog.String("key", key),
		slog.String("backend", s.media.Backend()),
	)
	return img, nil
}

// List возвращает изображения поста.
func (s *ImageService) List(ctx context.Context, postID int64) ([]*model.PostImage, error) {
	list, err := s.store.Repos().Images.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("получение изображений поста %d: %w", postID, err)
	}
	return list, nil
}

// Delete удаляет изображение и его файл.
func (s *ImageService) Delete(ctx context.Context, id int64) error {
	repos := s.store.Repos()
	img, err := repos.Images.GetByID(ctx, id)
	if err != nil {
		return mapRepoErr(err, fmt.Sprintf("изображение %d", id))
	}
	if err := repos.Images.Delete(ctx, id); err != nil {
		return mapRepoErr(err, fmt.Sprintf("удаление изображения %d", id))
	}
	if img.StorageKey != "" {
		s.removeObject(ctx, img.StorageKey)
	}
	return nil
}

// RemoveObjects удаляет файлы по ключам (после удаления поста).
func (s *ImageService) RemoveObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		s.removeObject(ctx, key)
	}
}

// removeObject удаляет файл; ошибка только логируется.
func (s *ImageService) removeObject(ctx context.Context, key string) {
	if err := s.media.Delete(ctx, key); err != nil {
		s.logger.Warn("Не удалось удалить файл из хранилища",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
