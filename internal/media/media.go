// Пакет media — хранилище загружаемых изображений постов:
// локальный каталог или S3-совместимый bucket.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/dongrigo/internal/config"
)

// Store — хранилище медиафайлов.
type Store interface {
	// Put сохраняет объект под ключом key и возвращает публичный URL.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete удаляет объект; отсутствие объекта ошибкой не считается.
	Delete(ctx context.Context, key string) error
	// Ping проверяет доступность хранилища (для ops_check и readiness).
	Ping(ctx context.Context) error
	// Backend возвращает имя бэкенда: local или s3.
	Backend() string
}

// New создаёт хранилище по конфигурации.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.MediaBackend {
	case config.MediaBackendLocal:
		return NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL), nil
	case config.MediaBackendS3:
		return NewS3Store(ctx, S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
			BaseURL:      cfg.MediaBaseURL,
		})
	default:
		return nil, fmt.Errorf("неизвестный бэкенд медиа %q", cfg.MediaBackend)
	}
}

// allowedExt — допустимые расширения изображений.
var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
}

// ContentTypeFor возвращает MIME-тип по имени файла.
// Второе значение false, если расширение не поддерживается.
func ContentTypeFor(filename string) (string, bool) {
	ct, ok := allowedExt[strings.ToLower(path.Ext(filename))]
	return ct, ok
}

// NewKey формирует ключ объекта для изображения поста: posts/<id>/<uuid><ext>.
func NewKey(postID int64, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("posts/%d/%s%s", postID, uuid.New().String(), ext)
}

// publicURL склеивает базовый URL и ключ.
func publicURL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(key, "/")
}
