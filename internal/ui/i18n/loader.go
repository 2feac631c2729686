// loader.go — загрузка каталогов переводов из embed.FS.
package i18n

import (
	"fmt"
	"log/slog"
)

// Load создаёт Bundle из встроенных каталогов locales/ko.json, locales/en.json.
func Load(fallback string, logger *slog.Logger) (*Bundle, error) {
	b := NewBundle(fallback, logger)
	langs := []string{LangKo, LangEn}
	for _, lang := range langs {
		path := fmt.Sprintf("locales/%s.json", lang)
		data, err := LocaleFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("i18n: не удалось прочитать %s: %w", path, err)
		}
		if err := b.LoadMessages(lang, data); err != nil {
			return nil, err
		}
	}
	logger.Info("i18n каталоги загружены", slog.Int("languages", len(langs)))
	return b, nil
}
