// globe.go — данные стран для глобуса с LRU-кэшем и TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/dongrigo/internal/repository"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dg_cache_hits_total",
		Help: "Общее количество попаданий в кэш данных глобуса.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dg_cache_misses_total",
		Help: "Общее количество промахов кэша данных глобуса.",
	})
)

// globeKey — единственный ключ кэша: список стран целиком.
const globeKey = "countries"

// GlobeCountry — страна в формате, который ожидает globe.js.
type GlobeCountry struct {
	Name    string  `json:"name"`
	NameKo  string  `json:"name_ko"`
	NameEn  string  `json:"name_en"`
	Slug    string  `json:"slug"`
	Aliases string  `json:"aliases"`
	ISOA2   *string `json:"iso_a2"`
	ISOA3   *string `json:"iso_a3"`
}

// GlobeService отдаёт данные глобуса из кэша и сбрасывает кэш при записи.
type GlobeService struct {
	countries repository.CountryRepository
	cache     *expirable.LRU[string, []GlobeCountry]
	logger    *slog.Logger
}

// NewGlobeService создаёт сервис с кэшем указанного размера и TTL.
func NewGlobeService(countries repository.CountryRepository, size int, ttl time.Duration, logger *slog.Logger) *GlobeService {
	if size <= 0 {
		size = 1
	}
	return &GlobeService{
		countries: countries,
		cache:     expirable.NewLRU[string, []GlobeCountry](size, nil, ttl),
		logger:    logger.With(slog.String("component", "globe")),
	}
}

// Countries возвращает страны для глобуса.
func (s *GlobeService) Countries(ctx context.Context) ([]GlobeCountry, error) {
	if v, ok := s.cache.Get(globeKey); ok {
		cacheHitsTotal.Inc()
		return v, nil
	}
	cacheMissesTotal.Inc()

	list, err := s.countries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("загрузка стран для глобуса: %w", err)
	}
	out := make([]GlobeCountry, 0, len(list))
	for _, c := range list {
		out = append(out, GlobeCountry{
			Name:    c.Name,
			NameKo:  c.NameKo,
			NameEn:  c.NameEn,
			Slug:    c.Slug,
			Aliases: c.Aliases,
			ISOA2:   c.ISOA2,
			ISOA3:   c.ISOA3,
		})
	}
	s.cache.Add(globeKey, out)
	return out, nil
}

// Invalidate сбрасывает кэш после изменения стран.
func (s *GlobeService) Invalidate() {
	if s == nil {
		return
	}
	s.cache.Purge()
	s.logger.Debug("Кэш глобуса сброшен")
}
