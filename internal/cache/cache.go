// Package cache содержит порт кэша и его реализации (Redis и in-process).
//
// Все реализации должны быть безопасны при недоступном хранилище:
// операции возвращают нулевое значение и ошибку, которую вызывающий
// может проигнорировать.
package cache

//go:generate mockgen -destination=../mocks/mock_cache.go -package=mocks github.com/tempizhere/shortlink/internal/cache Cache

import (
	"context"
	"time"
)

// Пространства ключей кэша
const (
	resolutionPrefix = "resolution:"
	analyticsPrefix  = "analytics:"
	clicksPrefix     = "clicks:"
)

// Cache описывает операции над key-value кэшем с TTL
type Cache interface {
	// Get возвращает значение и признак попадания
	Get(ctx context.Context, key string) (string, bool, error)
	// Set сохраняет значение; ttl <= 0 означает без срока жизни
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Increment увеличивает счётчик на n и возвращает новое значение
	Increment(ctx context.Context, key string, n int64) (int64, error)
}

// ResolutionKey ключ записи code -> originalUrl
func ResolutionKey(code string) string {
	return resolutionPrefix + code
}

// AnalyticsKey ключ мемоизированного результата аналитики
func AnalyticsKey(code, view, fingerprint string) string {
	return analyticsPrefix + code + ":" + view + ":" + fingerprint
}

// ClickCounterKey ключ счётчика кликов
func ClickCounterKey(code string) string {
	return clicksPrefix + code
}
