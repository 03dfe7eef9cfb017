package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests - максимальное количество запросов за Window
	MaxRequests int
	// Window - временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix - префикс для ключей в Redis
	KeyPrefix string
	// PerPath добавляет путь запроса в ключ: лимит считается
	// отдельно для каждого endpoint
	PerPath bool
}

// DefaultTicketRateLimitConfig - лимит по умолчанию для выпуска WS-тикетов
func DefaultTicketRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 20,
		Window:      time.Minute,
		KeyPrefix:   "rl:ticket",
		PerPath:     true,
	}
}

// StrictRateLimitConfig - строгий лимит для чувствительных endpoints
func StrictRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 5,
		Window:      time.Minute,
		KeyPrefix:   "rl:strict",
		PerPath:     true,
	}
}

// RateLimiter - middleware подсчёта запросов в Redis.
// Счётчик INCR с TTL окна; при недоступном Redis запросы пропускаются
// (fail-open), лимитер не должен ронять выпуск тикетов.
type RateLimiter struct {
	redisClient redis.UniversalClient
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// Limit возвращает Gin middleware с заданной конфигурацией
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.key(c, cfg)

		count, ttl, err := rl.bump(key, cfg.Window)
		if err != nil {
			log.Printf("[RateLimiter] Redis недоступен для ключа %s: %v. Запрос пропущен (fail-open).", key, err)
			c.Next()
			return
		}

		remaining := int64(cfg.MaxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		retryAfter := int(ttl.Seconds())
		if retryAfter <= 0 {
			retryAfter = int(cfg.Window.Seconds())
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", retryAfter))

		if count > int64(cfg.MaxRequests) {
			log.Printf("[RateLimiter] Лимит превышен: key=%s count=%d limit=%d", key, count, cfg.MaxRequests)
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

// key формирует ключ счётчика из IP и, опционально, пути
func (rl *RateLimiter) key(c *gin.Context, cfg RateLimitConfig) string {
	if !cfg.PerPath {
		return fmt.Sprintf("%s:%s", cfg.KeyPrefix, c.ClientIP())
	}
	path := c.FullPath() // шаблон маршрута Gin, например "/api/ws-ticket"
	if path == "" {
		path = c.Request.URL.Path
	}
	return fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, c.ClientIP(), path)
}

// bump инкрементирует счётчик и возвращает его значение вместе с TTL.
// INCR и EXPIRE идут одним пайплайном; EXPIRE ставится только на первом
// запросе окна, чтобы окно не продлевалось каждым запросом.
func (rl *RateLimiter) bump(key string, window time.Duration) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := rl.redisClient.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	count := incr.Val()
	ttl := ttlCmd.Val()
	if count == 1 || ttl < 0 {
		if err := rl.redisClient.Expire(ctx, key, window).Err(); err != nil {
			log.Printf("[RateLimiter] не удалось поставить TTL на ключ %s: %v", key, err)
		}
		ttl = window
	}
	return count, ttl, nil
}
