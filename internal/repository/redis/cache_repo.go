package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// CacheRepo реализует repository.CacheRepository поверх Redis.
// Ключи вида session:<id>:participants живут, пока идет сессия;
// TTL не ставим - движок удаляет ключ при завершении.
type CacheRepo struct {
	client redis.UniversalClient
	ctx    context.Context
}

// NewCacheRepo создает репозиторий кеша
func NewCacheRepo(client redis.UniversalClient) (*CacheRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for CacheRepo")
	}
	return &CacheRepo{client: client, ctx: context.Background()}, nil
}

// Delete удаляет ключ целиком
func (r *CacheRepo) Delete(key string) error {
	return r.client.Del(r.ctx, key).Err()
}

// SAdd добавляет участников в множество сессии
func (r *CacheRepo) SAdd(key string, members ...interface{}) error {
	return r.client.SAdd(r.ctx, key, members...).Err()
}

// SRem убирает участников из множества сессии
func (r *CacheRepo) SRem(key string, members ...interface{}) error {
	return r.client.SRem(r.ctx, key, members...).Err()
}

// SMembers возвращает всех участников сессии
func (r *CacheRepo) SMembers(key string) ([]string, error) {
	return r.client.SMembers(r.ctx, key).Result()
}
