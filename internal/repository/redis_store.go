package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// UsageRepository 记录每个用户每天发送的消息数。
type UsageRepository interface {
	Incr(ctx context.Context, userID uint, date string) (int64, error)
	Get(ctx context.Context, userID uint, date string) (int64, error)
}

// TokenBlacklist 保存登出后仍未过期的 token ID。
type TokenBlacklist interface {
	Add(ctx context.Context, tokenID string, ttl time.Duration) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}

type redisUsageRepository struct {
	redisClient *redis.Client
}

// NewUsageRepository 创建一个基于 Redis 的 UsageRepository。
func NewUsageRepository(redisClient *redis.Client) UsageRepository {
	return &redisUsageRepository{redisClient: redisClient}
}

func usageKey(userID uint, date string) string {
	return fmt.Sprintf("usage:%d:%s", userID, date)
}

func (r *redisUsageRepository) Incr(ctx context.Context, userID uint, date string) (int64, error) {
	key := usageKey(userID, date)
	n, err := r.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage: %w", err)
	}
	// 计数保留两天，足够覆盖时区差异
	_ = r.redisClient.Expire(ctx, key, 48*time.Hour).Err()
	return n, nil
}

func (r *redisUsageRepository) Get(ctx context.Context, userID uint, date string) (int64, error) {
	n, err := r.redisClient.Get(ctx, usageKey(userID, date)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}
	return n, nil
}

type redisTokenBlacklist struct {
	redisClient *redis.Client
}

// NewTokenBlacklist 创建一个基于 Redis 的 TokenBlacklist。
func NewTokenBlacklist(redisClient *redis.Client) TokenBlacklist {
	return &redisTokenBlacklist{redisClient: redisClient}
}

func (b *redisTokenBlacklist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return b.redisClient.Set(ctx, "blacklist:"+tokenID, "true", ttl).Err()
}

func (b *redisTokenBlacklist) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.redisClient.Exists(ctx, "blacklist:"+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
