package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/aihub/paperqa-go/internal/config"
	"github.com/redis/go-redis/v9"
)

// IndexCache 基于Redis的索引载荷缓存
// 仅作为磁盘加载的加速层；重新摄取同一论文时必须先失效，
// 避免查询命中过期索引（陈旧性约束）。
type IndexCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIndexCache 创建索引缓存，配置未启用时返回nil（调用方做nil检查）
func NewIndexCache(cfg *config.Config) (*IndexCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.Addr,
		DB:   cfg.Cache.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	ttl := time.Duration(cfg.Cache.TTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &IndexCache{client: client, ttl: ttl}, nil
}

func (c *IndexCache) key(paperID string) string {
	return "paperqa:index:" + paperID
}

// Get 读取缓存的索引载荷，未命中返回nil
func (c *IndexCache) Get(ctx context.Context, paperID string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(paperID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Set 写入索引载荷
func (c *IndexCache) Set(ctx context.Context, paperID string, payload []byte) error {
	return c.client.Set(ctx, c.key(paperID), payload, c.ttl).Err()
}

// Invalidate 删除缓存条目
func (c *IndexCache) Invalidate(ctx context.Context, paperID string) error {
	return c.client.Del(ctx, c.key(paperID)).Err()
}

// Close 关闭Redis连接
func (c *IndexCache) Close() error {
	return c.client.Close()
}
