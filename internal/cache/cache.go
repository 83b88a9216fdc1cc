package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"value-radar/internal/model"
	"value-radar/internal/storage"
)

// keyPrefix 为 suburb 快照在 KV 中的命名空间。
const keyPrefix = "cache:"

// Config 控制缓存行为。
type Config struct {
	TTL string `yaml:"ttl" json:"ttl"`
}

// Entry 表示一个 suburb 快照，写入时整体替换。
type Entry struct {
	Key      string                     `json:"key"`
	CachedAt time.Time                  `json:"cached_at"`
	Sales    []model.ComparableProperty `json:"sales"`
}

// SalesCache 基于 KV 存储的 suburb 级可比快照缓存，过期为软失效：
// 记录仍物理存在，但超过 TTL 的读取按未命中处理。
type SalesCache struct {
	kv     storage.KV
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
}

// NewSalesCache 创建缓存，TTL 非法或缺省时取 7 天。
func NewSalesCache(kv storage.KV, cfg Config) *SalesCache {
	ttl := 7 * 24 * time.Hour
	if cfg.TTL != "" {
		if d, err := time.ParseDuration(cfg.TTL); err == nil && d > 0 {
			ttl = d
		}
	}
	return &SalesCache{
		kv:     kv,
		ttl:    ttl,
		logger: log.New(os.Stdout, "[cache] ", log.LstdFlags),
		now:    time.Now,
	}
}

// Key 归一化缓存键：suburb|state|postcode-or-none|type-or-all，全小写。
func Key(suburb, state, postcode, propertyType string) string {
	norm := func(s, fallback string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return fallback
		}
		return strings.ReplaceAll(s, " ", "-")
	}
	return norm(suburb, "unknown") + "|" + norm(state, "unknown") + "|" +
		norm(postcode, "none") + "|" + norm(propertyType, "all")
}

// Get 读取快照；未命中、已过期或读取失败都返回 nil。
// 存储层错误按未命中处理，流水线继续走 provider 链。
func (c *SalesCache) Get(ctx context.Context, key string) *Entry {
	data, err := c.kv.Get(ctx, keyPrefix+key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Printf("read %s failed, treating as miss: %v", key, err)
		}
		return nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Printf("decode %s failed, treating as miss: %v", key, err)
		return nil
	}

	if c.now().Sub(entry.CachedAt) >= c.ttl {
		c.logger.Printf("key=%s expired cached_at=%s", key, entry.CachedAt.Format(time.RFC3339))
		return nil
	}
	return &entry
}

// Put 写入快照，整体替换同键旧数据。写入失败只记录日志。
func (c *SalesCache) Put(ctx context.Context, key string, sales []model.ComparableProperty) error {
	entry := Entry{Key: key, CachedAt: c.now(), Sales: sales}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.kv.Set(ctx, keyPrefix+key, data); err != nil {
		c.logger.Printf("write %s failed: %v", key, err)
		return fmt.Errorf("write cache entry: %w", err)
	}
	c.logger.Printf("key=%s cached sales=%d", key, len(sales))
	return nil
}
