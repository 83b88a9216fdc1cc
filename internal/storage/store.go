package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrNotFound 表示键不存在。
var ErrNotFound = errors.New("storage: key not found")

// KV 抽象键值存储，流水线各层通过它读写快照，便于在
// SQLite 与内存后端之间切换。写入为整体替换，后写覆盖先写。
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	ListByPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
}

// record 为 SQLite 后端的行结构，值以 JSON 列存储。
type record struct {
	Key       string         `gorm:"primaryKey;column:key"`
	Value     datatypes.JSON `gorm:"column:value"`
	UpdatedAt time.Time
}

func (record) TableName() string { return "kv_records" }

// SQLiteKV 基于 GORM + SQLite 实现 KV。
type SQLiteKV struct {
	db *gorm.DB
}

// NewSQLiteKV 打开数据库文件并自动迁移表结构。
func NewSQLiteKV(dbPath string) (*SQLiteKV, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("auto migrate records: %w", err)
	}

	return &SQLiteKV{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *SQLiteKV) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// Get 按键读取值。
func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var rec record
	if err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(rec.Value), nil
}

// Set 写入或整体替换键值。
func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	rec := record{Key: key, Value: datatypes.JSON(value), UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete 删除键，键不存在时不报错。
func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&record{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ListByPrefix 返回指定前缀下的全部键值。
func (s *SQLiteKV) ListByPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	var recs []record
	pattern := strings.ReplaceAll(strings.ReplaceAll(prefix, "%", `\%`), "_", `\_`) + "%"
	if err := s.db.WithContext(ctx).Where(`key LIKE ? ESCAPE '\'`, pattern).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list prefix %s: %w", prefix, err)
	}
	out := make(map[string][]byte, len(recs))
	for _, rec := range recs {
		out[rec.Key] = []byte(rec.Value)
	}
	return out, nil
}
