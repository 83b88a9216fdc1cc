package weights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"value-radar/internal/model"
	"value-radar/internal/storage"

	"github.com/google/uuid"
)

const keyPrefix = "weights:"

// ErrNotFound 表示配置不存在。
var ErrNotFound = errors.New("weights: configuration not found")

// ErrDeleteActive 表示禁止删除当前激活的配置。
var ErrDeleteActive = errors.New("weights: cannot delete active configuration")

// Service 管理评分权重配置：任意时刻恰有一套激活，首次访问自动建缺省配置。
// 写入走 KV 的后写覆盖语义，不加锁。
type Service struct {
	kv  storage.KV
	now func() time.Time
}

// NewService 创建权重配置服务。
func NewService(kv storage.KV) *Service {
	return &Service{kv: kv, now: time.Now}
}

// GetActive 返回当前激活配置；没有任何配置时创建并激活缺省配置。
func (s *Service) GetActive(ctx context.Context) (model.WeightConfiguration, error) {
	configs, err := s.List(ctx)
	if err != nil {
		return model.WeightConfiguration{}, err
	}
	for _, cfg := range configs {
		if cfg.Active {
			return cfg, nil
		}
	}
	if len(configs) > 0 {
		// 存在配置但无激活项（并发写竞争的遗留态），激活最早创建的一条。
		cfg := configs[0]
		cfg.Active = true
		cfg.UpdatedAt = s.now()
		if err := s.save(ctx, cfg); err != nil {
			return model.WeightConfiguration{}, err
		}
		return cfg, nil
	}
	return s.createDefault(ctx)
}

// List 返回全部配置，按创建时间升序。
func (s *Service) List(ctx context.Context) ([]model.WeightConfiguration, error) {
	records, err := s.kv.ListByPrefix(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list weight configs: %w", err)
	}
	configs := make([]model.WeightConfiguration, 0, len(records))
	for key, data := range records {
		var cfg model.WeightConfiguration
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode weight config %s: %w", key, err)
		}
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].CreatedAt.Equal(configs[j].CreatedAt) {
			return configs[i].ID < configs[j].ID
		}
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs, nil
}

// Get 按 ID 返回配置。
func (s *Service) Get(ctx context.Context, id string) (model.WeightConfiguration, error) {
	data, err := s.kv.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.WeightConfiguration{}, ErrNotFound
		}
		return model.WeightConfiguration{}, fmt.Errorf("get weight config: %w", err)
	}
	var cfg model.WeightConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return model.WeightConfiguration{}, fmt.Errorf("decode weight config: %w", err)
	}
	return cfg, nil
}

// Create 新建配置并立即激活，其余配置全部取消激活。
func (s *Service) Create(ctx context.Context, name string, w model.ScoringWeights) (model.WeightConfiguration, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.WeightConfiguration{}, fmt.Errorf("weights: name required")
	}
	cfg := model.WeightConfiguration{
		ID:        uuid.NewString(),
		Name:      name,
		Version:   1,
		Active:    true,
		Weights:   w,
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.deactivateAll(ctx); err != nil {
		return model.WeightConfiguration{}, err
	}
	if err := s.save(ctx, cfg); err != nil {
		return model.WeightConfiguration{}, err
	}
	return cfg, nil
}

// Update 原地更新配置的名称与系数，版本号递增，激活状态不变。
func (s *Service) Update(ctx context.Context, id, name string, w model.ScoringWeights) (model.WeightConfiguration, error) {
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return model.WeightConfiguration{}, err
	}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		cfg.Name = trimmed
	}
	cfg.Weights = w
	cfg.Version++
	cfg.UpdatedAt = s.now()
	if err := s.save(ctx, cfg); err != nil {
		return model.WeightConfiguration{}, err
	}
	return cfg, nil
}

// Activate 激活指定配置并取消其余配置。
func (s *Service) Activate(ctx context.Context, id string) (model.WeightConfiguration, error) {
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return model.WeightConfiguration{}, err
	}
	if err := s.deactivateAll(ctx); err != nil {
		return model.WeightConfiguration{}, err
	}
	cfg.Active = true
	cfg.UpdatedAt = s.now()
	if err := s.save(ctx, cfg); err != nil {
		return model.WeightConfiguration{}, err
	}
	return cfg, nil
}

// Delete 删除配置；当前激活配置不可删除。
func (s *Service) Delete(ctx context.Context, id string) error {
	cfg, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if cfg.Active {
		return ErrDeleteActive
	}
	if err := s.kv.Delete(ctx, keyPrefix+id); err != nil {
		return fmt.Errorf("delete weight config: %w", err)
	}
	return nil
}

// Reset 新建一套缺省系数配置并激活。
func (s *Service) Reset(ctx context.Context) (model.WeightConfiguration, error) {
	if err := s.deactivateAll(ctx); err != nil {
		return model.WeightConfiguration{}, err
	}
	return s.createDefault(ctx)
}

func (s *Service) createDefault(ctx context.Context) (model.WeightConfiguration, error) {
	cfg := model.WeightConfiguration{
		ID:        uuid.NewString(),
		Name:      "default",
		Version:   1,
		Active:    true,
		Weights:   model.DefaultScoringWeights(),
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}
	if err := s.save(ctx, cfg); err != nil {
		return model.WeightConfiguration{}, err
	}
	return cfg, nil
}

func (s *Service) deactivateAll(ctx context.Context) error {
	configs, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		cfg.Active = false
		cfg.UpdatedAt = s.now()
		if err := s.save(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) save(ctx context.Context, cfg model.WeightConfiguration) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode weight config: %w", err)
	}
	if err := s.kv.Set(ctx, keyPrefix+cfg.ID, data); err != nil {
		return fmt.Errorf("save weight config: %w", err)
	}
	return nil
}
