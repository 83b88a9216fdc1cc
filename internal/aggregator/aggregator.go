package aggregator

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"value-radar/internal/cache"
	"value-radar/internal/model"
	"value-radar/internal/provider"
)

// Config 控制聚合行为。
type Config struct {
	ProviderTimeout string `yaml:"provider_timeout" json:"provider_timeout"`
	MinComparables  int    `yaml:"min_comparables" json:"min_comparables"`
}

// Cache 抽象 suburb 快照缓存接口，便于测试替换。
type Cache interface {
	Get(ctx context.Context, key string) *cache.Entry
	Put(ctx context.Context, key string, sales []model.ComparableProperty) error
}

// Result 表示一次聚合输出。
type Result struct {
	Comparables []model.ComparableProperty
	Statistics  model.SalesStatistics
	FromCache   bool
}

// Aggregator 按优先级顺序串行调用各数据源，凑够最小可比数即提前停止。
// 每次调用受独立超时约束，超时按该数据源失败处理而不是任务失败。
type Aggregator struct {
	cache     Cache
	providers []provider.ComparableProvider
	timeout   time.Duration
	minComps  int
	logger    *log.Logger
}

// New 创建聚合器，providers 顺序即调用优先级。
func New(c Cache, providers []provider.ComparableProvider, cfg Config) *Aggregator {
	timeout := 20 * time.Second
	if cfg.ProviderTimeout != "" {
		if d, err := time.ParseDuration(cfg.ProviderTimeout); err == nil && d > 0 {
			timeout = d
		}
	}
	minComps := cfg.MinComparables
	if minComps <= 0 {
		minComps = 3
	}
	return &Aggregator{
		cache:     c,
		providers: providers,
		timeout:   timeout,
		minComps:  minComps,
		logger:    log.New(os.Stdout, "[aggregator] ", log.LstdFlags),
	}
}

// Collect 先查缓存，未命中时沿数据源链合并去重，结果回写缓存。
func (a *Aggregator) Collect(ctx context.Context, q provider.Query) Result {
	key := cache.Key(q.Suburb, q.State, q.Postcode, q.PropertyType)

	if a.cache != nil {
		if entry := a.cache.Get(ctx, key); entry != nil {
			a.logger.Printf("cache hit key=%s sales=%d", key, len(entry.Sales))
			return Result{
				Comparables: entry.Sales,
				Statistics:  ComputeStatistics(entry.Sales),
				FromCache:   true,
			}
		}
	}

	working := make([]model.ComparableProperty, 0, a.minComps)
	seen := make(map[string]struct{})

	for _, p := range a.providers {
		if len(working) >= a.minComps {
			break
		}
		fetched := a.fetchWithTimeout(ctx, p, q)
		added := 0
		for _, comp := range fetched {
			if comp.Price <= 0 {
				continue
			}
			dedupeKey := dedupeKey(comp)
			if _, dup := seen[dedupeKey]; dup {
				continue
			}
			seen[dedupeKey] = struct{}{}
			working = append(working, comp)
			added++
		}
		a.logger.Printf("provider=%s fetched=%d merged=%d total=%d", p.Name(), len(fetched), added, len(working))
	}

	if a.cache != nil && len(working) > 0 {
		if err := a.cache.Put(ctx, key, working); err != nil {
			a.logger.Printf("cache write key=%s failed: %v", key, err)
		}
	}

	return Result{
		Comparables: working,
		Statistics:  ComputeStatistics(working),
	}
}

// fetchWithTimeout 为单个数据源调用套上独立超时。
func (a *Aggregator) fetchWithTimeout(ctx context.Context, p provider.ComparableProvider, q provider.Query) []model.ComparableProperty {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return p.FetchComparables(callCtx, q)
}

// dedupeKey 以 (address, price) 去重，地址做大小写与空白归一化。
func dedupeKey(c model.ComparableProperty) string {
	addr := strings.Join(strings.Fields(strings.ToLower(c.Address)), " ")
	return fmt.Sprintf("%s|%.0f", addr, c.Price)
}

// ComputeStatistics 汇总已定价可比记录；均值四舍五入到整数货币单位。
// 中位数规则：升序排列后，奇数个取正中元素，偶数个取两中位中较小者
// （[100,200,300,400] 的中位数是 200 而不是 250），为兼容保持不变。
func ComputeStatistics(comps []model.ComparableProperty) model.SalesStatistics {
	prices := make([]float64, 0, len(comps))
	for _, c := range comps {
		if c.Price > 0 {
			prices = append(prices, c.Price)
		}
	}
	if len(prices) == 0 {
		return model.SalesStatistics{}
	}

	sort.Float64s(prices)
	sum := 0.0
	for _, p := range prices {
		sum += p
	}

	mid := len(prices) / 2
	if len(prices)%2 == 0 {
		mid--
	}

	return model.SalesStatistics{
		Count:  len(prices),
		Min:    prices[0],
		Max:    prices[len(prices)-1],
		Mean:   math.Round(sum / float64(len(prices))),
		Median: prices[mid],
	}
}
