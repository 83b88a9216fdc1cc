package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"value-radar/internal/aggregator"
	"value-radar/internal/api"
	"value-radar/internal/cache"
	"value-radar/internal/orchestrator"
	"value-radar/internal/provider"
	"value-radar/internal/report"
	"value-radar/internal/scoring"
	"value-radar/internal/storage"
	"value-radar/internal/weights"
)

// AppConfig 应用配置。
type AppConfig struct {
	Server       ServerConfig             `yaml:"server"`
	Database     DatabaseConfig           `yaml:"database"`
	Cache        cache.Config             `yaml:"cache"`
	Aggregator   aggregator.Config        `yaml:"aggregator"`
	Orchestrator orchestrator.Config      `yaml:"orchestrator"`
	PropData     provider.PropDataConfig  `yaml:"propdata"`
	ListTrack    provider.ListTrackConfig `yaml:"listtrack"`
	HomeAtlas    provider.HomeAtlasConfig `yaml:"homeatlas"`
	Narrative    report.NarrativeConfig   `yaml:"narrative"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// httpServer 与 jobRunner 抽象出 runServer 的两个依赖，便于测试。
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type jobRunner interface {
	Start(ctx context.Context) error
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Printf("load config error: %v", err)
		return
	}

	kv, cleanup, err := buildStore(cfg.Database)
	if err != nil {
		log.Printf("init store error: %v", err)
		return
	}
	defer cleanup()

	client := &http.Client{Timeout: 15 * time.Second}

	propData := provider.NewPropDataProvider(cfg.PropData, client)
	providers := []provider.ComparableProvider{
		propData,
		provider.NewListTrackProvider(cfg.ListTrack, client),
		provider.NewHomeAtlasProvider(cfg.HomeAtlas, client),
	}

	salesCache := cache.NewSalesCache(kv, cfg.Cache)
	agg := aggregator.New(salesCache, providers, cfg.Aggregator)
	weightSvc := weights.NewService(kv)
	generator := report.NewGenerator(buildNarrative(cfg.Narrative, client))

	orch := orchestrator.New(kv, agg, scoring.NewEngine(), weightSvc, generator, propData, cfg.Orchestrator)

	handler := api.NewHandler(orch, salesCache, weightSvc)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: handler}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("listening on %s", addr)
	if err := runServer(ctx, srv, orch, 5*time.Second); err != nil {
		log.Printf("server error: %v", err)
	}
}

// runServer 启动 HTTP 服务与后台 worker，上下文取消时优雅关闭。
// 返回前等待 worker 协程退出，调用方此后才能安全释放存储等资源。
func runServer(ctx context.Context, srv httpServer, runner jobRunner, shutdownTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		if err := runner.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("orchestrator stopped: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = err
		} else if err := <-errCh; err != nil && err != http.ErrServerClosed {
			runErr = err
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			runErr = err
		}
	}

	cancel()
	<-runnerDone
	return runErr
}

// loadConfig 读取 yaml 配置，.env 中的凭据覆盖同名配置项。
func loadConfig() (AppConfig, error) {
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}

	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, err
		}
	} else if !os.IsNotExist(err) {
		return AppConfig{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PROPDATA_API_KEY"); v != "" {
		cfg.PropData.APIKey = v
	}
	if v := os.Getenv("LISTTRACK_API_KEY"); v != "" {
		cfg.ListTrack.APIKey = v
	}
	if v := os.Getenv("NARRATIVE_API_KEY"); v != "" {
		cfg.Narrative.APIKey = v
	}
}

// buildStore 依据配置选择持久化或内存 KV 后端。
func buildStore(cfg DatabaseConfig) (storage.KV, func(), error) {
	if cfg.InMemory {
		return storage.NewMemoryKV(), func() {}, nil
	}
	path := cfg.Path
	if path == "" {
		path = "valuations.db"
	}
	store, err := storage.NewSQLiteKV(path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// buildNarrative 缺少 API key 时禁用外部报告引擎，生成器会走确定性兜底。
func buildNarrative(cfg report.NarrativeConfig, client *http.Client) report.NarrativeClient {
	if cfg.APIKey == "" {
		log.Printf("narrative client disabled: missing api key")
		return nil
	}
	return report.NewClient(cfg, client)
}
