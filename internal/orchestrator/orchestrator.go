package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"value-radar/internal/aggregator"
	"value-radar/internal/model"
	"value-radar/internal/provider"
	"value-radar/internal/report"
	"value-radar/internal/scoring"
	"value-radar/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const jobKeyPrefix = "job:"

// ErrLocationRequired 表示提交缺少必填地点。
var ErrLocationRequired = errors.New("orchestrator: location required")

// ErrQueueFull 表示工作队列已满，提交被拒绝以限制负载。
var ErrQueueFull = errors.New("orchestrator: job queue full")

// ErrJobNotFound 表示任务不存在或已被清理。
var ErrJobNotFound = errors.New("orchestrator: job not found")

// Config 控制任务编排行为。
type Config struct {
	Workers       int    `yaml:"workers" json:"workers"`
	QueueSize     int    `yaml:"queue_size" json:"queue_size"`
	Retention     string `yaml:"retention" json:"retention"`
	DeliveryGrace string `yaml:"delivery_grace" json:"delivery_grace"`
	ReapInterval  string `yaml:"reap_interval" json:"reap_interval"`
	AVMTimeout    string `yaml:"avm_timeout" json:"avm_timeout"`
}

// Collector 抽象数据聚合接口，便于测试替换。
type Collector interface {
	Collect(ctx context.Context, q provider.Query) aggregator.Result
}

// Scorer 抽象评分接口。
type Scorer interface {
	Score(target model.PropertyInput, comps []model.ComparableProperty, w model.ScoringWeights) scoring.Result
}

// WeightSource 提供当前激活的权重配置。
type WeightSource interface {
	GetActive(ctx context.Context) (model.WeightConfiguration, error)
}

// Reporter 抽象报告生成接口。
type Reporter interface {
	Generate(ctx context.Context, in report.Input) report.Output
}

// PollResponse 为轮询返回载荷；非终态时只带 status 与 stage。
type PollResponse struct {
	ID     string                  `json:"id"`
	Status model.JobStatus         `json:"status"`
	Stage  string                  `json:"stage"`
	Result *model.EvaluationResult `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// Orchestrator 管理异步估价任务：提交入队、worker 执行流水线、
// 轮询投递与过期清理。任务记录存放在注入的 KV 中。
type Orchestrator struct {
	kv        storage.KV
	collector Collector
	scorer    Scorer
	weights   WeightSource
	reporter  Reporter
	avm       provider.AutomatedValuer

	queue        chan string
	workers      int
	retention    time.Duration
	grace        time.Duration
	reapInterval time.Duration
	avmTimeout   time.Duration

	logger    *log.Logger
	now       func() time.Time
	newTicker func(time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

// New 创建 Orchestrator；avm 可为 nil（无主数据源 AVM 能力）。
func New(kv storage.KV, collector Collector, scorer Scorer, weights WeightSource, reporter Reporter, avm provider.AutomatedValuer, cfg Config) *Orchestrator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Orchestrator{
		kv:           kv,
		collector:    collector,
		scorer:       scorer,
		weights:      weights,
		reporter:     reporter,
		avm:          avm,
		queue:        make(chan string, queueSize),
		workers:      workers,
		retention:    parseDuration(cfg.Retention, 10*time.Minute),
		grace:        parseDuration(cfg.DeliveryGrace, 30*time.Second),
		reapInterval: parseDuration(cfg.ReapInterval, time.Minute),
		avmTimeout:   parseDuration(cfg.AVMTimeout, 20*time.Second),
		logger:       log.New(os.Stdout, "[orchestrator] ", log.LstdFlags),
		now:          time.Now,
		newTicker:    defaultTicker,
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// Submit 校验并创建任务，投递到有界队列后立即返回任务 ID。
func (o *Orchestrator) Submit(ctx context.Context, input model.PropertyInput) (string, error) {
	input.ApplyDefaults()
	if input.Suburb == "" {
		return "", ErrLocationRequired
	}

	job := model.EvaluationJob{
		ID:        uuid.NewString(),
		Status:    model.JobStatusQueued,
		Stage:     model.StageQueued,
		Input:     input,
		CreatedAt: o.now(),
	}
	if err := o.saveJob(ctx, job); err != nil {
		return "", err
	}

	select {
	case o.queue <- job.ID:
	default:
		_ = o.kv.Delete(ctx, jobKeyPrefix+job.ID)
		return "", ErrQueueFull
	}

	o.logger.Printf("job=%s queued suburb=%s", job.ID, input.Suburb)
	return job.ID, nil
}

// PollStatus 返回任务状态；首次观察到终态即视为投递，记录投递时间，
// 投递后的宽限期内重复轮询仍返回相同结果，宽限期结束由 reaper 清除。
func (o *Orchestrator) PollStatus(ctx context.Context, jobID string) (PollResponse, error) {
	job, err := o.loadJob(ctx, jobID)
	if err != nil {
		return PollResponse{}, err
	}

	resp := PollResponse{ID: job.ID, Status: job.Status, Stage: job.Stage}
	if !job.Terminal() {
		return resp, nil
	}

	resp.Result = job.Result
	resp.Error = job.Error
	if job.DeliveredAt.IsZero() {
		job.DeliveredAt = o.now()
		if err := o.saveJob(ctx, job); err != nil {
			o.logger.Printf("job=%s mark delivered failed: %v", job.ID, err)
		}
	}
	return resp, nil
}

// Start 启动 worker 池与清理循环，直到上下文取消。
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.collector == nil || o.scorer == nil || o.weights == nil || o.reporter == nil {
		return fmt.Errorf("orchestrator missing dependencies")
	}

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < o.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case jobID := <-o.queue:
					o.run(ctx, jobID)
				}
			}
		})
	}

	g.Go(func() error {
		return o.reapLoop(ctx)
	})

	return g.Wait()
}

// run 执行单个任务的完整流水线，任何 panic 都被吸收为任务失败。
func (o *Orchestrator) run(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			o.markFailed(ctx, jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	job, err := o.loadJob(ctx, jobID)
	if err != nil {
		o.logger.Printf("job=%s vanished before run: %v", jobID, err)
		return
	}

	job.Status = model.JobStatusInProgress
	job.Stage = model.StageFetching
	if err := o.saveJob(ctx, job); err != nil {
		o.markFailed(ctx, jobID, fmt.Sprintf("persist progress: %v", err))
		return
	}

	q := provider.Query{
		Suburb:       job.Input.Suburb,
		State:        job.Input.State,
		Postcode:     job.Input.Postcode,
		Beds:         job.Input.Beds,
		Baths:        job.Input.Baths,
		PropertyType: job.Input.PropertyType,
	}
	agg := o.collector.Collect(ctx, q)

	weights := model.DefaultScoringWeights()
	if cfg, err := o.weights.GetActive(ctx); err == nil {
		weights = cfg.Weights
	} else {
		o.logger.Printf("job=%s active weights unavailable, using defaults: %v", jobID, err)
	}
	scored := o.scorer.Score(job.Input, agg.Comparables, weights)

	job.Stage = model.StageGenerating
	if err := o.saveJob(ctx, job); err != nil {
		o.logger.Printf("job=%s persist stage failed: %v", jobID, err)
	}

	var automated *model.ValuationEstimate
	if o.avm != nil && job.Input.Address != "" {
		avmCtx, cancel := context.WithTimeout(ctx, o.avmTimeout)
		automated = o.avm.FetchAutomatedValuation(avmCtx, job.Input.Address, job.Input.Location)
		cancel()
	}

	out := o.reporter.Generate(ctx, report.Input{
		Target:       job.Input,
		Comparables:  scored.Comparables,
		Statistics:   agg.Statistics,
		ExactMatches: scored.ExactMatches,
	})

	job.Status = model.JobStatusCompleted
	job.Stage = model.StageCompleted
	job.CompletedAt = o.now()
	job.Result = &model.EvaluationResult{
		Report:         out.Report,
		Comparables:    scored.Comparables,
		Statistics:     agg.Statistics,
		ExactMatches:   scored.ExactMatches,
		EstimatedValue: out.EstimatedValue,
		PriceRange:     out.PriceRange,
		LandArea:       job.Input.LandArea,
		Automated:      automated,
	}
	if err := o.saveJob(ctx, job); err != nil {
		o.markFailed(ctx, jobID, fmt.Sprintf("persist result: %v", err))
		return
	}
	o.logger.Printf("job=%s completed comparables=%d from_cache=%v fallback=%v",
		jobID, len(scored.Comparables), agg.FromCache, out.Fallback)
}

// markFailed 将任务置为失败终态，自身的存储错误只记录日志。
func (o *Orchestrator) markFailed(ctx context.Context, jobID, msg string) {
	job, err := o.loadJob(ctx, jobID)
	if err != nil {
		o.logger.Printf("job=%s mark failed, load error: %v", jobID, err)
		return
	}
	job.Status = model.JobStatusFailed
	job.Stage = model.StageFailed
	job.Error = msg
	job.FailedAt = o.now()
	if err := o.saveJob(ctx, job); err != nil {
		o.logger.Printf("job=%s persist failure state: %v", jobID, err)
	}
	o.logger.Printf("job=%s failed: %s", jobID, msg)
}

// reapLoop 周期清理：投递后超过宽限期的任务，以及超过保留窗口的任务
// （无论是否被轮询过，文档化的数据丢失权衡）。
func (o *Orchestrator) reapLoop(ctx context.Context) error {
	tick := o.newTicker(o.reapInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C():
			o.reapOnce(ctx)
		}
	}
}

func (o *Orchestrator) reapOnce(ctx context.Context) {
	records, err := o.kv.ListByPrefix(ctx, jobKeyPrefix)
	if err != nil {
		o.logger.Printf("reap list failed: %v", err)
		return
	}
	now := o.now()
	for key, data := range records {
		var job model.EvaluationJob
		if err := json.Unmarshal(data, &job); err != nil {
			o.logger.Printf("reap decode %s failed, deleting: %v", key, err)
			_ = o.kv.Delete(ctx, key)
			continue
		}
		delivered := !job.DeliveredAt.IsZero() && now.Sub(job.DeliveredAt) >= o.grace
		expired := now.Sub(job.CreatedAt) >= o.retention
		if delivered || expired {
			if err := o.kv.Delete(ctx, key); err != nil {
				o.logger.Printf("reap delete %s failed: %v", key, err)
				continue
			}
			o.logger.Printf("job=%s reaped delivered=%v expired=%v", job.ID, delivered, expired)
		}
	}
}

func (o *Orchestrator) loadJob(ctx context.Context, jobID string) (model.EvaluationJob, error) {
	data, err := o.kv.Get(ctx, jobKeyPrefix+jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.EvaluationJob{}, ErrJobNotFound
		}
		return model.EvaluationJob{}, fmt.Errorf("load job: %w", err)
	}
	var job model.EvaluationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return model.EvaluationJob{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

func (o *Orchestrator) saveJob(ctx context.Context, job model.EvaluationJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := o.kv.Set(ctx, jobKeyPrefix+job.ID, data); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func defaultTicker(d time.Duration) ticker {
	t := time.NewTicker(d)
	return tickerWrapper{t}
}

type tickerWrapper struct {
	*time.Ticker
}

func (t tickerWrapper) C() <-chan time.Time { return t.Ticker.C }
func (t tickerWrapper) Stop()               { t.Ticker.Stop() }
