package model

import "time"

// JobStatus 表示估价任务的生命周期状态。
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// 任务阶段标签，供轮询端展示进度。
const (
	StageQueued     = "queued"
	StageFetching   = "fetching_data"
	StageGenerating = "generating_evaluation"
	StageCompleted  = "completed"
	StageFailed     = "failed"
)

// EvaluationJob 表示一次异步估价任务
// 中文注释说明字段用途
// - ID: uuid，提交时生成
// - Status/Stage: 仅由 orchestrator 的后台 worker 更新
// - Input: 提交时的目标房产快照，任务独占
// - Result/Error: 终态载荷，首次投递后进入宽限期并随后清除
// - DeliveredAt: 终态结果首次被轮询到的时间，零值表示尚未投递

type EvaluationJob struct {
	ID          string            `json:"id"`
	Status      JobStatus         `json:"status"`
	Stage       string            `json:"stage"`
	Input       PropertyInput     `json:"input"`
	Result      *EvaluationResult `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt time.Time         `json:"completed_at,omitempty"`
	FailedAt    time.Time         `json:"failed_at,omitempty"`
	DeliveredAt time.Time         `json:"delivered_at,omitempty"`
}

// EvaluationResult 表示完成任务的结果载荷。
type EvaluationResult struct {
	Report         string               `json:"report"`
	Comparables    []ComparableProperty `json:"comparables"`
	Statistics     SalesStatistics      `json:"statistics"`
	ExactMatches   int                  `json:"exact_matches"`
	EstimatedValue float64              `json:"estimated_value"`
	PriceRange     PriceRange           `json:"price_range"`
	LandArea       float64              `json:"land_area,omitempty"`
	Automated      *ValuationEstimate   `json:"automated_valuation,omitempty"`
}

// PriceRange 表示保守/市场/溢价三点估价区间。
type PriceRange struct {
	Conservative float64 `json:"conservative"`
	Market       float64 `json:"market"`
	Premium      float64 `json:"premium"`
}

// Terminal 判断任务是否已进入终态。
func (j *EvaluationJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
