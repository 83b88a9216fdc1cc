package scoring

import (
	"math"
	"sort"
	"time"

	"value-radar/internal/model"
)

// Result 表示评分输出：按分数降序的可比记录与完全匹配数。
type Result struct {
	Comparables  []model.ComparableProperty
	ExactMatches int
}

// Engine 按激活的权重集对可比记录评分。各修正项独立叠加，
// 与原始行为保持一致：同时又远又旧的记录会被双重扣分（刻意保留）。
type Engine struct {
	now func() time.Time
}

// NewEngine 创建评分引擎。
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Score 对可比集合评分并降序排序，原切片不被修改。
func (e *Engine) Score(target model.PropertyInput, comps []model.ComparableProperty, w model.ScoringWeights) Result {
	scored := make([]model.ComparableProperty, len(comps))
	copy(scored, comps)

	targetClass := model.DensityClass(target.PropertyType)
	exact := 0

	for i := range scored {
		c := &scored[i]
		score := w.BaseScore

		bedDiff := abs(c.Beds - target.Beds)
		score -= w.BedroomPenalty * float64(bedDiff)

		bathDiff := abs(c.Baths - target.Baths)
		score -= w.BathroomPenalty * float64(bathDiff)

		compClass := model.DensityClass(c.PropertyType)
		score -= densityPenalty(targetClass, compClass, w)

		score += distanceAdjustment(c.Distance, w.Distance)
		score += e.recencyAdjustment(c.SoldDateRaw, w.Recency)

		if w.LandAreaWeight > 0 && target.LandArea > 0 && c.LandArea > 0 {
			score += w.LandAreaWeight * areaSimilarity(target.LandArea, c.LandArea)
		}

		c.Score = score

		if bedDiff == 0 && bathDiff == 0 && compClass == targetClass {
			exact++
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return Result{Comparables: scored, ExactMatches: exact}
}

// densityPenalty 只定义 house/unit 与 house/townhouse 两类跨界惩罚，
// townhouse 与 unit 之间不扣分（与原始规则保持兼容）。
func densityPenalty(target, comp string, w model.ScoringWeights) float64 {
	if target == comp {
		return 0
	}
	if target == model.DensityClassHouse && comp == model.DensityClassUnit ||
		target == model.DensityClassUnit && comp == model.DensityClassHouse {
		return w.DensityHouseUnitPenalty
	}
	if target == model.DensityClassHouse || comp == model.DensityClassHouse {
		return w.DensityHouseTownhousePenalty
	}
	return 0
}

// distanceAdjustment 将距离归入五档之一并返回该档修正值，至多命中一档。
// 距离未知（<=0）以及落在 far 与 very-far 之间的缺口不做修正。
func distanceAdjustment(km float64, bands model.DistanceBands) float64 {
	if km <= 0 {
		return 0
	}
	switch {
	case km < bands.UltraCloseKM:
		return bands.UltraCloseAdj
	case km < bands.VeryCloseKM:
		return bands.VeryCloseAdj
	case km < bands.CloseKM:
		return bands.CloseAdj
	case km < bands.ModerateKM:
		return bands.ModerateAdj
	case km < bands.FarKM:
		return bands.FarAdj
	case km > bands.VeryFarKM:
		return bands.VeryFarAdj
	default:
		return 0
	}
}

// recencyAdjustment 按成交距今的月数归档，成交时间未知不做修正。
func (e *Engine) recencyAdjustment(soldAt time.Time, bands model.RecencyBands) float64 {
	if soldAt.IsZero() {
		return 0
	}
	months := e.now().Sub(soldAt).Hours() / (24 * 30.44)
	switch {
	case months <= bands.VeryRecentMonths:
		return bands.VeryRecentAdj
	case months <= bands.RecentMonths:
		return bands.RecentAdj
	case months <= bands.GettingOldMonths:
		return bands.GettingOldAdj
	case months <= bands.OldMonths:
		return bands.OldAdj
	default:
		return bands.VeryOldAdj
	}
}

// areaSimilarity 返回 0~1 的面积相似度。
func areaSimilarity(a, b float64) float64 {
	larger := math.Max(a, b)
	if larger == 0 {
		return 0
	}
	return 1 - math.Abs(a-b)/larger
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
