package report

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	"value-radar/internal/model"
)

// 兜底估价公式常量（本地货币单位）。
const (
	fallbackBaseValue = 500_000
	perBedroom        = 75_000
	perBathroom       = 35_000
	perCarSpace       = 15_000
	perSquareMetre    = 800
	roundTo           = 10_000
)

// Input 聚合报告生成所需的全部素材。
type Input struct {
	Target       model.PropertyInput
	Comparables  []model.ComparableProperty
	Statistics   model.SalesStatistics
	ExactMatches int
}

// Output 为报告生成结果。Fallback 标记是否走了确定性兜底公式。
type Output struct {
	Report         string
	EstimatedValue float64
	PriceRange     model.PriceRange
	Fallback       bool
}

// Generator 调用外部报告引擎产出叙述文本；引擎不可用、未配置或失败时
// 回退到确定性公式，保证任务总能给出估价而不是报错。
type Generator struct {
	llm    NarrativeClient
	logger *log.Logger
}

// NewGenerator 创建报告生成器，llm 可为 nil（始终走兜底公式）。
func NewGenerator(llm NarrativeClient) *Generator {
	return &Generator{
		llm:    llm,
		logger: log.New(os.Stdout, "[report] ", log.LstdFlags),
	}
}

// Generate 产出报告文本与三点估价区间。
func (g *Generator) Generate(ctx context.Context, in Input) Output {
	estimate := g.marketEstimate(in)
	rng := priceRange(estimate)

	if g.llm != nil {
		prompt := buildPrompt(in, estimate)
		text, err := g.llm.Complete(ctx, prompt)
		if err == nil && text != "" {
			return Output{Report: text, EstimatedValue: estimate, PriceRange: rng}
		}
		g.logger.Printf("narrative engine unavailable, using deterministic fallback: %v", err)
	}

	return Output{
		Report:         deterministicReport(in, estimate, rng),
		EstimatedValue: estimate,
		PriceRange:     rng,
		Fallback:       true,
	}
}

// marketEstimate 优先用可比统计的中位数，无可比数据时启用兜底公式。
func (g *Generator) marketEstimate(in Input) float64 {
	if in.Statistics.Count > 0 && in.Statistics.Median > 0 {
		return in.Statistics.Median
	}
	return HeuristicValuation(in.Target)
}

// HeuristicValuation 按目标属性计算确定性估价：
// 基准值加卧室/卫浴/车位/面积增量，乘以房型因子，取整到最近一万。
func HeuristicValuation(p model.PropertyInput) float64 {
	value := float64(fallbackBaseValue)
	value += float64(p.Beds) * perBedroom
	value += float64(p.Baths) * perBathroom
	value += float64(p.Cars) * perCarSpace
	value += p.LandArea * perSquareMetre
	value *= typeFactor(p.PropertyType)
	return math.Round(value/roundTo) * roundTo
}

// typeFactor 的排序关系固定为 house > villa > townhouse > apartment。
func typeFactor(propertyType string) float64 {
	switch strings.ToLower(strings.TrimSpace(propertyType)) {
	case "villa":
		return 1.05
	case "townhouse", "terrace", "duplex":
		return 1.0
	case "unit", "apartment", "flat", "studio":
		return 0.9
	default:
		return 1.15
	}
}

// priceRange 返回 ±5% 的保守/市场/溢价三点区间。
func priceRange(estimate float64) model.PriceRange {
	return model.PriceRange{
		Conservative: math.Round(estimate * 0.95),
		Market:       estimate,
		Premium:      math.Round(estimate * 1.05),
	}
}

// buildPrompt 组装报告引擎提示词：目标属性 + 前 5 条可比 + 统计值。
func buildPrompt(in Input, estimate float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a concise property valuation report.\n")
	fmt.Fprintf(&b, "Target: %s, %d bed %d bath %s", in.Target.Location, in.Target.Beds, in.Target.Baths, in.Target.PropertyType)
	if in.Target.LandArea > 0 {
		fmt.Fprintf(&b, ", %.0f sqm land", in.Target.LandArea)
	}
	fmt.Fprintf(&b, "\nEstimated market value: $%.0f\n", estimate)

	top := in.Comparables
	if len(top) > 5 {
		top = top[:5]
	}
	fmt.Fprintf(&b, "Comparable sales (%d total, %d exact matches):\n", in.Statistics.Count, in.ExactMatches)
	for _, c := range top {
		fmt.Fprintf(&b, "- %s: $%.0f, %d bed %d bath %s, sold %s\n", c.Address, c.Price, c.Beds, c.Baths, c.PropertyType, c.SoldDate)
	}
	if in.Statistics.Count > 0 {
		fmt.Fprintf(&b, "Statistics: min $%.0f, max $%.0f, mean $%.0f, median $%.0f\n",
			in.Statistics.Min, in.Statistics.Max, in.Statistics.Mean, in.Statistics.Median)
	}
	return b.String()
}

// deterministicReport 生成不依赖外部引擎的报告文本。
func deterministicReport(in Input, estimate float64, rng model.PriceRange) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Valuation estimate for %s (%d bed, %d bath %s).\n",
		in.Target.Location, in.Target.Beds, in.Target.Baths, strings.ToLower(in.Target.PropertyType))
	if in.Statistics.Count > 0 {
		fmt.Fprintf(&b, "Based on %d comparable sales (median $%.0f, range $%.0f-$%.0f).\n",
			in.Statistics.Count, in.Statistics.Median, in.Statistics.Min, in.Statistics.Max)
	} else {
		fmt.Fprintf(&b, "No comparable sales data was available; the estimate is attribute-based.\n")
	}
	fmt.Fprintf(&b, "Estimated market value: $%.0f.\n", estimate)
	fmt.Fprintf(&b, "Conservative: $%.0f | Market: $%.0f | Premium: $%.0f.\n",
		rng.Conservative, rng.Market, rng.Premium)
	return b.String()
}
