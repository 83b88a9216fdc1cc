package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"value-radar/internal/model"
)

// Query 描述一次可比售出记录查询。
type Query struct {
	Suburb       string
	State        string
	Postcode     string
	Beds         int
	Baths        int
	PropertyType string
}

// ComparableProvider 抓取统一接口。实现者在内部消化远端故障：
// 网络错误、非 2xx、畸形载荷一律记录日志并返回空集，绝不向上抛错。
type ComparableProvider interface {
	Name() string
	FetchComparables(ctx context.Context, q Query) []model.ComparableProperty
}

// AutomatedValuer 仅主数据源实现，按地址返回 AVM 自动估值，失败返回 nil。
type AutomatedValuer interface {
	FetchAutomatedValuation(ctx context.Context, address, location string) *model.ValuationEstimate
}

var priceRegexp = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(m|k)?`)

// ParsePrice 从原始价格文本恢复数值，容忍货币符号、千分位与 "1.2m"/"850k" 缩写。
// 无法恢复出正数价格时返回 false，调用方应丢弃该记录而不是按 0 计入。
func ParsePrice(raw string) (float64, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, false
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")

	match := priceRegexp.FindStringSubmatch(cleaned)
	if match == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil || value <= 0 {
		return 0, false
	}

	switch match[2] {
	case "m":
		value *= 1_000_000
	case "k":
		value *= 1_000
	}
	// 价格为整数货币单位，缩写展开后消除浮点误差（"2.05m" 必须得到 2050000）。
	return math.Round(value), true
}

// parsePriceValue 兼容数值与文本两种价格表示。
func parsePriceValue(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		if val <= 0 {
			return 0, false
		}
		return val, true
	case json.Number:
		f, err := val.Float64()
		if err != nil || f <= 0 {
			return 0, false
		}
		return f, true
	case string:
		return ParsePrice(val)
	default:
		return ParsePrice(fmt.Sprintf("%v", v))
	}
}

var soldDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2006",
	"02/01/2006",
}

// ParseSoldDate 解析各数据源的成交日期表示，返回展示串与用于新旧度评分的时间戳。
// 无法解析时时间戳为零值，记录仍保留，只是不参与新旧度修正。
func ParseSoldDate(raw string) (string, time.Time) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", time.Time{}
	}
	cleaned := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(trimmed, "Sold on"), "Sold"))
	for _, layout := range soldDateLayouts {
		if ts, err := time.Parse(layout, cleaned); err == nil {
			return trimmed, ts
		}
	}
	return trimmed, time.Time{}
}

func normalizeAddress(addr string) string {
	return strings.Join(strings.Fields(strings.ToLower(addr)), " ")
}
