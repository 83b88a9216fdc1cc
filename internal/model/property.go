package model

import (
	"strings"
	"time"
)

// PropertyInput 表示一次估价请求的目标房产属性
// 中文注释说明字段用途
// - Location: 必填，形如 "Bondi, NSW 2026"，用于定位 suburb/state/postcode
// - Beds/Baths: 缺省为 3/2
// - PropertyType: 缺省为 House
// - LandArea: 平方米，可选，0 表示未知

type PropertyInput struct {
	Address      string  `json:"address"`
	Location     string  `json:"location"`
	Suburb       string  `json:"suburb"`
	State        string  `json:"state"`
	Postcode     string  `json:"postcode"`
	Beds         int     `json:"beds"`
	Baths        int     `json:"baths"`
	Cars         int     `json:"cars"`
	PropertyType string  `json:"property_type"`
	LandArea     float64 `json:"land_area"`
}

// ComparableProperty 表示一条可比售出记录，由 provider 归一化产出后不再修改。
type ComparableProperty struct {
	Address      string    `json:"address"`
	Price        float64   `json:"price"`
	Beds         int       `json:"beds"`
	Baths        int       `json:"baths"`
	Cars         int       `json:"cars"`
	LandArea     float64   `json:"land_area"`
	PropertyType string    `json:"property_type"`
	SoldDate     string    `json:"sold_date"`
	SoldDateRaw  time.Time `json:"sold_date_raw"`
	Source       string    `json:"source"`
	Score        float64   `json:"score,omitempty"`
	Distance     float64   `json:"distance,omitempty"`
}

// ValuationEstimate 表示主数据源返回的 AVM 自动估值。
type ValuationEstimate struct {
	Estimate   float64 `json:"estimate"`
	Low        float64 `json:"low,omitempty"`
	High       float64 `json:"high,omitempty"`
	Confidence string  `json:"confidence,omitempty"`
	Source     string  `json:"source"`
}

// SalesStatistics 汇总已定价可比记录的统计值，Mean 四舍五入到整数货币单位。
type SalesStatistics struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// ApplyDefaults 补齐缺省的目标属性，并从 Location 推导 suburb/state/postcode。
func (p *PropertyInput) ApplyDefaults() {
	if p.Beds <= 0 {
		p.Beds = 3
	}
	if p.Baths <= 0 {
		p.Baths = 2
	}
	if strings.TrimSpace(p.PropertyType) == "" {
		p.PropertyType = "House"
	}
	if p.Suburb == "" {
		suburb, state, postcode := ParseLocation(p.Location)
		p.Suburb = suburb
		if p.State == "" {
			p.State = state
		}
		if p.Postcode == "" {
			p.Postcode = postcode
		}
	}
}

// ParseLocation 解析 "Bondi, NSW 2026" 形式的地点串。
// 逗号前为 suburb，逗号后依次为 state 与 4 位 postcode，缺失部分返回空串。
func ParseLocation(location string) (suburb, state, postcode string) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", "", ""
	}

	parts := strings.SplitN(location, ",", 2)
	suburb = strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return suburb, "", ""
	}

	for _, token := range strings.Fields(parts[1]) {
		if isPostcode(token) {
			postcode = token
			continue
		}
		if state == "" {
			state = strings.ToUpper(token)
		}
	}
	return suburb, state, postcode
}

func isPostcode(token string) bool {
	if len(token) != 4 {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DensityClassHouse 等常量标识房型密度类别，用于跨类别比较的评分惩罚。
const (
	DensityClassHouse     = "house"
	DensityClassTownhouse = "townhouse"
	DensityClassUnit      = "unit"
)

// DensityClass 将 property type 归一化为三个密度类别之一。
func DensityClass(propertyType string) string {
	switch strings.ToLower(strings.TrimSpace(propertyType)) {
	case "unit", "apartment", "flat", "studio":
		return DensityClassUnit
	case "townhouse", "villa", "terrace", "duplex":
		return DensityClassTownhouse
	default:
		return DensityClassHouse
	}
}
