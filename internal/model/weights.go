package model

import "time"

// WeightConfiguration 表示一套命名、带版本的评分系数
// 任意时刻只有一条记录 Active 为 true，激活新配置会取消其余配置。
type WeightConfiguration struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Version   int            `json:"version"`
	Active    bool           `json:"active"`
	Weights   ScoringWeights `json:"weights"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ScoringWeights 聚合全部评分系数与阈值，由 scoring 引擎读取。
type ScoringWeights struct {
	BaseScore       float64 `json:"base_score"`
	BedroomPenalty  float64 `json:"bedroom_penalty"`
	BathroomPenalty float64 `json:"bathroom_penalty"`

	DensityHouseUnitPenalty      float64 `json:"density_house_unit_penalty"`
	DensityHouseTownhousePenalty float64 `json:"density_house_townhouse_penalty"`

	Distance DistanceBands `json:"distance"`
	Recency  RecencyBands  `json:"recency"`

	// LandAreaWeight 预留的面积相似度权重，0 表示停用。
	LandAreaWeight float64 `json:"land_area_weight"`
}

// DistanceBands 定义五档距离区间（公里）与各档修正值。
// 2~5 公里之间不落入任何档位，单条可比记录最多命中一档。
type DistanceBands struct {
	UltraCloseKM float64 `json:"ultra_close_km"`
	VeryCloseKM  float64 `json:"very_close_km"`
	CloseKM      float64 `json:"close_km"`
	ModerateKM   float64 `json:"moderate_km"`
	FarKM        float64 `json:"far_km"`
	VeryFarKM    float64 `json:"very_far_km"`

	UltraCloseAdj float64 `json:"ultra_close_adj"`
	VeryCloseAdj  float64 `json:"very_close_adj"`
	CloseAdj      float64 `json:"close_adj"`
	ModerateAdj   float64 `json:"moderate_adj"`
	FarAdj        float64 `json:"far_adj"`
	VeryFarAdj    float64 `json:"very_far_adj"`
}

// RecencyBands 定义五档成交时间区间（月）与各档修正值。
type RecencyBands struct {
	VeryRecentMonths float64 `json:"very_recent_months"`
	RecentMonths     float64 `json:"recent_months"`
	GettingOldMonths float64 `json:"getting_old_months"`
	OldMonths        float64 `json:"old_months"`

	VeryRecentAdj float64 `json:"very_recent_adj"`
	RecentAdj     float64 `json:"recent_adj"`
	GettingOldAdj float64 `json:"getting_old_adj"`
	OldAdj        float64 `json:"old_adj"`
	VeryOldAdj    float64 `json:"very_old_adj"`
}

// DefaultScoringWeights 返回缺省评分系数。
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		BaseScore:       100,
		BedroomPenalty:  10,
		BathroomPenalty: 8,

		DensityHouseUnitPenalty:      25,
		DensityHouseTownhousePenalty: 12,

		Distance: DistanceBands{
			UltraCloseKM: 0.2,
			VeryCloseKM:  0.35,
			CloseKM:      0.5,
			ModerateKM:   1.0,
			FarKM:        2.0,
			VeryFarKM:    5.0,

			UltraCloseAdj: 15,
			VeryCloseAdj:  12,
			CloseAdj:      10,
			ModerateAdj:   5,
			FarAdj:        -5,
			VeryFarAdj:    -15,
		},
		Recency: RecencyBands{
			VeryRecentMonths: 3,
			RecentMonths:     6,
			GettingOldMonths: 18,
			OldMonths:        24,

			VeryRecentAdj: 10,
			RecentAdj:     6,
			GettingOldAdj: -4,
			OldAdj:        -8,
			VeryOldAdj:    -12,
		},

		LandAreaWeight: 0,
	}
}
