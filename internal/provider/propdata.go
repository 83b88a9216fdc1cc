package provider

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"value-radar/internal/model"
)

// PropDataConfig 定义主数据源 API 配置。
type PropDataConfig struct {
	APIBase string `yaml:"api_base" json:"api_base"`
	APIKey  string `yaml:"api_key" json:"api_key"`
}

// PropDataProvider 为优先级最高的估值/可比数据源，同时提供 AVM 端点。
type PropDataProvider struct {
	cfg    PropDataConfig
	client *http.Client
	logger *log.Logger
}

// NewPropDataProvider 创建主数据源适配器。
func NewPropDataProvider(cfg PropDataConfig, httpClient *http.Client) *PropDataProvider {
	base := strings.TrimSpace(cfg.APIBase)
	if base == "" {
		base = "https://api.propdata.io/v1"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &PropDataProvider{
		cfg:    PropDataConfig{APIBase: strings.TrimSuffix(base, "/"), APIKey: cfg.APIKey},
		client: httpClient,
		logger: log.New(os.Stdout, "[propdata] ", log.LstdFlags),
	}
}

// Name 返回数据源标识。
func (p *PropDataProvider) Name() string { return "propdata" }

// FetchComparables 查询可比售出记录并归一化，任何失败都返回空集。
func (p *PropDataProvider) FetchComparables(ctx context.Context, q Query) []model.ComparableProperty {
	params := url.Values{}
	params.Set("suburb", q.Suburb)
	params.Set("state", q.State)
	if q.Postcode != "" {
		params.Set("postcode", q.Postcode)
	}
	if q.Beds > 0 {
		params.Set("beds", strconv.Itoa(q.Beds))
	}
	if q.Baths > 0 {
		params.Set("baths", strconv.Itoa(q.Baths))
	}
	if q.PropertyType != "" {
		params.Set("propertyType", q.PropertyType)
	}

	var payload propDataComparablesResponse
	if !p.getJSON(ctx, p.cfg.APIBase+"/comparables?"+params.Encode(), &payload) {
		return nil
	}

	comps := make([]model.ComparableProperty, 0, len(payload.Comparables))
	for _, item := range payload.Comparables {
		price, ok := parsePriceValue(item.Price)
		if !ok {
			p.logger.Printf("discard comparable without recoverable price: %s", item.Address)
			continue
		}
		display, raw := ParseSoldDate(item.SoldDate)
		comps = append(comps, model.ComparableProperty{
			Address:      item.Address,
			Price:        price,
			Beds:         item.Beds,
			Baths:        item.Baths,
			Cars:         item.Cars,
			LandArea:     item.LandArea,
			PropertyType: item.PropertyType,
			SoldDate:     display,
			SoldDateRaw:  raw,
			Source:       p.Name(),
			Distance:     item.Distance,
		})
	}
	p.logger.Printf("fetch done suburb=%s comparables=%d", q.Suburb, len(comps))
	return comps
}

// FetchAutomatedValuation 查询地址级 AVM 估值，失败返回 nil。
func (p *PropDataProvider) FetchAutomatedValuation(ctx context.Context, address, location string) *model.ValuationEstimate {
	if strings.TrimSpace(address) == "" {
		return nil
	}
	params := url.Values{}
	params.Set("address", address)
	params.Set("location", location)

	var payload propDataAVMResponse
	if !p.getJSON(ctx, p.cfg.APIBase+"/avm?"+params.Encode(), &payload) {
		return nil
	}
	if payload.Estimate <= 0 {
		p.logger.Printf("avm response empty for address=%s", address)
		return nil
	}
	return &model.ValuationEstimate{
		Estimate:   payload.Estimate,
		Low:        payload.Low,
		High:       payload.High,
		Confidence: payload.Confidence,
		Source:     p.Name(),
	}
}

// getJSON 执行带鉴权的 GET 并解码 JSON，失败时记录日志并返回 false。
func (p *PropDataProvider) getJSON(ctx context.Context, rawURL string, out any) bool {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		p.logger.Printf("api key missing, skipping request")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		p.logger.Printf("new request: %v", err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Printf("request failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Printf("unexpected status %d", resp.StatusCode)
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		p.logger.Printf("decode response: %v", err)
		return false
	}
	return true
}

type propDataComparablesResponse struct {
	Comparables []propDataComparable `json:"comparables"`
}

// propDataComparable 的 Price 兼容数值与 "$1.2m" 这类文本表示。
type propDataComparable struct {
	Address      string  `json:"address"`
	Price        any     `json:"price"`
	Beds         int     `json:"beds"`
	Baths        int     `json:"baths"`
	Cars         int     `json:"cars"`
	LandArea     float64 `json:"landArea"`
	PropertyType string  `json:"propertyType"`
	SoldDate     string  `json:"soldDate"`
	Distance     float64 `json:"distance"`
}

type propDataAVMResponse struct {
	Estimate   float64 `json:"estimate"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Confidence string  `json:"confidence"`
}
