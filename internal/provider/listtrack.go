package provider

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"value-radar/internal/model"
)

// ListTrackConfig 定义次级挂牌数据源配置。
type ListTrackConfig struct {
	APIBase string `yaml:"api_base" json:"api_base"`
	APIKey  string `yaml:"api_key" json:"api_key"`
}

// ListTrackProvider 为次级数据源，返回近期售出挂牌记录，价格多为文本表示。
type ListTrackProvider struct {
	cfg    ListTrackConfig
	client *http.Client
	logger *log.Logger
}

// NewListTrackProvider 创建次级数据源适配器。
func NewListTrackProvider(cfg ListTrackConfig, httpClient *http.Client) *ListTrackProvider {
	base := strings.TrimSpace(cfg.APIBase)
	if base == "" {
		base = "https://api.listtrack.com.au"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ListTrackProvider{
		cfg:    ListTrackConfig{APIBase: strings.TrimSuffix(base, "/"), APIKey: cfg.APIKey},
		client: httpClient,
		logger: log.New(os.Stdout, "[listtrack] ", log.LstdFlags),
	}
}

// Name 返回数据源标识。
func (l *ListTrackProvider) Name() string { return "listtrack" }

// FetchComparables 查询售出挂牌并归一化，任何失败都返回空集。
func (l *ListTrackProvider) FetchComparables(ctx context.Context, q Query) []model.ComparableProperty {
	params := url.Values{}
	params.Set("suburb", q.Suburb)
	params.Set("state", q.State)
	params.Set("status", "sold")
	if q.Postcode != "" {
		params.Set("postcode", q.Postcode)
	}
	if q.PropertyType != "" {
		params.Set("type", q.PropertyType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.APIBase+"/listings?"+params.Encode(), nil)
	if err != nil {
		l.logger.Printf("new request: %v", err)
		return nil
	}
	if l.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", l.cfg.APIKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		l.logger.Printf("request failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.logger.Printf("unexpected status %d", resp.StatusCode)
		return nil
	}

	var payload listTrackResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		l.logger.Printf("decode response: %v", err)
		return nil
	}

	comps := make([]model.ComparableProperty, 0, len(payload.Results))
	for _, item := range payload.Results {
		price, ok := ParsePrice(item.PriceText)
		if !ok {
			l.logger.Printf("discard listing without recoverable price: %s", item.DisplayAddress)
			continue
		}
		display, raw := ParseSoldDate(item.SoldDate)
		comps = append(comps, model.ComparableProperty{
			Address:      item.DisplayAddress,
			Price:        price,
			Beds:         item.Bedrooms,
			Baths:        item.Bathrooms,
			Cars:         item.Carspaces,
			LandArea:     item.LandSize,
			PropertyType: item.PropertyType,
			SoldDate:     display,
			SoldDateRaw:  raw,
			Source:       l.Name(),
		})
	}
	l.logger.Printf("fetch done suburb=%s listings=%d", q.Suburb, len(comps))
	return comps
}

type listTrackResponse struct {
	Results []listTrackListing `json:"results"`
}

type listTrackListing struct {
	DisplayAddress string  `json:"displayAddress"`
	PriceText      string  `json:"priceText"`
	Bedrooms       int     `json:"bedrooms"`
	Bathrooms      int     `json:"bathrooms"`
	Carspaces      int     `json:"carspaces"`
	LandSize       float64 `json:"landSize"`
	PropertyType   string  `json:"propertyType"`
	SoldDate       string  `json:"soldDate"`
}
