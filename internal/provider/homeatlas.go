package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"value-radar/internal/model"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// HomeAtlasConfig 定义兜底数据源配置，数据来自公开页面而非 API。
type HomeAtlasConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// HomeAtlasProvider 抓取公开 suburb 页面的 __NEXT_DATA__ JSON，
// 同时抓取 sold 与在售两个页面并合并，作为优先级最低的兜底数据源。
type HomeAtlasProvider struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// NewHomeAtlasProvider 创建兜底抓取适配器。
func NewHomeAtlasProvider(cfg HomeAtlasConfig, httpClient *http.Client) *HomeAtlasProvider {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "https://www.homeatlas.com.au"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HomeAtlasProvider{
		baseURL: strings.TrimSuffix(base, "/"),
		client:  httpClient,
		logger:  log.New(os.Stdout, "[homeatlas] ", log.LstdFlags),
	}
}

// Name 返回数据源标识。
func (h *HomeAtlasProvider) Name() string { return "homeatlas" }

// FetchComparables 并发抓取 sold 与在售页面，任一页面失败不影响另一页面。
// 同一地址出现在两个页面时保留 sold 页的记录。
func (h *HomeAtlasProvider) FetchComparables(ctx context.Context, q Query) []model.ComparableProperty {
	slug := suburbSlug(q)
	soldURL := h.baseURL + "/sold/" + slug
	buyURL := h.baseURL + "/buy/" + slug

	var sold, listed []model.ComparableProperty
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sold = h.fetchPage(gctx, soldURL, true)
		return nil
	})
	g.Go(func() error {
		listed = h.fetchPage(gctx, buyURL, false)
		return nil
	})
	_ = g.Wait()

	comps := make([]model.ComparableProperty, 0, len(sold)+len(listed))
	seen := make(map[string]struct{}, len(sold))
	for _, c := range append(sold, listed...) {
		addr := normalizeAddress(c.Address)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		comps = append(comps, c)
	}
	h.logger.Printf("fetch done suburb=%s sold=%d listed=%d merged=%d", q.Suburb, len(sold), len(listed), len(comps))
	return comps
}

func (h *HomeAtlasProvider) fetchPage(ctx context.Context, pageURL string, isSold bool) []model.ComparableProperty {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		h.logger.Printf("new request: %v", err)
		return nil
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Printf("fetch %s failed: %v", pageURL, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.Printf("fetch %s unexpected status %d", pageURL, resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logger.Printf("read body: %v", err)
		return nil
	}

	nextJSON, err := extractNextData(string(body))
	if err != nil {
		h.logger.Printf("extract __NEXT_DATA__: %v", err)
		return nil
	}

	entries, err := parseAtlasListings(nextJSON)
	if err != nil {
		h.logger.Printf("parse listings: %v", err)
		return nil
	}

	comps := make([]model.ComparableProperty, 0, len(entries))
	for _, entry := range entries {
		price, ok := ParsePrice(entry.Price)
		if !ok {
			continue
		}
		display := entry.SoldDate
		var raw time.Time
		if isSold {
			display, raw = ParseSoldDate(entry.SoldDate)
		}
		comps = append(comps, model.ComparableProperty{
			Address:      entry.Address,
			Price:        price,
			Beds:         entry.Beds,
			Baths:        entry.Baths,
			Cars:         entry.Cars,
			LandArea:     entry.LandArea,
			PropertyType: entry.PropertyType,
			SoldDate:     display,
			SoldDateRaw:  raw,
			Source:       h.Name(),
		})
	}
	return comps
}

func suburbSlug(q Query) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{q.Suburb, q.State, q.Postcode} {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(p, " ", "-"))
	}
	return strings.Join(parts, "-")
}

// atlasNextData 对应 __NEXT_DATA__ 结构（精简字段）。
type atlasNextData struct {
	Props struct {
		PageProps *atlasPageProps `json:"pageProps"`
	} `json:"props"`
}

type atlasPageProps struct {
	Listings []atlasListing `json:"listings"`
}

type atlasListing struct {
	Address      string  `json:"address"`
	Price        string  `json:"price"`
	Beds         int     `json:"beds"`
	Baths        int     `json:"baths"`
	Cars         int     `json:"cars"`
	LandArea     float64 `json:"landArea"`
	PropertyType string  `json:"propertyType"`
	SoldDate     string  `json:"soldDate"`
}

func extractNextData(htmlText string) (string, error) {
	node, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var scriptText string
	var search func(*html.Node)
	search = func(n *html.Node) {
		if scriptText != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, attr := range n.Attr {
				if attr.Key == "id" && attr.Val == "__NEXT_DATA__" {
					if n.FirstChild != nil {
						scriptText = n.FirstChild.Data
					}
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			search(c)
		}
	}
	search(node)

	if scriptText == "" {
		return "", fmt.Errorf("__NEXT_DATA__ not found")
	}
	return scriptText, nil
}

func parseAtlasListings(jsonText string) ([]atlasListing, error) {
	var nd atlasNextData
	if err := json.Unmarshal([]byte(jsonText), &nd); err != nil {
		return nil, fmt.Errorf("unmarshal next data: %w", err)
	}
	if nd.Props.PageProps == nil {
		return nil, fmt.Errorf("listings not found in __NEXT_DATA__")
	}
	return nd.Props.PageProps.Listings, nil
}
