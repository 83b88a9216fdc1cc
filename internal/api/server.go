package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"value-radar/internal/cache"
	"value-radar/internal/model"
	"value-radar/internal/orchestrator"
	"value-radar/internal/weights"
)

// ValuationService 抽象估价任务的提交与轮询。
type ValuationService interface {
	Submit(ctx context.Context, input model.PropertyInput) (string, error)
	PollStatus(ctx context.Context, jobID string) (orchestrator.PollResponse, error)
}

// CacheStore 抽象 suburb 快照缓存的读写。
type CacheStore interface {
	Get(ctx context.Context, key string) *cache.Entry
	Put(ctx context.Context, key string, sales []model.ComparableProperty) error
}

// WeightService 抽象权重配置管理。
type WeightService interface {
	GetActive(ctx context.Context) (model.WeightConfiguration, error)
	List(ctx context.Context) ([]model.WeightConfiguration, error)
	Create(ctx context.Context, name string, w model.ScoringWeights) (model.WeightConfiguration, error)
	Update(ctx context.Context, id, name string, w model.ScoringWeights) (model.WeightConfiguration, error)
	Activate(ctx context.Context, id string) (model.WeightConfiguration, error)
	Delete(ctx context.Context, id string) error
	Reset(ctx context.Context) (model.WeightConfiguration, error)
}

// CacheWriteRequest 表示缓存写入 API 请求，整体替换同键旧快照。
type CacheWriteRequest struct {
	Suburb       string                     `json:"suburb"`
	State        string                     `json:"state"`
	Postcode     string                     `json:"postcode"`
	PropertyType string                     `json:"property_type"`
	Sales        []model.ComparableProperty `json:"sales"`
}

// WeightRequest 表示权重配置创建/更新请求。
type WeightRequest struct {
	Name    string               `json:"name"`
	Weights model.ScoringWeights `json:"weights"`
}

// NewHandler 构造 HTTP 多路复用器。
func NewHandler(vals ValuationService, cacheStore CacheStore, weightSvc WeightService) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/api/valuations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var input model.PropertyInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		id, err := vals.Submit(r.Context(), input)
		if err != nil {
			switch {
			case errors.Is(err, orchestrator.ErrLocationRequired):
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location is required"})
			case errors.Is(err, orchestrator.ErrQueueFull):
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "server busy, try again later"})
			default:
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			}
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(model.JobStatusQueued)})
	})

	mux.HandleFunc("/api/valuations/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/valuations/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		resp, err := vals.PollStatus(r.Context(), id)
		if err != nil {
			if errors.Is(err, orchestrator.ErrJobNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("/api/cache", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			key := cache.Key(q.Get("suburb"), q.Get("state"), q.Get("postcode"), q.Get("propertyType"))
			entry := cacheStore.Get(r.Context(), key)
			if entry == nil {
				writeJSON(w, http.StatusOK, map[string]any{"cached": false})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"cached":    true,
				"sales":     entry.Sales,
				"cached_at": entry.CachedAt.Format(time.RFC3339),
				"total":     len(entry.Sales),
			})
		case http.MethodPost, http.MethodPut:
			var req CacheWriteRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
				return
			}
			if strings.TrimSpace(req.Suburb) == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "suburb is required"})
				return
			}
			key := cache.Key(req.Suburb, req.State, req.Postcode, req.PropertyType)
			if err := cacheStore.Put(r.Context(), key, req.Sales); err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "key": key, "total": len(req.Sales)})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/weights", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			configs, err := weightSvc.List(r.Context())
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, configs)
		case http.MethodPost:
			var req WeightRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
				return
			}
			cfg, err := weightSvc.Create(r.Context(), req.Name, req.Weights)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusCreated, cfg)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/weights/active", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		cfg, err := weightSvc.GetActive(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	})

	mux.HandleFunc("/api/weights/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		cfg, err := weightSvc.Reset(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	})

	mux.HandleFunc("/api/weights/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/weights/")
		if rest == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if id, ok := strings.CutSuffix(rest, "/activate"); ok {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			cfg, err := weightSvc.Activate(r.Context(), id)
			if err != nil {
				writeWeightError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, cfg)
			return
		}
		if strings.Contains(rest, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodPut:
			var req WeightRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
				return
			}
			cfg, err := weightSvc.Update(r.Context(), rest, req.Name, req.Weights)
			if err != nil {
				writeWeightError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, cfg)
		case http.MethodDelete:
			if err := weightSvc.Delete(r.Context(), rest); err != nil {
				writeWeightError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "property valuation api"})
	})

	return mux
}

// writeWeightError 将权重服务错误映射为 HTTP 状态码。
func writeWeightError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, weights.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "configuration not found"})
	case errors.Is(err, weights.ErrDeleteActive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot delete active configuration"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
