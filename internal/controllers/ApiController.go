package controllers

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"

	"mentiond/internal/feed"
	"mentiond/internal/providers"
	"mentiond/internal/services"
)

const maxRequestBodySize = 1 << 20 // 1 MB

const feedCacheKey = "feed"

type ApiController struct {
	logger  providers.Logger
	service services.FeedServiceInterface
	cache   providers.CacheProviderInterface
	changes atomic.Uint64
}

func NewApiController(logger providers.Logger, service services.FeedServiceInterface, cache providers.CacheProviderInterface) *ApiController {
	ac := &ApiController{
		logger:  logger,
		service: service,
		cache:   cache,
	}
	// Any feed change invalidates the rendered response.
	service.Subscribe(func(_ services.FeedEvent) {
		ac.changes.Inc()
		cache.Del(feedCacheKey)
	})
	return ac
}

func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, cacheKey string, compute func() (any, error)) {
	if data, ok := ac.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	seen := ac.changes.Load()
	result, err := compute()
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// A change that landed mid-render already deleted the key; caching
	// this render would resurrect the stale view until the TTL expires.
	if ac.changes.Load() == seen {
		ac.cache.Set(cacheKey, gson)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) GetFeed(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, feedCacheKey, func() (any, error) {
		return ac.service.GetFeed(), nil
	})
}

func (ac *ApiController) GetMention(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	rec, ok := ac.service.GetMention(id)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	gson, err := json.Marshal(rec)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

type toggleLeadRequest struct {
	ID     string `json:"id"`
	IsLead bool   `json:"isLead"`
}

// ToggleLead applies the optimistic lead toggle and answers with the
// reconciled record. Backend rejections surface the server's own message
// with its status so the dashboard can show it as-is.
func (ac *ApiController) ToggleLead(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var payload toggleLeadRequest
	err := json.NewDecoder(r.Body).Decode(&payload)
	if err != nil || payload.ID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	rec, err := ac.service.ToggleLead(r.Context(), payload.ID, payload.IsLead)
	if err != nil {
		var transportErr *feed.TransportError
		if errors.As(err, &transportErr) {
			ac.logger.Warnf(providers.TypePost, "Lead toggle rejected for %s: %s", payload.ID, transportErr.Message)
			http.Error(w, transportErr.Message, transportErr.StatusCode)
			return
		}
		ac.logger.Warnf(providers.TypePost, "Lead toggle failed for %s: %s", payload.ID, err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	gson, err := json.Marshal(rec)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}
