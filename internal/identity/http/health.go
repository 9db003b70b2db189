package http

import (
	"net/http"
	"time"

	"github.com/iris-platform/identity/internal/identity/cache"
	"github.com/iris-platform/identity/internal/identity/store"
	"github.com/iris-platform/identity/pkg/httpx"
)

type HealthHandler struct {
	Store     store.Store
	Cache     cache.Cache
	Version   string
	StartTime time.Time
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := http.StatusOK
	checks := map[string]string{"store": "ok", "cache": "ok"}

	if err := h.Store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.Cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	word := "ok"
	if status != http.StatusOK {
		word = "degraded"
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, status, map[string]any{
		"status":  word,
		"version": h.Version,
		"uptime":  time.Since(h.StartTime).Round(time.Second).String(),
		"checks":  checks,
	})
}
