package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/baedrik/skulls2/internal/cache"
	"github.com/baedrik/skulls2/internal/service"
	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/baedrik/skulls2/pkg/response"
)

// StatsSource describes the engine and its store.
type StatsSource interface {
	Stats(ctx context.Context) map[string]interface{}
}

// AdminHandler handles operator HTTP requests.
type AdminHandler struct {
	engine      StatsSource
	maintenance *service.MaintenanceScheduler
	cache       cache.Cache
	storeType   string
	cacheType   string
	startTime   time.Time
}

// NewAdminHandler creates a new admin handler. maintenance and c may be nil.
func NewAdminHandler(engine StatsSource, maintenance *service.MaintenanceScheduler, c cache.Cache, storeType, cacheType string) *AdminHandler {
	return &AdminHandler{
		engine:      engine,
		maintenance: maintenance,
		cache:       c,
		storeType:   storeType,
		cacheType:   cacheType,
		startTime:   time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	if h.engine != nil {
		stats["engine"] = h.engine.Stats(r.Context())
	}

	if h.maintenance != nil {
		if last := h.maintenance.LastReport(); last != nil {
			stats["maintenance"] = last
		} else {
			stats["maintenance"] = map[string]string{"status": "not_run"}
		}
	} else {
		stats["maintenance"] = map[string]string{"status": "not_configured"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// RunMaintenance handles POST /api/v1/admin/maintenance
func (h *AdminHandler) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	if h.maintenance == nil {
		response.Error(w, apierror.ServiceUnavailable("maintenance is not configured"))
		return
	}
	response.OK(w, h.maintenance.RunNow())
}

// FlushCache handles POST /api/v1/admin/cache/flush. Open sessions are
// dropped along with rendered metadata.
func (h *AdminHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		response.Error(w, apierror.ServiceUnavailable("cache is not configured"))
		return
	}
	if err := h.cache.Clear(r.Context()); err != nil {
		response.Error(w, apierror.ServiceUnavailable("failed to flush cache"))
		return
	}
	response.OK(w, map[string]string{"status": "flushed"})
}
