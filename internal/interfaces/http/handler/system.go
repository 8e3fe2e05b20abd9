package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// CatalogProbe reports the state of the catalog cache
type CatalogProbe interface {
	Len() int
	LoadedAt() time.Time
}

// BackendProbe reports the circuit breaker in front of the backend
type BackendProbe interface {
	BreakerState() string
}

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	catalog   CatalogProbe
	backend   BackendProbe
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. Either probe may be nil.
func NewSystemHandler(name, version string, catalog CatalogProbe, backend BackendProbe) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		catalog:   catalog,
		backend:   backend,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Health statuses
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthResponse is the liveness report
type HealthResponse struct {
	Status          string     `json:"status"`
	Uptime          string     `json:"uptime"`
	CatalogProducts int        `json:"catalog_products"`
	CatalogLoadedAt *time.Time `json:"catalog_loaded_at,omitempty"`
	BackendBreaker  string     `json:"backend_breaker,omitempty"`
}

// Health reports whether the terminal can sell. It always answers 200
// while the process is up; an empty catalog or an open breaker marks it
// degraded.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status: HealthOK,
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.catalog != nil {
		resp.CatalogProducts = h.catalog.Len()
		if loaded := h.catalog.LoadedAt(); !loaded.IsZero() {
			resp.CatalogLoadedAt = &loaded
		}
		if resp.CatalogProducts == 0 {
			resp.Status = HealthDegraded
		}
	}
	if h.backend != nil {
		resp.BackendBreaker = h.backend.BreakerState()
		if resp.BackendBreaker == "open" {
			resp.Status = HealthDegraded
		}
	}
	h.Success(c, resp)
}
