package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"devproxy-go/internal/config"
	"devproxy-go/internal/plugin"
	"devproxy-go/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// AssetGeneration reports how many static-root change batches have been seen.
type AssetGeneration interface {
	Generation() int64
}

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg      *config.Config
	version  Version
	proxy    *service.ProxyService
	pipeline *plugin.Pipeline
	assets   AssetGeneration
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version, proxy *service.ProxyService, pipeline *plugin.Pipeline, assets AssetGeneration) *HealthHandler {
	return &HealthHandler{
		cfg:      cfg,
		version:  v,
		proxy:    proxy,
		pipeline: pipeline,
		assets:   assets,
	}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	Status       string        `json:"status"`
	Version      string        `json:"version"`
	Addr         string        `json:"addr"`
	Plugins      []string      `json:"plugins"`
	Proxy        []ProxyStatus `json:"proxy"`
	StaticRoot   string        `json:"static_root,omitempty"`
	AssetChanges int64         `json:"asset_changes"`
}

// ProxyStatus describes one proxy rule.
type ProxyStatus struct {
	Prefix       string `json:"prefix"`
	Target       string `json:"target"`
	ChangeOrigin bool   `json:"change_origin"`
}

// Status returns the active dev-server configuration.
func (h *HealthHandler) Status(c echo.Context) error {
	resp := StatusResponse{
		Status:     "ok",
		Version:    string(h.version),
		Addr:       h.cfg.Server.Addr(),
		Plugins:    h.pipeline.Names(),
		Proxy:      make([]ProxyStatus, 0, len(h.proxy.Rules())),
		StaticRoot: h.cfg.Static.Root,
	}
	for _, r := range h.proxy.Rules() {
		resp.Proxy = append(resp.Proxy, ProxyStatus{
			Prefix:       r.Prefix,
			Target:       r.Target.String(),
			ChangeOrigin: r.ChangeOrigin,
		})
	}
	if h.assets != nil {
		resp.AssetChanges = h.assets.Generation()
	}
	return c.JSON(http.StatusOK, resp)
}
