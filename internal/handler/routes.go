// Package handler serves devproxy's HTTP surface.
package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"devproxy-go/internal/config"
	"devproxy-go/internal/metrics"
	"devproxy-go/internal/plugin"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
//
// devproxy's own routes are static and take precedence. Each proxy prefix
// gets a catch-all route; the proxy service then picks the first matching
// rule in configuration order. Everything else runs through the plugin
// pipeline to the static handler.
func RegisterRoutes(
	e *echo.Echo,
	cfg *config.Config,
	m *metrics.Metrics,
	pipeline *plugin.Pipeline,
	proxy *ProxyHandler,
	health *HealthHandler,
	static *StaticHandler,
) {
	e.GET(config.HealthPath, health.Healthz)
	e.GET(config.StatusPath, health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	for _, prefix := range cfg.ProxyPrefixes() {
		e.Any(prefix+"*", proxy.Handle)
	}

	front := e.Group("", pipeline.Middleware()...)
	front.Any("/", static.Serve)
	front.Any("/*", static.Serve)
}
