package handler

import (
	"io"
	"log/slog"
	"testing"

	"devproxy-go/internal/client"
	"devproxy-go/internal/config"
	"devproxy-go/internal/plugin"
	"devproxy-go/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a config with the default /api rule pointed at target.
func testConfig(target string) *config.Config {
	cfg := config.Default()
	cfg.Proxy[0].Target = target
	cfg.Upstream.TimeoutSeconds = 10
	cfg.Upstream.IdleConnections = 10
	return cfg
}

func newTestProxyService(t *testing.T, cfg *config.Config) *service.ProxyService {
	t.Helper()
	logger := discardLogger()
	svc, err := service.NewProxyService(client.NewUpstreamClient(cfg, logger, nil), cfg, logger)
	if err != nil {
		t.Fatalf("NewProxyService: %v", err)
	}
	return svc
}

func newTestPipeline(t *testing.T, cfg *config.Config) *plugin.Pipeline {
	t.Helper()
	p, err := plugin.Build(cfg.Plugins, plugin.Options{StaticRoot: cfg.Static.Root, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("plugin.Build: %v", err)
	}
	return p
}

type fixedGeneration int64

func (g fixedGeneration) Generation() int64 { return int64(g) }
