package handler

import (
	"path"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"devproxy-go/internal/config"
)

// StaticHandler serves files from the configured static root.
type StaticHandler struct {
	root string
}

// NewStaticHandler creates a StaticHandler. An empty root disables it.
func NewStaticHandler(cfg *config.Config) *StaticHandler {
	return &StaticHandler{root: cfg.Static.Root}
}

// Serve writes the file for the request path, or index.html for a directory.
// Missing files and a disabled root yield echo.ErrNotFound so plugins may
// substitute a response.
func (h *StaticHandler) Serve(c echo.Context) error {
	if h.root == "" {
		return echo.ErrNotFound
	}
	// Cleaning against "/" keeps the result inside root.
	rel := path.Clean("/" + c.Request().URL.Path)
	return c.File(filepath.Join(h.root, filepath.FromSlash(rel)))
}
