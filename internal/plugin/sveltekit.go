package plugin

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

const svelteKitName = "sveltekit"

// svelteKit answers client-side routes with the application shell. A GET or
// HEAD navigation that would otherwise 404 is served the static root's index.html.
type svelteKit struct {
	root   string
	logger *slog.Logger
}

func newSvelteKit(opts Options) Plugin {
	return &svelteKit{
		root:   opts.StaticRoot,
		logger: opts.Logger.With("component", "plugin_sveltekit"),
	}
}

func (s *svelteKit) Name() string { return svelteKitName }

func (s *svelteKit) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil || s.root == "" || !isNotFound(err) || !isNavigation(c.Request()) {
				return err
			}
			if c.Response().Committed {
				return err
			}

			s.logger.Debug("serving app shell", "path", c.Request().URL.Path)
			return c.File(filepath.Join(s.root, "index.html"))
		}
	}
}

func isNotFound(err error) bool {
	var he *echo.HTTPError
	return errors.As(err, &he) && he.Code == http.StatusNotFound
}

// isNavigation reports whether r looks like a browser page load rather than
// an asset fetch.
func isNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if path.Ext(r.URL.Path) != "" {
		return false
	}
	accept := r.Header.Get(echo.HeaderAccept)
	return accept == "" || strings.Contains(accept, echo.MIMETextHTML) || strings.Contains(accept, "*/*")
}
