package plugin

import (
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

const tailwindName = "tailwindcss"

// tailwind marks generated stylesheets as CSS and keeps browsers from caching
// them, so utility classes added during development show up on reload.
type tailwind struct{}

func newTailwind(Options) Plugin { return tailwind{} }

func (tailwind) Name() string { return tailwindName }

func (tailwind) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !strings.EqualFold(path.Ext(c.Request().URL.Path), ".css") {
				return next(c)
			}

			// Set before next: file serving commits the response itself.
			h := c.Response().Header()
			h.Set(echo.HeaderContentType, "text/css; charset=utf-8")
			h.Set("Cache-Control", "no-cache")

			err := next(c)
			if err != nil && !c.Response().Committed {
				// The error handler writes its own body; don't label it as CSS.
				h.Del(echo.HeaderContentType)
				h.Del("Cache-Control")
			}
			return err
		}
	}
}
