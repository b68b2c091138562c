package plugin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

// recorder is a test plugin that appends its name to a shared trace.
type recorder struct {
	name  string
	trace *[]string
}

func (r recorder) Name() string { return r.name }

func (r recorder) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			*r.trace = append(*r.trace, r.name)
			return next(c)
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuild_PreservesOrder(t *testing.T) {
	p, err := Build([]string{"sveltekit", "tailwindcss"}, Options{Logger: discardLogger()})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := strings.Join(p.Names(), ","); got != "sveltekit,tailwindcss" {
		t.Errorf("Names() = %q, want %q", got, "sveltekit,tailwindcss")
	}
	if len(p.Middleware()) != 2 {
		t.Errorf("len(Middleware()) = %d, want 2", len(p.Middleware()))
	}
}

func TestBuild_UnknownPlugin(t *testing.T) {
	_, err := Build([]string{"tailwindcss", "react"}, Options{Logger: discardLogger()})
	if err == nil {
		t.Fatal("Build() expected error for unknown plugin, got nil")
	}
	if !strings.Contains(err.Error(), `"react"`) {
		t.Errorf("error = %q, want plugin name", err)
	}
}

func TestBuild_Empty(t *testing.T) {
	p, err := Build(nil, Options{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(p.Names()) != 0 {
		t.Errorf("Names() = %v, want empty", p.Names())
	}
}

func TestAvailable(t *testing.T) {
	if got := strings.Join(Available(), ","); got != "sveltekit,tailwindcss" {
		t.Errorf("Available() = %q, want %q", got, "sveltekit,tailwindcss")
	}
}

func TestPipeline_MiddlewareOrder(t *testing.T) {
	var trace []string
	p := New(recorder{"first", &trace}, recorder{"second", &trace}, recorder{"third", &trace})

	e := echo.New()
	e.Use(p.Middleware()...)
	e.GET("/", func(c echo.Context) error {
		trace = append(trace, "handler")
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if got := strings.Join(trace, ","); got != "first,second,third,handler" {
		t.Errorf("trace = %q, want %q", got, "first,second,third,handler")
	}
}

func TestTailwind_StylesheetHeaders(t *testing.T) {
	e := echo.New()
	e.Use(newTailwind(Options{}).Middleware())
	e.GET("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "body{}")
	})

	tests := []struct {
		path      string
		wantCache string
	}{
		{"/app.css", "no-cache"},
		{"/_app/immutable/assets/0.A1B2.CSS", "no-cache"},
		{"/app.js", ""},
		{"/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if got := rec.Header().Get("Cache-Control"); got != tt.wantCache {
				t.Errorf("Cache-Control = %q, want %q", got, tt.wantCache)
			}
		})
	}
}

func TestTailwind_ContentTypeSurvivesFileServing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.css"), []byte(".p-4{padding:1rem}"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := echo.New()
	e.Use(newTailwind(Options{}).Middleware())
	e.GET("/*", func(c echo.Context) error {
		return c.File(filepath.Join(dir, c.Param("*")))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.css", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "text/css; charset=utf-8" {
		t.Errorf("Content-Type = %q, want %q", got, "text/css; charset=utf-8")
	}
}

func TestTailwind_MissingStylesheet(t *testing.T) {
	dir := t.TempDir()
	e := echo.New()
	e.Use(newTailwind(Options{}).Middleware())
	e.GET("/*", func(c echo.Context) error {
		return c.File(filepath.Join(dir, c.Param("*")))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.css", http.NoBody))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != echo.MIMEApplicationJSON {
		t.Errorf("Content-Type = %q, want %q", got, echo.MIMEApplicationJSON)
	}
	if got := rec.Header().Get("Cache-Control"); got != "" {
		t.Errorf("Cache-Control = %q, want empty", got)
	}
}

func newShellServer(t *testing.T, root string) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.Use(newSvelteKit(Options{StaticRoot: root, Logger: discardLogger()}).Middleware())
	e.Any("/*", func(c echo.Context) error {
		return echo.ErrNotFound
	})
	return e
}

func TestSvelteKit_ServesShellForNavigation(t *testing.T) {
	dir := t.TempDir()
	shell := `<!doctype html><div id="svelte"></div>`
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(shell), 0o644); err != nil {
		t.Fatal(err)
	}
	e := newShellServer(t, dir)

	tests := []struct {
		name       string
		method     string
		path       string
		accept     string
		wantStatus int
		wantShell  bool
	}{
		{"html navigation", http.MethodGet, "/settings/profile", "text/html,application/xhtml+xml", http.StatusOK, true},
		{"no accept header", http.MethodGet, "/dashboard", "", http.StatusOK, true},
		{"wildcard accept", http.MethodGet, "/dashboard", "*/*", http.StatusOK, true},
		{"missing asset", http.MethodGet, "/missing.js", "*/*", http.StatusNotFound, false},
		{"json fetch", http.MethodGet, "/data", "application/json", http.StatusNotFound, false},
		{"post", http.MethodPost, "/form", "text/html", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.accept != "" {
				req.Header.Set(echo.HeaderAccept, tt.accept)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantShell && rec.Body.String() != shell {
				t.Errorf("body = %q, want app shell", rec.Body.String())
			}
		})
	}
}

func TestSvelteKit_NoStaticRoot(t *testing.T) {
	e := newShellServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", http.NoBody)
	req.Header.Set(echo.HeaderAccept, "text/html")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSvelteKit_MissingShell(t *testing.T) {
	e := newShellServer(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/dashboard", http.NoBody)
	req.Header.Set(echo.HeaderAccept, "text/html")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
