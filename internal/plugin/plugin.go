// Package plugin builds the ordered middleware pipeline applied to
// front-end (non-proxied) requests.
package plugin

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/labstack/echo/v4"
)

// Plugin is a named extension of the front-end request pipeline.
type Plugin interface {
	Name() string
	Middleware() echo.MiddlewareFunc
}

// Options carries what plugins may need from the dev-server configuration.
type Options struct {
	StaticRoot string
	Logger     *slog.Logger
}

// Factory creates a plugin instance.
type Factory func(Options) Plugin

var builtins = map[string]Factory{
	tailwindName:  newTailwind,
	svelteKitName: newSvelteKit,
}

// Available returns the names of all built-in plugins, sorted.
func Available() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pipeline is an ordered set of plugins. The first plugin sees the request first.
type Pipeline struct {
	plugins []Plugin
}

// Build instantiates the named plugins in order.
func Build(names []string, opts Options) (*Pipeline, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Pipeline{plugins: make([]Plugin, 0, len(names))}
	for _, name := range names {
		factory, ok := builtins[name]
		if !ok {
			return nil, fmt.Errorf("unknown plugin %q (available: %v)", name, Available())
		}
		p.plugins = append(p.plugins, factory(opts))
		opts.Logger.Debug("plugin registered", "plugin", name, "position", len(p.plugins))
	}
	return p, nil
}

// New returns a pipeline of already constructed plugins.
func New(plugins ...Plugin) *Pipeline {
	return &Pipeline{plugins: plugins}
}

// Names returns the plugin names in pipeline order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.plugins))
	for _, pl := range p.plugins {
		names = append(names, pl.Name())
	}
	return names
}

// Middleware returns the plugin middleware in pipeline order, ready for echo's Use.
func (p *Pipeline) Middleware() []echo.MiddlewareFunc {
	mws := make([]echo.MiddlewareFunc, 0, len(p.plugins))
	for _, pl := range p.plugins {
		mws = append(mws, pl.Middleware())
	}
	return mws
}
