// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest represents a client request to be forwarded upstream.
type ProxyRequest struct {
	Ctx      context.Context
	Method string
	Path   string
	// RawPath is the path as sent on the wire, percent-encoding intact. Rules
	// match and rewrite against it; an empty RawPath falls back to Path.
	RawPath  string
	RawQuery string
	// Host is the Host header the client sent; it is kept upstream unless
	// the matching rule changes the origin.
	Host          string
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
