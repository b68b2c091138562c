// Package service implements the proxy rule table and request forwarding.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"devproxy-go/internal/client"
	"devproxy-go/internal/config"
	"devproxy-go/internal/model"
	"devproxy-go/internal/rewrite"
)

// ErrNoRoute is returned when no proxy rule matches the request path.
var ErrNoRoute = errors.New("no proxy rule matches path")

// hopByHopHeaders are meaningful only for a single transport-level connection
// and are never forwarded in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Rule is a compiled proxy rule.
type Rule struct {
	Prefix       string
	Target       *url.URL
	ChangeOrigin bool
	Rewrite      rewrite.Func
}

// ProxyService matches request paths against proxy rules and forwards them.
type ProxyService struct {
	client *client.UpstreamClient
	rules  []*Rule
	logger *slog.Logger
}

// NewProxyService compiles the configured proxy rules, preserving their order.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	rules := make([]*Rule, 0, len(cfg.Proxy))
	for _, pr := range cfg.Proxy {
		r, err := compileRule(pr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}

	return &ProxyService{
		client: c,
		rules:  rules,
		logger: logger.With("component", "proxy_service"),
	}, nil
}

func compileRule(pr config.ProxyRule) (*Rule, error) {
	u, err := url.Parse(pr.Target)
	if err != nil {
		return nil, fmt.Errorf("parse proxy target for %s: %w", pr.Prefix, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy target for %s is not absolute: %q", pr.Prefix, pr.Target)
	}

	fn := rewrite.Identity
	if pr.StripPrefix {
		fn = rewrite.StripPrefix(pr.Prefix)
	}

	return &Rule{
		Prefix:       pr.Prefix,
		Target:       u,
		ChangeOrigin: pr.ChangeOrigin,
		Rewrite:      fn,
	}, nil
}

// Rules returns the compiled rules in match order.
func (s *ProxyService) Rules() []*Rule {
	return s.rules
}

// Match returns the first rule, in configuration order, whose prefix is a
// string prefix of path.
func (s *ProxyService) Match(path string) (*Rule, bool) {
	for _, r := range s.rules {
		if strings.HasPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return nil, false
}

// Forward sends a ProxyRequest to the upstream selected by the matching rule
// and returns the response. The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	routed := pr.RawPath
	if routed == "" {
		routed = pr.Path
	}

	rule, ok := s.Match(routed)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, routed)
	}

	upstreamURL := rule.UpstreamURL(routed, pr.RawQuery)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"path", pr.Path,
		"rule", rule.Prefix,
		"upstream", upstreamURL,
	)

	var body io.Reader = http.NoBody
	if pr.Body != nil && pr.ContentLength != 0 {
		body = pr.Body
	}

	req, err := http.NewRequestWithContext(pr.Ctx, pr.Method, upstreamURL, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if body != http.NoBody {
		// -1 (unknown length) makes the transport use chunked encoding.
		req.ContentLength = pr.ContentLength
	}
	req.Header = filterHeaders(pr.Header)
	if rule.ChangeOrigin {
		req.Host = rule.Target.Host
	} else {
		req.Host = pr.Host
	}
	// An empty User-Agent stops net/http from adding its own.
	if _, ok := req.Header["User-Agent"]; !ok {
		req.Header.Set("User-Agent", "")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forward to %s: %w", rule.Target.Host, err)
	}

	resp.Header = filterHeaders(resp.Header)
	return resp, nil
}

// UpstreamURL rewrites escapedPath and joins it onto the rule's target.
// The path stays percent-encoded throughout, so an escaped slash reaches the
// upstream as %2F. The target's own path acts as a base; query strings from
// both are kept.
func (r *Rule) UpstreamURL(escapedPath, rawQuery string) string {
	rewritten := r.Rewrite(escapedPath)
	if !strings.HasPrefix(rewritten, "/") {
		rewritten = "/" + rewritten
	}

	u := *r.Target
	raw := joinPath(r.Target.EscapedPath(), rewritten)
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path = p
		u.RawPath = raw
	} else {
		u.Path = raw
		u.RawPath = ""
	}
	switch {
	case u.RawQuery == "":
		u.RawQuery = rawQuery
	case rawQuery != "":
		u.RawQuery = u.RawQuery + "&" + rawQuery
	}
	return u.String()
}

func joinPath(base, path string) string {
	if base == "" || base == "/" {
		return path
	}
	return strings.TrimSuffix(base, "/") + path
}

// filterHeaders copies src without hop-by-hop headers, including any named
// in the Connection header.
func filterHeaders(src http.Header) http.Header {
	dst := src.Clone()
	if dst == nil {
		return make(http.Header)
	}
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = textproto.TrimString(name); name != "" {
				dst.Del(name)
			}
		}
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}
	return dst
}
