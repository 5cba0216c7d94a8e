// Package proxy forwards API path prefixes to backend processes the way the
// UI's development server does.
package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pt-nexus/webgate/internal/config"
)

// Rule forwards every request under Prefix to Target
type Rule struct {
	Prefix       string
	Target       string
	StripPrefix  bool
	ChangeOrigin bool
}

// DefaultRules returns the rules for the configured target profile. Rules
// from the proxy file win over the built-in ones.
func DefaultRules(cfg config.ProxyConfig) []Rule {
	if fileRules, ok := cfg.Targets[cfg.Target]; ok && len(fileRules) > 0 {
		rules := make([]Rule, 0, len(fileRules))
		for _, r := range fileRules {
			rules = append(rules, Rule{
				Prefix:       r.Prefix,
				Target:       r.Target,
				StripPrefix:  r.StripPrefix,
				ChangeOrigin: r.ChangeOrigin,
			})
		}
		return rules
	}

	return []Rule{
		{Prefix: "/api", Target: cfg.APIOrigin(), ChangeOrigin: true},
		{Prefix: "/go-api", Target: cfg.GoAPITarget, StripPrefix: true, ChangeOrigin: true},
	}
}

type route struct {
	rule    Rule
	prefix  string
	target  *url.URL
	handler *httputil.ReverseProxy
}

// Proxy dispatches requests to the rule with the longest matching prefix
type Proxy struct {
	routes []*route
	logger zerolog.Logger
}

// New builds one reverse proxy per rule
func New(rules []Rule, logger zerolog.Logger) (*Proxy, error) {
	p := &Proxy{logger: logger}

	for _, rule := range rules {
		target, err := url.Parse(rule.Target)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy target %q: %w", rule.Target, err)
		}
		if target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid proxy target %q: scheme and host are required", rule.Target)
		}
		prefix := "/" + strings.Trim(rule.Prefix, "/")

		rt := &route{rule: rule, prefix: prefix, target: target}
		rt.handler = &httputil.ReverseProxy{
			Director:     p.director(rt),
			ErrorHandler: p.errorHandler(rt),
		}
		p.routes = append(p.routes, rt)
	}

	sort.SliceStable(p.routes, func(i, j int) bool {
		return len(p.routes[i].prefix) > len(p.routes[j].prefix)
	})

	return p, nil
}

// Rules returns the rules in match order
func (p *Proxy) Rules() []Rule {
	out := make([]Rule, len(p.routes))
	for i, rt := range p.routes {
		out[i] = rt.rule
	}
	return out
}

// Match returns the rule serving path
func (p *Proxy) Match(path string) (Rule, bool) {
	if rt := p.match(path); rt != nil {
		return rt.rule, true
	}
	return Rule{}, false
}

func (p *Proxy) match(path string) *route {
	for _, rt := range p.routes {
		if path == rt.prefix || strings.HasPrefix(path, rt.prefix+"/") {
			return rt
		}
	}
	return nil
}

// ServeHTTP implements http.Handler
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt := p.match(r.URL.Path)
	if rt == nil {
		writeError(w, http.StatusNotFound, "no proxy rule for "+r.URL.Path)
		return
	}

	p.logger.Debug().
		Str("prefix", rt.prefix).
		Str("target", rt.target.String()).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("Forwarding request")

	rt.handler.ServeHTTP(w, r)
}

func (p *Proxy) director(rt *route) func(*http.Request) {
	return func(request *http.Request) {
		path, rawPath := request.URL.Path, request.URL.RawPath
		if rt.rule.StripPrefix {
			path = stripPrefix(path, rt.prefix)
			if rawPath != "" {
				rawPath = stripPrefix(rawPath, rt.prefix)
			}
		}

		request.URL.Scheme = rt.target.Scheme
		request.URL.Host = rt.target.Host
		request.URL.Path = joinPath(rt.target.Path, path)
		if rawPath != "" {
			request.URL.RawPath = joinPath(rt.target.EscapedPath(), rawPath)
		}
		if rt.target.RawQuery != "" {
			if request.URL.RawQuery == "" {
				request.URL.RawQuery = rt.target.RawQuery
			} else {
				request.URL.RawQuery = rt.target.RawQuery + "&" + request.URL.RawQuery
			}
		}

		if rt.rule.ChangeOrigin {
			request.Host = rt.target.Host
		}
		// Query and headers are preserved from the original request.
	}
}

func (p *Proxy) errorHandler(rt *route) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		p.logger.Error().
			Err(err).
			Str("target", rt.target.String()).
			Str("path", r.URL.Path).
			Msg("Backend request failed")
		writeError(w, http.StatusBadGateway, fmt.Sprintf("backend unavailable: %v", err))
	}
}

func stripPrefix(path, prefix string) string {
	path = strings.TrimPrefix(path, prefix)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func joinPath(base, path string) string {
	if base == "" || base == "/" {
		return path
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
	})
}
