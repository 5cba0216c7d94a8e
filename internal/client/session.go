// Package client attaches the stored session token to outbound API requests
// and sends the user to the login route when the backend rejects it.
//
// Both dispatch paths, the RoundTripper (Transport) and the JSON client
// (Client), go through the same Session.Prepare and Session.Observe.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pt-nexus/webgate/internal/auth"
	"github.com/pt-nexus/webgate/internal/router"
	"github.com/pt-nexus/webgate/internal/storage"
)

const (
	DefaultAPIPrefix  = "/api"
	DefaultAuthPrefix = "/api/auth/"
)

// Navigator is the part of the router the failure handler needs
type Navigator interface {
	Current() router.Location
	Replace(ctx context.Context, raw string) (router.Location, error)
}

// Session is the client context every request is built from
type Session struct {
	storage    storage.Storage
	navigator  Navigator
	apiPrefix  string
	authPrefix string
	basePath   string
	origin     *url.URL
	logger     zerolog.Logger
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithAPIPrefix sets the path prefix whose requests carry the token
func WithAPIPrefix(prefix string) SessionOption {
	return func(s *Session) {
		s.apiPrefix = prefix
	}
}

// WithAuthPrefix sets the path prefix of the authentication sub-flow
func WithAuthPrefix(prefix string) SessionOption {
	return func(s *Session) {
		s.authPrefix = prefix
	}
}

// WithBasePath sets the path the application is mounted under. The API and
// auth prefixes are matched against the request path below it, so with base
// path "/app" a request for "/app/api/info" is an API request.
func WithBasePath(base string) SessionOption {
	return func(s *Session) {
		s.basePath = strings.TrimRight(base, "/")
	}
}

// WithOrigin limits token injection to requests for origin's host. A path on
// origin becomes the base path unless one is set.
func WithOrigin(origin *url.URL) SessionOption {
	return func(s *Session) {
		s.origin = origin
		if s.basePath == "" && origin != nil {
			s.basePath = strings.TrimRight(origin.Path, "/")
		}
	}
}

// WithLogger sets the session's logger
func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates a session reading its token from store. nav may be nil,
// in which case authorization failures are passed through without a redirect.
func NewSession(store storage.Storage, nav Navigator, opts ...SessionOption) *Session {
	s := &Session{
		storage:    store,
		navigator:  nav,
		apiPrefix:  DefaultAPIPrefix,
		authPrefix: DefaultAuthPrefix,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Storage returns the session's token storage
func (s *Session) Storage() storage.Storage {
	return s.storage
}

// Navigator returns the session's navigator, possibly nil
func (s *Session) Navigator() Navigator {
	return s.navigator
}

// BasePath returns the path the application is mounted under, without a
// trailing slash
func (s *Session) BasePath() string {
	return s.basePath
}

// AuthPath returns the path of an endpoint of the authentication sub-flow,
// relative to the base path: AuthPath("login") is "/api/auth/login" by default.
func (s *Session) AuthPath(name string) string {
	return strings.TrimRight(s.authPrefix, "/") + "/" + strings.TrimLeft(name, "/")
}

// Prepare adds "Authorization: Bearer <token>" to req when it targets the API
// prefix, a token is stored and the caller has not set the header already.
// req is modified in place.
func (s *Session) Prepare(req *http.Request) {
	s.prepare(req, s.relativePath(req.URL.Path))
}

// prepare is Prepare with the request path already made relative to the base
// path. Both dispatch paths end up here.
func (s *Session) prepare(req *http.Request, rel string) {
	if !s.targetsAPI(req.URL, rel) {
		return
	}
	if req.Header.Get(auth.HeaderAuthorization) != "" {
		return
	}

	token, err := storage.LoadToken(s.storage)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read session token")
		return
	}
	if token == "" {
		return
	}

	req.Header.Set(auth.HeaderAuthorization, auth.BearerValue(token))
	s.logger.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("Attached session token")
}

// Observe handles the response status of req. On 401 outside the
// authentication sub-flow it replaces the current route with the login route,
// carrying the current full path as the redirect target. It reports whether a
// redirect was issued and never fails; navigation errors are logged.
func (s *Session) Observe(ctx context.Context, req *http.Request, status int) bool {
	return s.observe(ctx, req, s.relativePath(req.URL.Path), status)
}

func (s *Session) observe(ctx context.Context, req *http.Request, rel string, status int) bool {
	if status != http.StatusUnauthorized || rel == "" {
		return false
	}
	if s.inAuthFlow(rel) {
		return false
	}
	if s.navigator == nil {
		return false
	}

	current := s.navigator.Current()
	target := router.LoginURL(current.FullPath())
	if current.Path == router.LoginPath {
		// Already on the login view: keep the redirect target it carries.
		target = current.FullPath()
	}

	// The redirect outlives the request that triggered it.
	if _, err := s.navigator.Replace(context.WithoutCancel(ctx), target); err != nil {
		s.logger.Warn().Err(err).Str("target", target).Msg("Failed to redirect to login")
		return false
	}

	s.logger.Debug().
		Str("path", req.URL.Path).
		Str("from", current.FullPath()).
		Msg("Authorization failed, redirected to login")
	return true
}

func (s *Session) targetsAPI(u *url.URL, rel string) bool {
	if rel == "" {
		return false
	}
	if s.origin != nil && u.Host != "" && !strings.EqualFold(u.Host, s.origin.Host) {
		return false
	}
	return hasPathPrefix(rel, s.apiPrefix)
}

// relativePath strips the base path from p. It returns "" for paths outside
// the base path, which are neither prepared nor observed.
func (s *Session) relativePath(p string) string {
	if s.basePath == "" {
		return p
	}
	if !hasPathPrefix(p, s.basePath) {
		return ""
	}
	rel := strings.TrimPrefix(p, s.basePath)
	if rel == "" {
		return "/"
	}
	return rel
}

func (s *Session) inAuthFlow(path string) bool {
	return hasPathPrefix(path, s.authPrefix)
}

// hasPathPrefix matches whole segments: "/api" matches "/api" and "/api/x"
// but not "/apix".
func hasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
