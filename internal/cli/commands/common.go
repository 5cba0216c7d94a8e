package commands

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pt-nexus/webgate/internal/cli/userconfig"
	"github.com/pt-nexus/webgate/internal/client"
	"github.com/pt-nexus/webgate/internal/logger"
	"github.com/pt-nexus/webgate/internal/router"
	"github.com/pt-nexus/webgate/internal/storage"
)

const (
	// DefaultServerURL is where the gateway listens when nothing else is configured
	DefaultServerURL = "http://localhost:5173"

	// routeKey is the storage key holding the last location the router reached
	routeKey = "route"
)

// Globals holds the persistent flags shared by every command
type Globals struct {
	Server      string
	Storage     string
	StoragePath string
	LogLevel    string
}

// Option overrides a piece of the command wiring, mainly for tests
type Option func(*Env)

// WithStorage makes commands use store instead of opening a backend
func WithStorage(store storage.Storage) Option {
	return func(e *Env) {
		e.store = store
	}
}

// WithOutput redirects command output
func WithOutput(w io.Writer) Option {
	return func(e *Env) {
		e.out = w
	}
}

// WithServerURL fixes the gateway base URL
func WithServerURL(u string) Option {
	return func(e *Env) {
		e.serverURL = u
	}
}

// Env is the wiring a session-backed command runs with: one storage, one
// router guarded by it and one client sharing both through a session.
type Env struct {
	serverURL string
	store     storage.Storage
	router    *router.Router
	session   *client.Session
	client    *client.Client
	out       io.Writer
	logger    zerolog.Logger
}

// NewEnv resolves the server and storage from flags, environment and user
// config, then builds the router and API client. The router starts at the
// location saved by the previous command.
func NewEnv(g *Globals, opts ...Option) (*Env, error) {
	e := &Env{
		out:    os.Stdout,
		logger: logger.Component("cli"),
	}
	for _, opt := range opts {
		opt(e)
	}

	ucfg, err := userconfig.Load()
	if err != nil {
		return nil, err
	}

	if e.serverURL == "" {
		e.serverURL = resolveServerURL(g.Server, ucfg)
	}

	if e.store == nil {
		e.store, err = openStorage(g, ucfg)
		if err != nil {
			return nil, err
		}
	}

	routes := router.DefaultRoutes()
	e.router = router.New(routes,
		router.WithStart(savedLocation(e.store, router.NewTable(routes))),
		router.WithGuard(router.AuthGuard(e.store)),
		router.WithLogger(e.logger),
	)

	origin, err := url.Parse(e.serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", e.serverURL, err)
	}

	e.session = client.NewSession(e.store, e.router,
		client.WithOrigin(origin),
		client.WithLogger(e.logger),
	)

	e.client, err = client.New(e.serverURL, e.session)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// Router returns the guarded router
func (e *Env) Router() *router.Router {
	return e.router
}

// Client returns the API client
func (e *Env) Client() *client.Client {
	return e.client
}

// Storage returns the token storage
func (e *Env) Storage() storage.Storage {
	return e.store
}

// Close saves the router's location for the next command and releases the
// storage backend.
func (e *Env) Close() error {
	if err := e.store.Set(routeKey, e.router.Current().FullPath()); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to save current route")
	}
	if c, ok := e.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (e *Env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}

func resolveServerURL(flag string, ucfg *userconfig.UserConfig) string {
	for _, candidate := range []string{flag, os.Getenv("WEBGATE_SERVER"), ucfg.ServerURL} {
		if candidate != "" {
			return strings.TrimSuffix(candidate, "/")
		}
	}
	return DefaultServerURL
}

func openStorage(g *Globals, ucfg *userconfig.UserConfig) (storage.Storage, error) {
	kind := g.Storage
	if kind == "" {
		kind = ucfg.Storage
	}
	if kind == "" {
		kind = storage.KindFile
	}

	path := g.StoragePath
	if path == "" {
		path = ucfg.StoragePath
	}
	if path == "" {
		defaultPath, err := userconfig.DefaultStoragePath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
		if strings.EqualFold(kind, storage.KindSQLite) {
			path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
		}
	}

	store, err := storage.Open(kind, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", kind, err)
	}
	return store, nil
}

func savedLocation(store storage.Storage, table *router.Table) router.Location {
	home := router.Location{Path: "/"}
	if rt, ok := table.Match("/"); ok {
		home.Name = rt.Name
	}

	raw, err := store.Get(routeKey)
	if err != nil {
		return home
	}

	loc, err := router.Parse(raw)
	if err != nil {
		return home
	}
	rt, ok := table.Match(loc.Path)
	if !ok {
		return home
	}
	loc.Name = rt.Name
	return loc
}
