package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// maxRedirects bounds route and guard redirects within one navigation
const maxRedirects = 10

var (
	ErrNotFound     = errors.New("route not found")
	ErrRedirectLoop = errors.New("too many redirects")
	ErrAborted      = errors.New("navigation aborted")
)

// Decision is a guard's verdict on a navigation
type Decision struct {
	redirect *Location
}

// Allow lets the navigation continue
func Allow() Decision {
	return Decision{}
}

// RedirectTo replaces the navigation target with loc
func RedirectTo(loc Location) Decision {
	return Decision{redirect: &loc}
}

// Redirect returns the replacement target, if any
func (d Decision) Redirect() (Location, bool) {
	if d.redirect == nil {
		return Location{}, false
	}
	return *d.redirect, true
}

// Guard runs before a navigation is committed. Guards must not navigate the
// router they are registered on.
type Guard func(ctx context.Context, to, from Location) Decision

// Router tracks the current location and runs guards on every navigation.
// Navigations are serialized.
type Router struct {
	mu      sync.Mutex
	table   *Table
	guards  []Guard
	current Location
	history []Location
	logger  zerolog.Logger
}

// Option configures a Router
type Option func(*Router)

// WithGuard registers a navigation guard
func WithGuard(g Guard) Option {
	return func(r *Router) {
		r.guards = append(r.guards, g)
	}
}

// WithStart sets the location the router starts at without running guards
func WithStart(loc Location) Option {
	return func(r *Router) {
		r.current = loc
	}
}

// WithLogger sets the router's logger
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// New creates a router over routes, starting at "/"
func New(routes []Route, opts ...Option) *Router {
	r := &Router{
		table:  NewTable(routes),
		logger: zerolog.Nop(),
	}
	if home, ok := r.table.Match("/"); ok {
		r.current = Location{Path: "/", Name: home.Name}
	} else {
		r.current = Location{Path: "/"}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BeforeEach registers a guard run on every subsequent navigation
func (r *Router) BeforeEach(g Guard) {
	r.mu.Lock()
	r.guards = append(r.guards, g)
	r.mu.Unlock()
}

// Current returns the current location
func (r *Router) Current() Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History returns a copy of the committed navigation entries
func (r *Router) History() []Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Location, len(r.history))
	copy(out, r.history)
	return out
}

// Table returns the router's route table
func (r *Router) Table() *Table {
	return r.table
}

// Match reports whether path resolves to a route
func (r *Router) Match(path string) (Route, bool) {
	return r.table.Match(path)
}

// Resolve parses raw and applies route-level redirects without running guards
func (r *Router) Resolve(raw string) (Location, error) {
	loc, err := Parse(raw)
	if err != nil {
		return Location{}, err
	}
	return r.resolve(loc, 0)
}

func (r *Router) resolve(loc Location, hops int) (Location, error) {
	for {
		route, ok := r.table.Match(loc.Path)
		if !ok {
			return Location{}, fmt.Errorf("%w: %s", ErrNotFound, loc.Path)
		}
		if route.Redirect == "" {
			loc.Path = route.Path
			loc.Name = route.Name
			return loc, nil
		}

		hops++
		if hops > maxRedirects {
			return Location{}, ErrRedirectLoop
		}
		next, err := Parse(route.Redirect)
		if err != nil {
			return Location{}, err
		}
		loc = next
	}
}

// Push navigates to raw and appends the result to the history
func (r *Router) Push(ctx context.Context, raw string) (Location, error) {
	return r.navigate(ctx, raw, false)
}

// Replace navigates to raw and overwrites the newest history entry
func (r *Router) Replace(ctx context.Context, raw string) (Location, error) {
	return r.navigate(ctx, raw, true)
}

func (r *Router) navigate(ctx context.Context, raw string, replace bool) (Location, error) {
	target, err := Parse(raw)
	if err != nil {
		return Location{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.current
	to, err := r.runGuards(ctx, target, from)
	if err != nil {
		r.logger.Debug().Err(err).Str("to", raw).Msg("Navigation rejected")
		return Location{}, err
	}

	if err := ctx.Err(); err != nil {
		return Location{}, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	if replace && len(r.history) > 0 {
		r.history[len(r.history)-1] = to
	} else {
		r.history = append(r.history, to)
	}
	r.current = to

	r.logger.Debug().
		Str("from", from.FullPath()).
		Str("to", to.FullPath()).
		Bool("replace", replace).
		Msg("Navigated")

	return to, nil
}

// runGuards resolves target and runs every guard against it. A redirect
// restarts the guard chain on the new target.
func (r *Router) runGuards(ctx context.Context, target, from Location) (Location, error) {
	hops := 0
	for {
		to, err := r.resolve(target, hops)
		if err != nil {
			return Location{}, err
		}

		redirected := false
		for _, guard := range r.guards {
			if next, ok := guard(ctx, to, from).Redirect(); ok {
				target = next
				redirected = true
				break
			}
		}
		if !redirected {
			return to, nil
		}

		hops++
		if hops > maxRedirects {
			return Location{}, ErrRedirectLoop
		}
	}
}
