package router

import (
	"context"
	"time"

	"github.com/pt-nexus/webgate/internal/auth"
	"github.com/pt-nexus/webgate/internal/storage"
)

// AuthGuard redirects navigations to the login route when no usable token is
// stored. Paths in allow (plus the login path) are always reachable. The
// token is read on every navigation; nothing is cached between them.
func AuthGuard(store storage.Storage, allow ...string) Guard {
	allowed := map[string]bool{LoginPath: true}
	for _, p := range allow {
		allowed[normalizePath(p)] = true
	}

	return func(ctx context.Context, to, from Location) Decision {
		if allowed[to.Path] {
			return Allow()
		}

		if Authenticated(store) {
			return Allow()
		}

		return RedirectTo(LoginLocation(to.FullPath()))
	}
}

// Authenticated reports whether a usable token is stored. A storage failure
// counts as signed out.
func Authenticated(store storage.Storage) bool {
	token, err := storage.LoadToken(store)
	return err == nil && auth.Usable(token, time.Now())
}
