package router

import (
	"fmt"
	"net/url"
	"strings"
)

// RedirectParam is the login-route query parameter holding the page to
// return to after authentication.
const RedirectParam = "redirect"

// Location is a resolved navigation target
type Location struct {
	Path  string
	Query url.Values
	Name  string
}

// FullPath returns the path followed by the encoded query, if any
func (l Location) FullPath() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

func (l Location) String() string {
	return l.FullPath()
}

// RedirectTarget returns the decoded redirect query parameter
func (l Location) RedirectTarget() string {
	return l.Query.Get(RedirectParam)
}

// Parse turns a path with optional query ("/a?b=c") into a Location
func Parse(raw string) (Location, error) {
	if !strings.HasPrefix(raw, "/") {
		return Location{}, fmt.Errorf("route %q must start with /", raw)
	}

	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return Location{}, fmt.Errorf("invalid route %q: %w", raw, err)
	}

	loc := Location{Path: normalizePath(u.Path)}
	if u.RawQuery != "" {
		q, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return Location{}, fmt.Errorf("invalid query in route %q: %w", raw, err)
		}
		loc.Query = q
	}
	return loc, nil
}

// LoginLocation is the login route carrying redirect as its return target
func LoginLocation(redirect string) Location {
	loc := Location{Path: LoginPath, Name: "login"}
	if redirect != "" {
		loc.Query = url.Values{RedirectParam: []string{redirect}}
	}
	return loc
}

// LoginURL returns "/login?redirect=<encoded fullPath>"
func LoginURL(fullPath string) string {
	return LoginPath + "?" + RedirectParam + "=" + url.QueryEscape(fullPath)
}
