package router

import "strings"

// LoginPath is the path of the login view
const LoginPath = "/login"

// Route is one entry of the route table. Child paths are relative to the
// parent.
type Route struct {
	Path     string
	Name     string
	Redirect string
	Children []Route
}

// DefaultRoutes returns the application's route table
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/", Name: "home"},
		{Path: "/info", Name: "info"},
		{Path: "/torrents", Name: "torrents"},
		{Path: "/data", Name: "data"},
		{Path: "/sites", Name: "sites"},
		{
			Path:     "/settings",
			Name:     "settings",
			Redirect: "/settings/general",
			Children: []Route{
				{Path: "general", Name: "settings-general"},
				{Path: "downloader", Name: "settings-downloader"},
				{Path: "cookie", Name: "settings-cookie"},
			},
		},
		{Path: LoginPath, Name: "login"},
	}
}

// Table is a flattened route table keyed by absolute path
type Table struct {
	routes map[string]Route
	order  []string
}

// NewTable flattens routes, joining child paths onto their parents
func NewTable(routes []Route) *Table {
	t := &Table{routes: make(map[string]Route)}
	t.add("", routes)
	return t
}

func (t *Table) add(parent string, routes []Route) {
	for _, r := range routes {
		full := joinPath(parent, r.Path)
		flat := r
		flat.Path = full
		flat.Children = nil
		if _, exists := t.routes[full]; !exists {
			t.order = append(t.order, full)
		}
		t.routes[full] = flat
		t.add(full, r.Children)
	}
}

// Match returns the route registered for path. A trailing slash is ignored.
func (t *Table) Match(path string) (Route, bool) {
	r, ok := t.routes[normalizePath(path)]
	return r, ok
}

// Routes returns the flattened routes in declaration order
func (t *Table) Routes() []Route {
	out := make([]Route, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, t.routes[p])
	}
	return out
}

func joinPath(parent, child string) string {
	if strings.HasPrefix(child, "/") || parent == "" {
		return normalizePath(child)
	}
	return normalizePath(strings.TrimSuffix(parent, "/") + "/" + child)
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
