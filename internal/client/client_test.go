package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pt-nexus/webgate/internal/router"
	"github.com/pt-nexus/webgate/internal/storage"
)

// captured is what the mock backend saw for one request
type captured struct {
	Path          string
	Authorization string
	RequestedWith string
	Cookie        string
}

// mockBackend records every request and answers 401 for paths under
// /api/protected and /api/auth/login-fail, 200 otherwise.
type mockBackend struct {
	mu       sync.Mutex
	requests []captured
	server   *httptest.Server
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()

	m := &mockBackend{}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, captured{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestedWith: r.Header.Get("X-Requested-With"),
			Cookie:        r.Header.Get("Cookie"),
		})
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/protected"),
			r.URL.Path == "/api/auth/login-fail":
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "Invalid or expired token"}`))
		case r.URL.Path == "/api/broken":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"success": false, "message": "boom"}`))
		default:
			w.Write([]byte(`{"success": true}`))
		}
	}))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockBackend) last(t *testing.T) captured {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.requests)
	return m.requests[len(m.requests)-1]
}

// dispatcher sends one GET through one of the two request paths
type dispatcher func(t *testing.T, ctx context.Context, path string, header http.Header) int

func fetchPath(session *Session, baseURL string) dispatcher {
	httpClient := NewHTTPClient(session, nil)
	return func(t *testing.T, ctx context.Context, path string, header http.Header) int {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
		require.NoError(t, err)
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
}

func jsonPath(session *Session, baseURL string) dispatcher {
	return func(t *testing.T, ctx context.Context, path string, header http.Header) int {
		c, err := New(baseURL, session)
		require.NoError(t, err)

		var opts []RequestOption
		for k := range header {
			opts = append(opts, WithRequestHeader(k, header.Get(k)))
		}
		err = c.Get(ctx, path, nil, opts...)
		var respErr *ResponseError
		if errors.As(err, &respErr) {
			return respErr.StatusCode
		}
		require.NoError(t, err)
		return http.StatusOK
	}
}

type fixture struct {
	backend *mockBackend
	store   *storage.Memory
	router  *router.Router
	session *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		backend: newMockBackend(t),
		store:   storage.NewMemory(),
		router:  router.New(router.DefaultRoutes()),
	}
	f.session = NewSession(f.store, f.router)
	return f
}

func forEachPath(t *testing.T, fn func(t *testing.T, f *fixture, send dispatcher)) {
	paths := map[string]func(*Session, string) dispatcher{
		"transport": fetchPath,
		"json":      jsonPath,
	}
	for name, mk := range paths {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			fn(t, f, mk(f.session, f.backend.server.URL))
		})
	}
}

func TestNonAPIPathGetsNoToken(t *testing.T) {
	forEachPath(t, func(t *testing.T, f *fixture, send dispatcher) {
		require.NoError(t, storage.SaveToken(f.store, "tok"))

		for _, path := range []string{"/", "/assets/app.js", "/apix/info", "/go-api/records"} {
			send(t, context.Background(), path, nil)
			require.Empty(t, f.backend.last(t).Authorization, path)
		}
	})
}

func TestAPIPathGetsToken(t *testing.T) {
	forEachPath(t, func(t *testing.T, f *fixture, send dispatcher) {
		require.NoError(t, storage.SaveToken(f.store, "tok"))

		for _, path := range []string{"/api", "/api/info", "/api/torrents?page=2"} {
			send(t, context.Background(), path, nil)
			require.Equal(t, "Bearer tok", f.backend.last(t).Authorization, path)
		}
	})
}

func TestAPIPathWithoutTokenSendsNoHeader(t *testing.T) {
	forEachPath(t, func(t *testing.T, f *fixture, send dispatcher) {
		send(t, context.Background(), "/api/info", nil)
		require.Empty(t, f.backend.last(t).Authorization)
	})
}

func TestCallerAuthorizationWins(t *testing.T) {
	forEachPath(t, func(t *testing.T, f *fixture, send dispatcher) {
		require.NoError(t, storage.SaveToken(f.store, "tok"))

		header := http.Header{}
		header.Set("Authorization", "Bearer caller")
		send(t, context.Background(), "/api/info", header)
		require.Equal(t, "Bearer caller", f.backend.last(t).Authorization)
	})
}

func TestUnauthorizedRedirectsToLogin(t *testing.T) {
	forEachPath(t, func(t *testing.T, f *fixture, send dispatcher) {
		ctx := context.Background()
		_, err := f.router.Push(ctx, "/torrents?page=2")
		require.NoError(t, err)
		before := len(f.router.History())

		status := send(t, ctx, "/api/protected/torrents", nil)

		// The original response still reaches the caller
		require.Equal(t, http.StatusUnauthorized, status)

		current := f.router.Current()
		require.Equal(t, router.LoginPath, current.Path)
		require.Equal(t, "/torrents?page=2", current.RedirectTarget())
		require.Equal(t, "/login?redirect="+url.QueryEscape("/torrents?page=2"), current.FullPath())

		// Replace, not push
		require.Len(t, f.router.History(), before)
	})
}

func TestUnauthorizedInAuthFlowDoesNotRedirect(t *testing.T) {
	forEachPath(t, func(t *testing.T, f *fixture, send dispatcher) {
		ctx := context.Background()
		_, err := f.router.Push(ctx, "/info")
		require.NoError(t, err)

		status := send(t, ctx, "/api/auth/login-fail", nil)
		require.Equal(t, http.StatusUnauthorized, status)
		require.Equal(t, "/info", f.router.Current().FullPath())
	})
}

func TestOtherFailuresPassThrough(t *testing.T) {
	forEachPath(t, func(t *testing.T, f *fixture, send dispatcher) {
		ctx := context.Background()
		_, err := f.router.Push(ctx, "/info")
		require.NoError(t, err)

		status := send(t, ctx, "/api/broken", nil)
		require.Equal(t, http.StatusInternalServerError, status)
		require.Equal(t, "/info", f.router.Current().FullPath())
	})
}

func TestUnauthorizedOnLoginViewKeepsRedirect(t *testing.T) {
	forEachPath(t, func(t *testing.T, f *fixture, send dispatcher) {
		ctx := context.Background()
		_, err := f.router.Push(ctx, "/data")
		require.NoError(t, err)

		send(t, ctx, "/api/protected/a", nil)
		send(t, ctx, "/api/protected/b", nil)

		require.Equal(t, "/data", f.router.Current().RedirectTarget())
	})
}

func TestConcurrentUnauthorizedAcrossPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.router.Push(ctx, "/sites")
	require.NoError(t, err)

	senders := []dispatcher{
		fetchPath(f.session, f.backend.server.URL),
		jsonPath(f.session, f.backend.server.URL),
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		send := senders[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			send(t, ctx, "/api/protected/x", nil)
		}()
	}
	wg.Wait()

	// Whichever redirect lands last, the target is the same
	require.Equal(t, router.LoginURL("/sites"), f.router.Current().FullPath())
	require.Len(t, f.router.History(), 1)
}

func TestTransportErrorPassesThrough(t *testing.T) {
	f := newFixture(t)
	f.backend.server.Close()

	httpClient := NewHTTPClient(f.session, nil)
	_, err := httpClient.Get(f.backend.server.URL + "/api/info")
	require.Error(t, err)
	require.Equal(t, "/", f.router.Current().Path)
}

func TestTransportDoesNotMutateCallerRequest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, storage.SaveToken(f.store, "tok"))

	req, err := http.NewRequest(http.MethodGet, f.backend.server.URL+"/api/info", nil)
	require.NoError(t, err)

	resp, err := NewHTTPClient(f.session, nil).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Empty(t, req.Header.Get("Authorization"))
	require.Equal(t, "Bearer tok", f.backend.last(t).Authorization)
}

func TestJSONClientForcedHeaders(t *testing.T) {
	f := newFixture(t)
	c, err := New(f.backend.server.URL, f.session, WithHeader("Cookie", "session=leak"))
	require.NoError(t, err)

	require.NoError(t, c.Get(context.Background(), "/api/info", nil,
		WithRequestHeader("X-Requested-With", "fetch"),
		WithRequestHeader("Cookie", "other=leak"),
	))

	last := f.backend.last(t)
	require.Equal(t, "XMLHttpRequest", last.RequestedWith)
	require.Empty(t, last.Cookie)
}

func TestOriginRestriction(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, storage.SaveToken(f.store, "tok"))

	origin, err := url.Parse("http://backend.invalid")
	require.NoError(t, err)
	session := NewSession(f.store, f.router, WithOrigin(origin))

	req, err := http.NewRequest(http.MethodGet, f.backend.server.URL+"/api/info", nil)
	require.NoError(t, err)
	session.Prepare(req)
	require.Empty(t, req.Header.Get("Authorization"))

	req, err = http.NewRequest(http.MethodGet, "http://backend.invalid/api/info", nil)
	require.NoError(t, err)
	session.Prepare(req)
	require.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
}

func TestCustomPrefixes(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, storage.SaveToken(store, "tok"))
	r := router.New(router.DefaultRoutes())
	session := NewSession(store, r, WithAPIPrefix("/go-api/"), WithAuthPrefix("/go-api/login"))

	req := httptest.NewRequest(http.MethodGet, "/go-api/records", nil)
	session.Prepare(req)
	require.Equal(t, "Bearer tok", req.Header.Get("Authorization"))

	req = httptest.NewRequest(http.MethodGet, "/api/info", nil)
	session.Prepare(req)
	require.Empty(t, req.Header.Get("Authorization"))

	loginReq := httptest.NewRequest(http.MethodPost, "/go-api/login", nil)
	require.False(t, session.Observe(context.Background(), loginReq, http.StatusUnauthorized))
	require.True(t, session.Observe(context.Background(), req, http.StatusUnauthorized))
}

func TestObserveWithoutNavigator(t *testing.T) {
	session := NewSession(storage.NewMemory(), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
	require.False(t, session.Observe(context.Background(), req, http.StatusUnauthorized))
}

func TestObserveCancelledContextStillRedirects(t *testing.T) {
	r := router.New(router.DefaultRoutes())
	session := NewSession(storage.NewMemory(), r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/info", nil)
	require.True(t, session.Observe(ctx, req, http.StatusUnauthorized))
	require.Equal(t, router.LoginPath, r.Current().Path)
}

func TestResponseError(t *testing.T) {
	f := newFixture(t)
	c, err := New(f.backend.server.URL, f.session)
	require.NoError(t, err)

	err = c.Get(context.Background(), "/api/protected/info", nil)
	require.ErrorIs(t, err, ErrUnauthorized)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	require.True(t, respErr.Redirected)
	require.Equal(t, "Invalid or expired token", respErr.Message())

	err = c.Get(context.Background(), "/api/broken", nil)
	require.NotErrorIs(t, err, ErrUnauthorized)
	require.Contains(t, err.Error(), "status 500")
	require.Contains(t, err.Error(), "boom")
}

func TestJSONClientDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&in)
		}
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		json.NewEncoder(w).Encode(map[string]any{"echo": in["name"], "method": r.Method})
	}))
	defer server.Close()

	c, err := New(server.URL+"/", NewSession(storage.NewMemory(), nil))
	require.NoError(t, err)

	var out struct {
		Echo   string `json:"echo"`
		Method string `json:"method"`
	}
	require.NoError(t, c.Post(context.Background(), "/api/sites?page=2", map[string]string{"name": "ssd"}, &out))
	require.Equal(t, "ssd", out.Echo)
	require.Equal(t, http.MethodPost, out.Method)

	var raw json.RawMessage
	require.NoError(t, c.Put(context.Background(), "api/sites", map[string]string{"name": "x"}, &raw, WithQuery(url.Values{"page": {"2"}})))
	require.Contains(t, string(raw), `"method":"PUT"`)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New("localhost:5173", NewSession(storage.NewMemory(), nil))
	require.Error(t, err)
}

// mountedBackend serves the API below /app, the way a gateway mounted on a
// sub-path does.
func mountedBackend(t *testing.T) *mockBackend {
	t.Helper()

	m := &mockBackend{}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, captured{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
		})
		m.mu.Unlock()

		switch r.URL.Path {
		case "/app/api/protected", "/app/api/auth/login":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.Write([]byte(`{"success": true}`))
		}
	}))
	t.Cleanup(m.server.Close)
	return m
}

func TestBaseURLWithPath(t *testing.T) {
	backend := mountedBackend(t)
	store := storage.NewMemory()
	require.NoError(t, storage.SaveToken(store, "tok"))
	r := router.New(router.DefaultRoutes(), router.WithStart(router.Location{Path: "/data", Name: "data"}))

	c, err := New(backend.server.URL+"/app/", NewSession(store, r))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Get(ctx, "/api/info", nil))
	require.Equal(t, captured{Path: "/app/api/info", Authorization: "Bearer tok"}, backend.last(t))

	require.NoError(t, c.Get(ctx, "/apix", nil))
	require.Empty(t, backend.last(t).Authorization)

	// The login endpoint below the base path is still part of the auth flow
	err = c.Post(ctx, "/api/auth/login", LoginRequest{Username: "admin"}, nil)
	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	require.False(t, respErr.Redirected)
	require.Equal(t, "/data", r.Current().FullPath())

	err = c.Get(ctx, "/api/protected", nil)
	require.True(t, errors.As(err, &respErr))
	require.True(t, respErr.Redirected)
	require.Equal(t, "/login?redirect=%2Fdata", r.Current().FullPath())
}

func TestTransportWithBasePath(t *testing.T) {
	backend := mountedBackend(t)
	store := storage.NewMemory()
	require.NoError(t, storage.SaveToken(store, "tok"))
	r := router.New(router.DefaultRoutes(), router.WithStart(router.Location{Path: "/sites", Name: "sites"}))

	origin, err := url.Parse(backend.server.URL + "/app")
	require.NoError(t, err)
	session := NewSession(store, r, WithOrigin(origin))
	require.Equal(t, "/app", session.BasePath())

	send := fetchPath(session, backend.server.URL)
	ctx := context.Background()

	require.Equal(t, http.StatusOK, send(t, ctx, "/app/api/info", nil))
	require.Equal(t, "Bearer tok", backend.last(t).Authorization)

	// Outside the mount point nothing is attached
	require.Equal(t, http.StatusOK, send(t, ctx, "/api/info", nil))
	require.Empty(t, backend.last(t).Authorization)

	require.Equal(t, http.StatusUnauthorized, send(t, ctx, "/app/api/auth/login", nil))
	require.Equal(t, "/sites", r.Current().FullPath())

	require.Equal(t, http.StatusUnauthorized, send(t, ctx, "/app/api/protected", nil))
	require.Equal(t, "/login?redirect=%2Fsites", r.Current().FullPath())
}

func TestAuthEndpointsFollowAuthPrefix(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		var req LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		switch {
		case r.URL.Path == "/api/v2/auth/login" && req.Password == "secret1":
			json.NewEncoder(w).Encode(LoginResponse{Success: true, Token: "tok"})
		case r.URL.Path == "/api/v2/auth/status":
			json.NewEncoder(w).Encode(StatusResponse{Success: true, Username: "admin"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	r := router.New(router.DefaultRoutes())
	session := NewSession(storage.NewMemory(), r, WithAuthPrefix("/api/v2/auth/"))
	require.Equal(t, "/api/v2/auth/login", session.AuthPath("login"))

	c, err := New(server.URL, session)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Login(ctx, "admin", "wrong")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "/", r.Current().FullPath())

	_, err = c.Login(ctx, "admin", "secret1")
	require.NoError(t, err)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "admin", status.Username)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"/api/v2/auth/login", "/api/v2/auth/login", "/api/v2/auth/status"}, paths)
}

func TestTimeoutIndependentOfOptionOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	session := NewSession(storage.NewMemory(), nil)

	custom := &http.Client{}
	before, err := New(server.URL, session, WithTimeout(20*time.Millisecond), WithHTTPClient(custom))
	require.NoError(t, err)
	after, err := New(server.URL, session, WithHTTPClient(custom), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	for _, c := range []*Client{before, after} {
		err := c.Get(context.Background(), "/api/slow", nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}

	// The caller's client is left as it was
	require.Zero(t, custom.Timeout)
}
