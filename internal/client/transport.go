package client

import "net/http"

// Transport is an http.RoundTripper running every request through a Session.
// Responses and transport errors reach the caller unchanged.
type Transport struct {
	Session *Session
	Base    http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// Clone the request to avoid mutating the original
	out := req.Clone(req.Context())
	t.Session.Prepare(out)

	resp, err := base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	t.Session.Observe(req.Context(), out, resp.StatusCode)
	return resp, nil
}

// NewHTTPClient returns an http.Client whose requests go through session.
// base may be nil.
func NewHTTPClient(session *Session, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &Transport{
			Session: session,
			Base:    base,
		},
	}
}
