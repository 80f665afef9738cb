package oauth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Transport is an http.RoundTripper that authenticates all requests
// using the provided TokenSource.
type Transport struct {
	// Source supplies the token to be used.
	Source TokenSource

	// Base is the base RoundTripper used to make the actual HTTP requests.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	Logger *slog.Logger
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// 0. Get Base Transport
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// 1. Get Token (Proactive check happens here)
	ctx := req.Context()
	token, err := t.Source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth: cannot get token: %w", err)
	}

	// 2. Clone Request and Set Header
	req2 := cloneRequest(req)
	req2.Header.Set("Authorization", "Bearer "+token.AccessToken)

	// 3. Execute Request
	resp, err := base.RoundTrip(req2)
	if err != nil {
		return nil, err
	}

	// 4. Reactive Retry (401)
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	t.logger().Warn("Got 401 Unauthorized, attempting force refresh", "url", req.URL.String())

	token, err = t.Source.ForceRefresh(ctx)
	if errors.Is(err, ErrRefreshUnsupported) {
		// Nothing to retry with; let the caller see the 401.
		return resp, nil
	}
	// Drain body to allow connection reuse
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("oauth: force refresh failed: %w", err)
	}

	retry := cloneRequest(req)
	retry.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("oauth: rewind body: %w", err)
		}
		retry.Body = body
	}

	return base.RoundTrip(retry)
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// cloneRequest returns a clone of the provided *http.Request.
// The clone is a shallow copy of the struct and its Header map.
func cloneRequest(r *http.Request) *http.Request {
	// shallow copy of the struct
	r2 := new(http.Request)
	*r2 = *r
	// deep copy of the Header
	r2.Header = make(http.Header, len(r.Header))
	for k, s := range r.Header {
		r2.Header[k] = append([]string(nil), s...)
	}
	return r2
}

// NewHTTPClient creates an HTTP client that authenticates every request.
func NewHTTPClient(source TokenSource, logger *slog.Logger) *http.Client {
	return &http.Client{
		Transport: &Transport{Source: source, Logger: logger},
	}
}
