package huaban_api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// sleeper pauses between page requests. It is an interface so tests can
// observe the delays without waiting.
type sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// timerSleeper waits on a timer and returns early when ctx is done.
type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Session represents a client session with the huaban web API.
// The credential is an opaque cookie string obtained by the caller; it is
// never parsed, only forwarded in the Cookie header of API requests.
type Session struct {
	baseURL      *url.URL         // Root of the JSON API
	imageBaseURL *url.URL         // Root of the asset CDN
	cookie       string           // Credential forwarded verbatim
	identity     IdentityProvider // Source of the User-Agent header
	http_client  *http.Client     // Shared, safe for concurrent use
	sleeper      sleeper
	pageDelayMin time.Duration
	pageDelayMax time.Duration
}

// SessionOption customizes a Session at construction time.
type SessionOption func(*Session)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.http_client = c
		}
	}
}

// WithIdentity sets the provider of the User-Agent header.
func WithIdentity(p IdentityProvider) SessionOption {
	return func(s *Session) {
		if p != nil {
			s.identity = p
		}
	}
}

// WithImageBaseURL overrides the asset CDN root. An unparsable URL is
// reported by NewSession.
func WithImageBaseURL(raw string) SessionOption {
	return func(s *Session) {
		s.imageBaseURL, _ = url.Parse(raw)
		if s.imageBaseURL == nil {
			s.imageBaseURL = &url.URL{}
		}
	}
}

// WithPageDelay sets the bounds of the randomized pause between page requests.
func WithPageDelay(min, max time.Duration) SessionOption {
	return func(s *Session) {
		s.pageDelayMin = min
		s.pageDelayMax = max
	}
}

// NewSession creates a new API session.
// Parameters:
//   - baseURL: Root of the JSON API (e.g., DefaultBaseURL)
//   - cookie: Credential forwarded in the Cookie header; may be empty for public boards
//   - opts: Optional settings such as WithHTTPClient or WithIdentity
//
// Returns:
//   - *Session: A new session object
//   - error: InvalidUrlError if either base URL is not absolute
func NewSession(baseURL string, cookie string, opts ...SessionOption) (*Session, error) {
	parsed, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	img, _ := url.Parse(DefaultImageBaseURL)
	s := &Session{
		baseURL:      parsed,
		imageBaseURL: img,
		cookie:       cookie,
		identity:     StaticIdentity(DefaultUserAgent),
		http_client:  &http.Client{Timeout: DefaultTimeout},
		sleeper:      timerSleeper{},
		pageDelayMin: DefaultPageDelayMin,
		pageDelayMax: DefaultPageDelayMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.imageBaseURL.Scheme == "" || s.imageBaseURL.Host == "" {
		return nil, InvalidUrlError(s.imageBaseURL.String())
	}
	if s.pageDelayMax < s.pageDelayMin {
		s.pageDelayMax = s.pageDelayMin
	}
	return s, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, InvalidUrlError(err.Error())
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, InvalidUrlError(raw)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return parsed, nil
}

// Close releases idle connections held by the HTTP client.
func (s *Session) Close() {
	s.http_client.CloseIdleConnections()
}

// buildUrl constructs an API URL below baseURL.
// Parameters:
//   - base: Root URL to extend
//   - path: Slash-separated path appended to the root
//   - params: Query parameters to include in the URL
//
// Returns:
//   - *url.URL: A URL object with the constructed URL
func buildUrl(base *url.URL, path string, params map[string]string) *url.URL {
	reqUrl := *base
	reqUrl.Path = base.Path + "/" + strings.TrimPrefix(path, "/")
	query := url.Values{}
	for param, value := range params {
		query.Set(param, value)
	}
	reqUrl.RawQuery = query.Encode()
	return &reqUrl
}

// pageDelay returns a random pause within the configured bounds.
func (s *Session) pageDelay() time.Duration {
	span := s.pageDelayMax - s.pageDelayMin
	if span <= 0 {
		return s.pageDelayMin
	}
	return s.pageDelayMin + rand.N(span+1)
}

// setHeaders applies the identity headers. The credential is only attached
// when withCookie is set.
func (s *Session) setHeaders(req *http.Request, withCookie bool) {
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", s.identity.UserAgent())
	req.Header.Set("Referer", siteOrigin+"/")
	req.Header.Set("Origin", siteOrigin)
	if withCookie && s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}
}

// httpGet sends a GET request and checks the status code.
// Parameters:
//   - ctx: Context bounding the request
//   - op: Short description of the operation for error messages
//   - u: Request URL
//   - withCookie: Whether the credential is forwarded
//
// Returns:
//   - *http.Response: The response; the caller must close its body
//   - error: NetworkError on transport failure or a non-2xx status
func (s *Session) httpGet(ctx context.Context, op string, u *url.URL, withCookie bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &NetworkError{Op: op, URL: u.String(), Err: err}
	}
	s.setHeaders(req, withCookie)
	res, err := s.http_client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, URL: u.String(), Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		res.Body.Close()
		return nil, &NetworkError{Op: op, URL: u.String(), StatusCode: res.StatusCode}
	}
	return res, nil
}

// getJSONField fetches u and decodes the named top-level field of the JSON
// body into v.
// Returns:
//   - []byte: Raw JSON response data
//   - error: NetworkError if the request failed
//   - error: ApiError if the body is not JSON or the field is missing or null
func (s *Session) getJSONField(ctx context.Context, op string, u *url.URL, field string, v any) ([]byte, error) {
	res, err := s.httpGet(ctx, op, u, true)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, URL: u.String(), Err: err}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return body, ApiError(fmt.Sprintf("%s: invalid JSON: %v", op, err))
	}
	raw, ok := top[field]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return body, ApiError(fmt.Sprintf("%s: response has no %q field: %s", op, field, truncate(body, 512)))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return body, ApiError(fmt.Sprintf("%s: malformed %q field: %v", op, field, err))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
