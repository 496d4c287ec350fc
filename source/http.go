package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/arloliu/credshare/types"
)

// maxResponseBytes bounds the issue endpoint response body.
const maxResponseBytes = 1 << 20

// HTTPOption configures an HTTP source.
type HTTPOption func(*HTTP)

// WithHTTPClient sets the client used for issue calls.
//
// The default client has a 10s timeout; the coordinator's fetch timeout
// applies on top through the request context.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = client
	}
}

// WithRateLimit bounds issue calls from this source with a token bucket.
//
// Parameters:
//   - every: Minimum average interval between calls
//   - burst: Calls allowed back to back
//
// Example:
//
//	src := source.NewHTTP(url, session, source.WithRateLimit(time.Second, 2))
func WithRateLimit(every time.Duration, burst int) HTTPOption {
	return func(h *HTTP) {
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

// WithHeader adds a static header to every issue call.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) {
		h.header.Add(key, value)
	}
}

// HTTP fetches credentials from an issue endpoint.
//
// Each call performs GET <url> with "Authorization: Bearer <token>" taken
// from the session. The endpoint answers JSON of the form
// {"signedUrl": "...", "message": "..."}; "url" is accepted in place of
// "signedUrl".
type HTTP struct {
	url     string
	session types.Session
	client  *http.Client
	limiter *rate.Limiter
	header  http.Header
}

var _ types.CredentialSource = (*HTTP)(nil)

type issueResponse struct {
	SignedURL string `json:"signedUrl"`
	URL       string `json:"url"`
	Message   string `json:"message"`
}

// NewHTTP creates an HTTP credential source.
//
// Parameters:
//   - url: Issue endpoint
//   - session: Supplies the bearer token
//   - opts: Optional client, rate limit and extra headers
//
// Returns:
//   - *HTTP: Initialized source
//
// Example:
//
//	session := source.NewTokenSession(token)
//	src := source.NewHTTP("https://api.example.com/powerbi/signed-url", session)
func NewHTTP(url string, session types.Session, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		url:     url,
		session: session,
		client:  &http.Client{Timeout: 10 * time.Second},
		header:  make(http.Header),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// FetchCredential performs one issue call.
//
// Returns:
//   - types.Issued: Value and message from the endpoint
//   - error: Wraps ErrUnauthenticated on a missing token or a 401/403
//     answer, ErrEmptyCredential when the answer carries no value
func (h *HTTP) FetchCredential(ctx context.Context) (types.Issued, error) {
	token, err := h.session.Token(ctx)
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			return types.Issued{}, err
		}

		return types.Issued{}, fmt.Errorf("failed to get session token: %w", err)
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return types.Issued{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return types.Issued{}, fmt.Errorf("failed to build issue request: %w", err)
	}
	for k, vs := range h.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return types.Issued{}, fmt.Errorf("issue request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return types.Issued{}, fmt.Errorf("failed to read issue response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.Issued{}, fmt.Errorf("%w: issue endpoint returned %d", types.ErrUnauthenticated, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return types.Issued{}, fmt.Errorf("issue endpoint returned %d: %s", resp.StatusCode, snippet(body))
	}

	var out issueResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return types.Issued{}, fmt.Errorf("failed to decode issue response: %w", err)
	}

	value := out.SignedURL
	if value == "" {
		value = out.URL
	}
	if value == "" {
		if out.Message != "" {
			return types.Issued{}, fmt.Errorf("%w: %s", types.ErrEmptyCredential, out.Message)
		}

		return types.Issued{}, types.ErrEmptyCredential
	}

	return types.Issued{Value: value, Message: out.Message}, nil
}

// snippetRunes bounds the response body quoted in status errors.
const snippetRunes = 200

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(s) > snippetRunes {
		s = string([]rune(s)[:snippetRunes]) + "..."
	}

	return s
}
