package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paydash/internal/domain"
	"paydash/internal/session"
)

// TokenSource supplies the current session token. The stored value may be of
// ambiguous shape; the client runs it through token extraction before use.
type TokenSource interface {
	Token() (string, error)
}

// SessionClearer wipes persisted session state. Invoked on a 401 only.
type SessionClearer interface {
	Clear() error
}

// Client is the single outbound call primitive every resource accessor goes
// through. It normalizes the backend's inconsistent success/error envelopes
// into either a raw payload or a *domain.APIError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	sessions   SessionClearer
	// onUnauthorized fires after session state is cleared on a 401; the
	// host uses it to force a return to the login entry point. Session
	// loss must short-circuit every in-flight caller, not just this one.
	onUnauthorized func()
	logger         *slog.Logger
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		logger: slog.Default().With("module", "api_client"),
	}
}

// WithSession attaches a token source and the session state cleared on 401.
func (c *Client) WithSession(tokens TokenSource, sessions SessionClearer) *Client {
	c.tokens = tokens
	c.sessions = sessions
	return c
}

// OnUnauthorized registers the forced-logout hook.
func (c *Client) OnUnauthorized(fn func()) *Client {
	c.onUnauthorized = fn
	return c
}

// request performs one call and returns the unwrapped payload. A non-nil
// error is always either a *domain.NetworkError or a *domain.APIError.
// No retries happen here; retry policy belongs to callers.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, domain.NewFatalNetworkError("encode", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, domain.NewFatalNetworkError("request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/plain")

	if c.tokens != nil {
		stored, err := c.tokens.Token()
		if err != nil {
			c.logger.Warn("token read failed", slog.Any("error", err))
		}
		// Guard against a stored session object leaking through as a
		// string: re-extract, discard when unusable.
		if tok := session.ExtractToken(stored); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("do", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("read", err)
	}

	// JSON if it parses, raw text otherwise. Empty bodies stay nil.
	var parsed any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			parsed = string(raw)
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.expireSession()
		return nil, &domain.APIError{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
			Raw:     string(raw),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, resp.Status, parsed, raw)
	}

	// Transport succeeded, but the business operation may still have
	// failed: {success:false, error:{...}} under HTTP 200.
	if obj, ok := parsed.(map[string]any); ok {
		if success, present := obj["success"].(bool); present && !success {
			src := obj["error"]
			if src == nil {
				src = parsed
			}
			return nil, newAPIError(http.StatusOK, resp.Status, src, raw)
		}
	}

	return unwrapData(raw), nil
}

// expireSession clears persisted credentials and fires the forced-logout
// hook exactly once per 401 response.
func (c *Client) expireSession() {
	if c.sessions != nil {
		if err := c.sessions.Clear(); err != nil {
			c.logger.Error("session clear failed", slog.Any("error", err))
		}
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	c.logger.Warn("session expired, forcing logout")
}

// newAPIError builds an APIError from whatever shape the backend produced.
func newAPIError(status int, statusText string, payload any, raw []byte) *domain.APIError {
	apiErr := &domain.APIError{
		Status: status,
		Raw:    string(raw),
	}

	obj, _ := payload.(map[string]any)
	if obj != nil {
		if code, ok := obj["code"].(string); ok {
			apiErr.Code = code
		} else if nested, ok := obj["error"].(map[string]any); ok {
			if code, ok := nested["code"].(string); ok {
				apiErr.Code = code
			}
		}
		apiErr.Details = extractDetails(obj)
	}

	apiErr.Message = probeMessage(payload, statusText)
	return apiErr
}

// probeMessage extracts a human-readable message from an arbitrary error
// payload. Probe order: message, error (string or {message}), title, the
// first details key holding a non-empty array, a JSON dump, the HTTP status
// text.
func probeMessage(payload any, statusText string) string {
	switch p := payload.(type) {
	case string:
		if p != "" {
			return p
		}
	case map[string]any:
		if msg, ok := p["message"].(string); ok && msg != "" {
			return msg
		}
		switch e := p["error"].(type) {
		case string:
			if e != "" {
				return e
			}
		case map[string]any:
			if msg, ok := e["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if title, ok := p["title"].(string); ok && title != "" {
			return title
		}
		if details, ok := p["details"].(map[string]any); ok {
			for key, v := range details {
				if arr, ok := v.([]any); ok && len(arr) > 0 {
					return fmt.Sprintf("%s: %v", key, arr[0])
				}
			}
		}
		if dump, err := json.Marshal(p); err == nil && len(dump) > 2 {
			return string(dump)
		}
	}
	if statusText != "" {
		return statusText
	}
	return "request failed"
}

// extractDetails pulls the {field: [messages]} validation map when present.
func extractDetails(obj map[string]any) map[string][]string {
	src, ok := obj["details"].(map[string]any)
	if !ok {
		if nested, ok := obj["error"].(map[string]any); ok {
			src, _ = nested["details"].(map[string]any)
		}
	}
	if src == nil {
		return nil
	}

	details := make(map[string][]string, len(src))
	for key, v := range src {
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		msgs := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				msgs = append(msgs, s)
			}
		}
		if len(msgs) > 0 {
			details[key] = msgs
		}
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
