package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	appLog "remindercal/internal/log"
)

// ErrUnauthorized is returned for 401 responses, after the unauthorized hook ran.
var ErrUnauthorized = errors.New("unauthorized")

// Error is a non-success answer from the backend. Message is suitable for
// showing to the user.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Config describes how to reach the backend.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// SessionCookie/SessionValue seed the cookie jar so requests carry an
	// existing login session.
	SessionCookie string
	SessionValue  string

	// LoginPath is where unauthenticated users are sent. Defaults to "/login".
	LoginPath string
}

// Client talks to the reminder backend JSON API. It is safe for concurrent use.
type Client struct {
	base           *url.URL
	http           *http.Client
	loginPath      string
	onUnauthorized func(loginURL string)
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its cookie jar, if
// any, is used as-is.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithUnauthorizedHook registers fn to run with the login URL whenever the
// backend answers 401.
func WithUnauthorizedHook(fn func(loginURL string)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// New creates a Client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("backend base URL is empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported backend scheme %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if cfg.SessionCookie != "" && cfg.SessionValue != "" {
		jar.SetCookies(base, []*http.Cookie{{
			Name:  cfg.SessionCookie,
			Value: cfg.SessionValue,
			Path:  "/",
		}})
	}

	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}

	c := &Client{
		base: base,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		loginPath: loginPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoginURL builds the login redirect for a page path; the root page
// redirects without a next parameter.
func (c *Client) LoginURL(next string) string {
	if next == "" || next == "/" {
		return c.loginPath
	}
	return c.loginPath + "?next=" + url.QueryEscape(next)
}

// envelope is the backend's common response shape.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) reason() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Detail, &s); err == nil {
		return s
	}
	if string(e.Detail) == "null" {
		return ""
	}
	return string(e.Detail)
}

// do sends one request and decodes the JSON body into out. Non-2xx answers
// become *Error (or ErrUnauthorized). A 2xx body that is not JSON at all is
// treated as empty; JSON of the wrong shape is an error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.base.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		appLog.Error("backend request failed", err, "method", method, "url", redactURL(endpoint))
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	appLog.Debug("backend request done",
		"method", method,
		"url", redactURL(endpoint),
		"status", resp.StatusCode,
		"elapsed", time.Since(started),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized(c.LoginURL(""))
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		msg := env.reason()
		if msg == "" {
			msg = "HTTP " + strconv.Itoa(resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if !json.Valid(raw) {
		appLog.Warn("backend returned a non-JSON body; treating it as empty",
			"method", method,
			"url", redactURL(endpoint),
			"status", resp.StatusCode,
		)
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// call performs a request whose envelope must carry success=true and
// decodes its data field into out. fallback is the message used when the
// backend gives none.
func (c *Client) call(ctx context.Context, method, path string, body, out any, fallback string) error {
	var env envelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		return err
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = fallback
		}
		return &Error{Status: http.StatusOK, Message: msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}

// redactURL keeps scheme and host only, hiding paths and query strings.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "backend://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
