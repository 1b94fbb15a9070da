// Package apiclient talks to the LifeOS backend.
//
// Every call goes through Client.Request, which adds the timezone and request
// id headers, sends the session cookies, unwraps JSON error bodies and, on a
// 401, refreshes the access token once through the Session before retrying the
// original request exactly once.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	headerTimezone  = "X-Timezone"
	headerRequestID = "X-Request-ID"

	defaultTimeout             = 30 * time.Second
	defaultSessionCheckTimeout = 8 * time.Second
	defaultAccessCookie        = "access_token"

	maxErrorBody = 64 << 10
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Jar is overwritten.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimezone overrides the detected IANA timezone sent with every request.
func WithTimezone(tz string) Option {
	return func(c *Client) {
		if tz != "" {
			c.timezone = tz
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request and refresh counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRateLimit caps outgoing requests to rps per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithCookieStore persists session cookies across runs.
func WithCookieStore(s CookieStore) Option {
	return func(c *Client) { c.cookieStore = s }
}

// WithOnSessionExpired sets the hook fired once when the session cannot be refreshed.
func WithOnSessionExpired(fn func()) Option {
	return func(c *Client) { c.session.OnExpired(fn) }
}

// WithSessionCheckTimeout bounds the /auth/me call made by Bootstrap.
func WithSessionCheckTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.sessionCheckTimeout = d
		}
	}
}

// WithAccessCookie names the cookie holding the JWT access token.
func WithAccessCookie(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.accessCookie = name
		}
	}
}

// Client is an authenticated LifeOS backend client. It is safe for concurrent use.
type Client struct {
	base                *url.URL
	baseStr             string
	http                *http.Client
	jar                 *jar
	cookieStore         CookieStore
	session             *Session
	timezone            string
	limiter             *rate.Limiter
	metrics             *Metrics
	logger              *slog.Logger
	accessCookie        string
	sessionCheckTimeout time.Duration
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: base url %q must be http or https", baseURL)
	}

	c := &Client{
		base:                base,
		baseStr:             base.String(),
		http:                &http.Client{Timeout: defaultTimeout},
		session:             &Session{},
		timezone:            DetectTimezone(),
		logger:              slog.Default(),
		accessCookie:        defaultAccessCookie,
		sessionCheckTimeout: defaultSessionCheckTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.jar, err = newJar(base, c.cookieStore, c.logger)
	if err != nil {
		return nil, fmt.Errorf("apiclient: cookie jar: %w", err)
	}
	c.http.Jar = c.jar
	return c, nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string { return c.baseStr }

// Timezone returns the timezone sent in the X-Timezone header.
func (c *Client) Timezone() string { return c.timezone }

// Session returns the refresh state of the client.
func (c *Client) Session() *Session { return c.session }

// FilePart is one file of a multipart body.
type FilePart struct {
	Field    string
	Filename string
	Content  io.Reader
}

type requestOptions struct {
	query     url.Values
	json      any
	hasJSON   bool
	fields    map[string]string
	files     []FilePart
	multipart bool
	noRefresh bool
	header    http.Header
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

// WithJSON sends v as the JSON request body.
func WithJSON(v any) RequestOption {
	return func(o *requestOptions) { o.json, o.hasJSON = v, true }
}

// WithQuery adds query parameters.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) { o.query = q }
}

// WithMultipart sends a multipart/form-data body. The boundary content type is set automatically.
func WithMultipart(fields map[string]string, files ...FilePart) RequestOption {
	return func(o *requestOptions) {
		o.fields, o.files, o.multipart = fields, files, true
	}
}

// WithoutRefresh disables the refresh-and-retry cycle for this request.
func WithoutRefresh() RequestOption {
	return func(o *requestOptions) { o.noRefresh = true }
}

// WithHeader sets an extra request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = make(http.Header)
		}
		o.header.Set(key, value)
	}
}

// Request sends method path and decodes a JSON response into out when out is non-nil.
func (c *Client) Request(ctx context.Context, method, path string, out any, opts ...RequestOption) error {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}
	body, contentType, err := encodeBody(ro)
	if err != nil {
		return &Error{Kind: KindInternal, Method: method, Path: path, Message: err.Error(), Err: err}
	}

	seen := c.session.Generation()
	status, respBody, err := c.send(ctx, method, path, body, contentType, ro)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !ro.noRefresh {
		if err := c.refreshFor(ctx, method, path, seen); err != nil {
			return err
		}
		status, respBody, err = c.send(ctx, method, path, body, contentType, ro)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			c.session.fail()
			c.session.expire()
			e := statusError(method, path, status, respBody)
			e.Err = ErrSessionExpired
			return e
		}
	}

	if status < 200 || status >= 300 {
		return statusError(method, path, status, respBody)
	}
	if !ro.noRefresh {
		c.session.MarkAuthenticated()
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Kind: KindInternal, Method: method, Path: path, StatusCode: status, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}

// refreshFor refreshes the session after a 401 seen under generation seen.
func (c *Client) refreshFor(ctx context.Context, method, path string, seen uint64) error {
	err := c.session.refresh(ctx, seen, c.refresh)
	if err == nil {
		return nil
	}
	c.session.expire()
	if errors.Is(err, ErrSessionExpired) {
		return &Error{Kind: KindAuth, Method: method, Path: path, StatusCode: http.StatusUnauthorized, Message: "session expired", Err: ErrSessionExpired}
	}
	return &Error{Kind: KindAuth, Method: method, Path: path, StatusCode: http.StatusUnauthorized, Message: "session expired: " + err.Error(), Err: errors.Join(ErrSessionExpired, err)}
}

// refresh exchanges the refresh cookie for a new access token.
func (c *Client) refresh(ctx context.Context) error {
	status, body, err := c.send(ctx, http.MethodPost, "/auth/refresh", nil, "", requestOptions{noRefresh: true})
	if err == nil && (status < 200 || status >= 300) {
		err = statusError(http.MethodPost, "/auth/refresh", status, body)
	}
	c.metrics.refreshed(err)
	if err != nil {
		c.logger.Warn("token refresh failed", slog.String("error", err.Error()))
	}
	return err
}

// send performs one HTTP exchange and reads the whole response body.
func (c *Client) send(ctx context.Context, method, path string, body []byte, contentType string, ro requestOptions) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, &Error{Kind: KindInternal, Method: method, Path: path, Message: err.Error(), Err: err}
		}
	}

	target := c.baseStr + path
	if len(ro.query) > 0 {
		target += "?" + ro.query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, &Error{Kind: KindInternal, Method: method, Path: path, Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerTimezone, c.timezone)
	req.Header.Set(headerRequestID, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range ro.header {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(method, 0, time.Since(start))
		if isNetworkError(err) {
			return 0, nil, &Error{
				Kind:    KindNetwork,
				Method:  method,
				Path:    path,
				Message: fmt.Sprintf("cannot reach the LifeOS backend at %s; check that it is running and api.base_url is correct", c.baseStr),
				Err:     err,
			}
		}
		return 0, nil, &Error{Kind: KindInternal, Method: method, Path: path, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	var limit int64 = -1
	if resp.StatusCode >= 300 {
		limit = maxErrorBody
	}
	respBody, err := readBody(resp.Body, limit)
	c.metrics.observe(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, &Error{Kind: KindNetwork, Method: method, Path: path, StatusCode: resp.StatusCode, Message: "read response: " + err.Error(), Err: err}
	}
	c.logger.Debug("backend request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", req.Header.Get(headerRequestID)),
	)
	return resp.StatusCode, respBody, nil
}

func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit)
	}
	return io.ReadAll(r)
}

// encodeBody renders the request body once so it can be replayed on retry.
func encodeBody(ro requestOptions) ([]byte, string, error) {
	switch {
	case ro.multipart:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range ro.fields {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
		for _, f := range ro.files {
			part, err := w.CreateFormFile(f.Field, f.Filename)
			if err != nil {
				return nil, "", err
			}
			if _, err := io.Copy(part, f.Content); err != nil {
				return nil, "", fmt.Errorf("read %s: %w", f.Filename, err)
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), w.FormDataContentType(), nil
	case ro.hasJSON:
		data, err := json.Marshal(ro.json)
		if err != nil {
			return nil, "", fmt.Errorf("encode request: %w", err)
		}
		return data, "application/json", nil
	}
	return nil, "", nil
}
