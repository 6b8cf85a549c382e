// Package transport is the request layer: one configured HTTP client that
// attaches the session token, encodes requests and decodes the backend
// envelope once into a typed Result.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/metrics"
)

// Response size limits. A body over the limit is an error, never truncated.
const (
	DefaultMaxBodySize     = 32 << 20
	DefaultMaxDownloadSize = 256 << 20

	maxErrorBodySize = 64 << 10
)

// Client sends requests to the backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     learnhub.TokenStore
	logger     *zap.Logger
	metrics    *metrics.Metrics
	userAgent  string

	maxBody     int64
	maxDownload int64
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTokenStore sets where the bearer token is read from on every request.
func WithTokenStore(s learnhub.TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMaxBodySize bounds JSON response bodies.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithMaxDownloadSize bounds the bodies buffered by Download. DownloadTo
// streams and is not bounded.
func WithMaxDownloadSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxDownload = n
		}
	}
}

// New creates a Client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("learnhub/transport: parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("learnhub/transport: base URL %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: learnhub.DefaultRequestTimeout},
		logger:     zap.NewNop(),
		userAgent:  "learnhub-go",

		maxBody:     DefaultMaxBodySize,
		maxDownload: DefaultMaxDownloadSize,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// File is a multipart upload part.
type File struct {
	Field  string
	Name   string
	Reader io.Reader
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded when non-nil.
	Body any
	// File, when set, sends a multipart form instead of Body.
	File *File
	// Accept overrides the default "application/json".
	Accept string
}

// Get builds a GET request.
func Get(path string, query url.Values) Request {
	return Request{Method: http.MethodGet, Path: path, Query: query}
}

// Post builds a POST request with a JSON body.
func Post(path string, body any) Request {
	return Request{Method: http.MethodPost, Path: path, Body: body}
}

// Put builds a PUT request with a JSON body.
func Put(path string, body any) Request {
	return Request{Method: http.MethodPut, Path: path, Body: body}
}

// Delete builds a DELETE request.
func Delete(path string) Request {
	return Request{Method: http.MethodDelete, Path: path}
}

// Call performs req and decodes the response envelope into T.
func Call[T any](ctx context.Context, c *Client, req Request) Result[T] {
	body, err := c.roundTrip(ctx, req, c.maxBody)
	if err != nil {
		return Failure[T](err)
	}
	v, err := decodeEnvelope[T](body)
	if err != nil {
		return Failure[T](err)
	}
	return Success(v)
}

// Exec performs req for its effect. The envelope is checked and any
// payload is discarded.
func Exec(ctx context.Context, c *Client, req Request) error {
	return Call[json.RawMessage](ctx, c, req).Err()
}

// Download performs req and returns the raw response body. Bodies larger
// than the download limit fail with KindDecode; use DownloadTo for those.
func Download(ctx context.Context, c *Client, req Request) ([]byte, error) {
	if req.Accept == "" {
		req.Accept = "*/*"
	}
	body, err := c.roundTrip(ctx, req, c.maxDownload)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// DownloadTo performs req and streams the raw response body to w. It
// returns the number of bytes written.
func DownloadTo(ctx context.Context, c *Client, req Request, w io.Writer) (int64, error) {
	if req.Accept == "" {
		req.Accept = "*/*"
	}
	resp, lerr := c.do(ctx, req)
	if lerr != nil {
		return 0, lerr
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &learnhub.Error{Kind: learnhub.KindTransport, Status: resp.StatusCode, Err: err}
	}
	return n, nil
}

// roundTrip sends req and returns the body of a 2xx response, at most limit
// bytes. Any other outcome is returned as a classified *learnhub.Error.
func (c *Client) roundTrip(ctx context.Context, req Request, limit int64) ([]byte, *learnhub.Error) {
	resp, lerr := c.do(ctx, req)
	if lerr != nil {
		return nil, lerr
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &learnhub.Error{Kind: learnhub.KindTransport, Status: resp.StatusCode, Err: err}
	}
	if int64(len(body)) > limit {
		return nil, &learnhub.Error{
			Kind:    learnhub.KindDecode,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("response body exceeds %d bytes", limit),
		}
	}
	return body, nil
}

// do sends req. A 2xx response is returned with its body open for the
// caller to close; any other outcome is a classified *learnhub.Error.
func (c *Client) do(ctx context.Context, req Request) (*http.Response, *learnhub.Error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, &learnhub.Error{Kind: learnhub.KindInvalid, Message: "could not build request", Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.RecordRequest(req.Method, "transport", elapsed.Seconds())
		c.logger.Debug("request failed",
			zap.String("method", req.Method), zap.String("path", req.Path), zap.Error(err))
		return nil, &learnhub.Error{Kind: learnhub.KindTransport, Err: err}
	}

	c.metrics.RecordRequest(req.Method, fmt.Sprintf("%dxx", resp.StatusCode/100), elapsed.Seconds())
	c.logger.Debug("request",
		zap.String("method", req.Method), zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode), zap.Duration("elapsed", elapsed))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &learnhub.Error{
			Kind:    learnhub.KindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: errorMessage(body),
		}
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.File != nil:
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		part, err := mw.CreateFormFile(req.File.Field, req.File.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, req.File.Reader); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		body, contentType = buf, mw.FormDataContentType()
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, err
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("User-Agent", c.userAgent)

	if c.tokens != nil {
		token, err := c.tokens.Load(ctx)
		switch {
		case err == nil && token != "":
			httpReq.Header.Set("Authorization", "Bearer "+token)
		case err != nil && !errors.Is(err, learnhub.ErrNoToken):
			c.logger.Warn("token store unavailable, sending anonymous request", zap.Error(err))
		}
	}
	return httpReq, nil
}

// decodeEnvelope unwraps {"success":..,"data":..,"message":..}. A body
// without an envelope is decoded as the payload itself.
func decodeEnvelope[T any](body []byte) (T, *learnhub.Error) {
	var zero T
	if len(bytes.TrimSpace(body)) == 0 {
		return zero, nil
	}
	if !gjson.ValidBytes(body) {
		return zero, &learnhub.Error{Kind: learnhub.KindDecode, Message: "response is not valid JSON"}
	}

	success := gjson.GetBytes(body, "success")
	if success.Exists() && !success.Bool() {
		msg := errorMessage(body)
		return zero, &learnhub.Error{Kind: learnhub.KindRejected, Status: http.StatusOK, Message: msg}
	}

	payload := body
	if data := gjson.GetBytes(body, "data"); data.Exists() || success.Exists() {
		if !data.Exists() || data.Type == gjson.Null {
			return zero, nil
		}
		payload = []byte(data.Raw)
	}

	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return zero, &learnhub.Error{Kind: learnhub.KindDecode, Err: err}
	}
	return v, nil
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"message", "error.message", "error"} {
		r := gjson.GetBytes(body, path)
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
