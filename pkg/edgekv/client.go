package edgekv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/StratoEdge/edgekv_sdk_go/internal/httpx"
	"github.com/StratoEdge/edgekv_sdk_go/internal/stratoapi"
)

// DefaultBaseURL points at the hosted EdgeKV API.
const DefaultBaseURL = "https://api.stratoedge.com/client/v1"

// Version is the SDK release reported in the default User-Agent header.
const Version = "0.4.0"

// Config identifies the tenant a Client operates as. All three fields
// are required. NamespaceID is the default namespace; individual calls
// can override it through their options.
type Config struct {
	AccountID   string
	NamespaceID string
	APIToken    string
}

// Validate reports whether the configuration is complete.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AccountID, validation.Required),
		validation.Field(&c.NamespaceID, validation.Required),
		validation.Field(&c.APIToken, validation.Required),
	)
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
	logger     hclog.Logger
	userAgent  string
}

// WithBaseURL overrides the API endpoint, typically to point the client
// at a sandbox.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) {
		if strings.TrimSpace(u) != "" {
			o.baseURL = u
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client. The client ships
// without a transport timeout; deadlines come from the request context.
func WithHTTPClient(h *http.Client) Option {
	return func(o *clientOptions) {
		if h != nil {
			o.httpClient = h
		}
	}
}

// WithLogger attaches a structured logger. Requests and value probes are
// logged at debug level; the default logger discards everything.
func WithLogger(l hclog.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) {
		if strings.TrimSpace(ua) != "" {
			o.userAgent = ua
		}
	}
}

// Client provides access to the EdgeKV REST API. The only state it
// carries is configuration, so it is safe for concurrent use. Every
// operation performs exactly one HTTP round trip: no retries, no
// caching, no pagination loops.
type Client struct {
	cfg    Config
	http   *httpx.Client
	logger hclog.Logger
}

// New constructs a Client for the given tenant configuration.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("edgekv: invalid config: %w", err)
	}

	o := &clientOptions{
		baseURL:   DefaultBaseURL,
		logger:    hclog.NewNullLogger(),
		userAgent: "edgekv-sdk-go/" + Version,
	}
	for _, opt := range opts {
		opt(o)
	}

	headers := make(http.Header)
	headers.Set("Authorization", "Bearer "+cfg.APIToken)
	headers.Set("User-Agent", o.userAgent)
	headers.Set("Content-Type", "application/json")

	httpOpts := []httpx.Option{
		httpx.WithHeaders(headers),
		httpx.WithLogger(o.logger.Named("http")),
	}
	if o.httpClient != nil {
		httpOpts = append(httpOpts, httpx.WithHTTPClient(o.httpClient))
	}

	hc, err := httpx.NewClient(o.baseURL, httpOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{cfg: cfg, http: hc, logger: o.logger}, nil
}

// ListKeys fetches one page of keys from a namespace. Pagination is the
// caller's loop: feed ResultInfo.Cursor back through
// ListKeysOptions.Cursor until it comes back empty. The envelope is
// returned verbatim, failure envelopes included.
func (c *Client) ListKeys(ctx context.Context, opts *ListKeysOptions) (*ListKeysResult, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("edgekv: client is nil")
	}
	if opts == nil {
		opts = &ListKeysOptions{}
	}

	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}

	status, header, body, err := c.do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   c.namespacePath(opts.NamespaceID, "keys"),
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	var result ListKeysResult
	if err := decodeEnvelope(status, header, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Get fetches the raw string stored under key. The second return value
// reports presence: any non-2xx answer yields ("", false, nil), because
// the API serves its error envelope in place of a value there and the
// client does not tell a missing key, a missing namespace or a rejected
// token apart. Values that happen to contain JSON are still returned as
// raw text; the client parses them only to annotate a debug log line.
func (c *Client) Get(ctx context.Context, key string, opts *GetOptions) (string, bool, error) {
	if c == nil || c.http == nil {
		return "", false, fmt.Errorf("edgekv: client is nil")
	}
	if strings.TrimSpace(key) == "" {
		return "", false, fmt.Errorf("edgekv: key is required")
	}
	if opts == nil {
		opts = &GetOptions{}
	}

	status, _, body, err := c.do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   c.namespacePath(opts.NamespaceID, "values/"+url.PathEscape(key)),
	})
	if err != nil {
		return "", false, err
	}

	if status < 200 || status > 299 {
		c.logger.Debug("get: key absent", "key", key, "status", status)
		return "", false, nil
	}

	c.logger.Debug("get: value fetched", "key", key,
		"bytes", len(body), "payload", stratoapi.ProbePayload(body))
	return string(body), true, nil
}

// Set stores value under key. The value travels as the raw request body
// with a text/plain content type, never JSON-wrapped. Expiry is either
// absolute (SetOptions.Expiration, Unix seconds) or relative
// (SetOptions.ExpirationTTL, see ParseTTL); when both are given the TTL
// wins and the absolute expiry is not transmitted.
func (c *Client) Set(ctx context.Context, key, value string, opts *SetOptions) (*SetResult, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("edgekv: client is nil")
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("edgekv: key is required")
	}
	if opts == nil {
		opts = &SetOptions{}
	}

	query := url.Values{}
	switch {
	case opts.ExpirationTTL != "":
		ttl, err := ParseTTL(opts.ExpirationTTL)
		if err != nil {
			return nil, err
		}
		query.Set("expiration_ttl", strconv.FormatInt(ttl, 10))
	case opts.Expiration != 0:
		query.Set("expiration", strconv.FormatInt(opts.Expiration, 10))
	}

	status, header, body, err := c.do(ctx, &httpx.Request{
		Method: http.MethodPut,
		Path:   c.namespacePath(opts.NamespaceID, "values/"+url.PathEscape(key)),
		Query:  query,
		Header: http.Header{"Content-Type": []string{"text/plain"}},
		Body:   strings.NewReader(value),
	})
	if err != nil {
		return nil, err
	}

	var result SetResult
	if err := decodeEnvelope(status, header, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes one or more keys in a single bulk request. The key list
// always travels as one JSON array body, never as per-key calls, and the
// API's cap of 10000 keys per request is enforced remotely rather than
// here.
func (c *Client) Delete(ctx context.Context, keys []string, opts *DeleteOptions) (*DeleteResult, error) {
	if c == nil || c.http == nil {
		return nil, fmt.Errorf("edgekv: client is nil")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("edgekv: at least one key is required")
	}
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("edgekv: key is required")
		}
	}
	if opts == nil {
		opts = &DeleteOptions{}
	}

	payload, contentType, err := httpx.WithJSONBody(keys)
	if err != nil {
		return nil, fmt.Errorf("edgekv: encode key list: %w", err)
	}

	status, header, body, err := c.do(ctx, &httpx.Request{
		Method: http.MethodDelete,
		Path:   c.namespacePath(opts.NamespaceID, "bulk"),
		Header: http.Header{"Content-Type": []string{contentType}},
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}

	var result DeleteResult
	if err := decodeEnvelope(status, header, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// namespacePath composes the account/namespace prefix shared by every
// endpoint. An empty override falls back to the client's default
// namespace; the namespace only ever appears in the path, never in a
// query string.
func (c *Client) namespacePath(namespaceID, rest string) string {
	ns := strings.TrimSpace(namespaceID)
	if ns == "" {
		ns = c.cfg.NamespaceID
	}
	return fmt.Sprintf("/accounts/%s/storage/kv/namespaces/%s/%s",
		url.PathEscape(c.cfg.AccountID), url.PathEscape(ns), rest)
}

// do funnels every operation through one request path: dispatch, drain,
// hand back status, header and body.
func (c *Client) do(ctx context.Context, req *httpx.Request) (int, http.Header, []byte, error) {
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, nil, nil, err
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("edgekv: read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// decodeEnvelope decodes an envelope body into out. Bodies that are not
// envelopes surface as an HTTPError when the status signals failure, and
// as a decode error otherwise.
func decodeEnvelope(status int, header http.Header, body []byte, out any) error {
	if err := stratoapi.DecodeEnvelope(body, out); err != nil {
		if status >= 400 {
			return httpx.NewHTTPError(status, header, body)
		}
		return fmt.Errorf("edgekv: decode response: %w", err)
	}
	return nil
}
