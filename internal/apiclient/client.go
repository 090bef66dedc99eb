package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/angelmondragon/tableside/internal/catalog"
	"github.com/angelmondragon/tableside/internal/orders"
	"github.com/angelmondragon/tableside/pkg/auth"
	"github.com/angelmondragon/tableside/pkg/config"
	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/pagination"
	"github.com/angelmondragon/tableside/pkg/types"
)

const responseBodyReadLimit int64 = 1 << 20

// Paths are joined onto the base URL.
type Paths struct {
	CreateOrder string
	ListOrders  string
	Token       string
	Menu        string
}

// Client talks to the restaurant REST API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	paths       Paths
	bearer      string
	logg        *logger.Logger
	requestIDFn func(ctx context.Context) string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBearerToken sends Authorization: Bearer <token> on every request.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.bearer = strings.TrimSpace(token)
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithRequestID propagates a request id header taken from ctx.
func WithRequestID(fn func(ctx context.Context) string) Option {
	return func(c *Client) {
		c.requestIDFn = fn
	}
}

// New builds a client from the API config section.
func New(cfg config.APIConfig, opts ...Option) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api base url must be absolute, got %q", cfg.BaseURL)
	}

	client := &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(base, "/"),
		paths: Paths{
			CreateOrder: cfg.OrderCreatePath,
			ListOrders:  cfg.OrderListPath,
			Token:       cfg.TokenPath,
			Menu:        cfg.MenuPath,
		},
		logg: logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateOrder posts a new order and returns the server echo.
func (c *Client) CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.CreatedOrder, error) {
	var created orders.CreatedOrder
	if err := c.do(ctx, http.MethodPost, c.paths.CreateOrder, nil, req, &created, true); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListOrders fetches one page of orders. The response is {data, pagination}
// at the top level.
func (c *Client) ListOrders(ctx context.Context, params pagination.Params) (*orders.OrderPage, error) {
	params = params.Normalize()
	query := url.Values{}
	query.Set("page", strconv.Itoa(params.Page))
	query.Set("page_size", strconv.Itoa(params.PageSize))

	var page orders.OrderPage
	if err := c.do(ctx, http.MethodGet, c.paths.ListOrders, query, nil, &page, false); err != nil {
		return nil, err
	}
	if page.Data == nil {
		page.Data = []orders.OrderDetail{}
	}
	return &page, nil
}

// FetchRealtimeToken mints a short-lived websocket token.
func (c *Client) FetchRealtimeToken(ctx context.Context, req auth.TokenRequest) (*auth.TokenResponse, error) {
	var resp auth.TokenResponse
	if err := c.do(ctx, http.MethodPost, c.paths.Token, nil, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMenu loads every dish and set.
func (c *Client) FetchMenu(ctx context.Context) (*catalog.Menu, error) {
	var menu catalog.Menu
	if err := c.do(ctx, http.MethodGet, c.paths.Menu, nil, nil, &menu, true); err != nil {
		return nil, err
	}
	return &menu, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dst any, enveloped bool) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "api client not configured")
	}
	target := c.buildURL(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request body")
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.requestIDFn != nil {
		if id := c.requestIDFn(ctx); id != "" {
			httpReq.Header.Set("X-Request-Id", id)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request to order api failed")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}), "order api returned an error status")
		return statusError(resp.StatusCode, raw)
	}

	if dst == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if enveloped {
		return decodeEnveloped(raw, dst)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return nil
}

// decodeEnveloped accepts either {"data": ...} or the bare payload.
func decodeEnveloped(raw []byte, dst any) error {
	var envelope types.RawSuccessEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		raw = envelope.Data
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return nil
}

// statusError maps a non-2xx response onto a typed error, keeping the
// server's message when it sent one.
func statusError(status int, raw []byte) error {
	code := pkgerrors.FromStatus(status)
	message := ""
	var details any

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
		details = envelope.Error.Details
	} else {
		var loose struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(raw, &loose); err == nil {
			message = firstNonEmpty(loose.Message, loose.Error)
		}
	}
	if message == "" {
		if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 200 {
			message = text
		} else {
			message = pkgerrors.MetadataFor(code).PublicMessage
		}
	}

	typed := pkgerrors.New(code, message)
	if details != nil {
		typed = typed.WithDetails(details)
	} else {
		typed = typed.WithDetails(map[string]any{"status": status})
	}
	return typed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (c *Client) buildURL(path string) string {
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, path)
}
