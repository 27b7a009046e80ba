package client

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/solestoreapp/solestore-client/internal/domain"
	"github.com/solestoreapp/solestore-client/internal/errors"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// HTTP implements API over the storefront's REST endpoints.
type HTTP struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *logger.Logger
}

// Options configures the HTTP client.
type Options struct {
	// BaseURL is the API root, without trailing slash.
	BaseURL string
	// AuthToken, when set, is sent as a bearer token.
	AuthToken string
	// Timeout is the transport-level default for per-item calls. Bulk
	// clears are bounded by the caller's context deadline instead.
	Timeout time.Duration
}

// NewHTTP creates an HTTP API client.
func NewHTTP(opts Options, log *logger.Logger) *HTTP {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &HTTP{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		authToken: opts.AuthToken,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: log,
	}
}

// cartEnvelope is the {items: [...]} wrapper used by every cart endpoint.
type cartEnvelope struct {
	Items []domain.CartLineItem `json:"items"`
}

// messageEnvelope is the {message: "..."} shape of delete endpoints.
type messageEnvelope struct {
	Message string `json:"message"`
}

// FetchCart implements API.
func (c *HTTP) FetchCart(ctx context.Context, userID int64) ([]domain.CartLineItem, error) {
	var out cartEnvelope
	if err := c.do(ctx, http.MethodGet, "/cart", userID, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// AddCartItem implements API.
func (c *HTTP) AddCartItem(ctx context.Context, userID, shoeID int64, size, quantity int) ([]domain.CartLineItem, error) {
	body := map[string]any{"shoeId": shoeID, "size": size, "quantity": quantity}
	var out cartEnvelope
	if err := c.do(ctx, http.MethodPost, "/cart", userID, body, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// UpdateCartItem implements API.
func (c *HTTP) UpdateCartItem(ctx context.Context, userID, itemID int64, quantity int) ([]domain.CartLineItem, error) {
	body := map[string]any{"itemId": itemID, "quantity": quantity}
	var out cartEnvelope
	if err := c.do(ctx, http.MethodPut, "/cart", userID, body, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// RemoveCartItem implements API.
func (c *HTTP) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	var out messageEnvelope
	return c.do(ctx, http.MethodDelete, "/cart/item/"+strconv.FormatInt(itemID, 10), userID, nil, &out)
}

// ClearCart implements API.
func (c *HTTP) ClearCart(ctx context.Context, userID int64) error {
	var out messageEnvelope
	return c.do(ctx, http.MethodDelete, "/cart/clear", userID, nil, &out)
}

// FetchFavorites implements API.
func (c *HTTP) FetchFavorites(ctx context.Context, userID int64) ([]domain.FavoriteEntry, error) {
	var out []domain.FavoriteEntry
	if err := c.do(ctx, http.MethodGet, "/favorites", userID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleFavorite implements API.
func (c *HTTP) ToggleFavorite(ctx context.Context, userID, shoeID int64) (*domain.FavoritesResult, error) {
	body := map[string]any{"shoeId": shoeID}
	var out domain.FavoritesResult
	if err := c.do(ctx, http.MethodPost, "/favorites/toggle", userID, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BatchSync implements API.
func (c *HTTP) BatchSync(ctx context.Context, userID int64, pending map[int64]bool) (*domain.FavoritesResult, error) {
	body := map[string]any{"userId": userID, "pendingFavorites": pending}
	var out domain.FavoritesResult
	if err := c.do(ctx, http.MethodPost, "/favorites/batch", userID, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearFavorites implements API.
func (c *HTTP) ClearFavorites(ctx context.Context, userID int64) (*domain.FavoritesResult, error) {
	body := map[string]any{"userId": userID}
	var out domain.FavoritesResult
	if err := c.do(ctx, http.MethodDelete, "/favorites/clear", userID, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do performs one request/response cycle. Non-2xx statuses are mapped onto
// domain error codes with the response body as the message.
func (c *HTTP) do(ctx context.Context, method, path string, userID int64, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), errors.CodeTimeout, "%s %s aborted", method, path)
		}
		return errors.Wrapf(err, errors.CodeUnavailable, "%s %s failed", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Wrapf(
			fmt.Errorf("%s", strings.TrimSpace(string(text))),
			errors.FromHTTPStatus(resp.StatusCode),
			"%s %s returned %d", method, path, resp.StatusCode,
		)
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, errors.CodeUnavailable, "%s %s read failed", method, path)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, errors.CodeInternal, "%s %s returned malformed JSON", method, path)
	}
	return nil
}
