package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 8
)

// Client talks to the catalog service. Every call is made exactly once with
// its own deadline; retrying is the caller's decision.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	concurrency int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func NewClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) FetchProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error) {
	var snapshot domain.ProductSnapshot
	if err := c.call(ctx, http.MethodGet, "/products/"+url.PathEscape(productID), nil, &snapshot); err != nil {
		return nil, fmt.Errorf("fetch product %s: %w", productID, err)
	}
	return &snapshot, nil
}

// FetchMany looks up every id independently; one failing id never fails the
// others. Duplicate ids are fetched once.
func (c *Client) FetchMany(ctx context.Context, productIDs []string) map[string]domain.ProductLookup {
	unique := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	results := make([]domain.ProductLookup, len(unique))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, id := range unique {
		g.Go(func() error {
			snapshot, err := c.FetchProduct(ctx, id)
			results[i] = domain.ProductLookup{Snapshot: snapshot, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]domain.ProductLookup, len(unique))
	for i, id := range unique {
		out[id] = results[i]
	}
	return out
}

type amountRequest struct {
	Amount int `json:"amount"`
}

func (c *Client) DecrementStock(ctx context.Context, productID string, amount int) error {
	path := "/products/" + url.PathEscape(productID) + "/decrement"
	if err := c.call(ctx, http.MethodPost, path, amountRequest{Amount: amount}, nil); err != nil {
		return fmt.Errorf("decrement stock of %s by %d: %w", productID, amount, err)
	}
	return nil
}

// IncrementStock gives stock back; it is the compensating action for a
// decrement whose checkout did not commit.
func (c *Client) IncrementStock(ctx context.Context, productID string, amount int) error {
	path := "/products/" + url.PathEscape(productID) + "/increment"
	if err := c.call(ctx, http.MethodPost, path, amountRequest{Amount: amount}, nil); err != nil {
		return fmt.Errorf("increment stock of %s by %d: %w", productID, amount, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: marshal request: %w", domain.ErrValidation, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", domain.ErrValidation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransientCatalog, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrTransientCatalog, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return domain.ErrInsufficientStock
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: catalog rejected request: %s", domain.ErrValidation, readMessage(resp))
	default:
		return fmt.Errorf("%w: catalog returned status %d", domain.ErrTransientCatalog, resp.StatusCode)
	}
}

func readMessage(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err != nil {
		return http.StatusText(resp.StatusCode)
	}
	return payload.Error
}
