package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Middleware wraps a provider call. It receives the request and a next
// function that calls the downstream handler.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error)

type handler func(context.Context, Request) (*Response, error)

// Client routes completion requests to provider adapters through a
// middleware chain and keeps a running token count.
type Client struct {
	mu              sync.RWMutex
	providers       map[string]ProviderAdapter
	defaultProvider string
	defaultModel    string
	middleware      []Middleware
	logger          *zap.Logger
	usage           Usage
	requests        int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers a provider adapter under name.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) { c.providers[name] = adapter }
}

// WithDefaultProvider names the adapter used when a request names none.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) { c.defaultProvider = name }
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) ClientOption {
	return func(c *Client) { c.defaultModel = model }
}

// WithMiddleware appends middleware. The first registered sees the request
// first.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) { c.middleware = append(c.middleware, mw...) }
}

// WithClientLogger sets the logger used for per-request debug lines.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client. With exactly one provider and no explicit
// default, that provider becomes the default.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]ProviderAdapter),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaultProvider == "" && len(c.providers) == 1 {
		for name := range c.providers {
			c.defaultProvider = name
		}
	}
	c.logger = c.logger.With(zap.String("component", "llm"))
	return c
}

// RegisterProvider adds an adapter after construction. The first adapter
// registered on a client without a default becomes the default.
func (c *Client) RegisterProvider(name string, adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

// adapterFor picks the adapter by, in order: the request's provider, the
// client default, and the catalog entry of the requested model.
func (c *Client) adapterFor(req Request) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		if info, ok := LookupModel(req.Model); ok {
			name = info.Provider
		}
	}
	if name == "" {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: "no provider specified and no default provider configured",
		}}
	}
	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("provider %q is not registered", name),
		}}
	}
	return adapter, nil
}

// Complete sends req through the middleware chain to its adapter.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	adapter, err := c.adapterFor(req)
	if err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = adapter.Name()
	}

	call := handler(func(ctx context.Context, r Request) (*Response, error) {
		start := time.Now()
		resp, err := adapter.Complete(ctx, r)
		if resp != nil && resp.Latency == 0 {
			resp.Latency = time.Since(start)
		}
		return resp, err
	})
	for i := len(c.middleware) - 1; i >= 0; i-- {
		call = wrap(c.middleware[i], call)
	}

	resp, err := call(ctx, req)
	if err != nil {
		c.logger.Debug("completion failed",
			zap.String("provider", req.Provider),
			zap.String("model", req.Model),
			zap.Bool("retryable", IsRetryable(err)),
			zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.usage = c.usage.Add(resp.Usage)
	c.requests++
	c.mu.Unlock()

	c.logger.Debug("completion finished",
		zap.String("provider", resp.Provider),
		zap.String("model", resp.Model),
		zap.String("finish_reason", resp.FinishReason.Reason),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("latency", resp.Latency))
	return resp, nil
}

func wrap(mw Middleware, next handler) handler {
	return func(ctx context.Context, r Request) (*Response, error) {
		return mw(ctx, r, next)
	}
}

// Usage returns the tokens consumed by successful requests so far and the
// number of those requests.
func (c *Client) Usage() (Usage, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.usage, c.requests
}

// Close closes every adapter that holds resources and returns the first
// error.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, adapter := range c.providers {
		if closer, ok := adapter.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
