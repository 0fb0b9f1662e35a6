// Package paramstore reads secrets such as the analysis service token from
// AWS SSM Parameter Store.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is what consumers such as the analysis client depend on.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

type cachedValue struct {
	value   string
	fetched time.Time
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api      ssmAPI
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedValue
}

type Option func(*Client)

// WithCacheTTL serves repeated reads of a name from memory for ttl.
// Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	c := &Client{api: api, now: time.Now, cache: make(map[string]cachedValue)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Join builds a parameter name under prefix, e.g. Join("/app/prod/", "token")
// is "/app/prod/token".
func Join(prefix, leaf string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	leaf = strings.TrimLeft(strings.TrimSpace(leaf), "/")
	if prefix == "" {
		return "/" + leaf
	}
	return prefix + "/" + leaf
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}
	if v, ok := c.cached(name); ok {
		return v, nil
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", name)
	}
	c.store(name, *out.Parameter.Value)
	return *out.Parameter.Value, nil
}

func (c *Client) cached(name string) (string, bool) {
	if c.cacheTTL <= 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache[name]
	if !ok || c.now().Sub(v.fetched) >= c.cacheTTL {
		return "", false
	}
	return v.value, true
}

func (c *Client) store(name, value string) {
	if c.cacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string]cachedValue)
	}
	c.cache[name] = cachedValue{value: value, fetched: c.now()}
}
