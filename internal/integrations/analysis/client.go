package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"symptomai/internal/integrations/paramstore"
)

const tokenParameter = "analysis-token"

// analyzeRequest is the request shape of the symptom-analysis endpoint.
type analyzeRequest struct {
	Symptoms string `json:"symptoms"`
}

// analyzeResponse carries either the reply or an upstream error string.
type analyzeResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("analysis: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client submits free-text symptom descriptions to the analysis service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithParamStore makes the client send a bearer token read from
// <paramPrefix>/analysis-token.
func WithParamStore(g Getter, paramPrefix string) Option {
	return func(c *Client) {
		c.getter = g
		c.paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	}
}

// NewClient creates a Client for the service rooted at baseURL. The default
// HTTP client has no timeout; a hung upstream hangs the call.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("analysis: base URL must not be empty")
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.getter != nil && c.paramPrefix == "" {
		return nil, errors.New("analysis: parameter prefix must not be empty")
	}
	return c, nil
}

func analyzeURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(base, "/api") {
		return base + "/analyze"
	}
	return base + "/api/analyze"
}

func (c *Client) tokenParameterName() string {
	return paramstore.Join(c.paramPrefix, tokenParameter)
}

// resolveAPIKey returns "" when no param store is configured. The token is
// fetched on every call; reuse is up to the getter's own cache.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	if c.getter == nil {
		return "", nil
	}
	return fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

// Analyze sends text and returns the service's reply string.
func (c *Client) Analyze(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("analysis: text must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(analyzeRequest{Symptoms: text})
	if err != nil {
		return "", fmt.Errorf("analysis: marshal request: %w", err)
	}

	url := analyzeURL(c.baseURL)
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("analysis: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("analysis: request failed: %w", err)
	}

	var payload analyzeResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("analysis: decode response: %w", decErr)
	}
	if payload.Message == "" {
		if payload.Error != "" {
			return "", fmt.Errorf("analysis: upstream error: %s", payload.Error)
		}
		return "", errors.New("analysis: empty message in response")
	}
	return payload.Message, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("analysis: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("analysis: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("analysis: API token is empty")
	}
	return tp.Token, nil
}
