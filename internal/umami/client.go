package umami

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
	"sync"
	"time"

	"github.com/buger/jsonparser"

	"github.com/pfrederiksen/umami-report/internal/period"
)

const (
	// CloudBaseURL is the Umami Cloud API root used with API keys.
	CloudBaseURL = "https://api.umami.is/v1"

	DefaultTimeout = 30 * time.Second
	UserAgent      = "umami-report/1.0 (github.com/pfrederiksen/umami-report)"

	apiKeyHeader = "x-umami-api-key"
	maxBodySize  = 1 << 20
)

// AuthMethod records how the client authenticated.
type AuthMethod string

const (
	AuthToken    AuthMethod = "token"
	AuthAPIKey   AuthMethod = "api-key"
	AuthPassword AuthMethod = "password"
)

// Credentials holds the ways a client can authenticate. A static token takes
// precedence over an API key, which takes precedence over a password login.
type Credentials struct {
	Token    string
	APIKey   string
	Username string
	Password string
}

// Method returns the AuthMethod these credentials resolve to, or "" when
// none is usable.
func (c Credentials) Method() AuthMethod {
	switch {
	case c.Token != "":
		return AuthToken
	case c.APIKey != "":
		return AuthAPIKey
	case c.Password != "":
		return AuthPassword
	}
	return ""
}

// Client talks to one Umami instance.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	apiPrefix string
	header    string
	value     string
}

// NewClient creates a client for the instance at baseURL. A nil httpClient
// gets one with the given timeout (DefaultTimeout when zero).
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("umami API URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid umami API URL %q", baseURL)
	}

	if httpClient == nil {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		apiPrefix:  "/api",
	}, nil
}

// BaseURL returns the normalized instance URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken authenticates subsequent requests with a bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.header = "Authorization"
	c.value = "Bearer " + token
}

// SetAPIKey authenticates subsequent requests with an Umami Cloud API key.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.header = apiKeyHeader
	c.value = key
	c.apiPrefix = ""
}

// Authenticate configures the client from creds, logging in when only a
// username and password are available.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (AuthMethod, error) {
	method := creds.Method()
	switch method {
	case AuthToken:
		c.SetToken(creds.Token)
	case AuthAPIKey:
		c.SetAPIKey(creds.APIKey)
	case AuthPassword:
		token, err := c.Login(ctx, creds.Username, creds.Password)
		if err != nil {
			return "", err
		}
		c.SetToken(token)
	default:
		return "", fmt.Errorf("no umami credentials: set an API token, API key or password")
	}
	return method, nil
}

// Login exchanges a username and password for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	const op = "login to Umami"

	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling login payload: %w", err)
	}

	body, err := c.do(ctx, op, http.MethodPost, "/auth/login", nil, payload)
	if err != nil {
		return "", err
	}

	token, err := jsonparser.GetString(body, "token")
	if err != nil || token == "" {
		return "", fmt.Errorf("failed to %s: no token received from login response", op)
	}
	return token, nil
}

// Stats fetches aggregate statistics for a website over r.
func (c *Client) Stats(ctx context.Context, websiteID string, r period.Range) (*Stats, error) {
	const op = "fetch Umami statistics"

	query := url.Values{}
	query.Set("startAt", strconv.FormatInt(r.StartMillis(), 10))
	query.Set("endAt", strconv.FormatInt(r.EndMillis(), 10))

	path := "/websites/" + url.PathEscape(websiteID) + "/stats"
	body, err := c.do(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	stats, err := ParseStats(body)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return stats, nil
}

// Website describes a tracked site.
type Website struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// Website looks up a website's name and domain.
func (c *Client) Website(ctx context.Context, websiteID string) (*Website, error) {
	const op = "fetch Umami website"

	body, err := c.do(ctx, op, http.MethodGet, "/websites/"+url.PathEscape(websiteID), nil, nil)
	if err != nil {
		return nil, err
	}

	var w Website
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("failed to %s: parsing response: %w", op, err)
	}
	if w.ID == "" {
		w.ID = websiteID
	}
	return &w, nil
}

// do issues a request and returns the body of a 2xx response. Any other
// status becomes an *APIError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte) ([]byte, error) {
	c.mu.RLock()
	reqURL := c.baseURL + c.apiPrefix + path
	header, value := c.header, c.value
	c.mu.RUnlock()

	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if header != "" {
		req.Header.Set(header, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to %s: reading response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(body, resp.Header.Get("Content-Type")),
		}
	}
	return body, nil
}
