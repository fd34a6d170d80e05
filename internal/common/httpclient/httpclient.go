package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// Configurator defines the interface for providing server configuration and authentication details.
type Configurator interface {
	GetServerURL() string
	GetAPIKey() string
	GetBasicAuth() (username, password string)
	GetTimeout() time.Duration
}

// HTTPError represents an error response from the server with HTTP status code and message.
type HTTPError struct {
	StatusCode int    // HTTP status code of the error
	Message    string // Error message or response body
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// HTTPClient represents a client for making HTTP requests to a REST API server.
// It handles authentication, request building, and response processing.
type HTTPClient struct {
	config     Configurator
	httpClient *http.Client
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	DisableCertValidation bool              // If true, skips SSL certificate validation
	Transport             http.RoundTripper // Optional transport override
}

// NewClient creates a new HTTP client using the provided configuration.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	return NewClientWithOptions(config, clientOpts)
}

// NewClientWithOptions creates a new HTTP client using the provided configuration and options.
func NewClientWithOptions(config Configurator, opts ClientOptions) *HTTPClient {
	httpClient := &http.Client{
		Timeout: config.GetTimeout(),
	}

	if opts.Transport != nil {
		httpClient.Transport = opts.Transport
	} else if opts.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	return &HTTPClient{
		config:     config,
		httpClient: httpClient,
	}
}

// RequestOptions contains options for making HTTP requests.
// Method and Path are required.
type RequestOptions struct {
	Method      string            // HTTP method (GET, POST, PUT, DELETE)
	Path        string            // API endpoint path, joined to the server URL
	QueryParams map[string]string // Optional query parameters
	Body        []byte            // Optional request body
	ContentType string            // Defaults to application/json
	Headers     map[string]string // Optional extra headers
}

// URL resolves the request path against the configured server URL. Without
// a path or query parameters the server URL is used as given, escaping and
// parameter order included.
func (c *HTTPClient) URL(opts RequestOptions) (*url.URL, error) {
	u, err := url.Parse(c.config.GetServerURL())
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	if opts.Path == "" && len(opts.QueryParams) == 0 {
		return u, nil
	}
	keepSlash := strings.HasSuffix(opts.Path, "/")
	u.Path = path.Join(u.Path, opts.Path)
	if keepSlash && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u, nil
}

// DoRequest makes an HTTP request with the given options.
// Returns the response body, the response headers, and any error that occurred.
// Responses with a status code of 400 or above are returned as *HTTPError.
// Transport failures, including timeouts, are wrapped with %w so callers can inspect them.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, http.Header, error) {
	u, err := c.URL(opts)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	if user, passwd := c.config.GetBasicAuth(); user != "" {
		req.SetBasicAuth(user, passwd)
	} else if key := c.config.GetAPIKey(); key != "" {
		req.Header.Set("Authorization", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("method", opts.Method).Str("url", u.Redacted()).Msg("request failed")
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, resp.Header, newHTTPError(resp.StatusCode, body)
	}

	return body, resp.Header, nil
}

// newHTTPError extracts a readable message from an error response. JSON bodies
// carrying an "error" or "detail" member are reduced to that member.
func newHTTPError(status int, body []byte) *HTTPError {
	msg := strings.TrimSpace(string(body))
	if gjson.ValidBytes(body) {
		for _, key := range []string{"error.message", "error", "detail", "message"} {
			if v := gjson.GetBytes(body, key); v.Exists() && v.Type == gjson.String && v.String() != "" {
				msg = v.String()
				break
			}
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &HTTPError{
		StatusCode: status,
		Message:    msg,
	}
}

// Get retrieves the resource at path.
func (c *HTTPClient) Get(ctx context.Context, path string, queryParams map[string]string) ([]byte, error) {
	body, _, err := c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodGet,
		Path:        path,
		QueryParams: queryParams,
	})
	return body, err
}

// Post sends a JSON body to path.
func (c *HTTPClient) Post(ctx context.Context, path string, data []byte, queryParams map[string]string) ([]byte, error) {
	body, _, err := c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodPost,
		Path:        path,
		QueryParams: queryParams,
		Body:        data,
	})
	return body, err
}

// Put replaces the resource at path with the JSON body.
func (c *HTTPClient) Put(ctx context.Context, path string, data []byte, queryParams map[string]string) ([]byte, error) {
	body, _, err := c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodPut,
		Path:        path,
		QueryParams: queryParams,
		Body:        data,
	})
	return body, err
}

// Delete deletes the resource at path.
func (c *HTTPClient) Delete(ctx context.Context, path string, queryParams map[string]string) error {
	_, _, err := c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodDelete,
		Path:        path,
		QueryParams: queryParams,
	})
	return err
}

// StreamRequest makes an HTTP request with the given options and returns a reader for streaming the response.
// The caller is responsible for closing the returned reader.
func (c *HTTPClient) StreamRequest(ctx context.Context, opts RequestOptions) (io.ReadCloser, http.Header, error) {
	u, err := c.URL(opts)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if user, passwd := c.config.GetBasicAuth(); user != "" {
		req.SetBasicAuth(user, passwd)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, resp.Header, newHTTPError(resp.StatusCode, body)
	}

	return resp.Body, resp.Header, nil
}

// StaticConfig is a Configurator backed by fixed values.
type StaticConfig struct {
	ServerURL string
	APIKey    string
	Username  string
	Password  string
	Timeout   time.Duration
}

func (s StaticConfig) GetServerURL() string { return s.ServerURL }
func (s StaticConfig) GetAPIKey() string    { return s.APIKey }
func (s StaticConfig) GetBasicAuth() (string, string) {
	return s.Username, s.Password
}
func (s StaticConfig) GetTimeout() time.Duration { return s.Timeout }
