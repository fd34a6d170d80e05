// Package httpclient provides a configurable HTTP client for making requests to the
// REST and RPC-style APIs the catalog synchronizer talks to. It supports authentication
// via API keys and basic credentials, bounds every call with a timeout, and reports
// server-side failures as *HTTPError so callers can classify them.
package httpclient

import (
	"context"
	"net/http"
)

// HTTPClientInterface defines the interface for HTTP client implementations.
// Implementations must handle authentication, request building, and response processing.
type HTTPClientInterface interface {
	// DoRequest makes an HTTP request with the given options.
	// Returns the response body, the response headers, and any error that occurred.
	DoRequest(ctx context.Context, opts RequestOptions) ([]byte, http.Header, error)

	// Get retrieves the resource at path.
	Get(ctx context.Context, path string, queryParams map[string]string) ([]byte, error)

	// Post sends a JSON body to path.
	Post(ctx context.Context, path string, data []byte, queryParams map[string]string) ([]byte, error)

	// Put replaces the resource at path with the JSON body.
	Put(ctx context.Context, path string, data []byte, queryParams map[string]string) ([]byte, error)

	// Delete deletes the resource at path.
	Delete(ctx context.Context, path string, queryParams map[string]string) error
}

// Verify that HTTPClient implements the HTTPClientInterface.
var _ HTTPClientInterface = &HTTPClient{}
