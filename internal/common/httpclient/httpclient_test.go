package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/3/action/package_show":
			assert.Equal(t, "secret-key", r.Header.Get("Authorization"))
			assert.Equal(t, "my-dataset", r.URL.Query().Get("id"))
			w.Write([]byte(`{"success":true,"result":{"name":"my-dataset"}}`))
		case "/api/3/action/package_create":
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"name":"x"}`, string(body))
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"success":false,"error":{"message":"already exists"}}`))
		case "/api/3/action/detail":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"bad footprint"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(StaticConfig{ServerURL: srv.URL, APIKey: "secret-key", Timeout: 5 * time.Second})
	ctx := context.Background()

	body, err := c.Get(ctx, "/api/3/action/package_show", map[string]string{"id": "my-dataset"})
	require.NoError(t, err)
	assert.Contains(t, string(body), "my-dataset")

	_, err = c.Post(ctx, "/api/3/action/package_create", []byte(`{"name":"x"}`), nil)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusConflict, httpErr.StatusCode)
	assert.Equal(t, "already exists", httpErr.Message)

	_, err = c.Post(ctx, "/api/3/action/detail", nil, nil)
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "bad footprint", httpErr.Message)

	err = c.Delete(ctx, "/nowhere", nil)
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "Not Found", httpErr.Message)
}

func TestBasicAuthTakesPrecedence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, passwd, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "geoserver", passwd)
		assert.Equal(t, "/mra/workspaces/public.json", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(StaticConfig{ServerURL: srv.URL + "/mra", APIKey: "ignored", Username: "admin", Password: "geoserver", Timeout: time.Second})
	_, err := c.Get(context.Background(), "workspaces/public.json", nil)
	require.NoError(t, err)
}

func TestTimeoutIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(StaticConfig{ServerURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.Get(context.Background(), "/slow", nil)
	require.Error(t, err)

	var netErr interface{ Timeout() bool }
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Timeout())
}

func TestURL(t *testing.T) {
	tests := []struct {
		name   string
		server string
		opts   RequestOptions
		want   string
	}{
		{"joined path", "https://ckan.example.org/", RequestOptions{Path: "/api/3/action/package_show"}, "https://ckan.example.org/api/3/action/package_show"},
		{"trailing slash kept", "https://geo.example.org/mra", RequestOptions{Path: "workspaces/"}, "https://geo.example.org/mra/workspaces/"},
		{"query parameters", "https://ckan.example.org", RequestOptions{Path: "x", QueryParams: map[string]string{"id": "a b"}}, "https://ckan.example.org/x?id=a+b"},
		{
			"server url as given",
			"https://files.example.org/dept%2F38//communes.zip?X-Amz-Signature=ab%2Bcd%3D&b=2&a=1",
			RequestOptions{},
			"https://files.example.org/dept%2F38//communes.zip?X-Amz-Signature=ab%2Bcd%3D&b=2&a=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(StaticConfig{ServerURL: tt.server})
			u, err := c.URL(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}
