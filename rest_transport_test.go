package atsbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRESTTransportSend(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("X-RateLimit-Remaining", "41")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer srv.Close()

	tr := NewRESTTransport(srv.URL+"/", &ProviderConfig{}, nil)
	res, err := tr.Send(context.Background(), &RequestSpec{
		Method:  http.MethodGet,
		Path:    "/jobs",
		Query:   url.Values{"per_page": []string{"500"}},
		Headers: map[string]string{"Content-Type": "application/json"},
	}, AuthMaterial{Headers: map[string]string{"Authorization": "Basic abc"}})
	require.NoError(t, err)

	assert.Equal(t, "/jobs", got.URL.Path)
	assert.Equal(t, "500", got.URL.Query().Get("per_page"))
	assert.Equal(t, "Basic abc", got.Header.Get("Authorization"))

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `[{"id":1}]`, string(res.Body))
	// Response header keys come back lowercased for uniform limiter parsing.
	assert.Equal(t, "41", res.Headers["x-ratelimit-remaining"])
	assert.Equal(t, "41", res.Header("X-RateLimit-Remaining"))
}

func TestRESTTransportAuthMaterialWinsOverSpecHeaders(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	tr := NewRESTTransport(srv.URL, &ProviderConfig{}, nil)
	_, err := tr.Send(context.Background(), &RequestSpec{
		Method:  http.MethodGet,
		Path:    "/",
		Headers: map[string]string{"Authorization": "stale"},
	}, AuthMaterial{Headers: map[string]string{"Authorization": "Basic fresh"}})
	require.NoError(t, err)
	assert.Equal(t, "Basic fresh", auth)
}

func TestRESTTransportConnectionRefused(t *testing.T) {
	// A server that is immediately closed leaves a port nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	tr := NewRESTTransport(srv.URL, &ProviderConfig{}, nil)
	_, err := tr.Send(context.Background(), &RequestSpec{Method: http.MethodGet, Path: "/jobs"}, AuthMaterial{})
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}

func TestRESTTransportDefaultContentType(t *testing.T) {
	var ct string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	tr := NewRESTTransport(srv.URL, &ProviderConfig{}, nil)
	_, err := tr.Send(context.Background(), &RequestSpec{Method: http.MethodPost, Path: "/search", Body: []byte(`{}`)}, AuthMaterial{})
	require.NoError(t, err)
	assert.Equal(t, "application/json", ct)
}
