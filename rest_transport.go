// rest_transport.go
// -----------------
// HTTP transport for the REST providers. One transport is built per
// integration so the bounded connection pool, timeout, and auth material never
// leak across tenants. Failures below the protocol (dial, DNS, TLS handshake,
// pool-acquisition timeout) surface as *TransportError so the classifier can
// treat REST and SOAP connectivity loss the same way.
package atsbridge

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// RESTTransport issues HTTP calls for a single integration against one base
// URL. Safe for concurrent use.
type RESTTransport struct {
	baseURL string
	client  *http.Client
	logger  *zap.SugaredLogger
}

// NewRESTTransport builds a transport with a bounded per-host connection pool
// sized from the provider config.
func NewRESTTransport(baseURL string, cfg *ProviderConfig, logger *zap.SugaredLogger) *RESTTransport {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg = cfg.withDefaults()
	return &RESTTransport{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     cfg.PoolSize,
				MaxIdleConnsPerHost: cfg.PoolSize,
				IdleConnTimeout:     cfg.PoolIdleTimeout,
			},
		},
		logger: logger,
	}
}

// Send issues the request described by spec with the given auth material and
// returns the provider-agnostic response descriptor. Header keys in the
// descriptor are lowercased.
func (t *RESTTransport) Send(ctx context.Context, spec *RequestSpec, material AuthMaterial) (*ResponseDescriptor, error) {
	fullURL := t.baseURL + spec.Path
	if len(spec.Query) > 0 {
		fullURL += "?" + spec.Query.Encode()
	}

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, spec.Method, fullURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "rest: build request")
	}
	for k, v := range spec.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range material.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		// Everything client.Do reports is below the provider protocol:
		// refused connections, DNS failures, TLS handshakes, pool waits.
		return nil, &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}

	headers := make(map[string]string)
	for k, vals := range resp.Header {
		if len(vals) > 0 {
			headers[strings.ToLower(k)] = vals[0]
		}
	}

	t.logger.Debugw("rest response",
		"method", spec.Method,
		"path", spec.Path,
		"status", resp.StatusCode,
	)

	return &ResponseDescriptor{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       data,
	}, nil
}
