// errors.go
// ---------
// This file defines the error taxonomy shared by all providers. Providers signal
// failure in different vocabularies (HTTP status codes, SOAP fault strings,
// socket errors); the classifier converges them onto the kinds below, and callers
// only ever see a *ClassifiedError carrying one of these kinds.
package atsbridge

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorKind is the normalized failure category surfaced to callers and to the
// notification collaborator.
type ErrorKind string

const (
	KindCredentialsMissing ErrorKind = "credentials_missing"
	KindConnectivity       ErrorKind = "connectivity_error"
	KindAuthentication     ErrorKind = "authentication_error"
	KindAuthorization      ErrorKind = "authorization_error"
	KindStaleResource      ErrorKind = "stale_resource_error"
	KindSuppressedRedirect ErrorKind = "suppressed_redirect"
	KindRateLimitExceeded  ErrorKind = "rate_limit_exceeded"
	KindResponseParse      ErrorKind = "response_parse_error"
	KindUnclassified       ErrorKind = "unclassified_error"
)

// ClassifiedError is the typed failure returned to callers. It wraps the
// underlying cause so errors.Is/As still reach transport-level detail.
type ClassifiedError struct {
	Kind       ErrorKind
	Provider   ProviderType
	Operation  string
	Scope      Scope // set for KindAuthorization
	HTTPStatus int   // zero when the failure never produced a status
	Message    string

	cause error
}

func (e *ClassifiedError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s/%s: %s (%s, status %d)", e.Provider, e.Operation, e.Message, e.Kind, e.HTTPStatus)
	}
	return fmt.Sprintf("%s/%s: %s (%s)", e.Provider, e.Operation, e.Message, e.Kind)
}

func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// KindOf extracts the normalized kind from any error returned by this module.
// Errors that never passed through the classifier report KindUnclassified.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnclassified
}

// IsKind reports whether err carries the given classified kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Record converts the error to the flat shape handed to the notification sink.
func (e *ClassifiedError) Record() ErrorRecord {
	return ErrorRecord{
		Kind:       e.Kind,
		Provider:   e.Provider,
		Operation:  e.Operation,
		Scope:      e.Scope,
		Message:    e.Message,
		HTTPStatus: e.HTTPStatus,
	}
}

// ErrorRecord is the normalized failure shape surfaced to collaborators.
type ErrorRecord struct {
	Kind       ErrorKind    `json:"kind"`
	Provider   ProviderType `json:"provider"`
	Operation  string       `json:"operation"`
	Scope      Scope        `json:"scope,omitempty"`
	Message    string       `json:"message"`
	HTTPStatus int          `json:"http_status,omitempty"`
}

// TransportError marks a failure that happened below the provider protocol:
// connection refused, DNS resolution, TLS handshake, pool-acquisition timeout.
// Both transports wrap such failures in this type so the classifier can treat
// REST and SOAP connectivity loss uniformly.
type TransportError struct {
	Op  string // "dial", "send", "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err originated below the provider protocol.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// NewCredentialsMissing builds the typed failure adapters return when a
// required secret is absent from the integration's stored credentials.
func NewCredentialsMissing(provider ProviderType, field string) *ClassifiedError {
	return &ClassifiedError{
		Kind:     KindCredentialsMissing,
		Provider: provider,
		Message:  fmt.Sprintf("required credential %q is not set", field),
	}
}

// NewParseError builds the typed failure for an unparsable provider payload.
func NewParseError(provider ProviderType, operation string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Kind:      KindResponseParse,
		Provider:  provider,
		Operation: operation,
		Message:   "response body could not be parsed",
		cause:     cause,
	}
}
