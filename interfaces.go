package atsbridge

import (
	"context"
	"time"
)

// ProviderAdapter is the capability interface all provider adapters implement.
// Each adapter owns its operation table, credential shaping, and transport;
// the executor drives the call through this interface without knowing whether
// the wire protocol is REST or SOAP.
type ProviderAdapter interface {
	Provider() ProviderType

	// Authenticate turns stored credentials into the material attached to each
	// request. Pure transform; fails with KindCredentialsMissing when a
	// required secret is absent.
	Authenticate(creds Credentials) (AuthMaterial, error)

	// BuildRequest resolves a named operation plus caller parameters into one
	// RequestSpec. Credentials are passed because some providers embed
	// tenant identity in the request path or endpoint.
	BuildRequest(operation string, params Params, creds Credentials) (*RequestSpec, error)

	// ExecuteRequest sends the spec through the adapter's transport.
	ExecuteRequest(ctx context.Context, spec *RequestSpec, material AuthMaterial) (*ResponseDescriptor, error)

	// RateLimitChecker returns the limiter consulted after every response, or
	// nil for providers without declared throttling.
	RateLimitChecker() RateLimitChecker

	// OperationScope reports the resource scope a provider can revoke
	// independently for the given operation, or ScopeNone.
	OperationScope(operation string) Scope
}

// BulkProvider is implemented by adapters whose operation tables include
// paginated bulk reads.
type BulkProvider interface {
	BulkOperation(operation string) (PaginatedOperation, bool)
}

// PaginatedOperation describes how one bulk operation pages: how the cursor
// folds into the per-page parameters, how result rows come out of a page, and
// the provider's page size.
type PaginatedOperation interface {
	PageParams(params Params, cursor string) Params
	ExtractItems(res *Result) ([]PageItem, error)
	PageSizeLimit() int
}

// RateLimitChecker is the throttling contract consulted after each response.
// The core only honors the verdict; token accounting lives behind this
// interface.
type RateLimitChecker interface {
	Check(integrationID string, headers map[string]string) Verdict
}

// Verdict is the rate limiter's decision for the call that just completed.
// Wait > 0 means the current call must pause that long before its next
// request; Exceeded means the provider's budget is spent and the call should
// fail with KindRateLimitExceeded. Honoring Wait suspends the current call
// only, never other integrations' calls.
type Verdict struct {
	Wait     time.Duration
	Exceeded bool
}

// CredentialsStore fetches the stored credential fields for one integration.
// Read-only from this module.
type CredentialsStore interface {
	CredentialsFor(ctx context.Context, integrationID string) (Credentials, error)
}

// HealthRecorder persists health state transitions. Setting the same state
// twice must be a no-op on the recorder's side; this module guarantees it only
// calls the recorder for transitions that actually happened.
type HealthRecorder interface {
	SetHealthState(ctx context.Context, integrationID string, state HealthState) error
}

// NotificationSink receives operator-visible alerts. Fire-and-forget: a
// failure here never masks the error that triggered the notification.
type NotificationSink interface {
	Notify(ctx context.Context, kind string, context map[string]any)
}

// MetricsSink receives outcome counters keyed by provider, operation, and
// outcome.
type MetricsSink interface {
	IncrCounter(provider ProviderType, operation, outcome string)
}
