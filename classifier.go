// classifier.go
// -------------
// The error classifier and health state machine. Providers signal failure as
// HTTP status codes, SOAP fault strings, or socket errors; this file maps each
// raised error onto one ErrorKind, decides whether the caller sees a typed
// failure or an empty/skip result, and applies the integration's health
// transition plus the operator notification.
//
// Classification order matters and first match wins:
//  1. transport connectivity failure  -> ConnectivityError, deactivate
//  2. 401 / invalid-credentials fault -> AuthenticationError, deactivate
//  3. task-not-authorized fault       -> AuthorizationError(scope), revoke scope, swallow
//  4. invalid-ID fault                -> StaleResourceError, swallow
//  5. 301/302 carried as faults       -> SuppressedRedirect, notify only, swallow
//  6. everything else                 -> UnclassifiedError, re-raise
//
// The swallowed kinds are expected steady-state conditions: a tenant that
// never granted candidate access, a job deleted upstream, a gateway redirect.
// Re-raising them would force every caller to special-case provider quirks.
package atsbridge

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notification kinds emitted to the operator sink. Unauthorized is distinct
// from unauthenticated: the base credentials are still valid, a single
// capability was revoked.
const (
	NotifyUnauthenticated    = "integration_unauthenticated"
	NotifyUnauthorized       = "integration_unauthorized"
	NotifySuppressedRedirect = "suppressed_redirect"
	NotifyIntegrationError   = "integration_error"
)

// faultPattern maps a provider fault substring onto a normalized kind. The
// literal substrings are part of each provider's wire contract; they live in
// this one table and nowhere else. Matching is case-insensitive.
type faultPattern struct {
	substring string
	kind      ErrorKind
}

var faultPatterns = []faultPattern{
	// Workday WS-Security rejection.
	{substring: "invalid username or password", kind: KindAuthentication},
	// iCIMS web-services rejection.
	{substring: "is not authorized to access web services", kind: KindAuthentication},
	// Workday capability revocation, scoped to one resource.
	{substring: "the task submitted is not authorized", kind: KindAuthorization},
	// Workday validation fault for a since-deleted requisition.
	{substring: "invalid id value", kind: KindStaleResource},
	// Gateway redirects surfaced as SOAP-layer faults.
	{substring: "http error (301)", kind: KindSuppressedRedirect},
	{substring: "http error (302)", kind: KindSuppressedRedirect},
}

// CallContext is everything the classifier knows about the failing call.
type CallContext struct {
	Integration *Integration
	Operation   string
	Scope       Scope
	JobIDs      []string
}

// Outcome is the classifier's decision. Swallowed outcomes carry no error;
// the caller receives an empty/skip result instead.
type Outcome struct {
	Swallowed bool
	Kind      ErrorKind
	Err       error
}

// Classifier applies the classification table and owns all health state
// transitions. Safe for concurrent use; transitions race-safely through the
// Integration's compare-and-set markers, so a duplicate classification for
// the same integration notifies at most once.
type Classifier struct {
	health  HealthRecorder
	notify  NotificationSink
	metrics MetricsSink
	logger  *zap.SugaredLogger
}

// NewClassifier builds a classifier. Nil collaborators are replaced with
// no-ops so the zero wiring still classifies correctly.
func NewClassifier(health HealthRecorder, notify NotificationSink, metrics MetricsSink, logger *zap.SugaredLogger) *Classifier {
	if health == nil {
		health = nopHealthRecorder{}
	}
	if notify == nil {
		notify = nopNotificationSink{}
	}
	if metrics == nil {
		metrics = nopMetricsSink{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Classifier{health: health, notify: notify, metrics: metrics, logger: logger}
}

// Classify maps one raised failure onto its outcome. cause may be nil when
// the failure is a response (status or fault); resp may be nil when the
// failure never produced a response.
func (c *Classifier) Classify(ctx context.Context, cc CallContext, cause error, resp *ResponseDescriptor) Outcome {
	provider := cc.Integration.Provider
	text := failureText(cause, resp)

	// Already-classified failures (rate limit exhaustion, parse failures,
	// missing credentials) keep their kind; they get notification and
	// metrics side effects but never a health transition here.
	var pre *ClassifiedError
	if errors.As(cause, &pre) {
		c.report(ctx, cc, pre)
		return Outcome{Kind: pre.Kind, Err: pre}
	}

	switch {
	case cause != nil && IsTransportError(cause):
		// Persistent network failure is treated as presumptive credential or
		// configuration rot: deactivate rather than retry forever.
		ce := c.classified(cc, KindConnectivity, text, resp, cause)
		c.deactivate(ctx, cc, ce)
		return Outcome{Kind: KindConnectivity, Err: ce}

	case resp != nil && resp.StatusCode == 401,
		matchesKind(text, KindAuthentication):
		ce := c.classified(cc, KindAuthentication, text, resp, cause)
		c.deactivate(ctx, cc, ce)
		return Outcome{Kind: KindAuthentication, Err: ce}

	case matchesKind(text, KindAuthorization):
		ce := c.classified(cc, KindAuthorization, text, resp, cause)
		ce.Scope = cc.Scope
		c.revokeScope(ctx, cc, ce)
		return Outcome{Swallowed: true, Kind: KindAuthorization}

	case matchesKind(text, KindStaleResource):
		c.logger.Warnw("stale resource referenced upstream",
			"provider", provider,
			"operation", cc.Operation,
			"integration_id", cc.Integration.ID,
			"job_ids", cc.JobIDs,
			"fault", text,
		)
		c.metrics.IncrCounter(provider, cc.Operation, string(KindStaleResource))
		return Outcome{Swallowed: true, Kind: KindStaleResource}

	case matchesKind(text, KindSuppressedRedirect):
		ce := c.classified(cc, KindSuppressedRedirect, text, resp, cause)
		c.notifyRecord(ctx, NotifySuppressedRedirect, cc, ce.Record())
		c.metrics.IncrCounter(provider, cc.Operation, string(KindSuppressedRedirect))
		return Outcome{Swallowed: true, Kind: KindSuppressedRedirect}

	default:
		ce := c.classified(cc, KindUnclassified, text, resp, cause)
		c.report(ctx, cc, ce)
		return Outcome{Kind: KindUnclassified, Err: ce}
	}
}

// deactivate flips the integration to Unauthenticated. The CAS on the
// integration guarantees the recorder and the sink each fire exactly once no
// matter how many failing calls race to classify.
func (c *Classifier) deactivate(ctx context.Context, cc CallContext, ce *ClassifiedError) {
	c.metrics.IncrCounter(cc.Integration.Provider, cc.Operation, string(ce.Kind))
	if !cc.Integration.markUnauthenticated() {
		return
	}
	state := HealthState{Status: HealthUnauthenticated}
	if err := c.health.SetHealthState(ctx, cc.Integration.ID, state); err != nil {
		c.logger.Errorw("health state write failed",
			"integration_id", cc.Integration.ID,
			"error", err,
		)
	}
	c.notifyRecord(ctx, NotifyUnauthenticated, cc, ce.Record())
}

// revokeScope marks one resource scope unauthorized, leaving other scopes
// callable.
func (c *Classifier) revokeScope(ctx context.Context, cc CallContext, ce *ClassifiedError) {
	c.metrics.IncrCounter(cc.Integration.Provider, cc.Operation, string(KindAuthorization))
	if !cc.Integration.markUnauthorized(cc.Scope) {
		return
	}
	state := HealthState{Status: HealthUnauthorized, Scope: cc.Scope}
	if err := c.health.SetHealthState(ctx, cc.Integration.ID, state); err != nil {
		c.logger.Errorw("health state write failed",
			"integration_id", cc.Integration.ID,
			"error", err,
		)
	}
	c.notifyRecord(ctx, NotifyUnauthorized, cc, ce.Record())
}

// report emits the notification and per-operation counter for a propagated
// failure.
func (c *Classifier) report(ctx context.Context, cc CallContext, ce *ClassifiedError) {
	c.metrics.IncrCounter(cc.Integration.Provider, cc.Operation, string(ce.Kind))
	c.notifyRecord(ctx, NotifyIntegrationError, cc, ce.Record())
	c.logger.Errorw("integration call failed",
		"provider", cc.Integration.Provider,
		"operation", cc.Operation,
		"integration_id", cc.Integration.ID,
		"kind", ce.Kind,
		"error", ce.Message,
	)
}

// notifyRecord dispatches to the sink. The sink is fire-and-forget, so a
// panicking sink must not mask the error being classified.
func (c *Classifier) notifyRecord(ctx context.Context, kind string, cc CallContext, rec ErrorRecord) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("notification sink panicked", "kind", kind, "panic", r)
		}
	}()
	payload := map[string]any{
		"event_id":       uuid.NewString(),
		"integration_id": cc.Integration.ID,
		"provider":       rec.Provider,
		"operation":      rec.Operation,
		"error_kind":     rec.Kind,
		"message":        rec.Message,
	}
	if rec.HTTPStatus != 0 {
		payload["http_status"] = rec.HTTPStatus
	}
	if rec.Scope != ScopeNone {
		payload["scope"] = rec.Scope
	}
	if len(cc.JobIDs) > 0 {
		payload["job_ids"] = cc.JobIDs
	}
	c.notify.Notify(ctx, kind, payload)
}

func (c *Classifier) classified(cc CallContext, kind ErrorKind, text string, resp *ResponseDescriptor, cause error) *ClassifiedError {
	ce := &ClassifiedError{
		Kind:      kind,
		Provider:  cc.Integration.Provider,
		Operation: cc.Operation,
		Message:   text,
		cause:     cause,
	}
	if resp != nil {
		ce.HTTPStatus = resp.StatusCode
	}
	return ce
}

// failureText assembles the text the fault table matches against: the SOAP
// fault string, a response body excerpt, and the raised error's message.
// Original casing is preserved so logs carry ids verbatim; matching
// lowercases separately.
func failureText(cause error, resp *ResponseDescriptor) string {
	var parts []string
	if resp != nil {
		if resp.Fault != nil {
			parts = append(parts, resp.Fault.String)
		}
		if len(resp.Body) > 0 && resp.Fault == nil {
			excerpt := resp.Body
			if len(excerpt) > 512 {
				excerpt = excerpt[:512]
			}
			parts = append(parts, string(excerpt))
		}
	}
	if cause != nil {
		parts = append(parts, cause.Error())
	}
	return strings.TrimSpace(strings.Join(parts, "; "))
}

func matchesKind(text string, kind ErrorKind) bool {
	if text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, p := range faultPatterns {
		if p.kind == kind && strings.Contains(lowered, p.substring) {
			return true
		}
	}
	return false
}

type nopHealthRecorder struct{}

func (nopHealthRecorder) SetHealthState(context.Context, string, HealthState) error { return nil }

type nopNotificationSink struct{}

func (nopNotificationSink) Notify(context.Context, string, map[string]any) {}

type nopMetricsSink struct{}

func (nopMetricsSink) IncrCounter(ProviderType, string, string) {}
