// health.go
// ---------
// Integration identity and the health state machine. The classifier is the only
// writer: transitions are one-way within a run (Active -> Unauthenticated, or a
// scope joining the revoked set) and are applied with compare-and-set semantics
// so a duplicate classification, or a racing classification for the same
// integration, produces exactly one observable transition and at most one
// notification. Returning to Active happens outside this module, via a
// credential update.
package atsbridge

import "sync"

// ProviderType identifies one of the supported ATS providers.
type ProviderType string

const (
	ProviderGreenhouse ProviderType = "greenhouse"
	ProviderICIMS      ProviderType = "icims"
	ProviderWorkday    ProviderType = "workday"
)

// Scope is a resource category a provider can revoke independently of the
// integration's base credentials.
type Scope string

const (
	ScopeNone       Scope = ""
	ScopeJobs       Scope = "jobs"
	ScopeCandidates Scope = "candidates"
)

// HealthStatus is the integration's presumed credential validity.
type HealthStatus string

const (
	HealthActive          HealthStatus = "active"
	HealthUnauthenticated HealthStatus = "unauthenticated"
	HealthUnauthorized    HealthStatus = "unauthorized"
)

// HealthState is a point-in-time snapshot of an integration's health. Scope is
// set only when Status is HealthUnauthorized.
type HealthState struct {
	Status HealthStatus
	Scope  Scope
}

// Integration identifies one tenant's connection to one ATS provider. The
// record itself (and its credentials) is owned by external storage; this type
// carries only what a call needs: identity, provider, and the mutable health
// state the classifier transitions.
type Integration struct {
	ID       string
	Provider ProviderType

	mu              sync.Mutex
	unauthenticated bool
	revoked         map[Scope]struct{}
}

// NewIntegration returns an active integration handle.
func NewIntegration(id string, provider ProviderType) *Integration {
	return &Integration{ID: id, Provider: provider}
}

// Health reports the current snapshot. When scopes are revoked but credentials
// are still presumed valid, the first revoked scope (jobs before candidates)
// is reported.
func (in *Integration) Health() HealthState {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.unauthenticated {
		return HealthState{Status: HealthUnauthenticated}
	}
	for _, s := range []Scope{ScopeJobs, ScopeCandidates} {
		if _, ok := in.revoked[s]; ok {
			return HealthState{Status: HealthUnauthorized, Scope: s}
		}
	}
	return HealthState{Status: HealthActive}
}

// Authorized reports whether the given scope is still granted. ScopeNone is
// always authorized.
func (in *Integration) Authorized(scope Scope) bool {
	if scope == ScopeNone {
		return true
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.unauthenticated {
		return false
	}
	_, gone := in.revoked[scope]
	return !gone
}

// markUnauthenticated flips the integration to Unauthenticated. The return
// value is true only for the call that performed the transition; a duplicate
// classification observes false and must not notify again.
func (in *Integration) markUnauthenticated() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.unauthenticated {
		return false
	}
	in.unauthenticated = true
	return true
}

// markUnauthorized revokes one scope. Scopes are independent: revoking
// candidates leaves jobs callable. Returns true only on the first revocation
// of that scope.
func (in *Integration) markUnauthorized(scope Scope) bool {
	if scope == ScopeNone {
		return false
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.unauthenticated {
		return false
	}
	if in.revoked == nil {
		in.revoked = make(map[Scope]struct{})
	}
	if _, ok := in.revoked[scope]; ok {
		return false
	}
	in.revoked[scope] = struct{}{}
	return true
}
