// Package mock provides a scriptable ProviderAdapter for consumers' tests:
// queue responses or errors, point the bridge at the adapter, and assert on
// what the executor and classifier did with them.
package mock

import (
	"context"
	"sync"

	atsbridge "github.com/recruitops/ats-bridge"
)

// Step is one scripted outcome. Either Response or Err is consumed per call;
// the last step repeats once the script runs out.
type Step struct {
	Response *atsbridge.ResponseDescriptor
	Err      error
}

// Adapter is a scriptable provider adapter. Safe for concurrent use.
type Adapter struct {
	ProviderType atsbridge.ProviderType
	Scope        atsbridge.Scope // reported for every operation
	Checker      atsbridge.RateLimitChecker

	mu       sync.Mutex
	script   []Step
	calls    int
	Requests []*atsbridge.RequestSpec // specs seen, in order
}

// Script queues outcomes for successive calls.
func (m *Adapter) Script(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, steps...)
}

// Calls reports how many requests reached the adapter.
func (m *Adapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Adapter) Provider() atsbridge.ProviderType {
	if m.ProviderType == "" {
		return atsbridge.ProviderGreenhouse
	}
	return m.ProviderType
}

func (m *Adapter) Authenticate(creds atsbridge.Credentials) (atsbridge.AuthMaterial, error) {
	return atsbridge.AuthMaterial{Headers: map[string]string{"Authorization": "Bearer mock"}}, nil
}

func (m *Adapter) BuildRequest(operation string, params atsbridge.Params, _ atsbridge.Credentials) (*atsbridge.RequestSpec, error) {
	return &atsbridge.RequestSpec{Operation: operation, Method: "GET", Path: "/" + operation}, nil
}

func (m *Adapter) ExecuteRequest(_ context.Context, spec *atsbridge.RequestSpec, _ atsbridge.AuthMaterial) (*atsbridge.ResponseDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.Requests = append(m.Requests, spec)

	if len(m.script) == 0 {
		return &atsbridge.ResponseDescriptor{StatusCode: 200, Body: []byte(`{"ok":true}`)}, nil
	}
	step := m.script[0]
	if len(m.script) > 1 {
		m.script = m.script[1:]
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

func (m *Adapter) RateLimitChecker() atsbridge.RateLimitChecker {
	return m.Checker
}

func (m *Adapter) OperationScope(string) atsbridge.Scope {
	return m.Scope
}
