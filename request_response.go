// request_response.go
// -------------------
// Protocol-agnostic request and response shapes shared by the REST and SOAP
// transports. A RequestSpec is built once per call by the provider adapter and
// owned by the executor for the duration of that call; a ResponseDescriptor is
// produced by the transport and discarded once the executor has decoded or
// classified it.
package atsbridge

import (
	"net/url"
	"strings"
)

// Params carries caller-supplied named parameters for one operation call.
type Params map[string]any

// String fetches a string-typed parameter, tolerating absence.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int fetches an int-typed parameter, tolerating absence and json-decoded
// float64 values.
func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Strings fetches a string-slice parameter, accepting []string or []any.
func (p Params) Strings(key string) ([]string, bool) {
	switch v := p[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// RequestSpec is one fully-resolved provider request. REST calls populate
// Method/Path/Query/Body; SOAP calls populate Endpoint/SOAPAction/MessageTag/
// Message instead.
type RequestSpec struct {
	Operation string

	// REST
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte

	// SOAP
	Endpoint   string
	SOAPAction string
	MessageTag string
	Message    map[string]any
}

// ResponseDescriptor is the provider-agnostic response shape. Header keys are
// lowercased by the transports. SOAP responses carry the decoded envelope body
// in Envelope and, when the provider returned a fault, a synthetic StatusCode
// plus the Fault detail.
type ResponseDescriptor struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte

	Envelope map[string]any
	Fault    *SOAPFault
}

// Header fetches a response header case-insensitively.
func (r *ResponseDescriptor) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[strings.ToLower(key)]
}

// SOAPFault is the provider-declared failure carried in a SOAP envelope.
type SOAPFault struct {
	Code   string
	String string
}

// AuthMaterial is the output of an adapter's Authenticate step: header values
// for REST providers, or a WS-Security username token for SOAP.
type AuthMaterial struct {
	Headers map[string]string
	WSSE    *WSSEToken
}

// WSSEToken is the WS-Security UsernameToken placed in SOAP request headers.
type WSSEToken struct {
	Username string
	Password string
}

// Credentials is the opaque field set fetched from the credentials store for
// one integration.
type Credentials map[string]string
