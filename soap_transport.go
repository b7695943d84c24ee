// soap_transport.go
// -----------------
// SOAP transport for the Workday provider. Request messages are nested
// mappings serialized into a SOAP 1.1 envelope with a WS-Security
// UsernameToken header; responses are deserialized back into nested mappings
// plus a synthetic status and fault detail. The mapping conventions follow the
// operation tables in the Workday adapter: keys starting with "@" become
// attributes, the "#content" key becomes element text, slices repeat the
// element, and element keys are serialized in sorted order so a given message
// always produces the same bytes.
package atsbridge

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	wsseNS         = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	wssePasswordNS = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
	workdayNS      = "urn:com.workday/bsvc"

	// bodyPrefix is the namespace prefix applied to every element in the
	// request body. The "@ins0:type" attributes in the operation tables
	// reference the same prefix, so it is part of the wire contract.
	bodyPrefix = "ins0"

	// attrKeyPrefix and contentKey are the mapping conventions for
	// attributes and element text.
	attrKeyPrefix = "@"
	contentKey    = "#content"
)

// SOAPTransport posts envelopes for a single integration. The endpoint is
// carried per-request because Workday tenants each have their own service URL.
type SOAPTransport struct {
	client *http.Client
	logger *zap.SugaredLogger
}

// NewSOAPTransport builds a transport with the provider config's timeout and
// bounded pool.
func NewSOAPTransport(cfg *ProviderConfig, logger *zap.SugaredLogger) *SOAPTransport {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg = cfg.withDefaults()
	return &SOAPTransport{
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

// Send serializes spec.Message under spec.MessageTag, posts the envelope, and
// decodes the response. A provider fault yields a descriptor with a synthetic
// 500 status and the fault detail; the classifier decides what the fault
// means. Transport-level failures surface as *TransportError.
func (t *SOAPTransport) Send(ctx context.Context, spec *RequestSpec, material AuthMaterial) (*ResponseDescriptor, error) {
	if material.WSSE == nil {
		return nil, errors.New("soap: WS-Security token is required")
	}

	envelope, err := BuildEnvelope(material.WSSE, spec.MessageTag, spec.Message)
	if err != nil {
		return nil, errors.Wrap(err, "soap: build envelope")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, spec.Endpoint, bytes.NewReader(envelope))
	if err != nil {
		return nil, errors.Wrap(err, "soap: build request")
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", spec.SOAPAction)

	resp, err := t.client.Do(httpReq)
	if err != nil {
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

	body, fault, err := ParseEnvelope(data)
	if err != nil {
		return nil, NewParseError(ProviderWorkday, spec.Operation, err)
	}

	desc := &ResponseDescriptor{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       data,
		Envelope:   body,
		Fault:      fault,
	}
	if fault != nil && desc.StatusCode < 400 {
		// Some gateways return 200 with a fault body; give the classifier a
		// failing synthetic status either way.
		desc.StatusCode = 500
	}

	t.logger.Debugw("soap response",
		"action", spec.SOAPAction,
		"status", desc.StatusCode,
		"fault", fault != nil,
	)
	return desc, nil
}

// BuildEnvelope serializes a nested message mapping into a complete SOAP 1.1
// envelope with a WS-Security header.
func BuildEnvelope(token *WSSEToken, messageTag string, message map[string]any) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, `<soapenv:Envelope xmlns:soapenv=%q xmlns:%s=%q>`, soapEnvelopeNS, bodyPrefix, workdayNS)

	fmt.Fprintf(&b, `<soapenv:Header><wsse:Security soapenv:mustUnderstand="1" xmlns:wsse=%q>`, wsseNS)
	b.WriteString(`<wsse:UsernameToken>`)
	fmt.Fprintf(&b, `<wsse:Username>%s</wsse:Username>`, escapeXML(token.Username))
	fmt.Fprintf(&b, `<wsse:Password Type=%q>%s</wsse:Password>`, wssePasswordNS, escapeXML(token.Password))
	b.WriteString(`</wsse:UsernameToken></wsse:Security></soapenv:Header>`)

	b.WriteString(`<soapenv:Body>`)
	if err := encodeElement(&b, messageTag, message); err != nil {
		return nil, err
	}
	b.WriteString(`</soapenv:Body></soapenv:Envelope>`)
	return b.Bytes(), nil
}

// encodeElement writes one element (and its subtree) under the body prefix.
func encodeElement(b *bytes.Buffer, name string, v any) error {
	qualified := bodyPrefix + ":" + name
	switch tv := v.(type) {
	case map[string]any:
		attrs, content, children, err := splitMapping(tv)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "<%s", qualified)
		for _, a := range attrs {
			// %q would apply Go escaping, not XML escaping.
			fmt.Fprintf(b, ` %s="%s"`, a.name, escapeXML(a.value))
		}
		if content == "" && len(children) == 0 {
			b.WriteString("/>")
			return nil
		}
		b.WriteString(">")
		if content != "" {
			b.WriteString(escapeXML(content))
		}
		for _, child := range children {
			if err := encodeElement(b, child.name, child.value); err != nil {
				return err
			}
		}
		fmt.Fprintf(b, "</%s>", qualified)
		return nil
	case []any:
		for _, item := range tv {
			if err := encodeElement(b, name, item); err != nil {
				return err
			}
		}
		return nil
	case nil:
		fmt.Fprintf(b, "<%s/>", qualified)
		return nil
	default:
		fmt.Fprintf(b, "<%s>%s</%s>", qualified, escapeXML(fmt.Sprintf("%v", tv)), qualified)
		return nil
	}
}

type xmlAttr struct{ name, value string }

type xmlChild struct {
	name  string
	value any
}

// splitMapping separates a mapping into attributes ("@"-prefixed keys), text
// content ("#content"), and child elements, with deterministic ordering.
func splitMapping(m map[string]any) ([]xmlAttr, string, []xmlChild, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var attrs []xmlAttr
	var content string
	var children []xmlChild
	for _, k := range keys {
		v := m[k]
		switch {
		case strings.HasPrefix(k, attrKeyPrefix):
			attrs = append(attrs, xmlAttr{name: strings.TrimPrefix(k, attrKeyPrefix), value: fmt.Sprintf("%v", v)})
		case k == contentKey:
			content = fmt.Sprintf("%v", v)
		default:
			children = append(children, xmlChild{name: k, value: v})
		}
	}
	return attrs, content, children, nil
}

func escapeXML(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// ParseEnvelope decodes a response envelope into a nested mapping keyed by
// local element names, or the fault the provider declared. Repeated sibling
// elements collapse into a slice; text-only elements become strings.
func ParseEnvelope(data []byte) (map[string]any, *SOAPFault, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, nil, errors.New("soap: envelope has no Body element")
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "soap: decode envelope")
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Body" {
			continue
		}
		body, err := decodeSubtree(dec, start)
		if err != nil {
			return nil, nil, errors.Wrap(err, "soap: decode body")
		}
		bodyMap, _ := body.(map[string]any)
		if faultVal, ok := bodyMap["Fault"]; ok {
			fault := &SOAPFault{}
			if fm, ok := faultVal.(map[string]any); ok {
				if code, ok := fm["faultcode"].(string); ok {
					fault.Code = code
				}
				if s, ok := fm["faultstring"].(string); ok {
					fault.String = s
				}
			}
			return bodyMap, fault, nil
		}
		return bodyMap, nil, nil
	}
}

// decodeSubtree consumes everything up to start's matching end element and
// returns either a string (text-only element) or a nested mapping.
func decodeSubtree(dec *xml.Decoder, start xml.StartElement) (any, error) {
	children := make(map[string]any)
	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch tv := tok.(type) {
		case xml.StartElement:
			child, err := decodeSubtree(dec, tv)
			if err != nil {
				return nil, err
			}
			name := tv.Name.Local
			if existing, ok := children[name]; ok {
				if list, ok := existing.([]any); ok {
					children[name] = append(list, child)
				} else {
					children[name] = []any{existing, child}
				}
			} else {
				children[name] = child
			}
		case xml.CharData:
			text.Write(tv)
		case xml.EndElement:
			if len(children) == 0 {
				return strings.TrimSpace(text.String()), nil
			}
			return children, nil
		}
	}
}
