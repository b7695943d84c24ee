package atsbridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEnvelopeCarriesSecurityToken(t *testing.T) {
	env, err := BuildEnvelope(&WSSEToken{Username: "svc@tenant", Password: "s3cret"}, "Server_Timestamp_Get", map[string]any{})
	require.NoError(t, err)

	s := string(env)
	assert.Contains(t, s, "<wsse:Username>svc@tenant</wsse:Username>")
	assert.Contains(t, s, "<wsse:Password")
	assert.Contains(t, s, "s3cret")
	assert.Contains(t, s, "<ins0:Server_Timestamp_Get/>")
}

func TestBuildEnvelopeSerializesNestedMessage(t *testing.T) {
	message := map[string]any{
		"Response_Filter": map[string]any{"Count": 999, "Page": 1},
		"Request_Criteria": map[string]any{
			"Job_Requisition_Reference": []any{
				map[string]any{"ID": map[string]any{"#content": "A", "@ins0:type": "Job_Requisition_ID"}},
				map[string]any{"ID": map[string]any{"#content": "B", "@ins0:type": "Job_Requisition_ID"}},
			},
		},
	}
	env, err := BuildEnvelope(&WSSEToken{Username: "u", Password: "p"}, "Get_Job_Postings_Request", message)
	require.NoError(t, err)

	s := string(env)
	assert.Contains(t, s, "<ins0:Count>999</ins0:Count>")
	assert.Contains(t, s, "<ins0:Page>1</ins0:Page>")

	first := strings.Index(s, `<ins0:ID ins0:type="Job_Requisition_ID">A</ins0:ID>`)
	second := strings.Index(s, `<ins0:ID ins0:type="Job_Requisition_ID">B</ins0:ID>`)
	require.GreaterOrEqual(t, first, 0)
	require.Greater(t, second, first, "list elements keep caller order")
}

func TestBuildEnvelopeIsDeterministic(t *testing.T) {
	message := map[string]any{
		"Zeta":  "z",
		"Alpha": "a",
		"Mid":   map[string]any{"B": 2, "A": 1},
	}
	a, err := BuildEnvelope(&WSSEToken{Username: "u", Password: "p"}, "Tag", message)
	require.NoError(t, err)
	b, err := BuildEnvelope(&WSSEToken{Username: "u", Password: "p"}, "Tag", message)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Less(t, strings.Index(string(a), "Alpha"), strings.Index(string(a), "Zeta"))
}

func TestBuildEnvelopeEscapesText(t *testing.T) {
	env, err := BuildEnvelope(&WSSEToken{Username: "u", Password: "p"}, "Tag", map[string]any{
		"Candidate_Email_Address": "a&b<c>@example.com",
	})
	require.NoError(t, err)
	assert.Contains(t, string(env), "a&amp;b&lt;c&gt;@example.com")
}

func TestBuildEnvelopeEscapesAttributeValues(t *testing.T) {
	env, err := BuildEnvelope(&WSSEToken{Username: "u", Password: "p"}, "Tag", map[string]any{
		"Ref": map[string]any{"#content": "x", "@ins0:type": `a"b<c>`},
	})
	require.NoError(t, err)

	s := string(env)
	assert.Contains(t, s, `ins0:type="a&#34;b&lt;c&gt;"`)
	assert.NotContains(t, s, `type="a"b`, "a raw quote would terminate the attribute early")
}

func TestParseEnvelopeDecodesBody(t *testing.T) {
	payload := `<?xml version="1.0"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <wd:Get_Job_Postings_Response xmlns:wd="urn:com.workday/bsvc">
      <wd:Response_Results>
        <wd:Total_Results>2</wd:Total_Results>
      </wd:Response_Results>
      <wd:Response_Data>
        <wd:Job_Posting><wd:Job_Posting_ID>R-1</wd:Job_Posting_ID></wd:Job_Posting>
        <wd:Job_Posting><wd:Job_Posting_ID>R-2</wd:Job_Posting_ID></wd:Job_Posting>
      </wd:Response_Data>
    </wd:Get_Job_Postings_Response>
  </env:Body>
</env:Envelope>`

	body, fault, err := ParseEnvelope([]byte(payload))
	require.NoError(t, err)
	assert.Nil(t, fault)

	resp, ok := body["Get_Job_Postings_Response"].(map[string]any)
	require.True(t, ok)
	results := resp["Response_Results"].(map[string]any)
	assert.Equal(t, "2", results["Total_Results"])

	data := resp["Response_Data"].(map[string]any)
	postings, ok := data["Job_Posting"].([]any)
	require.True(t, ok, "repeated siblings collapse into a slice")
	assert.Len(t, postings, 2)
}

func TestParseEnvelopeDecodesFault(t *testing.T) {
	payload := `<?xml version="1.0"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <env:Fault>
      <faultcode>SOAP-ENV:Client.validationError</faultcode>
      <faultstring>Invalid Username or Password</faultstring>
    </env:Fault>
  </env:Body>
</env:Envelope>`

	_, fault, err := ParseEnvelope([]byte(payload))
	require.NoError(t, err)
	require.NotNil(t, fault)
	assert.Equal(t, "SOAP-ENV:Client.validationError", fault.Code)
	assert.Equal(t, "Invalid Username or Password", fault.String)
}

func TestParseEnvelopeWithoutBody(t *testing.T) {
	_, _, err := ParseEnvelope([]byte(`<?xml version="1.0"?><nope/>`))
	assert.Error(t, err)
}

func TestSOAPTransportRoundTrip(t *testing.T) {
	var gotAction string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body><wd:Server_Timestamp xmlns:wd="urn:com.workday/bsvc"><wd:Server_Timestamp_Data>2026-01-02T03:04:05Z</wd:Server_Timestamp_Data></wd:Server_Timestamp></env:Body>
</env:Envelope>`))
	}))
	defer srv.Close()

	tr := NewSOAPTransport(&ProviderConfig{}, nil)
	spec := &RequestSpec{
		Operation:  "health_check",
		Endpoint:   srv.URL,
		SOAPAction: "Get_Server_Timestamp",
		MessageTag: "Server_Timestamp_Get",
		Message:    map[string]any{},
	}
	resp, err := tr.Send(context.Background(), spec, AuthMaterial{WSSE: &WSSEToken{Username: "u", Password: "p"}})

	require.NoError(t, err)
	assert.Equal(t, "Get_Server_Timestamp", gotAction)
	assert.Contains(t, gotBody, "<ins0:Server_Timestamp_Get/>")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Nil(t, resp.Fault)
	ts := resp.Envelope["Server_Timestamp"].(map[string]any)
	assert.Equal(t, "2026-01-02T03:04:05Z", ts["Server_Timestamp_Data"])
}

func TestSOAPTransportFaultGetsFailingStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body><env:Fault><faultcode>SOAP-ENV:Server</faultcode><faultstring>Processing error</faultstring></env:Fault></env:Body>
</env:Envelope>`))
	}))
	defer srv.Close()

	tr := NewSOAPTransport(&ProviderConfig{}, nil)
	spec := &RequestSpec{Endpoint: srv.URL, SOAPAction: "Get_Candidates", MessageTag: "Get_Candidates_Request", Message: map[string]any{}}
	resp, err := tr.Send(context.Background(), spec, AuthMaterial{WSSE: &WSSEToken{Username: "u", Password: "p"}})

	require.NoError(t, err)
	require.NotNil(t, resp.Fault)
	assert.Equal(t, 500, resp.StatusCode, "a 200 with a fault body still fails classification")
}

func TestSOAPTransportMalformedEnvelopeIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<env:Envelope truncated`))
	}))
	defer srv.Close()

	tr := NewSOAPTransport(&ProviderConfig{}, nil)
	spec := &RequestSpec{Operation: "get_jobs", Endpoint: srv.URL, SOAPAction: "Get_Job_Postings", MessageTag: "Get_Job_Postings_Request", Message: map[string]any{}}
	_, err := tr.Send(context.Background(), spec, AuthMaterial{WSSE: &WSSEToken{Username: "u", Password: "p"}})

	require.Error(t, err)
	assert.False(t, IsTransportError(err), "an unparsable body is not a connectivity failure")
	assert.Equal(t, KindResponseParse, KindOf(err))
}

func TestSOAPTransportConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	tr := NewSOAPTransport(&ProviderConfig{}, nil)
	spec := &RequestSpec{Endpoint: url, SOAPAction: "Get_Server_Timestamp", MessageTag: "Server_Timestamp_Get", Message: map[string]any{}}
	_, err := tr.Send(context.Background(), spec, AuthMaterial{WSSE: &WSSEToken{Username: "u", Password: "p"}})

	require.Error(t, err)
	assert.True(t, IsTransportError(err))
}
