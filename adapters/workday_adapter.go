// workday_adapter.go
// ------------------
// Adapter for the Workday Recruiting SOAP service. Every operation is one row
// in the table below: the SOAP action, the request message tag, the default
// message template, and the resource scope Workday can revoke independently.
// A request message is the per-operation template deep-merged with caller
// overrides for paging (count, page) and resource filters (job id, job id
// list, candidate email). The action names, message tags, and "@ins0:type"
// attributes are Workday's fixed wire contract and must not be edited without
// a matching WSDL change.
package adapters

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	atsbridge "github.com/recruitops/ats-bridge"
	"github.com/recruitops/ats-bridge/internal"
)

// Workday paging defaults. Candidate bulk reads use the smaller page because
// candidate payloads are an order of magnitude heavier than requisitions.
const (
	workdayDefaultPageSize       = 999
	workdayBulkCandidatePageSize = 499
)

// Credential fields read from the store.
const (
	workdayCredUsername = "username"
	workdayCredPassword = "password"
	workdayCredHost     = "base_url"
	workdayCredTenantID = "external_organization_id"
)

type soapOperation struct {
	Action     string
	MessageTag string
	Default    map[string]any
	Scope      atsbridge.Scope
}

var workdayOperations = map[string]soapOperation{
	"health_check": {
		Action:     "Get_Server_Timestamp",
		MessageTag: "Server_Timestamp_Get",
		Default:    map[string]any{},
	},
	"get_jobs": {
		Action:     "Get_Job_Postings",
		MessageTag: "Get_Job_Postings_Request",
		Scope:      atsbridge.ScopeJobs,
		Default: map[string]any{
			"Response_Filter": map[string]any{"Count": workdayDefaultPageSize, "Page": 1},
			"Request_Criteria": map[string]any{
				"Show_Only_Active_Job_Postings":   true,
				"Show_Only_External_Job_Postings": true,
			},
		},
	},
	"get_evergreen_jobs": {
		Action:     "Get_Evergreen_Requisitions",
		MessageTag: "Get_Evergreen_Requisitions_Request",
		Scope:      atsbridge.ScopeJobs,
		Default: map[string]any{
			"Response_Filter": map[string]any{"Count": workdayDefaultPageSize, "Page": 1},
		},
	},
	"get_candidates": {
		Action:     "Get_Candidates",
		MessageTag: "Get_Candidates_Request",
		Scope:      atsbridge.ScopeCandidates,
		Default: map[string]any{
			"Response_Filter": map[string]any{"Count": workdayDefaultPageSize, "Page": 1},
			"Response_Group": map[string]any{
				"Exclude_All_Attachments": true,
				"Include_Reference":       true,
			},
		},
	},
	"get_all_candidates": {
		Action:     "Get_Candidates",
		MessageTag: "Get_Candidates_Request",
		Scope:      atsbridge.ScopeCandidates,
		Default: map[string]any{
			"Response_Filter": map[string]any{"Count": workdayBulkCandidatePageSize, "Page": 1},
			"Response_Group": map[string]any{
				"Exclude_All_Attachments": true,
				"Include_Reference":       true,
			},
		},
	},
	"get_candidate_by_email": {
		Action:     "Get_Candidates",
		MessageTag: "Get_Candidates_Request",
		Scope:      atsbridge.ScopeCandidates,
		Default: map[string]any{
			"Response_Group": map[string]any{
				"Exclude_All_Attachments": true,
				"Include_Reference":       true,
			},
		},
	},
}

type WorkdayAdapter struct {
	service   string
	transport *atsbridge.SOAPTransport
	logger    *zap.SugaredLogger
}

func NewWorkdayAdapter(cfg *atsbridge.ProviderConfig, logger *zap.SugaredLogger) *WorkdayAdapter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WorkdayAdapter{
		service:   cfg.SOAPService,
		transport: atsbridge.NewSOAPTransport(cfg, logger),
		logger:    logger,
	}
}

func (w *WorkdayAdapter) Provider() atsbridge.ProviderType {
	return atsbridge.ProviderWorkday
}

// Authenticate shapes the WS-Security username token.
func (w *WorkdayAdapter) Authenticate(creds atsbridge.Credentials) (atsbridge.AuthMaterial, error) {
	username, password := creds[workdayCredUsername], creds[workdayCredPassword]
	if username == "" {
		return atsbridge.AuthMaterial{}, atsbridge.NewCredentialsMissing(atsbridge.ProviderWorkday, workdayCredUsername)
	}
	if password == "" {
		return atsbridge.AuthMaterial{}, atsbridge.NewCredentialsMissing(atsbridge.ProviderWorkday, workdayCredPassword)
	}
	return atsbridge.AuthMaterial{
		WSSE: &atsbridge.WSSEToken{Username: username, Password: password},
	}, nil
}

func (w *WorkdayAdapter) BuildRequest(operation string, params atsbridge.Params, creds atsbridge.Credentials) (*atsbridge.RequestSpec, error) {
	op, ok := workdayOperations[operation]
	if !ok {
		return nil, fmt.Errorf("workday: unknown operation %q", operation)
	}
	host := creds[workdayCredHost]
	if host == "" {
		return nil, atsbridge.NewCredentialsMissing(atsbridge.ProviderWorkday, workdayCredHost)
	}
	tenant := creds[workdayCredTenantID]
	if tenant == "" {
		return nil, atsbridge.NewCredentialsMissing(atsbridge.ProviderWorkday, workdayCredTenantID)
	}

	return &atsbridge.RequestSpec{
		Operation:  operation,
		Endpoint:   fmt.Sprintf("https://%s.com/ccx/service/%s/%s", host, tenant, w.service),
		SOAPAction: op.Action,
		MessageTag: op.MessageTag,
		Message:    buildMessage(op.Default, params),
	}, nil
}

// buildMessage deep-merges the operation's default template with caller
// overrides. The template is never mutated; the merge copies.
func buildMessage(defaultMessage map[string]any, params atsbridge.Params) map[string]any {
	overlay := map[string]any{}

	if perPage, ok := params.Int("per_page"); ok {
		overlay["Response_Filter"] = map[string]any{"Count": perPage}
	}
	if page, ok := params.Int("page"); ok {
		rf, _ := overlay["Response_Filter"].(map[string]any)
		if rf == nil {
			rf = map[string]any{}
			overlay["Response_Filter"] = rf
		}
		rf["Page"] = page
	}

	criteria := map[string]any{}
	if jobID, ok := params.String("job_id"); ok && jobID != "" {
		criteria["Job_Requisition_Reference"] = jobReference(jobID)
	}
	if jobIDs, ok := params.Strings("job_ids"); ok && len(jobIDs) > 0 {
		refs := make([]any, 0, len(jobIDs))
		for _, id := range jobIDs {
			refs = append(refs, jobReference(id))
		}
		criteria["Job_Requisition_Reference"] = refs
	}
	if email, ok := params.String("email"); ok && email != "" {
		criteria["Candidate_Email_Address"] = email
	}
	if len(criteria) > 0 {
		overlay["Request_Criteria"] = criteria
	}

	return internal.DeepMerge(defaultMessage, overlay)
}

// jobReference shapes one requisition reference element. The type attribute
// rides the body namespace prefix; see the transport's mapping conventions.
func jobReference(jobID string) map[string]any {
	return map[string]any{
		"ID": map[string]any{
			"#content":   jobID,
			"@ins0:type": "Job_Requisition_ID",
		},
	}
}

func (w *WorkdayAdapter) ExecuteRequest(ctx context.Context, spec *atsbridge.RequestSpec, material atsbridge.AuthMaterial) (*atsbridge.ResponseDescriptor, error) {
	return w.transport.Send(ctx, spec, material)
}

// Workday applies no per-minute request budget on this service.
func (w *WorkdayAdapter) RateLimitChecker() atsbridge.RateLimitChecker {
	return nil
}

func (w *WorkdayAdapter) OperationScope(operation string) atsbridge.Scope {
	if op, ok := workdayOperations[operation]; ok {
		return op.Scope
	}
	return atsbridge.ScopeNone
}
