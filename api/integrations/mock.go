package integrations

import (
	"context"
	"encoding/json"
	"fmt"

	"helpdesk/database"
)

type mockEndpoint struct {
	action   string
	response json.RawMessage
}

// mockEndpoints simulate each provider's own API for demos, keyed by provider then resource.
var mockEndpoints = map[database.Provider]map[string]mockEndpoint{
	database.ProviderJira: {
		"issues": {
			action:   "demo.create_issue",
			response: json.RawMessage(`{"id":"10002","key":"HELP-102","self":"https://helpdesk-demo.atlassian.net/rest/api/3/issue/10002"}`),
		},
		"comments": {
			action:   "demo.add_comment",
			response: json.RawMessage(`{"id":"20001","issueKey":"HELP-101","body":"Comment added (demo)"}`),
		},
	},
	database.ProviderServiceNow: {
		"incidents": {
			action:   "demo.create_incident",
			response: json.RawMessage(`{"result":{"sys_id":"46d44a5ea9fe198101f8c2c05e07bd0c","number":"INC0010002","state":"1"}}`),
		},
	},
	database.ProviderOkta: {
		"users": {
			action:   "demo.provision_user",
			response: json.RawMessage(`{"id":"00u1demo2okta4user","status":"PROVISIONED","profile":{"login":"new.hire@example.com"}}`),
		},
		"password-reset": {
			action:   "demo.reset_password",
			response: json.RawMessage(`{"resetPasswordUrl":"https://dev-000000.okta.com/reset_password/demo"}`),
		},
	},
	database.ProviderGoogle: {
		"users": {
			action:   "demo.create_user",
			response: json.RawMessage(`{"id":"104729384756102938475","primaryEmail":"new.hire@example.com","suspended":false}`),
		},
	},
}

// MockProvider answers the demo endpoints with canned payloads.
type MockProvider struct {
	registry *Registry
	audit    *database.AuditLog
}

func NewMockProvider(registry *Registry, audit *database.AuditLog) *MockProvider {
	return &MockProvider{registry: registry, audit: audit}
}

// Call records the request under the endpoint's demo action and returns its canned response.
func (m *MockProvider) Call(ctx context.Context, raw string, resource string, request json.RawMessage) (json.RawMessage, error) {
	conn, err := m.registry.Resolve(raw)
	if err != nil {
		return nil, err
	}
	p := conn.Provider()

	endpoint, ok := mockEndpoints[p][resource]
	if !ok {
		return nil, NotFoundError(fmt.Sprintf("No mock %s endpoint for %q", p, resource))
	}

	details := map[string]interface{}{"resource": resource}
	if len(request) > 0 && json.Valid(request) {
		details["request"] = request
	}
	m.audit.Append(ctx, database.AuditEvent{
		Provider: p,
		Action:   endpoint.action,
		Actor:    actorFrom(ctx),
		Details:  details,
	})

	return append(json.RawMessage(nil), endpoint.response...), nil
}
