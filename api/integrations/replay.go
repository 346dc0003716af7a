package integrations

import (
	"context"
	"encoding/json"

	"helpdesk/database"
)

// SampleEvent is a canned webhook delivery. Payload is kept raw so replays echo it byte for byte.
type SampleEvent struct {
	ID       string            `json:"id"`
	Provider database.Provider `json:"provider"`
	Type     string            `json:"type"`
	Payload  json.RawMessage   `json:"payload"`
}

var sampleEvents = []SampleEvent{
	{
		ID:       "jira.ticket.created",
		Provider: database.ProviderJira,
		Type:     "jira:issue_created",
		Payload:  json.RawMessage(`{"issue":{"key":"HELP-101","fields":{"summary":"Laptop does not boot","status":{"name":"To Do"},"priority":{"name":"High"}}},"user":{"displayName":"Demo Agent"}}`),
	},
	{
		ID:       "jira.ticket.updated",
		Provider: database.ProviderJira,
		Type:     "jira:issue_updated",
		Payload:  json.RawMessage(`{"issue":{"key":"HELP-101","fields":{"summary":"Laptop does not boot","status":{"name":"In Progress"}}},"changelog":{"items":[{"field":"status","fromString":"To Do","toString":"In Progress"}]}}`),
	},
	{
		ID:       "servicenow.incident.created",
		Provider: database.ProviderServiceNow,
		Type:     "incident.inserted",
		Payload:  json.RawMessage(`{"result":{"sys_id":"9d385017c611228701d22104cc95c371","number":"INC0010001","state":"1","short_description":"VPN connection drops every hour"}}`),
	},
	{
		ID:       "servicenow.incident.resolved",
		Provider: database.ProviderServiceNow,
		Type:     "incident.updated",
		Payload:  json.RawMessage(`{"result":{"sys_id":"9d385017c611228701d22104cc95c371","number":"INC0010001","state":"6","close_code":"Solved (Permanently)"}}`),
	},
	{
		ID:       "okta.user.provisioned",
		Provider: database.ProviderOkta,
		Type:     "user.lifecycle.create",
		Payload:  json.RawMessage(`{"eventType":"user.lifecycle.create","target":[{"id":"00u1demo2okta3user","type":"User","alternateId":"new.hire@example.com"}]}`),
	},
	{
		ID:       "okta.user.deactivated",
		Provider: database.ProviderOkta,
		Type:     "user.lifecycle.deactivate",
		Payload:  json.RawMessage(`{"eventType":"user.lifecycle.deactivate","target":[{"id":"00u1demo2okta3user","type":"User","alternateId":"leaver@example.com"}]}`),
	},
	{
		ID:       "google.user.suspended",
		Provider: database.ProviderGoogle,
		Type:     "SUSPEND_USER",
		Payload:  json.RawMessage(`{"kind":"admin#reports#activity","events":[{"type":"USER_SETTINGS","name":"SUSPEND_USER","parameters":[{"name":"USER_EMAIL","value":"helpdesk.demo@example.com"}]}]}`),
	},
}

func (e SampleEvent) clone() SampleEvent {
	e.Payload = append(json.RawMessage(nil), e.Payload...)
	return e
}

// ReplaySimulator echoes canned webhook events through the audit log.
// Nothing is dispatched downstream.
type ReplaySimulator struct {
	registry *Registry
	audit    *database.AuditLog
	events   map[string]SampleEvent
}

func NewReplaySimulator(registry *Registry, audit *database.AuditLog) *ReplaySimulator {
	events := make(map[string]SampleEvent, len(sampleEvents))
	for _, e := range sampleEvents {
		events[e.ID] = e.clone()
	}
	return &ReplaySimulator{registry: registry, audit: audit, events: events}
}

// Samples lists the events of one provider, or of every provider when raw is empty.
func (s *ReplaySimulator) Samples(raw string) ([]SampleEvent, error) {
	var p database.Provider
	if raw != "" {
		conn, err := s.registry.Resolve(raw)
		if err != nil {
			return nil, err
		}
		p = conn.Provider()
	}

	out := []SampleEvent{}
	for _, e := range sampleEvents {
		if p == "" || e.Provider == p {
			out = append(out, s.events[e.ID].clone())
		}
	}
	return out, nil
}

func (s *ReplaySimulator) Replay(ctx context.Context, raw string, sampleEventID string) (*SampleEvent, error) {
	conn, err := s.registry.Resolve(raw)
	if err != nil {
		return nil, err
	}
	p := conn.Provider()

	event, ok := s.events[sampleEventID]
	if !ok || event.Provider != p {
		return nil, NotFoundError("Sample event not found")
	}

	s.audit.Append(ctx, database.AuditEvent{
		Provider: p,
		Action:   "webhook.replayed",
		Actor:    actorFrom(ctx),
		Details: map[string]interface{}{
			"sample_event_id": event.ID,
			"type":            event.Type,
			"dispatched":      false,
		},
	})

	out := event.clone()
	return &out, nil
}
