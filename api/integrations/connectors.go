package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"helpdesk/database"
	"helpdesk/secrets"
)

type actorKey struct{}

const defaultActor = "admin"

// WithActor attaches the display name recorded on audit entries.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return defaultActor
}

// Capabilities describe what a provider supports beyond the demo lifecycle.
type Capabilities struct {
	// OAuth providers support the authorize/callback handshake.
	OAuth bool `json:"oauth"`
	// RealConnect providers honor mode=real, which needs saved credentials and a completed handshake.
	RealConnect bool `json:"real_connect"`
	// ClientCredentials providers can exchange client id and secret without a browser redirect.
	ClientCredentials bool `json:"client_credentials"`
}

// Connector is the uniform lifecycle every provider exposes.
type Connector interface {
	Provider() database.Provider
	Capabilities() Capabilities
	Connect(ctx context.Context, mode database.Mode) (*ConnectResult, error)
	Disconnect(ctx context.Context) (*DisconnectResult, error)
	Test(ctx context.Context) *TestResult
	GetMapping(ctx context.Context) (map[string]interface{}, error)
	SaveMapping(ctx context.Context, mapping map[string]interface{}) (map[string]interface{}, error)
}

// Sample is a canned identifier echoed back by demo operations.
type Sample struct {
	Field string
	Value string
}

// profile holds the canned demo values of one provider.
type profile struct {
	provider     database.Provider
	capabilities Capabilities
	demoToken    string
	connectEcho  *Sample
	testSample   Sample
}

func profileFor(p database.Provider) profile {
	switch p {
	case database.ProviderJira:
		return profile{
			provider:     p,
			capabilities: Capabilities{OAuth: true},
			demoToken:    "jira-demo-token-7f3a",
			testSample:   Sample{Field: "sample_issue", Value: "HELP-101"},
		}
	case database.ProviderServiceNow:
		return profile{
			provider:     p,
			capabilities: Capabilities{OAuth: true, RealConnect: true, ClientCredentials: true},
			testSample:   Sample{Field: "sample_incident", Value: "INC0010001"},
		}
	case database.ProviderOkta:
		return profile{
			provider:     p,
			capabilities: Capabilities{},
			connectEcho:  &Sample{Field: "sample_org", Value: "dev-000000.okta.com"},
			testSample:   Sample{Field: "sample_user", Value: "00u1demo2okta3user"},
		}
	case database.ProviderGoogle:
		return profile{
			provider:     p,
			capabilities: Capabilities{},
			connectEcho:  &Sample{Field: "sample_domain", Value: "helpdesk-demo.example.com"},
			testSample:   Sample{Field: "sample_user", Value: "helpdesk.demo@example.com"},
		}
	}
	panic(fmt.Sprintf("no connector profile for provider %q", p))
}

type ConnectResult struct {
	Status      database.Status `json:"status"`
	Mode        database.Mode   `json:"mode"`
	MaskedToken *string         `json:"masked_token,omitempty"`
	ConnectedAt *time.Time      `json:"connected_at,omitempty"`
	Sample      *Sample         `json:"-"`
}

func (c ConnectResult) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"success": true,
		"status":  c.Status,
		"mode":    c.Mode,
	}
	if c.MaskedToken != nil {
		out["masked_token"] = *c.MaskedToken
	}
	if c.ConnectedAt != nil {
		out["connected_at"] = c.ConnectedAt
	}
	if c.Sample != nil {
		out[c.Sample.Field] = c.Sample.Value
	}
	return json.Marshal(out)
}

type DisconnectResult struct {
	Success bool            `json:"success"`
	Status  database.Status `json:"status"`
	Message string          `json:"message"`
}

type TestResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Sample  Sample `json:"-"`
}

func (t TestResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"ok":           t.OK,
		"message":      t.Message,
		t.Sample.Field: t.Sample.Value,
	})
}

type connector struct {
	profile profile
	store   *database.IntegrationStore
	audit   *database.AuditLog
}

func (c *connector) Provider() database.Provider {
	return c.profile.provider
}

func (c *connector) Capabilities() Capabilities {
	return c.profile.capabilities
}

func (c *connector) record(ctx context.Context, action string, details interface{}) {
	c.audit.Append(ctx, database.AuditEvent{
		Provider: c.profile.provider,
		Action:   action,
		Actor:    actorFrom(ctx),
		Details:  details,
	})
}

func (c *connector) Connect(ctx context.Context, mode database.Mode) (*ConnectResult, error) {
	p := c.profile.provider

	var masked *string
	if mode == database.ModeReal && c.profile.capabilities.RealConnect {
		record, err := c.store.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		if !record.HasCredentials() {
			return nil, PreconditionError(fmt.Sprintf("Save %s credentials (instance_url, client_id) before connecting in real mode", p))
		}
		if !record.HasAccessToken() {
			return nil, PreconditionError(fmt.Sprintf("Complete the %s OAuth handshake before connecting in real mode", p))
		}
		masked = record.MaskedToken
	} else {
		// demo-only providers record demo whatever mode was asked for
		mode = database.ModeDemo
		if c.profile.demoToken != "" {
			m := secrets.MaskSecret(c.profile.demoToken)
			masked = &m
		}
	}

	record, err := c.store.Connect(ctx, p, mode, masked)
	if err != nil {
		return nil, err
	}
	c.record(ctx, "integration.connected", map[string]interface{}{"mode": mode})

	return &ConnectResult{
		Status:      record.Status,
		Mode:        record.Mode,
		MaskedToken: record.MaskedToken,
		ConnectedAt: record.ConnectedAt,
		Sample:      c.profile.connectEcho,
	}, nil
}

func (c *connector) Disconnect(ctx context.Context) (*DisconnectResult, error) {
	record, err := c.store.Disconnect(ctx, c.profile.provider)
	if err != nil {
		return nil, err
	}
	c.record(ctx, "integration.disconnected", nil)

	return &DisconnectResult{
		Success: true,
		Status:  record.Status,
		Message: fmt.Sprintf("%s disconnected", c.profile.provider),
	}, nil
}

// Test is advisory: it always succeeds and always leaves an audit entry.
func (c *connector) Test(ctx context.Context) *TestResult {
	p := c.profile.provider
	c.store.MarkTested(ctx, p)

	status := database.StatusDisconnected
	if record, err := c.store.Get(ctx, p); err == nil {
		status = record.Status
	}
	details := map[string]interface{}{"status": status}
	details[c.profile.testSample.Field] = c.profile.testSample.Value
	c.record(ctx, "integration.tested", details)

	return &TestResult{
		OK:      true,
		Message: fmt.Sprintf("%s test succeeded (demo)", p),
		Sample:  c.profile.testSample,
	}
}

func (c *connector) GetMapping(ctx context.Context) (map[string]interface{}, error) {
	record, err := c.store.Get(ctx, c.profile.provider)
	if err != nil {
		return nil, err
	}
	return record.MappingData(), nil
}

func (c *connector) SaveMapping(ctx context.Context, mapping map[string]interface{}) (map[string]interface{}, error) {
	record, err := c.store.SaveMapping(ctx, c.profile.provider, mapping)
	if err != nil {
		return nil, err
	}
	c.record(ctx, "mapping.saved", map[string]interface{}{"fields": len(mapping)})
	return record.MappingData(), nil
}

// Registry resolves raw provider identifiers to their connectors.
type Registry struct {
	connectors map[database.Provider]Connector
}

func NewRegistry(store *database.IntegrationStore, audit *database.AuditLog) *Registry {
	r := &Registry{connectors: map[database.Provider]Connector{}}
	for _, p := range database.Providers() {
		r.connectors[p] = &connector{profile: profileFor(p), store: store, audit: audit}
	}
	return r
}

// Resolve fails with an unknown provider error before any store access.
func (r *Registry) Resolve(raw string) (Connector, error) {
	p, ok := database.ParseProvider(raw)
	if !ok {
		return nil, UnknownProviderError()
	}
	return r.connectors[p], nil
}
