package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/database"
	"helpdesk/database/dbtest"
	"helpdesk/secrets"
)

var testStart = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, settings OAuthSettings) *IntegrationsHandler {
	t.Helper()
	db := dbtest.SetupTestDatabase(t)
	return NewIntegrationsHandler(db, secrets.NewCipher("test-secret"), settings, dbtest.StepClock(testStart, time.Second))
}

func actions(t *testing.T, h *IntegrationsHandler, p database.Provider) []string {
	t.Helper()
	entries, err := h.Audit.Query(context.Background(), p, database.MaxAuditLimit)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestResolveUnknownProvider(t *testing.T) {
	h := newTestHandler(t, OAuthSettings{})

	for _, raw := range []string{"", "JIRA", "zendesk", "jira "} {
		_, err := h.Registry.Resolve(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, database.ErrUnknownProvider))
		assert.Equal(t, http.StatusBadRequest, StatusFor(err))
		assert.Equal(t, "Unknown provider", classify(err).Message)
	}
}

func TestConnectDemoEchoesProviderSample(t *testing.T) {
	h := newTestHandler(t, OAuthSettings{})
	ctx := context.Background()

	cases := []struct {
		provider string
		field    string
		value    string
		masked   bool
	}{
		{"jira", "", "", true},
		{"servicenow", "", "", false},
		{"okta", "sample_org", "dev-000000.okta.com", false},
		{"google", "sample_domain", "helpdesk-demo.example.com", false},
	}

	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			conn, err := h.Registry.Resolve(tc.provider)
			require.NoError(t, err)

			result, err := conn.Connect(ctx, database.ModeDemo)
			require.NoError(t, err)
			assert.Equal(t, database.StatusConnected, result.Status)
			assert.Equal(t, database.ModeDemo, result.Mode)
			require.NotNil(t, result.ConnectedAt)

			raw, err := json.Marshal(result)
			require.NoError(t, err)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, true, body["success"])
			assert.Equal(t, "connected", body["status"])
			if tc.field != "" {
				assert.Equal(t, tc.value, body[tc.field])
			}
			if tc.masked {
				assert.Equal(t, "****7f3a", body["masked_token"])
			} else {
				assert.NotContains(t, body, "masked_token")
			}
		})
	}
}

func TestConnectRealOnDemoOnlyProviderRecordsDemo(t *testing.T) {
	h := newTestHandler(t, OAuthSettings{})
	conn, err := h.Registry.Resolve("okta")
	require.NoError(t, err)

	result, err := conn.Connect(context.Background(), database.ModeReal)
	require.NoError(t, err)
	assert.Equal(t, database.ModeDemo, result.Mode)

	record, err := h.Store.Get(context.Background(), database.ProviderOkta)
	require.NoError(t, err)
	assert.Equal(t, database.ModeDemo, record.Mode)
}

func TestConnectRealServiceNowNeedsCredentialsThenToken(t *testing.T) {
	h := newTestHandler(t, OAuthSettings{})
	ctx := context.Background()
	conn, err := h.Registry.Resolve("servicenow")
	require.NoError(t, err)

	_, err = conn.Connect(ctx, database.ModeReal)
	require.Error(t, err)
	assert.Equal(t, KindPrecondition, classify(err).Kind)
	assert.Contains(t, classify(err).Message, "credentials")

	_, err = h.OAuth.SaveCredentials(ctx, "servicenow", CredentialsInput{
		InstanceURL:  "https://dev12345.service-now.com",
		ClientID:     "client",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	_, err = conn.Connect(ctx, database.ModeReal)
	require.Error(t, err)
	assert.Contains(t, classify(err).Message, "OAuth handshake")

	record, err := h.Store.Get(ctx, database.ProviderServiceNow)
	require.NoError(t, err)
	assert.Equal(t, database.StatusDisconnected, record.Status)
	assert.Equal(t, []string{"oauth.credentials_saved"}, actions(t, h, database.ProviderServiceNow))
}

func TestDisconnectIsIdempotentAndAudited(t *testing.T) {
	h := newTestHandler(t, OAuthSettings{})
	ctx := WithActor(context.Background(), "alice")
	conn, err := h.Registry.Resolve("google")
	require.NoError(t, err)

	_, err = conn.Connect(ctx, database.ModeDemo)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result, err := conn.Disconnect(ctx)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, database.StatusDisconnected, result.Status)
	}

	assert.Equal(t, []string{
		"integration.disconnected",
		"integration.disconnected",
		"integration.connected",
	}, actions(t, h, database.ProviderGoogle))

	entries, err := h.Audit.Query(ctx, database.ProviderGoogle, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Actor)
}

func TestTestAlwaysSucceedsAndRecordsTimestamp(t *testing.T) {
	h := newTestHandler(t, OAuthSettings{})
	ctx := context.Background()
	conn, err := h.Registry.Resolve("servicenow")
	require.NoError(t, err)

	result := conn.Test(ctx)
	assert.True(t, result.OK)

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "INC0010001", body["sample_incident"])

	record, err := h.Store.Get(ctx, database.ProviderServiceNow)
	require.NoError(t, err)
	assert.NotNil(t, record.LastTestAt)
	assert.Equal(t, database.StatusDisconnected, record.Status)

	entries, err := h.Audit.Query(ctx, database.ProviderServiceNow, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "integration.tested", entries[0].Action)
	assert.Equal(t, defaultActor, entries[0].Actor)
	assert.JSONEq(t, `{"status":"disconnected","sample_incident":"INC0010001"}`, string(entries[0].Details))
}

func TestMappingReplaceAndSurvivesDisconnect(t *testing.T) {
	h := newTestHandler(t, OAuthSettings{})
	ctx := context.Background()
	conn, err := h.Registry.Resolve("jira")
	require.NoError(t, err)

	mapping, err := conn.GetMapping(ctx)
	require.NoError(t, err)
	assert.Empty(t, mapping)

	_, err = conn.SaveMapping(ctx, map[string]interface{}{"priority": "customfield_1", "team": "customfield_2"})
	require.NoError(t, err)
	saved, err := conn.SaveMapping(ctx, map[string]interface{}{"priority": "customfield_9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"priority": "customfield_9"}, saved)

	_, err = conn.Disconnect(ctx)
	require.NoError(t, err)

	mapping, err = conn.GetMapping(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"priority": "customfield_9"}, mapping)

	entries, err := h.Audit.Query(ctx, database.ProviderJira, 20)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.JSONEq(t, `{"fields":1}`, string(entries[1].Details))
}

func TestActorDefaultsToAdmin(t *testing.T) {
	assert.Equal(t, "admin", actorFrom(context.Background()))
	assert.Equal(t, "admin", actorFrom(WithActor(context.Background(), "")))
	assert.Equal(t, "bob", actorFrom(WithActor(context.Background(), "bob")))
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{UnknownProviderError(), http.StatusBadRequest},
		{database.ErrUnknownProvider, http.StatusBadRequest},
		{PreconditionError("later"), http.StatusBadRequest},
		{NotFoundError("gone"), http.StatusNotFound},
		{UpstreamError("nope", errors.New("boom")), http.StatusBadGateway},
		{ConfigurationError("unset"), http.StatusInternalServerError},
		{secrets.ErrSecretMissing, http.StatusInternalServerError},
		{secrets.ErrIntegrity, http.StatusInternalServerError},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusFor(tc.err), tc.err.Error())
	}

	assert.Equal(t, "Internal server error", classify(errors.New("disk full")).Message)
	assert.Contains(t, classify(secrets.ErrSecretMissing).Message, "INTEGRATIONS_SECRET")
}
