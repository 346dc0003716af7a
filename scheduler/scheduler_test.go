package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/api/integrations"
	"helpdesk/database"
	"helpdesk/database/dbtest"
	"helpdesk/secrets"
)

var issuedAt = time.Date(2026, 7, 8, 10, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, schedulerNow time.Time) (*SchedulerService, *integrations.IntegrationsHandler) {
	t.Helper()
	db := dbtest.SetupTestDatabase(t)
	handler := integrations.NewIntegrationsHandler(
		db,
		secrets.NewCipher("test-secret"),
		integrations.OAuthSettings{},
		func() time.Time { return issuedAt },
	)
	s := NewSchedulerService(handler, 0, func() time.Time { return schedulerNow })
	s.RegisterTasks()
	t.Cleanup(s.Stop)
	return s, handler
}

func TestRegisterTasks(t *testing.T) {
	s, _ := newTestScheduler(t, issuedAt)

	names := []string{}
	for _, task := range s.ListTasks() {
		names = append(names, task.Name)
	}
	assert.ElementsMatch(t, []string{"expire_oauth_states", "refresh_oauth_tokens"}, names)

	assert.Error(t, s.RunTaskNow(context.Background(), "missing"))

	bad := Task{Name: "broken", Schedule: "not a cron", Enabled: true}
	assert.Error(t, s.registerTask(bad))
	_, ok := s.GetTaskByName("broken")
	assert.False(t, ok)

	task, ok := s.GetTaskByName("refresh_oauth_tokens")
	require.True(t, ok)
	assert.Equal(t, "*/10 * * * *", task.Schedule)
}

func TestExpireOAuthStatesTask(t *testing.T) {
	ctx := context.Background()

	fresh, handler := newTestScheduler(t, issuedAt.Add(5*time.Minute))
	require.NoError(t, handler.Store.SetOAuthState(ctx, database.ProviderJira, "pending-state"))

	require.NoError(t, fresh.RunTaskNow(ctx, "expire_oauth_states"))
	record, err := handler.Store.Get(ctx, database.ProviderJira)
	require.NoError(t, err)
	assert.Equal(t, "pending-state", record.OAuthState)

	stale := NewSchedulerService(handler, 0, func() time.Time { return issuedAt.Add(integrations.DefaultStateTTL + time.Minute) })
	stale.RegisterTasks()
	t.Cleanup(stale.Stop)

	require.NoError(t, stale.RunTaskNow(ctx, "expire_oauth_states"))
	record, err = handler.Store.Get(ctx, database.ProviderJira)
	require.NoError(t, err)
	assert.Empty(t, record.OAuthState)
	assert.Nil(t, record.OAuthStateIssuedAt)
}

func TestRefreshOAuthTokensTask(t *testing.T) {
	ctx := context.Background()
	s, handler := newTestScheduler(t, issuedAt)

	require.NoError(t, s.RunTaskNow(ctx, "refresh_oauth_tokens"))

	expiry := issuedAt.Add(5 * time.Minute)
	_, err := handler.Store.StoreTokens(ctx, database.ProviderJira, database.TokenSet{
		EncryptedAccessToken:  "access",
		EncryptedRefreshToken: "refresh",
		Expiry:                &expiry,
		MaskedToken:           "****cess",
	})
	require.NoError(t, err)

	// jira has no client configured, so the refresh fails and is reported
	err = s.RunTaskNow(ctx, "refresh_oauth_tokens")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh jira")

	record, err := handler.Store.Get(ctx, database.ProviderJira)
	require.NoError(t, err)
	assert.Equal(t, database.StatusConnected, record.Status)
}
