package database_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/database"
	"helpdesk/database/dbtest"
)

func newTestAuditLog(t *testing.T) *database.AuditLog {
	t.Helper()
	return database.NewAuditLog(dbtest.SetupTestDatabase(t), dbtest.StepClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), time.Second))
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	l := newTestAuditLog(t)

	entry := l.Append(context.Background(), database.AuditEvent{
		Provider: database.ProviderJira,
		Action:   "integration.connected",
		Actor:    "admin",
		Details:  map[string]interface{}{"mode": "demo"},
	})

	assert.NotEmpty(t, entry.UUID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.JSONEq(t, `{"mode":"demo"}`, string(entry.Details))
}

func TestAppendAcceptsEmptyAndUnserializableDetails(t *testing.T) {
	l := newTestAuditLog(t)
	ctx := context.Background()

	empty := l.Append(ctx, database.AuditEvent{Provider: database.ProviderOkta, Action: "noop"})
	assert.JSONEq(t, `{}`, string(empty.Details))

	bad := l.Append(ctx, database.AuditEvent{Provider: database.ProviderOkta, Action: "bad", Details: math.Inf(1)})
	assert.JSONEq(t, `{}`, string(bad.Details))

	entries, err := l.Query(ctx, database.ProviderOkta, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestQueryReturnsMostRecentFirst(t *testing.T) {
	l := newTestAuditLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Append(ctx, database.AuditEvent{Provider: database.ProviderJira, Action: fmt.Sprintf("action.%d", i)})
	}
	l.Append(ctx, database.AuditEvent{Provider: database.ProviderGoogle, Action: "other"})

	entries, err := l.Query(ctx, database.ProviderJira, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "action.4", entries[0].Action)
	assert.Equal(t, "action.3", entries[1].Action)
	assert.Equal(t, "action.2", entries[2].Action)
	assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))
}

func TestQueryDefaultLimit(t *testing.T) {
	l := newTestAuditLog(t)
	ctx := context.Background()

	for i := 0; i < database.DefaultAuditLimit+5; i++ {
		l.Append(ctx, database.AuditEvent{Provider: database.ProviderServiceNow, Action: "tick"})
	}

	entries, err := l.Query(ctx, database.ProviderServiceNow, 0)
	require.NoError(t, err)
	assert.Len(t, entries, database.DefaultAuditLimit)
}

func TestQueryUnknownProviderIsEmpty(t *testing.T) {
	l := newTestAuditLog(t)

	entries, err := l.Query(context.Background(), database.Provider("slack"), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)

	data, err := json.Marshal(entries)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
