package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"helpdesk/database"
	"helpdesk/secrets"
)

const ActorHeader = "X-Actor"

// IntegrationsHandler handles integration-related API requests
type IntegrationsHandler struct {
	Store    *database.IntegrationStore
	Audit    *database.AuditLog
	Registry *Registry
	OAuth    *OAuthHelper
	Replay   *ReplaySimulator
	Mock     *MockProvider
}

// NewIntegrationsHandler wires every integration service over one database handle.
func NewIntegrationsHandler(
	db *gorm.DB,
	cipher *secrets.Cipher,
	settings OAuthSettings,
	now func() time.Time,
) *IntegrationsHandler {
	store := database.NewIntegrationStore(db, now)
	audit := database.NewAuditLog(db, now)
	registry := NewRegistry(store, audit)

	return &IntegrationsHandler{
		Store:    store,
		Audit:    audit,
		Registry: registry,
		OAuth:    NewOAuthHelper(registry, store, audit, cipher, settings, now),
		Replay:   NewReplaySimulator(registry, audit),
		Mock:     NewMockProvider(registry, audit),
	}
}

func requestContext(r *http.Request) context.Context {
	return WithActor(r.Context(), strings.TrimSpace(r.Header.Get(ActorHeader)))
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return ValidationError("Invalid JSON")
}

func (h *IntegrationsHandler) resolve(w http.ResponseWriter, r *http.Request) (Connector, bool) {
	conn, err := h.Registry.Resolve(r.PathValue("provider"))
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}
	return conn, true
}
