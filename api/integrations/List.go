package integrations

import (
	"net/http"
	"time"

	"helpdesk/database"
)

type ListedOAuth struct {
	InstanceURL      string             `json:"instance_url"`
	ClientID         string             `json:"client_id"`
	GrantType        database.GrantType `json:"grant_type"`
	RedirectURI      string             `json:"redirect_uri,omitempty"`
	HasClientSecret  bool               `json:"has_client_secret"`
	HasAccessToken   bool               `json:"has_access_token"`
	HandshakePending bool               `json:"handshake_pending"`
	TokenExpiry      *time.Time         `json:"token_expiry,omitempty"`
}

type ListedIntegration struct {
	UUID         string                 `json:"uuid"`
	Provider     database.Provider      `json:"provider"`
	Status       database.Status        `json:"status"`
	Mode         database.Mode          `json:"mode"`
	MaskedToken  *string                `json:"masked_token,omitempty"`
	Mapping      map[string]interface{} `json:"mapping"`
	ConnectedAt  *time.Time             `json:"connected_at,omitempty"`
	LastTestAt   *time.Time             `json:"last_test_at,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at"`
	Capabilities Capabilities           `json:"capabilities"`
	OAuth        *ListedOAuth           `json:"oauth,omitempty"`
}

func convertRecordToListedIntegration(record database.IntegrationRecord, caps Capabilities) ListedIntegration {
	listed := ListedIntegration{
		UUID:         record.UUID,
		Provider:     record.Provider,
		Status:       record.Status,
		Mode:         record.Mode,
		MaskedToken:  record.MaskedToken,
		Mapping:      record.MappingData(),
		ConnectedAt:  record.ConnectedAt,
		LastTestAt:   record.LastTestAt,
		UpdatedAt:    record.UpdatedAt,
		Capabilities: caps,
	}

	// merge the OAuth sub-record only when one was saved or a handshake ran
	if record.HasCredentials() || record.HasAccessToken() || record.OAuthState != "" {
		listed.OAuth = &ListedOAuth{
			InstanceURL:      record.InstanceURL,
			ClientID:         record.ClientID,
			GrantType:        record.GrantType,
			RedirectURI:      record.RedirectURI,
			HasClientSecret:  record.EncryptedClientSecret != "",
			HasAccessToken:   record.HasAccessToken(),
			HandshakePending: record.OAuthState != "",
			TokenExpiry:      record.TokenExpiry,
		}
	}

	return listed
}

type ListResponse struct {
	Integrations []ListedIntegration `json:"integrations"`
}

// List returns every provider's integration record.
func (h *IntegrationsHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.List(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	listed := make([]ListedIntegration, len(records))
	for i, record := range records {
		conn, err := h.Registry.Resolve(string(record.Provider))
		if err != nil {
			WriteError(w, r, err)
			return
		}
		listed[i] = convertRecordToListedIntegration(record, conn.Capabilities())
	}

	WriteJSON(w, http.StatusOK, ListResponse{Integrations: listed})
}
