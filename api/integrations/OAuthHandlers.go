package integrations

import (
	"fmt"
	"net/http"

	"helpdesk/database"
)

type OAuthCompletedResponse struct {
	Success     bool            `json:"success"`
	Status      database.Status `json:"status"`
	Mode        database.Mode   `json:"mode"`
	MaskedToken *string         `json:"masked_token,omitempty"`
	Message     string          `json:"message"`
}

func completedResponse(record *database.IntegrationRecord, message string) OAuthCompletedResponse {
	return OAuthCompletedResponse{
		Success:     true,
		Status:      record.Status,
		Mode:        record.Mode,
		MaskedToken: record.MaskedToken,
		Message:     message,
	}
}

// SaveOAuthCredentials stores the OAuth client used by the real ServiceNow path.
func (h *IntegrationsHandler) SaveOAuthCredentials(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var data CredentialsInput
	if err := decodeBody(r, &data); err != nil {
		WriteError(w, r, err)
		return
	}

	record, err := h.OAuth.SaveCredentials(requestContext(r), string(conn.Provider()), data)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, convertRecordToListedIntegration(*record, conn.Capabilities()))
}

// StartOAuth begins an authorization_code handshake.
func (h *IntegrationsHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	result, err := h.OAuth.Start(requestContext(r), r.PathValue("provider"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// OAuthCallback completes the handshake with the code the authorization server sent back.
func (h *IntegrationsHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.resolve(w, r); !ok {
		return
	}

	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		message := providerErr
		if desc := q.Get("error_description"); desc != "" {
			message = fmt.Sprintf("%s: %s", providerErr, desc)
		}
		WriteError(w, r, ValidationError(fmt.Sprintf("Authorization was denied: %s", message)))
		return
	}

	record, err := h.OAuth.Complete(requestContext(r), r.PathValue("provider"), q.Get("code"), q.Get("state"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, completedResponse(record, fmt.Sprintf("%s connected", record.Provider)))
}

// ClientCredentialsToken runs the server-to-server client_credentials grant.
func (h *IntegrationsHandler) ClientCredentialsToken(w http.ResponseWriter, r *http.Request) {
	record, err := h.OAuth.ClientCredentials(requestContext(r), r.PathValue("provider"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, completedResponse(record, fmt.Sprintf("%s connected", record.Provider)))
}
