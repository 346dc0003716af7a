package integrations

import (
	"net/http"
)

// Disconnect marks a provider disconnected and drops its tokens. Safe to repeat.
func (h *IntegrationsHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.resolve(w, r)
	if !ok {
		return
	}

	result, err := conn.Disconnect(requestContext(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
