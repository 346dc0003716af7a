package integrations

import (
	"net/http"
)

// Test runs the advisory connectivity check. It succeeds in any state.
func (h *IntegrationsHandler) Test(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.resolve(w, r)
	if !ok {
		return
	}

	WriteJSON(w, http.StatusOK, conn.Test(requestContext(r)))
}
