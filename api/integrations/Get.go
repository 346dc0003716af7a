package integrations

import (
	"net/http"
)

// Get returns the integration record of one provider.
func (h *IntegrationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.resolve(w, r)
	if !ok {
		return
	}

	record, err := h.Store.Get(r.Context(), conn.Provider())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, convertRecordToListedIntegration(*record, conn.Capabilities()))
}
