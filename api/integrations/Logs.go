package integrations

import (
	"net/http"
	"strconv"

	"helpdesk/database"
)

type LogsResponse struct {
	Logs []database.AuditLogEntry `json:"logs"`
}

// Logs returns the newest audit entries of a provider.
func (h *IntegrationsHandler) Logs(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.resolve(w, r)
	if !ok {
		return
	}

	limit := database.DefaultAuditLimit
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.Audit.Query(r.Context(), conn.Provider(), limit)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, LogsResponse{Logs: entries})
}
