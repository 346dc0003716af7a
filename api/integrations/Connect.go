package integrations

import (
	"net/http"

	"helpdesk/database"
)

type ConnectRequest struct {
	Mode string `json:"mode"`
}

// Connect marks a provider connected.
func (h *IntegrationsHandler) Connect(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var data ConnectRequest
	if err := decodeBody(r, &data); err != nil {
		WriteError(w, r, err)
		return
	}
	mode, ok := database.ParseMode(data.Mode)
	if !ok {
		WriteError(w, r, ValidationError("mode must be demo or real"))
		return
	}

	result, err := conn.Connect(requestContext(r), mode)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
