package integrations

import (
	"encoding/json"
	"io"
	"net/http"
)

// MockCall simulates a provider's own API for demos.
func (h *IntegrationsHandler) MockCall(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if r.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			WriteError(w, r, ValidationError("Unable to read request body"))
			return
		}
		body = raw
	}

	response, err := h.Mock.Call(requestContext(r), r.PathValue("provider"), r.PathValue("resource"), body)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(response)
}
