package integrations

import (
	"net/http"
)

type MappingPayload struct {
	Mappings map[string]interface{} `json:"mappings"`
}

// GetMapping returns the field mapping of a provider.
func (h *IntegrationsHandler) GetMapping(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.resolve(w, r)
	if !ok {
		return
	}

	mapping, err := conn.GetMapping(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, MappingPayload{Mappings: mapping})
}

// SaveMapping replaces the field mapping of a provider.
func (h *IntegrationsHandler) SaveMapping(w http.ResponseWriter, r *http.Request) {
	conn, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var data MappingPayload
	if err := decodeBody(r, &data); err != nil {
		WriteError(w, r, err)
		return
	}
	if data.Mappings == nil {
		WriteError(w, r, ValidationError("mappings object is required"))
		return
	}

	mapping, err := conn.SaveMapping(requestContext(r), data.Mappings)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, MappingPayload{Mappings: mapping})
}
