package integrations

import (
	"net/http"
)

type ReplayRequest struct {
	Provider      string `json:"provider"`
	SampleEventID string `json:"sampleEventId"`
}

type ReplayResponse struct {
	Success bool         `json:"success"`
	Event   *SampleEvent `json:"event"`
	Message string       `json:"message"`
}

type SamplesResponse struct {
	Events []SampleEvent `json:"events"`
}

// ReplayWebhook echoes a canned webhook event. Nothing is dispatched.
func (h *IntegrationsHandler) ReplayWebhook(w http.ResponseWriter, r *http.Request) {
	var data ReplayRequest
	if err := decodeBody(r, &data); err != nil {
		WriteError(w, r, err)
		return
	}
	if _, err := h.Registry.Resolve(data.Provider); err != nil {
		WriteError(w, r, err)
		return
	}
	if data.SampleEventID == "" {
		WriteError(w, r, ValidationError("sampleEventId is required"))
		return
	}

	event, err := h.Replay.Replay(requestContext(r), data.Provider, data.SampleEventID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, ReplayResponse{
		Success: true,
		Event:   event,
		Message: "Sample event replayed (demo only, not dispatched)",
	})
}

// ListSampleEvents lists the canned events that can be replayed.
func (h *IntegrationsHandler) ListSampleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Replay.Samples(r.URL.Query().Get("provider"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, SamplesResponse{Events: events})
}
