package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/homectl-core/internal/device"
	"github.com/nerrad567/homectl-core/internal/integration"
)

// setStateRequest is the body of PUT .../devices/{device_id}/state.
type setStateRequest struct {
	Name  string       `json:"name"`
	State device.State `json:"state"`
}

// actionRequest is the body of POST .../actions.
type actionRequest struct {
	Action string `json:"action"`
}

// handleListIntegrations returns the loaded integrations sorted by ID.
func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "registry unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"integrations": infos,
		"count":        len(infos),
	})
}

// handleSetDeviceState pushes a desired device state to its integration.
// The integration and device IDs come from the path.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d := &device.Device{
		ID:            chi.URLParam(r, "device_id"),
		Name:          req.Name,
		IntegrationID: chi.URLParam(r, "id"),
		State:         req.State,
	}
	if err := device.ValidateDevice(d); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := s.registry.SetIntegrationDeviceState(r.Context(), d); err != nil {
		s.logger.Warn("device state dispatch failed",
			"integration_id", d.IntegrationID,
			"device_id", d.ID,
			"error", err,
			"request_id", requestID(r.Context()),
		)
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleRunAction runs an integration action.
func (s *Server) handleRunAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "action is required")
		return
	}

	id := integration.ID(chi.URLParam(r, "id"))
	if err := s.registry.RunIntegrationAction(r.Context(), id, integration.ActionPayload(req.Action)); err != nil {
		s.logger.Warn("integration action failed",
			"integration_id", id,
			"action", req.Action,
			"error", err,
			"request_id", requestID(r.Context()),
		)
		writeDispatchError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"integration_id": id,
		"action":         req.Action,
		"status":         "completed",
	})
}
