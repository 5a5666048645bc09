package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/versiman/internal/server/models"
	"github.com/google/uuid"
)

type createDeviceRequest struct {
	Source    string    `json:"source"`
	ExpiresAt time.Time `json:"expiresUtc"`
}

type deviceResponse struct {
	ID        uuid.UUID `json:"id"`
	ExpiresAt time.Time `json:"expiresUtc"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdUtc"`

	// Key is set only in the response that minted it.
	Key string `json:"key,omitempty"`
}

func toDeviceResponse(d *models.Device, key string) deviceResponse {
	return deviceResponse{
		ID: d.ID, ExpiresAt: d.ExpiresAt, IsActive: d.IsActive,
		CreatedAt: d.CreatedAt, Key: key,
	}
}

func (s *HTTPServer) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Source == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "source is required"})
		return
	}

	claims := claimsFromContext(r.Context())
	device, key, err := s.devices.Create(r.Context(), claims.Username, req.Source, req.ExpiresAt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "device created", "id", device.ID, "creator", claims.Username)
	s.writeJSON(w, http.StatusCreated, toDeviceResponse(device, key))
}

func (s *HTTPServer) handleListDevices(w http.ResponseWriter, r *http.Request) {
	onlyActive := r.URL.Query().Get("onlyActive") == "true"

	var (
		devices []*models.Device
		err     error
	)
	if source := r.URL.Query().Get("source"); source != "" {
		devices, err = s.devices.ListBySource(r.Context(), source)
	} else {
		devices, err = s.devices.List(r.Context(), onlyActive)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		resp = append(resp, toDeviceResponse(d, ""))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleRefreshDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r)
	if !ok {
		return
	}

	var req createDeviceRequest
	if !s.decode(w, r, &req) {
		return
	}

	device, key, err := s.devices.Refresh(r.Context(), id, req.Source, req.ExpiresAt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "device key refreshed", "id", device.ID)
	s.writeJSON(w, http.StatusOK, toDeviceResponse(device, key))
}

func (s *HTTPServer) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r)
	if !ok {
		return
	}

	if err := s.devices.Revoke(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "device revoked", "id", id)
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *HTTPServer) pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed id"})
		return uuid.Nil, false
	}
	return id, true
}
