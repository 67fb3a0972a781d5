package handlers

import (
	"net/http"

	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
)

// GatewayState reports the recognition gateway state.
type GatewayState interface {
	State() recognition.State
}

// HealthHandler reports backend readiness
type HealthHandler struct {
	gateway GatewayState // nil when recognition is not configured
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(gateway GatewayState) *HealthHandler {
	return &HealthHandler{gateway: gateway}
}

// Check handles the health check endpoint. It always answers 200; the body
// tells which parts are usable.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"database": database.IsInitialized(),
	}
	if h.gateway != nil {
		resp["recognition"] = h.gateway.State().String()
	} else {
		resp["recognition"] = "disabled"
	}
	if idx := database.GetFaceIndexRebuilder(); idx != nil && idx.IsFaceIndexEnabled() {
		resp["face_index"] = idx.FaceIndexCount()
	}
	respondJSON(w, http.StatusOK, resp)
}
