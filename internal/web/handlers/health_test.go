package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
)

type staticState recognition.State

func (s staticState) State() recognition.State { return recognition.State(s) }

func TestHealthHandler_Check(t *testing.T) {
	setupStores(t)
	handler := NewHealthHandler(staticState(recognition.StateReady))

	recorder := httptest.NewRecorder()
	handler.Check(recorder, httptest.NewRequest("GET", "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" || result["database"] != true {
		t.Errorf("unexpected health %v", result)
	}
	if result["recognition"] != recognition.StateReady.String() {
		t.Errorf("expected recognition %q, got %v", recognition.StateReady.String(), result["recognition"])
	}
	if _, ok := result["face_index"]; ok {
		t.Error("expected no face_index without a registered index")
	}
}

func TestHealthHandler_WithoutBackends(t *testing.T) {
	database.ResetBackend()
	handler := NewHealthHandler(nil)

	recorder := httptest.NewRecorder()
	handler.Check(recorder, httptest.NewRequest("GET", "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["database"] != false || result["recognition"] != "disabled" {
		t.Errorf("unexpected health %v", result)
	}
}
