package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/shop-kiosk/internal/config"
	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/database/mock"
	"github.com/kozaktomas/shop-kiosk/internal/events"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
)

func newTestServer(t *testing.T) (*Server, *mock.MockCustomerStore) {
	t.Helper()
	customers := mock.NewMockCustomerStore()
	inventory := mock.NewMockInventoryStore()
	records := mock.NewMockPastRecordStore()
	database.RegisterBackend(
		func() database.CustomerStore { return customers },
		func() database.InventoryStore { return inventory },
		func() database.PastRecordStore { return records },
	)
	t.Cleanup(database.ResetBackend)

	hub := events.NewHub()
	cfg := &config.Config{Web: config.WebConfig{Host: "127.0.0.1", Port: 0, AllowedOrigins: "https://kiosk.example"}}
	manager := lifecycle.NewManager(customers, inventory, records, lifecycle.Config{Publisher: hub})
	return NewServer(cfg, Dependencies{Manager: manager, Hub: hub}), customers
}

func TestRoutes_CustomerFlow(t *testing.T) {
	server, customers := newTestServer(t)
	router := server.Router()

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/v1/customers",
		strings.NewReader(`{"name":"Alice","face_encoding":[0.1,0.2]}`)))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/v1/customers/1/check-in", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("POST", "/api/v1/customers/1/check-out", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/v1/records", nil))
	var list []map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid records body: %v", err)
	}
	if len(list) != 1 || list[0]["customer_name"] != "Alice" {
		t.Errorf("expected one record for Alice, got %v", list)
	}
	if customers.Count() != 1 {
		t.Errorf("expected 1 customer, got %d", customers.Count())
	}
}

func TestRoutes_DetectWithoutRecognition(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest("POST", "/api/v1/detect", strings.NewReader("frame")))
	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", recorder.Code)
	}
}

func TestRoutes_HealthAndCORS(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://kiosk.example")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://kiosk.example" {
		t.Errorf("expected CORS header for configured origin, got %q", got)
	}
	if got := recorder.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff header, got %q", got)
	}
}

func TestRoutes_UnknownPath(t *testing.T) {
	server, _ := newTestServer(t)

	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest("GET", "/api/v1/albums", nil))
	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", recorder.Code)
	}
}
