package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/database/mock"
	"github.com/kozaktomas/shop-kiosk/internal/events"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
)

// testStores holds the mock stores registered with the database provider
type testStores struct {
	customers *mock.MockCustomerStore
	inventory *mock.MockInventoryStore
	records   *mock.MockPastRecordStore
	hub       *events.Hub
	manager   *lifecycle.Manager
	now       time.Time
}

// setupStores registers fresh mock stores and builds a manager on top of them
func setupStores(t *testing.T) *testStores {
	t.Helper()
	s := &testStores{
		customers: mock.NewMockCustomerStore(),
		inventory: mock.NewMockInventoryStore(),
		records:   mock.NewMockPastRecordStore(),
		hub:       events.NewHub(),
		now:       time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	s.inventory.Now = s.clock
	s.manager = lifecycle.NewManager(s.customers, s.inventory, s.records, lifecycle.Config{
		Matcher:   s.customers,
		Publisher: s.hub,
		Clock:     s.clock,
	})

	database.RegisterBackend(
		func() database.CustomerStore { return s.customers },
		func() database.InventoryStore { return s.inventory },
		func() database.PastRecordStore { return s.records },
	)
	t.Cleanup(database.ResetBackend)
	return s
}

func (s *testStores) clock() time.Time {
	return s.now
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// assertErrorCode checks the machine-readable code of a JSON error
func assertErrorCode(t *testing.T, recorder *httptest.ResponseRecorder, expectedCode string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["code"] != expectedCode {
		t.Errorf("expected code '%s', got '%s'", expectedCode, result["code"])
	}
}
