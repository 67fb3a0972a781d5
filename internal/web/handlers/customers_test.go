package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testSignature = []float32{0.9, 0.1, 0.2, 0.3}

func TestCustomersHandler_CreateAndList(t *testing.T) {
	s := setupStores(t)
	handler := NewCustomersHandler(s.manager, zap.NewNop())

	body := `{"name":"  Alice  ","face_encoding":[0.9,0.1,0.2,0.3]}`
	req := httptest.NewRequest("POST", "/api/v1/customers", bytes.NewBufferString(body))
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)
	assertContentType(t, recorder, "application/json")

	var created customerResponse
	parseJSONResponse(t, recorder, &created)
	if created.Name != "Alice" {
		t.Errorf("expected trimmed name 'Alice', got '%s'", created.Name)
	}
	if created.State != lifecycle.NotCheckedIn {
		t.Errorf("expected state not_checked_in, got %s", created.State)
	}
	if created.EntryTime != nil || created.ExitTime != nil {
		t.Error("expected no visit timestamps")
	}

	req = httptest.NewRequest("GET", "/api/v1/customers", nil)
	recorder = httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var list []customerResponse
	parseJSONResponse(t, recorder, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("expected the registered customer in the list, got %+v", list)
	}
}

func TestCustomersHandler_CreateValidation(t *testing.T) {
	s := setupStores(t)
	handler := NewCustomersHandler(s.manager, zap.NewNop())

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"invalid json", "{", errInvalidRequestBody},
		{"blank name", `{"name":"  ","face_encoding":[0.1]}`, "customer name is required"},
		{"missing encoding", `{"name":"Alice"}`, "face signature is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/customers", bytes.NewBufferString(tt.body))
			recorder := httptest.NewRecorder()
			handler.Create(recorder, req)

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tt.message)
		})
	}
	if s.customers.Count() != 0 {
		t.Errorf("expected no customers, got %d", s.customers.Count())
	}
}

func TestCustomersHandler_ListSearch(t *testing.T) {
	s := setupStores(t)
	handler := NewCustomersHandler(s.manager, zap.NewNop())
	s.customers.AddCustomer(database.Customer{Name: "Jiří Novák", FaceSignature: testSignature})
	s.customers.AddCustomer(database.Customer{Name: "Alice", FaceSignature: testSignature})

	req := httptest.NewRequest("GET", "/api/v1/customers?q=jiri", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var list []customerResponse
	parseJSONResponse(t, recorder, &list)
	if len(list) != 1 || list[0].Name != "Jiří Novák" {
		t.Errorf("expected only 'Jiří Novák', got %+v", list)
	}
}

func TestCustomersHandler_ListStoreError(t *testing.T) {
	s := setupStores(t)
	core, logs := observer.New(zap.InfoLevel)
	handler := NewCustomersHandler(s.manager, zap.New(core))
	s.customers.ListError = errors.New("connection reset")

	req := httptest.NewRequest("GET", "/api/v1/customers", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to list customers")

	entries := logs.FilterMessage("failed to list customers").All()
	if len(entries) != 1 {
		t.Fatalf("expected one logged failure, got %d", len(entries))
	}
	if entries[0].LoggerName != "customers" {
		t.Errorf("expected logger 'customers', got '%s'", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["error"] != "connection reset" {
		t.Errorf("expected error field, got %v", entries[0].ContextMap())
	}
}

func TestCustomersHandler_NoBackend(t *testing.T) {
	database.ResetBackend()
	handler := NewCustomersHandler(nil, zap.NewNop())

	req := httptest.NewRequest("GET", "/api/v1/customers", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "customer storage not available")
}

func TestCustomersHandler_Get(t *testing.T) {
	s := setupStores(t)
	handler := NewCustomersHandler(s.manager, zap.NewNop())
	c := s.customers.AddCustomer(database.Customer{Name: "Alice", FaceSignature: testSignature})

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"found", "1", http.StatusOK},
		{"missing", "42", http.StatusNotFound},
		{"not a number", "abc", http.StatusBadRequest},
		{"zero", "0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/customers/"+tt.id, nil)
			req = requestWithChiParams(req, map[string]string{"id": tt.id})
			recorder := httptest.NewRecorder()
			handler.Get(recorder, req)

			assertStatusCode(t, recorder, tt.status)
			if tt.status == http.StatusOK {
				var got customerResponse
				parseJSONResponse(t, recorder, &got)
				if got.ID != c.ID {
					t.Errorf("expected id %d, got %d", c.ID, got.ID)
				}
			}
		})
	}
}

func TestCustomersHandler_VisitCycle(t *testing.T) {
	s := setupStores(t)
	handler := NewCustomersHandler(s.manager, zap.NewNop())
	c := s.customers.AddCustomer(database.Customer{Name: "Alice", FaceSignature: testSignature})
	params := map[string]string{"id": "1"}

	req := requestWithChiParams(httptest.NewRequest("POST", "/api/v1/customers/1/check-in", nil), params)
	recorder := httptest.NewRecorder()
	handler.CheckIn(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var in customerResponse
	parseJSONResponse(t, recorder, &in)
	if in.State != lifecycle.CheckedIn || in.VisitCount != 1 {
		t.Errorf("expected checked_in with 1 visit, got %s with %d", in.State, in.VisitCount)
	}
	if in.EntryTime == nil || *in.EntryTime != "2024-05-01T10:00:00Z" {
		t.Errorf("unexpected entry time %v", in.EntryTime)
	}

	// Second check-in is informational and leaves the count alone.
	req = requestWithChiParams(httptest.NewRequest("POST", "/api/v1/customers/1/check-in", nil), params)
	recorder = httptest.NewRecorder()
	handler.CheckIn(recorder, req)

	assertStatusCode(t, recorder, http.StatusConflict)
	assertErrorCode(t, recorder, codeAlreadyCheckedIn)

	s.now = s.now.Add(90 * time.Minute)

	req = requestWithChiParams(httptest.NewRequest("POST", "/api/v1/customers/1/check-out", nil), params)
	recorder = httptest.NewRecorder()
	handler.CheckOut(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var out checkoutResponse
	parseJSONResponse(t, recorder, &out)
	if out.Customer.State != lifecycle.CheckedOut {
		t.Errorf("expected checked_out, got %s", out.Customer.State)
	}
	if out.Record.Duration != "90 minutes" {
		t.Errorf("expected '90 minutes', got '%s'", out.Record.Duration)
	}
	if out.Record.CustomerName != "Alice" || out.Record.VisitNumber != 1 {
		t.Errorf("unexpected record %+v", out.Record)
	}
	if out.Record.Product != nil {
		t.Errorf("expected no product, got %+v", out.Record.Product)
	}

	req = requestWithChiParams(httptest.NewRequest("POST", "/api/v1/customers/1/check-out", nil), params)
	recorder = httptest.NewRecorder()
	handler.CheckOut(recorder, req)

	assertStatusCode(t, recorder, http.StatusConflict)
	assertErrorCode(t, recorder, codeNoOpenVisit)

	got, err := s.customers.GetCustomer(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.VisitCount != 1 {
		t.Errorf("expected visit count 1, got %d", got.VisitCount)
	}
	if len(s.records.Records()) != 1 {
		t.Errorf("expected 1 past record, got %d", len(s.records.Records()))
	}
}

func TestCustomersHandler_CheckOutPartialFailure(t *testing.T) {
	s := setupStores(t)
	handler := NewCustomersHandler(s.manager, zap.NewNop())
	entry := s.now.Add(-10 * time.Minute)
	s.customers.AddCustomer(database.Customer{
		Name: "Alice", FaceSignature: testSignature, EntryTime: &entry, VisitCount: 1,
	})
	s.records.AppendError = database.IOError("append past record", errors.New("disk full"))

	req := requestWithChiParams(httptest.NewRequest("POST", "/api/v1/customers/1/check-out", nil),
		map[string]string{"id": "1"})
	recorder := httptest.NewRecorder()
	handler.CheckOut(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertErrorCode(t, recorder, codePartialCheckout)

	got, _ := s.customers.GetCustomer(context.Background(), 1)
	if got.ExitTime == nil {
		t.Error("expected customer to stay checked out")
	}
}

func TestCustomersHandler_CheckInUnknownCustomer(t *testing.T) {
	s := setupStores(t)
	handler := NewCustomersHandler(s.manager, zap.NewNop())

	req := requestWithChiParams(httptest.NewRequest("POST", "/api/v1/customers/7/check-in", nil),
		map[string]string{"id": "7"})
	recorder := httptest.NewRecorder()
	handler.CheckIn(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "customer not found")
}

func TestCustomersHandler_RenameAndDelete(t *testing.T) {
	s := setupStores(t)
	handler := NewCustomersHandler(s.manager, zap.NewNop())
	s.customers.AddCustomer(database.Customer{Name: "Alice", FaceSignature: testSignature})
	params := map[string]string{"id": "1"}

	req := requestWithChiParams(httptest.NewRequest("PUT", "/api/v1/customers/1",
		bytes.NewBufferString(`{"name":"Alicia"}`)), params)
	recorder := httptest.NewRecorder()
	handler.Rename(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	got, _ := s.customers.GetCustomer(context.Background(), 1)
	if got.Name != "Alicia" {
		t.Errorf("expected 'Alicia', got '%s'", got.Name)
	}

	req = requestWithChiParams(httptest.NewRequest("PUT", "/api/v1/customers/1",
		bytes.NewBufferString(`{"name":""}`)), params)
	recorder = httptest.NewRecorder()
	handler.Rename(recorder, req)
	assertStatusCode(t, recorder, http.StatusBadRequest)

	req = requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/customers/1", nil), params)
	recorder = httptest.NewRecorder()
	handler.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusNoContent)

	req = requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/customers/1", nil), params)
	recorder = httptest.NewRecorder()
	handler.Delete(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
}
