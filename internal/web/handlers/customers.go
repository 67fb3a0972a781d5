package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kozaktomas/shop-kiosk/internal/facematch"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
	"github.com/kozaktomas/shop-kiosk/internal/logging"
	"go.uber.org/zap"
)

// CustomersHandler handles customer and visit endpoints
type CustomersHandler struct {
	manager *lifecycle.Manager
	logger  *zap.Logger
}

// NewCustomersHandler creates a new customers handler
func NewCustomersHandler(manager *lifecycle.Manager, logger *zap.Logger) *CustomersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomersHandler{manager: manager, logger: logger.Named("customers")}
}

type registerCustomerRequest struct {
	Name         string    `json:"name"`
	FaceEncoding []float32 `json:"face_encoding"`
}

type renameCustomerRequest struct {
	Name string `json:"name"`
}

// List returns customers, most recent entry first. ?q= filters by name.
func (h *CustomersHandler) List(w http.ResponseWriter, r *http.Request) {
	store := getCustomerStore(w, r)
	if store == nil {
		return
	}

	customers, err := store.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("failed to list customers", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list customers")
		return
	}

	query := r.URL.Query().Get("q")
	result := make([]customerResponse, 0, len(customers))
	for i := range customers {
		if !facematch.MatchesName(query, customers[i].Name) {
			continue
		}
		result = append(result, toCustomerResponse(&customers[i]))
	}
	respondJSON(w, http.StatusOK, result)
}

// Get returns one customer.
func (h *CustomersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCustomerID(w, r)
	if !ok {
		return
	}
	store := getCustomerStore(w, r)
	if store == nil {
		return
	}

	c, err := store.GetCustomer(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "failed to get customer")
		return
	}
	respondJSON(w, http.StatusOK, toCustomerResponse(c))
}

// Create registers a customer from a face encoding.
func (h *CustomersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req registerCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	c, err := h.manager.Register(r.Context(), req.Name, req.FaceEncoding)
	if err != nil {
		h.logger.Warn("failed to register customer",
			zap.String("name", logging.SanitizeForLog(req.Name)), zap.Error(err))
		respondOperationError(w, err, "failed to register customer")
		return
	}
	respondJSON(w, http.StatusCreated, toCustomerResponse(c))
}

// Rename changes a customer's display name.
func (h *CustomersHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCustomerID(w, r)
	if !ok {
		return
	}
	var req renameCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := h.manager.Rename(r.Context(), id, req.Name); err != nil {
		respondOperationError(w, err, "failed to rename customer")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "name": req.Name})
}

// Delete removes a customer. Past records are kept.
func (h *CustomersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCustomerID(w, r)
	if !ok {
		return
	}
	if err := h.manager.Delete(r.Context(), id); err != nil {
		respondOperationError(w, err, "failed to delete customer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckIn opens a visit for the customer.
func (h *CustomersHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCustomerID(w, r)
	if !ok {
		return
	}
	c, err := h.manager.CheckIn(r.Context(), id)
	if err != nil {
		respondOperationError(w, err, "failed to check in customer")
		return
	}
	respondJSON(w, http.StatusOK, toCustomerResponse(c))
}

// CheckOut closes the open visit and returns the appended past record.
func (h *CustomersHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	id, ok := parseCustomerID(w, r)
	if !ok {
		return
	}
	out, err := h.manager.CheckOut(r.Context(), id)
	if err != nil {
		h.logger.Warn("checkout failed", zap.Int64("customer_id", id), zap.Error(err))
		respondOperationError(w, err, "failed to check out customer")
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse{
		Customer: toCustomerResponse(&out.Customer),
		Record:   toRecordResponse(&out.Record),
	})
}
