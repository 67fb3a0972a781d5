package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Error codes returned next to the message so the shell can tell informational
// outcomes apart from failures.
const (
	codeAlreadyCheckedIn = "already_checked_in"
	codeNoOpenVisit      = "no_open_visit"
	codeNoCandidate      = "no_candidate"
	codePartialCheckout  = "partial_checkout"
	codeBusy             = "busy"
)

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErrorCode sends an error response with a machine-readable code.
func respondErrorCode(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

// respondOperationError maps lifecycle, store and recognition errors to a response.
// fallback is the message used for unexpected failures.
func respondOperationError(w http.ResponseWriter, err error, fallback string) {
	var partial *lifecycle.PartialCheckoutError
	switch {
	case errors.As(err, &partial):
		respondErrorCode(w, http.StatusInternalServerError, codePartialCheckout, partial.Error())
	case errors.Is(err, lifecycle.ErrAlreadyCheckedIn):
		respondErrorCode(w, http.StatusConflict, codeAlreadyCheckedIn, lifecycle.ErrAlreadyCheckedIn.Error())
	case errors.Is(err, lifecycle.ErrNoOpenVisit):
		respondErrorCode(w, http.StatusConflict, codeNoOpenVisit, lifecycle.ErrNoOpenVisit.Error())
	case errors.Is(err, lifecycle.ErrNoCandidate):
		respondErrorCode(w, http.StatusConflict, codeNoCandidate, lifecycle.ErrNoCandidate.Error())
	case errors.Is(err, lifecycle.ErrCustomerNotFound):
		respondError(w, http.StatusNotFound, lifecycle.ErrCustomerNotFound.Error())
	case errors.Is(err, lifecycle.ErrInvalidName), errors.Is(err, lifecycle.ErrInvalidSignature):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recognition.ErrInvalidFrame):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, recognition.ErrBusy):
		respondErrorCode(w, http.StatusTooManyRequests, codeBusy, err.Error())
	default:
		respondStoreError(w, err, fallback)
	}
}

// respondStoreError maps a database.StoreError kind to a status code.
func respondStoreError(w http.ResponseWriter, err error, fallback string) {
	var storeErr *database.StoreError
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, database.ErrConflict):
		respondError(w, http.StatusConflict, "already exists")
	case errors.Is(err, database.ErrInvalid) && errors.As(err, &storeErr):
		respondError(w, http.StatusBadRequest, storeErr.Err.Error())
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// parseCustomerID reads the {id} URL parameter. On failure it writes a 400 and returns false.
func parseCustomerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid customer id")
		return 0, false
	}
	return id, true
}

func getCustomerStore(w http.ResponseWriter, r *http.Request) database.CustomerStore {
	store, err := database.GetCustomerStore(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "customer storage not available")
		return nil
	}
	return store
}

func getInventoryStore(w http.ResponseWriter, r *http.Request) database.InventoryStore {
	store, err := database.GetInventoryStore(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "inventory storage not available")
		return nil
	}
	return store
}

func getPastRecordStore(w http.ResponseWriter, r *http.Request) database.PastRecordStore {
	store, err := database.GetPastRecordStore(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history storage not available")
		return nil
	}
	return store
}
