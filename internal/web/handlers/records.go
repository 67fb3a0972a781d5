package handlers

import (
	"net/http"
	"strconv"

	"github.com/kozaktomas/shop-kiosk/internal/database"
)

// RecordsHandler handles past-record endpoints
type RecordsHandler struct{}

// NewRecordsHandler creates a new records handler
func NewRecordsHandler() *RecordsHandler {
	return &RecordsHandler{}
}

// List returns past records, newest entry first. ?customer_id= narrows the list
// to records carrying that customer's current name.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	records := getPastRecordStore(w, r)
	if records == nil {
		return
	}

	var filter database.PastRecordFilter
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid customer_id")
			return
		}
		customers := getCustomerStore(w, r)
		if customers == nil {
			return
		}
		c, err := customers.GetCustomer(r.Context(), id)
		if err != nil {
			respondStoreError(w, err, "failed to get customer")
			return
		}
		filter.CustomerName = c.Name
	} else if name := r.URL.Query().Get("customer_name"); name != "" {
		filter.CustomerName = name
	}

	list, err := records.ListPastRecords(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list past records")
		return
	}

	result := make([]recordResponse, 0, len(list))
	for i := range list {
		result = append(result, toRecordResponse(&list[i]))
	}
	respondJSON(w, http.StatusOK, result)
}
