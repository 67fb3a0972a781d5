package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/shop-kiosk/internal/ai"
	"github.com/kozaktomas/shop-kiosk/internal/constants"
	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/events"
	"github.com/kozaktomas/shop-kiosk/internal/logging"
	"go.uber.org/zap"
)

// InventoryHandler handles inventory endpoints
type InventoryHandler struct {
	describer ai.Describer // nil when no AI provider is configured
	publisher events.Publisher
	logger    *zap.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(describer ai.Describer, publisher events.Publisher, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryHandler{describer: describer, publisher: publisher, logger: logger.Named("inventory")}
}

type inventoryRequest struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Price     *float64 `json:"price"`
	Quantity  *int     `json:"quantity"`
	Image     []byte   `json:"image"` // base64 in JSON
}

func (h *InventoryHandler) publish(action, productID string) {
	if h.publisher != nil {
		h.publisher.Publish(events.New(events.TypeInventory, map[string]string{"action": action, "product_id": productID}))
	}
}

// List returns all items ordered by name.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	store := getInventoryStore(w, r)
	if store == nil {
		return
	}
	items, err := store.ListInventory(r.Context())
	if err != nil {
		h.logger.Error("failed to list inventory", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list inventory")
		return
	}
	result := make([]inventoryResponse, 0, len(items))
	for i := range items {
		result = append(result, toInventoryResponse(&items[i]))
	}
	respondJSON(w, http.StatusOK, result)
}

// Get returns one item.
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	store := getInventoryStore(w, r)
	if store == nil {
		return
	}
	item, err := store.GetInventoryItem(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondStoreError(w, err, "failed to get inventory item")
		return
	}
	respondJSON(w, http.StatusOK, toInventoryResponse(item))
}

// Create adds an item. Every field except the image is required.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := parseInventoryRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Price == nil || req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "price and quantity are required")
		return
	}
	store := getInventoryStore(w, r)
	if store == nil {
		return
	}

	item := req.toItem()
	if err := store.AddInventoryItem(r.Context(), item); err != nil {
		h.logger.Warn("failed to add inventory item",
			zap.String("product_id", logging.SanitizeForLog(item.ProductID)), zap.Error(err))
		respondStoreError(w, err, "failed to add inventory item")
		return
	}
	h.publish("added", item.ProductID)
	respondJSON(w, http.StatusCreated, toInventoryResponse(item))
}

// Update replaces an item. Without a new image the stored one is kept.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, err := parseInventoryRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	code := chi.URLParam(r, "code")
	if req.ProductID != "" && req.ProductID != code {
		respondError(w, http.StatusBadRequest, "product_id does not match the URL")
		return
	}
	req.ProductID = code
	if req.Price == nil || req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "price and quantity are required")
		return
	}
	store := getInventoryStore(w, r)
	if store == nil {
		return
	}

	item := req.toItem()
	if err := store.UpdateInventoryItem(r.Context(), item); err != nil {
		respondStoreError(w, err, "failed to update inventory item")
		return
	}
	updated, err := store.GetInventoryItem(r.Context(), code)
	if err != nil {
		respondStoreError(w, err, "failed to get inventory item")
		return
	}
	h.publish("updated", code)
	respondJSON(w, http.StatusOK, toInventoryResponse(updated))
}

// Delete removes an item.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	store := getInventoryStore(w, r)
	if store == nil {
		return
	}
	code := chi.URLParam(r, "code")
	if err := store.DeleteInventoryItem(r.Context(), code); err != nil {
		respondStoreError(w, err, "failed to delete inventory item")
		return
	}
	h.publish("deleted", code)
	w.WriteHeader(http.StatusNoContent)
}

// Image serves the stored product image.
func (h *InventoryHandler) Image(w http.ResponseWriter, r *http.Request) {
	store := getInventoryStore(w, r)
	if store == nil {
		return
	}
	item, err := store.GetInventoryItem(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondStoreError(w, err, "failed to get inventory item")
		return
	}
	if len(item.Image) == 0 {
		respondError(w, http.StatusNotFound, "item has no image")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(item.Image))
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	w.Write(item.Image)
}

// Describe generates a catalogue description from the product image and stores it.
func (h *InventoryHandler) Describe(w http.ResponseWriter, r *http.Request) {
	if h.describer == nil {
		respondError(w, http.StatusServiceUnavailable, "no AI provider configured")
		return
	}
	store := getInventoryStore(w, r)
	if store == nil {
		return
	}
	code := chi.URLParam(r, "code")
	item, err := store.GetInventoryItem(r.Context(), code)
	if err != nil {
		respondStoreError(w, err, "failed to get inventory item")
		return
	}
	if len(item.Image) == 0 {
		respondError(w, http.StatusBadRequest, "item has no image to describe")
		return
	}

	desc, err := h.describer.DescribeProduct(r.Context(), item.Image, item.Name)
	if err != nil {
		h.logger.Error("product description failed",
			zap.String("product_id", logging.SanitizeForLog(code)),
			zap.String("provider", h.describer.Name()), zap.Error(err))
		respondError(w, http.StatusBadGateway, "failed to describe product")
		return
	}
	if err := store.SetDescription(r.Context(), code, desc.Text()); err != nil {
		respondStoreError(w, err, "failed to store description")
		return
	}
	h.publish("described", code)

	usage := h.describer.GetUsage()
	respondJSON(w, http.StatusOK, map[string]any{
		"product_id":  code,
		"provider":    h.describer.Name(),
		"description": desc,
		"text":        desc.Text(),
		"usage":       usage,
	})
}

// parseInventoryRequest accepts JSON (image as base64) or a multipart form (image as file).
func parseInventoryRequest(r *http.Request) (*inventoryRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req inventoryRequest
		body := io.LimitReader(r.Body, constants.MaxProductImageSize*2)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return nil, errors.New(errInvalidRequestBody)
		}
		return &req, nil
	}

	if err := r.ParseMultipartForm(constants.MaxProductImageSize); err != nil {
		return nil, errors.New("failed to parse multipart form")
	}
	req := &inventoryRequest{
		ProductID: strings.TrimSpace(r.FormValue("product_id")),
		Name:      strings.TrimSpace(r.FormValue("name")),
	}
	if v := r.FormValue("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q", v)
		}
		req.Price = &price
	}
	if v := r.FormValue("quantity"); v != "" {
		qty, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q", v)
		}
		req.Quantity = &qty
	}
	if file, _, err := r.FormFile("image"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, constants.MaxProductImageSize))
		if err != nil {
			return nil, errors.New("failed to read image")
		}
		req.Image = data
	}
	return req, nil
}

func (req *inventoryRequest) toItem() *database.InventoryItem {
	item := &database.InventoryItem{
		ProductID: strings.TrimSpace(req.ProductID),
		Name:      strings.TrimSpace(req.Name),
		Image:     req.Image,
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}
	return item
}
