package handlers

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/facematch"
	"github.com/kozaktomas/shop-kiosk/internal/lifecycle"
	"github.com/kozaktomas/shop-kiosk/internal/recognition"
)

type customerResponse struct {
	ID         int64                `json:"id"`
	Name       string               `json:"name"`
	State      lifecycle.VisitState `json:"state"`
	EntryTime  *string              `json:"entry_time"`
	ExitTime   *string              `json:"exit_time"`
	VisitCount int                  `json:"visit_count"`
}

type productResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     []byte  `json:"image,omitempty"`
}

type recordResponse struct {
	VisitNumber  int64            `json:"visit_number"`
	CustomerName string           `json:"customer_name"`
	EntryTime    string           `json:"entry_time"`
	ExitTime     string           `json:"exit_time"`
	Duration     string           `json:"duration"`
	Product      *productResponse `json:"product"`
}

type inventoryResponse struct {
	ProductID   string  `json:"product_id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Description string  `json:"description,omitempty"`
	HasImage    bool    `json:"has_image"`
	ImageURL    string  `json:"image_url,omitempty"`
	LastUpdated string  `json:"last_updated"`
}

type candidateResponse struct {
	Outcome         lifecycle.Outcome `json:"outcome"`
	Box             []float64         `json:"box"`
	RelativeBox     []float64         `json:"relative_box,omitempty"`
	FaceEncoding    []float32         `json:"face_encoding"`
	CustomerID      *int64            `json:"customer_id,omitempty"`
	CustomerName    string            `json:"customer_name,omitempty"`
	SimilarityScore *float64          `json:"similarity_score,omitempty"`
	StoreMatch      bool              `json:"store_match,omitempty"`
	Distance        *float64          `json:"distance,omitempty"`
}

type detectResponse struct {
	RequestID  string              `json:"request_id"`
	Width      int                 `json:"width"`
	Height     int                 `json:"height"`
	Candidates []candidateResponse `json:"candidates"`
}

type checkoutResponse struct {
	Customer customerResponse `json:"customer"`
	Record   recordResponse   `json:"record"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toCustomerResponse(c *database.Customer) customerResponse {
	return customerResponse{
		ID:         c.ID,
		Name:       c.Name,
		State:      lifecycle.State(c),
		EntryTime:  formatTimePtr(c.EntryTime),
		ExitTime:   formatTimePtr(c.ExitTime),
		VisitCount: c.VisitCount,
	}
}

func toRecordResponse(rec *database.PastRecord) recordResponse {
	resp := recordResponse{
		VisitNumber:  rec.VisitNumber,
		CustomerName: rec.CustomerName,
		EntryTime:    formatTime(rec.EntryTime),
		ExitTime:     formatTime(rec.ExitTime),
		Duration:     rec.Duration,
	}
	if rec.Product != nil {
		resp.Product = &productResponse{
			ProductID: rec.Product.ProductID,
			Name:      rec.Product.Name,
			Price:     rec.Product.Price,
			Image:     rec.Product.Image,
		}
	}
	return resp
}

func toInventoryResponse(item *database.InventoryItem) inventoryResponse {
	resp := inventoryResponse{
		ProductID:   item.ProductID,
		Name:        item.Name,
		Price:       item.Price,
		Quantity:    item.Quantity,
		Description: item.Description,
		HasImage:    item.HasImage(),
		LastUpdated: formatTime(item.LastUpdated),
	}
	if resp.HasImage {
		resp.ImageURL = fmt.Sprintf("/api/v1/inventory/%s/image", url.PathEscape(item.ProductID))
	}
	return resp
}

func toCandidateResponse(c lifecycle.Candidate, width, height int) candidateResponse {
	b := c.Face.Bounds()
	box := []float64{b.X0, b.Y0, b.X1, b.Y1}
	resp := candidateResponse{
		Outcome:      c.Outcome,
		Box:          box,
		FaceEncoding: c.Face.FaceSignature(),
		StoreMatch:   c.StoreMatch,
	}
	if width > 0 && height > 0 {
		resp.RelativeBox = facematch.RelativeBox(box, width, height)
	}
	if c.Customer != nil {
		id := c.Customer.ID
		resp.CustomerID = &id
		resp.CustomerName = c.Customer.Name
	}
	if m, ok := c.Face.(recognition.Match); ok {
		resp.SimilarityScore = m.SimilarityScore
	}
	if c.StoreMatch {
		d := c.Distance
		resp.Distance = &d
	}
	return resp
}
