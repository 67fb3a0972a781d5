package database

import (
	"time"
)

// Customer represents a registered shop customer and the state of their current visit
type Customer struct {
	ID            int64
	Name          string
	FaceSignature []float32 // opaque encoding from the recognition process, immutable after registration
	EntryTime     *time.Time
	ExitTime      *time.Time
	VisitCount    int
}

// HasOpenVisit reports whether the customer is currently checked in.
func (c *Customer) HasOpenVisit() bool {
	return c.EntryTime != nil && c.ExitTime == nil
}

// ProductSnapshot is the inventory item captured on a past record at checkout time
type ProductSnapshot struct {
	ProductID string
	Name      string
	Price     float64
	Image     []byte
}

// PastRecord represents one completed visit. Records are append-only.
type PastRecord struct {
	VisitNumber  int64
	CustomerName string // snapshot, not a reference to the customers table
	EntryTime    time.Time
	ExitTime     time.Time
	Duration     string           // e.g. "90 minutes"
	Product      *ProductSnapshot // nil when no inventory item was touched during the visit
}

// PastRecordFilter narrows ListPastRecords. The zero value lists everything.
type PastRecordFilter struct {
	CustomerName string
}

// InventoryItem represents a product on the shop floor
type InventoryItem struct {
	ProductID   string
	Name        string
	Price       float64
	Quantity    int
	Image       []byte // nil on update keeps the stored image
	ImageRef    string // content-addressed file name when images are stored as files
	Description string
	LastUpdated time.Time
}

// HasImage reports whether the item carries an image, inline or by reference.
func (i *InventoryItem) HasImage() bool {
	return len(i.Image) > 0 || i.ImageRef != ""
}

// Snapshot captures the fields recorded on a past record.
func (i *InventoryItem) Snapshot() *ProductSnapshot {
	return &ProductSnapshot{
		ProductID: i.ProductID,
		Name:      i.Name,
		Price:     i.Price,
		Image:     i.Image,
	}
}

// CustomerFace is the slice of a customer kept in the in-memory face index
type CustomerFace struct {
	CustomerID int64
	Name       string
	Signature  []float32
}

// FaceMatch is a store-side signature match with its cosine distance
type FaceMatch struct {
	Customer Customer
	Distance float64
}
