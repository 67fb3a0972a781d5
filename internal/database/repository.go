package database

import (
	"context"
	"time"
)

// CustomerReader provides read-only access to registered customers
type CustomerReader interface {
	// ListCustomers returns all customers, most recent entry first (customers without a visit last)
	ListCustomers(ctx context.Context) ([]Customer, error)
	// GetCustomer retrieves a customer by ID, returns ErrNotFound if missing
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
}

// CustomerStore provides read and write access to customers and their visit state
type CustomerStore interface {
	CustomerReader

	// RegisterCustomer creates a customer with visit_count 0 and no timestamps
	RegisterCustomer(ctx context.Context, name string, signature []float32) (*Customer, error)
	// RenameCustomer changes the display name. Past records keep their snapshot.
	RenameCustomer(ctx context.Context, id int64, name string) error
	// DeleteCustomer removes the customer row. Past records are not touched.
	DeleteCustomer(ctx context.Context, id int64) error

	// CheckIn opens a visit in one conditional update: entry_time=now, exit_time=NULL,
	// visit_count+1. Returns ErrConflict when a visit is already open.
	CheckIn(ctx context.Context, id int64, now time.Time) (*Customer, error)
	// CheckOut closes the open visit in one conditional update and returns the
	// customer as it was before the update. Returns ErrConflict when no visit is open.
	CheckOut(ctx context.Context, id int64, now time.Time) (*Customer, error)
}

// FaceMatcher finds the registered customer closest to a face signature
type FaceMatcher interface {
	// FindByFace returns the nearest customer within maxDistance (cosine), or nil
	FindByFace(ctx context.Context, signature []float32, maxDistance float64) (*FaceMatch, error)
}

// PastRecordStore is the append-only archive of completed visits
type PastRecordStore interface {
	// AppendPastRecord stores the record and returns its visit number
	AppendPastRecord(ctx context.Context, rec PastRecord) (int64, error)
	// ListPastRecords returns records ordered by entry time, newest first
	ListPastRecords(ctx context.Context, filter PastRecordFilter) ([]PastRecord, error)
}

// InventoryReader provides read-only access to the shop inventory
type InventoryReader interface {
	// ListInventory returns all items ordered by name
	ListInventory(ctx context.Context) ([]InventoryItem, error)
	// GetInventoryItem retrieves an item by product code, returns ErrNotFound if missing
	GetInventoryItem(ctx context.Context, productID string) (*InventoryItem, error)
	// LatestUpdatedSince returns the most recently updated item with
	// last_updated >= since, or nil when nothing was touched
	LatestUpdatedSince(ctx context.Context, since time.Time) (*InventoryItem, error)
}

// InventoryStore provides read and write access to the shop inventory
type InventoryStore interface {
	InventoryReader

	// AddInventoryItem inserts a new item. Returns ErrConflict on a duplicate product code.
	AddInventoryItem(ctx context.Context, item *InventoryItem) error
	// UpdateInventoryItem replaces the item fields and bumps last_updated.
	// A nil image (and empty ImageRef) keeps the stored one.
	UpdateInventoryItem(ctx context.Context, item *InventoryItem) error
	// DeleteInventoryItem removes an item
	DeleteInventoryItem(ctx context.Context, productID string) error
	// SetDescription stores a generated product description without bumping last_updated
	SetDescription(ctx context.Context, productID, description string) error
}
