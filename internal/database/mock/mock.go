// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/database"
)

// MockCustomerStore is an in-memory implementation of database.CustomerStore and database.FaceMatcher
type MockCustomerStore struct {
	mu        sync.RWMutex
	customers map[int64]*database.Customer
	nextID    int64

	// Error injection
	ListError       error
	GetError        error
	RegisterError   error
	RenameError     error
	DeleteError     error
	CheckInError    error
	CheckOutError   error
	FindByFaceError error
}

// NewMockCustomerStore creates a new mock customer store
func NewMockCustomerStore() *MockCustomerStore {
	return &MockCustomerStore{
		customers: make(map[int64]*database.Customer),
		nextID:    1,
	}
}

func copyCustomer(c *database.Customer) *database.Customer {
	out := *c
	out.FaceSignature = append([]float32(nil), c.FaceSignature...)
	if c.EntryTime != nil {
		t := *c.EntryTime
		out.EntryTime = &t
	}
	if c.ExitTime != nil {
		t := *c.ExitTime
		out.ExitTime = &t
	}
	return &out
}

// AddCustomer puts a customer into the store as-is, assigning an ID when zero
func (m *MockCustomerStore) AddCustomer(c database.Customer) database.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.nextID
	}
	if c.ID >= m.nextID {
		m.nextID = c.ID + 1
	}
	m.customers[c.ID] = copyCustomer(&c)
	return c
}

// ListCustomers returns customers ordered by entry time, newest first, never-visited last
func (m *MockCustomerStore) ListCustomers(ctx context.Context) ([]database.Customer, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, *copyCustomer(c))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].EntryTime, out[j].EntryTime
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return out[i].ID < out[j].ID
		default:
			return a.After(*b)
		}
	})
	return out, nil
}

// GetCustomer retrieves a customer by ID
func (m *MockCustomerStore) GetCustomer(ctx context.Context, id int64) (*database.Customer, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, database.NotFound("get customer")
	}
	return copyCustomer(c), nil
}

// RegisterCustomer stores a new customer
func (m *MockCustomerStore) RegisterCustomer(ctx context.Context, name string, signature []float32) (*database.Customer, error) {
	if m.RegisterError != nil {
		return nil, m.RegisterError
	}
	if err := database.ValidateCustomerName("register customer", name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &database.Customer{ID: m.nextID, Name: name, FaceSignature: append([]float32(nil), signature...)}
	m.nextID++
	m.customers[c.ID] = c
	return copyCustomer(c), nil
}

// RenameCustomer changes the display name
func (m *MockCustomerStore) RenameCustomer(ctx context.Context, id int64, name string) error {
	if m.RenameError != nil {
		return m.RenameError
	}
	if err := database.ValidateCustomerName("rename customer", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return database.NotFound("rename customer")
	}
	c.Name = name
	return nil
}

// DeleteCustomer removes a customer
func (m *MockCustomerStore) DeleteCustomer(ctx context.Context, id int64) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[id]; !ok {
		return database.NotFound("delete customer")
	}
	delete(m.customers, id)
	return nil
}

// CheckIn opens a visit unless one is open
func (m *MockCustomerStore) CheckIn(ctx context.Context, id int64, now time.Time) (*database.Customer, error) {
	if m.CheckInError != nil {
		return nil, m.CheckInError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, database.NotFound("check in")
	}
	if c.HasOpenVisit() {
		return nil, database.Conflict("check in", errors.New("visit already open"))
	}
	entry := now
	c.EntryTime = &entry
	c.ExitTime = nil
	c.VisitCount++
	return copyCustomer(c), nil
}

// CheckOut closes the open visit and returns the customer as it was before
func (m *MockCustomerStore) CheckOut(ctx context.Context, id int64, now time.Time) (*database.Customer, error) {
	if m.CheckOutError != nil {
		return nil, m.CheckOutError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, database.NotFound("check out")
	}
	if !c.HasOpenVisit() {
		return nil, database.Conflict("check out", errors.New("no open visit"))
	}
	before := copyCustomer(c)
	exit := now
	c.ExitTime = &exit
	return before, nil
}

// FindByFace returns the nearest customer by brute-force cosine distance
func (m *MockCustomerStore) FindByFace(ctx context.Context, signature []float32, maxDistance float64) (*database.FaceMatch, error) {
	if m.FindByFaceError != nil {
		return nil, m.FindByFaceError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *database.FaceMatch
	for _, c := range m.customers {
		d := database.CosineDistance(signature, c.FaceSignature)
		if d > maxDistance {
			continue
		}
		if best == nil || d < best.Distance {
			best = &database.FaceMatch{Customer: *copyCustomer(c), Distance: d}
		}
	}
	return best, nil
}

// Count returns the number of stored customers
func (m *MockCustomerStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.customers)
}

// MockInventoryStore is an in-memory implementation of database.InventoryStore
type MockInventoryStore struct {
	mu    sync.RWMutex
	items map[string]*database.InventoryItem

	// Now stamps last_updated on writes, time.Now when nil
	Now func() time.Time

	// Error injection
	ListError           error
	GetError            error
	LatestError         error
	AddError            error
	UpdateError         error
	DeleteError         error
	SetDescriptionError error
}

// NewMockInventoryStore creates a new mock inventory store
func NewMockInventoryStore() *MockInventoryStore {
	return &MockInventoryStore{
		items: make(map[string]*database.InventoryItem),
	}
}

func (m *MockInventoryStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// PutItem stores an item as-is, including its LastUpdated
func (m *MockInventoryStore) PutItem(item database.InventoryItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ProductID] = &item
}

// ListInventory returns all items ordered by name
func (m *MockInventoryStore) ListInventory(ctx context.Context) ([]database.InventoryItem, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.InventoryItem, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// GetInventoryItem retrieves an item by product code
func (m *MockInventoryStore) GetInventoryItem(ctx context.Context, productID string) (*database.InventoryItem, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[productID]
	if !ok {
		return nil, database.NotFound("get inventory item")
	}
	out := *item
	return &out, nil
}

// LatestUpdatedSince returns the most recently updated item at or after since
func (m *MockInventoryStore) LatestUpdatedSince(ctx context.Context, since time.Time) (*database.InventoryItem, error) {
	if m.LatestError != nil {
		return nil, m.LatestError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *database.InventoryItem
	for _, item := range m.items {
		if item.LastUpdated.Before(since) {
			continue
		}
		if latest == nil || item.LastUpdated.After(latest.LastUpdated) {
			latest = item
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

// AddInventoryItem inserts a new item
func (m *MockInventoryStore) AddInventoryItem(ctx context.Context, item *database.InventoryItem) error {
	if m.AddError != nil {
		return m.AddError
	}
	if err := database.ValidateNewItem(item); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[item.ProductID]; exists {
		return database.Conflict("add inventory item", errors.New("duplicate product id"))
	}
	item.LastUpdated = m.now()
	stored := *item
	m.items[item.ProductID] = &stored
	return nil
}

// UpdateInventoryItem replaces item fields, keeping the image when none is given
func (m *MockInventoryStore) UpdateInventoryItem(ctx context.Context, item *database.InventoryItem) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if err := database.ValidateItemUpdate(item); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[item.ProductID]
	if !ok {
		return database.NotFound("update inventory item")
	}
	item.LastUpdated = m.now()
	stored := *item
	stored.Description = existing.Description
	if !item.HasImage() {
		stored.Image = existing.Image
		stored.ImageRef = existing.ImageRef
	}
	m.items[item.ProductID] = &stored
	return nil
}

// DeleteInventoryItem removes an item
func (m *MockInventoryStore) DeleteInventoryItem(ctx context.Context, productID string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[productID]; !ok {
		return database.NotFound("delete inventory item")
	}
	delete(m.items, productID)
	return nil
}

// SetDescription stores a description without bumping last_updated
func (m *MockInventoryStore) SetDescription(ctx context.Context, productID, description string) error {
	if m.SetDescriptionError != nil {
		return m.SetDescriptionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[productID]
	if !ok {
		return database.NotFound("set description")
	}
	item.Description = description
	return nil
}

// MockPastRecordStore is an in-memory implementation of database.PastRecordStore
type MockPastRecordStore struct {
	mu      sync.RWMutex
	records []database.PastRecord
	next    int64

	// Error injection
	AppendError error
	ListError   error
}

// NewMockPastRecordStore creates a new mock past-record store
func NewMockPastRecordStore() *MockPastRecordStore {
	return &MockPastRecordStore{next: 1}
}

// AppendPastRecord stores a record and assigns the next visit number
func (m *MockPastRecordStore) AppendPastRecord(ctx context.Context, rec database.PastRecord) (int64, error) {
	if m.AppendError != nil {
		return 0, m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.VisitNumber = m.next
	m.next++
	m.records = append(m.records, rec)
	return rec.VisitNumber, nil
}

// ListPastRecords returns records newest first, filtered by customer name
func (m *MockPastRecordStore) ListPastRecords(ctx context.Context, filter database.PastRecordFilter) ([]database.PastRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.PastRecord
	for _, rec := range m.records {
		if filter.CustomerName != "" && rec.CustomerName != filter.CustomerName {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].VisitNumber > out[j].VisitNumber
		}
		return out[i].EntryTime.After(out[j].EntryTime)
	})
	return out, nil
}

// Records returns every stored record in append order
func (m *MockPastRecordStore) Records() []database.PastRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.PastRecord(nil), m.records...)
}
