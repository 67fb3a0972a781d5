// Package lifecycle implements the customer visit state machine: registration,
// check-in, check-out with its past record, and the interpretation of detection
// results as operator offers.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/constants"
	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/events"
	"github.com/kozaktomas/shop-kiosk/internal/logging"
	"go.uber.org/zap"
)

// Config holds the optional collaborators of a Manager.
type Config struct {
	// Matcher is asked for unmatched faces. Nil disables store-side matching.
	Matcher database.FaceMatcher
	// MatchDistance is the maximum cosine distance accepted from Matcher.
	MatchDistance float64
	// Publisher receives change events. Nil disables publishing.
	Publisher events.Publisher
	// Clock returns the current time, time.Now when nil.
	Clock func() time.Time
	Logger *zap.Logger
}

// Manager drives visit state transitions against the store. It keeps no durable
// state of its own, only the hints of the last detected faces.
type Manager struct {
	customers database.CustomerStore
	inventory database.InventoryReader
	records   database.PastRecordStore

	matcher       database.FaceMatcher
	matchDistance float64
	publisher     events.Publisher
	clock         func() time.Time
	logger        *zap.Logger

	mu    sync.Mutex
	hints hints
}

// hints bridge camera frames to one-click operator actions.
type hints struct {
	matchedID  int64 // 0 when none
	unmatched  []float32
	detectedAt time.Time
}

// Checkout is the outcome of a successful check-out.
type Checkout struct {
	Customer database.Customer
	Record   database.PastRecord
}

// NewManager creates a Manager over the given stores.
func NewManager(
	customers database.CustomerStore,
	inventory database.InventoryReader,
	records database.PastRecordStore,
	cfg Config,
) *Manager {
	m := &Manager{
		customers:     customers,
		inventory:     inventory,
		records:       records,
		matcher:       cfg.Matcher,
		matchDistance: cfg.MatchDistance,
		publisher:     cfg.Publisher,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
	}
	if m.matchDistance <= 0 {
		m.matchDistance = constants.DefaultMatchDistance
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.Named("lifecycle")
	return m
}

func (m *Manager) now() time.Time {
	return m.clock().UTC()
}

func (m *Manager) publish(t events.Type, data any) {
	if m.publisher != nil {
		m.publisher.Publish(events.New(t, data))
	}
}

// Register creates a customer from a detected face. The customer starts NotCheckedIn.
func (m *Manager) Register(ctx context.Context, name string, signature []float32) (*database.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if len(signature) == 0 {
		return nil, ErrInvalidSignature
	}

	c, err := m.customers.RegisterCustomer(ctx, name, signature)
	if err != nil {
		return nil, fmt.Errorf("registering customer: %w", err)
	}

	m.logger.Info("customer registered",
		zap.Int64("customer_id", c.ID), zap.String("name", logging.SanitizeForLog(c.Name)))
	m.publish(events.TypeCustomers, map[string]any{"action": "registered", "customer_id": c.ID})
	return c, nil
}

// Rename changes a customer's display name. Past records keep the old name.
func (m *Manager) Rename(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if err := m.customers.RenameCustomer(ctx, id, name); err != nil {
		return mapStoreError(err, id, nil)
	}
	m.publish(events.TypeCustomers, map[string]any{"action": "renamed", "customer_id": id})
	return nil
}

// Delete removes a customer. Past records are not touched.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if err := m.customers.DeleteCustomer(ctx, id); err != nil {
		return mapStoreError(err, id, nil)
	}

	m.mu.Lock()
	if m.hints.matchedID == id {
		m.hints.matchedID = 0
	}
	m.mu.Unlock()

	m.logger.Info("customer deleted", zap.Int64("customer_id", id))
	m.publish(events.TypeCustomers, map[string]any{"action": "deleted", "customer_id": id})
	return nil
}

// CheckIn opens a visit. An open visit yields ErrAlreadyCheckedIn and leaves the visit count unchanged.
func (m *Manager) CheckIn(ctx context.Context, id int64) (*database.Customer, error) {
	c, err := m.customers.CheckIn(ctx, id, m.now())
	if err != nil {
		return nil, mapStoreError(err, id, ErrAlreadyCheckedIn)
	}

	m.logger.Info("customer checked in",
		zap.Int64("customer_id", c.ID), zap.Int("visit_count", c.VisitCount))
	m.publish(events.TypeCustomers, map[string]any{"action": "checked_in", "customer_id": c.ID})
	return c, nil
}

// CheckOut closes the open visit and appends its past record. The product on the
// record is the most recently updated inventory item since the visit began, if any.
// When the record cannot be written the customer stays checked out and a
// *PartialCheckoutError is returned.
func (m *Manager) CheckOut(ctx context.Context, id int64) (*Checkout, error) {
	now := m.now()
	before, err := m.customers.CheckOut(ctx, id, now)
	if err != nil {
		return nil, mapStoreError(err, id, ErrNoOpenVisit)
	}
	if before.EntryTime == nil {
		// The store only checks out open visits.
		return nil, fmt.Errorf("checking out customer %d: store returned no entry time", id)
	}
	entry := *before.EntryTime

	after := *before
	after.ExitTime = &now

	rec := database.PastRecord{
		CustomerName: before.Name,
		EntryTime:    entry,
		ExitTime:     now,
		Duration:     FormatDuration(now.Sub(entry)),
		Product:      m.visitProduct(ctx, id, entry),
	}

	m.publish(events.TypeCustomers, map[string]any{"action": "checked_out", "customer_id": id})

	number, err := m.records.AppendPastRecord(ctx, rec)
	if err != nil {
		m.logger.Error("past record not written after checkout",
			zap.Int64("customer_id", id), zap.Error(err))
		partial := &PartialCheckoutError{CustomerID: id, CustomerName: before.Name, Record: rec, Err: err}
		m.publish(events.TypeNotification, events.Notification{Level: "error", Message: partial.Error()})
		return nil, partial
	}
	rec.VisitNumber = number

	m.logger.Info("customer checked out",
		zap.Int64("customer_id", id),
		zap.Int64("visit_number", number),
		zap.String("duration", rec.Duration))
	m.publish(events.TypeRecords, map[string]any{"action": "appended", "visit_number": number})
	return &Checkout{Customer: after, Record: rec}, nil
}

// visitProduct applies the purchase heuristic. Lookup failures are logged and yield no product.
func (m *Manager) visitProduct(ctx context.Context, id int64, since time.Time) *database.ProductSnapshot {
	if m.inventory == nil {
		return nil
	}
	item, err := m.inventory.LatestUpdatedSince(ctx, since)
	if err != nil {
		m.logger.Warn("inventory lookup failed, recording visit without product",
			zap.Int64("customer_id", id), zap.Error(err))
		return nil
	}
	if item == nil {
		return nil
	}
	return item.Snapshot()
}

// CheckInLastDetected checks in the customer of the most recent matched face.
func (m *Manager) CheckInLastDetected(ctx context.Context) (*database.Customer, error) {
	m.mu.Lock()
	id := m.hints.matchedID
	m.mu.Unlock()

	if id == 0 {
		return nil, ErrNoCandidate
	}
	return m.CheckIn(ctx, id)
}

// RegisterLastDetected registers the most recent unmatched face under name.
func (m *Manager) RegisterLastDetected(ctx context.Context, name string) (*database.Customer, error) {
	m.mu.Lock()
	sig := m.hints.unmatched
	m.mu.Unlock()

	if len(sig) == 0 {
		return nil, ErrNoCandidate
	}
	c, err := m.Register(ctx, name, sig)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if sameSignature(m.hints.unmatched, sig) {
		m.hints.unmatched = nil
		m.hints.matchedID = c.ID
	}
	m.mu.Unlock()
	return c, nil
}

// LastDetected reports the current one-click hints.
func (m *Manager) LastDetected() (matchedID int64, hasUnmatched bool, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hints.matchedID, len(m.hints.unmatched) > 0, m.hints.detectedAt
}

func sameSignature(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isNotFound reports whether err means the customer row is gone.
func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}
