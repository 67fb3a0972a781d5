package database

import (
	"context"
	"fmt"
)

// FaceIndexRebuilder is implemented by customer stores that keep an in-memory face index
type FaceIndexRebuilder interface {
	// RebuildFaceIndex reloads the in-memory index from the database
	RebuildFaceIndex(ctx context.Context) error
	// FaceIndexCount returns the number of customers in the index
	FaceIndexCount() int
	// IsFaceIndexEnabled returns whether the index is enabled
	IsFaceIndexEnabled() bool
	// SaveFaceIndex saves the current index to disk (if path configured)
	SaveFaceIndex() error
}

var (
	customerStore     func() CustomerStore
	inventoryStore    func() InventoryStore
	pastRecordStore   func() PastRecordStore
	faceIndex         FaceIndexRebuilder
	storesInitialized bool
)

// RegisterBackend registers the store constructors.
// This is called from cmd after the database pools are open, to avoid import cycles.
func RegisterBackend(
	customers func() CustomerStore,
	inventory func() InventoryStore,
	records func() PastRecordStore,
) {
	customerStore = customers
	inventoryStore = inventory
	pastRecordStore = records
	storesInitialized = true
}

// RegisterPastRecordStore overrides the past-records constructor, used when the
// history group lives in a different database engine.
func RegisterPastRecordStore(records func() PastRecordStore) {
	pastRecordStore = records
}

// RegisterInventoryStore overrides the inventory constructor, used to wrap it with file-backed images.
func RegisterInventoryStore(inventory func() InventoryStore) {
	inventoryStore = inventory
}

// RegisterFaceIndexRebuilder registers the face index of the customer store.
func RegisterFaceIndexRebuilder(rebuilder FaceIndexRebuilder) {
	faceIndex = rebuilder
}

// GetFaceIndexRebuilder returns the registered face index, or nil if not registered.
func GetFaceIndexRebuilder() FaceIndexRebuilder {
	return faceIndex
}

// IsInitialized returns whether the stores have been registered.
func IsInitialized() bool {
	return storesInitialized
}

// ResetBackend clears all registrations.
func ResetBackend() {
	customerStore = nil
	inventoryStore = nil
	pastRecordStore = nil
	faceIndex = nil
	storesInitialized = false
}

// GetCustomerStore returns the registered CustomerStore
func GetCustomerStore(ctx context.Context) (CustomerStore, error) {
	if !storesInitialized {
		return nil, fmt.Errorf("database backend not initialized: DATABASE_URL is required")
	}
	if customerStore == nil {
		return nil, fmt.Errorf("customer store not registered")
	}
	return customerStore(), nil
}

// GetInventoryStore returns the registered InventoryStore
func GetInventoryStore(ctx context.Context) (InventoryStore, error) {
	if !storesInitialized {
		return nil, fmt.Errorf("database backend not initialized: DATABASE_URL is required")
	}
	if inventoryStore == nil {
		return nil, fmt.Errorf("inventory store not registered")
	}
	return inventoryStore(), nil
}

// GetPastRecordStore returns the registered PastRecordStore
func GetPastRecordStore(ctx context.Context) (PastRecordStore, error) {
	if !storesInitialized {
		return nil, fmt.Errorf("database backend not initialized: DATABASE_URL is required")
	}
	if pastRecordStore == nil {
		return nil, fmt.Errorf("past record store not registered")
	}
	return pastRecordStore(), nil
}

// GetFaceMatcher returns the customer store as a FaceMatcher when it supports matching.
func GetFaceMatcher(ctx context.Context) (FaceMatcher, error) {
	store, err := GetCustomerStore(ctx)
	if err != nil {
		return nil, err
	}
	matcher, ok := store.(FaceMatcher)
	if !ok {
		return nil, fmt.Errorf("customer store does not support face matching")
	}
	return matcher, nil
}
