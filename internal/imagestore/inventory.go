package imagestore

import (
	"context"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/database"
)

// InventoryStore stores item images as files and keeps only their names in the wrapped store.
type InventoryStore struct {
	database.InventoryStore
	images *Store
}

// WrapInventory returns an inventory store that writes images to images.
func WrapInventory(inner database.InventoryStore, images *Store) *InventoryStore {
	return &InventoryStore{InventoryStore: inner, images: images}
}

// offload moves inline image bytes into the file store.
func (s *InventoryStore) offload(item *database.InventoryItem) (*database.InventoryItem, error) {
	if len(item.Image) == 0 {
		return item, nil
	}
	name, err := s.images.Put(item.Image)
	if err != nil {
		return nil, database.Invalid("store product image", err.Error())
	}
	stored := *item
	stored.Image = nil
	stored.ImageRef = name
	return &stored, nil
}

// hydrate loads the image bytes of an item stored by reference.
func (s *InventoryStore) hydrate(item *database.InventoryItem) *database.InventoryItem {
	if item == nil || item.ImageRef == "" || len(item.Image) > 0 {
		return item
	}
	// A missing file leaves the item without image bytes, the row stays readable.
	if data, err := s.images.Get(item.ImageRef); err == nil {
		item.Image = data
	}
	return item
}

// AddInventoryItem stores the image file then inserts the row.
func (s *InventoryStore) AddInventoryItem(ctx context.Context, item *database.InventoryItem) error {
	stored, err := s.offload(item)
	if err != nil {
		return err
	}
	if err := s.InventoryStore.AddInventoryItem(ctx, stored); err != nil {
		return err
	}
	item.ImageRef = stored.ImageRef
	item.LastUpdated = stored.LastUpdated
	return nil
}

// UpdateInventoryItem stores a new image file if one is given. Without one the
// wrapped store keeps the previous reference.
func (s *InventoryStore) UpdateInventoryItem(ctx context.Context, item *database.InventoryItem) error {
	stored, err := s.offload(item)
	if err != nil {
		return err
	}
	if err := s.InventoryStore.UpdateInventoryItem(ctx, stored); err != nil {
		return err
	}
	item.ImageRef = stored.ImageRef
	item.LastUpdated = stored.LastUpdated
	return nil
}

// ListInventory returns all items with their images loaded.
func (s *InventoryStore) ListInventory(ctx context.Context) ([]database.InventoryItem, error) {
	items, err := s.InventoryStore.ListInventory(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.hydrate(&items[i])
	}
	return items, nil
}

// GetInventoryItem returns one item with its image loaded.
func (s *InventoryStore) GetInventoryItem(ctx context.Context, productID string) (*database.InventoryItem, error) {
	item, err := s.InventoryStore.GetInventoryItem(ctx, productID)
	if err != nil {
		return nil, err
	}
	return s.hydrate(item), nil
}

// LatestUpdatedSince returns the most recently touched item with its image loaded.
func (s *InventoryStore) LatestUpdatedSince(ctx context.Context, since time.Time) (*database.InventoryItem, error) {
	item, err := s.InventoryStore.LatestUpdatedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	return s.hydrate(item), nil
}
