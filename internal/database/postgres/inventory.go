package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/database"
)

const inventoryColumns = `product_id, name, price, quantity, image, image_ref, description, last_updated`

// InventoryRepository provides PostgreSQL-backed inventory storage.
type InventoryRepository struct {
	pool *Pool
	now  func() time.Time
}

// NewInventoryRepository creates a new PostgreSQL inventory repository.
func NewInventoryRepository(pool *Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool, now: time.Now}
}

func scanInventoryItem(row rowScanner) (*database.InventoryItem, error) {
	var (
		item     database.InventoryItem
		imageRef sql.NullString
	)
	err := row.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity,
		&item.Image, &imageRef, &item.Description, &item.LastUpdated)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers map sql.ErrNoRows
	}
	item.ImageRef = imageRef.String
	return &item, nil
}

// ListInventory returns all items ordered by name.
func (r *InventoryRepository) ListInventory(ctx context.Context) ([]database.InventoryItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+inventoryColumns+` FROM inventory ORDER BY name, product_id`)
	if err != nil {
		return nil, database.IOError("list inventory", err)
	}
	defer rows.Close()

	var items []database.InventoryItem
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, database.IOError("scan inventory item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, database.IOError("iterate inventory", err)
	}
	return items, nil
}

// GetInventoryItem retrieves an item by product code.
func (r *InventoryRepository) GetInventoryItem(ctx context.Context, productID string) (*database.InventoryItem, error) {
	item, err := scanInventoryItem(r.pool.QueryRow(ctx,
		`SELECT `+inventoryColumns+` FROM inventory WHERE product_id = $1`, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.NotFound("get inventory item")
	}
	if err != nil {
		return nil, database.IOError("get inventory item", err)
	}
	return item, nil
}

// LatestUpdatedSince returns the most recently updated item touched at or after since.
func (r *InventoryRepository) LatestUpdatedSince(ctx context.Context, since time.Time) (*database.InventoryItem, error) {
	item, err := scanInventoryItem(r.pool.QueryRow(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory
		WHERE last_updated >= $1
		ORDER BY last_updated DESC
		LIMIT 1
	`, since))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.IOError("latest updated inventory item", err)
	}
	return item, nil
}

// AddInventoryItem inserts a new item.
func (r *InventoryRepository) AddInventoryItem(ctx context.Context, item *database.InventoryItem) error {
	if err := database.ValidateNewItem(item); err != nil {
		return err
	}
	item.LastUpdated = r.now()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO inventory (product_id, name, price, quantity, image, image_ref, description, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ProductID, item.Name, item.Price, item.Quantity,
		nullBytes(item.Image), nullString(item.ImageRef), item.Description, item.LastUpdated)
	if isUniqueViolation(err) {
		return database.Conflict("add inventory item", err)
	}
	if err != nil {
		return database.IOError("add inventory item", err)
	}
	return nil
}

// UpdateInventoryItem replaces the item fields, keeping the stored image when none is given.
func (r *InventoryRepository) UpdateInventoryItem(ctx context.Context, item *database.InventoryItem) error {
	if err := database.ValidateItemUpdate(item); err != nil {
		return err
	}
	item.LastUpdated = r.now()

	// A new image replaces both representations, no image keeps both.
	replaceImage := item.HasImage()
	result, err := r.pool.Exec(ctx, `
		UPDATE inventory
		SET name = $2, price = $3, quantity = $4,
		    image = CASE WHEN $8 THEN $5 ELSE image END,
		    image_ref = CASE WHEN $8 THEN $6 ELSE image_ref END,
		    last_updated = $7
		WHERE product_id = $1
	`, item.ProductID, item.Name, item.Price, item.Quantity,
		nullBytes(item.Image), nullString(item.ImageRef), item.LastUpdated, replaceImage)
	if err != nil {
		return database.IOError("update inventory item", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return database.NotFound("update inventory item")
	}
	return nil
}

// DeleteInventoryItem removes an item.
func (r *InventoryRepository) DeleteInventoryItem(ctx context.Context, productID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM inventory WHERE product_id = $1`, productID)
	if err != nil {
		return database.IOError("delete inventory item", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return database.NotFound("delete inventory item")
	}
	return nil
}

// SetDescription stores a product description without touching last_updated,
// so describing an item does not count as a customer touching it.
func (r *InventoryRepository) SetDescription(ctx context.Context, productID, description string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE inventory SET description = $2 WHERE product_id = $1`, productID, description)
	if err != nil {
		return database.IOError("set description", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return database.NotFound("set description")
	}
	return nil
}
