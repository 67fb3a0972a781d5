package database

import "strings"

// ValidateNewItem checks that an inventory insert carries every required field.
func ValidateNewItem(item *InventoryItem) error {
	if strings.TrimSpace(item.ProductID) == "" {
		return Invalid("add inventory item", "product id is required")
	}
	return validateItemFields("add inventory item", item)
}

// ValidateItemUpdate checks an inventory update. The image is optional.
func ValidateItemUpdate(item *InventoryItem) error {
	if strings.TrimSpace(item.ProductID) == "" {
		return Invalid("update inventory item", "product id is required")
	}
	return validateItemFields("update inventory item", item)
}

func validateItemFields(op string, item *InventoryItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return Invalid(op, "product name is required")
	}
	if item.Price < 0 {
		return Invalid(op, "price must not be negative")
	}
	if item.Quantity < 0 {
		return Invalid(op, "quantity must not be negative")
	}
	return nil
}

// ValidateCustomerName checks a display name for registration or rename.
func ValidateCustomerName(op, name string) error {
	if strings.TrimSpace(name) == "" {
		return Invalid(op, "name is required")
	}
	return nil
}
