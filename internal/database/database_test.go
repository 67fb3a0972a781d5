package database

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestStoreError_Is(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("get customer"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, ErrConflict) {
		t.Error("did not expect ErrConflict")
	}

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatal("expected *StoreError")
	}
	if storeErr.Op != "get customer" {
		t.Errorf("expected op 'get customer', got '%s'", storeErr.Op)
	}
}

func TestStoreError_IOErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := IOError("list inventory", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through errors.Is")
	}
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrInvalid} {
		if errors.Is(err, kind) {
			t.Errorf("I/O error should not match %v", kind)
		}
	}
	if err.Error() != "list inventory: connection refused" {
		t.Errorf("unexpected message '%s'", err.Error())
	}
}

func TestCustomer_HasOpenVisit(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		customer Customer
		expected bool
	}{
		{"never visited", Customer{}, false},
		{"checked in", Customer{EntryTime: &now}, true},
		{"checked out", Customer{EntryTime: &now, ExitTime: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.customer.HasOpenVisit(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestValidateNewItem(t *testing.T) {
	tests := []struct {
		name    string
		item    InventoryItem
		wantErr bool
	}{
		{"valid", InventoryItem{ProductID: "J001", Name: "Gold Necklace", Price: 599.99, Quantity: 5}, false},
		{"free item", InventoryItem{ProductID: "J011", Name: "Sample", Price: 0, Quantity: 0}, false},
		{"missing code", InventoryItem{Name: "Ring", Price: 1, Quantity: 1}, true},
		{"missing name", InventoryItem{ProductID: "J002", Price: 1, Quantity: 1}, true},
		{"negative price", InventoryItem{ProductID: "J002", Name: "Ring", Price: -1, Quantity: 1}, true},
		{"negative quantity", InventoryItem{ProductID: "J002", Name: "Ring", Price: 1, Quantity: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNewItem(&tt.item)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0, 0}
	if d := CosineDistance(a, a); math.Abs(d) > 1e-9 {
		t.Errorf("expected 0 for identical vectors, got %f", d)
	}
	if d := CosineDistance(a, []float32{0, 1, 0}); math.Abs(d-1) > 1e-9 {
		t.Errorf("expected 1 for orthogonal vectors, got %f", d)
	}
	if d := CosineDistance(a, []float32{1, 0}); d != 2 {
		t.Errorf("expected 2 for mismatched lengths, got %f", d)
	}
}

func testFaces() []CustomerFace {
	return []CustomerFace{
		{CustomerID: 1, Name: "Alice", Signature: []float32{1, 0, 0, 0}},
		{CustomerID: 2, Name: "Bob", Signature: []float32{0, 1, 0, 0}},
		{CustomerID: 3, Name: "Carol", Signature: []float32{0, 0, 1, 0}},
	}
}

func TestFaceIndex_Nearest(t *testing.T) {
	idx := NewFaceIndex()
	if _, _, err := idx.Nearest([]float32{1, 0, 0, 0}, 0.1); !errors.Is(err, ErrFaceIndexEmpty) {
		t.Fatalf("expected ErrFaceIndexEmpty, got %v", err)
	}

	idx.Build(testFaces())
	if idx.Count() != 3 {
		t.Fatalf("expected 3 faces, got %d", idx.Count())
	}

	face, distance, err := idx.Nearest([]float32{0.99, 0.05, 0, 0}, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if face == nil || face.CustomerID != 1 {
		t.Fatalf("expected Alice, got %+v", face)
	}
	if distance > 0.1 {
		t.Errorf("expected distance within threshold, got %f", distance)
	}

	face, _, err = idx.Nearest([]float32{0, 0, 0, 1}, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if face != nil {
		t.Errorf("expected no match for unrelated signature, got %+v", face)
	}
}

func TestFaceIndex_DeleteAndRename(t *testing.T) {
	idx := NewFaceIndex()
	idx.Build(testFaces())

	idx.Delete(2)
	face, _, err := idx.Nearest([]float32{0, 1, 0, 0}, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if face != nil {
		t.Errorf("expected deleted customer to be skipped, got %+v", face)
	}

	if !idx.Rename(3, "Caroline") {
		t.Fatal("expected rename to find customer 3")
	}
	if idx.Rename(2, "Robert") {
		t.Error("expected rename of deleted customer to fail")
	}
	face, _, _ = idx.Nearest([]float32{0, 0, 1, 0}, 0.1)
	if face == nil || face.Name != "Caroline" {
		t.Errorf("expected renamed customer, got %+v", face)
	}

	idx.Add(CustomerFace{CustomerID: 4, Name: "Dan", Signature: []float32{0, 0, 0, 1}})
	face, _, _ = idx.Nearest([]float32{0, 0, 0, 1}, 0.1)
	if face == nil || face.CustomerID != 4 {
		t.Errorf("expected added customer, got %+v", face)
	}
}

func TestFaceIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.hnsw")

	idx := NewFaceIndex()
	idx.SetPath(path)
	idx.Build(testFaces())
	if err := idx.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	meta, err := LoadFaceIndexMetadata(path)
	if err != nil {
		t.Fatalf("load metadata failed: %v", err)
	}
	if meta.CustomerCount != 3 || meta.MaxCustomerID != 3 {
		t.Errorf("unexpected metadata %+v", meta)
	}

	loaded := NewFaceIndex()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Count() != 3 {
		t.Fatalf("expected 3 faces after load, got %d", loaded.Count())
	}
	face, _, err := loaded.Nearest([]float32{0, 1, 0, 0}, 0.1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if face == nil || face.Name != "Bob" {
		t.Errorf("expected Bob after reload, got %+v", face)
	}
}

func TestProvider_NotInitialized(t *testing.T) {
	ResetBackend()
	if _, err := GetCustomerStore(t.Context()); err == nil {
		t.Error("expected error when backend is not registered")
	}
	if _, err := GetPastRecordStore(t.Context()); err == nil {
		t.Error("expected error when backend is not registered")
	}
}
