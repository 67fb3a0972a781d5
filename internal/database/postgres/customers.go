package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/constants"
	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/pgvector/pgvector-go"
)

const customerColumns = `id, name, face_signature, entry_time, exit_time, visit_count`

// CustomerRepository provides PostgreSQL-backed customer storage with an optional in-memory face index.
type CustomerRepository struct {
	pool      *Pool
	index     *database.FaceIndex
	indexOn   bool
	indexPath string
	indexMu   sync.RWMutex
}

// NewCustomerRepository creates a new PostgreSQL customer repository.
func NewCustomerRepository(pool *Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*database.Customer, error) {
	var (
		c         database.Customer
		signature pgvector.Vector
		entry     sql.NullTime
		exit      sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Name, &signature, &entry, &exit, &c.VisitCount); err != nil {
		return nil, err //nolint:wrapcheck // callers map sql.ErrNoRows
	}
	c.FaceSignature = signature.Slice()
	c.EntryTime = timePtr(entry)
	c.ExitTime = timePtr(exit)
	return &c, nil
}

// ListCustomers returns all customers, most recent entry first.
func (r *CustomerRepository) ListCustomers(ctx context.Context) ([]database.Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		ORDER BY entry_time DESC NULLS LAST, id
	`)
	if err != nil {
		return nil, database.IOError("list customers", err)
	}
	defer rows.Close()

	var customers []database.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, database.IOError("scan customer", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, database.IOError("iterate customers", err)
	}
	return customers, nil
}

// GetCustomer retrieves a customer by ID.
func (r *CustomerRepository) GetCustomer(ctx context.Context, id int64) (*database.Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.NotFound("get customer")
	}
	if err != nil {
		return nil, database.IOError("get customer", err)
	}
	return c, nil
}

// RegisterCustomer inserts a new customer with no visit.
func (r *CustomerRepository) RegisterCustomer(
	ctx context.Context, name string, signature []float32,
) (*database.Customer, error) {
	if err := database.ValidateCustomerName("register customer", name); err != nil {
		return nil, err
	}
	if len(signature) != constants.FaceSignatureDim {
		return nil, database.Invalid("register customer",
			fmt.Sprintf("face signature must have %d values, got %d", constants.FaceSignatureDim, len(signature)))
	}

	c, err := scanCustomer(r.pool.QueryRow(ctx, `
		INSERT INTO customers (name, face_signature, visit_count)
		VALUES ($1, $2, 0)
		RETURNING `+customerColumns,
		name, pgvector.NewVector(signature),
	))
	if err != nil {
		return nil, database.IOError("register customer", err)
	}

	r.indexMu.RLock()
	if r.indexOn && r.index != nil {
		r.index.Add(database.CustomerFace{CustomerID: c.ID, Name: c.Name, Signature: c.FaceSignature})
	}
	r.indexMu.RUnlock()

	return c, nil
}

// RenameCustomer changes the display name of a customer.
func (r *CustomerRepository) RenameCustomer(ctx context.Context, id int64, name string) error {
	if err := database.ValidateCustomerName("rename customer", name); err != nil {
		return err
	}
	result, err := r.pool.Exec(ctx, `UPDATE customers SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return database.IOError("rename customer", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return database.NotFound("rename customer")
	}

	r.indexMu.RLock()
	if r.indexOn && r.index != nil {
		r.index.Rename(id, name)
	}
	r.indexMu.RUnlock()
	return nil
}

// DeleteCustomer removes a customer. Past records are kept.
func (r *CustomerRepository) DeleteCustomer(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return database.IOError("delete customer", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return database.NotFound("delete customer")
	}

	r.indexMu.RLock()
	if r.indexOn && r.index != nil {
		r.index.Delete(id)
	}
	r.indexMu.RUnlock()
	return nil
}

// CheckIn opens a new visit unless one is already open.
func (r *CustomerRepository) CheckIn(ctx context.Context, id int64, now time.Time) (*database.Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `
		UPDATE customers
		SET entry_time = $2, exit_time = NULL, visit_count = visit_count + 1
		WHERE id = $1 AND NOT (entry_time IS NOT NULL AND exit_time IS NULL)
		RETURNING `+customerColumns,
		id, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOrConflict(ctx, "check in", id)
	}
	if err != nil {
		return nil, database.IOError("check in", err)
	}
	return c, nil
}

// CheckOut closes the open visit and returns the customer as it was before the update.
func (r *CustomerRepository) CheckOut(ctx context.Context, id int64, now time.Time) (*database.Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `
		UPDATE customers
		SET exit_time = $2
		WHERE id = $1 AND entry_time IS NOT NULL AND exit_time IS NULL
		RETURNING `+customerColumns,
		id, now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, r.missingOrConflict(ctx, "check out", id)
	}
	if err != nil {
		return nil, database.IOError("check out", err)
	}
	// The visit was open until this update.
	c.ExitTime = nil
	return c, nil
}

// missingOrConflict tells apart a failed conditional update on a missing row
// from one on a row in the wrong visit state.
func (r *CustomerRepository) missingOrConflict(ctx context.Context, op string, id int64) error {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return database.IOError(op, err)
	}
	if !exists {
		return database.NotFound(op)
	}
	return database.Conflict(op, errors.New("visit state does not allow this transition"))
}

// FindByFace returns the registered customer nearest to the signature within maxDistance.
// Uses the in-memory face index if enabled, otherwise falls back to PostgreSQL.
func (r *CustomerRepository) FindByFace(
	ctx context.Context, signature []float32, maxDistance float64,
) (*database.FaceMatch, error) {
	if len(signature) == 0 {
		return nil, nil
	}

	r.indexMu.RLock()
	indexOn := r.indexOn && r.index != nil
	r.indexMu.RUnlock()

	if indexOn {
		return r.findByFaceIndex(ctx, signature, maxDistance)
	}
	return r.findByFacePostgres(ctx, signature, maxDistance)
}

func (r *CustomerRepository) findByFaceIndex(
	ctx context.Context, signature []float32, maxDistance float64,
) (*database.FaceMatch, error) {
	r.indexMu.RLock()
	face, distance, err := r.index.Nearest(signature, maxDistance)
	r.indexMu.RUnlock()
	if errors.Is(err, database.ErrFaceIndexEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("face index search: %w", err)
	}
	if face == nil {
		return nil, nil
	}

	// Visit state lives in the database only.
	c, err := r.GetCustomer(ctx, face.CustomerID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &database.FaceMatch{Customer: *c, Distance: distance}, nil
}

func (r *CustomerRepository) findByFacePostgres(
	ctx context.Context, signature []float32, maxDistance float64,
) (*database.FaceMatch, error) {
	if len(signature) != constants.FaceSignatureDim {
		return nil, nil
	}

	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, database.IOError("find by face", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, database.IOError("set ef_search", err)
	}

	var (
		c        database.Customer
		sig      pgvector.Vector
		entry    sql.NullTime
		exit     sql.NullTime
		distance float64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT `+customerColumns+`, face_signature <=> $1 AS distance
		FROM customers
		WHERE face_signature <=> $1 <= $2
		ORDER BY distance
		LIMIT 1
	`, pgvector.NewVector(signature), maxDistance).Scan(&c.ID, &c.Name, &sig, &entry, &exit, &c.VisitCount, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, database.IOError("find by face", err)
	}
	c.FaceSignature = sig.Slice()
	c.EntryTime = timePtr(entry)
	c.ExitTime = timePtr(exit)
	return &database.FaceMatch{Customer: c, Distance: distance}, nil
}

// allFaces loads every customer signature for building the index.
func (r *CustomerRepository) allFaces(ctx context.Context) ([]database.CustomerFace, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, face_signature FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query customer faces: %w", err)
	}
	defer rows.Close()

	var faces []database.CustomerFace
	for rows.Next() {
		var (
			face database.CustomerFace
			sig  pgvector.Vector
		)
		if err := rows.Scan(&face.CustomerID, &face.Name, &sig); err != nil {
			return nil, fmt.Errorf("scan customer face: %w", err)
		}
		face.Signature = sig.Slice()
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer faces: %w", err)
	}
	return faces, nil
}

// tryLoadFaceIndex attempts to load the face index from disk.
// Returns true if a fresh index was loaded.
func (r *CustomerRepository) tryLoadFaceIndex(indexPath string, dbCount, dbMaxID int64) bool {
	meta, err := database.LoadFaceIndexMetadata(indexPath)
	if err != nil {
		fmt.Printf("Face index: metadata file error: %v (will rebuild)\n", err)
		return false
	}
	if meta.CustomerCount != dbCount || meta.MaxCustomerID != dbMaxID {
		fmt.Printf("Face index: stale (db: count=%d max_id=%d, cached: count=%d max_id=%d) (will rebuild)\n",
			dbCount, dbMaxID, meta.CustomerCount, meta.MaxCustomerID)
		return false
	}

	index := database.NewFaceIndex()
	if err := index.Load(indexPath); err != nil {
		fmt.Printf("Face index: failed to load: %v (will rebuild)\n", err)
		return false
	}
	if index.IsEmpty() {
		return false
	}
	r.index = index
	fmt.Printf("Face index: loaded %d customers from disk\n", index.Count())
	return true
}

// EnableFaceIndex loads or builds the in-memory face index.
func (r *CustomerRepository) EnableFaceIndex(ctx context.Context, indexPath string) error {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	r.indexPath = indexPath

	var dbCount, dbMaxID int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*), COALESCE(MAX(id), 0) FROM customers").Scan(&dbCount, &dbMaxID)
	if err != nil {
		return fmt.Errorf("failed to get customer stats: %w", err)
	}

	if indexPath != "" && r.tryLoadFaceIndex(indexPath, dbCount, dbMaxID) {
		r.indexOn = true
		return nil
	}

	faces, err := r.allFaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to load faces: %w", err)
	}

	r.index = database.NewFaceIndex()
	r.index.SetPath(indexPath)
	r.index.Build(faces)

	if indexPath != "" && len(faces) > 0 {
		if err := r.index.Save(); err != nil {
			fmt.Printf("Warning: failed to save face index to disk: %v\n", err)
		}
	}

	r.indexOn = true
	return nil
}

// DisableFaceIndex falls back to PostgreSQL queries for face matching.
func (r *CustomerRepository) DisableFaceIndex() {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()
	r.indexOn = false
}

// IsFaceIndexEnabled returns whether the in-memory face index is enabled.
func (r *CustomerRepository) IsFaceIndexEnabled() bool {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	return r.indexOn && r.index != nil
}

// FaceIndexCount returns the number of customers in the face index.
func (r *CustomerRepository) FaceIndexCount() int {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()
	if r.index == nil {
		return 0
	}
	return r.index.Count()
}

// RebuildFaceIndex rebuilds the face index from PostgreSQL data, ignoring any cached file.
func (r *CustomerRepository) RebuildFaceIndex(ctx context.Context) error {
	r.indexMu.RLock()
	indexPath := r.indexPath
	r.indexMu.RUnlock()

	faces, err := r.allFaces(ctx)
	if err != nil {
		return fmt.Errorf("failed to load faces: %w", err)
	}
	index := database.NewFaceIndex()
	index.SetPath(indexPath)
	index.Build(faces)

	r.indexMu.Lock()
	r.index = index
	r.indexOn = true
	r.indexMu.Unlock()
	return nil
}

// SaveFaceIndex saves the current face index to disk (if path configured).
func (r *CustomerRepository) SaveFaceIndex() error {
	r.indexMu.RLock()
	defer r.indexMu.RUnlock()

	if r.index == nil || r.indexPath == "" {
		return nil
	}
	if err := r.index.Save(); err != nil {
		return fmt.Errorf("saving face index: %w", err)
	}
	return nil
}
