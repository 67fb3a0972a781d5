package postgres

import (
	"context"
	"database/sql"

	"github.com/kozaktomas/shop-kiosk/internal/database"
)

// PastRecordRepository provides the PostgreSQL-backed visit archive.
type PastRecordRepository struct {
	pool *Pool
}

// NewPastRecordRepository creates a new PostgreSQL past-record repository.
func NewPastRecordRepository(pool *Pool) *PastRecordRepository {
	return &PastRecordRepository{pool: pool}
}

// AppendPastRecord stores a completed visit and returns its visit number.
func (r *PastRecordRepository) AppendPastRecord(ctx context.Context, rec database.PastRecord) (int64, error) {
	var (
		productID    sql.NullString
		productName  sql.NullString
		productPrice sql.NullFloat64
		productImage any
	)
	if rec.Product != nil {
		productID = sql.NullString{String: rec.Product.ProductID, Valid: true}
		productName = sql.NullString{String: rec.Product.Name, Valid: true}
		productPrice = sql.NullFloat64{Float64: rec.Product.Price, Valid: true}
		productImage = nullBytes(rec.Product.Image)
	}

	var visitNumber int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO past_records
			(customer_name, entry_time, exit_time, duration, product_id, product_name, product_price, product_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING visit_number
	`, rec.CustomerName, rec.EntryTime, rec.ExitTime, rec.Duration,
		productID, productName, productPrice, productImage).Scan(&visitNumber)
	if err != nil {
		return 0, database.IOError("append past record", err)
	}
	return visitNumber, nil
}

// ListPastRecords returns records newest first, optionally only those of one customer name.
func (r *PastRecordRepository) ListPastRecords(
	ctx context.Context, filter database.PastRecordFilter,
) ([]database.PastRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT visit_number, customer_name, entry_time, exit_time, duration,
		       product_id, product_name, product_price, product_image
		FROM past_records
		WHERE $1 = '' OR customer_name = $1
		ORDER BY entry_time DESC, visit_number DESC
	`, filter.CustomerName)
	if err != nil {
		return nil, database.IOError("list past records", err)
	}
	defer rows.Close()

	var records []database.PastRecord
	for rows.Next() {
		var (
			rec          database.PastRecord
			productID    sql.NullString
			productName  sql.NullString
			productPrice sql.NullFloat64
			productImage []byte
		)
		if err := rows.Scan(&rec.VisitNumber, &rec.CustomerName, &rec.EntryTime, &rec.ExitTime, &rec.Duration,
			&productID, &productName, &productPrice, &productImage); err != nil {
			return nil, database.IOError("scan past record", err)
		}
		if productID.Valid {
			rec.Product = &database.ProductSnapshot{
				ProductID: productID.String,
				Name:      productName.String,
				Price:     productPrice.Float64,
				Image:     productImage,
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.IOError("iterate past records", err)
	}
	return records, nil
}
