package mariadb

import (
	"context"
	"database/sql"

	"github.com/kozaktomas/shop-kiosk/internal/database"
)

// PastRecordRepository archives completed visits in MariaDB.
type PastRecordRepository struct {
	pool *Pool
}

// NewPastRecordRepository creates a new MariaDB past-record repository.
func NewPastRecordRepository(pool *Pool) *PastRecordRepository {
	return &PastRecordRepository{pool: pool}
}

// AppendPastRecord stores a completed visit and returns its visit number.
func (r *PastRecordRepository) AppendPastRecord(ctx context.Context, rec database.PastRecord) (int64, error) {
	var (
		productID    sql.NullString
		productName  sql.NullString
		productPrice sql.NullFloat64
		productImage []byte
	)
	if rec.Product != nil {
		productID = sql.NullString{String: rec.Product.ProductID, Valid: true}
		productName = sql.NullString{String: rec.Product.Name, Valid: true}
		productPrice = sql.NullFloat64{Float64: rec.Product.Price, Valid: true}
		productImage = rec.Product.Image
	}

	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO past_records
			(customer_name, entry_time, exit_time, duration, product_id, product_name, product_price, product_image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.CustomerName, rec.EntryTime.UTC(), rec.ExitTime.UTC(), rec.Duration,
		productID, productName, productPrice, productImage)
	if err != nil {
		return 0, database.IOError("append past record", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, database.IOError("append past record", err)
	}
	return id, nil
}

// ListPastRecords returns records newest first, optionally only those of one customer name.
func (r *PastRecordRepository) ListPastRecords(
	ctx context.Context, filter database.PastRecordFilter,
) ([]database.PastRecord, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT visit_number, customer_name, entry_time, exit_time, duration,
		       product_id, product_name, product_price, product_image
		FROM past_records
		WHERE ? = '' OR customer_name = ?
		ORDER BY entry_time DESC, visit_number DESC
	`, filter.CustomerName, filter.CustomerName)
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
