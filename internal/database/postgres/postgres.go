package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/shop-kiosk/internal/config"
	"github.com/lib/pq"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db *sql.DB
}

// Pools holds one pool per table group. Groups configured with the same URL share a pool.
// History is nil when past records live in a different engine.
type Pools struct {
	Customers *Pool
	Inventory *Pool
	History   *Pool
}

var (
	globalPools *Pools
	poolMu      sync.RWMutex
)

// NewPool creates a new PostgreSQL connection pool for the given URL.
func NewPool(url string, cfg *config.DatabaseConfig) (*Pool, error) {
	if url == "" {
		return nil, errors.New("database URL is required")
	}

	connector, err := pq.NewConnector(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// QueryRow executes a query that returns a single row.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

// Exec executes a query that doesn't return rows.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	return result, nil
}

// BeginTx starts a transaction.
func (p *Pool) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := p.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}

// SetGlobalPools sets the global pool set.
func SetGlobalPools(p *Pools) {
	poolMu.Lock()
	defer poolMu.Unlock()
	globalPools = p
}

// GetGlobalPools returns the global pool set.
func GetGlobalPools() *Pools {
	poolMu.RLock()
	defer poolMu.RUnlock()
	return globalPools
}

// IsAvailable returns true if the global pools are configured.
func IsAvailable() bool {
	poolMu.RLock()
	defer poolMu.RUnlock()
	return globalPools != nil
}

// Close closes every distinct pool of the set.
func (p *Pools) Close() error {
	var errs []error
	closed := make(map[*Pool]bool)
	for _, pool := range []*Pool{p.Customers, p.Inventory, p.History} {
		if pool == nil || closed[pool] {
			continue
		}
		closed[pool] = true
		if err := pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open connects one pool per distinct URL and migrates each table group on its pool.
// The history group is skipped when HistoryDriver is not postgres.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Pools, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	byURL := make(map[string]*Pool)
	pools := &Pools{}
	get := func(url string) (*Pool, error) {
		if pool, ok := byURL[url]; ok {
			return pool, nil
		}
		pool, err := NewPool(url, cfg)
		if err != nil {
			return nil, err
		}
		byURL[url] = pool
		return pool, nil
	}

	var err error
	if pools.Customers, err = get(cfg.URL); err != nil {
		return nil, fmt.Errorf("failed to open customers database: %w", err)
	}
	if pools.Inventory, err = get(cfg.InventoryDSN()); err != nil {
		pools.Close()
		return nil, fmt.Errorf("failed to open inventory database: %w", err)
	}
	if cfg.HistoryDriver == "" || cfg.HistoryDriver == "postgres" {
		if pools.History, err = get(cfg.HistoryDSN()); err != nil {
			pools.Close()
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
	}

	if err := pools.Migrate(ctx); err != nil {
		pools.Close()
		return nil, err
	}
	return pools, nil
}

// Migrate applies the pending migrations of every group on its pool.
func (p *Pools) Migrate(ctx context.Context) error {
	steps := []struct {
		pool  *Pool
		group MigrationGroup
	}{
		{p.Customers, GroupCustomers},
		{p.Inventory, GroupInventory},
		{p.History, GroupHistory},
	}
	for _, step := range steps {
		if step.pool == nil {
			continue
		}
		if err := step.pool.Migrate(ctx, step.group); err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", step.group, err)
		}
	}
	return nil
}

// Initialize opens and migrates the databases and stores them as the global pool set.
func Initialize(ctx context.Context, cfg *config.DatabaseConfig) (*Pools, error) {
	pools, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	SetGlobalPools(pools)
	return pools, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// nullBytes maps an empty slice to SQL NULL.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
