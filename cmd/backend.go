package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/shop-kiosk/internal/config"
	"github.com/kozaktomas/shop-kiosk/internal/database"
	"github.com/kozaktomas/shop-kiosk/internal/database/mariadb"
	"github.com/kozaktomas/shop-kiosk/internal/database/postgres"
	"github.com/kozaktomas/shop-kiosk/internal/imagestore"
	"go.uber.org/zap"
)

// backend is the set of opened stores, registered with the database provider.
type backend struct {
	pools     *postgres.Pools
	archive   *mariadb.Pool // nil unless past records live in MariaDB
	customers *postgres.CustomerRepository
	inventory database.InventoryStore
	records   database.PastRecordStore
}

// openBackend connects and migrates every configured database and registers the stores.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	logger.Info("connecting to PostgreSQL")
	pools, err := postgres.Initialize(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	b := &backend{
		pools:     pools,
		customers: postgres.NewCustomerRepository(pools.Customers),
	}
	b.inventory = postgres.NewInventoryRepository(pools.Inventory)

	if cfg.Database.HistoryDriver == "mysql" {
		logger.Info("using MariaDB past-record archive")
		archive, err := mariadb.NewPool(cfg.Database.HistoryDSN())
		if err != nil {
			pools.Close()
			return nil, fmt.Errorf("failed to open history archive: %w", err)
		}
		if err := archive.Migrate(ctx); err != nil {
			archive.Close()
			pools.Close()
			return nil, fmt.Errorf("failed to migrate history archive: %w", err)
		}
		b.archive = archive
		b.records = mariadb.NewPastRecordRepository(archive)
	} else {
		b.records = postgres.NewPastRecordRepository(pools.History)
	}

	if dir := cfg.Inventory.ImageDir; dir != "" {
		images, err := imagestore.New(dir)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to open image directory: %w", err)
		}
		b.inventory = imagestore.WrapInventory(b.inventory, images)
		logger.Info("storing product images as files", zap.String("dir", dir))
	}

	database.RegisterBackend(
		func() database.CustomerStore { return b.customers },
		func() database.InventoryStore { return b.inventory },
		func() database.PastRecordStore { return b.records },
	)
	return b, nil
}

// enableFaceIndex loads or builds the in-memory face index. Matching falls back
// to PostgreSQL queries when the index cannot be built.
func (b *backend) enableFaceIndex(ctx context.Context, indexPath string, logger *zap.Logger) {
	if err := b.customers.EnableFaceIndex(ctx, indexPath); err != nil {
		logger.Warn("face index unavailable, matching uses PostgreSQL queries", zap.Error(err))
		return
	}
	database.RegisterFaceIndexRebuilder(b.customers)
	logger.Info("face index ready",
		zap.Int("customers", b.customers.FaceIndexCount()),
		zap.Bool("persisted", indexPath != ""))
}

// saveFaceIndex writes the face index to disk when one is registered.
func saveFaceIndex(logger *zap.Logger) {
	if idx := database.GetFaceIndexRebuilder(); idx != nil {
		if err := idx.SaveFaceIndex(); err != nil {
			logger.Warn("failed to save face index", zap.Error(err))
		}
	}
}

// Close closes every database pool.
func (b *backend) Close() {
	if b.archive != nil {
		_ = b.archive.Close()
	}
	if b.pools != nil {
		_ = b.pools.Close()
	}
	postgres.SetGlobalPools(nil)
	database.ResetBackend()
}
