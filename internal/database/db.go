package database

import (
	"fmt"
	"time"

	"supplychain/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection initializes a new connection pool using GORM. Driver errors
// are translated so unique violations surface as gorm.ErrDuplicatedKey.
func NewConnection(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("Connected to PostgreSQL")
	return db, nil
}

// Models lists every persisted table in migration order
func Models() []interface{} {
	return []interface{}{
		&model.Organization{},
		&model.UserAccount{},
		&model.RefreshToken{},
		&model.Warehouse{},
		&model.Product{},
		&model.Client{},
		&model.Supplier{},
		&model.Driver{},
		&model.Order{},
		&model.OrderItem{},
		&model.Delivery{},
		&model.DeliveryStatusUpdate{},
		&model.StockMovement{},
		&model.RFQ{},
		&model.Quotation{},
		&model.AuditLog{},
	}
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}
