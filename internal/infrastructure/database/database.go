package database

import (
	"fmt"

	"xstock-options/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB from DSN (Postgres or pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers (e.g. PgBouncer).
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// OpenSQLite opens a single-connection SQLite DB. Use ":memory:" for tests.
// One connection keeps writers serialized and the in-memory schema shared.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// OpenDriver picks the driver by name ("postgres" or "sqlite").
func OpenDriver(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "", "postgres":
		return Open(dsn)
	case "sqlite":
		return OpenSQLite(dsn)
	}
	return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
}

// Models lists every table the venue owns.
func Models() []interface{} {
	return []interface{}{
		&domain.Account{},
		&domain.Holding{},
		&domain.CoveredCall{},
		&domain.Vault{},
		&domain.OptionEvent{},
		&domain.Transaction{},
		&domain.PriceFeed{},
		&domain.PriceSample{},
		&domain.RFQ{},
		&domain.Maker{},
		&domain.ShareVault{},
		&domain.ShareBalance{},
		&domain.WithdrawalRequest{},
		&domain.AuditEvent{},
	}
}

// AutoMigrate runs migrations for all venue models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
