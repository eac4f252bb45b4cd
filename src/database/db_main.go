package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"futuresbot/src/database/migrations"
	"futuresbot/src/model"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// Open connects to the configured database without touching the schema.
func Open(config Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "", "postgres":
		dialector = postgres.Open(config.DatabaseURLMain)
	case "sqlite":
		dialector = sqlite.Open(config.DatabaseURLMain)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", config.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB from gorm: %w", err)
	}
	if config.Driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY under concurrent cycles
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return db, nil
}

// Migrate creates the store tables and runs the data migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.TradingSettings{},
		&model.APIKeys{},
		&model.BotStatus{},
		&model.Position{},
		&model.ActivityLogEntry{},
		&model.TradeHistory{},
		&model.Exception{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("failed to run data migrations: %w", err)
	}
	return nil
}

// InitMainDB initializes the main database connection and runs migrations.
// This should be called once at application startup.
func InitMainDB() error {
	config := GetConfig()

	db, err := Open(config)
	if err != nil {
		return err
	}

	// Assign to the global variable only after a successful connection.
	MainDB = db
	logrus.WithField("driver", config.Driver).Info("[database] MainDB connection established")

	if err := Migrate(MainDB); err != nil {
		return err
	}

	logrus.Info("[database] MainDB migrations completed")
	return nil
}
