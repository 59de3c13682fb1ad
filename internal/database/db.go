package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/CarmenSoftware-organization/cmobile-sub001/internal/models"
)

// Open connects to Postgres. Query logging stays quiet unless debug is set.
func Open(dsn string, debug bool, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	logger.Info("database connected")
	return db, nil
}

// Migrate creates or updates the tables the service persists. Documents,
// counts and notifications are not tables: the first two are served from
// fixtures and notifications live in the key-value table.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	err := db.AutoMigrate(
		&models.BusinessUnit{},
		&models.User{},
		&models.KVEntry{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("database migration completed")
	return nil
}
