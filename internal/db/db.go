package db

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parking-status-backend/config"
)

// Init opens the database and brings the schema up to date.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	log.Info("running database migrations", zap.String("dialect", db.Dialector.Name()))
	applied, err := Migrate(db)
	if err != nil {
		return nil, err
	}
	for _, m := range applied {
		log.Info("applied schema migration", zap.Int("version", m.Version), zap.String("name", m.Name))
	}

	log.Info("database initialization complete")
	return db, nil
}

// Open connects to PostgreSQL or SQLite depending on the DSN and applies the
// pool settings. SQLite is limited to a single connection so concurrent
// writers queue instead of failing with SQLITE_BUSY.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.LogSQL {
		logLevel = logger.Info
	}

	isPostgres := IsPostgresDSN(cfg.DSN)
	var dialector gorm.Dialector
	if isPostgres {
		dialector = postgres.Open(cfg.DSN)
	} else {
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if isPostgres {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	} else {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// IsPostgresDSN reports whether dsn addresses a PostgreSQL server.
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
