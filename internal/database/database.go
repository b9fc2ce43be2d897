package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resumebuilder/internal/config"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// gormLogger reports slow and failed queries only. Missing rows are expected
// on every ownership check and are not logged.
var gormLogger = logger.New(
	log.New(os.Stderr, "gorm ", log.LstdFlags),
	logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	},
)

// Now is the gorm clock. Postgres timestamps keep microseconds, so values
// are truncated to match what a later read returns.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// InitDatabase opens the PostgreSQL pool described by cfg. The first ping is
// retried a few times so the services can start alongside the database.
func InitDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{Logger: gormLogger, NowFunc: Now})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap db: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	for attempt := 1; ; attempt++ {
		err = sqlDB.Ping()
		if err == nil {
			return db, nil
		}
		if attempt == connectAttempts {
			return nil, fmt.Errorf("ping database after %d attempts: %w", attempt, err)
		}
		log.Printf("database not ready (attempt %d/%d): %v", attempt, connectAttempts, err)
		time.Sleep(time.Duration(attempt) * connectBackoff)
	}
}
