package history

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitializeDatabase configures and returns a GORM DB instance for the
// history ledger: connection pool sizing, silent query logging, and
// AutoMigrate.
func InitializeDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		os.Getenv("HISTORY_DB_HOST"),
		os.Getenv("HISTORY_DB_USER"),
		os.Getenv("HISTORY_DB_PASSWORD"),
		os.Getenv("HISTORY_DB_NAME"),
		os.Getenv("HISTORY_DB_PORT"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("history: failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("history: failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Outcome{}); err != nil {
		return nil, fmt.Errorf("history: schema migration failed: %w", err)
	}
	log.Println("INFO: History database schema migration completed successfully.")

	return db, nil
}
