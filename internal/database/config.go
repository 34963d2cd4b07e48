package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"notetracker/internal/config"
	"notetracker/internal/models"
	"notetracker/internal/utils"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// CandidateScanPattern matches only the unsent-reminder scan the worker runs on every tick
const CandidateScanPattern = "task.archived ="

var DB *gorm.DB

// InitDB initializes the database connection
func InitDB(cfg config.DatabaseConfig) error {
	// Create base logger
	baseLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags|log.Lshortfile),
		logger.Config{
			SlowThreshold:             time.Second, // Log queries slower than 1 second
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	// The candidate scan runs every minute, keep it out of the logs
	customLogger := utils.NewQuietGormLogger(baseLogger, CandidateScanPattern)

	// Open connection with retry logic
	var err error
	maxRetries := 5
	retryDelay := time.Second * 5

	for i := 0; i < maxRetries; i++ {
		DB, err = Open(cfg, customLogger)
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d failed: %v", i+1, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	if cfg.Driver == config.DriverPostgres {
		sqlDB, err := DB.DB()
		if err != nil {
			return fmt.Errorf("failed to get database instance: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(DB); err != nil {
		return err
	}

	log.Println("Database connection established and migrations completed")
	return nil
}

// Open connects to the configured driver without migrating
func Open(cfg config.DatabaseConfig, l logger.Interface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	case config.DriverSQLite:
		// SQLite needs the pragma for ON DELETE CASCADE to apply
		dialector = sqlite.Open(cfg.DSN() + "?_foreign_keys=on&_busy_timeout=5000")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: l,
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true, // Use singular table names
		},
		PrepareStmt: cfg.Driver == config.DriverPostgres,
	}
	return gorm.Open(dialector, gormConfig)
}

// Migrate creates or updates every table the service owns or reads
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Account{},
		&models.Task{},
		&models.Reminder{},
		&models.ReminderAttempt{},
		&models.Notification{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
