// Package testutil provides a migrated database for package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"notetracker/internal/config"
	"notetracker/internal/database"
	"notetracker/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated database that lives for the duration of the test.
// It uses a temporary sqlite file unless TEST_DATABASE_URL points at Postgres.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	}
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		cfg = config.DatabaseConfig{Driver: config.DriverPostgres, URL: url}
	}

	db, err := database.Open(cfg, logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		if cfg.Driver == config.DriverPostgres {
			truncate(db)
		}
		sqlDB.Close()
	})
	if cfg.Driver == config.DriverPostgres {
		truncate(db)
	}
	return db
}

func truncate(db *gorm.DB) {
	db.Exec("TRUNCATE reminder_attempt, reminder, notification, task, account RESTART IDENTITY CASCADE")
}

// Seeded is the creation time given to seeded reminders, earlier than any test clock
var Seeded = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Date returns midnight of the given day in UTC
func Date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// CreateAccount stores an account with the given channel configuration
func CreateAccount(t *testing.T, db *gorm.DB, username, email, telegramID string) models.Account {
	t.Helper()
	account := models.Account{Username: username, Email: email, TelegramID: telegramID}
	require.NoError(t, db.Create(&account).Error)
	return account
}

// CreateTask stores a task owned by userID
func CreateTask(t *testing.T, db *gorm.DB, userID uint, title string, dueDate *time.Time, dueTime string) models.Task {
	t.Helper()
	task := models.Task{UserID: userID, Title: title, DueDate: dueDate, DueTime: dueTime}
	require.NoError(t, db.Create(&task).Error)
	return task
}

// CreateReminder stores an unsent reminder for a task with rule
func CreateReminder(t *testing.T, db *gorm.DB, taskID uint, rule models.TriggerRule) models.Reminder {
	t.Helper()
	reminder := models.Reminder{
		TaskID:      taskID,
		TriggerKind: rule.Kind,
		DaysBefore:  rule.DaysBefore,
		RemindAt:    rule.RemindAt,
		CreatedAt:   Seeded,
	}
	require.NoError(t, db.Omit("Task", "Attempts").Create(&reminder).Error)
	return reminder
}
