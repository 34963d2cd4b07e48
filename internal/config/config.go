package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultCheckInterval   = time.Minute
	defaultDeliveryTimeout = 10 * time.Second
	defaultCORSOrigin      = "http://localhost:3000"
)

// Config holds everything the server reads from the environment
type Config struct {
	GinMode string
	Port    string

	Database DatabaseConfig
	Reminder ReminderConfig
	SendGrid SendGridConfig

	TelegramBotToken string

	// Tokens are issued by the account service sharing this secret
	JWTSecret string

	CORSAllowedOrigins []string
}

// DatabaseConfig selects and addresses the relational store
type DatabaseConfig struct {
	Driver     string
	URL        string
	Host       string
	User       string
	Password   string
	Name       string
	Port       string
	SSLMode    string
	SQLitePath string
}

// ReminderConfig tunes the scheduler loop and channel calls
type ReminderConfig struct {
	CheckInterval   time.Duration
	DeliveryTimeout time.Duration
}

// SendGridConfig holds the email channel credentials
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// Enabled reports whether the email channel can send
func (s SendGridConfig) Enabled() bool {
	return s.APIKey != "" && s.FromEmail != ""
}

// Load reads an optional .env file and then the process environment
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		GinMode:          os.Getenv("GIN_MODE"),
		Port:             getEnv("PORT", "8080"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		SendGrid: SendGridConfig{
			APIKey:    os.Getenv("SENDGRID_API_KEY"),
			FromEmail: os.Getenv("SENDGRID_NOTIFICATIONS_FROM_EMAIL"),
			FromName:  getEnv("SENDGRID_FROM_NAME", "NoteTracker"),
		},
	}

	var err error
	if cfg.Reminder.CheckInterval, err = getDuration("REMINDER_CHECK_INTERVAL", defaultCheckInterval); err != nil {
		return nil, err
	}
	if cfg.Reminder.DeliveryTimeout, err = getDuration("REMINDER_DELIVERY_TIMEOUT", defaultDeliveryTimeout); err != nil {
		return nil, err
	}
	if cfg.Reminder.CheckInterval <= 0 || cfg.Reminder.DeliveryTimeout <= 0 {
		return nil, fmt.Errorf("reminder check interval and delivery timeout must be positive")
	}

	origins := getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigin)
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{defaultCORSOrigin}
	}

	if cfg.Database, err = loadDatabase(cfg.GinMode); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("required environment variable JWT_SECRET is not set")
	}

	return cfg, nil
}

func loadDatabase(ginMode string) (DatabaseConfig, error) {
	db := DatabaseConfig{
		Driver:     strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		SQLitePath: getEnv("SQLITE_PATH", "notetracker.db"),
		SSLMode:    getEnv("DB_SSL_MODE", "disable"),
	}

	switch db.Driver {
	case DriverSQLite:
		return db, nil
	case DriverPostgres:
	default:
		return db, fmt.Errorf("unsupported DB_DRIVER %q", db.Driver)
	}

	// In production the platform hands us a single DATABASE_URL
	if ginMode == "release" {
		url, err := getEnvRequired("DATABASE_URL")
		db.URL = url
		return db, err
	}

	var missing []string
	for key, dst := range map[string]*string{
		"DB_HOST":     &db.Host,
		"DB_USER":     &db.User,
		"DB_PASSWORD": &db.Password,
		"DB_NAME":     &db.Name,
		"DB_PORT":     &db.Port,
	} {
		v, err := getEnvRequired(key)
		if err != nil {
			missing = append(missing, key)
			continue
		}
		*dst = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return db, fmt.Errorf("required database environment variables not set: %s", strings.Join(missing, ", "))
	}
	return db, nil
}

// DSN returns the connection string for the configured driver
func (d DatabaseConfig) DSN() string {
	switch {
	case d.Driver == DriverSQLite:
		return d.SQLitePath
	case d.URL != "":
		return d.URL
	default:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC connect_timeout=10",
			d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvRequired returns the environment variable value or an error if unset or empty
func getEnvRequired(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", fmt.Errorf("required environment variable %s is not set", key)
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return d, nil
}

// LogSummary prints the non-secret parts of the configuration
func (c *Config) LogSummary() {
	log.Printf("Config: db_driver=%s check_interval=%v delivery_timeout=%v email_enabled=%t telegram_enabled=%t",
		c.Database.Driver, c.Reminder.CheckInterval, c.Reminder.DeliveryTimeout,
		c.SendGrid.Enabled(), c.TelegramBotToken != "")
}
