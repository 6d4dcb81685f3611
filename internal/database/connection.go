package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ksred/linkdesk/internal/config"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Database manages the database connection and operations
type Database struct {
	db     *gorm.DB
	config config.Database
	logger zerolog.Logger
	mu     sync.RWMutex
}

// NewDatabase creates a new Database instance
func NewDatabase(cfg config.Database, logger zerolog.Logger) *Database {
	return &Database{
		config: cfg,
		logger: logger.With().Str("component", "database").Logger(),
	}
}

// Connect opens the configured database, retrying with exponential backoff
func (d *Database) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dialector, err := d.dialector()
	if err != nil {
		return err
	}

	gormConfig := &gorm.Config{
		Logger: NewGormLogger(d.logger, d.config.LogQueries),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt: d.config.Driver == "postgres",
	}

	maxRetries := 5
	retryDelay := time.Second * 2

	for i := 0; i < maxRetries; i++ {
		d.db, err = gorm.Open(dialector, gormConfig)
		if err == nil {
			break
		}

		d.logger.Warn().Err(err).Int("attempt", i+1).Msg("Database connection failed")
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if d.config.Driver == "sqlite" {
		// sqlite serialises writers; one connection avoids "database is locked"
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(d.config.MaxConnections)
		sqlDB.SetMaxIdleConns(d.config.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(d.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(d.config.ConnMaxIdleTime)

	d.logger.Info().Str("driver", d.config.Driver).Msg("Database connected")
	return nil
}

func (d *Database) dialector() (gorm.Dialector, error) {
	switch d.config.Driver {
	case "postgres", "":
		return postgres.Open(d.buildDSN()), nil
	case "sqlite":
		return sqlite.Open(d.config.SQLitePath), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", d.config.Driver)
	}
}

// buildDSN constructs the PostgreSQL DSN from config
func (d *Database) buildDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.config.Host, d.config.Port, d.config.User, d.config.Password, d.config.DBName, d.config.SSLMode)
}

// Health checks the database connection health
func (d *Database) Health(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return fmt.Errorf("database not connected")
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if !d.db.Migrator().HasTable("patch_logs") {
		return fmt.Errorf("patch_logs table missing, run migrate first")
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	d.db = nil
	return nil
}

// DB returns the underlying gorm.DB instance
func (d *Database) DB() *gorm.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// SetDB sets the underlying gorm.DB instance (for testing)
func (d *Database) SetDB(db *gorm.DB) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.db = db
}

// WithTransaction executes a function within a database transaction
func (d *Database) WithTransaction(ctx context.Context, fn func(*gorm.DB) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return fmt.Errorf("database not connected")
	}

	var opts *sql.TxOptions
	if d.config.Driver != "sqlite" {
		opts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	}
	return d.db.WithContext(ctx).Transaction(fn, opts)
}

// Exec executes raw SQL, retrying transient connection failures
func (d *Database) Exec(ctx context.Context, query string, args ...interface{}) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return fmt.Errorf("database not connected")
	}

	maxRetries := 3
	var err error

	for i := 0; i < maxRetries; i++ {
		err = d.db.WithContext(ctx).Exec(query, args...).Error
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			break
		}
		if i < maxRetries-1 {
			time.Sleep(time.Millisecond * 100 * time.Duration(i+1))
		}
	}

	return err
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"deadlock detected",
		"too many connections",
		"connection timeout",
		"database is locked",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(msg, retryable) {
			return true
		}
	}

	return false
}
