package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// ErrUnknownDialect is returned for a dialect other than sqlite or postgres.
var ErrUnknownDialect = errors.New("unknown database dialect")

// Config selects and tunes the database connection.
type Config struct {
	Dialect    string `mapstructure:"dialect"`
	Datasource string `mapstructure:"datasource"`
	Migrate    bool   `mapstructure:"migrate"`
	SQLLogging bool   `mapstructure:"sql_logging"`
	// MaxOpenConns caps the pool; 0 leaves the driver default.
	MaxOpenConns int `mapstructure:"max_open_conns"`
}

// ParseDialect normalises dialect aliases.
func ParseDialect(d string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, d)
	}
}

// NewDialector maps cfg to a gorm dialector.
func NewDialector(cfg Config) (gorm.Dialector, error) {
	dialect, err := ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	switch dialect {
	case DialectSQLite:
		return sqlite.Open(cfg.Datasource), nil
	default:
		return postgres.Open(cfg.Datasource), nil
	}
}

// Open connects to the configured database. Timestamps are stored in UTC.
func Open(cfg Config) (*gorm.DB, error) {
	dialector, err := NewDialector(cfg)
	if err != nil {
		return nil, err
	}
	logMode := logger.Silent
	if cfg.SQLLogging {
		logMode = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logMode),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Dialect, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates the tables for models.
func Migrate(db *gorm.DB, models ...any) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
