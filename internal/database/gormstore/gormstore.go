// Package gormstore implements database.Store with gorm for SQLite and MySQL.
package gormstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/config"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/glebarez/sqlite"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is a gorm-backed database.Store.
type Store struct {
	db *gorm.DB
}

var _ database.Store = (*Store)(nil)

// WithSqlite returns a SQLite dialector for a database file, creating its directory.
func WithSqlite(file string) (gorm.Dialector, error) {
	if file == ":memory:" {
		return sqlite.Open(file), nil
	}
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return sqlite.Open(file + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"), nil
}

// WithMySQL returns a MySQL dialector. The DSN is normalised so DATETIME
// columns scan into time.Time.
func WithMySQL(dsn string) (gorm.Dialector, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil || cfg.Loc == time.UTC {
		cfg.Loc = time.Local
	}
	return mysql.New(mysql.Config{DSNConfig: cfg}), nil
}

// New opens a store on a dialector and migrates the schema.
func New(d gorm.Dialector) (*Store, error) {
	l := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         l,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	if err := db.AutoMigrate(&studentModel{}, &embeddingModel{}, &attendanceModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

func (s *Store) configurePool(cfg *config.DatabaseConfig, maxOpen int) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(cfg.MaxIdleConns, maxOpen))
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}

// OpenSqlite opens a SQLite store. SQLite allows one writer, so the pool is
// capped at a single connection.
func OpenSqlite(ctx context.Context, file string, cfg *config.DatabaseConfig) (database.Store, error) {
	d, err := WithSqlite(file)
	if err != nil {
		return nil, err
	}
	s, err := New(d)
	if err != nil {
		return nil, err
	}
	if err := s.configurePool(cfg, 1); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenMySQL opens a MySQL or MariaDB store.
func OpenMySQL(ctx context.Context, dsn string, cfg *config.DatabaseConfig) (database.Store, error) {
	d, err := WithMySQL(dsn)
	if err != nil {
		return nil, err
	}
	s, err := New(d)
	if err != nil {
		return nil, err
	}
	if err := s.configurePool(cfg, max(cfg.MaxOpenConns, 1)); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Register makes the sqlite and mysql backends available to database.Open.
func Register() {
	database.RegisterBackend("sqlite", OpenSqlite)
	database.RegisterBackend("mysql", OpenMySQL)
}
