package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"catalog/internal/models"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	DB *gorm.DB
}

type Options struct {
	// LogSQL turns on gorm statement logging.
	LogSQL bool
}

func New(databaseURL string) (*Database, error) {
	return Open(databaseURL, Options{})
}

func Open(databaseURL string, opts Options) (*Database, error) {
	var db *gorm.DB
	var err error

	logLevel := logger.Warn
	if opts.LogSQL {
		logLevel = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	if strings.HasPrefix(databaseURL, "sqlite://") {
		// SQLite for development and tests
		dbPath := strings.TrimPrefix(databaseURL, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), gormConfig)
		if err == nil {
			// A single connection serializes writers and keeps shared in-memory databases alive.
			var sqlDB *sql.DB
			if sqlDB, err = db.DB(); err == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
	} else {
		// PostgreSQL for production, through lib/pq so driver errors surface as *pq.Error
		var sqlDB *sql.DB
		sqlDB, err = sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		db, err = gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &Database{DB: db}, nil
}

// Migrate creates or updates the catalog schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Brand{},
		&models.Category{},
		&models.Product{},
		&models.CategoryProduct{},
		&models.ProductOption{},
		&models.ProductOptionValue{},
		&models.ProductVariant{},
		&models.ProductVariantOptionValue{},
		&models.ProductMedia{},
		&models.Attribute{},
		&models.AttributeValue{},
		&models.ProductAttributeValue{},
		&models.RelatedProduct{},
		&models.ImportRun{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
