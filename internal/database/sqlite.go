package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/wishlist/internal/access"
	"github.com/MarcoPoloResearchLab/wishlist/internal/catalog"
	"github.com/MarcoPoloResearchLab/wishlist/internal/users"
	"github.com/MarcoPoloResearchLab/wishlist/internal/wishlists"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options controls how the database is opened.
type Options struct {
	Path     string
	SeedDemo bool
	Logger   *zap.Logger
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(options Options) (*gorm.DB, error) {
	if options.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(options.Path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, migrationsFor(options), logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("path", options.Path), zap.Bool("seed_demo", options.SeedDemo))
	return db, nil
}

// Migrate creates or updates every table owned by the leaf stores.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&catalog.Product{},
		&wishlists.Wishlist{},
		&wishlists.Item{},
		&access.Grant{},
		&access.Invitation{},
		&migrationRecord{},
	)
}
