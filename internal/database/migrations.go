package database

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/catalog"
	"github.com/MarcoPoloResearchLab/wishlist/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	migrationSeedDemoUsers   = "2024-06-01_seed_demo_users"
	migrationSeedDemoCatalog = "2024-06-01_seed_demo_catalog"
)

//go:embed seed/*.json
var seedFiles embed.FS

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func migrationsFor(options Options) []migrationDefinition {
	if !options.SeedDemo {
		return nil
	}
	return []migrationDefinition{
		{name: migrationSeedDemoUsers, apply: seedDemoUsers},
		{name: migrationSeedDemoCatalog, apply: seedDemoCatalog},
	}
}

func applyMigrations(db *gorm.DB, migrations []migrationDefinition, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", migration.name, err)
		}
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

type seedUser struct {
	Username   string `json:"username"`
	PublicName string `json:"public_name"`
	IconURL    string `json:"icon_url"`
}

func seedDemoUsers(db *gorm.DB) error {
	var seeds []seedUser
	if err := readSeed("seed/users.json", &seeds); err != nil {
		return err
	}
	now := time.Now().UTC()
	records := make([]users.User, 0, len(seeds))
	for _, seed := range seeds {
		records = append(records, users.User{
			Username:   seed.Username,
			PublicName: seed.PublicName,
			IconURL:    seed.IconURL,
			CreatedAt:  now,
		})
	}
	return db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).Create(&records).Error
}

func seedDemoCatalog(db *gorm.DB) error {
	var products []catalog.Product
	if err := readSeed("seed/products.json", &products); err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func readSeed(name string, target any) error {
	payload, err := seedFiles.ReadFile(name)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, target)
}
