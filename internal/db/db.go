// Package db opens the database, applies the schema and seeds baseline data.
package db

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/diewo77/fieldbill/internal/config"
	"github.com/diewo77/fieldbill/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 10

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&models.User{},
		&models.PriceList{},
		&models.Customer{},
		&models.Article{},
		&models.PriceListItem{},
		&models.CaseBillingItem{},
		&models.Notification{},
	}
}

// ResolveDSN prefers DATABASE_DSN when set and falls back to the discrete settings.
func ResolveDSN(cfg config.DatabaseConfig) string {
	if raw := NormalizeDSN(os.Getenv("DATABASE_DSN")); raw != "" {
		return raw
	}
	return cfg.DSN()
}

// Connect opens postgres with a retry loop so the service survives a
// database that is still starting.
func Connect(dsn string, debug bool, log *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty database DSN")
	}
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	var (
		conn *gorm.DB
		err  error
	)
	for i := 1; i <= connectAttempts; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		log.Warn("database not reachable, retrying", zap.Int("attempt", i), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database after %d attempts: %w", connectAttempts, err)
	}
	if err := conn.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	log.Info("database connected", zap.String("dsn", MaskDSN(dsn)))
	return conn, nil
}

// Migrate creates or updates every table with AutoMigrate and checks that
// the core tables exist afterwards.
func Migrate(conn *gorm.DB) error {
	for _, m := range Models() {
		if err := conn.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return checkTables(conn)
}

// RunSQLMigrations applies the versioned SQL files in dir with golang-migrate.
func RunSQLMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, ToURLDSN(dsn))
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func checkTables(conn *gorm.DB) error {
	for _, table := range []string{"users", "articles", "price_lists", "case_billing_items"} {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// DefaultPriceListName is the list created by Seed to back the standard tier.
const DefaultPriceListName = "Standard"

// Seed inserts baseline rows when missing. Running it twice is a no-op.
func Seed(conn *gorm.DB, adminEmail string) error {
	return conn.Transaction(func(tx *gorm.DB) error {
		var defaults int64
		if err := tx.Model(&models.PriceList{}).Where("is_default = ?", true).Count(&defaults).Error; err != nil {
			return err
		}
		if defaults == 0 {
			list := models.PriceList{
				Name:        DefaultPriceListName,
				Description: "Standard prices used when a customer has no list of its own",
				IsDefault:   true,
				IsActive:    true,
			}
			if err := tx.Create(&list).Error; err != nil {
				return fmt.Errorf("seed default price list: %w", err)
			}
		}

		if adminEmail != "" {
			admin := models.User{Email: adminEmail, Name: "Administrator", Role: models.RoleAdmin, IsActive: true}
			if err := tx.Where(models.User{Email: adminEmail}).FirstOrCreate(&admin).Error; err != nil {
				return fmt.Errorf("seed admin user: %w", err)
			}
		}

		for _, a := range baseArticles() {
			article := a
			if err := tx.Where(models.Article{Code: a.Code}).FirstOrCreate(&article).Error; err != nil {
				return fmt.Errorf("seed article %s: %w", a.Code, err)
			}
		}
		return nil
	})
}

func baseArticles() []models.Article {
	vat := decimal.NewFromInt(25)
	return []models.Article{
		{Code: "LABOR", Name: "Labour", Unit: "h", DefaultPrice: decimal.NewFromInt(650), VATRate: vat, Category: "Labour", IsActive: true},
		{Code: "TRAVEL", Name: "Travel", Unit: "km", DefaultPrice: decimal.NewFromInt(25), VATRate: vat, Category: "Travel", IsActive: true},
		{Code: "CALLOUT", Name: "Call-out fee", Unit: "st", DefaultPrice: decimal.NewFromInt(495), VATRate: vat, Category: "Fees", IsActive: true},
	}
}
