package services

import (
	"sync"
	"testing"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/diewo77/fieldbill/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Customer{}, &models.Article{}, &models.PriceList{}, &models.PriceListItem{}, &models.CaseBillingItem{}, &models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedArticle(t *testing.T, db *gorm.DB, code, price, vat string) models.Article {
	t.Helper()
	a := models.Article{Code: code, Name: code + " name", Unit: "st", DefaultPrice: d(price), VATRate: d(vat), Category: "Service", IsActive: true}
	require.NoError(t, db.Create(&a).Error)
	return a
}

func newTestEngine(t *testing.T, db *gorm.DB) *pricing.Engine {
	t.Helper()
	engine, err := pricing.NewEngine(pricing.EngineDeps{Source: NewPriceSource(db), Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	return engine
}

// recordingNotifier captures discount requests synchronously.
type recordingNotifier struct {
	mu    sync.Mutex
	lines []models.CaseBillingItem
}

func (r *recordingNotifier) DiscountRequested(line models.CaseBillingItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}
