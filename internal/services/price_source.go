package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/diewo77/fieldbill/internal/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceSource reads pricing candidates from the database.
type PriceSource struct {
	DB  *gorm.DB
	Now func() time.Time
}

var _ pricing.Source = (*PriceSource)(nil)

func NewPriceSource(db *gorm.DB) *PriceSource {
	return &PriceSource{DB: db, Now: time.Now}
}

func (s *PriceSource) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// CustomerPriceList returns the customer's assigned list when it is usable now.
// An unknown customer is a NotFoundError.
func (s *PriceSource) CustomerPriceList(ctx context.Context, customerID uint) (*uint, error) {
	var c models.Customer
	if err := s.DB.WithContext(ctx).Select("id", "price_list_id").First(&c, customerID).Error; err != nil {
		return nil, notFound(err, "load customer", "customer", customerID)
	}
	if c.PriceListID == nil {
		return nil, nil
	}
	var pl models.PriceList
	err := s.DB.WithContext(ctx).First(&pl, *c.PriceListID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load customer price list: %w", err)
	}
	if !pl.UsableAt(s.now()) {
		return nil, nil
	}
	return &pl.ID, nil
}

// DefaultPriceList returns the active default list, or nil when none is usable.
func (s *PriceSource) DefaultPriceList(ctx context.Context) (*uint, error) {
	var pl models.PriceList
	err := s.DB.WithContext(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		Order("id").
		First(&pl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load default price list: %w", err)
	}
	if !pl.UsableAt(s.now()) {
		return nil, nil
	}
	return &pl.ID, nil
}

func (s *PriceSource) ListPrices(ctx context.Context, listID uint, articleIDs []uint) (map[uint]decimal.Decimal, error) {
	out := make(map[uint]decimal.Decimal, len(articleIDs))
	if len(articleIDs) == 0 {
		return out, nil
	}
	var items []models.PriceListItem
	if err := s.DB.WithContext(ctx).
		Where("price_list_id = ? AND article_id IN ?", listID, articleIDs).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load price list items: %w", err)
	}
	for _, it := range items {
		out[it.ArticleID] = it.CustomPrice
	}
	return out, nil
}
