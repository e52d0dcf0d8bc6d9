package services

import (
	"context"
	"fmt"

	"github.com/diewo77/fieldbill/internal/models"
	"gorm.io/gorm"
)

// CustomerService is the minimal customer directory used for tier-1 pricing.
type CustomerService struct{ DB *gorm.DB }

func NewCustomerService(db *gorm.DB) *CustomerService { return &CustomerService{DB: db} }

func (s *CustomerService) Get(ctx context.Context, id uint) (*models.Customer, error) {
	var c models.Customer
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err, "load customer", "customer", id)
	}
	return &c, nil
}

// AssignPriceList sets (or with nil clears) the customer's price list.
func (s *CustomerService) AssignPriceList(ctx context.Context, customerID uint, listID *uint) (*models.Customer, error) {
	c, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if listID != nil {
		if err := s.DB.WithContext(ctx).Select("id").First(&models.PriceList{}, *listID).Error; err != nil {
			return nil, notFound(err, "load price list", "price_list", *listID)
		}
	}
	if err := s.DB.WithContext(ctx).Model(c).Update("price_list_id", listID).Error; err != nil {
		return nil, fmt.Errorf("assign price list: %w", err)
	}
	c.PriceListID = listID
	return c, nil
}
