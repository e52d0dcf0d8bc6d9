package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/diewo77/fieldbill/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PriceListInput struct {
	Name        string     `json:"name" validate:"required,max=255"`
	Description string     `json:"description"`
	IsDefault   bool       `json:"is_default"`
	IsActive    *bool      `json:"is_active"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidUntil  *time.Time `json:"valid_until"`
}

func (in PriceListInput) validate() error {
	v := validation.Violations{}
	validation.Struct(in, v)
	validation.Required("name", in.Name, v)
	if in.ValidFrom != nil && in.ValidUntil != nil && in.ValidUntil.Before(*in.ValidFrom) {
		v["valid_until"] = "before_valid_from"
	}
	return invalid(v)
}

type PriceListItemInput struct {
	CustomPrice     decimal.Decimal `json:"custom_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

func (in PriceListItemInput) validate() error {
	v := validation.Violations{}
	validation.NonNegative("custom_price", in.CustomPrice, v)
	validation.Percent("discount_percent", in.DiscountPercent, v)
	return invalid(v)
}

// PriceListSummary is a list with its item count, as shown in listings.
type PriceListSummary struct {
	models.PriceList
	ItemCount int64 `json:"item_count"`
}

type PriceListService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewPriceListService(db *gorm.DB, logger *zap.Logger) *PriceListService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceListService{DB: db, Logger: logger}
}

// demoteDefaults clears is_default on every list except keepID.
func demoteDefaults(tx *gorm.DB, keepID uint) error {
	q := tx.Model(&models.PriceList{}).Where("is_default = ?", true)
	if keepID != 0 {
		q = q.Where("id <> ?", keepID)
	}
	return q.Update("is_default", false).Error
}

// Create stores a new list. A new default demotes the previous one in the
// same transaction.
func (s *PriceListService) Create(ctx context.Context, in PriceListInput) (*models.PriceList, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	pl := models.PriceList{
		Name:        in.Name,
		Description: in.Description,
		IsDefault:   in.IsDefault,
		IsActive:    in.IsActive == nil || *in.IsActive,
		ValidFrom:   in.ValidFrom,
		ValidUntil:  in.ValidUntil,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if pl.IsDefault {
			if err := demoteDefaults(tx, 0); err != nil {
				return err
			}
		}
		return tx.Create(&pl).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create price list: %w", err)
	}
	s.Logger.Info("price list created", zap.Uint("price_list_id", pl.ID), zap.Bool("default", pl.IsDefault))
	return &pl, nil
}

func (s *PriceListService) Update(ctx context.Context, id uint, in PriceListInput) (*models.PriceList, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var pl models.PriceList
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&pl, id).Error; err != nil {
			return notFound(err, "load price list", "price_list", id)
		}
		pl.Name = in.Name
		pl.Description = in.Description
		pl.IsDefault = in.IsDefault
		if in.IsActive != nil {
			pl.IsActive = *in.IsActive
		}
		pl.ValidFrom = in.ValidFrom
		pl.ValidUntil = in.ValidUntil
		if pl.IsDefault {
			if err := demoteDefaults(tx, pl.ID); err != nil {
				return err
			}
		}
		return tx.Omit("Items").Save(&pl).Error
	})
	if err != nil {
		return nil, wrapUnlessKind(err, "update price list")
	}
	return &pl, nil
}

// Delete removes a non-default list and its items.
func (s *PriceListService) Delete(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pl models.PriceList
		if err := tx.First(&pl, id).Error; err != nil {
			return notFound(err, "load price list", "price_list", id)
		}
		if pl.IsDefault {
			return ErrCannotDeleteDefault
		}
		if err := tx.Where("price_list_id = ?", id).Delete(&models.PriceListItem{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Customer{}).Where("price_list_id = ?", id).Update("price_list_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&pl).Error
	})
	if err != nil {
		return wrapUnlessKind(err, "delete price list")
	}
	s.Logger.Info("price list deleted", zap.Uint("price_list_id", id))
	return nil
}

// Copy duplicates a list's items into a new active, non-default list.
// Any failed item aborts the whole copy.
func (s *PriceListService) Copy(ctx context.Context, sourceID uint, newName string) (*models.PriceList, error) {
	v := validation.Violations{}
	validation.Required("name", newName, v)
	if err := invalid(v); err != nil {
		return nil, err
	}
	var dst models.PriceList
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var src models.PriceList
		if err := tx.Preload("Items").First(&src, sourceID).Error; err != nil {
			return notFound(err, "load price list", "price_list", sourceID)
		}
		dst = models.PriceList{Name: newName, Description: src.Description, IsActive: true}
		if err := tx.Create(&dst).Error; err != nil {
			return err
		}
		for _, it := range src.Items {
			in := PriceListItemInput{CustomPrice: it.CustomPrice, DiscountPercent: it.DiscountPercent}
			if _, err := upsertItem(tx, dst.ID, it.ArticleID, in); err != nil {
				return fmt.Errorf("copy article %d: %w", it.ArticleID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapUnlessKind(err, "copy price list")
	}
	s.Logger.Info("price list copied", zap.Uint("source_id", sourceID), zap.Uint("price_list_id", dst.ID))
	return &dst, nil
}

// List returns lists with item counts, active ones only unless all is set.
func (s *PriceListService) List(ctx context.Context, all bool) ([]PriceListSummary, error) {
	q := s.DB.WithContext(ctx).Model(&models.PriceList{})
	if !all {
		q = q.Where("is_active = ?", true)
	}
	var lists []models.PriceList
	if err := q.Order("is_default DESC, name").Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("list price lists: %w", err)
	}

	type countRow struct {
		PriceListID uint
		N           int64
	}
	var rows []countRow
	if err := s.DB.WithContext(ctx).Model(&models.PriceListItem{}).
		Select("price_list_id, COUNT(*) AS n").
		Group("price_list_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count price list items: %w", err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.PriceListID] = r.N
	}

	out := make([]PriceListSummary, len(lists))
	for i, pl := range lists {
		out[i] = PriceListSummary{PriceList: pl, ItemCount: counts[pl.ID]}
	}
	return out, nil
}

func (s *PriceListService) Get(ctx context.Context, id uint) (*models.PriceList, error) {
	var pl models.PriceList
	if err := s.DB.WithContext(ctx).First(&pl, id).Error; err != nil {
		return nil, notFound(err, "load price list", "price_list", id)
	}
	return &pl, nil
}

// Items returns a list's entries with their articles, ordered by article code.
func (s *PriceListService) Items(ctx context.Context, id uint) ([]models.PriceListItem, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	var items []models.PriceListItem
	if err := s.DB.WithContext(ctx).
		Preload("Article").
		Where("price_list_id = ?", id).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list price list items: %w", err)
	}
	sort.Slice(items, func(i, j int) bool {
		return itemCode(items[i]) < itemCode(items[j])
	})
	return items, nil
}

func itemCode(it models.PriceListItem) string {
	if it.Article == nil {
		return ""
	}
	return it.Article.Code
}

func (s *PriceListService) ItemCount(ctx context.Context, id uint) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.PriceListItem{}).Where("price_list_id = ?", id).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count price list items: %w", err)
	}
	return n, nil
}

// UpsertItem sets the custom price of an article within a list.
func (s *PriceListService) UpsertItem(ctx context.Context, listID, articleID uint, in PriceListItemInput) (*models.PriceListItem, error) {
	var item *models.PriceListItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.PriceList{}, listID).Error; err != nil {
			return notFound(err, "load price list", "price_list", listID)
		}
		var err error
		item, err = upsertItem(tx, listID, articleID, in)
		return err
	})
	if err != nil {
		return nil, wrapUnlessKind(err, "upsert price list item")
	}
	return item, nil
}

func upsertItem(tx *gorm.DB, listID, articleID uint, in PriceListItemInput) (*models.PriceListItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := tx.Select("id").First(&models.Article{}, articleID).Error; err != nil {
		return nil, notFound(err, "load article", "article", articleID)
	}
	item := models.PriceListItem{
		PriceListID:     listID,
		ArticleID:       articleID,
		CustomPrice:     in.CustomPrice.Round(2),
		DiscountPercent: in.DiscountPercent.Round(2),
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "price_list_id"}, {Name: "article_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"custom_price", "discount_percent", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return nil, err
	}
	var saved models.PriceListItem
	if err := tx.Where("price_list_id = ? AND article_id = ?", listID, articleID).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// RemoveItem deletes an article's entry; lookups fall back to the next tier.
func (s *PriceListService) RemoveItem(ctx context.Context, listID, articleID uint) error {
	res := s.DB.WithContext(ctx).Where("price_list_id = ? AND article_id = ?", listID, articleID).Delete(&models.PriceListItem{})
	if res.Error != nil {
		return fmt.Errorf("remove price list item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Resource: "price_list_item", ID: fmt.Sprintf("%d/%d", listID, articleID)}
	}
	return nil
}
