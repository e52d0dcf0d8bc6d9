package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceList is a named set of per-article custom prices. Exactly one active
// list is the default and backs the standard price tier.
type PriceList struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	IsDefault   bool      `gorm:"not null;index" json:"is_default"`
	IsActive    bool      `gorm:"not null" json:"is_active"`

	// Optional validity window; nil bounds are open.
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`

	Items []PriceListItem `gorm:"foreignKey:PriceListID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// UsableAt reports whether the list can back a price lookup at t.
func (p *PriceList) UsableAt(t time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ValidFrom != nil && t.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && t.After(*p.ValidUntil) {
		return false
	}
	return true
}

// PriceListItem is one article's custom price within a list.
// DiscountPercent is informational: it is assumed to already be folded into
// CustomPrice by whoever wrote the item.
type PriceListItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	PriceListID     uint            `gorm:"not null;uniqueIndex:idx_price_list_article" json:"price_list_id"`
	ArticleID       uint            `gorm:"not null;uniqueIndex:idx_price_list_article;index" json:"article_id"`
	Article         *Article        `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
	CustomPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"custom_price"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percent"`
}
