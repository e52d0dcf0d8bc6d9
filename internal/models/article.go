package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Article is a catalog item that technicians can bill on a job.
type Article struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Code is stored uppercase and is unique across the catalog.
	Code string `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name string `gorm:"size:255;not null" json:"name"`
	Unit string `gorm:"size:50" json:"unit"` // st, h, m, kg, etc.

	DefaultPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"default_price"`

	// VAT rate stored as a percentage (25 = 25%)
	VATRate decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"vat_rate"`

	Category string `gorm:"size:100;index" json:"category,omitempty"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}

// NormalizeCode trims and uppercases an article code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PriceWithVAT returns the default price including VAT.
func (a *Article) PriceWithVAT() decimal.Decimal {
	return WithVAT(a.DefaultPrice, a.VATRate)
}

// WithVAT adds a percentage VAT rate to a net amount, rounded to cents.
func WithVAT(net, vatRate decimal.Decimal) decimal.Decimal {
	return net.Add(net.Mul(vatRate).Div(hundred)).Round(2)
}

var hundred = decimal.NewFromInt(100)
