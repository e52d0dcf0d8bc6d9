package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineStatus represents the approval/billing state of a billing line.
type LineStatus string

const (
	LineStatusPending   LineStatus = "pending"
	LineStatusApproved  LineStatus = "approved"
	LineStatusBilled    LineStatus = "billed"
	LineStatusCancelled LineStatus = "cancelled"
)

// PriceSource names the price tier a line's unit price came from.
type PriceSource string

const (
	PriceSourceStandard     PriceSource = "standard"
	PriceSourceCustomerList PriceSource = "customer_list"
)

// Valid reports whether s is a known price source.
func (s PriceSource) Valid() bool {
	return s == PriceSourceStandard || s == PriceSourceCustomerList
}

// CaseBillingItem is one billable article line attached to a job.
// UnitPrice and VATRate are snapshots taken when the line was added and are
// never rewritten afterwards.
type CaseBillingItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Opaque job key owned by the job system.
	CaseID   string `gorm:"size:64;not null;index:idx_billing_case,priority:1" json:"case_id"`
	CaseType string `gorm:"size:32;not null;index:idx_billing_case,priority:2" json:"case_type"`

	CustomerID *uint `gorm:"index" json:"customer_id,omitempty"`

	// ArticleID may be nulled if the article disappears; the code/name
	// snapshot keeps the line readable.
	ArticleID   *uint  `gorm:"index" json:"article_id,omitempty"`
	ArticleCode string `gorm:"size:50;not null" json:"article_code"`
	ArticleName string `gorm:"size:255;not null" json:"article_name"`
	Unit        string `gorm:"size:50" json:"unit,omitempty"`

	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	DiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percent"`
	// Derived amounts are exact: scale 6 holds a 2-digit price times a
	// 4-digit discount factor. Rounding to cents happens at display.
	DiscountedPrice decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"discounted_price"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"total_price"`
	VATRate         decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"vat_rate"`
	PriceSource     PriceSource     `gorm:"size:20;not null" json:"price_source"`

	Status           LineStatus `gorm:"size:20;not null;index" json:"status"`
	RequiresApproval bool       `gorm:"not null;index" json:"requires_approval"`

	AddedByID    uint       `gorm:"index" json:"added_by_id"`
	AddedByName  string     `gorm:"size:255" json:"added_by_name"`
	ApprovedByID *uint      `json:"approved_by_id,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`

	// DiscountNotifiedAt is set the first time the line carries a discount;
	// admins are notified once per line.
	DiscountNotifiedAt *time.Time `json:"discount_notified_at,omitempty"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`
}

// Recalculate rebuilds every derived field from the authoritative inputs
// (unit price, quantity, discount, status). It never patches a previous value.
func (l *CaseBillingItem) Recalculate() {
	factor := hundred.Sub(l.DiscountPercent).Div(hundred)
	l.DiscountedPrice = l.UnitPrice.Mul(factor)
	l.TotalPrice = l.DiscountedPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
	l.RequiresApproval = l.HasDiscount() && l.Status == LineStatusPending
}

// HasDiscount reports whether a nonzero discount is applied.
func (l *CaseBillingItem) HasDiscount() bool {
	return l.DiscountPercent.IsPositive()
}

// GrossAmount is the undiscounted line amount (unit price × quantity).
func (l *CaseBillingItem) GrossAmount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// DiscountAmount is the absolute amount taken off by the discount.
func (l *CaseBillingItem) DiscountAmount() decimal.Decimal {
	return l.GrossAmount().Sub(l.TotalPrice)
}

// VATAmount returns the unrounded VAT on the discounted line total.
func (l *CaseBillingItem) VATAmount() decimal.Decimal {
	return l.TotalPrice.Mul(l.VATRate).Div(hundred)
}

// CanEdit returns true while quantity and discount may still change.
func (l *CaseBillingItem) CanEdit() bool {
	return l.Status == LineStatusPending || l.Status == LineStatusApproved
}

var lineTransitions = map[LineStatus][]LineStatus{
	LineStatusPending:  {LineStatusApproved, LineStatusBilled, LineStatusCancelled},
	LineStatusApproved: {LineStatusBilled, LineStatusCancelled},
}

// CanTransition reports whether the line may move to the target status.
// A pending line goes straight to billed only when it needs no approval.
func (l *CaseBillingItem) CanTransition(to LineStatus) bool {
	for _, next := range lineTransitions[l.Status] {
		if next != to {
			continue
		}
		if l.Status == LineStatusPending && to == LineStatusBilled {
			return !l.RequiresApproval
		}
		return true
	}
	return false
}
