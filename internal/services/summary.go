package services

import (
	"context"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/shopspring/decimal"
)

// Summary is the billable total of one job.
type Summary struct {
	CaseID           string          `json:"case_id"`
	CaseType         string          `json:"case_type"`
	ItemCount        int             `json:"item_count"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TotalDiscount    decimal.Decimal `json:"total_discount"`
	VATAmount        decimal.Decimal `json:"vat_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	RequiresApproval bool            `json:"requires_approval"`
}

// Summarize rolls lines into a Summary. Cancelled lines are not billable and
// are skipped. Amounts are exact sums; callers round when displaying.
func Summarize(lines []models.CaseBillingItem) Summary {
	sum := Summary{
		Subtotal:      decimal.Zero,
		TotalDiscount: decimal.Zero,
		VATAmount:     decimal.Zero,
	}
	for i := range lines {
		l := &lines[i]
		if l.Status == models.LineStatusCancelled {
			continue
		}
		sum.ItemCount++
		sum.Subtotal = sum.Subtotal.Add(l.TotalPrice)
		sum.TotalDiscount = sum.TotalDiscount.Add(l.DiscountAmount())
		sum.VATAmount = sum.VATAmount.Add(l.VATAmount())
		sum.RequiresApproval = sum.RequiresApproval || l.RequiresApproval
	}
	sum.TotalAmount = sum.Subtotal.Add(sum.VATAmount)
	return sum
}

// Summary recomputes a job's totals from its stored lines.
func (s *BillingService) Summary(ctx context.Context, caseID, caseType string) (Summary, error) {
	lines, err := s.ListForCase(ctx, caseID, caseType)
	if err != nil {
		return Summary{}, err
	}
	sum := Summarize(lines)
	sum.CaseID = caseID
	sum.CaseType = caseType
	return sum, nil
}
