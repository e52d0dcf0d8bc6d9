package services

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/diewo77/fieldbill/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor identifies the caller a mutation is attributed to.
type Actor struct {
	ID   uint
	Name string
	Role string
}

// DiscountNotifier is told when a line goes from no discount to a discount.
// Implementations must not block.
type DiscountNotifier interface {
	DiscountRequested(line models.CaseBillingItem)
}

type AddLineInput struct {
	CaseID          string             `json:"case_id" validate:"required,max=64"`
	CaseType        string             `json:"case_type" validate:"required,max=32"`
	CustomerID      *uint              `json:"customer_id"`
	ArticleID       uint               `json:"article_id" validate:"required"`
	Quantity        int                `json:"quantity"`
	DiscountPercent decimal.Decimal    `json:"discount_percent"`
	UnitPrice       decimal.Decimal    `json:"unit_price"`
	PriceSource     models.PriceSource `json:"price_source"`
	Notes           string             `json:"notes"`
}

func (in AddLineInput) validate() error {
	v := validation.Violations{}
	validation.Struct(in, v)
	validation.MinInt("quantity", in.Quantity, 1, v)
	validation.Percent("discount_percent", in.DiscountPercent, v)
	validation.NonNegative("unit_price", in.UnitPrice, v)
	if !in.PriceSource.Valid() {
		v["price_source"] = "invalid_choice"
	}
	return invalid(v)
}

// UpdateLineInput carries optional changes; nil fields are left as they are.
type UpdateLineInput struct {
	Quantity        *int             `json:"quantity"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	Notes           *string          `json:"notes"`
}

func (in UpdateLineInput) validate() error {
	v := validation.Violations{}
	if in.Quantity != nil {
		validation.MinInt("quantity", *in.Quantity, 1, v)
	}
	if in.DiscountPercent != nil {
		validation.Percent("discount_percent", *in.DiscountPercent, v)
	}
	return invalid(v)
}

// BillingService is the billing line ledger and its approval workflow.
type BillingService struct {
	DB       *gorm.DB
	Notifier DiscountNotifier
	Logger   *zap.Logger
	Now      func() time.Time
}

func NewBillingService(db *gorm.DB, notifier DiscountNotifier, logger *zap.Logger) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{DB: db, Notifier: notifier, Logger: logger, Now: time.Now}
}

func (s *BillingService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// AddArticleToCase attaches an article to a job at an already resolved unit
// price. The article's code, name, unit and VAT rate are copied onto the line.
func (s *BillingService) AddArticleToCase(ctx context.Context, in AddLineInput, by Actor) (*models.CaseBillingItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var article models.Article
	if err := s.DB.WithContext(ctx).First(&article, in.ArticleID).Error; err != nil {
		return nil, notFound(err, "load article", "article", in.ArticleID)
	}
	articleID := article.ID
	line := models.CaseBillingItem{
		CaseID:          in.CaseID,
		CaseType:        in.CaseType,
		CustomerID:      in.CustomerID,
		ArticleID:       &articleID,
		ArticleCode:     article.Code,
		ArticleName:     article.Name,
		Unit:            article.Unit,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice.Round(2),
		DiscountPercent: in.DiscountPercent.Round(2),
		VATRate:         article.VATRate,
		PriceSource:     in.PriceSource,
		Status:          models.LineStatusPending,
		AddedByID:       by.ID,
		AddedByName:     by.Name,
		Notes:           in.Notes,
	}
	line.Recalculate()
	if line.HasDiscount() {
		t := s.now()
		line.DiscountNotifiedAt = &t
	}
	if err := s.DB.WithContext(ctx).Create(&line).Error; err != nil {
		return nil, fmt.Errorf("create billing line: %w", err)
	}
	s.Logger.Info("billing line added",
		zap.Uint("line_id", line.ID),
		zap.String("case_id", line.CaseID),
		zap.String("article_code", line.ArticleCode),
		zap.Bool("requires_approval", line.RequiresApproval),
	)
	if line.HasDiscount() {
		s.notify(line)
	}
	return &line, nil
}

// UpdateCaseArticle applies new quantity, discount or notes on top of the
// line's frozen unit price. Changing the discount of an approved line sends it
// back to pending. Admins hear about a line's discount once, the first time
// it is set.
func (s *BillingService) UpdateCaseArticle(ctx context.Context, id uint, in UpdateLineInput) (*models.CaseBillingItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var line models.CaseBillingItem
	var notifyAdmins bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&line, id).Error; err != nil {
			return notFound(err, "load billing line", "billing_line", id)
		}
		if !line.CanEdit() {
			return ErrLineLocked
		}
		if in.Quantity != nil {
			line.Quantity = *in.Quantity
		}
		if in.DiscountPercent != nil {
			d := in.DiscountPercent.Round(2)
			if !d.Equal(line.DiscountPercent) && line.Status == models.LineStatusApproved {
				line.Status = models.LineStatusPending
				line.ApprovedByID = nil
				line.ApprovedAt = nil
			}
			line.DiscountPercent = d
		}
		if in.Notes != nil {
			line.Notes = *in.Notes
		}
		line.Recalculate()
		if line.HasDiscount() && line.DiscountNotifiedAt == nil {
			t := s.now()
			line.DiscountNotifiedAt = &t
			notifyAdmins = true
		}
		return tx.Save(&line).Error
	})
	if err != nil {
		return nil, wrapUnlessKind(err, "update billing line")
	}
	if notifyAdmins {
		s.notify(line)
	}
	return &line, nil
}

// RemoveCaseArticle deletes a line regardless of its status.
func (s *BillingService) RemoveCaseArticle(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.CaseBillingItem{}, id)
	if res.Error != nil {
		return fmt.Errorf("remove billing line: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Resource: "billing_line", ID: id}
	}
	s.Logger.Info("billing line removed", zap.Uint("line_id", id))
	return nil
}

func (s *BillingService) Get(ctx context.Context, id uint) (*models.CaseBillingItem, error) {
	var line models.CaseBillingItem
	if err := s.DB.WithContext(ctx).First(&line, id).Error; err != nil {
		return nil, notFound(err, "load billing line", "billing_line", id)
	}
	return &line, nil
}

// ListForCase returns a job's lines in insertion order.
func (s *BillingService) ListForCase(ctx context.Context, caseID, caseType string) ([]models.CaseBillingItem, error) {
	var lines []models.CaseBillingItem
	if err := s.DB.WithContext(ctx).
		Where("case_id = ? AND case_type = ?", caseID, caseType).
		Order("created_at, id").
		Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("list billing lines: %w", err)
	}
	return lines, nil
}

// ApproveDiscount clears the approval flag. Price fields are left untouched.
func (s *BillingService) ApproveDiscount(ctx context.Context, id uint, approver Actor) (*models.CaseBillingItem, error) {
	var line models.CaseBillingItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&line, id).Error; err != nil {
			return notFound(err, "load billing line", "billing_line", id)
		}
		if line.Status != models.LineStatusApproved && !line.CanTransition(models.LineStatusApproved) {
			return ErrInvalidTransition
		}
		now := s.now()
		approverID := approver.ID
		line.Status = models.LineStatusApproved
		line.RequiresApproval = false
		line.ApprovedByID = &approverID
		line.ApprovedAt = &now
		return tx.Model(&line).Select("status", "requires_approval", "approved_by_id", "approved_at").Updates(&line).Error
	})
	if err != nil {
		return nil, wrapUnlessKind(err, "approve billing line")
	}
	s.Logger.Info("billing line approved", zap.Uint("line_id", id), zap.Uint("approved_by", approver.ID))
	return &line, nil
}

// SetStatus records a billed or cancelled status written by invoicing or job
// closure flows.
func (s *BillingService) SetStatus(ctx context.Context, id uint, status models.LineStatus) (*models.CaseBillingItem, error) {
	if status != models.LineStatusBilled && status != models.LineStatusCancelled {
		return nil, invalidField("status", "invalid_choice")
	}
	var line models.CaseBillingItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&line, id).Error; err != nil {
			return notFound(err, "load billing line", "billing_line", id)
		}
		if !line.CanTransition(status) {
			return ErrInvalidTransition
		}
		line.Status = status
		line.RequiresApproval = false
		return tx.Model(&line).Select("status", "requires_approval").Updates(&line).Error
	})
	if err != nil {
		return nil, wrapUnlessKind(err, "set billing line status")
	}
	s.Logger.Info("billing line status changed", zap.Uint("line_id", id), zap.String("status", string(status)))
	return &line, nil
}

// PendingApproval lists every line awaiting discount review, oldest first.
func (s *BillingService) PendingApproval(ctx context.Context) ([]models.CaseBillingItem, error) {
	var lines []models.CaseBillingItem
	if err := s.DB.WithContext(ctx).
		Where("requires_approval = ?", true).
		Order("created_at, id").
		Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return lines, nil
}

func (s *BillingService) notify(line models.CaseBillingItem) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.DiscountRequested(line)
}
