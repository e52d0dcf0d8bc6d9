// Package notify delivers discount approval requests to administrators.
// Delivery is best effort: a failure is logged and never reaches the
// billing mutation that triggered it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diewo77/fieldbill/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DiscountRequested describes a billing line that just received a discount.
type DiscountRequested struct {
	EventID         string          `json:"event_id"`
	LineID          uint            `json:"line_id"`
	CaseID          string          `json:"case_id"`
	CaseType        string          `json:"case_type"`
	ArticleCode     string          `json:"article_code"`
	ArticleName     string          `json:"article_name"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	TechnicianID    uint            `json:"technician_id"`
	TechnicianName  string          `json:"technician_name"`
	AdminIDs        []uint          `json:"admin_ids"`
	RequestedAt     time.Time       `json:"requested_at"`
}

// Notifier delivers one event to its recipients.
type Notifier interface {
	NotifyDiscount(ctx context.Context, evt DiscountRequested) error
}

// Multi fans an event out to every notifier. All are attempted; failures are
// joined.
type Multi []Notifier

func (m Multi) NotifyDiscount(ctx context.Context, evt DiscountRequested) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyDiscount(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AdminDirectory lists the users who review discounts.
type AdminDirectory interface {
	ActiveAdmins(ctx context.Context) ([]models.User, error)
}

// DBAdminDirectory reads active admin users.
type DBAdminDirectory struct{ DB *gorm.DB }

func (d DBAdminDirectory) ActiveAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := d.DB.WithContext(ctx).
		Where("role = ? AND is_active = ?", models.RoleAdmin, true).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("load admins: %w", err)
	}
	return users, nil
}

const DefaultTimeout = 10 * time.Second

type DispatcherDeps struct {
	Notifier Notifier
	Admins   AdminDirectory
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Dispatcher sends notifications on their own goroutine so the caller never
// waits on delivery.
type Dispatcher struct {
	notifier Notifier
	admins   AdminDirectory
	timeout  time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{notifier: deps.Notifier, admins: deps.Admins, timeout: timeout, logger: logger}
}

// DiscountRequested schedules delivery for line and returns immediately.
func (d *Dispatcher) DiscountRequested(line models.CaseBillingItem) {
	if d == nil || d.notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("discount notification panicked", zap.Uint("line_id", line.ID), zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.deliver(ctx, line); err != nil {
			d.logger.Warn("discount notification failed",
				zap.Uint("line_id", line.ID),
				zap.String("case_id", line.CaseID),
				zap.Error(err),
			)
		}
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, line models.CaseBillingItem) error {
	var adminIDs []uint
	if d.admins != nil {
		admins, err := d.admins.ActiveAdmins(ctx)
		if err != nil {
			return err
		}
		for _, a := range admins {
			adminIDs = append(adminIDs, a.ID)
		}
	}
	evt := DiscountRequested{
		EventID:         uuid.NewString(),
		LineID:          line.ID,
		CaseID:          line.CaseID,
		CaseType:        line.CaseType,
		ArticleCode:     line.ArticleCode,
		ArticleName:     line.ArticleName,
		DiscountPercent: line.DiscountPercent,
		TechnicianID:    line.AddedByID,
		TechnicianName:  line.AddedByName,
		AdminIDs:        adminIDs,
		RequestedAt:     time.Now().UTC(),
	}
	if err := d.notifier.NotifyDiscount(ctx, evt); err != nil {
		return err
	}
	d.logger.Debug("discount notification sent",
		zap.String("event_id", evt.EventID),
		zap.Uint("line_id", line.ID),
		zap.Int("admins", len(adminIDs)),
	)
	return nil
}

// Wait blocks until every scheduled delivery has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
