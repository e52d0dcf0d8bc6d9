package handlers

import (
	"net/http"

	"github.com/diewo77/fieldbill/auth"
	"github.com/diewo77/fieldbill/httpx"
	"github.com/diewo77/fieldbill/i18n"
	"github.com/diewo77/fieldbill/internal/models"
	"github.com/diewo77/fieldbill/internal/money"
	"github.com/diewo77/fieldbill/internal/services"
	"github.com/diewo77/fieldbill/validation"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

type BillingHandler struct {
	billing  *services.BillingService
	catalog  *services.CatalogService
	currency string
	logger   *zap.Logger
}

func NewBillingHandler(billing *services.BillingService, catalog *services.CatalogService, currency string, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, catalog: catalog, currency: currency, logger: logger}
}

type addLineRequest struct {
	ArticleID       uint               `json:"article_id"`
	Quantity        int                `json:"quantity"`
	DiscountPercent decimal.Decimal    `json:"discount_percent"`
	CustomerID      *uint              `json:"customer_id"`
	UnitPrice       *decimal.Decimal   `json:"unit_price"`
	PriceSource     models.PriceSource `json:"price_source"`
	Notes           string             `json:"notes"`
}

// List serves GET /cases/{caseType}/{caseID}/items.
func (h *BillingHandler) List(w http.ResponseWriter, r *http.Request) {
	lines, err := h.billing.ListForCase(r.Context(), chi.URLParam(r, "caseID"), chi.URLParam(r, "caseType"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": lines, "total": len(lines)})
}

// Add serves POST /cases/{caseType}/{caseID}/items. The article is priced for
// the customer first; only admins may supply unit_price to override it.
func (h *BillingHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if !decode(w, r, &req) {
		return
	}
	if id, _ := auth.IdentityFromContext(r.Context()); !id.IsAdmin() && (req.UnitPrice != nil || req.PriceSource != "") {
		v := validation.Violations{}
		if req.UnitPrice != nil {
			v["unit_price"] = "not_allowed"
		}
		if req.PriceSource != "" {
			v["price_source"] = "not_allowed"
		}
		writeError(w, r, h.logger, &services.ValidationError{Violations: v})
		return
	}
	in := services.AddLineInput{
		CaseID:          chi.URLParam(r, "caseID"),
		CaseType:        chi.URLParam(r, "caseType"),
		CustomerID:      req.CustomerID,
		ArticleID:       req.ArticleID,
		Quantity:        req.Quantity,
		DiscountPercent: req.DiscountPercent,
		PriceSource:     req.PriceSource,
		Notes:           req.Notes,
	}
	if req.UnitPrice != nil {
		in.UnitPrice = *req.UnitPrice
		if in.PriceSource == "" {
			in.PriceSource = models.PriceSourceStandard
		}
	} else if req.ArticleID != 0 {
		priced, err := h.catalog.ResolveArticle(r.Context(), req.ArticleID, req.CustomerID)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		in.UnitPrice = priced.EffectivePrice
		in.PriceSource = priced.PriceSource
	}
	line, err := h.billing.AddArticleToCase(r.Context(), in, actor(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

type summaryResponse struct {
	services.Summary
	Display map[string]string `json:"display,omitempty"`
}

// Summary serves GET /cases/{caseType}/{caseID}/summary.
func (h *BillingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.billing.Summary(r.Context(), chi.URLParam(r, "caseID"), chi.URLParam(r, "caseType"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := summaryResponse{Summary: sum}
	if h.currency != "" {
		lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
		f, err := money.NewFormatter(h.currency, language.Make(lang))
		if err != nil {
			h.logger.Warn("money formatter", zap.String("currency", h.currency), zap.Error(err))
		} else {
			resp.Display = map[string]string{
				"subtotal":       f.Format(sum.Subtotal),
				"total_discount": f.Format(sum.TotalDiscount),
				"vat_amount":     f.Format(sum.VATAmount),
				"total_amount":   f.Format(sum.TotalAmount),
			}
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// Update serves PATCH /billing-items/{id}.
func (h *BillingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var in services.UpdateLineInput
	if !decode(w, r, &in) {
		return
	}
	line, err := h.billing.UpdateCaseArticle(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *BillingHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.billing.RemoveCaseArticle(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Approve serves POST /billing-items/{id}/approve (admins only).
func (h *BillingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	line, err := h.billing.ApproveDiscount(r.Context(), id, actor(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

// SetStatus serves POST /billing-items/{id}/status with {"status": "billed"|"cancelled"}.
func (h *BillingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		Status models.LineStatus `json:"status"`
	}
	if !decode(w, r, &in) {
		return
	}
	line, err := h.billing.SetStatus(r.Context(), id, in.Status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

// PendingApproval serves GET /billing-items/pending-approval (admins only).
func (h *BillingHandler) PendingApproval(w http.ResponseWriter, r *http.Request) {
	lines, err := h.billing.PendingApproval(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": lines, "total": len(lines)})
}

type NotificationHandler struct {
	notifications *services.NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications *services.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// List serves GET /notifications; ?unread=true filters read ones out.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	items, err := h.notifications.List(r.Context(), uid, r.URL.Query().Get("unread") == "true")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	if err := h.notifications.MarkRead(r.Context(), uid, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
