package handlers

import (
	"net/http"

	"github.com/diewo77/fieldbill/auth"
	"github.com/go-chi/chi/v5"
)

// Set groups every API handler.
type Set struct {
	Catalog       *CatalogHandler
	PriceLists    *PriceListHandler
	Billing       *BillingHandler
	Notifications *NotificationHandler
}

// Routes builds the /api sub-router. Callers are expected to have run
// auth.Middleware already; every route requires an identity and catalog or
// approval administration requires the admin role.
func Routes(h Set) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.RequireAuth)

	r.Get("/catalog", h.Catalog.List)
	r.Get("/catalog/grouped", h.Catalog.Grouped)

	r.Route("/articles", func(r chi.Router) {
		r.Get("/{id}", h.Catalog.GetArticle)
		r.Get("/{id}/price", h.Catalog.Price)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/", h.Catalog.CreateArticle)
			r.Put("/{id}", h.Catalog.UpdateArticle)
			r.Delete("/{id}", h.Catalog.DeleteArticle)
			r.Post("/{id}/deactivate", h.Catalog.DeactivateArticle)
		})
	})

	r.Route("/price-lists", func(r chi.Router) {
		r.Get("/", h.PriceLists.List)
		r.Get("/{id}", h.PriceLists.Get)
		r.Get("/{id}/items", h.PriceLists.Items)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Post("/", h.PriceLists.Create)
			r.Put("/{id}", h.PriceLists.Update)
			r.Delete("/{id}", h.PriceLists.Delete)
			r.Post("/{id}/copy", h.PriceLists.Copy)
			r.Put("/{id}/items/{articleID}", h.PriceLists.UpsertItem)
			r.Delete("/{id}/items/{articleID}", h.PriceLists.RemoveItem)
		})
	})

	r.Get("/customers/{id}", h.PriceLists.GetCustomer)
	r.With(auth.RequireAdmin).Put("/customers/{id}/price-list", h.PriceLists.AssignToCustomer)

	r.Route("/cases/{caseType}/{caseID}", func(r chi.Router) {
		r.Get("/items", h.Billing.List)
		r.Post("/items", h.Billing.Add)
		r.Get("/summary", h.Billing.Summary)
	})

	r.Route("/billing-items", func(r chi.Router) {
		r.With(auth.RequireAdmin).Get("/pending-approval", h.Billing.PendingApproval)
		r.Patch("/{id}", h.Billing.Update)
		r.Delete("/{id}", h.Billing.Remove)
		r.With(auth.RequireAdmin).Post("/{id}/approve", h.Billing.Approve)
		r.With(auth.RequireAdmin).Post("/{id}/status", h.Billing.SetStatus)
	})

	r.Get("/notifications", h.Notifications.List)
	r.Post("/notifications/{id}/read", h.Notifications.MarkRead)
	return r
}
