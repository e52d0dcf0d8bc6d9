package handlers

import (
	"net/http"

	"github.com/diewo77/fieldbill/httpx"
	"github.com/diewo77/fieldbill/internal/services"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	catalog *services.CatalogService
	logger  *zap.Logger
}

func NewCatalogHandler(catalog *services.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// List serves GET /catalog?customer_id=.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	customerID, ok := optionalCustomer(w, r)
	if !ok {
		return
	}
	items, err := h.catalog.ListWithPrices(r.Context(), customerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// Grouped serves GET /catalog/grouped?customer_id=.
func (h *CatalogHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	customerID, ok := optionalCustomer(w, r)
	if !ok {
		return
	}
	groups, err := h.catalog.Grouped(r.Context(), customerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// Price serves GET /articles/{id}/price?customer_id=.
func (h *CatalogHandler) Price(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	customerID, ok := optionalCustomer(w, r)
	if !ok {
		return
	}
	priced, err := h.catalog.ResolveArticle(r.Context(), id, customerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, priced)
}

func (h *CatalogHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	a, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *CatalogHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var in services.ArticleInput
	if !decode(w, r, &in) {
		return
	}
	a, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *CatalogHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var in services.ArticleInput
	if !decode(w, r, &in) {
		return
	}
	a, err := h.catalog.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *CatalogHandler) DeactivateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	a, err := h.catalog.Deactivate(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *CatalogHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
