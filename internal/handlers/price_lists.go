package handlers

import (
	"net/http"

	"github.com/diewo77/fieldbill/httpx"
	"github.com/diewo77/fieldbill/internal/services"
	"go.uber.org/zap"
)

type PriceListHandler struct {
	lists     *services.PriceListService
	customers *services.CustomerService
	logger    *zap.Logger
}

func NewPriceListHandler(lists *services.PriceListService, customers *services.CustomerService, logger *zap.Logger) *PriceListHandler {
	return &PriceListHandler{lists: lists, customers: customers, logger: logger}
}

// List serves GET /price-lists; ?all=true includes inactive lists.
func (h *PriceListHandler) List(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	lists, err := h.lists.List(r.Context(), all)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": lists, "total": len(lists)})
}

func (h *PriceListHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	pl, err := h.lists.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	count, err := h.lists.ItemCount(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, services.PriceListSummary{PriceList: *pl, ItemCount: count})
}

func (h *PriceListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.PriceListInput
	if !decode(w, r, &in) {
		return
	}
	pl, err := h.lists.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pl)
}

func (h *PriceListHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var in services.PriceListInput
	if !decode(w, r, &in) {
		return
	}
	pl, err := h.lists.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *PriceListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.lists.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PriceListHandler) Copy(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &in) {
		return
	}
	pl, err := h.lists.Copy(r.Context(), id, in.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pl)
}

func (h *PriceListHandler) Items(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	items, err := h.lists.Items(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// UpsertItem serves PUT /price-lists/{id}/items/{articleID}.
func (h *PriceListHandler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	articleID, ok := uintParam(w, r, "articleID")
	if !ok {
		return
	}
	var in services.PriceListItemInput
	if !decode(w, r, &in) {
		return
	}
	item, err := h.lists.UpsertItem(r.Context(), id, articleID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *PriceListHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	articleID, ok := uintParam(w, r, "articleID")
	if !ok {
		return
	}
	if err := h.lists.RemoveItem(r.Context(), id, articleID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignToCustomer serves PUT /customers/{id}/price-list. A null
// price_list_id clears the assignment.
func (h *PriceListHandler) AssignToCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	var in struct {
		PriceListID *uint `json:"price_list_id"`
	}
	if !decode(w, r, &in) {
		return
	}
	c, err := h.customers.AssignPriceList(r.Context(), customerID, in.PriceListID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *PriceListHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := uintParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.customers.Get(r.Context(), customerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
