package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"ticket-portal/internal/services"
	"ticket-portal/internal/store"
	"ticket-portal/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type AdminHandler struct {
	approval  *services.ApprovalService
	queries   *services.SaleQueryService
	inventory *services.InventoryService
}

func NewAdminHandler(approval *services.ApprovalService, queries *services.SaleQueryService, inventory *services.InventoryService) *AdminHandler {
	return &AdminHandler{
		approval:  approval,
		queries:   queries,
		inventory: inventory,
	}
}

// ListSales - GET /admin/sales?status=&limit=&offset=
func (h *AdminHandler) ListSales(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	filter, err := parseSaleFilter(e)
	if err != nil {
		return err
	}

	sales, err := h.queries.ListSales(e.Request.Context(), actor, filter)
	if err != nil {
		return respondError(e, "h.queries.ListSales()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"items":  sales,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (h *AdminHandler) GetSale(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	sale, err := h.queries.GetSale(e.Request.Context(), actor, e.Request.PathValue("id"))
	if err != nil {
		return respondError(e, "h.queries.GetSale()", err)
	}
	return e.JSON(http.StatusOK, sale)
}

func (h *AdminHandler) ApproveSale(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	sale, err := h.approval.ApproveSale(e.Request.Context(), e.Request.PathValue("id"), actor)
	if err != nil {
		return respondError(e, "h.approval.ApproveSale()", err)
	}
	return e.JSON(http.StatusOK, sale)
}

func (h *AdminHandler) RejectSale(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sale, err := h.approval.RejectSale(e.Request.Context(), e.Request.PathValue("id"), actor, req.Reason)
	if err != nil {
		return respondError(e, "h.approval.RejectSale()", err)
	}
	return e.JSON(http.StatusOK, sale)
}

// WebhookLogs - GET /admin/sales/{id}/webhooks, newest delivery first
func (h *AdminHandler) WebhookLogs(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	logs, err := h.queries.WebhookLogs(e.Request.Context(), actor, e.Request.PathValue("id"))
	if err != nil {
		return respondError(e, "h.queries.WebhookLogs()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": logs})
}

func (h *AdminHandler) ReplayWebhook(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	saleID := e.Request.PathValue("id")
	if err := h.approval.ReplayWebhook(e.Request.Context(), saleID, actor); err != nil {
		return respondError(e, "h.approval.ReplayWebhook()", err)
	}
	return e.JSON(http.StatusAccepted, map[string]any{
		"message": "Webhook delivery queued",
		"sale_id": saleID,
	})
}

func (h *AdminHandler) ListTiers(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	tiers, err := h.inventory.ListTiers(e.Request.Context(), actor)
	if err != nil {
		return respondError(e, "h.inventory.ListTiers()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": tiers})
}

func (h *AdminHandler) CreateTier(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	var req services.TierInput
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	tier, err := h.inventory.CreateTier(e.Request.Context(), actor, req)
	if err != nil {
		return respondError(e, "h.inventory.CreateTier()", err)
	}
	return e.JSON(http.StatusCreated, tier)
}

func (h *AdminHandler) UpdateTier(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	var req store.TierUpdate
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	tier, err := h.inventory.UpdateTier(e.Request.Context(), actor, e.Request.PathValue("id"), req)
	if err != nil {
		return respondError(e, "h.inventory.UpdateTier()", err)
	}
	return e.JSON(http.StatusOK, tier)
}

func parseSaleFilter(e *core.RequestEvent) (models.SaleFilter, error) {
	q := e.Request.URL.Query()
	filter := models.SaleFilter{
		Status: models.SaleStatus(strings.ToLower(strings.TrimSpace(q.Get("status")))),
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return filter, apis.NewBadRequestError("Invalid "+name+" parameter", nil)
		}
		*dst = v
	}
	return filter, nil
}
