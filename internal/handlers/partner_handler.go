package handlers

import (
	"net/http"

	"ticket-portal/internal/services"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// PartnerHandler serves a logged in partner's own sales.
type PartnerHandler struct {
	submissions *services.SubmissionService
	approval    *services.ApprovalService
	queries     *services.SaleQueryService
}

func NewPartnerHandler(submissions *services.SubmissionService, approval *services.ApprovalService, queries *services.SaleQueryService) *PartnerHandler {
	return &PartnerHandler{
		submissions: submissions,
		approval:    approval,
		queries:     queries,
	}
}

func (h *PartnerHandler) ListSales(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}
	if !actor.IsPartner() {
		return apis.NewForbiddenError("Partner access required", nil)
	}

	filter, err := parseSaleFilter(e)
	if err != nil {
		return err
	}

	sales, err := h.queries.ListSales(e.Request.Context(), actor, filter)
	if err != nil {
		return respondError(e, "h.queries.ListSales()", err)
	}
	return e.JSON(http.StatusOK, map[string]any{"items": sales})
}

func (h *PartnerHandler) CreateSale(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	var req services.SaleInput
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sale, err := h.submissions.SubmitPartnerSale(e.Request.Context(), actor, req)
	if err != nil {
		return respondError(e, "h.submissions.SubmitPartnerSale()", err)
	}
	return e.JSON(http.StatusCreated, sale)
}

// UpdateSale - PATCH /partner/sales/{id}, allowed only while pending
func (h *PartnerHandler) UpdateSale(e *core.RequestEvent) error {
	actor, err := requireActor(e)
	if err != nil {
		return err
	}

	var req services.SaleInput
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sale, err := h.approval.UpdatePendingSale(e.Request.Context(), e.Request.PathValue("id"), actor, req)
	if err != nil {
		return respondError(e, "h.approval.UpdatePendingSale()", err)
	}
	return e.JSON(http.StatusOK, sale)
}
