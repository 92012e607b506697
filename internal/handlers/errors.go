package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"ticket-portal/internal/status"
	"ticket-portal/utils"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"
)

// respondError writes err as an API error. Inventory conflicts carry the
// short tier so the admin UI can say which one ran out.
func respondError(e *core.RequestEvent, op string, err error) error {
	var inv *status.InsufficientInventoryError
	if errors.As(err, &inv) {
		return e.JSON(http.StatusConflict, map[string]any{
			"status":  http.StatusConflict,
			"message": "Not enough tickets left to approve this sale.",
			"data": map[string]any{
				"code":      "insufficient_inventory",
				"tier_id":   inv.TierID,
				"tier_name": inv.TierName,
				"requested": inv.Requested,
				"remaining": inv.Remaining,
			},
		})
	}

	apiErr := apiError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		slog.Error(op, "error", err)
	}
	return apiErr
}

func apiError(err error) *router.ApiError {
	var verr *status.ValidationError
	switch {
	case errors.As(err, &verr):
		return apis.NewBadRequestError("Invalid input.", verr.Fields)
	case errors.Is(err, status.ErrUnauthorized):
		return apis.NewForbiddenError("You are not allowed to perform this request.", nil)
	case errors.Is(err, status.ErrSaleNotFound):
		return apis.NewNotFoundError("Sale not found.", nil)
	case errors.Is(err, status.ErrTierNotFound):
		return apis.NewNotFoundError("Ticket tier not found.", nil)
	case errors.Is(err, status.ErrWebhookLogNotFound):
		return apis.NewNotFoundError("Webhook log not found.", nil)
	case errors.Is(err, status.ErrPartnerNotFound):
		return apis.NewNotFoundError("Referral code not found.", nil)
	case errors.Is(err, status.ErrPartnerInactive):
		return apis.NewForbiddenError("This referral link is no longer active.", nil)
	case errors.Is(err, status.ErrAlreadyProcessed):
		return apis.NewApiError(http.StatusConflict, "Sale has already been processed.", nil)
	case errors.Is(err, status.ErrInvalidStateTransition):
		return apis.NewApiError(http.StatusConflict, "Sale can no longer be changed.", nil)
	case errors.Is(err, status.ErrInvalidQuantity):
		return apis.NewBadRequestError("Remaining quantity must be between 0 and the initial quantity.", nil)
	case errors.Is(err, status.ErrQueueFull), errors.Is(err, status.ErrQueueClosed), errors.Is(err, utils.ErrOpenState):
		return apis.NewApiError(http.StatusServiceUnavailable, "Webhook delivery is temporarily unavailable.", nil)
	default:
		return apis.NewInternalServerError("Internal error.", nil)
	}
}
