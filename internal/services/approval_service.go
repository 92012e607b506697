package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"ticket-portal/internal/status"
	"ticket-portal/internal/store"
	"ticket-portal/models"
	"ticket-portal/monitoring"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ApprovalService decides pending sales. An approval decrements every line
// item and flips the status inside one transaction; the webhook is queued
// only after that commit.
type ApprovalService struct {
	conn     store.Conn
	tiers    *store.TierStore
	sales    *store.SaleStore
	queue    WebhookQueue
	notifier *NotifyService
}

func NewApprovalService(conn store.Conn, tiers *store.TierStore, sales *store.SaleStore, queue WebhookQueue, notifier *NotifyService) *ApprovalService {
	return &ApprovalService{
		conn:     conn,
		tiers:    tiers,
		sales:    sales,
		queue:    queue,
		notifier: notifier,
	}
}

func (s *ApprovalService) ApproveSale(ctx context.Context, saleID string, actor *models.Actor) (*models.Sale, error) {
	ctx, span := tracer.Start(ctx, "ApprovalService.ApproveSale")
	defer span.End()
	span.SetAttributes(attribute.String("sale.id", saleID))

	sale, err := s.loadForDecision(ctx, saleID, actor, models.SaleEventApprove)
	if err != nil {
		s.fail(span, "approve", err)
		return nil, err
	}

	approvedAt := types.NowDateTime()
	err = s.conn.Transaction(ctx, func(tx dbx.Builder) error {
		for _, item := range sale.Tickets {
			if _, err := s.tiers.ConditionalDecrement(ctx, tx, item.TierID, item.Quantity); err != nil {
				return err
			}
		}
		return s.sales.TransitionStatus(ctx, tx, sale.ID, store.Transition{
			To: models.SaleStatusApproved,
			At: approvedAt,
		})
	})
	if err != nil {
		var inv *status.InsufficientInventoryError
		if errors.As(err, &inv) {
			monitoring.TrackInventoryConflict(inv.TierID)
			span.SetAttributes(
				attribute.String("inventory.tier_id", inv.TierID),
				attribute.Int("inventory.shortfall", inv.Shortfall()),
			)
		}
		s.fail(span, "approve", err)
		return nil, err
	}
	monitoring.TrackDecision("approve", "approved")

	// The approval is committed; nothing below may undo it.
	detached := context.WithoutCancel(ctx)

	approved, err := s.sales.Get(detached, sale.ID)
	if err != nil {
		slog.Error("s.sales.Get()", "sale_id", sale.ID, "error", err)
		approved = sale
		approved.Status = models.SaleStatusApproved
		approved.ApprovedAt = approvedAt
	}

	if err := s.queue.Enqueue(detached, approved.ID); err != nil {
		slog.Error("s.queue.Enqueue()", "sale_id", approved.ID, "error", err)
	}
	go s.notifier.SaleDecided(approved)

	slog.Info("sale approved", "sale_id", approved.ID, "actor_id", actor.ID, "amount", approved.Amount)
	return approved, nil
}

func (s *ApprovalService) RejectSale(ctx context.Context, saleID string, actor *models.Actor, reason string) (*models.Sale, error) {
	ctx, span := tracer.Start(ctx, "ApprovalService.RejectSale")
	defer span.End()
	span.SetAttributes(attribute.String("sale.id", saleID))

	if !actor.IsAdmin() {
		s.fail(span, "reject", status.ErrUnauthorized)
		return nil, status.ErrUnauthorized
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		err := status.NewValidationError("reason", "a rejection reason is required")
		s.fail(span, "reject", err)
		return nil, err
	}

	sale, err := s.loadForDecision(ctx, saleID, actor, models.SaleEventReject)
	if err != nil {
		s.fail(span, "reject", err)
		return nil, err
	}

	rejectedAt := types.NowDateTime()
	err = s.conn.Transaction(ctx, func(tx dbx.Builder) error {
		return s.sales.TransitionStatus(ctx, tx, sale.ID, store.Transition{
			To:     models.SaleStatusRejected,
			At:     rejectedAt,
			Reason: reason,
		})
	})
	if err != nil {
		s.fail(span, "reject", err)
		return nil, err
	}
	monitoring.TrackDecision("reject", "rejected")

	detached := context.WithoutCancel(ctx)
	rejected, err := s.sales.Get(detached, sale.ID)
	if err != nil {
		slog.Error("s.sales.Get()", "sale_id", sale.ID, "error", err)
		rejected = sale
		rejected.Status = models.SaleStatusRejected
		rejected.RejectionReason = reason
	}
	go s.notifier.SaleDecided(rejected)

	slog.Info("sale rejected", "sale_id", rejected.ID, "actor_id", actor.ID)
	return rejected, nil
}

// UpdatePendingSale lets the owning partner correct buyer or ticket details
// until an admin has decided the sale.
func (s *ApprovalService) UpdatePendingSale(ctx context.Context, saleID string, actor *models.Actor, in SaleInput) (*models.Sale, error) {
	ctx, span := tracer.Start(ctx, "ApprovalService.UpdatePendingSale")
	defer span.End()

	if !actor.IsPartner() {
		return nil, status.ErrUnauthorized
	}

	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(sale) {
		return nil, status.ErrUnauthorized
	}
	if _, err := sale.Status.Next(models.SaleEventSelfEdit); err != nil {
		return nil, err
	}

	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, status.AsValidationError(err)
	}

	items, err := snapshotLineItems(ctx, s.tiers, in.Tickets)
	if err != nil {
		return nil, err
	}
	if err := checkAmount(items, in.Amount); err != nil {
		return nil, err
	}

	err = s.sales.UpdatePending(ctx, sale.ID, actor.ID, store.PendingEdit{
		BuyerName:      in.BuyerName,
		BuyerMobile:    in.BuyerMobile,
		ReferenceLast4: in.ReferenceLast4,
		ScreenshotPath: in.ScreenshotPath,
		Tickets:        items,
		Amount:         items.Total(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.sales.Get(ctx, sale.ID)
}

// ReplayWebhook queues a fresh delivery sequence for an approved sale. Each
// replay produces its own log entry.
func (s *ApprovalService) ReplayWebhook(ctx context.Context, saleID string, actor *models.Actor) error {
	if !actor.IsAdmin() {
		return status.ErrUnauthorized
	}

	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Status != models.SaleStatusApproved {
		return status.ErrInvalidStateTransition
	}
	return s.queue.Enqueue(context.WithoutCancel(ctx), sale.ID)
}

// loadForDecision applies the checks shared by approve and reject: the actor
// must be an active admin and the sale must still be pending.
func (s *ApprovalService) loadForDecision(ctx context.Context, saleID string, actor *models.Actor, event models.SaleEvent) (*models.Sale, error) {
	if !actor.IsAdmin() {
		return nil, status.ErrUnauthorized
	}

	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if !sale.Status.Can(event) {
		return nil, status.ErrAlreadyProcessed
	}
	return sale, nil
}

func (s *ApprovalService) fail(span trace.Span, action string, err error) {
	result := "error"
	switch {
	case errors.Is(err, status.ErrUnauthorized):
		result = "unauthorized"
	case errors.Is(err, status.ErrSaleNotFound):
		result = "not_found"
	case errors.Is(err, status.ErrAlreadyProcessed):
		result = "already_processed"
	case errors.Is(err, status.ErrInsufficientInventory):
		result = "insufficient_inventory"
	case errors.Is(err, status.ErrTierNotFound):
		result = "tier_not_found"
	case errors.Is(err, status.ErrValidation):
		result = "invalid"
	}
	monitoring.TrackDecision(action, result)

	if result == "error" {
		slog.Error("sale decision failed", "action", action, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
