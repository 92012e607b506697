package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ticket-portal/internal/status"
	"ticket-portal/internal/store"
	"ticket-portal/models"
	"ticket-portal/monitoring"
	"ticket-portal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	SourcePublic  = "public"
	SourcePartner = "partner"

	saleIDAttempts = 3
)

// SubmissionService creates pending sales. Public submissions carry no
// credentials, so the owning partner is always resolved here from the code.
type SubmissionService struct {
	sales    *store.SaleStore
	tiers    *store.TierStore
	profiles *store.ProfileStore
	newID    func() (string, error)
}

func NewSubmissionService(sales *store.SaleStore, tiers *store.TierStore, profiles *store.ProfileStore) *SubmissionService {
	return &SubmissionService{
		sales:    sales,
		tiers:    tiers,
		profiles: profiles,
		newID:    utils.GenerateSaleID,
	}
}

// ResolvePartner returns the active partner behind a referral code.
func (s *SubmissionService) ResolvePartner(ctx context.Context, code string) (*models.Profile, error) {
	profile, err := s.profiles.FindByPartnerCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if profile.Role != models.RolePartner {
		return nil, status.ErrPartnerNotFound
	}
	if !profile.IsActive {
		return nil, status.ErrPartnerInactive
	}
	return profile, nil
}

func (s *SubmissionService) SubmitPublicSale(ctx context.Context, sub PublicSubmission) (*models.Sale, error) {
	ctx, span := tracer.Start(ctx, "SubmissionService.SubmitPublicSale")
	defer span.End()

	sub.normalize()
	span.SetAttributes(attribute.String("sale.partner_code", sub.PartnerCode))

	if err := sub.Validate(); err != nil {
		monitoring.TrackSubmission(SourcePublic, "invalid")
		return nil, status.AsValidationError(err)
	}

	partner, err := s.ResolvePartner(ctx, sub.PartnerCode)
	if err != nil {
		monitoring.TrackSubmission(SourcePublic, "partner_rejected")
		return nil, err
	}

	sale, err := s.create(ctx, partner.ID, sub.SaleInput)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		monitoring.TrackSubmission(SourcePublic, resultLabel(err))
		return nil, err
	}

	monitoring.TrackSubmission(SourcePublic, "created")
	span.SetAttributes(attribute.String("sale.id", sale.ID))
	return sale, nil
}

// SubmitPartnerSale records a sale made by a logged in partner on their own
// behalf.
func (s *SubmissionService) SubmitPartnerSale(ctx context.Context, actor *models.Actor, in SaleInput) (*models.Sale, error) {
	ctx, span := tracer.Start(ctx, "SubmissionService.SubmitPartnerSale")
	defer span.End()

	if !actor.IsPartner() {
		return nil, status.ErrUnauthorized
	}

	in.normalize()
	if err := in.Validate(); err != nil {
		monitoring.TrackSubmission(SourcePartner, "invalid")
		return nil, status.AsValidationError(err)
	}

	sale, err := s.create(ctx, actor.ID, in)
	if err != nil {
		monitoring.TrackSubmission(SourcePartner, resultLabel(err))
		return nil, err
	}

	monitoring.TrackSubmission(SourcePartner, "created")
	return sale, nil
}

func (s *SubmissionService) create(ctx context.Context, partnerID string, in SaleInput) (*models.Sale, error) {
	items, err := snapshotLineItems(ctx, s.tiers, in.Tickets)
	if err != nil {
		return nil, err
	}
	if err := checkAmount(items, in.Amount); err != nil {
		return nil, err
	}

	sale := &models.Sale{
		PartnerID:      partnerID,
		Status:         models.SaleStatusPending,
		BuyerName:      in.BuyerName,
		BuyerMobile:    in.BuyerMobile,
		ReferenceLast4: in.ReferenceLast4,
		ScreenshotPath: in.ScreenshotPath,
		Tickets:        items,
		Amount:         items.Total(),
	}

	for attempt := 1; attempt <= saleIDAttempts; attempt++ {
		sale.ID, err = s.newID()
		if err != nil {
			return nil, fmt.Errorf("generate sale id: %w", err)
		}

		err = s.sales.Create(ctx, sale)
		if err == nil {
			return sale, nil
		}
		if !isUniqueViolation(err) {
			slog.Error("s.sales.Create()", "partner_id", partnerID, "error", err)
			return nil, err
		}
		slog.Warn("sale id collision, retrying", "sale_id", sale.ID, "attempt", attempt)
	}
	return nil, fmt.Errorf("create sale: %w", err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, status.ErrValidation):
		return "invalid"
	case errors.Is(err, status.ErrPartnerNotFound), errors.Is(err, status.ErrPartnerInactive):
		return "partner_rejected"
	default:
		return "error"
	}
}
