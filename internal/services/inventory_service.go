package services

import (
	"context"
	"log/slog"
	"strings"

	"ticket-portal/internal/status"
	"ticket-portal/internal/store"
	"ticket-portal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type TierInput struct {
	Name       string `json:"name"`
	Price      int64  `json:"price"`
	InitialQty int    `json:"initial_qty"`
}

func (in TierInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 80)),
		validation.Field(&in.Price, validation.Min(int64(0))),
		validation.Field(&in.InitialQty, validation.Min(0)),
	)
}

// PublicTier is what the referral page shows a buyer.
type PublicTier struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	RemainingQty int    `json:"remaining_qty"`
	SoldOut      bool   `json:"sold_out"`
}

type InventoryService struct {
	tiers *store.TierStore
}

func NewInventoryService(tiers *store.TierStore) *InventoryService {
	return &InventoryService{tiers: tiers}
}

func (s *InventoryService) PublicTiers(ctx context.Context) ([]PublicTier, error) {
	tiers, err := s.tiers.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]PublicTier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, PublicTier{
			ID:           t.ID,
			Name:         t.Name,
			Price:        t.Price,
			RemainingQty: t.RemainingQty,
			SoldOut:      t.SoldOut(),
		})
	}
	return out, nil
}

func (s *InventoryService) ListTiers(ctx context.Context, actor *models.Actor) ([]models.TicketTier, error) {
	if !actor.IsAdmin() {
		return nil, status.ErrUnauthorized
	}
	return s.tiers.List(ctx)
}

func (s *InventoryService) CreateTier(ctx context.Context, actor *models.Actor, in TierInput) (*models.TicketTier, error) {
	if !actor.IsAdmin() {
		return nil, status.ErrUnauthorized
	}

	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, status.AsValidationError(err)
	}

	tier, err := s.tiers.Create(ctx, in.Name, in.Price, in.InitialQty)
	if err != nil {
		slog.Error("s.tiers.Create()", "name", in.Name, "error", err)
		return nil, err
	}
	slog.Info("tier created", "tier_id", tier.ID, "actor_id", actor.ID, "initial_qty", tier.InitialQty)
	return tier, nil
}

// UpdateTier edits name, price or remaining stock. Remaining stock stays
// within [0, initial_qty].
func (s *InventoryService) UpdateTier(ctx context.Context, actor *models.Actor, tierID string, upd store.TierUpdate) (*models.TicketTier, error) {
	if !actor.IsAdmin() {
		return nil, status.ErrUnauthorized
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, status.NewValidationError("name", "cannot be blank")
		}
		upd.Name = &name
	}
	if upd.Price != nil && *upd.Price < 0 {
		return nil, status.NewValidationError("price", "must be no less than 0")
	}

	tier, err := s.tiers.Update(ctx, tierID, upd)
	if err != nil {
		return nil, err
	}
	slog.Info("tier updated", "tier_id", tier.ID, "actor_id", actor.ID, "remaining_qty", tier.RemainingQty)
	return tier, nil
}
