package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ticket-portal/internal/status"
	"ticket-portal/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
)

const tiersTable = "ticket_tiers"

var tierColumns = []string{"id", "name", "price", "remaining_qty", "initial_qty", "created", "updated"}

type TierStore struct {
	conn Conn
}

func NewTierStore(conn Conn) *TierStore {
	return &TierStore{conn: conn}
}

func (s *TierStore) Get(ctx context.Context, id string) (*models.TicketTier, error) {
	return s.get(ctx, s.conn.Builder(), id)
}

func (s *TierStore) get(ctx context.Context, b dbx.Builder, id string) (*models.TicketTier, error) {
	var tier models.TicketTier
	err := b.Select(tierColumns...).
		From(tiersTable).
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tier %s: %w", id, err)
	}
	return &tier, nil
}

func (s *TierStore) List(ctx context.Context) ([]models.TicketTier, error) {
	tiers := []models.TicketTier{}
	err := s.conn.Builder().Select(tierColumns...).
		From(tiersTable).
		OrderBy("price ASC", "name ASC").
		WithContext(ctx).
		All(&tiers)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	return tiers, nil
}

// GetMany loads the given tiers keyed by id. Unknown ids are absent from the
// result.
func (s *TierStore) GetMany(ctx context.Context, ids []string) (map[string]models.TicketTier, error) {
	out := make(map[string]models.TicketTier, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}

	var tiers []models.TicketTier
	err := s.conn.Builder().Select(tierColumns...).
		From(tiersTable).
		Where(dbx.In("id", values...)).
		WithContext(ctx).
		All(&tiers)
	if err != nil {
		return nil, fmt.Errorf("get tiers: %w", err)
	}

	for _, tier := range tiers {
		out[tier.ID] = tier
	}
	return out, nil
}

// Create inserts a tier with its full initial stock available.
func (s *TierStore) Create(ctx context.Context, name string, price int64, initialQty int) (*models.TicketTier, error) {
	if initialQty < 0 || price < 0 {
		return nil, status.ErrInvalidQuantity
	}

	now := types.NowDateTime()
	tier := &models.TicketTier{
		ID:           newID(),
		Name:         name,
		Price:        price,
		RemainingQty: initialQty,
		InitialQty:   initialQty,
		Created:      now,
		Updated:      now,
	}

	_, err := s.conn.Builder().Insert(tiersTable, dbx.Params{
		"id":            tier.ID,
		"name":          tier.Name,
		"price":         tier.Price,
		"remaining_qty": tier.RemainingQty,
		"initial_qty":   tier.InitialQty,
		"created":       tier.Created,
		"updated":       tier.Updated,
	}).WithContext(ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("create tier: %w", err)
	}
	return tier, nil
}

type TierUpdate struct {
	Name         *string `json:"name"`
	Price        *int64  `json:"price"`
	RemainingQty *int    `json:"remaining_qty"`
}

// Update applies an admin edit. The range check on remaining_qty runs in the
// same statement as the write.
func (s *TierStore) Update(ctx context.Context, id string, upd TierUpdate) (*models.TicketTier, error) {
	if upd.Price != nil && *upd.Price < 0 {
		return nil, status.ErrInvalidQuantity
	}

	params := dbx.Params{
		"id":        id,
		"name":      nil,
		"price":     nil,
		"remaining": nil,
		"updated":   types.NowDateTime(),
	}
	if upd.Name != nil {
		params["name"] = *upd.Name
	}
	if upd.Price != nil {
		params["price"] = *upd.Price
	}
	if upd.RemainingQty != nil {
		params["remaining"] = *upd.RemainingQty
	}

	res, err := s.conn.Builder().NewQuery(`
		UPDATE ticket_tiers
		SET name = COALESCE({:name}, name),
			price = COALESCE({:price}, price),
			remaining_qty = COALESCE({:remaining}, remaining_qty),
			updated = {:updated}
		WHERE id = {:id}
			AND COALESCE({:remaining}, remaining_qty) >= 0
			AND COALESCE({:remaining}, remaining_qty) <= initial_qty
	`).Bind(params).WithContext(ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("update tier %s: %w", id, err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, status.ErrInvalidQuantity
	}
	return s.Get(ctx, id)
}

// ConditionalDecrement takes qty units from the tier in one statement. It
// must run on the builder of the caller's transaction. When no row matches
// the tier is re-read to tell a missing tier from a short one; nothing is
// written in either case.
func (s *TierStore) ConditionalDecrement(ctx context.Context, tx dbx.Builder, tierID string, qty int) (int, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("decrement %s: %w", tierID, status.ErrInvalidQuantity)
	}

	res, err := tx.NewQuery(`
		UPDATE ticket_tiers
		SET remaining_qty = remaining_qty - {:qty}, updated = {:updated}
		WHERE id = {:id} AND remaining_qty >= {:qty}
	`).Bind(dbx.Params{
		"id":      tierID,
		"qty":     qty,
		"updated": types.NowDateTime(),
	}).WithContext(ctx).Execute()
	if err != nil {
		return 0, fmt.Errorf("decrement %s: %w", tierID, err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return 0, err
	}

	tier, err := s.get(ctx, tx, tierID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return tier.RemainingQty, &status.InsufficientInventoryError{
			TierID:    tier.ID,
			TierName:  tier.Name,
			Requested: qty,
			Remaining: tier.RemainingQty,
		}
	}
	return tier.RemainingQty, nil
}
