package services

import (
	"context"
	"testing"

	"ticket-portal/internal/status"
	"ticket-portal/internal/store"
	"ticket-portal/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryService_PublicTiers(t *testing.T) {
	f := newFixture(t)
	storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 3, 10)
	storetest.SeedTier(t, f.conn, "vip", "VIP", 999, 0, 5)
	svc := NewInventoryService(f.tiers)

	tiers, err := svc.PublicTiers(context.Background())
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, PublicTier{ID: "reg", Name: "Regular", Price: 699, RemainingQty: 3}, tiers[0])
	assert.True(t, tiers[1].SoldOut)
}

func TestInventoryService_CreateTier(t *testing.T) {
	f := newFixture(t)
	svc := NewInventoryService(f.tiers)
	ctx := context.Background()

	_, err := svc.CreateTier(ctx, partnerActor, TierInput{Name: "Regular", Price: 699, InitialQty: 10})
	assert.ErrorIs(t, err, status.ErrUnauthorized)

	tests := []struct {
		name  string
		in    TierInput
		field string
	}{
		{"blank name", TierInput{Name: "  ", Price: 699, InitialQty: 10}, "name"},
		{"negative price", TierInput{Name: "Regular", Price: -1, InitialQty: 10}, "price"},
		{"negative quantity", TierInput{Name: "Regular", Price: 699, InitialQty: -5}, "initial_qty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTier(ctx, adminActor, tt.in)
			var verr *status.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	tier, err := svc.CreateTier(ctx, adminActor, TierInput{Name: " Regular ", Price: 699, InitialQty: 10})
	require.NoError(t, err)
	assert.Equal(t, "Regular", tier.Name)
	assert.Equal(t, 10, tier.RemainingQty)
}

func TestInventoryService_UpdateTier(t *testing.T) {
	f := newFixture(t)
	storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 4, 10)
	svc := NewInventoryService(f.tiers)
	ctx := context.Background()

	intPtr := func(v int) *int { return &v }
	strPtr := func(v string) *string { return &v }

	_, err := svc.UpdateTier(ctx, partnerActor, "reg", store.TierUpdate{RemainingQty: intPtr(5)})
	assert.ErrorIs(t, err, status.ErrUnauthorized)

	_, err = svc.UpdateTier(ctx, adminActor, "reg", store.TierUpdate{RemainingQty: intPtr(11)})
	assert.ErrorIs(t, err, status.ErrInvalidQuantity)

	_, err = svc.UpdateTier(ctx, adminActor, "reg", store.TierUpdate{Name: strPtr(" ")})
	assert.ErrorIs(t, err, status.ErrValidation)

	_, err = svc.UpdateTier(ctx, adminActor, "ghost", store.TierUpdate{RemainingQty: intPtr(1)})
	assert.ErrorIs(t, err, status.ErrTierNotFound)

	tier, err := svc.UpdateTier(ctx, adminActor, "reg", store.TierUpdate{RemainingQty: intPtr(10), Price: int64Ptr(750)})
	require.NoError(t, err)
	assert.Equal(t, 10, tier.RemainingQty)
	assert.Equal(t, int64(750), tier.Price)
	assert.Equal(t, "Regular", tier.Name)
}

func TestInventoryService_ListTiers(t *testing.T) {
	f := newFixture(t)
	storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 4, 10)
	svc := NewInventoryService(f.tiers)

	_, err := svc.ListTiers(context.Background(), nil)
	assert.ErrorIs(t, err, status.ErrUnauthorized)

	tiers, err := svc.ListTiers(context.Background(), adminActor)
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, 10, tiers[0].InitialQty)
}
