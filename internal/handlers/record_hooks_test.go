package handlers

import (
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
)

func tierRecord(remaining, initial int) *core.Record {
	col := core.NewBaseCollection("ticket_tiers")
	col.Fields.Add(
		&core.NumberField{Name: "remaining_qty", OnlyInt: true},
		&core.NumberField{Name: "initial_qty", OnlyInt: true},
	)
	rec := core.NewRecord(col)
	rec.Set("remaining_qty", remaining)
	rec.Set("initial_qty", initial)
	return rec
}

func saleRecord(status, tickets string, amount int) *core.Record {
	col := core.NewBaseCollection("sales")
	col.Fields.Add(
		&core.TextField{Name: "status"},
		&core.TextField{Name: "tickets_data"},
		&core.NumberField{Name: "amount", OnlyInt: true},
	)
	rec := core.NewRecord(col)
	rec.Set("status", status)
	rec.Set("tickets_data", tickets)
	rec.Set("amount", amount)
	return rec
}

func TestCheckTierCreate(t *testing.T) {
	rec := tierRecord(0, 50)
	assert.NoError(t, checkTierCreate(rec))
	assert.Equal(t, 50, rec.GetInt("remaining_qty"))

	assert.NoError(t, checkTierCreate(tierRecord(20, 50)))
	assert.Error(t, checkTierCreate(tierRecord(60, 50)))
}

func TestCheckTierUpdate(t *testing.T) {
	original := tierRecord(10, 50)

	tests := []struct {
		name    string
		updated *core.Record
		wantErr bool
	}{
		{"restock within range", tierRecord(50, 50), false},
		{"sell out", tierRecord(0, 50), false},
		{"above initial", tierRecord(51, 50), true},
		{"negative", tierRecord(-1, 50), true},
		{"initial changed", tierRecord(10, 60), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTierUpdate(original, tt.updated)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckSaleUpdate(t *testing.T) {
	const lines = `[{"tier_id":"reg","quantity":1}]`

	tests := []struct {
		name     string
		original *core.Record
		updated  *core.Record
		wantErr  bool
	}{
		{"pending buyer fix", saleRecord("pending", lines, 699), saleRecord("pending", `[{"tier_id":"reg","quantity":2}]`, 1398), false},
		{"status change", saleRecord("pending", lines, 699), saleRecord("approved", lines, 699), true},
		{"approved amount change", saleRecord("approved", lines, 699), saleRecord("approved", lines, 1), true},
		{"approved tickets change", saleRecord("approved", lines, 699), saleRecord("approved", `[]`, 699), true},
		{"approved untouched lines", saleRecord("approved", lines, 699), saleRecord("approved", lines, 699), false},
		{"rejected amount change", saleRecord("rejected", lines, 699), saleRecord("rejected", lines, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSaleUpdate(tt.original, tt.updated)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
