// Package storetest opens throwaway SQLite databases laid out like the
// PocketBase collections and seeds them for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"ticket-portal/internal/store"
	"ticket-portal/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/stretchr/testify/require"
)

var seq atomic.Int64

// Open returns a fresh in-memory database closed at test cleanup.
func Open(t testing.TB) *store.SQLConn {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name, seq.Add(1))

	conn, err := store.OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func SeedTier(t testing.TB, conn store.Conn, id, name string, price int64, remaining, initial int) models.TicketTier {
	t.Helper()

	now := types.NowDateTime()
	_, err := conn.Builder().Insert("ticket_tiers", dbx.Params{
		"id":            id,
		"name":          name,
		"price":         price,
		"remaining_qty": remaining,
		"initial_qty":   initial,
		"created":       now,
		"updated":       now,
	}).Execute()
	require.NoError(t, err)

	return models.TicketTier{ID: id, Name: name, Price: price, RemainingQty: remaining, InitialQty: initial}
}

func SeedProfile(t testing.TB, conn store.Conn, p models.Profile) models.Profile {
	t.Helper()

	_, err := conn.Builder().Insert("users", dbx.Params{
		"id":           p.ID,
		"name":         p.Name,
		"mobile":       p.Mobile,
		"role":         string(p.Role),
		"is_active":    p.IsActive,
		"partner_code": p.PartnerCode,
	}).Execute()
	require.NoError(t, err)
	return p
}

// SeedSale inserts a sale in any status, bypassing the pending-only rule of
// store.SaleStore.Create.
func SeedSale(t testing.TB, conn store.Conn, sale models.Sale) models.Sale {
	t.Helper()

	if sale.Status == "" {
		sale.Status = models.SaleStatusPending
	}
	if sale.Amount == 0 {
		sale.Amount = sale.Tickets.Total()
	}
	now := types.NowDateTime()
	if sale.SubmittedAt.IsZero() {
		sale.SubmittedAt = now
	}

	_, err := conn.Builder().Insert("sales", dbx.Params{
		"id":               sale.ID,
		"partner":          sale.PartnerID,
		"status":           string(sale.Status),
		"buyer_name":       sale.BuyerName,
		"buyer_mobile":     sale.BuyerMobile,
		"reference_last4":  sale.ReferenceLast4,
		"screenshot_path":  sale.ScreenshotPath,
		"tickets_data":     sale.Tickets,
		"amount":           sale.Amount,
		"rejection_reason": sale.RejectionReason,
		"submitted_at":     sale.SubmittedAt,
		"approved_at":      sale.ApprovedAt,
		"created":          now,
		"updated":          now,
	}).Execute()
	require.NoError(t, err)
	return sale
}

func Remaining(t testing.TB, conn store.Conn, tierID string) int {
	t.Helper()

	var remaining int
	err := conn.Builder().NewQuery("SELECT remaining_qty FROM ticket_tiers WHERE id = {:id}").
		Bind(dbx.Params{"id": tierID}).
		Row(&remaining)
	require.NoError(t, err)
	return remaining
}

func CountSales(t testing.TB, conn store.Conn) int {
	t.Helper()

	var total int
	err := conn.Builder().NewQuery("SELECT COUNT(*) FROM sales").Row(&total)
	require.NoError(t, err)
	return total
}
