package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ticket-portal/internal/status"
	"ticket-portal/internal/store/storetest"
	"ticket-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalService_ApproveSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 10, 10)
	vip := storetest.SeedTier(t, f.conn, "vip", "VIP", 999, 5, 5)
	f.pendingSale(t, "TK00000001", line(regular, 2), line(vip, 1))

	sale, err := f.approval.ApproveSale(ctx, "TK00000001", adminActor)
	require.NoError(t, err)

	assert.Equal(t, models.SaleStatusApproved, sale.Status)
	assert.False(t, sale.ApprovedAt.IsZero())
	assert.Equal(t, int64(2397), sale.Amount)
	assert.Equal(t, 8, storetest.Remaining(t, f.conn, "reg"))
	assert.Equal(t, 4, storetest.Remaining(t, f.conn, "vip"))
	assert.Equal(t, []string{"TK00000001"}, f.queue.queued())

	assert.Eventually(t, func() bool { return len(f.publisher.messages()) == 1 }, time.Second, 10*time.Millisecond)
	msg := f.publisher.messages()[0]
	assert.Equal(t, "partner-p1", msg.channel)
	assert.Equal(t, "sale_approved", msg.message["type"])
	assert.Equal(t, "23.97", msg.message["amount_display"])
}

func TestApprovalService_ApproveSale_Unauthorized(t *testing.T) {
	tests := []struct {
		name  string
		actor *models.Actor
	}{
		{"nil actor", nil},
		{"partner", partnerActor},
		{"inactive admin", &models.Actor{ID: "admin2", Role: models.RoleAdmin, IsActive: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 10, 10)
			f.pendingSale(t, "TK00000001", line(regular, 1))

			_, err := f.approval.ApproveSale(context.Background(), "TK00000001", tt.actor)
			assert.ErrorIs(t, err, status.ErrUnauthorized)

			sale, err := f.sales.Get(context.Background(), "TK00000001")
			require.NoError(t, err)
			assert.Equal(t, models.SaleStatusPending, sale.Status)
			assert.Equal(t, 10, storetest.Remaining(t, f.conn, "reg"))
			assert.Empty(t, f.queue.queued())
		})
	}
}

func TestApprovalService_ApproveSale_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.approval.ApproveSale(context.Background(), "TKMISSING", adminActor)
	assert.ErrorIs(t, err, status.ErrSaleNotFound)
}

func TestApprovalService_ApproveSale_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 10, 10)
	f.pendingSale(t, "TK00000001", line(regular, 3))

	_, err := f.approval.ApproveSale(ctx, "TK00000001", adminActor)
	require.NoError(t, err)

	_, err = f.approval.ApproveSale(ctx, "TK00000001", adminActor)
	assert.ErrorIs(t, err, status.ErrAlreadyProcessed)

	_, err = f.approval.RejectSale(ctx, "TK00000001", adminActor, "late")
	assert.ErrorIs(t, err, status.ErrAlreadyProcessed)

	assert.Equal(t, 7, storetest.Remaining(t, f.conn, "reg"))
	assert.Len(t, f.queue.queued(), 1)
}

func TestApprovalService_ApproveSale_ShortTierRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 10, 10)
	vip := storetest.SeedTier(t, f.conn, "vip", "VIP", 999, 1, 5)
	f.pendingSale(t, "TK00000001", line(regular, 2), line(vip, 3))

	_, err := f.approval.ApproveSale(ctx, "TK00000001", adminActor)
	require.ErrorIs(t, err, status.ErrInsufficientInventory)

	var inv *status.InsufficientInventoryError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "vip", inv.TierID)
	assert.Equal(t, 3, inv.Requested)
	assert.Equal(t, 1, inv.Remaining)

	// The regular decrement ran before the failure and must be undone.
	assert.Equal(t, 10, storetest.Remaining(t, f.conn, "reg"))
	assert.Equal(t, 1, storetest.Remaining(t, f.conn, "vip"))

	sale, err := f.sales.Get(ctx, "TK00000001")
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusPending, sale.Status)
	assert.True(t, sale.ApprovedAt.IsZero())
	assert.Empty(t, f.queue.queued())
}

func TestApprovalService_ApproveSale_DeletedTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pendingSale(t, "TK00000001", models.LineItem{TierID: "gone", TierName: "Gone", Price: 100, Quantity: 1})

	_, err := f.approval.ApproveSale(ctx, "TK00000001", adminActor)
	assert.ErrorIs(t, err, status.ErrTierNotFound)

	sale, err := f.sales.Get(ctx, "TK00000001")
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusPending, sale.Status)
}

func TestApprovalService_ApproveSale_QueueFailureKeepsApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 10, 10)
	f.pendingSale(t, "TK00000001", line(regular, 1))
	f.queue.err = status.ErrQueueFull

	sale, err := f.approval.ApproveSale(ctx, "TK00000001", adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusApproved, sale.Status)
	assert.Equal(t, 9, storetest.Remaining(t, f.conn, "reg"))
}

func TestApprovalService_ApproveSale_NoOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 5, 5)

	const sales = 12
	for i := 0; i < sales; i++ {
		f.pendingSale(t, saleID(i), line(regular, 1))
	}

	var (
		wg        sync.WaitGroup
		approved  atomic.Int32
		shortages atomic.Int32
	)
	for i := 0; i < sales; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.approval.ApproveSale(ctx, id, adminActor)
			switch {
			case err == nil:
				approved.Add(1)
			case errors.Is(err, status.ErrInsufficientInventory):
				shortages.Add(1)
			default:
				t.Errorf("unexpected error for %s: %v", id, err)
			}
		}(saleID(i))
	}
	wg.Wait()

	assert.Equal(t, int32(5), approved.Load())
	assert.Equal(t, int32(sales-5), shortages.Load())
	assert.Equal(t, 0, storetest.Remaining(t, f.conn, "reg"))
	assert.Len(t, f.queue.queued(), 5)
}

func TestApprovalService_ApproveRejectRace(t *testing.T) {
	for round := 0; round < 10; round++ {
		f := newFixture(t)
		ctx := context.Background()
		regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 10, 10)
		f.pendingSale(t, "TK00000001", line(regular, 4))

		var (
			wg                    sync.WaitGroup
			approveErr, rejectErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, approveErr = f.approval.ApproveSale(ctx, "TK00000001", adminActor)
		}()
		go func() {
			defer wg.Done()
			_, rejectErr = f.approval.RejectSale(ctx, "TK00000001", adminActor, "duplicate transfer")
		}()
		wg.Wait()

		sale, err := f.sales.Get(ctx, "TK00000001")
		require.NoError(t, err)

		if approveErr == nil {
			require.ErrorIs(t, rejectErr, status.ErrAlreadyProcessed)
			assert.Equal(t, models.SaleStatusApproved, sale.Status)
			assert.Equal(t, 6, storetest.Remaining(t, f.conn, "reg"))
			assert.Len(t, f.queue.queued(), 1)
		} else {
			require.ErrorIs(t, approveErr, status.ErrAlreadyProcessed)
			require.NoError(t, rejectErr)
			assert.Equal(t, models.SaleStatusRejected, sale.Status)
			assert.Equal(t, 10, storetest.Remaining(t, f.conn, "reg"))
			assert.Empty(t, f.queue.queued())
		}
	}
}

func TestApprovalService_RejectSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 10, 10)
	f.pendingSale(t, "TK00000001", line(regular, 2))

	_, err := f.approval.RejectSale(ctx, "TK00000001", adminActor, "   ")
	var verr *status.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "reason")

	_, err = f.approval.RejectSale(ctx, "TK00000001", partnerActor, "nope")
	assert.ErrorIs(t, err, status.ErrUnauthorized)

	sale, err := f.approval.RejectSale(ctx, "TK00000001", adminActor, "  transfer not found  ")
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusRejected, sale.Status)
	assert.Equal(t, "transfer not found", sale.RejectionReason)
	assert.True(t, sale.ApprovedAt.IsZero())
	assert.Equal(t, 10, storetest.Remaining(t, f.conn, "reg"))
	assert.Empty(t, f.queue.queued())

	assert.Eventually(t, func() bool { return len(f.publisher.messages()) == 1 }, time.Second, 10*time.Millisecond)
	msg := f.publisher.messages()[0]
	assert.Equal(t, "sale_rejected", msg.message["type"])
	assert.Equal(t, "transfer not found", msg.message["rejection_reason"])

	_, err = f.approval.RejectSale(ctx, "TK00000001", adminActor, "again")
	assert.ErrorIs(t, err, status.ErrAlreadyProcessed)
}

func TestApprovalService_UpdatePendingSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 10, 10)
	vip := storetest.SeedTier(t, f.conn, "vip", "VIP", 999, 10, 10)
	f.pendingSale(t, "TK00000001", line(regular, 1))

	edit := SaleInput{
		BuyerName:      "  Somchai  ",
		BuyerMobile:    "9876543210",
		ReferenceLast4: "1234",
		Tickets:        []TicketRequest{{TierID: "reg", Quantity: 2}, {TierID: "vip", Quantity: 1}},
		Amount:         int64Ptr(2397),
	}

	t.Run("other partner", func(t *testing.T) {
		_, err := f.approval.UpdatePendingSale(ctx, "TK00000001", otherPartner, edit)
		assert.ErrorIs(t, err, status.ErrUnauthorized)
	})

	t.Run("admin cannot self edit", func(t *testing.T) {
		_, err := f.approval.UpdatePendingSale(ctx, "TK00000001", adminActor, edit)
		assert.ErrorIs(t, err, status.ErrUnauthorized)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		bad := edit
		bad.Amount = int64Ptr(2000)
		_, err := f.approval.UpdatePendingSale(ctx, "TK00000001", partnerActor, bad)
		var verr *status.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "amount")
	})

	t.Run("owner", func(t *testing.T) {
		sale, err := f.approval.UpdatePendingSale(ctx, "TK00000001", partnerActor, edit)
		require.NoError(t, err)
		assert.Equal(t, "Somchai", sale.BuyerName)
		assert.Equal(t, int64(2397), sale.Amount)
		require.Len(t, sale.Tickets, 2)
		assert.Equal(t, vip.Name, sale.Tickets[1].TierName)
		assert.Equal(t, models.SaleStatusPending, sale.Status)
	})

	t.Run("after decision", func(t *testing.T) {
		_, err := f.approval.ApproveSale(ctx, "TK00000001", adminActor)
		require.NoError(t, err)

		_, err = f.approval.UpdatePendingSale(ctx, "TK00000001", partnerActor, edit)
		assert.ErrorIs(t, err, status.ErrInvalidStateTransition)
	})
}

func TestApprovalService_ReplayWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 10, 10)
	f.pendingSale(t, "TK00000001", line(regular, 1))

	err := f.approval.ReplayWebhook(ctx, "TK00000001", adminActor)
	assert.ErrorIs(t, err, status.ErrInvalidStateTransition)

	_, err = f.approval.ApproveSale(ctx, "TK00000001", adminActor)
	require.NoError(t, err)

	assert.ErrorIs(t, f.approval.ReplayWebhook(ctx, "TK00000001", partnerActor), status.ErrUnauthorized)
	require.NoError(t, f.approval.ReplayWebhook(ctx, "TK00000001", adminActor))
	assert.Equal(t, []string{"TK00000001", "TK00000001"}, f.queue.queued())
}

func saleID(i int) string {
	return "TK" + string(rune('A'+i/26)) + string(rune('A'+i%26)) + "000000"
}

func TestApproveSale_DeliversWebhook(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := newFixture(t)
	ctx := context.Background()
	regular := storetest.SeedTier(t, f.conn, "reg", "Regular", 699, 5, 5)
	f.pendingSale(t, "TK0000AA01", line(regular, 2))

	webhooks := NewWebhookService(WebhookSettings{
		URL:         srv.URL,
		Secret:      testSecret,
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		Backoff:     time.Second,
	}, f.sales, f.profiles, f.logs, nil)
	webhooks.sleep = (&sleepRecorder{}).sleep

	queue := NewChannelQueue(webhooks, 1, 4)
	approval := NewApprovalService(f.conn, f.tiers, f.sales, queue, NewNotifyService(f.publisher, 2))

	sale, err := approval.ApproveSale(ctx, "TK0000AA01", adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusApproved, sale.Status)

	_, err = approval.ApproveSale(ctx, "TK0000AA01", adminActor)
	assert.ErrorIs(t, err, status.ErrAlreadyProcessed)

	queue.Close()

	assert.Equal(t, 3, storetest.Remaining(t, f.conn, "reg"))
	logs, err := f.logs.ListBySale(ctx, "TK0000AA01")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.DeliverySuccess, logs[0].Status)
	assert.Equal(t, 3, logs[0].Attempts)
	assert.Equal(t, http.StatusOK, logs[0].ResponseStatus)
	assert.Equal(t, int32(3), calls.Load())
}
