package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"ticket-portal/models"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeCounter struct {
	counts map[models.SaleStatus]int
	err    error
}

func (f fakeCounter) CountByStatus(context.Context) (map[models.SaleStatus]int, error) {
	return f.counts, f.err
}

func TestMonitor_Collect(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectLLen("webhook:dispatch").SetVal(7)

	m := NewMonitor(fakeCounter{counts: map[models.SaleStatus]int{
		models.SaleStatusPending:  4,
		models.SaleStatusApproved: 2,
	}}, db, "webhook:dispatch")
	m.Collect(context.Background())

	assert.Equal(t, 4.0, testutil.ToFloat64(salesByStatus.WithLabelValues("pending")))
	assert.Equal(t, 2.0, testutil.ToFloat64(salesByStatus.WithLabelValues("approved")))
	assert.Equal(t, 7.0, testutil.ToFloat64(webhookQueueDepth))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitor_CollectWithoutRedis(t *testing.T) {
	m := NewMonitor(fakeCounter{err: errors.New("db down")}, nil, "")

	assert.NotPanics(t, func() { m.Collect(context.Background()) })
}

func TestTrackers(t *testing.T) {
	before := testutil.ToFloat64(saleDecisions.WithLabelValues("approve", "approved"))
	TrackDecision("approve", "approved")
	assert.Equal(t, before+1, testutil.ToFloat64(saleDecisions.WithLabelValues("approve", "approved")))

	before = testutil.ToFloat64(inventoryConflicts.WithLabelValues("t1"))
	TrackInventoryConflict("t1")
	assert.Equal(t, before+1, testutil.ToFloat64(inventoryConflicts.WithLabelValues("t1")))

	before = testutil.ToFloat64(webhookAttempts.WithLabelValues("success"))
	TrackWebhookAttempt("success")
	assert.Equal(t, before+1, testutil.ToFloat64(webhookAttempts.WithLabelValues("success")))

	assert.NotPanics(t, func() {
		TrackSubmission("public", "created")
		TrackWebhookDelivery(models.DeliverySuccess, 120*time.Millisecond)
	})
}
