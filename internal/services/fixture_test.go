package services

import (
	"context"
	"sync"
	"testing"

	"ticket-portal/internal/store"
	"ticket-portal/internal/store/storetest"
	"ticket-portal/models"
)

var (
	adminActor   = &models.Actor{ID: "admin1", Role: models.RoleAdmin, IsActive: true}
	partnerActor = &models.Actor{ID: "p1", Role: models.RolePartner, IsActive: true}
	otherPartner = &models.Actor{ID: "p2", Role: models.RolePartner, IsActive: true}
)

type fixture struct {
	conn      *store.SQLConn
	tiers     *store.TierStore
	sales     *store.SaleStore
	profiles  *store.ProfileStore
	logs      *store.WebhookLogStore
	queue     *recordingQueue
	publisher *fakePublisher
	approval  *ApprovalService
	submit    *SubmissionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := storetest.Open(t)
	f := &fixture{
		conn:      conn,
		tiers:     store.NewTierStore(conn),
		sales:     store.NewSaleStore(conn),
		profiles:  store.NewProfileStore(conn),
		logs:      store.NewWebhookLogStore(conn),
		queue:     &recordingQueue{},
		publisher: &fakePublisher{},
	}
	f.approval = NewApprovalService(conn, f.tiers, f.sales, f.queue, NewNotifyService(f.publisher, 2))
	f.submit = NewSubmissionService(f.sales, f.tiers, f.profiles)

	storetest.SeedProfile(t, conn, models.Profile{ID: "p1", Name: "Noy", Mobile: "2055551234", Role: models.RolePartner, IsActive: true, PartnerCode: "AB12"})
	storetest.SeedProfile(t, conn, models.Profile{ID: "p2", Name: "Keo", Mobile: "2055559876", Role: models.RolePartner, IsActive: true, PartnerCode: "CD34"})
	storetest.SeedProfile(t, conn, models.Profile{ID: "p3", Name: "Dara", Mobile: "2055550000", Role: models.RolePartner, IsActive: false, PartnerCode: "OFF1"})
	storetest.SeedProfile(t, conn, models.Profile{ID: "admin1", Name: "Admin", Role: models.RoleAdmin, IsActive: true, PartnerCode: "ADM1"})
	return f
}

// pendingSale seeds a pending sale owned by p1 with the given lines.
func (f *fixture) pendingSale(t *testing.T, id string, items ...models.LineItem) models.Sale {
	t.Helper()
	return storetest.SeedSale(t, f.conn, models.Sale{
		ID:             id,
		PartnerID:      "p1",
		BuyerName:      "Buyer " + id,
		BuyerMobile:    "9876543210",
		ReferenceLast4: "0099",
		Tickets:        items,
	})
}

func line(tier models.TicketTier, qty int) models.LineItem {
	return models.LineItem{TierID: tier.ID, TierName: tier.Name, Price: tier.Price, Quantity: qty}
}

type recordingQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, saleID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, saleID)
	return nil
}

func (q *recordingQueue) queued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

type published struct {
	channel string
	message map[string]any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(channel string, message any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, _ := message.(map[string]any)
	p.msgs = append(p.msgs, published{channel: channel, message: msg})
	return p.err
}

func (p *fakePublisher) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

func int64Ptr(v int64) *int64 { return &v }
