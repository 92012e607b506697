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

const salesTable = "sales"

var saleColumns = []string{
	"id", "partner", "status", "buyer_name", "buyer_mobile", "reference_last4",
	"screenshot_path", "tickets_data", "amount", "rejection_reason",
	"submitted_at", "approved_at", "created", "updated",
}

type SaleStore struct {
	conn Conn
}

func NewSaleStore(conn Conn) *SaleStore {
	return &SaleStore{conn: conn}
}

// Create inserts a new pending sale. The amount must match the line items.
func (s *SaleStore) Create(ctx context.Context, sale *models.Sale) error {
	if sale.Status != models.SaleStatusPending {
		return fmt.Errorf("create sale: %w: new sales must be pending", status.ErrInvalidStateTransition)
	}
	if len(sale.Tickets) == 0 {
		return status.NewValidationError("tickets", "at least one ticket is required")
	}
	if sale.Amount != sale.Tickets.Total() {
		return status.NewValidationError("amount", "amount does not match the ticket total")
	}

	now := types.NowDateTime()
	if sale.SubmittedAt.IsZero() {
		sale.SubmittedAt = now
	}
	sale.Created = now
	sale.Updated = now

	_, err := s.conn.Builder().Insert(salesTable, dbx.Params{
		"id":               sale.ID,
		"partner":          sale.PartnerID,
		"status":           string(sale.Status),
		"buyer_name":       sale.BuyerName,
		"buyer_mobile":     sale.BuyerMobile,
		"reference_last4":  sale.ReferenceLast4,
		"screenshot_path":  sale.ScreenshotPath,
		"tickets_data":     sale.Tickets,
		"amount":           sale.Amount,
		"rejection_reason": "",
		"submitted_at":     sale.SubmittedAt,
		"approved_at":      "",
		"created":          sale.Created,
		"updated":          sale.Updated,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("create sale: %w", err)
	}
	return nil
}

func (s *SaleStore) Get(ctx context.Context, id string) (*models.Sale, error) {
	return s.get(ctx, s.conn.Builder(), id)
}

func (s *SaleStore) get(ctx context.Context, b dbx.Builder, id string) (*models.Sale, error) {
	var sale models.Sale
	err := b.Select(saleColumns...).
		From(salesTable).
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&sale)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrSaleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sale %s: %w", id, err)
	}
	return &sale, nil
}

// ListByPartner returns the partner's sales, newest submission first.
func (s *SaleStore) ListByPartner(ctx context.Context, partnerID string) ([]models.Sale, error) {
	sales := []models.Sale{}
	err := s.conn.Builder().Select(saleColumns...).
		From(salesTable).
		Where(dbx.HashExp{"partner": partnerID}).
		OrderBy("submitted_at DESC", "created DESC").
		WithContext(ctx).
		All(&sales)
	if err != nil {
		return nil, fmt.Errorf("list sales for partner %s: %w", partnerID, err)
	}
	return sales, nil
}

func (s *SaleStore) List(ctx context.Context, filter models.SaleFilter) ([]models.Sale, error) {
	sales := []models.Sale{}
	q := s.conn.Builder().Select(saleColumns...).
		From(salesTable).
		OrderBy("submitted_at DESC", "created DESC")
	if filter.Status != "" {
		q = q.Where(dbx.HashExp{"status": string(filter.Status)})
	}
	if filter.Limit > 0 {
		q = q.Limit(int64(filter.Limit)).Offset(int64(filter.Offset))
	}

	if err := q.WithContext(ctx).All(&sales); err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return sales, nil
}

// Transition moves a pending sale to a terminal status.
type Transition struct {
	To     models.SaleStatus
	At     types.DateTime
	Reason string
}

// TransitionStatus applies t only while the row is still pending, so of two
// racing callers exactly one sees a changed row. The loser gets
// ErrAlreadyProcessed.
func (s *SaleStore) TransitionStatus(ctx context.Context, tx dbx.Builder, id string, t Transition) error {
	if !t.To.IsTerminal() {
		return fmt.Errorf("transition %s: %w: %s", id, status.ErrInvalidStateTransition, t.To)
	}

	params := dbx.Params{
		"status":  string(t.To),
		"updated": t.At,
	}
	switch t.To {
	case models.SaleStatusApproved:
		params["approved_at"] = t.At
	case models.SaleStatusRejected:
		params["rejection_reason"] = t.Reason
	}

	res, err := tx.Update(salesTable, params, dbx.HashExp{
		"id":     id,
		"status": string(models.SaleStatusPending),
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("transition %s: %w", id, err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.get(ctx, tx, id); err != nil {
			return err
		}
		return status.ErrAlreadyProcessed
	}
	return nil
}

// PendingEdit holds the validated replacement values for a self-edit.
type PendingEdit struct {
	BuyerName      string
	BuyerMobile    string
	ReferenceLast4 string
	ScreenshotPath string
	Tickets        models.LineItems
	Amount         int64
}

// UpdatePending rewrites the buyer and ticket fields of a sale the partner
// owns. The ownership and pending checks are part of the write.
func (s *SaleStore) UpdatePending(ctx context.Context, id, partnerID string, edit PendingEdit) error {
	if len(edit.Tickets) == 0 {
		return status.NewValidationError("tickets", "at least one ticket is required")
	}
	if edit.Amount != edit.Tickets.Total() {
		return status.NewValidationError("amount", "amount does not match the ticket total")
	}

	b := s.conn.Builder()
	res, err := b.Update(salesTable, dbx.Params{
		"buyer_name":      edit.BuyerName,
		"buyer_mobile":    edit.BuyerMobile,
		"reference_last4": edit.ReferenceLast4,
		"screenshot_path": edit.ScreenshotPath,
		"tickets_data":    edit.Tickets,
		"amount":          edit.Amount,
		"updated":         types.NowDateTime(),
	}, dbx.HashExp{
		"id":      id,
		"partner": partnerID,
		"status":  string(models.SaleStatusPending),
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("update pending sale %s: %w", id, err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	sale, err := s.get(ctx, b, id)
	if err != nil {
		return err
	}
	if sale.PartnerID != partnerID {
		return status.ErrUnauthorized
	}
	_, err = sale.Status.Next(models.SaleEventSelfEdit)
	return err
}

// CountByStatus returns the number of sales per status.
func (s *SaleStore) CountByStatus(ctx context.Context) (map[models.SaleStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}
	err := s.conn.Builder().NewQuery(
		"SELECT status, COUNT(*) AS total FROM sales GROUP BY status",
	).WithContext(ctx).All(&rows)
	if err != nil {
		return nil, fmt.Errorf("count sales: %w", err)
	}

	counts := map[models.SaleStatus]int{
		models.SaleStatusPending:  0,
		models.SaleStatusApproved: 0,
		models.SaleStatusRejected: 0,
	}
	for _, row := range rows {
		counts[models.SaleStatus(row.Status)] = row.Total
	}
	return counts, nil
}
