package services

import (
	"context"

	"ticket-portal/internal/status"
	"ticket-portal/internal/store"
	"ticket-portal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// SaleQueryService serves read access to sales and their delivery history.
// Admins see everything; partners see only sales they referred.
type SaleQueryService struct {
	sales *store.SaleStore
	logs  *store.WebhookLogStore
}

func NewSaleQueryService(sales *store.SaleStore, logs *store.WebhookLogStore) *SaleQueryService {
	return &SaleQueryService{sales: sales, logs: logs}
}

func (s *SaleQueryService) ListSales(ctx context.Context, actor *models.Actor, filter models.SaleFilter) ([]models.Sale, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, status.NewValidationError("status", "must be pending, approved or rejected")
	}

	switch {
	case actor.IsAdmin():
		if filter.Limit <= 0 {
			filter.Limit = defaultPageSize
		}
		if filter.Limit > maxPageSize {
			filter.Limit = maxPageSize
		}
		if filter.Offset < 0 {
			filter.Offset = 0
		}
		return s.sales.List(ctx, filter)
	case actor.IsPartner():
		sales, err := s.sales.ListByPartner(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if filter.Status == "" {
			return sales, nil
		}
		out := sales[:0]
		for _, sale := range sales {
			if sale.Status == filter.Status {
				out = append(out, sale)
			}
		}
		return out, nil
	default:
		return nil, status.ErrUnauthorized
	}
}

// GetSale hides sales owned by someone else behind ErrSaleNotFound.
func (s *SaleQueryService) GetSale(ctx context.Context, actor *models.Actor, saleID string) (*models.Sale, error) {
	if !actor.IsAdmin() && !actor.IsPartner() {
		return nil, status.ErrUnauthorized
	}

	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if actor.IsPartner() && !actor.Owns(sale) {
		return nil, status.ErrSaleNotFound
	}
	return sale, nil
}

func (s *SaleQueryService) WebhookLogs(ctx context.Context, actor *models.Actor, saleID string) ([]models.WebhookLog, error) {
	if !actor.IsAdmin() {
		return nil, status.ErrUnauthorized
	}
	if _, err := s.sales.Get(ctx, saleID); err != nil {
		return nil, err
	}
	return s.logs.ListBySale(ctx, saleID)
}
