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

const webhookLogsTable = "webhook_logs"

var webhookLogColumns = []string{
	"id", "sale", "status", "attempts", "last_attempt_at", "response_status",
	"response_body", "error_message", "created", "updated",
}

type WebhookLogStore struct {
	conn Conn
}

func NewWebhookLogStore(conn Conn) *WebhookLogStore {
	return &WebhookLogStore{conn: conn}
}

func (s *WebhookLogStore) Create(ctx context.Context, entry *models.WebhookLog) error {
	if entry.ID == "" {
		entry.ID = newID()
	}
	now := types.NowDateTime()
	entry.Created = now
	entry.Updated = now

	_, err := s.conn.Builder().Insert(webhookLogsTable, dbx.Params{
		"id":              entry.ID,
		"sale":            entry.SaleID,
		"status":          string(entry.Status),
		"attempts":        entry.Attempts,
		"last_attempt_at": entry.LastAttemptAt,
		"response_status": entry.ResponseStatus,
		"response_body":   entry.ResponseBody,
		"error_message":   entry.ErrorMessage,
		"created":         entry.Created,
		"updated":         entry.Updated,
	}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("create webhook log: %w", err)
	}
	return nil
}

func (s *WebhookLogStore) Update(ctx context.Context, entry *models.WebhookLog) error {
	entry.Updated = types.NowDateTime()

	res, err := s.conn.Builder().Update(webhookLogsTable, dbx.Params{
		"status":          string(entry.Status),
		"attempts":        entry.Attempts,
		"last_attempt_at": entry.LastAttemptAt,
		"response_status": entry.ResponseStatus,
		"response_body":   entry.ResponseBody,
		"error_message":   entry.ErrorMessage,
		"updated":         entry.Updated,
	}, dbx.HashExp{"id": entry.ID}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("update webhook log %s: %w", entry.ID, err)
	}

	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return status.ErrWebhookLogNotFound
	}
	return nil
}

func (s *WebhookLogStore) Get(ctx context.Context, id string) (*models.WebhookLog, error) {
	var entry models.WebhookLog
	err := s.conn.Builder().Select(webhookLogColumns...).
		From(webhookLogsTable).
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&entry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrWebhookLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook log %s: %w", id, err)
	}
	return &entry, nil
}

// ListBySale returns every delivery sequence for the sale, newest first.
func (s *WebhookLogStore) ListBySale(ctx context.Context, saleID string) ([]models.WebhookLog, error) {
	entries := []models.WebhookLog{}
	err := s.conn.Builder().Select(webhookLogColumns...).
		From(webhookLogsTable).
		Where(dbx.HashExp{"sale": saleID}).
		OrderBy("created DESC", "id DESC").
		WithContext(ctx).
		All(&entries)
	if err != nil {
		return nil, fmt.Errorf("list webhook logs for %s: %w", saleID, err)
	}
	return entries, nil
}
