package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ticket-portal/internal/status"
	"ticket-portal/internal/store"
	"ticket-portal/models"
	"ticket-portal/monitoring"
	"ticket-portal/utils"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/tools/types"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxResponseBody = 1000

	HeaderSignature = "X-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-Delivery"
)

type WebhookSettings struct {
	URL               string
	Secret            string
	Timeout           time.Duration
	MaxAttempts       int
	Backoff           time.Duration
	ScreenshotBaseURL string
}

// DeliveryOutcome summarizes one delivery sequence.
type DeliveryOutcome struct {
	LogID          string                `json:"log_id"`
	Status         models.DeliveryStatus `json:"status"`
	Attempts       int                   `json:"attempts"`
	ResponseStatus int                   `json:"response_status"`
	Error          string                `json:"error,omitempty"`
}

type WebhookService struct {
	settings WebhookSettings
	client   *resty.Client
	breaker  *utils.CircuitBreaker
	sales    *store.SaleStore
	profiles *store.ProfileStore
	logs     *store.WebhookLogStore

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewWebhookService(settings WebhookSettings, sales *store.SaleStore, profiles *store.ProfileStore, logs *store.WebhookLogStore, breaker *utils.CircuitBreaker) *WebhookService {
	if settings.MaxAttempts < 1 {
		settings.MaxAttempts = 3
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Backoff <= 0 {
		settings.Backoff = time.Second
	}

	client := resty.New().
		SetTimeout(settings.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "ticket-portal-webhook/1.0")

	return &WebhookService{
		settings: settings,
		client:   client,
		breaker:  breaker,
		sales:    sales,
		profiles: profiles,
		logs:     logs,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Dispatch delivers the sale.approved notification for saleID. The log entry
// is written before the first request and updated after every attempt. A
// failed delivery is reported through the outcome, not the error; the error
// is reserved for problems that prevented a delivery sequence from running.
func (s *WebhookService) Dispatch(ctx context.Context, saleID string) (*DeliveryOutcome, error) {
	ctx, span := tracer.Start(ctx, "WebhookService.Dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("sale.id", saleID))

	sale, err := s.sales.Get(ctx, saleID)
	if err != nil {
		return nil, err
	}

	entry := &models.WebhookLog{
		SaleID:        sale.ID,
		Status:        models.DeliveryPending,
		Attempts:      1,
		LastAttemptAt: types.NowDateTime(),
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		slog.Error("s.logs.Create()", "sale_id", sale.ID, "error", err)
		return nil, err
	}

	if s.settings.URL == "" {
		entry.Status = models.DeliveryFailed
		entry.ErrorMessage = status.ErrWebhookNotConfigured.Error()
		s.finish(ctx, entry)
		return outcomeOf(entry), status.ErrWebhookNotConfigured
	}

	body, err := s.buildBody(ctx, sale)
	if err != nil {
		entry.Status = models.DeliveryFailed
		entry.ErrorMessage = err.Error()
		s.finish(ctx, entry)
		return outcomeOf(entry), err
	}

	started := s.now()
	signature := utils.SignatureHeader(body, []byte(s.settings.Secret))
	deliveryID := uuid.NewString()

	for attempt := 1; attempt <= s.settings.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, time.Duration(attempt-1)*s.settings.Backoff); err != nil {
				entry.ErrorMessage = err.Error()
				break
			}
			entry.Attempts = attempt
			entry.LastAttemptAt = types.NowDateTime()
			if err := s.logs.Update(ctx, entry); err != nil {
				slog.Error("s.logs.Update()", "sale_id", sale.ID, "attempt", attempt, "error", err)
			}
		}

		code, respBody, err := s.post(ctx, body, signature, deliveryID)
		if isBreakerRejection(err) {
			// Nothing was sent, so this attempt does not count.
			entry.Attempts = attempt - 1
			entry.ErrorMessage = "delivery skipped: " + err.Error()
			monitoring.TrackWebhookAttempt("skipped")
			slog.Warn("webhook attempt skipped", "sale_id", sale.ID, "attempt", attempt, "error", err)
			break
		}
		entry.ResponseStatus = code
		entry.ResponseBody = truncate(respBody, maxResponseBody)

		if err == nil {
			monitoring.TrackWebhookAttempt("success")
			entry.Status = models.DeliverySuccess
			entry.ErrorMessage = ""
			break
		}

		monitoring.TrackWebhookAttempt("failure")
		entry.ErrorMessage = err.Error()
		slog.Warn("webhook attempt failed",
			"sale_id", sale.ID,
			"attempt", attempt,
			"status_code", code,
			"error", err,
		)
	}

	if entry.Status != models.DeliverySuccess {
		entry.Status = models.DeliveryFailed
	}
	s.finish(ctx, entry)
	monitoring.TrackWebhookDelivery(entry.Status, s.now().Sub(started))

	span.SetAttributes(
		attribute.String("webhook.status", string(entry.Status)),
		attribute.Int("webhook.attempts", entry.Attempts),
	)
	return outcomeOf(entry), nil
}

// finish writes the terminal state of the log entry. It uses a detached
// context so a cancelled caller still leaves an accurate log behind.
func (s *WebhookService) finish(ctx context.Context, entry *models.WebhookLog) {
	if err := s.logs.Update(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("s.logs.Update()", "sale_id", entry.SaleID, "log_id", entry.ID, "error", err)
	}
	if entry.Status == models.DeliveryFailed {
		slog.Error("webhook delivery failed",
			"sale_id", entry.SaleID,
			"attempts", entry.Attempts,
			"status_code", entry.ResponseStatus,
			"error", entry.ErrorMessage,
		)
	}
}

func (s *WebhookService) post(ctx context.Context, body []byte, signature, deliveryID string) (int, string, error) {
	send := func() (any, error) {
		resp, err := s.client.R().
			SetContext(ctx).
			SetHeader(HeaderSignature, signature).
			SetHeader(HeaderEvent, models.WebhookEventSaleApproved).
			SetHeader(HeaderDelivery, deliveryID).
			SetBody(body).
			Post(s.settings.URL)
		if err != nil {
			return resp, err
		}
		if !resp.IsSuccess() {
			return resp, fmt.Errorf("webhook endpoint responded with status %d", resp.StatusCode())
		}
		return resp, nil
	}

	var (
		result any
		err    error
	)
	if s.breaker != nil {
		result, err = s.breaker.Execute(ctx, send)
	} else {
		result, err = send()
	}

	resp, _ := result.(*resty.Response)
	if resp == nil {
		return 0, "", err
	}
	return resp.StatusCode(), resp.String(), err
}

func (s *WebhookService) buildBody(ctx context.Context, sale *models.Sale) ([]byte, error) {
	payload, err := s.BuildPayload(ctx, sale)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}
	return body, nil
}

// BuildPayload assembles the notification body. A removed partner is sent as
// null.
func (s *WebhookService) BuildPayload(ctx context.Context, sale *models.Sale) (*models.WebhookPayload, error) {
	payload := &models.WebhookPayload{
		Event:          models.WebhookEventSaleApproved,
		SaleID:         sale.ID,
		Timestamp:      s.now().UTC().Format(time.RFC3339),
		Buyer:          models.WebhookBuyer{Name: sale.BuyerName, Mobile: sale.BuyerMobile},
		Amount:         sale.Amount,
		ReferenceLast4: sale.ReferenceLast4,
		Tickets:        sale.Tickets,
		ScreenshotURL:  s.screenshotURL(sale.ScreenshotPath),
	}
	if payload.Tickets == nil {
		payload.Tickets = []models.LineItem{}
	}

	partner, err := s.profiles.Get(ctx, sale.PartnerID)
	if err != nil {
		return nil, err
	}
	if partner != nil {
		payload.Partner = &models.WebhookPartner{
			ID:     partner.ID,
			Name:   partner.Name,
			Mobile: partner.Mobile,
		}
	}
	return payload, nil
}

func (s *WebhookService) screenshotURL(path string) string {
	if path == "" || s.settings.ScreenshotBaseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return s.settings.ScreenshotBaseURL + "/" + strings.TrimLeft(path, "/")
}

func outcomeOf(entry *models.WebhookLog) *DeliveryOutcome {
	return &DeliveryOutcome{
		LogID:          entry.ID,
		Status:         entry.Status,
		Attempts:       entry.Attempts,
		ResponseStatus: entry.ResponseStatus,
		Error:          entry.ErrorMessage,
	}
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, utils.ErrOpenState) || errors.Is(err, utils.ErrTooManyRequests)
}

// IsDeliveryError reports whether err came from the webhook subsystem rather
// than the sale lookup.
func IsDeliveryError(err error) bool {
	return errors.Is(err, status.ErrWebhookNotConfigured) || isBreakerRejection(err)
}
