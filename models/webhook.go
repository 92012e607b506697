package models

import (
	"github.com/pocketbase/pocketbase/tools/types"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

const WebhookEventSaleApproved = "sale.approved"

// WebhookLog is one delivery sequence for a sale. Retries update the same
// row.
type WebhookLog struct {
	ID             string         `db:"id" json:"id"`
	SaleID         string         `db:"sale" json:"sale"`
	Status         DeliveryStatus `db:"status" json:"status"`
	Attempts       int            `db:"attempts" json:"attempts"`
	LastAttemptAt  types.DateTime `db:"last_attempt_at" json:"last_attempt_at"`
	ResponseStatus int            `db:"response_status" json:"response_status"`
	ResponseBody   string         `db:"response_body" json:"response_body"`
	ErrorMessage   string         `db:"error_message" json:"error_message"`
	Created        types.DateTime `db:"created" json:"created"`
	Updated        types.DateTime `db:"updated" json:"updated"`
}

type WebhookPartner struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

type WebhookBuyer struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

// WebhookPayload is the body POSTed to the configured endpoint.
type WebhookPayload struct {
	Event          string          `json:"event"`
	SaleID         string          `json:"sale_id"`
	Timestamp      string          `json:"timestamp"`
	Partner        *WebhookPartner `json:"partner"`
	Buyer          WebhookBuyer    `json:"buyer"`
	Amount         int64           `json:"amount"`
	ReferenceLast4 string          `json:"reference_last4"`
	Tickets        []LineItem      `json:"tickets"`
	ScreenshotURL  string          `json:"screenshot_url"`
}
