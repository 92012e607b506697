package services

import (
	"fmt"
	"log/slog"

	"ticket-portal/models"

	pubnub "github.com/pubnub/go/v7"
)

// Publisher sends a realtime message to a channel.
type Publisher interface {
	Publish(channel string, message any) error
}

type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(publishKey, subscribeKey, secretKey, userID string) *PubNubPublisher {
	cfg := pubnub.NewConfigWithUserId(pubnub.UserId(userID))
	cfg.PublishKey = publishKey
	cfg.SubscribeKey = subscribeKey
	cfg.SecretKey = secretKey

	return &PubNubPublisher{pn: pubnub.NewPubNub(cfg)}
}

func (p *PubNubPublisher) Publish(channel string, message any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

// NotifyService tells a partner's dashboard when one of their sales is
// decided. It is best effort: failures are logged and dropped.
type NotifyService struct {
	publisher Publisher
	exponent  int32
}

func NewNotifyService(publisher Publisher, currencyExponent int32) *NotifyService {
	return &NotifyService{publisher: publisher, exponent: currencyExponent}
}

func PartnerChannel(partnerID string) string {
	return fmt.Sprintf("partner-%s", partnerID)
}

func (n *NotifyService) SaleDecided(sale *models.Sale) {
	if n == nil || n.publisher == nil || sale == nil || sale.PartnerID == "" {
		return
	}

	msgType := "sale_approved"
	if sale.Status == models.SaleStatusRejected {
		msgType = "sale_rejected"
	}

	message := map[string]any{
		"type":           msgType,
		"sale_id":        sale.ID,
		"status":         sale.Status,
		"buyer_name":     sale.BuyerName,
		"amount":         sale.Amount,
		"amount_display": models.FormatAmount(sale.Amount, n.exponent),
		"tickets":        sale.Tickets.Quantity(),
	}
	if sale.Status == models.SaleStatusRejected {
		message["rejection_reason"] = sale.RejectionReason
	}

	if err := n.publisher.Publish(PartnerChannel(sale.PartnerID), message); err != nil {
		slog.Error("n.publisher.Publish()", "sale_id", sale.ID, "partner_id", sale.PartnerID, "error", err)
	}
}
