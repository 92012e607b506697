package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ticket-portal/internal/status"
	"ticket-portal/internal/store"
	"ticket-portal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	mobileRegex    = regexp.MustCompile(`^\d{10}$`)
	referenceRegex = regexp.MustCompile(`^\d{4}$`)
)

type TicketRequest struct {
	TierID   string `json:"tier_id"`
	Quantity int    `json:"quantity"`
}

func (r TicketRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TierID, validation.Required),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
	)
}

// SaleInput is the buyer and ticket part of a submission or self-edit.
type SaleInput struct {
	BuyerName      string          `json:"buyer_name"`
	BuyerMobile    string          `json:"buyer_mobile"`
	ReferenceLast4 string          `json:"reference_last4"`
	ScreenshotPath string          `json:"screenshot_path"`
	Tickets        []TicketRequest `json:"tickets"`
	Amount         *int64          `json:"amount"`
}

func (in *SaleInput) normalize() {
	in.BuyerName = strings.TrimSpace(in.BuyerName)
	in.ScreenshotPath = strings.TrimSpace(in.ScreenshotPath)
}

func (in *SaleInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.BuyerName, validation.Required, validation.Length(1, 120)),
		validation.Field(&in.BuyerMobile, validation.Required, validation.Match(mobileRegex).Error("must be exactly 10 digits")),
		validation.Field(&in.ReferenceLast4, validation.Required, validation.Match(referenceRegex).Error("must be exactly 4 digits")),
		validation.Field(&in.ScreenshotPath, validation.Length(0, 255)),
		validation.Field(&in.Tickets, validation.Required.Error("select at least one ticket")),
		validation.Field(&in.Amount, validation.NotNil.Error("amount is required")),
	)
}

// PublicSubmission arrives from an anonymous buyer through a referral link.
type PublicSubmission struct {
	PartnerCode string `json:"partner_code"`
	SaleInput
}

func (p *PublicSubmission) normalize() {
	p.PartnerCode = store.NormalizePartnerCode(p.PartnerCode)
	p.SaleInput.normalize()
}

func (p *PublicSubmission) Validate() error {
	errs := validation.Errors{}
	if err := validation.Validate(p.PartnerCode, validation.Required); err != nil {
		errs["partner_code"] = err
	}
	if err := mergeFieldErrors(errs, p.SaleInput.Validate()); err != nil {
		return err
	}
	return errs.Filter()
}

func mergeFieldErrors(dst validation.Errors, err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return err
	}
	for k, v := range fields {
		dst[k] = v
	}
	return nil
}

type tierLookup interface {
	GetMany(ctx context.Context, ids []string) (map[string]models.TicketTier, error)
}

// snapshotLineItems copies the current tier name and price into each line.
// Unknown tiers are reported as a field error on tickets.
func snapshotLineItems(ctx context.Context, tiers tierLookup, reqs []TicketRequest) (models.LineItems, error) {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.TierID)
	}

	found, err := tiers.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make(models.LineItems, 0, len(reqs))
	for _, r := range reqs {
		tier, ok := found[r.TierID]
		if !ok {
			return nil, status.NewValidationError("tickets", fmt.Sprintf("unknown ticket tier %q", r.TierID))
		}
		items = append(items, models.LineItem{
			TierID:   tier.ID,
			TierName: tier.Name,
			Price:    tier.Price,
			Quantity: r.Quantity,
		})
	}
	return items, nil
}

// checkAmount rejects a client total that disagrees with the snapshot.
func checkAmount(items models.LineItems, amount *int64) error {
	if amount == nil {
		return status.NewValidationError("amount", "amount is required")
	}
	if want := items.Total(); *amount != want {
		return status.NewValidationError("amount", fmt.Sprintf("amount must equal the ticket total of %d", want))
	}
	return nil
}
