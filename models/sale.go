package models

import (
	"github.com/pocketbase/pocketbase/tools/types"
)

type SaleStatus string

const (
	SaleStatusPending  SaleStatus = "pending"
	SaleStatusApproved SaleStatus = "approved"
	SaleStatusRejected SaleStatus = "rejected"
)

func (s SaleStatus) IsTerminal() bool {
	return s == SaleStatusApproved || s == SaleStatusRejected
}

func (s SaleStatus) Valid() bool {
	switch s {
	case SaleStatusPending, SaleStatusApproved, SaleStatusRejected:
		return true
	}
	return false
}

type Sale struct {
	ID              string         `db:"id" json:"id"`
	PartnerID       string         `db:"partner" json:"partner"` // empty when the referring profile was removed
	Status          SaleStatus     `db:"status" json:"status"`
	BuyerName       string         `db:"buyer_name" json:"buyer_name"`
	BuyerMobile     string         `db:"buyer_mobile" json:"buyer_mobile"`
	ReferenceLast4  string         `db:"reference_last4" json:"reference_last4"`
	ScreenshotPath  string         `db:"screenshot_path" json:"screenshot_path"`
	Tickets         LineItems      `db:"tickets_data" json:"tickets_data"`
	Amount          int64          `db:"amount" json:"amount"`
	RejectionReason string         `db:"rejection_reason" json:"rejection_reason"`
	SubmittedAt     types.DateTime `db:"submitted_at" json:"submitted_at"`
	ApprovedAt      types.DateTime `db:"approved_at" json:"approved_at"`
	Created         types.DateTime `db:"created" json:"created"`
	Updated         types.DateTime `db:"updated" json:"updated"`
}

func (s *Sale) IsPending() bool {
	return s.Status == SaleStatusPending
}

// SaleFilter narrows admin listings. An empty status lists everything.
type SaleFilter struct {
	Status SaleStatus
	Limit  int
	Offset int
}
