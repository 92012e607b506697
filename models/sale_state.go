package models

import (
	"fmt"

	"ticket-portal/internal/status"
)

type SaleEvent string

const (
	SaleEventApprove  SaleEvent = "approve"
	SaleEventReject   SaleEvent = "reject"
	SaleEventSelfEdit SaleEvent = "self_edit"
)

// transitions lists every legal move. Terminal states have no entries.
var transitions = map[SaleStatus]map[SaleEvent]SaleStatus{
	SaleStatusPending: {
		SaleEventApprove:  SaleStatusApproved,
		SaleEventReject:   SaleStatusRejected,
		SaleEventSelfEdit: SaleStatusPending,
	},
}

// Next returns the status reached by applying event to s.
func (s SaleStatus) Next(event SaleEvent) (SaleStatus, error) {
	to, ok := transitions[s][event]
	if !ok {
		return s, fmt.Errorf("%w: %s from %s", status.ErrInvalidStateTransition, event, s)
	}
	return to, nil
}

func (s SaleStatus) Can(event SaleEvent) bool {
	_, err := s.Next(event)
	return err == nil
}
