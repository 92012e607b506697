package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pocketbase/pocketbase/tools/types"
)

type TicketTier struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Price        int64          `db:"price" json:"price"`
	RemainingQty int            `db:"remaining_qty" json:"remaining_qty"`
	InitialQty   int            `db:"initial_qty" json:"initial_qty"`
	Created      types.DateTime `db:"created" json:"created"`
	Updated      types.DateTime `db:"updated" json:"updated"`
}

// SoldOut reports whether the tier has no units left.
func (t TicketTier) SoldOut() bool {
	return t.RemainingQty <= 0
}

// LineItem is a snapshot of one tier at submission time. Name and price
// never follow later tier edits.
type LineItem struct {
	TierID   string `json:"tier_id"`
	TierName string `json:"tier_name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

func (l LineItem) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// LineItems is stored as a JSON array in the tickets_data column.
type LineItems []LineItem

func (items LineItems) Total() int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

func (items LineItems) Quantity() int {
	var qty int
	for _, item := range items {
		qty += item.Quantity
	}
	return qty
}

func (items LineItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]LineItem(items))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (items *LineItems) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*items = LineItems{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("line items: unsupported source type %T", value)
	}

	if len(data) == 0 || string(data) == "null" {
		*items = LineItems{}
		return nil
	}

	var decoded []LineItem
	if err := json.Unmarshal(data, &decoded); err != nil {
		return errors.Join(errors.New("line items: invalid json"), err)
	}
	*items = decoded
	return nil
}
