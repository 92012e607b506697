package handlers

import (
	"ticket-portal/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// RegisterRecordHooks keeps edits made through the PocketBase dashboard or
// records API consistent with the sale workflow.
func RegisterRecordHooks(app core.App) {
	app.OnRecordCreateRequest("ticket_tiers").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := checkTierCreate(e.Record); err != nil {
			return err
		}
		return e.Next()
	})

	app.OnRecordUpdateRequest("ticket_tiers").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := checkTierUpdate(e.Record.Original(), e.Record); err != nil {
			return err
		}
		return e.Next()
	})

	app.OnRecordCreateRequest("sales").BindFunc(func(e *core.RecordRequestEvent) error {
		if status := models.SaleStatus(e.Record.GetString("status")); status != models.SaleStatusPending {
			return apis.NewBadRequestError("New sales must be pending.", nil)
		}
		return e.Next()
	})

	app.OnRecordUpdateRequest("sales").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := checkSaleUpdate(e.Record.Original(), e.Record); err != nil {
			return err
		}
		return e.Next()
	})
}

// checkTierCreate fills remaining_qty from initial_qty when it was left
// empty.
func checkTierCreate(rec *core.Record) error {
	initial := rec.GetInt("initial_qty")
	if rec.GetInt("remaining_qty") == 0 {
		rec.Set("remaining_qty", initial)
	}
	if rec.GetInt("remaining_qty") > initial {
		return apis.NewBadRequestError("remaining_qty cannot exceed initial_qty.", nil)
	}
	return nil
}

func checkTierUpdate(original, updated *core.Record) error {
	if updated.GetInt("initial_qty") != original.GetInt("initial_qty") {
		return apis.NewBadRequestError("initial_qty cannot be changed.", nil)
	}
	remaining := updated.GetInt("remaining_qty")
	if remaining < 0 || remaining > updated.GetInt("initial_qty") {
		return apis.NewBadRequestError("remaining_qty must be between 0 and initial_qty.", nil)
	}
	return nil
}

// checkSaleUpdate routes status changes through the approve and reject
// endpoints and freezes the ticket lines once a sale is decided.
func checkSaleUpdate(original, updated *core.Record) error {
	if updated.GetString("status") != original.GetString("status") {
		return apis.NewBadRequestError("Use the approve or reject endpoints to change a sale status.", nil)
	}

	if models.SaleStatus(original.GetString("status")).IsTerminal() {
		if updated.GetString("tickets_data") != original.GetString("tickets_data") ||
			updated.GetInt("amount") != original.GetInt("amount") {
			return apis.NewBadRequestError("Tickets and amount of a decided sale cannot be changed.", nil)
		}
	}
	return nil
}
