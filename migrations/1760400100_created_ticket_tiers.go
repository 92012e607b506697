package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("ticket_tiers")

		// availability is public; writes go through the admin API
		collection.ListRule = types.Pointer("")
		collection.ViewRule = types.Pointer("")

		collection.Fields.Add(
			&core.TextField{
				Name:     "name",
				Required: true,
				Max:      80,
			},
			&core.NumberField{
				Name:    "price",
				OnlyInt: true,
				Min:     types.Pointer(0.0),
			},
			&core.NumberField{
				Name:    "remaining_qty",
				OnlyInt: true,
				Min:     types.Pointer(0.0),
			},
			&core.NumberField{
				Name:    "initial_qty",
				OnlyInt: true,
				Min:     types.Pointer(0.0),
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
			&core.AutodateField{
				Name:     "updated",
				OnCreate: true,
				OnUpdate: true,
			},
		)
		collection.AddIndex("idx_ticket_tiers_name", true, "name", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("ticket_tiers")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
