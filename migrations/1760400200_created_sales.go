package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("sales")

		// Sale ids are the human readable TK codes buyers quote to support.
		if id, ok := collection.Fields.GetByName("id").(*core.TextField); ok {
			id.Pattern = `^[A-Z0-9]+$`
			id.AutogeneratePattern = `TK[0-9A-F]{8}`
			id.Min = 4
			id.Max = 20
		}

		collection.Fields.Add(
			&core.RelationField{
				Name:          "partner",
				CollectionId:  "_pb_users_auth_",
				MaxSelect:     1,
				CascadeDelete: false,
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				Values:    []string{"pending", "approved", "rejected"},
				MaxSelect: 1,
			},
			&core.TextField{
				Name:     "buyer_name",
				Required: true,
				Max:      120,
			},
			&core.TextField{
				Name:     "buyer_mobile",
				Required: true,
				Pattern:  `^\d{10}$`,
			},
			&core.TextField{
				Name:     "reference_last4",
				Required: true,
				Pattern:  `^\d{4}$`,
			},
			&core.TextField{
				Name: "screenshot_path",
				Max:  255,
			},
			&core.JSONField{
				Name: "tickets_data",
			},
			&core.NumberField{
				Name:    "amount",
				OnlyInt: true,
				Min:     types.Pointer(0.0),
			},
			&core.TextField{
				Name: "rejection_reason",
				Max:  500,
			},
			&core.DateField{
				Name: "submitted_at",
			},
			&core.DateField{
				Name: "approved_at",
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
		collection.AddIndex("idx_sales_status", false, "status", "")
		collection.AddIndex("idx_sales_partner", false, "partner, submitted_at", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("sales")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
