package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		sales, err := app.FindCollectionByNameOrId("sales")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("webhook_logs")
		collection.Fields.Add(
			&core.RelationField{
				Name:          "sale",
				CollectionId:  sales.Id,
				MaxSelect:     1,
				CascadeDelete: true,
				Required:      true,
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				Values:    []string{"pending", "success", "failed"},
				MaxSelect: 1,
			},
			&core.NumberField{
				Name:    "attempts",
				OnlyInt: true,
				Min:     types.Pointer(0.0),
			},
			&core.DateField{
				Name: "last_attempt_at",
			},
			&core.NumberField{
				Name:    "response_status",
				OnlyInt: true,
			},
			&core.TextField{
				Name: "response_body",
				Max:  1000,
			},
			&core.TextField{
				Name: "error_message",
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
		collection.AddIndex("idx_webhook_logs_sale", false, "sale", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("webhook_logs")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
