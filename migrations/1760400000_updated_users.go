package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		users.Fields.Add(
			&core.TextField{
				Name:    "mobile",
				Max:     20,
				Pattern: `^\d*$`,
			},
			&core.SelectField{
				Name:      "role",
				Values:    []string{"admin", "partner"},
				MaxSelect: 1,
			},
			&core.BoolField{
				Name: "is_active",
			},
			&core.TextField{
				Name:    "partner_code",
				Max:     32,
				Pattern: `^[A-Za-z0-9]*$`,
			},
		)
		users.AddIndex("idx_users_partner_code", true, "partner_code", "partner_code != ''")

		return app.Save(users)
	}, func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		users.RemoveIndex("idx_users_partner_code")
		for _, name := range []string{"mobile", "role", "is_active", "partner_code"} {
			users.Fields.RemoveByName(name)
		}
		return app.Save(users)
	})
}
