package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "organizers",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "name",
					"type": "text",
					"required": true
				},
				{
					"name": "email",
					"type": "email",
					"required": true
				},
				{
					"name": "gateway_account_id",
					"type": "text",
					"required": false
				},
				{
					"name": "onboarding_complete",
					"type": "bool",
					"required": false
				},
				{
					"name": "charges_enabled",
					"type": "bool",
					"required": false
				},
				{
					"name": "payouts_enabled",
					"type": "bool",
					"required": false
				},
				{
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["pending", "active", "suspended"]
				},
				{
					"name": "created",
					"type": "autodate",
					"onCreate": true
				},
				{
					"name": "updated",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true
				}
			],
			"indexes": [
				"CREATE INDEX idx_organizers_gateway_account ON organizers (gateway_account_id)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("organizers")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
