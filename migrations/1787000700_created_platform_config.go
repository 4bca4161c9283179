package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "platform_config",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "platform_fee_percentage",
					"type": "number",
					"required": true,
					"min": 0,
					"max": 100
				},
				{
					"name": "gateway_percentage_fee",
					"type": "number",
					"required": true,
					"min": 0,
					"max": 100
				},
				{
					"name": "gateway_fixed_fee",
					"type": "number",
					"required": true,
					"min": 0
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
			"indexes": [],
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
		collection, err := app.FindCollectionByNameOrId("platform_config")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
