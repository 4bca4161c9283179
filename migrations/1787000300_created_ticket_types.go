package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "ticket_types",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "event_id",
					"type": "text",
					"required": true
				},
				{
					"name": "title",
					"type": "text",
					"required": true
				},
				{
					"name": "price",
					"type": "number",
					"required": true,
					"min": 0
				},
				{
					"name": "fee_policy",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["absorbed", "passed_to_buyer"]
				},
				{
					"name": "quantity",
					"type": "number",
					"required": true,
					"min": 0,
					"onlyInt": true
				},
				{
					"name": "quantity_sold",
					"type": "number",
					"required": false,
					"min": 0,
					"onlyInt": true
				},
				{
					"name": "min_per_order",
					"type": "number",
					"required": false,
					"onlyInt": true
				},
				{
					"name": "max_per_order",
					"type": "number",
					"required": false,
					"onlyInt": true
				},
				{
					"name": "sale_start",
					"type": "date",
					"required": false
				},
				{
					"name": "sale_end",
					"type": "date",
					"required": false
				},
				{
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["active", "inactive"]
				},
				{
					"name": "allow_installments",
					"type": "bool",
					"required": false
				},
				{
					"name": "max_installments",
					"type": "number",
					"required": false,
					"onlyInt": true
				},
				{
					"name": "min_amount_for_installments",
					"type": "number",
					"required": false,
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
			"indexes": [
				"CREATE INDEX idx_ticket_types_event ON ticket_types (event_id)"
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
		collection, err := app.FindCollectionByNameOrId("ticket_types")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
