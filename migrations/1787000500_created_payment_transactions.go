package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "payment_transactions",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "gateway_event_id",
					"type": "text",
					"required": true
				},
				{
					"name": "event_type",
					"type": "text",
					"required": true
				},
				{
					"name": "gateway_object_id",
					"type": "text",
					"required": false
				},
				{
					"name": "amount",
					"type": "number",
					"required": false
				},
				{
					"name": "outcome",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["succeeded", "failed", "refunded", "ignored"]
				},
				{
					"name": "registration_id",
					"type": "text",
					"required": false
				},
				{
					"name": "created",
					"type": "autodate",
					"onCreate": true
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_payment_transactions_event ON payment_transactions (gateway_event_id)",
				"CREATE INDEX idx_payment_transactions_registration ON payment_transactions (registration_id)"
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
		collection, err := app.FindCollectionByNameOrId("payment_transactions")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
