package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "installments",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "registration_id",
					"type": "text",
					"required": true
				},
				{
					"name": "installment_number",
					"type": "number",
					"required": true,
					"min": 1,
					"onlyInt": true
				},
				{
					"name": "total_installments",
					"type": "number",
					"required": true,
					"min": 1,
					"onlyInt": true
				},
				{
					"name": "amount",
					"type": "number",
					"required": true,
					"min": 0
				},
				{
					"name": "due_date",
					"type": "date",
					"required": true
				},
				{
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["pending", "paid", "cancelled"]
				},
				{
					"name": "reference_blob",
					"type": "text",
					"required": false,
					"max": 4096
				},
				{
					"name": "reference_code",
					"type": "text",
					"required": false
				},
				{
					"name": "gateway_payment_id",
					"type": "text",
					"required": false
				},
				{
					"name": "reference_expires",
					"type": "date",
					"required": false
				},
				{
					"name": "paid_at",
					"type": "date",
					"required": false
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
				"CREATE INDEX idx_installments_registration ON installments (registration_id)",
				"CREATE UNIQUE INDEX idx_installments_number ON installments (registration_id, installment_number)"
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
		collection, err := app.FindCollectionByNameOrId("installments")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
