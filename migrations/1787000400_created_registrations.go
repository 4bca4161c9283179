package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "registrations",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "event_id",
					"type": "text",
					"required": true
				},
				{
					"name": "ticket_type_id",
					"type": "text",
					"required": true
				},
				{
					"name": "participant_name",
					"type": "text",
					"required": true
				},
				{
					"name": "participant_email",
					"type": "email",
					"required": true
				},
				{
					"name": "participant_phone",
					"type": "text",
					"required": false
				},
				{
					"name": "participant_document",
					"type": "text",
					"required": false
				},
				{
					"name": "quantity",
					"type": "number",
					"required": true,
					"min": 1,
					"onlyInt": true
				},
				{
					"name": "unit_price",
					"type": "number",
					"required": false,
					"min": 0
				},
				{
					"name": "gateway_fee",
					"type": "number",
					"required": false,
					"min": 0
				},
				{
					"name": "platform_fee",
					"type": "number",
					"required": false,
					"min": 0
				},
				{
					"name": "organizer_net",
					"type": "number",
					"required": false
				},
				{
					"name": "total_amount",
					"type": "number",
					"required": false,
					"min": 0
				},
				{
					"name": "payment_method",
					"type": "select",
					"required": false,
					"maxSelect": 1,
					"values": ["card", "bank_transfer"]
				},
				{
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["pending", "confirmed", "partial_payment", "payment_overdue", "failed", "cancelled"]
				},
				{
					"name": "payment_status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["pending", "paid", "failed", "refunded"]
				},
				{
					"name": "blocked_reason",
					"type": "text",
					"required": false
				},
				{
					"name": "ticket_code",
					"type": "text",
					"required": false
				},
				{
					"name": "gateway_session_id",
					"type": "text",
					"required": false
				},
				{
					"name": "gateway_payment_id",
					"type": "text",
					"required": false
				},
				{
					"name": "inventory_reserved",
					"type": "bool",
					"required": false
				},
				{
					"name": "is_installment_payment",
					"type": "bool",
					"required": false
				},
				{
					"name": "total_installments",
					"type": "number",
					"required": false,
					"onlyInt": true
				},
				{
					"name": "installment_plan_status",
					"type": "select",
					"required": false,
					"maxSelect": 1,
					"values": ["active", "completed"]
				},
				{
					"name": "confirmed_at",
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
				"CREATE UNIQUE INDEX idx_registrations_ticket_code ON registrations (ticket_code) WHERE ticket_code != ''",
				"CREATE INDEX idx_registrations_payment ON registrations (gateway_payment_id)",
				"CREATE INDEX idx_registrations_email ON registrations (participant_email)"
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
		collection, err := app.FindCollectionByNameOrId("registrations")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
