package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"name": "events",
			"type": "base",
			"system": false,
			"fields": [
				{
					"name": "organizer_id",
					"type": "text",
					"required": true
				},
				{
					"name": "title",
					"type": "text",
					"required": true
				},
				{
					"name": "description",
					"type": "text",
					"required": false
				},
				{
					"name": "venue",
					"type": "text",
					"required": false
				},
				{
					"name": "starts_at",
					"type": "date",
					"required": false
				},
				{
					"name": "ends_at",
					"type": "date",
					"required": false
				},
				{
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": ["draft", "published", "cancelled", "archived"]
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
				"CREATE INDEX idx_events_organizer ON events (organizer_id)",
				"CREATE INDEX idx_events_status ON events (status)"
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
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
