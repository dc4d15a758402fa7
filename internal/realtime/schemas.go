package realtime

import (
	"fmt"

	"business-inventory/internal/models"
)

const envelopeSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["eventType", "table"],
	"properties": {
		"eventType": {"type": "string", "enum": ["INSERT", "UPDATE", "DELETE"]},
		"table": {"type": "string", "const": %q},
		"new": {
			"type": ["object", "null"],
			"required": %s,
			"properties": %s
		},
		"old": {
			"type": ["object", "null"],
			"properties": {"id": {"type": "string", "minLength": 1}}
		},
		"id": {"type": "string", "minLength": 1},
		"truncated": {"type": "boolean"}
	},
	"if": {"properties": {"truncated": {"const": true}}, "required": ["truncated"]},
	"then": {"required": ["id"]}
}`

var tableSchemas = map[models.Table]string{
	models.TableBusinesses: fmt.Sprintf(envelopeSchema, models.TableBusinesses,
		`["id", "name", "created_at"]`,
		`{
			"id": {"type": "string", "minLength": 1},
			"name": {"type": "string"},
			"logo": {"type": ["string", "null"]},
			"description": {"type": ["string", "null"]},
			"created_at": {"type": "string"},
			"updated_at": {"type": "string"}
		}`),
	models.TableProducts: fmt.Sprintf(envelopeSchema, models.TableProducts,
		`["id", "business_id", "name", "price", "status", "created_at"]`,
		`{
			"id": {"type": "string", "minLength": 1},
			"business_id": {"type": "string", "minLength": 1},
			"name": {"type": "string"},
			"price": {"type": "number", "exclusiveMinimum": 0},
			"category": {"type": ["string", "null"]},
			"status": {"type": "string", "enum": ["available", "sold", "reserved"]},
			"description": {"type": ["string", "null"]},
			"image": {"type": ["string", "null"]},
			"posted_to_marketplace": {"type": ["boolean", "null"]},
			"created_at": {"type": "string"},
			"updated_at": {"type": "string"}
		}`),
	models.TableNotifications: fmt.Sprintf(envelopeSchema, models.TableNotifications,
		`["id", "type", "title", "message", "read", "created_at"]`,
		`{
			"id": {"type": "string", "minLength": 1},
			"type": {"type": "string", "enum": ["product_added", "product_updated", "product_sold", "business_added"]},
			"title": {"type": "string"},
			"message": {"type": "string"},
			"link": {"type": ["string", "null"]},
			"business_id": {"type": ["string", "null"]},
			"product_id": {"type": ["string", "null"]},
			"read": {"type": "boolean"},
			"created_at": {"type": "string"}
		}`),
}
