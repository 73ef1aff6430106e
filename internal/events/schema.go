package events

import (
	"github.com/xeipuuv/gojsonschema"
)

const schemaOrderCreated = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["orderId", "userId", "items", "createdAt"],
  "properties": {
    "orderId": { "type": "string", "minLength": 1 },
    "userId": { "type": "string", "minLength": 1 },
    "status": { "enum": ["pending", "processing", "shipped", "delivered", "cancelled"] },
    "createdAt": { "type": "string", "format": "date-time" },
    "riskAssessment": { "type": ["number", "null"], "minimum": 0, "maximum": 1 },
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["productId", "quantity", "priceAtPurchase", "currency"],
        "properties": {
          "productId": { "type": "string", "minLength": 1 },
          "variantId": { "type": "string" },
          "quantity": { "type": "integer", "minimum": 1 },
          "priceAtPurchase": {
            "type": ["number", "string"],
            "minimum": 0,
            "pattern": "^[0-9]+(\\.[0-9]+)?$"
          },
          "currency": { "type": "string", "pattern": "^[A-Z]{3}$" }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

const schemaUserCreated = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["userId"],
  "properties": {
    "userId": { "type": "string", "minLength": 1 },
    "email": { "type": "string", "format": "email" }
  },
  "additionalProperties": false
}`

const schemaProductUpdated = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["productId"],
  "definitions": {
    "variants": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "inventory"],
        "properties": {
          "id": { "type": "string", "minLength": 1 },
          "color": { "type": "string" },
          "size": { "type": "string" },
          "inventory": { "type": "integer" }
        },
        "additionalProperties": false
      }
    }
  },
  "properties": {
    "productId": { "type": "string", "minLength": 1 },
    "name": { "type": "string" },
    "before": { "$ref": "#/definitions/variants" },
    "after": { "$ref": "#/definitions/variants" }
  },
  "additionalProperties": false
}`

var (
	orderCreatedSchema   = mustSchema(schemaOrderCreated)
	userCreatedSchema    = mustSchema(schemaUserCreated)
	productUpdatedSchema = mustSchema(schemaProductUpdated)
)

func mustSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(err)
	}

	return schema
}
