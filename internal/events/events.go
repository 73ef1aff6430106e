// Package events validates trigger payloads against their JSON schemas and
// decodes them before they reach any handler. A payload that fails here is
// never retried.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/VladKvetkin/settlement/internal/points"
	"github.com/xeipuuv/gojsonschema"
)

const (
	TypeOrderCreated   = "orders.created"
	TypeUserCreated    = "users.created"
	TypeProductUpdated = "products.updated"
)

var ErrInvalidEvent = errors.New("invalid event")

type OrderCreated struct {
	OrderID        string               `json:"orderId"`
	UserID         string               `json:"userId"`
	Items          []entities.LineItem  `json:"items"`
	Status         entities.OrderStatus `json:"status,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	RiskAssessment *float64             `json:"riskAssessment,omitempty"`
}

func (e OrderCreated) Order() entities.Order {
	return entities.Order{
		ID:             e.OrderID,
		UserID:         e.UserID,
		Items:          e.Items,
		Status:         e.Status,
		CreatedAt:      e.CreatedAt,
		RiskAssessment: e.RiskAssessment,
	}
}

type UserCreated struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

type ProductUpdated struct {
	ProductID string             `json:"productId"`
	Name      string             `json:"name"`
	Before    []entities.Variant `json:"before"`
	After     []entities.Variant `json:"after"`
}

func DecodeOrderCreated(data []byte) (OrderCreated, error) {
	var event OrderCreated
	if err := decode(orderCreatedSchema, data, &event); err != nil {
		return OrderCreated{}, err
	}

	if event.Status == "" {
		event.Status = entities.OrderStatusPending
	}

	if err := validateOrderCreated(event); err != nil {
		return OrderCreated{}, err
	}

	return event, nil
}

func DecodeUserCreated(data []byte) (UserCreated, error) {
	var event UserCreated
	if err := decode(userCreatedSchema, data, &event); err != nil {
		return UserCreated{}, err
	}

	return event, nil
}

func DecodeProductUpdated(data []byte) (ProductUpdated, error) {
	var event ProductUpdated
	if err := decode(productUpdatedSchema, data, &event); err != nil {
		return ProductUpdated{}, err
	}

	return event, nil
}

func decode(schema *gojsonschema.Schema, data []byte, v any) error {
	if err := validateJSONSchema(schema, data); err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	return nil
}

func validateJSONSchema(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	if !result.Valid() {
		var sb strings.Builder
		for i, e := range result.Errors() {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(e.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidEvent, sb.String())
	}

	return nil
}

// validateOrderCreated covers the rules that span fields.
func validateOrderCreated(event OrderCreated) error {
	if len(event.Items) == 0 && event.Status != entities.OrderStatusCancelled {
		return invalid("items must not be empty")
	}

	currency := ""
	for i, item := range event.Items {
		if currency == "" {
			currency = item.Currency
		} else if item.Currency != currency {
			return invalid("item %d: mixed currencies %s and %s", i, currency, item.Currency)
		}
	}

	if _, err := points.Award(event.Items); err != nil {
		return invalid("%v", err)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, fmt.Sprintf(format, args...))
}
