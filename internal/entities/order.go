package entities

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}

	return false
}

type LineItem struct {
	ProductID       string          `json:"productId"`
	VariantID       string          `json:"variantId"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase"`
	Currency        string          `json:"currency"`
}

// LineItems is stored as a single JSON column.
type LineItems []LineItem

func (li LineItems) Value() (driver.Value, error) {
	if li == nil {
		return []byte("[]"), nil
	}

	return json.Marshal(li)
}

func (li *LineItems) Scan(src any) error {
	var data []byte

	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*li = nil
		return nil
	default:
		return errors.New("unsupported line items column type")
	}

	return json.Unmarshal(data, li)
}

type Order struct {
	ID             string      `db:"id" json:"orderId"`
	UserID         string      `db:"user_id" json:"userId"`
	Items          LineItems   `db:"items" json:"items"`
	Status         OrderStatus `db:"status" json:"status"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	RiskAssessment *float64    `db:"risk_assessment" json:"riskAssessment,omitempty"`

	// PointsAwarded is filled from the settlement marker on reads, nil while unsettled.
	PointsAwarded *int64 `db:"points_awarded" json:"pointsAwarded,omitempty"`
}
