package models

type GetBalanceResponse struct {
	UserID        string `json:"userId"`
	LoyaltyPoints int64  `json:"loyaltyPoints"`
}

type GetOrdersResponse []OrderResponse

type OrderResponse struct {
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	Total         string `json:"total"`
	Currency      string `json:"currency,omitempty"`
	PointsAwarded *int64 `json:"pointsAwarded,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

type UserCreatedResponse struct {
	UserID string `json:"userId"`
}

type ProductUpdatedResponse struct {
	ProductID string `json:"productId"`
	Alerts    int    `json:"alerts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
