package entities

import (
	"time"
)

type User struct {
	ID            string     `db:"id" json:"userId"`
	Email         string     `db:"email" json:"email,omitempty"`
	LoyaltyPoints int64      `db:"loyalty_points" json:"loyaltyPoints"`
	SubscribedAt  *time.Time `db:"subscribed_at" json:"subscribedAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}
