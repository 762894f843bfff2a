package models

import "time"

// PushSubscription is a device token registered for push delivery (MongoDB)
type PushSubscription struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    uint      `json:"user_id" bson:"user_id"`
	Token     string    `json:"token" bson:"token"`
	Platform  string    `json:"platform" bson:"platform"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// RegisterPushSubscriptionRequest defines the request body for registering a device
type RegisterPushSubscriptionRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"omitempty,oneof=web android ios"`
}
